package certs

import (
	"context"
	"fmt"
	"sort"

	"syndic/internal/registry/keys"
	"syndic/internal/registry/metrics"
	"syndic/internal/registry/models"
	"syndic/internal/registry/scope"
	dErrors "syndic/pkg/domain-errors"
)

// Directory is the slice of the registry the issuer consumes.
type Directory interface {
	Read(ctx context.Context, nameOrID string, useCache bool) (*models.Gateway, error)
	ListAll(ctx context.Context) ([]*models.Gateway, error)
}

// RedirectError tells the transport to send the caller to the current
// version of what it asked for instead of serving a stale one. It is not a
// failure; version negotiation works entirely through these.
type RedirectError struct {
	Location string
}

func (e *RedirectError) Error() string {
	return "current version is at " + e.Location
}

// Issuer serves signed certificates and manifests, negotiating versions
// with the caller. The caller pins the scope version and cert version it
// believes current; a mismatch redirects rather than serves, so a stale URL
// can never pin a peer to stale identity material.
type Issuer struct {
	directory Directory
	scope     *scope.Manager
	codec     Codec
	metrics   *metrics.Metrics

	// signingKey is the registry's own private key; every served blob is
	// signed with it so peers can verify provenance offline.
	signingKey string
}

// NewIssuer builds an Issuer over the directory and scope, signing with the
// given PEM private key.
func NewIssuer(d Directory, sc *scope.Manager, signingKey string, codec Codec, m *metrics.Metrics) *Issuer {
	if codec == nil {
		codec = JSONCodec{}
	}
	return &Issuer{directory: d, scope: sc, codec: codec, metrics: m, signingKey: signingKey}
}

// Codec returns the wire codec in use.
func (i *Issuer) Codec() Codec { return i.codec }

// CertPath renders the canonical URL path of one gateway certificate.
func CertPath(scopeName string, scopeVersion int64, kind string, id, certVersion int64) string {
	return fmt.Sprintf("/cert/%s/%d/%s/%d/%d", scopeName, scopeVersion, kind, id, certVersion)
}

// ManifestPath renders the canonical URL path of the scope manifest.
func ManifestPath(scopeName string, scopeVersion int64) string {
	return fmt.Sprintf("/cert/%s/%d/manifest", scopeName, scopeVersion)
}

// IssueGateway serves the certificate for one gateway if the caller's
// pinned versions are current, and redirects to the current path otherwise.
func (i *Issuer) IssueGateway(ctx context.Context, scopeName string, scopeVersion int64, kindStr string, id int64, certVersion int64) ([]byte, error) {
	if scopeName != i.scope.Name() {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "unknown scope %q", scopeName)
	}
	kind, ok := models.ParseKind(kindStr)
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "unknown gateway kind %q", kindStr)
	}

	currentScope, err := i.scope.Current(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "read scope version")
	}
	g, err := i.directory.Read(ctx, fmt.Sprintf("%d", id), true)
	if err != nil {
		return nil, err
	}
	if g.Kind != kind {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "gateway %d is not a %s", id, kindStr)
	}

	if scopeVersion != currentScope || certVersion != g.CertVersion {
		if i.metrics != nil {
			i.metrics.CertRedirects.Inc()
		}
		return nil, &RedirectError{
			Location: CertPath(scopeName, currentScope, g.Kind.String(), g.ID, g.CertVersion),
		}
	}

	raw, err := i.sign(snapshotOf(g, scopeName, currentScope))
	if err != nil {
		return nil, err
	}
	if i.metrics != nil {
		i.metrics.CertsIssued.Inc()
	}
	return raw, nil
}

// IssueManifest serves the scope manifest if the caller's pinned scope
// version is current, and redirects to the current one otherwise.
func (i *Issuer) IssueManifest(ctx context.Context, scopeName string, scopeVersion int64) ([]byte, error) {
	if scopeName != i.scope.Name() {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "unknown scope %q", scopeName)
	}
	currentScope, err := i.scope.Current(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "read scope version")
	}
	if scopeVersion != currentScope {
		if i.metrics != nil {
			i.metrics.CertRedirects.Inc()
		}
		return nil, &RedirectError{Location: ManifestPath(scopeName, currentScope)}
	}

	gateways, err := i.directory.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	manifest := &Manifest{ScopeName: scopeName, ScopeVersion: currentScope}
	for _, g := range gateways {
		manifest.Entries = append(manifest.Entries, ManifestEntry{
			GatewayID:   g.ID,
			Kind:        g.Kind.String(),
			Name:        g.Name,
			Host:        g.Host,
			Port:        g.Port,
			CertVersion: g.CertVersion,
		})
	}
	// Listing order is map order; the manifest is signed, so pin it down.
	sort.Slice(manifest.Entries, func(a, b int) bool {
		return manifest.Entries[a].GatewayID < manifest.Entries[b].GatewayID
	})

	body, err := i.codec.EncodeManifest(manifest)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode manifest")
	}
	sig, err := keys.Sign(i.signingKey, body)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "sign manifest")
	}
	manifest.Signature = sig
	signed, err := i.codec.EncodeManifest(manifest)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode manifest")
	}
	if i.metrics != nil {
		i.metrics.CertsIssued.Inc()
	}
	return signed, nil
}

// sign serializes the snapshot with an empty signature, signs those bytes,
// then re-serializes with the signature attached. Verifiers strip the
// signature field and check against the remainder.
func (i *Issuer) sign(s *Snapshot) ([]byte, error) {
	s.Signature = nil
	body, err := i.codec.EncodeSnapshot(s)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode certificate")
	}
	sig, err := keys.Sign(i.signingKey, body)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "sign certificate")
	}
	s.Signature = sig
	signed, err := i.codec.EncodeSnapshot(s)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode certificate")
	}
	return signed, nil
}

// VerifySnapshot checks an issued certificate against the issuer public
// key. Peers run the same logic with the key from their configuration.
func VerifySnapshot(publicPEM string, codec Codec, raw []byte) (*Snapshot, error) {
	s, err := codec.DecodeSnapshot(raw)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadSignature, "decode certificate")
	}
	sig := s.Signature
	s.Signature = nil
	body, err := codec.EncodeSnapshot(s)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode certificate")
	}
	if !keys.Verify(publicPEM, body, sig) {
		return nil, dErrors.New(dErrors.CodeBadSignature, "certificate signature does not verify")
	}
	s.Signature = sig
	return s, nil
}
