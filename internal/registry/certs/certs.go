// Package certs assembles, signs, and serves gateway certificates and the
// per-scope manifest. A certificate is a signed snapshot of the public part
// of a gateway record; the manifest names every gateway in the scope at a
// given scope version so peers can discover each other and notice staleness.
package certs

import (
	"encoding/json"
	"fmt"

	"syndic/internal/registry/models"
)

// Snapshot is the distributable view of one gateway. It carries everything
// a peer needs to reach and verify the gateway and nothing it must not see:
// no session secrets, no private keys.
type Snapshot struct {
	ScopeName    string `json:"scope"`
	ScopeVersion int64  `json:"scope_version"`

	GatewayID   int64       `json:"gateway_id"`
	Kind        string      `json:"kind"`
	Name        string      `json:"name"`
	Host        string      `json:"host"`
	Port        int         `json:"port"`
	Caps        models.Caps `json:"caps"`
	CertVersion int64       `json:"cert_version"`
	CertExpires int64       `json:"cert_expires"`

	ControlKey       string `json:"control_key"`
	SessionPublicKey string `json:"session_public_key"`

	Config    string `json:"config,omitempty"`
	Blocksize int64  `json:"blocksize,omitempty"`

	// Signature is the issuer's signature over the snapshot serialized with
	// this field empty. Attached last; see Issuer.
	Signature []byte `json:"signature,omitempty"`
}

// ManifestEntry is one gateway's line in the scope manifest.
type ManifestEntry struct {
	GatewayID   int64  `json:"gateway_id"`
	Kind        string `json:"kind"`
	Name        string `json:"name"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	CertVersion int64  `json:"cert_version"`
}

// Manifest lists every gateway in a scope at one scope version.
type Manifest struct {
	ScopeName    string          `json:"scope"`
	ScopeVersion int64           `json:"scope_version"`
	Entries      []ManifestEntry `json:"gateways"`
	Signature    []byte          `json:"signature,omitempty"`
}

// Codec serializes certificates and manifests for the wire. The issuer
// signs exactly the bytes the codec produces, so encoding must be
// deterministic for a given value.
type Codec interface {
	ContentType() string
	EncodeSnapshot(s *Snapshot) ([]byte, error)
	DecodeSnapshot(raw []byte) (*Snapshot, error)
	EncodeManifest(m *Manifest) ([]byte, error)
	DecodeManifest(raw []byte) (*Manifest, error)
}

// JSONCodec is the default wire codec.
type JSONCodec struct{}

var _ Codec = JSONCodec{}

func (JSONCodec) ContentType() string { return "application/json" }

func (JSONCodec) EncodeSnapshot(s *Snapshot) ([]byte, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode certificate: %w", err)
	}
	return raw, nil
}

func (JSONCodec) DecodeSnapshot(raw []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode certificate: %w", err)
	}
	return &s, nil
}

func (JSONCodec) EncodeManifest(m *Manifest) ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return raw, nil
}

func (JSONCodec) DecodeManifest(raw []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

// snapshotOf projects the public part of a record into a certificate body.
func snapshotOf(g *models.Gateway, scopeName string, scopeVersion int64) *Snapshot {
	return &Snapshot{
		ScopeName:        scopeName,
		ScopeVersion:     scopeVersion,
		GatewayID:        g.ID,
		Kind:             g.Kind.String(),
		Name:             g.Name,
		Host:             g.Host,
		Port:             g.Port,
		Caps:             g.Caps,
		CertVersion:      g.CertVersion,
		CertExpires:      g.CertExpires,
		ControlKey:       g.ControlKey,
		SessionPublicKey: g.SessionPublicKey,
		Config:           g.ConfigText(),
		Blocksize:        g.Blocksize,
	}
}
