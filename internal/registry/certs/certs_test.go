//go:debug rsa1024min=0

package certs_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"syndic/internal/registry/cache"
	"syndic/internal/registry/certs"
	"syndic/internal/registry/deferred"
	"syndic/internal/registry/keys"
	"syndic/internal/registry/models"
	"syndic/internal/registry/scope"
	"syndic/internal/registry/service"
	"syndic/internal/registry/store/memory"
	dErrors "syndic/pkg/domain-errors"
	"syndic/pkg/requestcontext"
)

const testKeyBits = 512

type IssuerTestSuite struct {
	suite.Suite
	ctx    context.Context
	reg    *service.Registry
	scope  *scope.Manager
	issuer *certs.Issuer

	issuerPub  string
	controlPub string
	gatewayID  int64
}

func (s *IssuerTestSuite) SetupTest() {
	st := memory.New()
	s.scope = scope.NewManager(st, "vol")
	s.reg = service.New(st, cache.NewMemory(), deferred.Immediate{}, s.scope,
		service.WithKeyBits(testKeyBits))
	s.ctx = requestcontext.WithOwnerID(context.Background(), 101)

	var issuerPriv string
	var err error
	s.issuerPub, issuerPriv, err = keys.GenerateKeyPair(testKeyBits)
	s.Require().NoError(err)
	s.issuer = certs.NewIssuer(s.reg, s.scope, issuerPriv, certs.JSONCodec{}, nil)

	s.controlPub, _, err = keys.GenerateKeyPair(testKeyBits)
	s.Require().NoError(err)
	s.gatewayID, err = s.reg.Create(s.ctx, models.KindUser, models.CreateParams{
		Name:       "alpha",
		Host:       "gw.example.com",
		Port:       31112,
		ControlKey: s.controlPub,
		Caps:       models.CapReadData,
	})
	s.Require().NoError(err)
}

func TestIssuerTestSuite(t *testing.T) {
	suite.Run(t, new(IssuerTestSuite))
}

func (s *IssuerTestSuite) TestIssueGatewayCurrentVersionVerifies() {
	scopeVersion, err := s.scope.Current(s.ctx)
	s.Require().NoError(err)

	raw, err := s.issuer.IssueGateway(s.ctx, "vol", scopeVersion, "UG", s.gatewayID, 1)
	s.Require().NoError(err)

	snap, err := certs.VerifySnapshot(s.issuerPub, certs.JSONCodec{}, raw)
	s.Require().NoError(err)
	s.Equal("alpha", snap.Name)
	s.Equal("UG", snap.Kind)
	s.Equal(s.gatewayID, snap.GatewayID)
	s.Equal(int64(1), snap.CertVersion)
	s.Equal(s.controlPub, snap.ControlKey)
	s.NotEmpty(snap.SessionPublicKey)

	// Server-held secrets never leave in a certificate.
	s.NotContains(string(raw), "session_private_key")
	s.NotContains(string(raw), "password")
}

func (s *IssuerTestSuite) TestIssueGatewayTamperedDoesNotVerify() {
	scopeVersion, err := s.scope.Current(s.ctx)
	s.Require().NoError(err)
	raw, err := s.issuer.IssueGateway(s.ctx, "vol", scopeVersion, "UG", s.gatewayID, 1)
	s.Require().NoError(err)

	tampered := []byte(strings.Replace(string(raw), "gw.example.com", "evil.example.com", 1))
	_, err = certs.VerifySnapshot(s.issuerPub, certs.JSONCodec{}, tampered)
	s.True(dErrors.HasCode(err, dErrors.CodeBadSignature))
}

func (s *IssuerTestSuite) TestStaleCertVersionRedirects() {
	scopeVersion, err := s.scope.Current(s.ctx)
	s.Require().NoError(err)

	// Bump the gateway's cert by changing its host.
	g, err := s.reg.Update(s.ctx, s.gatewayID, map[string]any{"host": "moved.example.com"})
	s.Require().NoError(err)
	currentScope, err := s.scope.Current(s.ctx)
	s.Require().NoError(err)

	_, err = s.issuer.IssueGateway(s.ctx, "vol", scopeVersion, "UG", s.gatewayID, 1)
	var redirect *certs.RedirectError
	s.Require().ErrorAs(err, &redirect)
	s.Equal(certs.CertPath("vol", currentScope, "UG", s.gatewayID, g.CertVersion), redirect.Location)

	// Following the redirect serves.
	raw, err := s.issuer.IssueGateway(s.ctx, "vol", currentScope, "UG", s.gatewayID, g.CertVersion)
	s.Require().NoError(err)
	snap, err := certs.VerifySnapshot(s.issuerPub, certs.JSONCodec{}, raw)
	s.Require().NoError(err)
	s.Equal("moved.example.com", snap.Host)
}

func (s *IssuerTestSuite) TestCapabilityChangeVisibleWithoutRotation() {
	_, err := s.reg.SetCapabilities(s.ctx, s.gatewayID, models.CapReadData|models.CapWriteData)
	s.Require().NoError(err)

	// A capability change is not a key rotation, so the previously issued
	// cert coordinates stay valid and the fresh snapshot carries the new caps.
	scopeVersion, err := s.scope.Current(s.ctx)
	s.Require().NoError(err)
	raw, err := s.issuer.IssueGateway(s.ctx, "vol", scopeVersion, "UG", s.gatewayID, 1)
	s.Require().NoError(err)

	snap, err := certs.VerifySnapshot(s.issuerPub, certs.JSONCodec{}, raw)
	s.Require().NoError(err)
	s.Equal(int64(1), snap.CertVersion)
	s.Equal(models.CapReadData|models.CapWriteData, snap.Caps)
}

func (s *IssuerTestSuite) TestIssueGatewayWrongKindNotFound() {
	scopeVersion, err := s.scope.Current(s.ctx)
	s.Require().NoError(err)
	_, err = s.issuer.IssueGateway(s.ctx, "vol", scopeVersion, "RG", s.gatewayID, 1)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *IssuerTestSuite) TestIssueGatewayUnknownScopeNotFound() {
	_, err := s.issuer.IssueGateway(s.ctx, "othervol", 1, "UG", s.gatewayID, 1)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *IssuerTestSuite) TestManifestListsScopeAndVerifies() {
	_, err := s.reg.Create(s.ctx, models.KindReplica, models.CreateParams{
		Name:       "replica-1",
		Host:       "rg.example.com",
		Port:       31113,
		ControlKey: s.controlPub,
	})
	s.Require().NoError(err)

	scopeVersion, err := s.scope.Current(s.ctx)
	s.Require().NoError(err)
	raw, err := s.issuer.IssueManifest(s.ctx, "vol", scopeVersion)
	s.Require().NoError(err)

	manifest, err := certs.JSONCodec{}.DecodeManifest(raw)
	s.Require().NoError(err)
	s.Equal("vol", manifest.ScopeName)
	s.Equal(scopeVersion, manifest.ScopeVersion)
	s.Len(manifest.Entries, 2)

	sig := manifest.Signature
	manifest.Signature = nil
	body, err := certs.JSONCodec{}.EncodeManifest(manifest)
	s.Require().NoError(err)
	s.True(keys.Verify(s.issuerPub, body, sig))
}

func (s *IssuerTestSuite) TestStaleManifestVersionRedirects() {
	scopeVersion, err := s.scope.Current(s.ctx)
	s.Require().NoError(err)

	_, err = s.reg.Update(s.ctx, s.gatewayID, map[string]any{"port": 40000})
	s.Require().NoError(err)
	currentScope, err := s.scope.Current(s.ctx)
	s.Require().NoError(err)
	s.Greater(currentScope, scopeVersion)

	_, err = s.issuer.IssueManifest(s.ctx, "vol", scopeVersion)
	var redirect *certs.RedirectError
	s.Require().ErrorAs(err, &redirect)
	s.Equal(certs.ManifestPath("vol", currentScope), redirect.Location)
}
