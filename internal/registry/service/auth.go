package service

import (
	"context"

	"syndic/internal/registry/audit"
	"syndic/internal/registry/keys"
	"syndic/internal/registry/models"
	"syndic/internal/registry/session"
	"syndic/internal/registry/store"
	dErrors "syndic/pkg/domain-errors"
	"syndic/pkg/requestcontext"
)

// Authenticate verifies a gateway's session credentials: the kind and ID it
// claims plus the session password it was handed at registration. All
// failures collapse into one unauthorized error so a probe cannot tell a
// wrong password from a wrong ID.
func (r *Registry) Authenticate(ctx context.Context, kind models.Kind, id int64, password string) (*models.Gateway, error) {
	ctx, span := r.tracer.Start(ctx, "registry.Authenticate")
	defer span.End()

	denied := dErrors.New(dErrors.CodeUnauthorized, "gateway authentication failed")

	g, err := r.readByID(ctx, id, true)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil, denied
		}
		return nil, err
	}
	if g.Kind != kind {
		return nil, denied
	}
	if g.SessionPasswordHash == "" {
		return nil, denied
	}
	if !session.Verify(g.SessionPasswordHash, g.SessionPasswordSalt, password) {
		return nil, denied
	}
	if g.SessionExpires != models.NeverExpires && requestcontext.Now(ctx).Unix() >= g.SessionExpires {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "gateway session expired")
	}
	return g, nil
}

// VerifyMessage checks that data was signed by the gateway's control key.
func (r *Registry) VerifyMessage(g *models.Gateway, data, signature []byte) error {
	if !keys.Verify(g.ControlKey, data, signature) {
		return dErrors.New(dErrors.CodeBadSignature, "message signature does not verify")
	}
	return nil
}

// SignReply signs a reply with the gateway's server-held session private
// key. The gateway verifies it with the public half from its certificate.
func (r *Registry) SignReply(g *models.Gateway, data []byte) ([]byte, error) {
	sig, err := keys.Sign(g.SessionPrivateKey, data)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "sign reply")
	}
	return sig, nil
}

// RegenerateSession opens a fresh session for a gateway: new random
// password (returned exactly once, only the salted hash is stored) and a new
// expiry window. An optional replacement control key rotates the identity
// material, which is certificate-relevant and bumps both versions.
//
// Re-registration over a live session is allowed and simply supersedes it;
// the previous password stops verifying the moment the transaction commits.
func (r *Registry) RegenerateSession(ctx context.Context, id int64, newControlKey string) (string, *models.Gateway, error) {
	ctx, span := r.tracer.Start(ctx, "registry.RegenerateSession")
	defer span.End()

	ownerID := requestcontext.OwnerID(ctx)
	if ownerID == 0 {
		return "", nil, dErrors.New(dErrors.CodeUnauthorized, "no owner principal in context")
	}
	if newControlKey != "" && !keys.IsValidKey(newControlKey, r.keyBits) {
		return "", nil, dErrors.WithFields(dErrors.CodeInvalidField, "control key failed validation", []string{"control_key"})
	}

	password, hash, salt, err := session.GenerateSecrets()
	if err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeInternal, "generate session secrets")
	}

	recordKey := store.GatewayKey(id)
	var (
		updated    *models.Gateway
		keyRotated bool
	)
	txErr := r.store.RunTransaction(ctx, []string{recordKey}, func(tx store.Tx) error {
		raw, err := tx.Get(recordKey)
		if err != nil {
			return err
		}
		g, err := decodeGateway(raw)
		if err != nil {
			return err
		}
		if !g.OwnedBy(ownerID) {
			return dErrors.New(dErrors.CodeForbidden, "gateway belongs to another owner")
		}

		g.SessionPasswordHash = hash
		g.SessionPasswordSalt = salt
		if g.SessionTimeout > 0 {
			g.SessionExpires = requestcontext.Now(ctx).Unix() + g.SessionTimeout
		} else {
			g.SessionExpires = models.NeverExpires
		}

		keyRotated = false
		if newControlKey != "" && newControlKey != g.ControlKey {
			g.ControlKey = newControlKey
			g.CertVersion++
			keyRotated = true
		}

		out, err := encodeGateway(g)
		if err != nil {
			return err
		}
		if err := tx.Put(recordKey, out); err != nil {
			return err
		}
		updated = g
		return nil
	})
	if txErr != nil {
		return "", nil, translateStore(txErr, "no such gateway")
	}

	r.invalidate(ctx, id, updated.Name)
	if keyRotated && r.scope != nil {
		if _, err := r.scope.Bump(ctx); err != nil {
			r.logError(ctx, "scope version bump failed", "gateway_id", id, "error", err)
		}
	}

	r.publishAudit(ctx, audit.Event{
		Time:        requestcontext.Now(ctx),
		Action:      audit.ActionSessionReset,
		GatewayID:   id,
		GatewayName: updated.Name,
		ActorID:     ownerID,
		RequestID:   requestcontext.RequestID(ctx),
		Detail:      map[string]any{"control_key_rotated": keyRotated},
	})
	return password, updated, nil
}
