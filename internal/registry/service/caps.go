package service

import (
	"context"

	"syndic/internal/registry/audit"
	"syndic/internal/registry/models"
	"syndic/internal/registry/store"
	dErrors "syndic/pkg/domain-errors"
	"syndic/pkg/requestcontext"
)

// SetCapabilities replaces a gateway's capability mask, clamped to what its
// kind permits. Certificates embed the mask, but a capability change
// deliberately does not bump cert_version: peers pick up the new mask the
// next time they fetch the certificate or open a session, without forcing a
// scope-wide refresh.
func (r *Registry) SetCapabilities(ctx context.Context, id int64, requested models.Caps) (*models.Gateway, error) {
	ctx, span := r.tracer.Start(ctx, "registry.SetCapabilities")
	defer span.End()

	ownerID := requestcontext.OwnerID(ctx)
	if ownerID == 0 {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "no owner principal in context")
	}

	recordKey := store.GatewayKey(id)
	var updated *models.Gateway
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

		granted := models.ClampCaps(g.Kind, requested)
		if granted != requested {
			r.logWarn(ctx, "capability request clamped by kind",
				"gateway_id", id, "kind", g.Kind.String(),
				"requested", uint64(requested), "granted", uint64(granted))
		}
		if g.Caps == granted {
			updated = g
			return nil
		}
		g.Caps = granted

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
		return nil, translateStore(txErr, "no such gateway")
	}

	r.invalidate(ctx, id, updated.Name)
	r.publishAudit(ctx, audit.Event{
		Time:        requestcontext.Now(ctx),
		Action:      audit.ActionCapsChanged,
		GatewayID:   id,
		GatewayName: updated.Name,
		ActorID:     ownerID,
		RequestID:   requestcontext.RequestID(ctx),
		Detail:      map[string]any{"caps": uint64(updated.Caps)},
	})
	return updated, nil
}
