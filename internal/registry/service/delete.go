package service

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"syndic/internal/registry/audit"
	"syndic/internal/registry/store"
	dErrors "syndic/pkg/domain-errors"
	"syndic/pkg/platform/sentinel"
	"syndic/pkg/requestcontext"
)

// Delete removes a gateway, its name reservation, and every cache entry
// serving it. Deleting an absent gateway succeeds: the operation's outcome
// is "the gateway does not exist", which already holds, and retries after a
// half-failed attempt must converge rather than error.
func (r *Registry) Delete(ctx context.Context, id int64) error {
	ctx, span := r.tracer.Start(ctx, "registry.Delete")
	defer span.End()

	ownerID := requestcontext.OwnerID(ctx)
	if ownerID == 0 {
		return dErrors.New(dErrors.CodeUnauthorized, "no owner principal in context")
	}

	g, err := r.readByID(ctx, id, false)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			return nil
		}
		return err
	}
	if !g.OwnedBy(ownerID) {
		return dErrors.New(dErrors.CodeForbidden, "gateway belongs to another owner")
	}

	reservationKey := store.ReservationKey(g.Name)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return r.store.Delete(egCtx, store.GatewayKey(id))
	})
	eg.Go(func() error {
		// Release the reservation only while it still points at this record;
		// after a crashed rename it may already belong to another gateway.
		raw, err := r.store.Get(egCtx, reservationKey)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil
			}
			return err
		}
		holder, err := decodeReservation(raw)
		if err != nil || holder.GatewayID != id {
			return nil
		}
		return r.store.Delete(egCtx, reservationKey)
	})
	if err := eg.Wait(); err != nil {
		return translateStore(err, "no such gateway")
	}

	r.invalidate(ctx, id, g.Name)

	if r.scope != nil {
		if _, err := r.scope.Bump(ctx); err != nil {
			r.logError(ctx, "scope version bump failed", "gateway_id", id, "error", err)
		}
	}
	if r.metrics != nil {
		r.metrics.GatewaysDeleted.Inc()
	}
	r.publishAudit(ctx, audit.Event{
		Time:        requestcontext.Now(ctx),
		Action:      audit.ActionDeleted,
		GatewayID:   id,
		GatewayName: g.Name,
		ActorID:     ownerID,
		RequestID:   requestcontext.RequestID(ctx),
	})
	return nil
}
