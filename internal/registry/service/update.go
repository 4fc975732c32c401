package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"syndic/internal/registry/audit"
	"syndic/internal/registry/models"
	"syndic/internal/registry/store"
	dErrors "syndic/pkg/domain-errors"
	"syndic/pkg/platform/sentinel"
	"syndic/pkg/requestcontext"
)

// Update applies a loose field map to a gateway record. Writable fields
// only; a change to any cert-relevant field bumps the record's cert_version
// and the scope version so stale certificates stop verifying. A rename
// reserves the new name before the record transaction ever starts, so the
// global uniqueness invariant holds at every instant.
func (r *Registry) Update(ctx context.Context, id int64, fields map[string]any) (*models.Gateway, error) {
	ctx, span := r.tracer.Start(ctx, "registry.Update")
	defer span.End()
	start := time.Now()

	ownerID := requestcontext.OwnerID(ctx)
	if ownerID == 0 {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "no owner principal in context")
	}
	if len(fields) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "no fields to update")
	}
	if err := models.ValidateFields(fields); err != nil {
		return nil, err
	}
	if err := models.ValidateWrite(fields); err != nil {
		return nil, err
	}

	current, err := r.readByID(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if !current.OwnedBy(ownerID) {
		return nil, dErrors.New(dErrors.CodeForbidden, "gateway belongs to another owner")
	}

	oldName := current.Name
	newName := oldName
	if v, ok := fields[models.FieldName]; ok {
		newName = v.(string)
	}
	renaming := newName != oldName

	// Reserve the new name before touching the record. If the record write
	// then fails, the speculative reservation is released by compensation;
	// the name is briefly over-reserved but never under-reserved.
	insertedNew := false
	if renaming {
		reservationRaw, err := encodeReservation(&models.NameReservation{Name: newName, GatewayID: id})
		if err != nil {
			return nil, err
		}
		committed, inserted, err := r.store.GetOrInsert(ctx, store.ReservationKey(newName), reservationRaw)
		if err != nil {
			return nil, translateStore(err, "gateway")
		}
		insertedNew = inserted
		holder, err := decodeReservation(committed)
		if err != nil {
			return nil, err
		}
		if holder.GatewayID != id {
			if r.metrics != nil {
				r.metrics.NameConflicts.Inc()
			}
			return nil, dErrors.Newf(dErrors.CodeNameConflict, "gateway %q already exists", newName)
		}
	}

	recordKey := store.GatewayKey(id)
	var (
		updated       *models.Gateway
		changed       []string
		bumpedVersion bool
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

		changed = changed[:0]
		bumpedVersion = false
		for key, value := range fields {
			if !models.WouldChange(g, key, value) {
				continue
			}
			if err := models.Apply(g, key, value); err != nil {
				return err
			}
			changed = append(changed, key)
			if models.CertRelevant(key) {
				bumpedVersion = true
			}
		}
		if len(changed) == 0 {
			updated = g
			return nil
		}
		if bumpedVersion {
			g.CertVersion++
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
		if renaming && insertedNew {
			// The write never landed, whether the record vanished under a
			// concurrent delete or the store gave up on the transaction.
			// Release the speculative reservation so the name does not leak;
			// the guarded re-read inside releaseReservation makes this a
			// no-op if a concurrent create already owns the name.
			r.releaseReservation(newName, id)
		}
		return nil, translateStore(txErr, "no such gateway")
	}

	r.invalidate(ctx, id, oldName, newName)

	if renaming {
		// The old name stays reserved until this runs; a create racing the
		// rename may see a transient conflict on the old name, never a
		// duplicate.
		r.releaseReservation(oldName, id)
	}
	if bumpedVersion && r.scope != nil {
		if _, err := r.scope.Bump(ctx); err != nil {
			r.logError(ctx, "scope version bump failed", "gateway_id", id, "error", err)
		}
	}

	if len(changed) > 0 {
		sort.Strings(changed)
		if r.metrics != nil {
			r.metrics.ObserveUpdate(start)
		}
		r.publishAudit(ctx, audit.Event{
			Time:        requestcontext.Now(ctx),
			Action:      audit.ActionUpdated,
			GatewayID:   id,
			GatewayName: updated.Name,
			ActorID:     ownerID,
			RequestID:   requestcontext.RequestID(ctx),
			Detail:      map[string]any{"fields": changed, "cert_version": updated.CertVersion},
		})
	}
	return updated, nil
}

// releaseReservation deletes a name reservation through the deferred sink,
// but only while it still points at the expected gateway. Reservations are
// never deleted blind: a concurrent create may already own the name again.
func (r *Registry) releaseReservation(name string, expectID int64) {
	key := store.ReservationKey(name)
	r.sink.Schedule(func(ctx context.Context) {
		raw, err := r.store.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, sentinel.ErrNotFound) {
				r.logError(ctx, "reservation release read failed", "name", name, "error", err)
			}
			return
		}
		holder, err := decodeReservation(raw)
		if err != nil || holder.GatewayID != expectID {
			return
		}
		if err := r.store.Delete(ctx, key); err != nil {
			r.logError(ctx, "reservation release failed", "name", name, "error", err)
		}
	})
}

// invalidate evicts every cache entry that could serve the old state of the
// record. Eviction happens before the mutation reports success; a failed
// eviction is logged and retried once through the sink.
func (r *Registry) invalidate(ctx context.Context, id int64, names ...string) {
	keys := []string{store.GatewayKey(id)}
	seen := map[string]struct{}{}
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		keys = append(keys, store.NameMappingKey(name))
	}
	for _, key := range keys {
		if err := r.cache.Delete(ctx, key); err != nil {
			r.logWarn(ctx, "cache eviction failed, retrying deferred", "key", key, "error", err)
			key := key
			r.sink.Schedule(func(retryCtx context.Context) {
				if err := r.cache.Delete(retryCtx, key); err != nil {
					r.logError(retryCtx, "cache eviction retry failed", "key", key, "error", err)
				}
			})
		}
	}
}
