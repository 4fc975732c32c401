package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"syndic/internal/registry/audit"
	"syndic/internal/registry/keys"
	"syndic/internal/registry/models"
	"syndic/internal/registry/store"
	dErrors "syndic/pkg/domain-errors"
	"syndic/pkg/requestcontext"
)

// Create registers a new gateway and returns its ID.
//
// The owner comes from the authenticated principal and the kind from the
// caller's endpoint, never from attributes. A random 63-bit ID is drawn and
// the name reservation plus the record are inserted concurrently via
// get-or-insert; the post-hoc cross-check decides who actually won. On a
// lost race the speculative sibling write is abandoned through the deferred
// sink and the caller gets a conflict error. An id_conflict is retryable
// with a fresh random ID; a name_conflict is not.
func (r *Registry) Create(ctx context.Context, kind models.Kind, params models.CreateParams) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "registry.Create")
	defer span.End()
	start := time.Now()

	ownerID := requestcontext.OwnerID(ctx)
	if ownerID == 0 {
		return 0, dErrors.New(dErrors.CodeUnauthorized, "no owner principal in context")
	}
	if !kind.Valid() {
		return 0, dErrors.WithFields(dErrors.CodeInvalidField, "unknown gateway kind", []string{"kind"})
	}

	if missing := params.MissingFields(); len(missing) > 0 {
		return 0, dErrors.WithFields(dErrors.CodeMissingField, "missing required attributes", missing)
	}
	if invalid := params.InvalidFields(r.keyBits); len(invalid) > 0 {
		return 0, dErrors.WithFields(dErrors.CodeInvalidField, "attributes failed validation", invalid)
	}

	// Server-held session keypair, generated when the caller brings none.
	sessionPub, sessionPriv := params.SessionPublicKey, params.SessionPrivateKey
	if sessionPub == "" || sessionPriv == "" {
		var err error
		sessionPub, sessionPriv, err = keys.GenerateKeyPair(r.keyBits)
		if err != nil {
			return 0, dErrors.Wrap(err, dErrors.CodeInternal, "generate session keypair")
		}
	}

	g := &models.Gateway{
		ID:                r.randID(),
		OwnerID:           ownerID,
		Kind:              kind,
		Name:              params.Name,
		Host:              params.Host,
		Port:              params.Port,
		ControlKey:        params.ControlKey,
		SessionPublicKey:  sessionPub,
		SessionPrivateKey: sessionPriv,
		Caps:              models.ClampCaps(kind, params.Caps),
		SessionTimeout:    params.SessionTimeout,
		SessionExpires:    defaultExpiry(params.SessionExpires),
		CertVersion:       1,
		CertExpires:       defaultExpiry(params.CertExpires),
		Config:            params.Config,
		Blocksize:         models.DefaultBlocksize(kind),
	}

	recordRaw, err := encodeGateway(g)
	if err != nil {
		return 0, err
	}
	reservationRaw, err := encodeReservation(&models.NameReservation{Name: g.Name, GatewayID: g.ID})
	if err != nil {
		return 0, err
	}

	gatewayKey := store.GatewayKey(g.ID)
	reservationKey := store.ReservationKey(g.Name)

	// Reserve the name and insert the record concurrently; there's a good
	// chance both succeed and no cross-entity lock is ever taken.
	var committedReservation, committedRecord []byte
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		committed, _, err := r.store.GetOrInsert(egCtx, reservationKey, reservationRaw)
		committedReservation = committed
		return err
	})
	eg.Go(func() error {
		committed, _, err := r.store.GetOrInsert(egCtx, gatewayKey, recordRaw)
		committedRecord = committed
		return err
	})
	if err := eg.Wait(); err != nil {
		return 0, translateStore(err, "gateway")
	}

	reservation, err := decodeReservation(committedReservation)
	if err != nil {
		return 0, err
	}
	record, err := decodeGateway(committedRecord)
	if err != nil {
		return 0, err
	}

	if reservation.GatewayID != g.ID {
		// Name collision: someone else holds the name. Abandon our record.
		r.sink.Schedule(func(cleanCtx context.Context) {
			if err := r.store.Delete(cleanCtx, gatewayKey); err != nil {
				r.logError(cleanCtx, "abandoning collided record failed", "key", gatewayKey, "error", err)
			}
		})
		if r.metrics != nil {
			r.metrics.NameConflicts.Inc()
		}
		return 0, dErrors.Newf(dErrors.CodeNameConflict, "gateway %q already exists", g.Name)
	}

	if record.ID != g.ID {
		// ID collision: another create won the same random ID. Abandon our
		// reservation; the caller retries with a fresh ID.
		r.sink.Schedule(func(cleanCtx context.Context) {
			if err := r.store.Delete(cleanCtx, reservationKey); err != nil {
				r.logError(cleanCtx, "abandoning collided reservation failed", "key", reservationKey, "error", err)
			}
		})
		if r.metrics != nil {
			r.metrics.IDConflicts.Inc()
		}
		return 0, dErrors.New(dErrors.CodeIDConflict, "gateway ID collision, retry with a new id")
	}

	if r.metrics != nil {
		r.metrics.GatewaysCreated.Inc()
		r.metrics.ObserveCreate(start)
	}
	r.publishAudit(ctx, audit.Event{
		Time:        requestcontext.Now(ctx),
		Action:      audit.ActionCreated,
		GatewayID:   g.ID,
		GatewayName: g.Name,
		ActorID:     ownerID,
		RequestID:   requestcontext.RequestID(ctx),
	})
	return g.ID, nil
}

func defaultExpiry(v int64) int64 {
	if v == 0 {
		return models.NeverExpires
	}
	return v
}
