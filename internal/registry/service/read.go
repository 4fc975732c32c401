package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"syndic/internal/registry/models"
	"syndic/internal/registry/store"
	dErrors "syndic/pkg/domain-errors"
	"syndic/pkg/platform/sentinel"
)

// Read resolves a gateway by numeric ID or by name. Reads on the
// certificate critical path pass useCache=true and may be served a slightly
// stale record; control-plane callers pass false and always hit the store.
func (r *Registry) Read(ctx context.Context, nameOrID string, useCache bool) (*models.Gateway, error) {
	ctx, span := r.tracer.Start(ctx, "registry.Read")
	defer span.End()
	start := time.Now()

	var (
		g   *models.Gateway
		err error
	)
	if id, ok := parseID(nameOrID); ok {
		g, err = r.readByID(ctx, id, useCache)
	} else {
		g, err = r.readByName(ctx, nameOrID, useCache)
	}
	if err != nil {
		return nil, err
	}
	if r.metrics != nil {
		r.metrics.ObserveRead(start)
	}
	return g, nil
}

// ResolveID returns the gateway ID behind a name or numeric-ID string.
func (r *Registry) ResolveID(ctx context.Context, nameOrID string) (int64, error) {
	if id, ok := parseID(nameOrID); ok {
		return id, nil
	}
	g, err := r.readByName(ctx, nameOrID, false)
	if err != nil {
		return 0, err
	}
	return g.ID, nil
}

func (r *Registry) readByID(ctx context.Context, id int64, useCache bool) (*models.Gateway, error) {
	key := store.GatewayKey(id)
	if useCache {
		if raw, err := r.cache.Get(ctx, key); err == nil {
			if r.metrics != nil {
				r.metrics.CacheHits.Inc()
			}
			return decodeGateway(raw)
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			r.logWarn(ctx, "read cache unavailable", "key", key, "error", err)
		}
		if r.metrics != nil {
			r.metrics.CacheMisses.Inc()
		}
	}

	raw, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, translateStore(err, "no such gateway")
	}
	g, err := decodeGateway(raw)
	if err != nil {
		return nil, err
	}
	if useCache {
		if err := r.cache.Set(ctx, key, raw); err != nil {
			r.logWarn(ctx, "read cache populate failed", "key", key, "error", err)
		}
	}
	return g, nil
}

// readByName goes through the name reservation, which doubles as the
// name-to-ID index. The cache additionally holds a name2id mapping so hot
// certificate reads by name skip the reservation lookup entirely.
func (r *Registry) readByName(ctx context.Context, name string, useCache bool) (*models.Gateway, error) {
	mappingKey := store.NameMappingKey(name)
	if useCache {
		if raw, err := r.cache.Get(ctx, mappingKey); err == nil {
			if id, perr := strconv.ParseInt(string(raw), 10, 64); perr == nil {
				g, rerr := r.readByID(ctx, id, true)
				if rerr == nil && g.Name == name {
					return g, nil
				}
				// Stale mapping; drop it and fall through to the store.
				if derr := r.cache.Delete(ctx, mappingKey); derr != nil {
					r.logWarn(ctx, "stale name mapping not evicted", "name", name, "error", derr)
				}
			}
		}
	}

	raw, err := r.store.Get(ctx, store.ReservationKey(name))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "no gateway named %q", name)
		}
		return nil, translateStore(err, "no such gateway")
	}
	reservation, err := decodeReservation(raw)
	if err != nil {
		return nil, err
	}

	g, err := r.readByID(ctx, reservation.GatewayID, false)
	switch {
	case err == nil && g.Name == name:
		if useCache {
			// Populate the mapping and the record in one round trip so the
			// next cached read by this name is a pure cache hit.
			record, eerr := encodeGateway(g)
			if eerr != nil {
				return nil, eerr
			}
			entries := map[string][]byte{
				mappingKey:             []byte(strconv.FormatInt(g.ID, 10)),
				store.GatewayKey(g.ID): record,
			}
			if cerr := r.cache.SetMulti(ctx, entries); cerr != nil {
				r.logWarn(ctx, "name mapping populate failed", "name", name, "error", cerr)
			}
		}
		return g, nil
	case err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound):
		return nil, err
	}

	// The reservation points at a record that is gone or carries a different
	// name. Either a rename or delete is mid-flight, or a crashed compensation
	// left the reservation behind. Fall back to a scan to tell the two apart.
	return r.findByNameScan(ctx, name, reservation.GatewayID)
}

// findByNameScan is the slow recovery path for a reservation that disagrees
// with its record. Zero matching records means the name is simply not in use
// right now; a single match means the reservation is lagging a rename and
// the record is authoritative; more than one holder of the same name is a
// broken invariant worth failing loudly on.
func (r *Registry) findByNameScan(ctx context.Context, name string, reservedID int64) (*models.Gateway, error) {
	records, err := r.store.ListPrefix(ctx, store.GatewayPrefix())
	if err != nil {
		return nil, translateStore(err, "no such gateway")
	}
	var matches []*models.Gateway
	for key, raw := range records {
		g, derr := decodeGateway(raw)
		if derr != nil {
			r.logError(ctx, "skipping corrupt gateway record", "key", key, "error", derr)
			continue
		}
		if g.Name == name {
			matches = append(matches, g)
		}
	}
	switch len(matches) {
	case 0:
		r.logWarn(ctx, "reservation with no live record", "name", name, "reserved_id", reservedID)
		return nil, dErrors.Newf(dErrors.CodeNotFound, "no gateway named %q", name)
	case 1:
		return matches[0], nil
	default:
		r.logError(ctx, "multiple gateways share a name", "name", name, "count", len(matches))
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "name %q has multiple holders", name)
	}
}

// ListAll returns every gateway record in the scope, for manifest assembly.
// The scan is eventually consistent; manifest freshness is bounded by the
// scope version the caller negotiated, not by this listing.
func (r *Registry) ListAll(ctx context.Context) ([]*models.Gateway, error) {
	records, err := r.store.ListPrefix(ctx, store.GatewayPrefix())
	if err != nil {
		return nil, translateStore(err, "gateway listing failed")
	}
	gateways := make([]*models.Gateway, 0, len(records))
	for key, raw := range records {
		g, derr := decodeGateway(raw)
		if derr != nil {
			r.logError(ctx, "skipping corrupt gateway record", "key", key, "error", derr)
			continue
		}
		gateways = append(gateways, g)
	}
	return gateways, nil
}
