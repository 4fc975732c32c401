// Package service implements the gateway identity registry: ID allocation
// with collision avoidance, name uniqueness over get-or-insert, capability
// enforcement, session authentication, and cache-coherent updates against a
// store that only offers per-entity atomicity.
package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"syndic/internal/registry/audit"
	"syndic/internal/registry/cache"
	"syndic/internal/registry/deferred"
	"syndic/internal/registry/keys"
	"syndic/internal/registry/metrics"
	"syndic/internal/registry/models"
	"syndic/internal/registry/scope"
	"syndic/internal/registry/store"
	dErrors "syndic/pkg/domain-errors"
	"syndic/pkg/platform/sentinel"
)

// Registry coordinates the keyed store, the read cache, and the deferred
// sink to provide the gateway lifecycle operations.
type Registry struct {
	store   store.KeyedStore
	cache   cache.ReadCache
	sink    deferred.Sink
	scope   *scope.Manager
	audit   audit.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
	keyBits int
	randID  func() int64
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithMetrics attaches prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithAudit attaches an audit publisher.
func WithAudit(p audit.Publisher) Option {
	return func(r *Registry) { r.audit = p }
}

// WithKeyBits overrides the required RSA modulus size. Tests use small keys.
func WithKeyBits(bits int) Option {
	return func(r *Registry) { r.keyBits = bits }
}

// WithIDGenerator overrides random ID generation. Tests use it to force
// collisions deterministically.
func WithIDGenerator(fn func() int64) Option {
	return func(r *Registry) { r.randID = fn }
}

// New builds a Registry over the given store, cache, deferred sink, and
// certificate scope.
func New(s store.KeyedStore, c cache.ReadCache, sink deferred.Sink, sc *scope.Manager, opts ...Option) *Registry {
	r := &Registry{
		store:   s,
		cache:   c,
		sink:    sink,
		scope:   sc,
		audit:   audit.Nop{},
		tracer:  otel.Tracer("syndic/registry"),
		keyBits: keys.DefaultBits,
		randID:  randomID,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Scope returns the certificate scope this registry serves.
func (r *Registry) Scope() *scope.Manager { return r.scope }

// randomID draws a uniform non-negative 63-bit integer. Uniqueness is not
// assumed; Create detects collisions after the fact and retries.
func randomID() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic("crypto/rand unavailable: " + err.Error())
	}
	return int64(binary.BigEndian.Uint64(buf[:]) & (1<<63 - 1))
}

// parseID reports whether nameOrID is an ID. Names are forbidden from being
// purely numeric at validation time, so the two namespaces never collide.
func parseID(nameOrID string) (int64, bool) {
	id, err := strconv.ParseInt(nameOrID, 10, 64)
	return id, err == nil
}

func encodeGateway(g *models.Gateway) ([]byte, error) {
	raw, err := json.Marshal(g)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode gateway record")
	}
	return raw, nil
}

func decodeGateway(raw []byte) (*models.Gateway, error) {
	var g models.Gateway
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "gateway record is corrupt")
	}
	return &g, nil
}

func encodeReservation(res *models.NameReservation) ([]byte, error) {
	raw, err := json.Marshal(res)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode name reservation")
	}
	return raw, nil
}

func decodeReservation(raw []byte) (*models.NameReservation, error) {
	var res models.NameReservation
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvariantViolation, "name reservation is corrupt")
	}
	return &res, nil
}

// translateStore maps infrastructure sentinels onto coded domain errors.
func translateStore(err error, notFoundMsg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, notFoundMsg)
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "store unavailable")
	case errors.Is(err, sentinel.ErrAborted):
		return dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "transaction aborted")
	default:
		return err
	}
}

func (r *Registry) logWarn(ctx context.Context, msg string, args ...any) {
	if r.logger != nil {
		r.logger.WarnContext(ctx, msg, args...)
	}
}

func (r *Registry) logError(ctx context.Context, msg string, args ...any) {
	if r.logger != nil {
		r.logger.ErrorContext(ctx, msg, args...)
	}
}

func (r *Registry) publishAudit(ctx context.Context, event audit.Event) {
	if err := r.audit.Publish(ctx, event); err != nil {
		r.logWarn(ctx, "audit publish failed", "error", err)
	}
}
