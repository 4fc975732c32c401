// Package httptransport is the thin HTTP layer over the registry and the
// certificate issuer. Handlers delegate to domain services and translate
// coded errors to statuses; no business logic lives here.
package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"syndic/internal/jwtauth"
	"syndic/internal/registry/certs"
	"syndic/internal/registry/service"
	dErrors "syndic/pkg/domain-errors"
)

// Handler carries the services the routes delegate to.
type Handler struct {
	registry *service.Registry
	issuer   *certs.Issuer
	tokens   *jwtauth.Service
	logger   *slog.Logger
	health   func(ctx context.Context) error
}

func NewHandler(registry *service.Registry, issuer *certs.Issuer, tokens *jwtauth.Service, logger *slog.Logger, health func(ctx context.Context) error) *Handler {
	return &Handler{registry: registry, issuer: issuer, tokens: tokens, logger: logger, health: health}
}

// NewRouter wires all endpoints. The certificate routes are unauthenticated
// and cacheable; everything served there is signed and speaks for itself.
// The gateway routes need an owner bearer token, and /whoami needs gateway
// session credentials.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/cert/{scope}/{scopeVersion}", func(r chi.Router) {
		r.Get("/manifest", h.handleManifest)
		r.Get("/{kind}/{id}/{certVersion}", h.handleCert)
	})

	// One wildcard name for the whole subtree: POST's {ref} is a kind short
	// form, everywhere else it is a gateway name or numeric ID.
	r.Route("/gateway", func(r chi.Router) {
		r.Use(h.ownerAuth)
		r.Post("/{ref}", h.handleCreate)
		r.Get("/{ref}", h.handleRead)
		r.Patch("/{ref}", h.handleUpdate)
		r.Put("/{ref}/caps", h.handleSetCaps)
		r.Delete("/{ref}", h.handleDelete)
		r.Post("/{ref}/session", h.handleRegenerateSession)
	})

	r.With(h.gatewayAuth).Get("/whoami", h.handleWhoami)
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			writeError(w, dErrors.Wrap(err, dErrors.CodeStoreUnavailable, "dependency unhealthy"))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError translates coded domain errors into the JSON error envelope.
// Redirects pass through as 302 with a Location; they are version
// negotiation, not failures.
func writeError(w http.ResponseWriter, err error) {
	var redirect *certs.RedirectError
	if errors.As(err, &redirect) {
		w.Header().Set("Location", redirect.Location)
		w.WriteHeader(http.StatusFound)
		return
	}

	code := dErrors.CodeOf(err)
	body := map[string]any{"error": string(code)}
	if msg := err.Error(); msg != "" {
		body["message"] = msg
	}
	if fields := dErrors.FieldsOf(err); len(fields) > 0 {
		body["fields"] = fields
	}
	writeJSON(w, statusOf(code), body)
}

func statusOf(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeMissingField, dErrors.CodeInvalidField, dErrors.CodeReadOnlyField:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized, dErrors.CodeBadSignature:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeNameConflict, dErrors.CodeIDConflict:
		return http.StatusConflict
	case dErrors.CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
