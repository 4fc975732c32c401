package httptransport

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"syndic/internal/registry/models"
	dErrors "syndic/pkg/domain-errors"
	"syndic/pkg/requestcontext"
)

type gatewayCtxKey struct{}

// requestIDMiddleware tags every request with an ID for log correlation,
// honoring one supplied by the caller.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ownerAuth authenticates the control-plane caller from a bearer token and
// puts the owner principal on the context. Every registry mutation reads the
// principal from there, never from the request body.
func (h *Handler) ownerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
			return
		}
		ownerID, err := h.tokens.ExtractOwnerID(token)
		if err != nil {
			writeError(w, err)
			return
		}
		ctx := requestcontext.WithOwnerID(r.Context(), ownerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// gatewayAuth authenticates a gateway session from basic credentials. The
// username is "<KIND>_<id>" ("UG_123"), the password is the session password
// handed out at registration.
func (h *Handler) gatewayAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			writeError(w, dErrors.New(dErrors.CodeUnauthorized, "missing gateway credentials"))
			return
		}
		kindStr, idStr, found := strings.Cut(username, "_")
		if !found {
			writeError(w, dErrors.New(dErrors.CodeUnauthorized, "malformed gateway username"))
			return
		}
		kind, ok := models.ParseKind(kindStr)
		if !ok {
			writeError(w, dErrors.New(dErrors.CodeUnauthorized, "malformed gateway username"))
			return
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			writeError(w, dErrors.New(dErrors.CodeUnauthorized, "malformed gateway username"))
			return
		}

		g, err := h.registry.Authenticate(r.Context(), kind, id, password)
		if err != nil {
			writeError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), gatewayCtxKey{}, g)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authedGateway returns the gateway put on the context by gatewayAuth.
func authedGateway(ctx context.Context) (*models.Gateway, bool) {
	g, ok := ctx.Value(gatewayCtxKey{}).(*models.Gateway)
	return g, ok
}
