package httptransport

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	dErrors "syndic/pkg/domain-errors"
)

func (h *Handler) handleManifest(w http.ResponseWriter, r *http.Request) {
	scope := chi.URLParam(r, "scope")
	scopeVersion, err := strconv.ParseInt(chi.URLParam(r, "scopeVersion"), 10, 64)
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "scope version must be an integer"))
		return
	}

	body, err := h.issuer.IssueManifest(r.Context(), scope, scopeVersion)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", h.issuer.Codec().ContentType())
	_, _ = w.Write(body)
}

func (h *Handler) handleCert(w http.ResponseWriter, r *http.Request) {
	scope := chi.URLParam(r, "scope")
	kind := chi.URLParam(r, "kind")
	scopeVersion, err := strconv.ParseInt(chi.URLParam(r, "scopeVersion"), 10, 64)
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "scope version must be an integer"))
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "gateway id must be an integer"))
		return
	}
	certVersion, err := strconv.ParseInt(chi.URLParam(r, "certVersion"), 10, 64)
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "cert version must be an integer"))
		return
	}

	body, err := h.issuer.IssueGateway(r.Context(), scope, scopeVersion, kind, id, certVersion)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", h.issuer.Codec().ContentType())
	_, _ = w.Write(body)
}
