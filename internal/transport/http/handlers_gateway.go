package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"syndic/internal/registry/models"
	dErrors "syndic/pkg/domain-errors"
)

// gatewayView is the API projection of a record: everything the owner may
// see, none of the stored secrets.
type gatewayView struct {
	ID               int64           `json:"id"`
	OwnerID          int64           `json:"owner_id"`
	Kind             string          `json:"kind"`
	Name             string          `json:"name"`
	Host             string          `json:"host"`
	Port             int             `json:"port"`
	Caps             uint64          `json:"caps"`
	CertVersion      int64           `json:"cert_version"`
	CertExpires      int64           `json:"cert_expires"`
	SessionExpires   int64           `json:"session_expires"`
	SessionTimeout   int64           `json:"session_timeout"`
	SessionPublicKey string          `json:"session_public_key"`
	Config           json.RawMessage `json:"config,omitempty"`
	Blocksize        int64           `json:"blocksize,omitempty"`
}

func viewOf(g *models.Gateway) gatewayView {
	return gatewayView{
		ID:               g.ID,
		OwnerID:          g.OwnerID,
		Kind:             g.Kind.String(),
		Name:             g.Name,
		Host:             g.Host,
		Port:             g.Port,
		Caps:             uint64(g.Caps),
		CertVersion:      g.CertVersion,
		CertExpires:      g.CertExpires,
		SessionExpires:   g.SessionExpires,
		SessionTimeout:   g.SessionTimeout,
		SessionPublicKey: g.SessionPublicKey,
		Config:           g.Config,
		Blocksize:        g.Blocksize,
	}
}

// pathID resolves the {ref} path segment, a gateway name or numeric ID, to
// the gateway's ID.
func (h *Handler) pathID(r *http.Request) (int64, error) {
	return h.registry.ResolveID(r.Context(), chi.URLParam(r, "ref"))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	kind, ok := models.ParseKind(chi.URLParam(r, "ref"))
	if !ok {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "unknown gateway kind"))
		return
	}
	var params models.CreateParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed request body"))
		return
	}

	id, err := h.registry.Create(r.Context(), kind, params)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (h *Handler) handleRead(w http.ResponseWriter, r *http.Request) {
	g, err := h.registry.Read(r.Context(), chi.URLParam(r, "ref"), false)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(g))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed request body"))
		return
	}

	g, err := h.registry.Update(r.Context(), id, fields)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(g))
}

func (h *Handler) handleSetCaps(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var body struct {
		Caps uint64 `json:"caps"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed request body"))
		return
	}

	g, err := h.registry.SetCapabilities(r.Context(), id, models.Caps(body.Caps))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(g))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.registry.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRegenerateSession(w http.ResponseWriter, r *http.Request) {
	id, err := h.pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var body struct {
		ControlKey string `json:"control_key"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "malformed request body"))
			return
		}
	}

	password, g, err := h.registry.RegenerateSession(r.Context(), id, body.ControlKey)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"password":        password,
		"session_expires": g.SessionExpires,
		"cert_version":    g.CertVersion,
	})
}

func (h *Handler) handleWhoami(w http.ResponseWriter, r *http.Request) {
	g, ok := authedGateway(r.Context())
	if !ok {
		writeError(w, dErrors.New(dErrors.CodeUnauthorized, "no authenticated gateway"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":           g.ID,
		"kind":         g.Kind.String(),
		"name":         g.Name,
		"caps":         uint64(g.Caps),
		"cert_version": g.CertVersion,
	})
}
