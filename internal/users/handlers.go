package users

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"acquisitions-gateway/middleware/admission/domain"
	"acquisitions-gateway/middleware/envelope"
	"acquisitions-gateway/middleware/identity"
)

const maxBodyBytes = 1 << 20

// Handler atende /api/users. Autenticação e papel por rota ficam com os guards;
// aqui só vale a regra "o próprio usuário ou admin".
type Handler struct {
	dir *Directory
	log *zap.Logger
}

func NewHandler(dir *Directory, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{dir: dir, log: log}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	all := h.dir.List(r.Context())
	h.log.Info("Fetched all users", zap.Int("count", len(all)))
	envelope.JSON(w, http.StatusOK, map[string]any{
		"message": "Successfully retrieved users",
		"users":   all,
		"count":   len(all),
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.selfOrAdmin(w, r, id, "You can only access your own information") {
		return
	}

	u, err := h.dir.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	envelope.JSON(w, http.StatusOK, map[string]any{
		"message": "User retrieved successfully",
		"user":    u,
	})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.selfOrAdmin(w, r, id, "You can only update your own information") {
		return
	}

	var upd Update
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&upd); err != nil {
		envelope.Write(w, http.StatusBadRequest, "Validation failed", "request body must be a JSON object with name, email or role")
		return
	}

	p, _ := identity.PrincipalFrom(r.Context())
	if upd.Role != nil && p.EffectiveRole() != domain.RoleAdmin {
		envelope.Write(w, http.StatusForbidden, envelope.ErrForbidden, "Only admin users can change user roles")
		return
	}

	u, err := h.dir.Update(r.Context(), id, upd)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.log.Info("User updated", zap.String("userId", u.ID), zap.String("by", p.ID))
	envelope.JSON(w, http.StatusOK, map[string]any{
		"message": "User updated successfully",
		"user":    u,
	})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	u, err := h.dir.Delete(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	p, _ := identity.PrincipalFrom(r.Context())
	h.log.Info("User deleted", zap.String("userId", u.ID), zap.String("by", p.ID))
	envelope.JSON(w, http.StatusOK, map[string]any{
		"message": "User deleted successfully",
		"user":    u,
	})
}

func (h *Handler) selfOrAdmin(w http.ResponseWriter, r *http.Request, id, message string) bool {
	p, ok := identity.PrincipalFrom(r.Context())
	if !ok {
		envelope.Fault(w)
		return false
	}
	if p.EffectiveRole() == domain.RoleAdmin || p.ID == id {
		return true
	}
	envelope.Write(w, http.StatusForbidden, envelope.ErrForbidden, message)
	return false
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	switch {
	case errors.Is(err, ErrUserNotFound):
		envelope.Write(w, http.StatusNotFound, "User not found", err.Error())
	case errors.As(err, &verr):
		envelope.Write(w, http.StatusBadRequest, "Validation failed", verr.Error())
	default:
		h.log.Error("users handler failed", zap.Error(err))
		envelope.Write(w, http.StatusInternalServerError, envelope.ErrInternal, "")
	}
}
