package users

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acquisitions-gateway/middleware/admission/domain"
	"acquisitions-gateway/middleware/identity"
)

func router(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/users", h.List)
	r.Get("/api/users/{id}", h.Get)
	r.Post("/api/users/{id}", h.Update)
	r.Delete("/api/users/{id}", h.Delete)
	return r
}

func call(t *testing.T, h http.Handler, p domain.Principal, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req = req.WithContext(identity.WithPrincipal(req.Context(), p))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

var (
	admin = domain.Principal{ID: "1", Role: domain.RoleAdmin}
	jane  = domain.Principal{ID: "2", Role: domain.RoleUser}
)

func TestHandler_List(t *testing.T) {
	h := router(NewHandler(seed(), nil))

	w := call(t, h, admin, http.MethodGet, "/api/users", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Message string `json:"message"`
		Users   []User `json:"users"`
		Count   int    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Len(t, body.Users, 2)
}

func TestHandler_GetSelfOrAdmin(t *testing.T) {
	h := router(NewHandler(seed(), nil))

	assert.Equal(t, http.StatusOK, call(t, h, jane, http.MethodGet, "/api/users/2", "").Code)
	assert.Equal(t, http.StatusOK, call(t, h, admin, http.MethodGet, "/api/users/2", "").Code)

	w := call(t, h, jane, http.MethodGet, "/api/users/1", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"Forbidden","message":"You can only access your own information"}`, w.Body.String())

	w = call(t, h, admin, http.MethodGet, "/api/users/99", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"User not found","message":"user not found"}`, w.Body.String())
}

func TestHandler_UpdateRules(t *testing.T) {
	h := router(NewHandler(seed(), nil))

	w := call(t, h, jane, http.MethodPost, "/api/users/2", `{"name":"Jane Smith"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Jane Smith")

	w = call(t, h, jane, http.MethodPost, "/api/users/2", `{"role":"admin"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"Forbidden","message":"Only admin users can change user roles"}`, w.Body.String())

	w = call(t, h, jane, http.MethodPost, "/api/users/1", `{"name":"Hacked"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = call(t, h, admin, http.MethodPost, "/api/users/2", `{"role":"admin"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = call(t, h, admin, http.MethodPost, "/api/users/2", `{"email":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Validation failed")

	w = call(t, h, admin, http.MethodPost, "/api/users/2", `{"nickname":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Delete(t *testing.T) {
	h := router(NewHandler(seed(), nil))

	w := call(t, h, admin, http.MethodDelete, "/api/users/2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "User deleted successfully")

	assert.Equal(t, http.StatusNotFound, call(t, h, admin, http.MethodDelete, "/api/users/2", "").Code)
}
