// Package envelope escreve as respostas JSON de erro do gateway no formato
// único {error, message}.
package envelope

import (
	"encoding/json"
	"net/http"
)

// Body é o corpo de toda resposta de negação ou falha.
type Body struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Mensagens fixas usadas pelos middlewares.
const (
	ErrForbidden    = "Forbidden"
	ErrInternal     = "Internal server error"
	ErrUnauthorized = "Unauthorized"
	ErrUnavailable  = "Service Unavailable"
	ErrNotFound     = "Route not found"

	MsgBot        = "Automated requests are not permitted"
	MsgShield     = "Request was non compliant according to security policy"
	MsgRateLimit  = "Too many requests"
	MsgFault      = "An issue occured with the security middleware"
	MsgAuthN      = "Authentication required"
	MsgAuthZ      = "Insufficient permissions"
	MsgAtCapacity = "Server is at capacity"
)

// JSON escreve v como JSON com o status informado.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Write escreve o envelope de erro.
func Write(w http.ResponseWriter, status int, errText, message string) {
	JSON(w, status, Body{Error: errText, Message: message})
}

func Forbidden(w http.ResponseWriter, message string) {
	Write(w, http.StatusForbidden, ErrForbidden, message)
}

// Fault responde 500 sem vazar detalhes internos.
func Fault(w http.ResponseWriter) {
	Write(w, http.StatusInternalServerError, ErrInternal, MsgFault)
}

func NotFound(w http.ResponseWriter) {
	Write(w, http.StatusNotFound, ErrNotFound, "")
}
