package server

import (
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"acquisitions-gateway/middleware/envelope"
)

func (s *Server) landing(w http.ResponseWriter, r *http.Request) {
	s.log.Info("Hello From the Landing Page")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "Hello From the Landing Page")
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	envelope.JSON(w, http.StatusOK, map[string]any{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"uptime":    time.Since(s.started).Seconds(),
	})
}

func (s *Server) apiInfo(w http.ResponseWriter, r *http.Request) {
	envelope.JSON(w, http.StatusOK, map[string]string{
		"message": "acquisitions-api is up and running \U0001F680",
	})
}

// notFound também responde métodos sem rota.
func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.log.Debug("route not found", zap.String("method", r.Method), zap.String("path", r.URL.Path))
	envelope.NotFound(w)
}
