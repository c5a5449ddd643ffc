package gateway

import (
	"encoding/json"
	"net/http"
)

// HealthResponse is the JSON body for GET /health.
type HealthResponse struct {
	Status string `json:"status"` // "ok" or "stopping"
	Mode   string `json:"mode"`   // "webhook" or "polling"
}

// handleHealth returns an http.HandlerFunc for GET /health. The check
// is independent of the update-processing path: it reports 200 as long
// as the transport receive loop is alive, 503 otherwise.
func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{
			Status: "ok",
			Mode:   s.mode,
		}
		if s.alive != nil && !s.alive() {
			resp.Status = "stopping"
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
