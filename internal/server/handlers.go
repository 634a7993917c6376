package server

import (
	"encoding/json"
	"net/http"
)

// handleHealth reports liveness plus a quick ping of every database.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := "healthy"
	code := http.StatusOK
	databases := make(map[string]string, len(s.databases))
	for name, db := range s.databases {
		if db == nil {
			continue
		}
		if err := db.QuickCheck(ctx); err != nil {
			databases[name] = err.Error()
			status = "unhealthy"
			code = http.StatusServiceUnavailable
			continue
		}
		databases[name] = "ok"
	}

	s.writeJSON(w, code, map[string]interface{}{
		"status":    status,
		"service":   "ballast",
		"databases": databases,
	})
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
