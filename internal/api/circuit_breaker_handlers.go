package api

import (
	"net/http"

	"github.com/gorilla/mux"

	apperrors "github.com/vaidashi/laundry-order-api/pkg/errors"
)

func (s *Server) getCircuitBreakersHandler(w http.ResponseWriter, r *http.Request) {
	states := make(map[string]interface{}, len(s.breakers))
	for name, b := range s.breakers {
		states[name] = b.GetMetrics()
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: states})
}

// resetCircuitBreakerHandler forces a breaker back to closed
func (s *Server) resetCircuitBreakerHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	b, ok := s.breakers[name]
	if !ok {
		s.respondWithAppError(w, apperrors.NewNotFoundError("Unknown circuit breaker "+name))
		return
	}

	b.Reset()
	s.logger.Info("Circuit breaker reset", "breaker", name)

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: map[string]string{
			"message": "Circuit breaker reset successfully",
			"name":    name,
		},
	})
}
