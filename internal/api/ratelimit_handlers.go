package api

import (
	"net/http"
)

func (s *Server) getRateLimitsHandler(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: s.rateLimiter.GetMetrics()})
}
