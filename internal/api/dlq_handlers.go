package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/vaidashi/laundry-order-api/internal/models"
	"github.com/vaidashi/laundry-order-api/internal/repository"
	apperrors "github.com/vaidashi/laundry-order-api/pkg/errors"
)

// PaginationResponse is a page of dead letters
type PaginationResponse struct {
	Items    []*models.DeadLetterMessage `json:"items"`
	Count    int                         `json:"count"`
	Page     int                         `json:"page"`
	PageSize int                         `json:"page_size"`
	Status   string                      `json:"status,omitempty"`
}

func (s *Server) getDeadLettersHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page := queryInt(q.Get("page"))
	if page < 1 {
		page = 1
	}

	pageSize := queryInt(q.Get("pageSize"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	status := models.DeadLetterStatus(q.Get("status"))
	switch status {
	case "", models.DeadLetterStatusPending, models.DeadLetterStatusRetrying,
		models.DeadLetterStatusResolved, models.DeadLetterStatusDiscarded:
	default:
		s.respondWithAppError(w, apperrors.NewInvalidInputError("Unknown dead letter status "+string(status)))
		return
	}

	messages, err := s.deadLetters.List(r.Context(), status, pageSize, (page-1)*pageSize)

	if err != nil {
		s.logger.Error("Failed to fetch dead letter messages", "error", err)
		s.respondWithAppError(w, apperrors.NewInternalError("Failed to fetch dead letter messages"))
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: PaginationResponse{
			Items:    messages,
			Count:    len(messages),
			Page:     page,
			PageSize: pageSize,
			Status:   string(status),
		},
	})
}

// retryDeadLetterHandler hands a parked message back to the re-driver
func (s *Server) retryDeadLetterHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.deadLetterID(w, r)
	if !ok {
		return
	}

	if err := s.deadLetters.Requeue(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondWithAppError(w, apperrors.NewNotFoundError("Dead letter message not found or already resolved"))
			return
		}
		s.logger.Error("Failed to requeue dead letter message", "error", err, "messageID", id)
		s.respondWithAppError(w, apperrors.NewInternalError("Failed to mark message for retry"))
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: map[string]interface{}{
			"message": "Dead letter message marked for retry",
			"id":      id,
		},
	})
}

func (s *Server) discardDeadLetterHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := s.deadLetterID(w, r)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 && !s.decode(w, r, &req) {
		return
	}
	if req.Reason == "" {
		req.Reason = "No reason provided"
	}

	message, err := s.deadLetters.GetMessage(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondWithAppError(w, apperrors.NewNotFoundError("Dead letter message not found"))
			return
		}
		s.logger.Error("Failed to fetch dead letter message", "error", err, "messageID", id)
		s.respondWithAppError(w, apperrors.NewInternalError("Failed to fetch dead letter message"))
		return
	}

	if message.Status == models.DeadLetterStatusResolved {
		s.respondWithAppError(w, apperrors.NewConflictError("Resolved messages cannot be discarded"))
		return
	}

	if err := s.deadLetters.MarkAsDiscarded(r.Context(), id, req.Reason); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			s.respondWithAppError(w, apperrors.NewConflictError("Resolved messages cannot be discarded"))
			return
		}
		s.logger.Error("Failed to discard message", "error", err, "messageID", id)
		s.respondWithAppError(w, apperrors.NewInternalError("Failed to discard message"))
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: map[string]interface{}{
			"message": "Dead letter message discarded",
			"id":      id,
		},
	})
}

func (s *Server) deadLetterID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id < 1 {
		s.respondWithAppError(w, apperrors.NewInvalidInputError("Invalid message ID"))
		return 0, false
	}
	return id, true
}
