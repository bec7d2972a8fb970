package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/vaidashi/laundry-order-api/internal/models"
	"github.com/vaidashi/laundry-order-api/internal/service"
	apperrors "github.com/vaidashi/laundry-order-api/pkg/errors"
)

// ApiResponse is the envelope of every JSON response
type ApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// Health represents the health check response
type Health struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

var errForbiddenRole = apperrors.NewForbiddenError("You are not allowed to use this endpoint")

const maxBodyBytes = 1 << 20

func (s *Server) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	health := Health{
		Status:    "ok",
		Database:  "ok",
		Version:   s.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if err := s.health.Ping(ctx); err != nil {
		s.logger.Warn("Health check failed", "error", err)
		health.Status, health.Database = "degraded", "unreachable"
		s.respondWithJSON(w, http.StatusServiceUnavailable, ApiResponse{Success: false, Data: health, Code: apperrors.CodeUnavailable})
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{Success: true, Data: health})
}

func (s *Server) quoteOrderHandler(w http.ResponseWriter, r *http.Request) {
	var req service.CreateOrderRequest
	if !s.decode(w, r, &req) {
		return
	}

	quote, err := s.orders.QuoteOrder(r.Context(), s.actor(r), req)
	s.respond(w, http.StatusOK, quote, err)
}

func (s *Server) createOrderHandler(w http.ResponseWriter, r *http.Request) {
	var req service.CreateOrderRequest
	if !s.decode(w, r, &req) {
		return
	}

	order, err := s.orders.CreateOrder(r.Context(), s.actor(r), req)
	s.respond(w, http.StatusCreated, order, err)
}

func (s *Server) listOrdersHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := service.ListOrdersRequest{
		Status: models.OrderStatus(q.Get("status")),
		Limit:  queryInt(q.Get("limit")),
		Offset: queryInt(q.Get("offset")),
	}

	if req.Status != "" {
		if _, ok := models.ParseOrderStatus(string(req.Status)); !ok {
			s.respondWithAppError(w, apperrors.NewInvalidInputError("Unknown order status "+string(req.Status)))
			return
		}
	}

	orders, err := s.orders.ListOrders(r.Context(), s.actor(r), req)
	s.respond(w, http.StatusOK, orders, err)
}

func (s *Server) getOrderHandler(w http.ResponseWriter, r *http.Request) {
	order, err := s.orders.GetOrder(r.Context(), s.actor(r), mux.Vars(r)["id"])
	s.respond(w, http.StatusOK, order, err)
}

func (s *Server) getTimelineHandler(w http.ResponseWriter, r *http.Request) {
	timeline, err := s.orders.GetTimeline(r.Context(), s.actor(r), mux.Vars(r)["id"])
	s.respond(w, http.StatusOK, timeline, err)
}

func (s *Server) getHistoryHandler(w http.ResponseWriter, r *http.Request) {
	history, err := s.orders.GetStatusHistory(r.Context(), s.actor(r), mux.Vars(r)["id"])
	s.respond(w, http.StatusOK, history, err)
}

func (s *Server) updateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status models.OrderStatus `json:"status"`
		Notes  string             `json:"notes"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	order, err := s.orders.UpdateOrderStatus(r.Context(), s.actor(r), mux.Vars(r)["id"], req.Status, req.Notes)
	s.respond(w, http.StatusOK, order, err)
}

func (s *Server) cancelOrderHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	order, err := s.orders.CancelOrder(r.Context(), s.actor(r), mux.Vars(r)["id"], req.Reason)
	s.respond(w, http.StatusOK, order, err)
}

func (s *Server) confirmDeliveryHandler(w http.ResponseWriter, r *http.Request) {
	order, err := s.orders.ConfirmDelivery(r.Context(), s.actor(r), mux.Vars(r)["id"])
	s.respond(w, http.StatusOK, order, err)
}

func (s *Server) validatePromoHandler(w http.ResponseWriter, r *http.Request) {
	var req service.ValidatePromoRequest
	if !s.decode(w, r, &req) {
		return
	}

	result, err := s.orders.ValidatePromo(r.Context(), s.actor(r), req)
	if err != nil {
		s.respondWithAppError(w, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Data: map[string]interface{}{
			"code":          result.Promo.Code,
			"discount_type": result.Promo.DiscountType,
			"discount":      result.Discount,
		},
	})
}

func (s *Server) actor(r *http.Request) models.Actor {
	actor, _ := ActorFrom(r.Context())
	return actor
}

// decode reads a JSON body into dst, answering 400 itself on failure
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		s.respondWithAppError(w, apperrors.NewInvalidInputError("Invalid request payload"))
		return false
	}
	return true
}

func queryInt(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func (s *Server) respond(w http.ResponseWriter, status int, data interface{}, err error) {
	if err != nil {
		s.respondWithAppError(w, err)
		return
	}
	s.respondWithJSON(w, status, ApiResponse{Success: true, Data: data})
}

// respondWithAppError renders err with its status and code. Anything that is
// not an AppError is reported as an opaque 500.
func (s *Server) respondWithAppError(w http.ResponseWriter, err error) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.NewInternalError("Internal server error")
	}

	if appErr.StatusCode >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "error", err, "code", appErr.Code)
	}

	s.respondWithError(w, appErr.StatusCode, appErr.Code, appErr.Message)
}

// respondWithError sends a JSON response with an error message
func (s *Server) respondWithError(w http.ResponseWriter, status int, code, message string) {
	s.respondWithJSON(w, status, ApiResponse{
		Success: false,
		Error:   message,
		Code:    code,
	})
}

// respondWithJSON sends a JSON response
func (s *Server) respondWithJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)

	if err != nil {
		s.logger.Error("Failed to marshal response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(response)
}
