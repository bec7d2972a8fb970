package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vaidashi/laundry-order-api/internal/metrics"
	"github.com/vaidashi/laundry-order-api/internal/models"
	"github.com/vaidashi/laundry-order-api/internal/promo"
	"github.com/vaidashi/laundry-order-api/internal/service"
	"github.com/vaidashi/laundry-order-api/pkg/circuitbreaker"
	"github.com/vaidashi/laundry-order-api/pkg/logger"
	"github.com/vaidashi/laundry-order-api/pkg/middleware"
)

// OrderAPI is the order engine behind the HTTP routes
type OrderAPI interface {
	QuoteOrder(ctx context.Context, actor models.Actor, req service.CreateOrderRequest) (*service.QuoteResult, error)
	CreateOrder(ctx context.Context, actor models.Actor, req service.CreateOrderRequest) (*models.Order, error)
	GetOrder(ctx context.Context, actor models.Actor, id string) (*models.Order, error)
	ListOrders(ctx context.Context, actor models.Actor, req service.ListOrdersRequest) ([]*models.Order, error)
	GetTimeline(ctx context.Context, actor models.Actor, id string) ([]*models.TimelineEntry, error)
	GetStatusHistory(ctx context.Context, actor models.Actor, id string) ([]*models.StatusHistoryEntry, error)
	UpdateOrderStatus(ctx context.Context, actor models.Actor, orderID string, newStatus models.OrderStatus, notes string) (*models.Order, error)
	CancelOrder(ctx context.Context, actor models.Actor, orderID, reason string) (*models.Order, error)
	ConfirmDelivery(ctx context.Context, actor models.Actor, orderID string) (*models.Order, error)
	ValidatePromo(ctx context.Context, actor models.Actor, req service.ValidatePromoRequest) (*promo.Result, error)
}

// DeadLetterAdmin is the dead letter table as the admin routes see it
type DeadLetterAdmin interface {
	List(ctx context.Context, status models.DeadLetterStatus, limit, offset int) ([]*models.DeadLetterMessage, error)
	GetMessage(ctx context.Context, id int64) (*models.DeadLetterMessage, error)
	Requeue(ctx context.Context, id int64) error
	MarkAsDiscarded(ctx context.Context, id int64, reason string) error
}

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// ServerDeps wires the server. Orders, DeadLetters, Auth and Health are required.
type ServerDeps struct {
	Port        int
	Version     string
	Orders      OrderAPI
	DeadLetters DeadLetterAdmin
	Health      Pinger
	Auth        *Authenticator
	RateLimit   middleware.RateLimiterConfig
	// Breakers are exposed on the admin routes next to the request breaker
	Breakers []*circuitbreaker.CircuitBreaker
	Logger   logger.Logger
}

type Server struct {
	logger      logger.Logger
	version     string
	router      *mux.Router
	httpServer  *http.Server
	orders      OrderAPI
	deadLetters DeadLetterAdmin
	health      Pinger
	auth        *Authenticator
	rateLimiter *middleware.RateLimiterMiddleware
	degradation *middleware.GracefulDegradation
	breakers    map[string]*circuitbreaker.CircuitBreaker
}

// NewServer creates the API server and its routes
func NewServer(deps ServerDeps) (*Server, error) {
	if deps.Orders == nil || deps.DeadLetters == nil || deps.Health == nil || deps.Auth == nil {
		return nil, fmt.Errorf("api: orders, dead letters, health and auth are required")
	}

	log := deps.Logger
	if log == nil {
		log = logger.NewNop()
	}

	version := deps.Version
	if version == "" {
		version = "dev"
	}

	rateCfg := deps.RateLimit
	rateCfg.KeyFunc = actorRateKey
	if rateCfg.MaxTokens <= 0 {
		rateCfg.MaxTokens = 20
	}
	if rateCfg.RefillRate <= 0 {
		rateCfg.RefillRate = 5
	}

	r := mux.NewRouter()

	s := &Server{
		logger:      log,
		version:     version,
		router:      r,
		orders:      deps.Orders,
		deadLetters: deps.DeadLetters,
		health:      deps.Health,
		auth:        deps.Auth,
		rateLimiter: middleware.NewRateLimiterMiddleware(&rateCfg, log),
		degradation: middleware.NewGracefulDegradation("orders", log),
		breakers:    map[string]*circuitbreaker.CircuitBreaker{},
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", deps.Port),
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	s.breakers[s.degradation.Breaker().Name()] = s.degradation.Breaker()
	for _, b := range deps.Breakers {
		if b != nil {
			s.breakers[b.Name()] = b
		}
	}

	s.setupRoutes()
	return s, nil
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP until Shutdown
func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the rate limiter cleanup
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.rateLimiter.Stop()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Metrics(metrics.HTTPRequestsTotal, metrics.HTTPRequestDuration))
	s.router.Use(s.loggingMiddleware)

	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", s.healthCheckHandler).Methods(http.MethodGet)

	protected := api.NewRoute().Subrouter()
	protected.Use(s.auth.Middleware(s.respondWithAppError))
	protected.Use(s.rateLimiter.Middleware)

	orders := protected.NewRoute().Subrouter()
	orders.Use(s.degradation.Middleware)

	orders.HandleFunc("/orders/quote", s.quoteOrderHandler).Methods(http.MethodPost)
	orders.HandleFunc("/orders", s.createOrderHandler).Methods(http.MethodPost)
	orders.HandleFunc("/orders", s.listOrdersHandler).Methods(http.MethodGet)
	orders.HandleFunc("/orders/{id}", s.getOrderHandler).Methods(http.MethodGet)
	orders.HandleFunc("/orders/{id}/timeline", s.getTimelineHandler).Methods(http.MethodGet)
	orders.HandleFunc("/orders/{id}/history", s.getHistoryHandler).Methods(http.MethodGet)
	orders.HandleFunc("/orders/{id}/status", s.updateOrderStatusHandler).Methods(http.MethodPatch)
	orders.HandleFunc("/orders/{id}/cancel", s.cancelOrderHandler).Methods(http.MethodPost)
	orders.HandleFunc("/orders/{id}/confirm-delivery", s.confirmDeliveryHandler).Methods(http.MethodPost)
	orders.HandleFunc("/promos/validate", s.validatePromoHandler).Methods(http.MethodPost)

	admin := protected.PathPrefix("/admin").Subrouter()
	admin.Use(s.requireRole(models.RoleAdmin))
	admin.HandleFunc("/dead-letters", s.getDeadLettersHandler).Methods(http.MethodGet)
	admin.HandleFunc("/dead-letters/{id}/retry", s.retryDeadLetterHandler).Methods(http.MethodPost)
	admin.HandleFunc("/dead-letters/{id}/discard", s.discardDeadLetterHandler).Methods(http.MethodPost)
	admin.HandleFunc("/circuit-breakers", s.getCircuitBreakersHandler).Methods(http.MethodGet)
	admin.HandleFunc("/circuit-breakers/{name}/reset", s.resetCircuitBreakerHandler).Methods(http.MethodPost)
	admin.HandleFunc("/rate-limits", s.getRateLimitsHandler).Methods(http.MethodGet)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		s.logger.Debug("Request processed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
			"remoteAddr", r.RemoteAddr)
	})
}

func (s *Server) requireRole(roles ...models.ActorRole) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, _ := ActorFrom(r.Context())
			for _, role := range roles {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			s.respondWithAppError(w, errForbiddenRole)
		})
	}
}
