package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/PortNumber53/membership-checkout/backend/internal/config"
	"github.com/PortNumber53/membership-checkout/backend/internal/handlers"
	accesslog "github.com/PortNumber53/membership-checkout/backend/internal/middleware"
)

// CheckoutService is everything the checkout routes need from the workflow.
type CheckoutService interface {
	handlers.PaymentService
	handlers.ChargeTokenCreator
}

// Server wraps an http.Server with convenience helpers for startup/shutdown.
type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// New constructs an HTTP server using the provided configuration, plan catalog
// and checkout workflow.
func New(cfg config.Config, catalog handlers.PlanCatalog, checkout CheckoutService, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(accesslog.AccessLog(log.Named("http")))
	router.Use(middleware.Recoverer)

	router.Get("/healthz", handlers.Health)

	router.Route("/api", func(r chi.Router) {
		r.Get("/membership-plans", handlers.ListPlans(catalog, log))
		r.Get("/membership-plans/{id}", handlers.GetPlan(catalog, log))
		r.Post("/payments", handlers.SubmitPayment(checkout, log))
		r.Get("/payments/{id}", handlers.GetPayment(checkout, log))
		r.Post("/create-payment-intent", handlers.CreateChargeToken(checkout, log))
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{httpServer: srv, log: log}
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln. It returns nil after a graceful shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info("backend listening", zap.String("addr", ln.Addr().String()))
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler exposes the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
