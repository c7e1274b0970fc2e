// Package api provides the HTTP REST API for Stockwise Core.
//
// It exposes authentication (sign-in, refresh exchange), inventory CRUD, user
// administration, and the audit trail to clients.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stockwise/stockwise-core/internal/audit"
	"github.com/stockwise/stockwise-core/internal/auth"
	"github.com/stockwise/stockwise-core/internal/infrastructure/config"
	"github.com/stockwise/stockwise-core/internal/infrastructure/influxdb"
	"github.com/stockwise/stockwise-core/internal/infrastructure/logging"
	"github.com/stockwise/stockwise-core/internal/inventory"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config          config.APIConfig
	Logger          *logging.Logger
	Auth            *auth.Service
	UserRepo        auth.UserRepository
	PersonRepo      inventory.PersonRepository
	ProductTypeRepo inventory.ProductTypeRepository
	ProductRepo     inventory.ProductRepository
	AuditRepo       audit.Repository
	Influx          *influxdb.Client // optional: stock history disabled when nil
	Version         string
}

// Server is the HTTP API server for Stockwise Core.
//
// It manages the HTTP listener, routes, and middleware. The server is created
// with New() and started with Start().
type Server struct {
	cfg             config.APIConfig
	logger          *logging.Logger
	auth            *auth.Service
	userRepo        auth.UserRepository
	personRepo      inventory.PersonRepository
	productTypeRepo inventory.ProductTypeRepository
	productRepo     inventory.ProductRepository
	auditRepo       audit.Repository
	auditCh         chan *audit.Entry
	influx          *influxdb.Client
	version         string
	server          *http.Server
	cancel          context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("auth service is required")
	}
	if deps.UserRepo == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	// Influx is optional — stock history is simply not recorded without it.

	s := &Server{
		cfg:             deps.Config,
		logger:          deps.Logger,
		auth:            deps.Auth,
		userRepo:        deps.UserRepo,
		personRepo:      deps.PersonRepo,
		productTypeRepo: deps.ProductTypeRepo,
		productRepo:     deps.ProductRepo,
		auditRepo:       deps.AuditRepo,
		influx:          deps.Influx,
		version:         deps.Version,
	}

	if deps.AuditRepo != nil {
		s.auditCh = make(chan *audit.Entry, auditChanSize)
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the audit drain goroutine, and launches the
// HTTP listener in a background goroutine. The server can be stopped with
// Close().
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.auditCh != nil {
		go s.drainAuditTrail(srvCtx)
	}

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete, then closes
// remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
