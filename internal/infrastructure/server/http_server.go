package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/amirfounder/http-server/internal/infrastructure/config"
	httperrors "github.com/amirfounder/http-server/pkg/errors"
	"github.com/amirfounder/http-server/pkg/metrics"
	"github.com/amirfounder/http-server/pkg/service"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// HTTPServer registers services and serves them through gin
type HTTPServer struct {
	config     *config.Config
	logger     *zap.Logger
	router     *gin.Engine
	registry   *Registry
	controller *Controller
	health     *HealthChecker

	mu                    sync.Mutex
	isServiceRoutingSetup bool
	connections           map[net.Conn]struct{}
}

// HTTPServerOptions contains options for creating an HTTPServer
type HTTPServerOptions struct {
	Config *config.Config
	Logger *zap.Logger
}

// RouteInfo describes one installed route
type RouteInfo struct {
	Route   string   `json:"route"`
	Methods []string `json:"methods"`
}

// NewHTTPServer creates a new HTTP server with an empty registry
func NewHTTPServer(opts HTTPServerOptions) (*HTTPServer, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("HTTP server config is required")
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid HTTP server config: %w", err)
	}

	router := gin.New()
	// Routes are exact keys; never rewrite the path to find a match.
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false

	registry := NewRegistry(opts.Logger)
	server := &HTTPServer{
		config:      opts.Config,
		logger:      opts.Logger,
		router:      router,
		registry:    registry,
		controller:  NewController(registry, opts.Logger, opts.Config.Dispatch),
		connections: make(map[net.Conn]struct{}),
	}

	server.health = NewHealthChecker(opts.Logger, server)
	server.setupMiddleware()

	return server, nil
}

// setupMiddleware configures all middleware for the HTTP server
func (s *HTTPServer) setupMiddleware() {
	s.router.Use(RequestIDMiddleware())
	s.router.Use(ginzap.Ginzap(s.logger, time.RFC3339, true))
	s.router.Use(ginzap.RecoveryWithZap(s.logger, true))
	if s.config.Tracing.Enabled {
		s.router.Use(otelgin.Middleware(s.config.Tracing.ServiceName))
	}
	s.router.Use(MetricsMiddleware())
	s.router.Use(CORSMiddleware(s.config.CORS))
}

// RegisterService registers a single service. It fails once routing is installed.
func (s *HTTPServer) RegisterService(svc service.Service) error {
	return s.registry.Register(svc)
}

// RegisterServices registers services in order, stopping at the first failure
func (s *HTTPServer) RegisterServices(services []service.Service) error {
	return s.registry.RegisterAll(services)
}

// SetupServiceRouting installs every registered route into gin. Only the first call has an effect.
//
// Each route is bound for every supported method so that a method without a
// service still reaches the controller and gets a structured 405.
func (s *HTTPServer) SetupServiceRouting() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isServiceRoutingSetup {
		return
	}
	s.registry.Seal()

	allMethods := methodStrings(service.Methods())
	for _, route := range s.registry.Routes() {
		handler := s.controller.Handler(route)
		for _, method := range allMethods {
			s.router.Handle(method, route, handler)
		}
		s.logger.Info("Routed service",
			zap.String("route", route),
			zap.Strings("methods", methodStrings(s.registry.Methods(route))))
	}

	s.setupBuiltinRoutes()

	s.router.NoRoute(func(c *gin.Context) {
		s.controller.writeError(c, httperrors.NewNotFound(""))
	})
	s.router.NoMethod(func(c *gin.Context) {
		s.controller.writeError(c, httperrors.NewNotAllowed(""))
	})
	// gin cannot compute 405s over an empty tree set; with no routes everything is a 404
	s.router.HandleMethodNotAllowed = len(s.router.Routes()) > 0

	s.isServiceRoutingSetup = true
}

// setupBuiltinRoutes installs health, metrics, route listing and the OpenAPI document unless a service owns the path
func (s *HTTPServer) setupBuiltinRoutes() {
	builtins := []struct {
		path    string
		handler gin.HandlerFunc
	}{
		{s.config.Server.HealthCheckPath, s.health.Handler()},
		{s.config.Server.MetricsPath, gin.WrapH(promhttp.Handler())},
		{s.config.Server.RoutesPath, s.routesHandler},
		{s.config.Server.OpenAPIPath, s.openAPIHandler},
	}

	for _, b := range builtins {
		if b.path == "" {
			continue
		}
		if len(s.registry.Methods(b.path)) > 0 {
			s.logger.Warn("Built-in endpoint shadowed by registered service",
				zap.String("path", b.path))
			continue
		}
		s.router.GET(b.path, b.handler)
	}
}

func (s *HTTPServer) routesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.RouteInfos())
}

// RouteInfos lists registered routes with their methods
func (s *HTTPServer) RouteInfos() []RouteInfo {
	return lo.Map(s.registry.Routes(), func(route string, _ int) RouteInfo {
		return RouteInfo{
			Route:   route,
			Methods: methodStrings(s.registry.Methods(route)),
		}
	})
}

// Handler installs routing if needed and returns the gin engine
func (s *HTTPServer) Handler() http.Handler {
	s.SetupServiceRouting()
	return s.router
}

// Run listens on the configured address and serves until ctx is cancelled
func (s *HTTPServer) Run(ctx context.Context) error {
	addr := s.config.Server.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully
func (s *HTTPServer) Serve(ctx context.Context, ln net.Listener) error {
	s.SetupServiceRouting()

	httpConfig := s.config.Server
	srv := &http.Server{
		Handler:           s.router,
		ReadTimeout:       httpConfig.ReadTimeout,
		WriteTimeout:      httpConfig.WriteTimeout,
		IdleTimeout:       httpConfig.IdleTimeout,
		ReadHeaderTimeout: httpConfig.ReadHeaderTimeout,
		MaxHeaderBytes:    httpConfig.MaxHeaderBytes,
		ConnState:         s.trackConnections,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server",
			zap.String("addr", ln.Addr().String()),
			zap.Int("services", s.registry.Len()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpConfig.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("Graceful shutdown incomplete",
			zap.Int("open_connections", s.ConnectionCount()),
			zap.Error(err))
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	return <-errCh
}

// trackConnections tracks client connections for graceful shutdown
func (s *HTTPServer) trackConnections(conn net.Conn, state http.ConnState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch state {
	case http.StateNew:
		s.connections[conn] = struct{}{}
	case http.StateClosed, http.StateHijacked:
		delete(s.connections, conn)
	}
	metrics.OpenConnections.Set(float64(len(s.connections)))
}

// ConnectionCount returns the number of open client connections
func (s *HTTPServer) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connections)
}

// GetRouter returns the Gin router instance
func (s *HTTPServer) GetRouter() *gin.Engine {
	return s.router
}

// GetHealthChecker returns the health checker behind the health endpoint
func (s *HTTPServer) GetHealthChecker() *HealthChecker {
	return s.health
}

// GetRegistry returns the registration table
func (s *HTTPServer) GetRegistry() *Registry {
	return s.registry
}

// GetStats returns HTTP server statistics
func (s *HTTPServer) GetStats() map[string]interface{} {
	methodCounts := make(map[string]int)
	for _, route := range s.registry.Routes() {
		for _, m := range s.registry.Methods(route) {
			methodCounts[m.String()]++
		}
	}

	s.mu.Lock()
	routed := s.isServiceRoutingSetup
	open := len(s.connections)
	s.mu.Unlock()

	return map[string]interface{}{
		"config": map[string]interface{}{
			"host":             s.config.Server.Host,
			"port":             s.config.Server.Port,
			"read_timeout":     s.config.Server.ReadTimeout.String(),
			"write_timeout":    s.config.Server.WriteTimeout.String(),
			"idle_timeout":     s.config.Server.IdleTimeout.String(),
			"max_header_bytes": s.config.Server.MaxHeaderBytes,
			"envelope":         s.config.Dispatch.Envelope,
		},
		"routes": map[string]interface{}{
			"total":    s.registry.Len(),
			"distinct": len(s.registry.Routes()),
			"methods":  methodCounts,
			"routed":   routed,
		},
		"connections": open,
	}
}

func methodStrings(methods []service.Method) []string {
	return lo.Map(methods, func(m service.Method, _ int) string {
		return m.String()
	})
}
