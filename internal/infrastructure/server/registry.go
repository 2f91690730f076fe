package server

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/amirfounder/http-server/pkg/metrics"
	"github.com/amirfounder/http-server/pkg/service"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Registration errors
var (
	ErrDuplicateService = errors.New("service already registered")
	ErrRegistrySealed   = errors.New("registry is sealed")
	ErrInvalidService   = errors.New("invalid service")
)

// Registry maps route -> method -> service.
//
// It is written during startup only. Seal marks the end of the registration
// phase; afterwards every Register call fails and the table is read without locks.
type Registry struct {
	logger   *zap.Logger
	services map[string]map[service.Method]service.Service
	routes   []string
	count    int
	sealed   atomic.Bool
}

// NewRegistry creates an empty Registry
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger:   logger,
		services: make(map[string]map[service.Method]service.Service),
	}
}

// Register stores svc under its route and method.
// A second service for the same pair is rejected and the first one is kept.
func (r *Registry) Register(svc service.Service) error {
	if r.sealed.Load() {
		return ErrRegistrySealed
	}
	if svc == nil {
		return fmt.Errorf("%w: nil service", ErrInvalidService)
	}

	route := svc.Route()
	method := svc.Method()
	if err := validateRoute(route); err != nil {
		return err
	}
	if !method.Valid() {
		return fmt.Errorf("%w: unsupported method %q for route %s", ErrInvalidService, method, route)
	}

	methods, ok := r.services[route]
	if !ok {
		methods = make(map[service.Method]service.Service)
		r.services[route] = methods
		r.routes = append(r.routes, route)
	}
	if _, exists := methods[method]; exists {
		return fmt.Errorf("%w under route, method: %s %s", ErrDuplicateService, route, method)
	}
	methods[method] = svc
	r.count++
	metrics.RegisteredServices.Inc()

	r.logger.Debug("Registered service",
		zap.String("route", route),
		zap.String("method", method.String()))

	return nil
}

// RegisterAll registers services in order and stops at the first failure.
// Services registered before the failure stay registered.
func (r *Registry) RegisterAll(services []service.Service) error {
	for _, svc := range services {
		if err := r.Register(svc); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the service registered for route and method
func (r *Registry) Lookup(route string, method service.Method) (service.Service, bool) {
	svc, ok := r.services[route][method]
	return svc, ok
}

// Routes returns distinct routes in the order they were first registered
func (r *Registry) Routes() []string {
	out := make([]string, len(r.routes))
	copy(out, r.routes)
	return out
}

// Methods returns the methods registered for route, in canonical order
func (r *Registry) Methods(route string) []service.Method {
	registered := r.services[route]
	return lo.Filter(service.Methods(), func(m service.Method, _ int) bool {
		_, ok := registered[m]
		return ok
	})
}

// Len returns the number of registered (route, method) pairs
func (r *Registry) Len() int {
	return r.count
}

// Seal ends the registration phase
func (r *Registry) Seal() {
	r.sealed.Store(true)
}

// Sealed reports whether the registration phase is over
func (r *Registry) Sealed() bool {
	return r.sealed.Load()
}

// validateRoute keeps routes opaque: gin must never treat them as patterns.
func validateRoute(route string) error {
	if route == "" {
		return fmt.Errorf("%w: empty route", ErrInvalidService)
	}
	if !strings.HasPrefix(route, "/") {
		return fmt.Errorf("%w: route %q must begin with '/'", ErrInvalidService, route)
	}
	if strings.ContainsAny(route, ":*") {
		return fmt.Errorf("%w: route %q contains pattern characters", ErrInvalidService, route)
	}
	return nil
}
