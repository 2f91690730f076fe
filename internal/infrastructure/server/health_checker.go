package server

import (
	"context"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusUp      HealthStatus = "UP"
	HealthStatusDown    HealthStatus = "DOWN"
	HealthStatusWarning HealthStatus = "WARNING"
)

// ComponentHealth represents the health of a single component
type ComponentHealth struct {
	Status    HealthStatus           `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Duration  time.Duration          `json:"duration"`
	Error     string                 `json:"error,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// HealthReport represents the overall health report
type HealthReport struct {
	Status     HealthStatus                `json:"status"`
	Timestamp  time.Time                   `json:"timestamp"`
	Duration   time.Duration               `json:"duration"`
	Components map[string]*ComponentHealth `json:"components"`
}

// HealthCheckFunc defines the signature for health check functions
type HealthCheckFunc func(ctx context.Context) *ComponentHealth

// HealthChecker runs named component checks concurrently
type HealthChecker struct {
	logger  *zap.Logger
	checks  map[string]HealthCheckFunc
	timeout time.Duration
	mu      sync.RWMutex
}

// NewHealthChecker creates a health checker with the default component checks for s
func NewHealthChecker(logger *zap.Logger, s *HTTPServer) *HealthChecker {
	hc := &HealthChecker{
		logger:  logger,
		checks:  make(map[string]HealthCheckFunc),
		timeout: 5 * time.Second,
	}

	hc.RegisterHealthCheck("registry", registryCheck(s.registry))
	hc.RegisterHealthCheck("routing", routingCheck(s))
	hc.RegisterHealthCheck("runtime", checkRuntime)

	return hc
}

// RegisterHealthCheck registers a custom health check, replacing any check of the same name
func (hc *HealthChecker) RegisterHealthCheck(name string, check HealthCheckFunc) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[name] = check
}

// Handler serves the health report. DOWN maps to 503.
func (hc *HealthChecker) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report := hc.CheckHealth(c.Request.Context())
		status := http.StatusOK
		if report.Status == HealthStatusDown {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, report)
	}
}

// CheckHealth performs all health checks
func (hc *HealthChecker) CheckHealth(ctx context.Context) *HealthReport {
	start := time.Now()

	hc.mu.RLock()
	checks := make(map[string]HealthCheckFunc, len(hc.checks))
	for name, check := range hc.checks {
		checks[name] = check
	}
	hc.mu.RUnlock()

	components := make(map[string]*ComponentHealth, len(checks))
	overallStatus := HealthStatusUp

	var wg sync.WaitGroup
	var mu sync.Mutex
	for name, check := range checks {
		wg.Add(1)
		go func(name string, check HealthCheckFunc) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, hc.timeout)
			defer cancel()

			health := check(checkCtx)

			mu.Lock()
			defer mu.Unlock()
			components[name] = health
			if health.Status == HealthStatusDown {
				overallStatus = HealthStatusDown
			} else if health.Status == HealthStatusWarning && overallStatus == HealthStatusUp {
				overallStatus = HealthStatusWarning
			}
		}(name, check)
	}
	wg.Wait()

	if overallStatus != HealthStatusUp {
		hc.logger.Warn("Health check degraded", zap.String("status", string(overallStatus)))
	}

	return &HealthReport{
		Status:     overallStatus,
		Timestamp:  time.Now(),
		Duration:   time.Since(start),
		Components: components,
	}
}

// registryCheck warns when nothing is registered; the server then only answers 404 and 405
func registryCheck(r *Registry) HealthCheckFunc {
	return func(context.Context) *ComponentHealth {
		start := time.Now()
		health := &ComponentHealth{
			Status:    HealthStatusUp,
			Timestamp: start,
			Details: map[string]interface{}{
				"services": r.Len(),
				"routes":   len(r.Routes()),
				"sealed":   r.Sealed(),
			},
		}
		if r.Len() == 0 {
			health.Status = HealthStatusWarning
			health.Error = "no services registered"
		}
		health.Duration = time.Since(start)
		return health
	}
}

func routingCheck(s *HTTPServer) HealthCheckFunc {
	return func(context.Context) *ComponentHealth {
		start := time.Now()
		s.mu.Lock()
		routed := s.isServiceRoutingSetup
		s.mu.Unlock()

		health := &ComponentHealth{
			Status:    HealthStatusUp,
			Timestamp: start,
			Details:   map[string]interface{}{"routed": routed},
		}
		if !routed {
			health.Status = HealthStatusDown
			health.Error = "service routing not installed"
		}
		health.Duration = time.Since(start)
		return health
	}
}

func checkRuntime(context.Context) *ComponentHealth {
	start := time.Now()
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return &ComponentHealth{
		Status:    HealthStatusUp,
		Timestamp: start,
		Duration:  time.Since(start),
		Details: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"heap_alloc": mem.HeapAlloc,
			"heap_inuse": mem.HeapInuse,
			"num_gc":     mem.NumGC,
			"gomaxprocs": runtime.GOMAXPROCS(0),
			"go_version": runtime.Version(),
		},
	}
}
