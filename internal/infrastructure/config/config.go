package config

import (
	"fmt"
	"time"
)

// HTTPServerConfig represents HTTP server configuration
type HTTPServerConfig struct {
	// Name and Version describe the API in the generated OpenAPI document.
	Name              string        `mapstructure:"name" json:"name" validate:"required"`
	Version           string        `mapstructure:"version" json:"version" validate:"required"`
	Host              string        `mapstructure:"host" json:"host"`
	Port              int           `mapstructure:"port" json:"port" validate:"min=1,max=65535"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout" json:"read_timeout" validate:"gte=0"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" json:"write_timeout" validate:"gte=0"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" json:"idle_timeout" validate:"gte=0"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" json:"read_header_timeout" validate:"gte=0"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout" validate:"gt=0"`
	MaxHeaderBytes    int           `mapstructure:"max_header_bytes" json:"max_header_bytes" validate:"gte=0"`
	// Built-in endpoints. An empty path disables the endpoint.
	HealthCheckPath string `mapstructure:"health_check_path" json:"health_check_path" validate:"omitempty,startswith=/"`
	MetricsPath     string `mapstructure:"metrics_path" json:"metrics_path" validate:"omitempty,startswith=/"`
	RoutesPath      string `mapstructure:"routes_path" json:"routes_path" validate:"omitempty,startswith=/"`
	OpenAPIPath     string `mapstructure:"openapi_path" json:"openapi_path" validate:"omitempty,startswith=/"`
}

// Addr returns the listen address
func (c HTTPServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CORSConfig represents cross-origin policy. "*" in AllowOrigins allows every origin;
// any other entry needs an http or https scheme.
type CORSConfig struct {
	AllowOrigins     []string      `mapstructure:"allow_origins" json:"allow_origins" validate:"min=1,dive,eq=*|startswith=http://|startswith=https://"`
	AllowHeaders     []string      `mapstructure:"allow_headers" json:"allow_headers"`
	ExposeHeaders    []string      `mapstructure:"expose_headers" json:"expose_headers"`
	AllowCredentials bool          `mapstructure:"allow_credentials" json:"allow_credentials"`
	MaxAge           time.Duration `mapstructure:"max_age" json:"max_age" validate:"gte=0"`
}

// AllowsAllOrigins reports whether the wildcard origin is configured
func (c CORSConfig) AllowsAllOrigins() bool {
	for _, o := range c.AllowOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level" json:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" json:"format" validate:"oneof=json console"`
	FilePath   string `mapstructure:"file_path" json:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" json:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" json:"max_age_days" validate:"gte=0"`
}

// DispatchConfig controls how service results are rendered
type DispatchConfig struct {
	// Envelope wraps successful results with request and timing data.
	Envelope bool `mapstructure:"envelope" json:"envelope"`
	// TruncatedLength caps echoed string params when Envelope is on.
	TruncatedLength int `mapstructure:"truncated_length" json:"truncated_length" validate:"min=4"`
}

// TracingConfig represents OpenTelemetry tracing configuration
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	ServiceName string `mapstructure:"service_name" json:"service_name" validate:"required_if=Enabled true"`
}

// Config represents the application configuration
type Config struct {
	Server   HTTPServerConfig `mapstructure:"server" json:"server"`
	CORS     CORSConfig       `mapstructure:"cors" json:"cors"`
	Logging  LoggingConfig    `mapstructure:"logging" json:"logging"`
	Dispatch DispatchConfig   `mapstructure:"dispatch" json:"dispatch"`
	Tracing  TracingConfig    `mapstructure:"tracing" json:"tracing"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Server: HTTPServerConfig{
			Name:              "http-server",
			Version:           "1.0.0",
			Host:              "0.0.0.0",
			Port:              8080,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   30 * time.Second,
			MaxHeaderBytes:    1 << 20, // 1MB
			HealthCheckPath:   "/health",
			MetricsPath:       "/metrics",
			RoutesPath:        "/routes",
			OpenAPIPath:       "/openapi.json",
		},
		CORS: CORSConfig{
			AllowOrigins:  []string{"*"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
			ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
			MaxAge:        12 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Dispatch: DispatchConfig{
			TruncatedLength: 50,
		},
		Tracing: TracingConfig{
			ServiceName: "http-server",
		},
	}
}
