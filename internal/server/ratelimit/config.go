package ratelimit

import (
	"net/http"
	"time"
)

// EndpointConfig limits one route
type EndpointConfig struct {
	Method string
	// Path matches exactly, or as a prefix when it ends with "/"
	Path   string
	Limit  int           // requests per Window
	Window time.Duration // zero Limit means unlimited
	Burst  int           // defaults to Limit
}

// Config holds rate limiting settings
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	// Exempt client ids are never limited
	Exempt    map[string]bool
	Endpoints []EndpointConfig
}

// DefaultConfig limits job submission and restart most strictly since each
// one drives a chain of model calls
func DefaultConfig(jobsPerHour int) Config {
	return Config{
		Enabled:         true,
		DefaultLimit:    600,
		DefaultWindow:   time.Minute,
		CleanupInterval: 5 * time.Minute,
		Exempt:          map[string]bool{},
		Endpoints: []EndpointConfig{
			{Method: http.MethodPost, Path: "/jobs", Limit: jobsPerHour, Window: time.Hour, Burst: max(1, jobsPerHour/10)},
			{Method: http.MethodPost, Path: "/jobs/", Limit: jobsPerHour, Window: time.Hour, Burst: max(1, jobsPerHour/10)},
			{Method: http.MethodPost, Path: "/uploads", Limit: 120, Window: time.Minute, Burst: 20},
			{Method: http.MethodGet, Path: "/health"},
			{Method: http.MethodGet, Path: "/metrics"},
		},
	}
}
