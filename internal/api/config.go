// Package api exposes the alert engine over HTTP.
package api

import (
	"net"
	"time"

	"github.com/tphakala/sightline-go/internal/errors"
	"github.com/tphakala/sightline-go/internal/logger"
)

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// Default constants for the HTTP server.
const (
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
	DefaultFrameDedupTTL   = 10 * time.Second
	DefaultFrameRate       = 30.0
	DefaultFrameBurst      = 10
	DefaultAlertsLimit     = 50
)

// Config holds the HTTP server configuration.
type Config struct {
	Host string
	Port string

	AllowedOrigins []string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	BodyLimit string // e.g. "1M"

	// FrameDedupTTL is how long a frame_id is remembered; repeats get 409.
	FrameDedupTTL time.Duration
	// FrameRate and FrameBurst configure the ingest token bucket. A zero
	// rate disables limiting.
	FrameRate  float64
	FrameBurst int

	Debug bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:            "8080",
		AllowedOrigins:  []string{"*"},
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		BodyLimit:       "1M",
		FrameDedupTTL:   DefaultFrameDedupTTL,
		FrameRate:       DefaultFrameRate,
		FrameBurst:      DefaultFrameBurst,
	}
}

// Address returns host:port.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var problems []string
	if c.Port == "" {
		problems = append(problems, "port is required")
	}
	if c.FrameDedupTTL < 0 {
		problems = append(problems, "frame dedup ttl must not be negative")
	}
	if c.FrameRate < 0 {
		problems = append(problems, "frame rate must not be negative")
	}
	if c.FrameRate > 0 && c.FrameBurst < 1 {
		problems = append(problems, "frame burst must be at least 1")
	}
	if c.ShutdownTimeout <= 0 {
		problems = append(problems, "shutdown timeout must be positive")
	}
	if len(problems) == 0 {
		return nil
	}
	return errors.Newf("invalid api config: %v", problems).
		Component("api").
		Category(errors.CategoryConfiguration).
		Build()
}
