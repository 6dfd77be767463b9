// Package telemetry provides opt-in, privacy-filtered error reporting to
// Sentry.
package telemetry

import (
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/sightline-go/internal/conf"
	"github.com/tphakala/sightline-go/internal/errors"
	"github.com/tphakala/sightline-go/internal/logger"
)

// FlushTimeout bounds how long Flush waits for queued events.
const FlushTimeout = 2 * time.Second

// routine categories describe expected client behaviour, not faults
var ignoredCategories = []string{
	string(errors.CategoryValidation),
	string(errors.CategoryConflict),
	string(errors.CategoryLimit),
	string(errors.CategoryCancellation),
}

var (
	initMu      sync.Mutex
	initialized bool
)

// GetLogger returns the telemetry module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("telemetry")
}

// Option adjusts the Sentry client options.
type Option func(*sentry.ClientOptions)

// WithTransport replaces the HTTP transport; tests pass a MockTransport.
func WithTransport(t sentry.Transport) Option {
	return func(o *sentry.ClientOptions) { o.Transport = t }
}

// PlatformInfo holds the privacy-safe platform details attached to events.
type PlatformInfo struct {
	OS           string `json:"os"`
	Architecture string `json:"arch"`
	NumCPU       int    `json:"num_cpu"`
	GoVersion    string `json:"go_version"`
}

func collectPlatformInfo() PlatformInfo {
	return PlatformInfo{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		NumCPU:       runtime.NumCPU(),
		GoVersion:    runtime.Version(),
	}
}

// InitSentry initializes the Sentry SDK and installs the error reporter.
// It does nothing unless settings.Enabled is set.
func InitSentry(settings conf.SentrySettings, release string, opts ...Option) error {
	if !settings.Enabled {
		GetLogger().Info("sentry telemetry is disabled")
		return nil
	}

	initMu.Lock()
	defer initMu.Unlock()

	options := sentry.ClientOptions{
		Dsn:              settings.DSN,
		SampleRate:       settings.SampleRate,
		Environment:      settings.Environment,
		Release:          "sightline@" + release,
		AttachStacktrace: false,
		ServerName:       "",
		BeforeSend:       beforeSend,
	}
	for _, opt := range opts {
		opt(&options)
	}

	if err := sentry.Init(options); err != nil {
		return errors.New(err).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Context("operation", "sentry-init").
			Build()
	}

	platform := collectPlatformInfo()
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("os", platform.OS)
		scope.SetTag("arch", platform.Architecture)
		scope.SetContext("platform", map[string]any{
			"num_cpu":    platform.NumCPU,
			"go_version": platform.GoVersion,
		})
	})

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	initialized = true

	GetLogger().Info("sentry telemetry initialized",
		logger.String("environment", settings.Environment),
		logger.String("release", options.Release))
	return nil
}

// Flush waits for queued events and uninstalls the reporter.
func Flush(timeout time.Duration) bool {
	initMu.Lock()
	defer initMu.Unlock()

	if !initialized {
		return true
	}
	errors.SetTelemetryReporter(nil)
	initialized = false
	if timeout <= 0 {
		timeout = FlushTimeout
	}
	return sentry.Flush(timeout)
}

func beforeSend(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if slices.Contains(ignoredCategories, event.Tags["category"]) {
		return nil
	}
	return applyPrivacyFilters(event)
}

// applyPrivacyFilters strips user, host and device details.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Request = nil

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}
	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}
	return event
}
