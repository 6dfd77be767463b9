package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	gommonlog "github.com/labstack/gommon/log"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	mw "github.com/tphakala/sightline-go/internal/api/middleware"
	"github.com/tphakala/sightline-go/internal/datastore"
	"github.com/tphakala/sightline-go/internal/engine"
	"github.com/tphakala/sightline-go/internal/errors"
	"github.com/tphakala/sightline-go/internal/logger"
	"github.com/tphakala/sightline-go/internal/obstacle"
	"github.com/tphakala/sightline-go/internal/observability/metrics"
	"github.com/tphakala/sightline-go/internal/transcript"
)

// Engine is the part of the alert engine the API drives.
type Engine interface {
	OnFrame(ctx context.Context, dets []obstacle.Detection) (engine.FrameResult, error)
	OnSpeechCompleted(utteranceID string, success bool)
	BeginSession(ctx context.Context, opts engine.SessionOptions) (engine.SessionInfo, error)
	EndSession(ctx context.Context) error
	Status(ctx context.Context) (engine.Status, error)
}

// TranscriptSource provides the rolling transcript.
type TranscriptSource interface {
	Lines() []transcript.Line
}

// AlertJournal provides persisted alerts.
type AlertJournal interface {
	RecentAlerts(limit int) ([]datastore.Alert, error)
}

// Server is the HTTP front of the engine.
type Server struct {
	echo    *echo.Echo
	config  *Config
	log     logger.Logger
	engine  Engine
	metrics *metrics.HTTPMetrics

	transcript TranscriptSource
	journal    AlertJournal

	frameIDs *cache.Cache
	limiter  *rate.Limiter

	startTime time.Time
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithLogger replaces the module logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) { s.log = l }
}

// WithMetrics reports requests to m.
func WithMetrics(m *metrics.HTTPMetrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithTranscript serves GET /api/v1/transcript from t.
func WithTranscript(t TranscriptSource) ServerOption {
	return func(s *Server) { s.transcript = t }
}

// WithJournal serves GET /api/v1/alerts from j.
func WithJournal(j AlertJournal) ServerOption {
	return func(s *Server) { s.journal = j }
}

// New builds the echo instance and registers routes.
func New(cfg *Config, eng Engine, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if eng == nil {
		return nil, errors.Newf("api: engine is required").
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}

	s := &Server{
		config:    cfg,
		engine:    eng,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = GetLogger()
	}
	if cfg.FrameDedupTTL > 0 {
		s.frameIDs = cache.New(cfg.FrameDedupTTL, 2*cfg.FrameDedupTTL)
	}
	if cfg.FrameRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.FrameRate), cfg.FrameBurst)
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Logger.SetLevel(gommonlog.OFF)
	s.echo.HTTPErrorHandler = s.errorHandler
	s.echo.Server.ReadTimeout = cfg.ReadTimeout
	s.echo.Server.WriteTimeout = cfg.WriteTimeout
	s.echo.Server.IdleTimeout = cfg.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes()

	s.log.Info("HTTP server initialized",
		logger.String("address", cfg.Address()),
		logger.Bool("dedup", s.frameIDs != nil),
		logger.Bool("rate_limit", s.limiter != nil))
	return s, nil
}

func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())

	var obs mw.RequestObserver
	if s.metrics != nil {
		obs = s.metrics
	}
	s.echo.Use(mw.NewRequestLogger(s.log, obs))

	s.echo.Use(mw.Hardening(s.config.AllowedOrigins, s.config.BodyLimit)...)
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/frames", s.postFrame)
	v1.POST("/speech/completed", s.postSpeechCompleted)
	v1.POST("/session/start", s.postSessionStart)
	v1.POST("/session/stop", s.postSessionStop)
	v1.GET("/status", s.getStatus)
	v1.GET("/transcript", s.getTranscript)
	v1.GET("/alerts", s.getAlerts)
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"uptime":         uptime.Round(time.Second).String(),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

// Run listens on the configured address until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.echo.Listener = ln
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server starting", logger.String("address", ln.Addr().String()))
		errCh <- s.echo.Start("")
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		s.log.Error("error during server shutdown", logger.Error(err))
		return err
	}
	<-errCh
	s.log.Info("HTTP server stopped")
	return nil
}
