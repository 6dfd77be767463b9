package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"

	"github.com/tphakala/sightline-go/internal/engine"
	"github.com/tphakala/sightline-go/internal/errors"
	"github.com/tphakala/sightline-go/internal/logger"
	"github.com/tphakala/sightline-go/internal/obstacle"
)

// FrameRequest is the body of POST /api/v1/frames.
type FrameRequest struct {
	FrameID    string               `json:"frame_id,omitempty"`
	Detections []obstacle.Detection `json:"detections"`
}

// CompletionRequest is the body of POST /api/v1/speech/completed.
type CompletionRequest struct {
	UtteranceID string `json:"utterance_id"`
	Success     *bool  `json:"success,omitempty"`
}

// SessionStartRequest is the optional body of POST /api/v1/session/start.
type SessionStartRequest struct {
	ScanDuration      string `json:"scan_duration,omitempty"` // Go duration, e.g. "30s"
	CompletionMessage string `json:"completion_message,omitempty"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func (s *Server) postFrame(c echo.Context) error {
	if s.limiter != nil && !s.limiter.Allow() {
		if s.metrics != nil {
			s.metrics.RecordRateLimited()
		}
		return echo.NewHTTPError(http.StatusTooManyRequests, "frame rate limit exceeded")
	}

	var req FrameRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid frame body").SetInternal(err)
	}

	if req.FrameID != "" && s.frameIDs != nil {
		if err := s.frameIDs.Add(req.FrameID, struct{}{}, cache.DefaultExpiration); err != nil {
			if s.metrics != nil {
				s.metrics.RecordDuplicateFrame()
			}
			return echo.NewHTTPError(http.StatusConflict, "duplicate frame_id")
		}
	}

	res, err := s.engine.OnFrame(c.Request().Context(), req.Detections)
	if err != nil {
		if req.FrameID != "" && s.frameIDs != nil {
			// a frame that never reached the engine may be retried
			s.frameIDs.Delete(req.FrameID)
		}
		return engineError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) postSpeechCompleted(c echo.Context) error {
	var req CompletionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid completion body").SetInternal(err)
	}
	success := req.Success == nil || *req.Success
	s.engine.OnSpeechCompleted(req.UtteranceID, success)
	return c.NoContent(http.StatusAccepted)
}

func (s *Server) postSessionStart(c echo.Context) error {
	var req SessionStartRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid session body").SetInternal(err)
		}
	}

	var opts engine.SessionOptions
	if req.ScanDuration != "" {
		d, err := time.ParseDuration(req.ScanDuration)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "scan_duration must be a duration such as 30s")
		}
		opts.ScanDuration = d
	}
	opts.CompletionMessage = strings.TrimSpace(req.CompletionMessage)

	info, err := s.engine.BeginSession(c.Request().Context(), opts)
	if err != nil {
		return engineError(err)
	}
	return c.JSON(http.StatusCreated, info)
}

func (s *Server) postSessionStop(c echo.Context) error {
	if err := s.engine.EndSession(c.Request().Context()); err != nil {
		return engineError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) getStatus(c echo.Context) error {
	st, err := s.engine.Status(c.Request().Context())
	if err != nil {
		return engineError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) getTranscript(c echo.Context) error {
	if s.transcript == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "transcript disabled")
	}
	return c.JSON(http.StatusOK, map[string]any{"lines": s.transcript.Lines()})
}

func (s *Server) getAlerts(c echo.Context) error {
	if s.journal == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "alert journal disabled")
	}
	limit := DefaultAlertsLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and 1000")
		}
		limit = n
	}
	alerts, err := s.journal.RecentAlerts(limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load alerts").SetInternal(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"alerts": alerts})
}

// engineError maps engine errors onto HTTP statuses.
func engineError(err error) error {
	switch {
	case errors.Is(err, engine.ErrNoSession), errors.Is(err, engine.ErrSessionActive):
		return echo.NewHTTPError(http.StatusConflict, err.Error()).SetInternal(err)
	case errors.Is(err, engine.ErrStopped):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error()).SetInternal(err)
	case errors.IsCategory(err, errors.CategoryValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	case errors.IsCategory(err, errors.CategoryCancellation), errors.Is(err, context.Canceled):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "request cancelled").SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
	}
}

func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := http.StatusText(code)

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
		if he.Internal != nil && code >= 500 {
			s.log.Warn("request failed", logger.Int("status", code), logger.Error(he.Internal))
		}
	} else {
		s.log.Error("unhandled request error", logger.Error(err))
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(code)
		return
	}
	_ = c.JSON(code, ErrorResponse{Error: msg, Code: code})
}
