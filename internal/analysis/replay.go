package analysis

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/tphakala/sightline-go/internal/api"
	"github.com/tphakala/sightline-go/internal/conf"
	"github.com/tphakala/sightline-go/internal/engine"
	"github.com/tphakala/sightline-go/internal/errors"
	"github.com/tphakala/sightline-go/internal/logger"
	"github.com/tphakala/sightline-go/internal/speech"
	"github.com/tphakala/sightline-go/internal/transcript"
)

// Replay defaults.
const (
	DefaultReplayFPS   = 10.0
	DefaultReplayDrain = 10 * time.Second
	maxFrameLine       = 1 << 20
	drainPoll          = 20 * time.Millisecond
)

// ReplayOptions pace a replay.
type ReplayOptions struct {
	// FPS is the frame rate at which recorded frames are fed.
	FPS float64
	// Drain bounds the wait for queued speech after the last frame.
	Drain time.Duration
}

// ReplayResult summarizes a replay.
type ReplayResult struct {
	Frames     int
	Rejected   int // detections rejected as malformed
	Announced  []string
	Transcript []transcript.Line
}

// Replay feeds recorded frames, one JSON object per line, through a fresh
// pipeline inside a single session. Blank lines and lines starting with #
// are skipped.
func Replay(ctx context.Context, settings *conf.Settings, r io.Reader, ropts ReplayOptions, opts Options) (*ReplayResult, error) {
	if ropts.FPS <= 0 {
		ropts.FPS = DefaultReplayFPS
	}
	if ropts.Drain <= 0 {
		ropts.Drain = DefaultReplayDrain
	}

	p, err := Build(settings, opts)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	runCtx, cancel := context.WithCancel(ctx)
	runErr := make(chan error, 1)
	go func() { runErr <- p.Engine.Run(runCtx) }()
	stopEngine := func() error {
		cancel()
		return <-runErr
	}

	if _, err := p.Engine.BeginSession(ctx, engine.SessionOptions{}); err != nil && !errors.Is(err, engine.ErrSessionActive) {
		_ = stopEngine()
		return nil, err
	}

	res, feedErr := p.feed(ctx, r, time.Duration(float64(time.Second)/ropts.FPS))
	if feedErr == nil {
		p.drain(ctx, ropts.Drain)
		if err := p.Engine.EndSession(ctx); err != nil {
			GetLogger().Warn("ending replay session failed", logger.Error(err))
		}
	}
	if err := stopEngine(); err != nil && feedErr == nil {
		feedErr = err
	}
	if feedErr != nil {
		return nil, feedErr
	}

	res.Transcript = p.Transcript.Lines()
	return res, nil
}

func (p *Pipeline) feed(ctx context.Context, r io.Reader, interval time.Duration) (*ReplayResult, error) {
	log := GetLogger()
	res := &ReplayResult{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxFrameLine)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var frame api.FrameRequest
		if err := json.Unmarshal([]byte(line), &frame); err != nil {
			return nil, errors.New(err).
				Component("analysis").
				Category(errors.CategoryFileParsing).
				Context("line", lineNo).
				Build()
		}

		if res.Frames > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-ticker.C:
			}
		}

		out, err := p.Engine.OnFrame(ctx, frame.Detections)
		if err != nil {
			return nil, err
		}
		res.Frames++
		res.Rejected += out.Rejected
		if out.Announced != "" {
			res.Announced = append(res.Announced, out.Announced)
		}
		log.Debug("replayed frame",
			logger.Int("line", lineNo),
			logger.String("frame_id", frame.FrameID),
			logger.String("announced", out.Announced),
			logger.String("suppressed", out.Suppressed))
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.New(err).
			Component("analysis").
			Category(errors.CategoryFileIO).
			Context("line", lineNo).
			Build()
	}
	return res, nil
}

// drain waits until nothing is queued or speaking, or until timeout.
func (p *Pipeline) drain(ctx context.Context, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		st, err := p.Engine.Status(ctx)
		if err != nil {
			return
		}
		if st.Queue.State == speech.Idle && len(st.Queue.Pending) == 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(drainPoll):
		}
	}
	GetLogger().Warn("speech queue did not drain before the replay deadline", logger.Duration("timeout", timeout))
}
