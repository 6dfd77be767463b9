package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/sightline-go/internal/errors"
	"github.com/tphakala/sightline-go/internal/logger"
	"github.com/tphakala/sightline-go/internal/speech"
	"github.com/tphakala/sightline-go/internal/timeutil"
)

// SessionOptions configures a scanning session.
type SessionOptions struct {
	// ScanDuration ends the scan automatically; zero scans until stopped.
	ScanDuration time.Duration `json:"scan_duration,omitempty"`
	// CompletionMessage is spoken when a timed scan ends.
	CompletionMessage string `json:"completion_message,omitempty"`
}

// SessionInfo describes the active session.
type SessionInfo struct {
	ID           string        `json:"id"`
	StartedAt    time.Time     `json:"started_at"`
	ScanDuration time.Duration `json:"scan_duration,omitempty"`
	Finishing    bool          `json:"finishing,omitempty"`
}

type timerKind int

const (
	timerGap timerKind = iota
	timerWatchdog
	timerScan
	timerGrace
)

func (k timerKind) String() string {
	switch k {
	case timerGap:
		return "gap"
	case timerWatchdog:
		return "watchdog"
	case timerScan:
		return "scan"
	case timerGrace:
		return "grace"
	default:
		return "unknown"
	}
}

type armedTimer struct {
	timer timeutil.Timer
	id    uint64
}

type session struct {
	info         SessionInfo
	opts         SessionOptions
	done         chan struct{}
	finishing    bool
	completionID string
	timers       map[timerKind]armedTimer
}

func (s *session) armed(kind timerKind) bool {
	_, ok := s.timers[kind]
	return ok
}

// take reports whether id is the live timer of kind and clears it.
func (s *session) take(kind timerKind, id uint64) bool {
	t, ok := s.timers[kind]
	if !ok || t.id != id {
		return false
	}
	delete(s.timers, kind)
	return true
}

func (s *session) stopTimers() {
	for kind, t := range s.timers {
		t.timer.Stop()
		delete(s.timers, kind)
	}
}

// stopSpeechTimers clears the timers tied to queue state and keeps the scan
// and grace deadlines.
func (s *session) stopSpeechTimers() {
	for _, kind := range []timerKind{timerGap, timerWatchdog} {
		if t, ok := s.timers[kind]; ok {
			t.timer.Stop()
			delete(s.timers, kind)
		}
	}
}

// Actor messages.
type message interface{ isMessage() }

type completionMsg struct {
	id      string
	success bool
}

type beginMsg struct {
	opts  SessionOptions
	reply chan sessionReply
}

type sessionReply struct {
	info SessionInfo
	err  error
}

type endMsg struct {
	reason string
	reply  chan error
}

type statusMsg struct {
	reply chan Status
}

type timerMsg struct {
	kind timerKind
	id   uint64
	// ref is the utterance a watchdog guards
	ref string
}

func (completionMsg) isMessage() {}
func (beginMsg) isMessage()      {}
func (endMsg) isMessage()        {}
func (statusMsg) isMessage()     {}
func (timerMsg) isMessage()      {}

// arm replaces the session timer of kind. Stale callbacks are recognised by
// their id and ignored.
func (e *Engine) arm(kind timerKind, d time.Duration, ref string) {
	s := e.session
	if s == nil {
		return
	}
	e.disarm(kind)

	e.timerID++
	id := e.timerID
	t := e.clock.AfterFunc(d, func() {
		e.post(timerMsg{kind: kind, id: id, ref: ref})
	})
	s.timers[kind] = armedTimer{timer: t, id: id}
}

func (e *Engine) disarm(kind timerKind) {
	s := e.session
	if s == nil {
		return
	}
	if t, ok := s.timers[kind]; ok {
		t.timer.Stop()
		delete(s.timers, kind)
	}
}

func (e *Engine) beginSession(_ context.Context, opts SessionOptions) (SessionInfo, error) {
	if e.session != nil {
		return SessionInfo{}, errors.New(ErrSessionActive).
			Component("engine").
			Category(errors.CategoryConflict).
			Context("session_id", e.session.info.ID).
			Build()
	}
	if opts.ScanDuration < 0 {
		return SessionInfo{}, errors.Newf("scan duration must not be negative").
			Component("engine").Category(errors.CategoryValidation).Build()
	}
	if opts.CompletionMessage == "" {
		opts.CompletionMessage = e.cfg.CompletionMessage
	}

	e.history.Reset()
	e.queue.Reset()

	s := &session{
		info: SessionInfo{
			ID:           uuid.NewString(),
			StartedAt:    e.clock.Now(),
			ScanDuration: opts.ScanDuration,
		},
		opts:   opts,
		done:   make(chan struct{}),
		timers: make(map[timerKind]armedTimer),
	}
	e.session = s

	e.doneMu.Lock()
	e.sessionDone = s.done
	e.doneMu.Unlock()

	if opts.ScanDuration > 0 {
		e.arm(timerScan, opts.ScanDuration, "")
	}

	e.log.Info("session started",
		logger.String("session_id", s.info.ID),
		logger.Duration("scan_duration", opts.ScanDuration))
	e.notifier.emit(Event{
		Type:         EventSessionStarted,
		SessionID:    s.info.ID,
		Time:         s.info.StartedAt,
		ScanDuration: s.info.ScanDuration,
	})
	return s.info, nil
}

// finishScan stops taking frames, drops pending alerts and queues the
// completion message. The session ends when it has been spoken or the grace
// period runs out.
func (e *Engine) finishScan(ctx context.Context) {
	s := e.session
	if s == nil || s.finishing {
		return
	}
	s.finishing = true
	dropped := e.queue.ClearPending()
	e.log.Info("scan duration elapsed",
		logger.String("session_id", s.info.ID),
		logger.Int("dropped_alerts", dropped))

	out := e.queue.Enqueue(speech.Request{Text: s.opts.CompletionMessage})
	if !out.Accepted {
		_ = e.endSession(ctx, "scan_complete")
		return
	}
	s.completionID = out.Utterance.ID
	e.arm(timerGrace, e.cfg.GracePeriod, "")
	e.dispatch(ctx)
}

// endSession cancels speech and timers and forgets all session state.
func (e *Engine) endSession(ctx context.Context, reason string) error {
	s := e.session
	if s == nil {
		return nil
	}
	s.stopTimers()
	err := e.queue.Cancel(ctx)
	e.queue.Reset()
	e.history.Reset()
	e.session = nil
	close(s.done)
	e.updateGauges()

	if err != nil {
		e.log.Warn("speaker stop failed", logger.String("session_id", s.info.ID), logger.Error(err))
	}
	e.log.Info("session ended",
		logger.String("session_id", s.info.ID),
		logger.String("reason", reason),
		logger.Duration("duration", e.clock.Since(s.info.StartedAt)))
	e.notifier.emit(Event{Type: EventSessionEnded, SessionID: s.info.ID, Time: e.clock.Now(), Reason: reason})
	return err
}
