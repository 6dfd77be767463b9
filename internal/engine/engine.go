// Package engine coordinates one scanning session: frames are ranked by the
// obstacle selector, debounced by the history store and handed to the
// speech queue. All session state is owned by a single actor goroutine;
// the exported entry points are safe to call from any goroutine.
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tphakala/sightline-go/internal/errors"
	"github.com/tphakala/sightline-go/internal/history"
	"github.com/tphakala/sightline-go/internal/logger"
	"github.com/tphakala/sightline-go/internal/obstacle"
	"github.com/tphakala/sightline-go/internal/speech"
	"github.com/tphakala/sightline-go/internal/timeutil"
)

var (
	// ErrNoSession is returned for frames that arrive outside a session.
	ErrNoSession = errors.NewStd("no active session")
	// ErrSessionActive is returned by BeginSession while a session runs.
	ErrSessionActive = errors.NewStd("session already active")
	// ErrStopped is returned once Run has exited.
	ErrStopped = errors.NewStd("engine stopped")
)

// Defaults for Config.
const (
	DefaultTopN              = 3
	DefaultControlBuffer     = 64
	DefaultSinkBuffer        = 128
	DefaultSinkTimeout       = 2 * time.Second
	DefaultGracePeriod       = 3 * time.Second
	DefaultCompletionMessage = "Scan complete."
)

// Config tunes the coordinator.
type Config struct {
	HistoryTTL time.Duration
	Queue      speech.QueueConfig
	// TopN is the length of the ranked prefix returned for display.
	TopN          int
	ControlBuffer int
	SinkBuffer    int
	SinkTimeout   time.Duration
	// GracePeriod bounds how long a finished scan waits for its completion
	// message.
	GracePeriod       time.Duration
	CompletionMessage string
	// AutoStart opens an unbounded session as soon as Run starts.
	AutoStart bool
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		HistoryTTL:        history.DefaultTTL,
		Queue:             speech.DefaultQueueConfig(),
		TopN:              DefaultTopN,
		ControlBuffer:     DefaultControlBuffer,
		SinkBuffer:        DefaultSinkBuffer,
		SinkTimeout:       DefaultSinkTimeout,
		GracePeriod:       DefaultGracePeriod,
		CompletionMessage: DefaultCompletionMessage,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Queue == (speech.QueueConfig{}) {
		c.Queue = d.Queue
	}
	if c.HistoryTTL <= 0 {
		c.HistoryTTL = d.HistoryTTL
	}
	if c.TopN <= 0 {
		c.TopN = d.TopN
	}
	if c.ControlBuffer <= 0 {
		c.ControlBuffer = d.ControlBuffer
	}
	if c.SinkBuffer <= 0 {
		c.SinkBuffer = d.SinkBuffer
	}
	if c.SinkTimeout <= 0 {
		c.SinkTimeout = d.SinkTimeout
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = d.GracePeriod
	}
	if c.CompletionMessage == "" {
		c.CompletionMessage = d.CompletionMessage
	}
}

// FrameResult is the informational outcome of one frame; speech itself is
// asynchronous.
type FrameResult struct {
	SessionID string `json:"session_id,omitempty"`
	// Announced is the alert text accepted for speech, if any.
	Announced string `json:"announced,omitempty"`
	// Key is the debounce key of the top candidate.
	Key string `json:"key,omitempty"`
	// Top is the ranked display prefix.
	Top            []obstacle.Scored `json:"top"`
	Rejected       int               `json:"rejected"`
	BelowThreshold int               `json:"below_threshold"`
	// Suppressed says why the top candidate was not announced.
	Suppressed string `json:"suppressed,omitempty"`
	// Superseded is set when a newer frame replaced this one before it was
	// processed.
	Superseded bool `json:"superseded,omitempty"`
	// Ignored is set for frames arriving while a finished scan winds down.
	Ignored bool `json:"ignored,omitempty"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the real clock.
func WithClock(c timeutil.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger replaces the module logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMetrics attaches a metrics implementation.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithSinks registers event sinks.
func WithSinks(sinks ...Sink) Option {
	return func(e *Engine) { e.sinks = append(e.sinks, sinks...) }
}

// Engine is the coordinator actor.
type Engine struct {
	cfg      Config
	selector *obstacle.Selector
	speaker  speech.Speaker
	clock    timeutil.Clock
	log      logger.Logger
	metrics  Metrics
	sinks    []Sink

	frames     *mailbox
	control    chan message
	started    atomic.Bool
	stopped    chan struct{}
	superseded atomic.Uint64

	notifier *notifier

	// actor-owned state
	history *history.Store
	queue   *speech.Queue
	session *session
	timerID uint64
	stats   counters

	doneMu      sync.Mutex
	sessionDone chan struct{}
}

type counters struct {
	frames        uint64
	announced     uint64
	lastAnnounced string
}

// New creates an engine. Call Run to start it.
func New(cfg Config, selector *obstacle.Selector, speaker speech.Speaker, opts ...Option) (*Engine, error) {
	if selector == nil {
		return nil, errors.Newf("engine: selector is required").
			Component("engine").Category(errors.CategoryConfiguration).Build()
	}
	if speaker == nil {
		return nil, errors.Newf("engine: speaker is required").
			Component("engine").Category(errors.CategoryConfiguration).Build()
	}
	cfg.applyDefaults()
	if err := cfg.Queue.Validate(); err != nil {
		return nil, err
	}

	closed := make(chan struct{})
	close(closed)

	e := &Engine{
		cfg:         cfg,
		selector:    selector,
		speaker:     speaker,
		clock:       timeutil.RealClock{},
		metrics:     noopMetrics{},
		frames:      newMailbox(),
		control:     make(chan message, cfg.ControlBuffer),
		stopped:     make(chan struct{}),
		history:     history.NewStore(cfg.HistoryTTL),
		sessionDone: closed,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = GetLogger()
	}
	e.queue = speech.NewQueue(cfg.Queue, speaker, e.clock)
	e.notifier = newNotifier(e.sinks, cfg.SinkBuffer, cfg.SinkTimeout, e.metrics, e.log.Module("sinks"))

	if n, ok := speaker.(speech.CompletionNotifier); ok {
		n.SetCompletionHandler(e.OnSpeechCompleted)
	}
	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Run processes messages until ctx is cancelled. Any active session is
// ended before Run returns. Run may be called once.
func (e *Engine) Run(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return errors.Newf("engine: Run called twice").
			Component("engine").Category(errors.CategoryState).Build()
	}

	go e.notifier.run()
	defer func() {
		e.notifier.close()
		close(e.stopped)
	}()

	e.log.Info("engine started",
		logger.Duration("history_ttl", e.cfg.HistoryTTL),
		logger.Duration("cooldown", e.cfg.Queue.Cooldown),
		logger.Duration("min_gap", e.cfg.Queue.MinGap))

	if e.cfg.AutoStart {
		if _, err := e.beginSession(ctx, SessionOptions{}); err != nil {
			e.log.Error("auto-start session failed", logger.Error(err))
		}
	}

	for {
		select {
		case <-ctx.Done():
			e.shutdown(ctx)
			return nil
		case msg := <-e.control:
			e.handle(ctx, msg)
		case <-e.frames.ready:
			if req := e.frames.take(); req != nil {
				e.handleFrame(ctx, req)
			}
		}
	}
}

func (e *Engine) shutdown(ctx context.Context) {
	if e.session == nil {
		return
	}
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	_ = e.endSession(stopCtx, "shutdown")
	e.log.Info("engine stopped")
}

// post delivers msg to the actor unless the engine has stopped.
func (e *Engine) post(msg message) bool {
	select {
	case e.control <- msg:
		return true
	case <-e.stopped:
		return false
	}
}

// OnFrame submits detections and waits for the frame to be processed. If a
// newer frame arrives first, the result has Superseded set.
func (e *Engine) OnFrame(ctx context.Context, dets []obstacle.Detection) (FrameResult, error) {
	req := &frameRequest{dets: dets, received: e.clock.Now(), reply: make(chan frameReply, 1)}
	e.submit(req)

	select {
	case r := <-req.reply:
		return r.result, r.err
	case <-ctx.Done():
		return FrameResult{}, ctx.Err()
	case <-e.stopped:
		return FrameResult{}, ErrStopped
	}
}

// SubmitFrame is the fire-and-forget variant of OnFrame for camera
// callbacks.
func (e *Engine) SubmitFrame(dets []obstacle.Detection) {
	e.submit(&frameRequest{dets: dets, received: e.clock.Now()})
}

func (e *Engine) submit(req *frameRequest) {
	old := e.frames.put(req)
	if old == nil {
		return
	}
	e.superseded.Add(1)
	e.metrics.FrameSuperseded()
	if old.reply != nil {
		old.reply <- frameReply{result: FrameResult{Superseded: true}}
	}
}

// OnSpeechCompleted reports the end of an utterance. An empty id completes
// whatever is in flight.
func (e *Engine) OnSpeechCompleted(utteranceID string, success bool) {
	e.post(completionMsg{id: utteranceID, success: success})
}

// BeginSession starts a scanning session.
func (e *Engine) BeginSession(ctx context.Context, opts SessionOptions) (SessionInfo, error) {
	reply := make(chan sessionReply, 1)
	if !e.post(beginMsg{opts: opts, reply: reply}) {
		return SessionInfo{}, ErrStopped
	}
	select {
	case r := <-reply:
		return r.info, r.err
	case <-ctx.Done():
		return SessionInfo{}, ctx.Err()
	case <-e.stopped:
		return SessionInfo{}, ErrStopped
	}
}

// EndSession stops any speech, discards pending alerts and ends the
// session. Ending without a session is not an error.
func (e *Engine) EndSession(ctx context.Context) error {
	reply := make(chan error, 1)
	if !e.post(endMsg{reason: "stopped", reply: reply}) {
		return ErrStopped
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-e.stopped:
		return ErrStopped
	}
}

// Status returns a snapshot of the engine state.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	reply := make(chan Status, 1)
	if !e.post(statusMsg{reply: reply}) {
		return Status{}, ErrStopped
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	case <-e.stopped:
		return Status{}, ErrStopped
	}
}

// SessionDone returns a channel closed when the current session ends. With
// no session the channel is already closed.
func (e *Engine) SessionDone() <-chan struct{} {
	e.doneMu.Lock()
	defer e.doneMu.Unlock()
	return e.sessionDone
}

// Done is closed once Run has returned.
func (e *Engine) Done() <-chan struct{} {
	return e.stopped
}

// Status is a point-in-time view of the engine.
type Status struct {
	Session         *SessionInfo    `json:"session,omitempty"`
	Queue           speech.Snapshot `json:"queue"`
	HistoryKeys     []string        `json:"history_keys"`
	FramesProcessed uint64          `json:"frames_processed"`
	FramesReplaced  uint64          `json:"frames_superseded"`
	AlertsAnnounced uint64          `json:"alerts_announced"`
	LastAnnounced   string          `json:"last_announced,omitempty"`
}

func (e *Engine) status() Status {
	s := Status{
		Queue:           e.queue.Snapshot(),
		HistoryKeys:     e.history.Keys(),
		FramesProcessed: e.stats.frames,
		FramesReplaced:  e.superseded.Load(),
		AlertsAnnounced: e.stats.announced,
		LastAnnounced:   e.stats.lastAnnounced,
	}
	if e.session != nil {
		info := e.session.info
		info.Finishing = e.session.finishing
		s.Session = &info
	}
	return s
}

// handleFrame runs one frame and always answers the caller, even when
// processing panics.
func (e *Engine) handleFrame(ctx context.Context, req *frameRequest) {
	var res FrameResult
	var err error
	if perr := e.safely(func() { res, err = e.processFrame(ctx, req) }); perr != nil {
		err = perr
	}
	if req.reply != nil {
		req.reply <- frameReply{result: res, err: err}
	}
}

func (e *Engine) processFrame(ctx context.Context, req *frameRequest) (FrameResult, error) {
	if e.session == nil {
		return FrameResult{}, ErrNoSession
	}
	res := FrameResult{SessionID: e.session.info.ID, Top: []obstacle.Scored{}}
	if e.session.finishing {
		res.Ignored = true
		return res, nil
	}

	start := time.Now()
	now := e.clock.Now()
	e.metrics.FrameWaited(now.Sub(req.received))
	e.stats.frames++
	e.history.EvictExpired(now)

	sel := e.selector.Select(req.dets)
	res.Rejected = len(sel.Rejected)
	res.BelowThreshold = sel.BelowThreshold
	res.Top = append(res.Top, sel.Top(e.cfg.TopN)...)
	e.metrics.DetectionsRejected(res.Rejected)
	e.metrics.DetectionsBelowThreshold(res.BelowThreshold)
	for _, r := range sel.Rejected {
		e.log.Debug("detection rejected", logger.Int("index", r.Index), logger.Error(r.Err))
	}

	if best, ok := sel.Best(); ok {
		res.Key = best.HistoryKey
		e.announce(best, now, &res)
	}

	e.dispatch(ctx)
	e.metrics.FrameProcessed(time.Since(start))
	return res, nil
}

func (e *Engine) announce(best obstacle.Scored, now time.Time, res *FrameResult) {
	if !e.history.ShouldAlert(best.HistoryKey, now) {
		res.Suppressed = "debounced"
		e.metrics.AlertSuppressed(res.Suppressed)
		return
	}

	text := e.selector.Describe(best)
	e.history.RecordAlert(best.HistoryKey, now)

	out := e.queue.Enqueue(speech.Request{Text: text, Key: best.HistoryKey})
	if !out.Accepted {
		res.Suppressed = string(out.Reason)
		e.metrics.AlertSuppressed(res.Suppressed)
		e.log.Debug("alert not queued",
			logger.String("text", text),
			logger.String("reason", res.Suppressed))
		return
	}
	if out.Evicted != nil {
		e.metrics.AlertSuppressed("evicted")
		e.log.Debug("pending alert superseded", logger.String("text", out.Evicted.Text))
	}

	res.Announced = text
	e.stats.announced++
	e.stats.lastAnnounced = text
	e.metrics.AlertEnqueued()
	terms := e.selector.Scorer().Terms(best.Detection, best.Profile)
	e.log.Debug("alert queued",
		logger.String("text", text),
		logger.String("key", best.HistoryKey),
		logger.Float32("priority", best.Priority),
		logger.Float32("term_area", terms.Area),
		logger.Float32("term_relevance", terms.Relevance),
		logger.Float32("term_position", terms.Position),
		logger.Float32("term_closeness", terms.Closeness))
}

// dispatch starts the next utterance if the queue allows it.
func (e *Engine) dispatch(ctx context.Context) {
	s := e.session
	if s == nil {
		return
	}

	for {
		out := e.queue.Dispatch(ctx)
		for _, d := range out.Dropped {
			e.metrics.AlertSuppressed(string(d.Reason))
			e.log.Debug("pending alert dropped",
				logger.String("text", d.Utterance.Text),
				logger.String("reason", string(d.Reason)))
		}

		if out.Wait > 0 {
			if !s.armed(timerGap) {
				e.arm(timerGap, out.Wait, "")
			}
			break
		}
		if out.Started == nil {
			break
		}

		u := *out.Started
		if out.Err != nil {
			e.metrics.UtteranceCompleted("failed")
			e.log.Warn("speech failed to start",
				logger.String("utterance_id", u.ID),
				logger.Error(out.Err))
			if e.finishedCompletion(ctx, u.ID) {
				return
			}
			continue
		}

		e.metrics.UtteranceStarted()
		e.arm(timerWatchdog, e.cfg.Queue.Watchdog, u.ID)
		if s.finishing && u.ID == s.completionID {
			e.arm(timerGrace, e.cfg.GracePeriod, "")
		}
		e.notifier.emit(Event{
			Type:        EventAlertSpoken,
			SessionID:   s.info.ID,
			Time:        u.StartedAt,
			UtteranceID: u.ID,
			Text:        u.Text,
			Key:         u.Key,
		})
		break
	}
	e.updateGauges()
}

func (e *Engine) updateGauges() {
	e.metrics.QueueDepth(e.queue.Len())
	e.metrics.Speaking(e.queue.State() == speech.Speaking)
}

func (e *Engine) handle(ctx context.Context, msg message) {
	switch m := msg.(type) {
	case beginMsg:
		var info SessionInfo
		var err error
		if perr := e.safely(func() { info, err = e.beginSession(ctx, m.opts) }); perr != nil {
			err = perr
		}
		m.reply <- sessionReply{info: info, err: err}
	case endMsg:
		var err error
		if perr := e.safely(func() { err = e.endSession(ctx, m.reason) }); perr != nil {
			err = perr
		}
		m.reply <- err
	case statusMsg:
		var s Status
		_ = e.safely(func() { s = e.status() })
		m.reply <- s
	case completionMsg:
		_ = e.safely(func() { e.complete(ctx, m.id, m.success) })
	case timerMsg:
		_ = e.safely(func() { e.fire(ctx, m) })
	}
}

func (e *Engine) complete(ctx context.Context, id string, success bool) {
	if e.session == nil {
		return
	}
	u, ok := e.queue.Complete(id, success)
	if !ok {
		e.log.Debug("completion ignored", logger.String("utterance_id", id))
		return
	}
	e.disarm(timerWatchdog)

	status := "success"
	if !success {
		status = "failed"
	}
	e.metrics.UtteranceCompleted(status)
	e.log.Debug("utterance completed",
		logger.String("utterance_id", u.ID),
		logger.Bool("success", success))

	if e.finishedCompletion(ctx, u.ID) {
		return
	}
	e.dispatch(ctx)
}

// finishedCompletion ends a wound-down session once its completion message
// has been spoken.
func (e *Engine) finishedCompletion(ctx context.Context, id string) bool {
	s := e.session
	if s == nil || !s.finishing || id != s.completionID {
		return false
	}
	_ = e.endSession(ctx, "scan_complete")
	return true
}

func (e *Engine) fire(ctx context.Context, m timerMsg) {
	s := e.session
	if s == nil || !s.take(m.kind, m.id) {
		return
	}

	switch m.kind {
	case timerGap:
		e.dispatch(ctx)
	case timerWatchdog:
		u, ok := e.queue.Expired(e.clock.Now())
		if !ok || u.ID != m.ref {
			return
		}
		e.metrics.WatchdogTripped()
		e.log.Warn("speech watchdog expired, forcing completion",
			logger.String("utterance_id", u.ID),
			logger.Duration("watchdog", e.cfg.Queue.Watchdog))
		e.complete(ctx, u.ID, false)
	case timerScan:
		e.finishScan(ctx)
	case timerGrace:
		_ = e.endSession(ctx, "scan_complete")
	}
}

// safely runs fn, turning a panic into an error and resetting the session
// state so the host keeps running.
func (e *Engine) safely(fn func()) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		e.metrics.PanicRecovered()
		err = errors.Newf("engine: recovered from panic: %v", r).
			Component("engine").
			Category(errors.CategoryState).
			Priority(errors.PriorityHigh).
			Build()
		e.log.Error("engine state reset after panic", logger.Error(err))
		e.resetState()
	}()
	fn()
	return nil
}

func (e *Engine) resetState() {
	e.history.Reset()
	e.queue.Reset()
	if e.session != nil {
		e.session.stopSpeechTimers()
	}
	e.updateGauges()
}
