package speech

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/sightline-go/internal/errors"
	"github.com/tphakala/sightline-go/internal/timeutil"
)

// State is the dispatch state of a Queue.
type State int

const (
	// Idle has nothing pending and nothing in flight.
	Idle State = iota
	// Queued has pending requests but nothing in flight.
	Queued
	// Speaking has exactly one utterance in flight.
	Speaking
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Queued:
		return "queued"
	case Speaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Defaults for QueueConfig.
const (
	DefaultMaxPending = 2
	DefaultStaleAfter = 5 * time.Second
	DefaultCooldown   = 3 * time.Second
	DefaultMinGap     = 2 * time.Second
	DefaultWatchdog   = 15 * time.Second
)

// QueueConfig tunes repetition suppression and pacing.
type QueueConfig struct {
	// MaxPending bounds the pending list; the oldest request is dropped on
	// overflow.
	MaxPending int
	// StaleAfter drops requests that waited longer than this.
	StaleAfter time.Duration
	// Cooldown keeps just-spoken text out of the queue.
	Cooldown time.Duration
	// MinGap is the silence enforced after each completion.
	MinGap time.Duration
	// Watchdog is how long an utterance may stay in flight before it is
	// considered lost.
	Watchdog time.Duration
}

// DefaultQueueConfig returns the documented pacing constants.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		MaxPending: DefaultMaxPending,
		StaleAfter: DefaultStaleAfter,
		Cooldown:   DefaultCooldown,
		MinGap:     DefaultMinGap,
		Watchdog:   DefaultWatchdog,
	}
}

// Validate rejects configurations that could stall the queue.
func (c QueueConfig) Validate() error {
	switch {
	case c.MaxPending < 1:
		return errors.Newf("speech: max pending must be at least 1, got %d", c.MaxPending).
			Component("speech").Category(errors.CategoryConfiguration).Build()
	case c.StaleAfter < 0, c.Cooldown < 0, c.MinGap < 0:
		return errors.Newf("speech: durations must not be negative").
			Component("speech").Category(errors.CategoryConfiguration).Build()
	case c.Watchdog <= 0:
		return errors.Newf("speech: watchdog must be positive, got %s", c.Watchdog).
			Component("speech").Category(errors.CategoryConfiguration).Build()
	}
	return nil
}

// Request asks for text to be spoken.
type Request struct {
	Text string
	// Key is the debounce key that produced the text, carried for events.
	Key string
}

// RejectReason explains why Enqueue refused a request.
type RejectReason string

const (
	RejectNone     RejectReason = ""
	RejectEmpty    RejectReason = "empty"
	RejectPending  RejectReason = "pending"
	RejectInFlight RejectReason = "in_flight"
	RejectRecent   RejectReason = "recently_spoken"
)

// EnqueueResult reports the outcome of Enqueue.
type EnqueueResult struct {
	Accepted bool
	Reason   RejectReason
	// Utterance is the accepted request; its ID is assigned here.
	Utterance Utterance
	// Evicted holds the pending request dropped to make room.
	Evicted *Utterance
}

// DropReason explains why Dispatch discarded a request.
type DropReason string

const (
	DropStale  DropReason = "stale"
	DropRecent DropReason = "recently_spoken"
)

// Drop is a pending request discarded by Dispatch.
type Drop struct {
	Utterance Utterance
	Reason    DropReason
}

// DispatchResult reports the outcome of Dispatch.
type DispatchResult struct {
	// Started is set when an utterance was handed to the speaker.
	Started *Utterance
	// Wait is set when the head must wait for the inter-utterance gap; the
	// caller schedules another Dispatch after it.
	Wait time.Duration
	// Dropped lists heads discarded before a speakable one was found.
	Dropped []Drop
	// Err is a synchronous speaker failure. The utterance has already been
	// completed as failed.
	Err error
}

// Snapshot is a read-only view of the queue.
type Snapshot struct {
	State           State      `json:"state"`
	Pending         []string   `json:"pending"`
	InFlight        *Utterance `json:"in_flight,omitempty"`
	RecentlySpoken  []string   `json:"recently_spoken"`
	LastCompletedAt time.Time  `json:"last_completed_at,omitzero"`
}

// Queue is the single-flight speech dispatcher. It is safe for concurrent
// use, although the engine drives it from one goroutine.
type Queue struct {
	mu      sync.Mutex
	cfg     QueueConfig
	speaker Speaker
	clock   timeutil.Clock

	pending  []Utterance
	inFlight *Utterance
	// recent maps spoken text to the end of its cooldown
	recent          map[string]time.Time
	lastCompletedAt time.Time
}

// NewQueue creates an idle queue in front of speaker.
func NewQueue(cfg QueueConfig, speaker Speaker, clock timeutil.Clock) *Queue {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if cfg.MaxPending < 1 {
		cfg.MaxPending = DefaultMaxPending
	}
	if cfg.Watchdog <= 0 {
		cfg.Watchdog = DefaultWatchdog
	}
	return &Queue{
		cfg:     cfg,
		speaker: speaker,
		clock:   clock,
		recent:  make(map[string]time.Time),
	}
}

// Config returns the queue configuration.
func (q *Queue) Config() QueueConfig {
	return q.cfg
}

// Enqueue appends req unless its text is already pending, in flight or
// inside its cooldown.
func (q *Queue) Enqueue(req Request) EnqueueResult {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return EnqueueResult{Reason: RejectEmpty}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.clock.Now()
	q.sweepRecent(now)

	if q.inFlight != nil && q.inFlight.Text == text {
		return EnqueueResult{Reason: RejectInFlight}
	}
	for _, p := range q.pending {
		if p.Text == text {
			return EnqueueResult{Reason: RejectPending}
		}
	}
	if _, ok := q.recent[text]; ok {
		return EnqueueResult{Reason: RejectRecent}
	}

	u := Utterance{
		ID:         uuid.NewString(),
		Text:       text,
		Key:        req.Key,
		EnqueuedAt: now,
	}
	res := EnqueueResult{Accepted: true, Utterance: u}
	if len(q.pending) >= q.cfg.MaxPending {
		evicted := q.pending[0]
		q.pending = q.pending[1:]
		res.Evicted = &evicted
	}
	q.pending = append(q.pending, u)
	return res
}

// Dispatch hands the pending head to the speaker when nothing is in flight
// and the inter-utterance gap has passed. Heads that went stale or whose
// text is cooling down are dropped first.
func (q *Queue) Dispatch(ctx context.Context) DispatchResult {
	q.mu.Lock()
	defer q.mu.Unlock()

	var res DispatchResult
	if q.inFlight != nil {
		return res
	}

	now := q.clock.Now()
	q.sweepRecent(now)

	for len(q.pending) > 0 {
		head := q.pending[0]
		reason := DropReason("")
		if _, ok := q.recent[head.Text]; ok {
			reason = DropRecent
		} else if q.cfg.StaleAfter > 0 && now.Sub(head.EnqueuedAt) > q.cfg.StaleAfter {
			reason = DropStale
		}
		if reason == "" {
			break
		}
		q.pending = q.pending[1:]
		res.Dropped = append(res.Dropped, Drop{Utterance: head, Reason: reason})
	}
	if len(q.pending) == 0 {
		return res
	}

	if !q.lastCompletedAt.IsZero() {
		if elapsed := now.Sub(q.lastCompletedAt); elapsed < q.cfg.MinGap {
			res.Wait = q.cfg.MinGap - elapsed
			return res
		}
	}

	u := q.pending[0]
	q.pending = q.pending[1:]
	u.StartedAt = now
	q.inFlight = &u
	started := u
	res.Started = &started

	if q.speaker == nil {
		return res
	}
	if err := q.speaker.Speak(ctx, u); err != nil {
		res.Err = errors.New(err).
			Component("speech").
			Category(errors.CategorySpeech).
			Context("utterance_id", u.ID).
			Build()
		q.completeLocked(now)
	}
	return res
}

// Complete ends the in-flight utterance. An empty id matches whatever is in
// flight; a different id is ignored. Success and failure advance the queue
// the same way.
func (q *Queue) Complete(id string, success bool) (Utterance, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.inFlight == nil {
		return Utterance{}, false
	}
	if id != "" && id != q.inFlight.ID {
		return Utterance{}, false
	}
	done := *q.inFlight
	q.completeLocked(q.clock.Now())
	return done, true
}

func (q *Queue) completeLocked(now time.Time) {
	if q.inFlight == nil {
		return
	}
	if q.cfg.Cooldown > 0 {
		q.recent[q.inFlight.Text] = now.Add(q.cfg.Cooldown)
	}
	q.inFlight = nil
	q.lastCompletedAt = now
}

// Expired returns the in-flight utterance once it has been speaking for the
// whole watchdog period.
func (q *Queue) Expired(now time.Time) (Utterance, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.inFlight == nil || now.Sub(q.inFlight.StartedAt) < q.cfg.Watchdog {
		return Utterance{}, false
	}
	return *q.inFlight, true
}

// Cancel stops the speaker if something is in flight, drops every pending
// request and returns the queue to Idle.
func (q *Queue) Cancel(ctx context.Context) error {
	q.mu.Lock()
	speaking := q.inFlight != nil
	q.inFlight = nil
	q.pending = nil
	q.mu.Unlock()

	if !speaking || q.speaker == nil {
		return nil
	}
	if err := q.speaker.Stop(ctx); err != nil {
		return errors.New(err).
			Component("speech").
			Category(errors.CategorySpeech).
			Context("operation", "stop").
			Build()
	}
	return nil
}

// ClearPending drops pending requests without touching the in-flight one.
func (q *Queue) ClearPending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.pending)
	q.pending = nil
	return n
}

// Reset forgets all state, including cooldowns and the last completion.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = nil
	q.inFlight = nil
	clear(q.recent)
	q.lastCompletedAt = time.Time{}
}

// State returns the current dispatch state.
func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stateLocked()
}

func (q *Queue) stateLocked() State {
	switch {
	case q.inFlight != nil:
		return Speaking
	case len(q.pending) > 0:
		return Queued
	default:
		return Idle
	}
}

// Len returns the number of pending requests.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// InFlight returns the utterance being spoken.
func (q *Queue) InFlight() (Utterance, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inFlight == nil {
		return Utterance{}, false
	}
	return *q.inFlight, true
}

// Snapshot returns a copy of the queue state.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.sweepRecent(q.clock.Now())
	s := Snapshot{
		State:           q.stateLocked(),
		Pending:         make([]string, 0, len(q.pending)),
		RecentlySpoken:  make([]string, 0, len(q.recent)),
		LastCompletedAt: q.lastCompletedAt,
	}
	for _, p := range q.pending {
		s.Pending = append(s.Pending, p.Text)
	}
	for text := range q.recent {
		s.RecentlySpoken = append(s.RecentlySpoken, text)
	}
	slices.Sort(s.RecentlySpoken)
	if q.inFlight != nil {
		u := *q.inFlight
		s.InFlight = &u
	}
	return s
}

func (q *Queue) sweepRecent(now time.Time) {
	for text, until := range q.recent {
		if !now.Before(until) {
			delete(q.recent, text)
		}
	}
}
