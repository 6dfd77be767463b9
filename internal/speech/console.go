package speech

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/tphakala/sightline-go/internal/timeutil"
)

// ConsoleSpeaker prints utterances and simulates their duration with a clock
// timer, then reports completion. Used by replay and for local runs without
// a TTS engine.
type ConsoleSpeaker struct {
	mu      sync.Mutex
	out     io.Writer
	clock   timeutil.Clock
	base    time.Duration
	perWord time.Duration
	timer   timeutil.Timer
	current string
	onDone  CompletionFunc
}

// ConsoleOptions sets the simulated speaking rate.
type ConsoleOptions struct {
	Base    time.Duration
	PerWord time.Duration
}

// NewConsoleSpeaker creates a speaker writing to out.
func NewConsoleSpeaker(out io.Writer, clock timeutil.Clock, opts ConsoleOptions) *ConsoleSpeaker {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if opts.Base <= 0 {
		opts.Base = 400 * time.Millisecond
	}
	if opts.PerWord <= 0 {
		opts.PerWord = 250 * time.Millisecond
	}
	return &ConsoleSpeaker{out: out, clock: clock, base: opts.Base, perWord: opts.PerWord}
}

// Duration returns how long text takes to "speak".
func (s *ConsoleSpeaker) Duration(text string) time.Duration {
	return s.base + time.Duration(len(strings.Fields(text)))*s.perWord
}

// Speak prints the text and arms the completion timer.
func (s *ConsoleSpeaker) Speak(_ context.Context, u Utterance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprintf(s.out, "[speak] %s\n", u.Text); err != nil {
		return err
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	id := u.ID
	s.current = id
	s.timer = s.clock.AfterFunc(s.Duration(u.Text), func() { s.finish(id) })
	return nil
}

// Stop cancels the completion timer. No completion is reported for a
// stopped utterance.
func (s *ConsoleSpeaker) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.current != "" {
		_, _ = fmt.Fprintln(s.out, "[speak] stopped")
	}
	s.current = ""
	return nil
}

// SetCompletionHandler implements CompletionNotifier.
func (s *ConsoleSpeaker) SetCompletionHandler(fn CompletionFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDone = fn
}

func (s *ConsoleSpeaker) finish(id string) {
	s.mu.Lock()
	if s.current != id {
		s.mu.Unlock()
		return
	}
	s.current = ""
	s.timer = nil
	fn := s.onDone
	s.mu.Unlock()

	if fn != nil {
		fn(id, true)
	}
}
