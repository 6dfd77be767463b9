// Package speech serializes alert text into a single text-to-speech engine:
// one utterance in flight, no repeats inside a cooldown window, and a
// minimum gap between utterances.
package speech

import (
	"context"
	"time"
)

// Utterance is one piece of text handed to a Speaker.
type Utterance struct {
	ID         string    `json:"utterance_id"`
	Text       string    `json:"text"`
	Key        string    `json:"key,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	StartedAt  time.Time `json:"started_at,omitzero"`
}

// Speaker is the external TTS engine.
//
// Speak starts an utterance and must return promptly; the end of speech is
// reported later through Queue.Complete (directly, or via a
// CompletionNotifier). Speak must not call back into the queue before it
// returns. Stop interrupts whatever is being spoken.
type Speaker interface {
	Speak(ctx context.Context, u Utterance) error
	Stop(ctx context.Context) error
}

// CompletionFunc receives the end of an utterance. An empty id means "the
// utterance in flight".
type CompletionFunc func(utteranceID string, success bool)

// CompletionNotifier is implemented by speakers that report completion
// themselves rather than through an external callback.
type CompletionNotifier interface {
	SetCompletionHandler(fn CompletionFunc)
}
