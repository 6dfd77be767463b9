package speech

import (
	"context"
	"sync"
)

// MockSpeaker records calls and lets tests finish utterances by hand. It
// tracks how many utterances overlap so single-flight can be asserted.
type MockSpeaker struct {
	mu          sync.Mutex
	spoken      []Utterance
	inFlight    map[string]Utterance
	maxInFlight int
	stops       int
	speakErr    error
	stopErr     error
	onDone      CompletionFunc
}

// NewMockSpeaker creates an empty mock speaker.
func NewMockSpeaker() *MockSpeaker {
	return &MockSpeaker{inFlight: make(map[string]Utterance)}
}

// Speak records u. It returns the error set by FailSpeak, if any.
func (m *MockSpeaker) Speak(_ context.Context, u Utterance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.speakErr != nil {
		return m.speakErr
	}
	m.spoken = append(m.spoken, u)
	m.inFlight[u.ID] = u
	m.maxInFlight = max(m.maxInFlight, len(m.inFlight))
	return nil
}

// Stop abandons every utterance in flight.
func (m *MockSpeaker) Stop(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	clear(m.inFlight)
	return m.stopErr
}

// SetCompletionHandler implements CompletionNotifier.
func (m *MockSpeaker) SetCompletionHandler(fn CompletionFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDone = fn
}

// Finish ends utterance id and, when a handler is set, reports it.
func (m *MockSpeaker) Finish(id string, success bool) {
	m.mu.Lock()
	delete(m.inFlight, id)
	fn := m.onDone
	m.mu.Unlock()
	if fn != nil {
		fn(id, success)
	}
}

// FailSpeak makes subsequent Speak calls return err; nil restores success.
func (m *MockSpeaker) FailSpeak(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.speakErr = err
}

// FailStop makes Stop return err.
func (m *MockSpeaker) FailStop(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopErr = err
}

// Spoken returns every utterance passed to Speak.
func (m *MockSpeaker) Spoken() []Utterance {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Utterance, len(m.spoken))
	copy(out, m.spoken)
	return out
}

// Texts returns the text of every spoken utterance.
func (m *MockSpeaker) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.spoken))
	for i, u := range m.spoken {
		out[i] = u.Text
	}
	return out
}

// Last returns the most recent utterance.
func (m *MockSpeaker) Last() (Utterance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.spoken) == 0 {
		return Utterance{}, false
	}
	return m.spoken[len(m.spoken)-1], true
}

// MaxInFlight is the highest number of overlapping utterances seen.
func (m *MockSpeaker) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

// InFlight returns the number of utterances not yet finished or stopped.
func (m *MockSpeaker) InFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inFlight)
}

// Stops returns how many times Stop was called.
func (m *MockSpeaker) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}
