package engine

import (
	"sync"
	"time"

	"github.com/tphakala/sightline-go/internal/obstacle"
)

type frameReply struct {
	result FrameResult
	err    error
}

type frameRequest struct {
	dets     []obstacle.Detection
	received time.Time
	// reply is nil for fire-and-forget submissions
	reply chan frameReply
}

// mailbox holds at most one unprocessed frame. A newer frame replaces the
// waiting one.
type mailbox struct {
	mu    sync.Mutex
	next  *frameRequest
	ready chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{ready: make(chan struct{}, 1)}
}

// put stores req and returns the frame it replaced, if any.
func (m *mailbox) put(req *frameRequest) *frameRequest {
	m.mu.Lock()
	old := m.next
	m.next = req
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
	return old
}

func (m *mailbox) take() *frameRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	req := m.next
	m.next = nil
	return req
}
