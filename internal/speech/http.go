package speech

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/tphakala/sightline-go/internal/errors"
	"github.com/tphakala/sightline-go/internal/httpclient"
	"github.com/tphakala/sightline-go/internal/logger"
)

// HTTPSpeaker forwards utterances to an external TTS daemon. Speak POSTs
// {utterance_id, text} to the endpoint in the background; Stop abandons
// undelivered POSTs and sends DELETE. The daemon reports completion through
// the HTTP API, so only delivery failures are reported through the
// completion handler.
type HTTPSpeaker struct {
	client   *httpclient.Client
	endpoint string
	timeout  time.Duration
	log      logger.Logger

	mu     sync.Mutex
	onDone CompletionFunc
	// inflight holds each undelivered POST by utterance ID
	inflight map[string]pendingPost
	seq      uint64
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

type pendingPost struct {
	seq    uint64
	cancel context.CancelFunc
}

type speakRequest struct {
	UtteranceID string `json:"utterance_id"`
	Text        string `json:"text"`
}

// NewHTTPSpeaker creates a speaker for endpoint.
func NewHTTPSpeaker(client *httpclient.Client, endpoint string, timeout time.Duration) *HTTPSpeaker {
	if client == nil {
		client = httpclient.New(nil)
	}
	if timeout <= 0 {
		timeout = httpclient.DefaultTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &HTTPSpeaker{
		client:   client,
		endpoint: endpoint,
		timeout:  timeout,
		log:      GetLogger().With(logger.String("speaker", "http")),
		inflight: make(map[string]pendingPost),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Speak posts u without blocking the caller.
func (s *HTTPSpeaker) Speak(_ context.Context, u Utterance) error {
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		return errors.Newf("http speaker closed").
			Component("speech").Category(errors.CategorySpeech).Build()
	}
	uctx, ucancel := context.WithCancel(s.ctx)
	if prev, ok := s.inflight[u.ID]; ok {
		prev.cancel()
	}
	s.seq++
	seq := s.seq
	s.inflight[u.ID] = pendingPost{seq: seq, cancel: ucancel}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.release(u.ID, seq, ucancel)
		ctx, cancel := context.WithTimeout(uctx, s.timeout)
		defer cancel()

		err := s.client.SendJSON(ctx, http.MethodPost, s.endpoint, speakRequest{UtteranceID: u.ID, Text: u.Text})
		if err == nil {
			return
		}
		if uctx.Err() != nil {
			// abandoned by Stop or Close
			s.log.Debug("speak request canceled", logger.String("utterance_id", u.ID))
			return
		}
		s.log.Warn("speak request failed",
			logger.String("utterance_id", u.ID),
			logger.Error(err))

		s.mu.Lock()
		fn := s.onDone
		s.mu.Unlock()
		if fn != nil {
			fn(u.ID, false)
		}
	}()
	return nil
}

// release forgets the POST for id unless a newer one replaced it.
func (s *HTTPSpeaker) release(id string, seq uint64, cancel context.CancelFunc) {
	cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.inflight[id]; ok && cur.seq == seq {
		delete(s.inflight, id)
	}
}

// Stop cancels undelivered speak requests and asks the daemon to stop
// speaking.
func (s *HTTPSpeaker) Stop(ctx context.Context) error {
	s.mu.Lock()
	for id, p := range s.inflight {
		p.cancel()
		delete(s.inflight, id)
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.SendJSON(ctx, http.MethodDelete, s.endpoint, nil); err != nil {
		return errors.New(err).
			Component("speech").
			Category(errors.CategoryHTTP).
			Context("endpoint", s.endpoint).
			Build()
	}
	return nil
}

// SetCompletionHandler implements CompletionNotifier.
func (s *HTTPSpeaker) SetCompletionHandler(fn CompletionFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDone = fn
}

// Close cancels outstanding requests and waits for them to return.
func (s *HTTPSpeaker) Close() {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
}
