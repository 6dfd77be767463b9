package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/sightline-go/internal/datastore"
	"github.com/tphakala/sightline-go/internal/engine"
	"github.com/tphakala/sightline-go/internal/errors"
	"github.com/tphakala/sightline-go/internal/logger"
	"github.com/tphakala/sightline-go/internal/obstacle"
	"github.com/tphakala/sightline-go/internal/observability/metrics"
	"github.com/tphakala/sightline-go/internal/speech"
	"github.com/tphakala/sightline-go/internal/timeutil"
	"github.com/tphakala/sightline-go/internal/transcript"
)

var epoch = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

var dogLeft = obstacle.Detection{Label: "dog", Confidence: 0.8, Box: obstacle.Box{X1: 0.05, Y1: 0.4, X2: 0.25, Y2: 0.9}}

type fixture struct {
	server     *Server
	engine     *engine.Engine
	speaker    *speech.MockSpeaker
	transcript *transcript.Transcript
}

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelDebug, time.UTC)
}

func newFixture(t *testing.T, cfg *Config, opts ...ServerOption) *fixture {
	t.Helper()
	tr := transcript.New(0)
	spk := speech.NewMockSpeaker()
	sel := obstacle.NewSelector(obstacle.MustClassTable(obstacle.DefaultProfiles()), obstacle.DefaultConfig())
	eng, err := engine.New(engine.DefaultConfig(), sel, spk,
		engine.WithClock(timeutil.NewMockClock(epoch)),
		engine.WithLogger(testLogger()),
		engine.WithSinks(transcript.NewSink(tr)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = eng.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-eng.Done()
	})

	if cfg == nil {
		cfg = DefaultConfig()
		cfg.FrameRate = 0
	}
	opts = append([]ServerOption{WithLogger(testLogger()), WithTranscript(tr)}, opts...)
	srv, err := New(cfg, eng, opts...)
	require.NoError(t, err)
	return &fixture{server: srv, engine: eng, speaker: spk, transcript: tr}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequestWithContext(t.Context(), method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(DefaultConfig(), nil)
	require.Error(t, err)

	cfg := DefaultConfig()
	cfg.FrameBurst = 0
	_, err = New(cfg, &stubEngine{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestHealth(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]any](t, rec)["status"])
}

func TestFrames_RequireSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	rec := f.do(t, http.MethodPost, "/api/v1/frames", FrameRequest{FrameID: "f1", Detections: []obstacle.Detection{dogLeft}})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "no active session", decode[ErrorResponse](t, rec).Error)

	// the rejected frame id may be retried once a session runs
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/v1/session/start", nil).Code)
	rec = f.do(t, http.MethodPost, "/api/v1/frames", FrameRequest{FrameID: "f1", Detections: []obstacle.Detection{dogLeft}})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFrames_AnnounceAndTranscript(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/v1/session/start", nil).Code)

	rec := f.do(t, http.MethodPost, "/api/v1/frames", FrameRequest{Detections: []obstacle.Detection{dogLeft}})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[engine.FrameResult](t, rec)
	assert.Equal(t, "dog to your left, close", res.Announced)
	require.NotEmpty(t, res.Top)
	assert.Equal(t, "dog", res.Top[0].Detection.Label)

	require.Eventually(t, func() bool {
		texts := f.transcript.Texts()
		return len(texts) == 2 && texts[1] == "dog to your left, close"
	}, 2*time.Second, 10*time.Millisecond)

	rec = f.do(t, http.MethodGet, "/api/v1/transcript", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Lines []transcript.Line `json:"lines"`
	}](t, rec)
	assert.Len(t, body.Lines, 2)
}

func TestFrames_DuplicateFrameID(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := metrics.NewHTTPMetrics(reg)
	require.NoError(t, err)
	f := newFixture(t, nil, WithMetrics(m))
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/v1/session/start", nil).Code)

	req := FrameRequest{FrameID: "frame-42", Detections: []obstacle.Detection{dogLeft}}
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/v1/frames", req).Code)
	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/api/v1/frames", req).Code)

	req.FrameID = "frame-43"
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/v1/frames", req).Code)
}

func TestFrames_RateLimited(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.FrameRate = 0.001
	cfg.FrameBurst = 1
	f := newFixture(t, cfg)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/v1/session/start", nil).Code)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/v1/frames", FrameRequest{}).Code)
	rec := f.do(t, http.MethodPost, "/api/v1/frames", FrameRequest{})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestFrames_BadBody(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	req := httptest.NewRequestWithContext(t.Context(), http.MethodPost, "/api/v1/frames", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSpeechCompleted_AdvancesQueue(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	require.Equal(t, http.StatusCreated, f.do(t, http.MethodPost, "/api/v1/session/start", nil).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/v1/frames", FrameRequest{Detections: []obstacle.Detection{dogLeft}}).Code)

	u, ok := f.speaker.Last()
	require.True(t, ok)
	rec := f.do(t, http.MethodPost, "/api/v1/speech/completed", CompletionRequest{UtteranceID: u.ID})
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode[map[string]any](t, rec)
	queue := st["queue"].(map[string]any)
	assert.Equal(t, "idle", queue["state"])
	assert.EqualValues(t, 1, st["alerts_announced"])
}

func TestSession_StartStop(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/v1/session/start", SessionStartRequest{ScanDuration: "30s"})
	require.Equal(t, http.StatusCreated, rec.Code)
	info := decode[engine.SessionInfo](t, rec)
	assert.NotEmpty(t, info.ID)
	assert.Equal(t, 30*time.Second, info.ScanDuration)

	assert.Equal(t, http.StatusConflict, f.do(t, http.MethodPost, "/api/v1/session/start", nil).Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodPost, "/api/v1/session/stop", nil).Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodPost, "/api/v1/session/stop", nil).Code, "stop is idempotent")
}

func TestSession_BadDuration(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	assert.Equal(t, http.StatusBadRequest,
		f.do(t, http.MethodPost, "/api/v1/session/start", SessionStartRequest{ScanDuration: "soon"}).Code)
	assert.Equal(t, http.StatusBadRequest,
		f.do(t, http.MethodPost, "/api/v1/session/start", SessionStartRequest{ScanDuration: "-5s"}).Code)
}

func TestAlerts(t *testing.T) {
	t.Parallel()

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, nil)
		assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/api/v1/alerts", nil).Code)
	})

	t.Run("from journal", func(t *testing.T) {
		t.Parallel()
		j := &stubJournal{alerts: []datastore.Alert{{ID: 1, Text: "car ahead"}}}
		f := newFixture(t, nil, WithJournal(j))

		rec := f.do(t, http.MethodGet, "/api/v1/alerts?limit=5", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 5, j.limit)
		body := decode[struct {
			Alerts []datastore.Alert `json:"alerts"`
		}](t, rec)
		require.Len(t, body.Alerts, 1)
		assert.Equal(t, "car ahead", body.Alerts[0].Text)

		assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/alerts?limit=abc", nil).Code)
	})
}

func TestServe_Shutdown(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- f.server.Serve(ctx, ln) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	url := "http://" + ln.Addr().String() + "/health"
	require.Eventually(t, func() bool {
		resp, err := client.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

type stubEngine struct{}

func (stubEngine) OnFrame(context.Context, []obstacle.Detection) (engine.FrameResult, error) {
	return engine.FrameResult{}, nil
}
func (stubEngine) OnSpeechCompleted(string, bool) {}
func (stubEngine) BeginSession(context.Context, engine.SessionOptions) (engine.SessionInfo, error) {
	return engine.SessionInfo{}, nil
}
func (stubEngine) EndSession(context.Context) error { return nil }
func (stubEngine) Status(context.Context) (engine.Status, error) {
	return engine.Status{}, nil
}

type stubJournal struct {
	alerts []datastore.Alert
	limit  int
}

func (j *stubJournal) RecentAlerts(limit int) ([]datastore.Alert, error) {
	j.limit = limit
	return j.alerts, nil
}

func TestHardening(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.FrameRate = 0
	cfg.BodyLimit = "1K"
	cfg.AllowedOrigins = []string{"https://companion.example"}
	f := newFixture(t, cfg)

	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'none'")

	req := httptest.NewRequestWithContext(t.Context(), http.MethodOptions, "/api/v1/frames", nil)
	req.Header.Set("Origin", "https://companion.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	pre := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(pre, req)
	assert.Equal(t, "https://companion.example", pre.Header().Get("Access-Control-Allow-Origin"))

	big := FrameRequest{FrameID: string(bytes.Repeat([]byte("x"), 2048))}
	assert.Equal(t, http.StatusRequestEntityTooLarge, f.do(t, http.MethodPost, "/api/v1/frames", big).Code)
}
