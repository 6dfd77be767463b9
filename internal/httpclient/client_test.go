package httpclient

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockedClient(t *testing.T) (*Client, *httpmock.MockTransport) {
	t.Helper()
	mt := httpmock.NewMockTransport()
	c := New(&Config{Transport: mt, UserAgent: "test-agent"})
	t.Cleanup(c.Close)
	return c, mt
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	c := New(nil)
	t.Cleanup(c.Close)
	assert.Equal(t, DefaultTimeout, c.defaultTimeout)
	assert.Equal(t, defaultUserAgent, c.userAgent)
}

func TestSendJSON_PostsBody(t *testing.T) {
	t.Parallel()

	c, mt := newMockedClient(t)
	mt.RegisterResponder(http.MethodPost, "http://tts.local/speak",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
			assert.Equal(t, "test-agent", req.Header.Get("User-Agent"))
			var body map[string]string
			require.NoError(t, httpmockDecode(req, &body))
			assert.Equal(t, "hello", body["text"])
			return httpmock.NewStringResponse(http.StatusAccepted, ""), nil
		})

	err := c.SendJSON(t.Context(), http.MethodPost, "http://tts.local/speak", map[string]string{"text": "hello"})
	require.NoError(t, err)
	assert.Equal(t, 1, mt.GetTotalCallCount())
}

func TestSendJSON_StatusError(t *testing.T) {
	t.Parallel()

	c, mt := newMockedClient(t)
	mt.RegisterResponder(http.MethodDelete, "http://tts.local/speak",
		httpmock.NewStringResponder(http.StatusServiceUnavailable, "busy"))

	err := c.SendJSON(t.Context(), http.MethodDelete, "http://tts.local/speak", nil)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, "busy", statusErr.Body)
}

func TestSendJSON_TransportError(t *testing.T) {
	t.Parallel()

	c, mt := newMockedClient(t)
	mt.RegisterResponder(http.MethodPost, "http://tts.local/speak",
		httpmock.NewErrorResponder(context.DeadlineExceeded))

	err := c.SendJSON(t.Context(), http.MethodPost, "http://tts.local/speak", struct{}{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAfterResponseHook(t *testing.T) {
	t.Parallel()

	c, mt := newMockedClient(t)
	mt.RegisterResponder(http.MethodPost, "http://tts.local/speak", httpmock.NewStringResponder(http.StatusOK, ""))

	var gotStatus int
	var gotElapsed time.Duration = -1
	c.SetAfterResponseHook(func(_ *http.Request, resp *http.Response, elapsed time.Duration, err error) {
		assert.NoError(t, err)
		gotStatus = resp.StatusCode
		gotElapsed = elapsed
	})

	require.NoError(t, c.SendJSON(t.Context(), http.MethodPost, "http://tts.local/speak", nil))
	assert.Equal(t, http.StatusOK, gotStatus)
	assert.GreaterOrEqual(t, gotElapsed, time.Duration(0))
}
