package sheetapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/diticoms/service-desk/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient() *Client {
	return NewClient(Options{Timeout: 100 * time.Millisecond, RetryDelay: time.Millisecond})
}

func staticServer(t *testing.T, status int, body string, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCall_SendsPayloadMergedWithAction(t *testing.T) {
	var got map[string]any
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		contentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		io.WriteString(w, `{"status":"success"}`)
	}))
	defer srv.Close()

	payload := map[string]any{"id": "17", "customer_name": "Lan", "action": "ignored"}
	_, err := newTestClient().Call(context.Background(), srv.URL, "update", payload)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"id": "17", "customer_name": "Lan", "action": "update"}, got)
	assert.Contains(t, contentType, "text/plain")
}

func TestCall_StructPayloadAndNilPayload(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c := newTestClient()
	_, err := c.Call(context.Background(), srv.URL, "login", struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{"an", "secret"})
	require.NoError(t, err)
	_, err = c.Call(context.Background(), srv.URL, "read", nil)
	require.NoError(t, err)

	require.Len(t, bodies, 2)
	assert.JSONEq(t, `{"username":"an","password":"secret","action":"login"}`, bodies[0])
	assert.JSONEq(t, `{"action":"read"}`, bodies[1])
}

func TestCall_RejectsNonObjectPayload(t *testing.T) {
	var hits int32
	srv := staticServer(t, http.StatusOK, `{}`, &hits)

	_, err := newTestClient().Call(context.Background(), srv.URL, "create", []string{"a"})
	require.Error(t, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))
}

func TestCall_ReturnsValidJSONUnchanged(t *testing.T) {
	body := `{"status":"success","user":{"username":"an","role":"admin"},"n":[1,2.5,"x"]}`
	srv := staticServer(t, http.StatusOK, body, nil)

	raw, err := newTestClient().Call(context.Background(), srv.URL, "login", nil)
	require.NoError(t, err)
	assert.JSONEq(t, body, string(raw))
}

func TestCall_ExtractsJSONFromNoisyBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"log prefix", `LOG: something {"status":"success"}`, `{"status":"success"}`},
		{"array with trailer", "debug\n[{\"id\":1},{\"id\":2}]\n<!-- end -->", `[{"id":1},{"id":2}]`},
		{"object wrapped in html", `<pre>{"status":"updated","error":""}</pre>`, `{"status":"updated","error":""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := staticServer(t, http.StatusOK, tt.body, nil)
			raw, err := newTestClient().Call(context.Background(), srv.URL, "read", nil)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(raw))
		})
	}
}

func TestCall_MalformedBody(t *testing.T) {
	srv := staticServer(t, http.StatusOK, "<html>Script error</html>", nil)

	_, err := newTestClient().Call(context.Background(), srv.URL, "read", nil)
	var me *errs.MalformedResponseError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "read", me.Action)
}

func TestCall_EmptyBody(t *testing.T) {
	srv := staticServer(t, http.StatusOK, "", nil)

	_, err := newTestClient().Call(context.Background(), srv.URL, "read", nil)
	assert.ErrorIs(t, err, errs.ErrEmptyResponse)
}

func TestCall_TransportErrorIsNotRetried(t *testing.T) {
	var hits int32
	srv := staticServer(t, http.StatusInternalServerError, "boom", &hits)

	_, err := newTestClient().Call(context.Background(), srv.URL, "read", nil)
	var te *errs.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusInternalServerError, te.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestCall_ConfigurationError(t *testing.T) {
	for _, endpoint := range []string{"", "   ", "script.google.com/macros/x", "ftp://example.com/x", "http://"} {
		_, err := newTestClient().Call(context.Background(), endpoint, "read", nil)
		var ce *errs.ConfigurationError
		assert.ErrorAs(t, err, &ce, "endpoint %q", endpoint)
	}
}

func TestCall_TimeoutRetriesExactlyOnce(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(Options{Timeout: 50 * time.Millisecond, RetryDelay: time.Millisecond})
	_, err := c.Call(context.Background(), srv.URL, "read", nil)

	var te *errs.TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 2, te.Attempts)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestCall_SecondAttemptSucceedsAfterTimeout(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		io.WriteString(w, `{"status":"success"}`)
	}))
	defer srv.Close()

	c := NewClient(Options{Timeout: 50 * time.Millisecond, RetryDelay: time.Millisecond})
	raw, err := c.Call(context.Background(), srv.URL, "create", map[string]any{"id": "1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success"}`, string(raw))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestCall_CallerCancellationIsNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	c := NewClient(Options{Timeout: time.Second, RetryDelay: time.Millisecond})
	_, err := c.Call(ctx, srv.URL, "read", nil)

	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}
