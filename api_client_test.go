package hyperliquid

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestHTTPTransport(t *testing.T, handler http.HandlerFunc, rps float64) *HTTPTransport {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	tr, err := NewHTTPTransport(HTTPTransportConfig{BaseURL: srv.URL + "/", RequestsPerSecond: rps, Burst: 1}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return tr
}

func TestHTTPTransport_Endpoints(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	tr := newTestHTTPTransport(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()

		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		assert.NoError(t, json.Unmarshal(body, &req))
		switch r.URL.Path {
		case "/info":
			assert.Equal(t, "allMids", req["type"])
			_, _ = w.Write([]byte(`{"BTC":"64000"}`))
		case "/exchange":
			assert.Contains(t, req, "action")
			_, _ = w.Write([]byte(`{"status":"ok","response":{"type":"default"}}`))
		}
	}, 0)
	ctx := context.Background()

	raw, err := tr.Request(ctx, RequestInfo, map[string]any{"type": "allMids"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"BTC":"64000"}`, string(raw))

	raw, err = tr.Request(ctx, RequestAction, map[string]any{"action": map[string]any{"type": "noop"}, "nonce": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ok","response":{"type":"default"}}`, string(raw))

	mu.Lock()
	assert.Equal(t, []string{"/info", "/exchange"}, paths)
	mu.Unlock()

	_, err = tr.Request(ctx, RequestKind("order"), nil)
	assert.ErrorIs(t, err, ErrInvalidParam)
}

func TestHTTPTransport_Errors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantBody   string
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"error":"rate limited"}`, wantStatus: 429, wantBody: `{"error":"rate limited"}`},
		{name: "empty error body", status: http.StatusBadGateway, wantStatus: 502, wantBody: "502 Bad Gateway"},
		{name: "not json", status: http.StatusOK, body: "Failed to deserialize the JSON body", wantStatus: 200, wantBody: "Failed to deserialize the JSON body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestHTTPTransport(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, 0)

			_, err := tr.Request(context.Background(), RequestInfo, map[string]any{"type": "meta"})
			var transportErr *TransportError
			require.ErrorAs(t, err, &transportErr)
			assert.Equal(t, tt.wantStatus, transportErr.StatusCode)
			assert.Equal(t, tt.wantBody, transportErr.Body)
		})
	}
}

func TestHTTPTransport_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	tr, err := NewHTTPTransport(HTTPTransportConfig{BaseURL: srv.URL}, nil)
	require.NoError(t, err)

	_, err = tr.Request(context.Background(), RequestInfo, map[string]any{"type": "meta"})
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Zero(t, transportErr.StatusCode)
}

func TestHTTPTransport_RateLimit(t *testing.T) {
	var calls atomic.Int32
	tr := newTestHTTPTransport(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{}`))
	}, 1)

	ctx := context.Background()
	_, err := tr.Request(ctx, RequestInfo, map[string]any{"type": "meta"})
	require.NoError(t, err)

	// the burst is spent, so the next request must wait about a second
	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = tr.Request(short, RequestInfo, map[string]any{"type": "meta"})
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewHTTPTransport_Validation(t *testing.T) {
	_, err := NewHTTPTransport(HTTPTransportConfig{BaseURL: "ftp://example.com"}, nil)
	assert.ErrorIs(t, err, ErrInvalidParam)

	_, err = NewHTTPTransport(HTTPTransportConfig{RequestsPerSecond: -1}, nil)
	assert.ErrorIs(t, err, ErrInvalidParam)

	tr, err := NewHTTPTransport(HTTPTransportConfig{}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultEndpoints[Mainnet].API, tr.baseURL)
}
