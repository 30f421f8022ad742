package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Transport carries requests to the venue and returns the raw JSON reply.
// It never retries.
type Transport interface {
	Request(ctx context.Context, kind RequestKind, payload any) (json.RawMessage, error)
}

// HTTPTransport posts requests to the venue's /info and /exchange endpoints
type HTTPTransport struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a transport for cfg.BaseURL
func NewHTTPTransport(cfg HTTPTransportConfig, logger *zap.Logger) (*HTTPTransport, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &HTTPTransport{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
	if cfg.RequestsPerSecond > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	}
	return t, nil
}

// SetHttpClient replaces the HTTP client used for requests
func (t *HTTPTransport) SetHttpClient(client *http.Client) {
	t.client = client
}

func endpointFor(kind RequestKind) (string, error) {
	switch kind {
	case RequestInfo:
		return "/info", nil
	case RequestAction:
		return "/exchange", nil
	default:
		return "", &InvalidParamError{Message: fmt.Sprintf("unknown request kind %q", kind)}
	}
}

func (t *HTTPTransport) Request(ctx context.Context, kind RequestKind, payload any) (json.RawMessage, error) {
	endpoint, err := endpointFor(kind)
	if err != nil {
		return nil, err
	}
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Err: err}
		}
	}

	resp, err := t.doRequest(ctx, endpoint, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return t.decodeJSONResponse(resp)
}

// doRequest performs an HTTP POST with a JSON body
func (t *HTTPTransport) doRequest(ctx context.Context, endpoint string, body any) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	url := t.baseURL + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	t.logger.Debug("Sending request", zap.String("endpoint", endpoint), zap.Int("bytes", len(jsonData)))

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("request failed: %w", err)}
	}
	return resp, nil
}

// decodeJSONResponse reads the body, checks the HTTP status and that the body is JSON
func (t *HTTPTransport) decodeJSONResponse(resp *http.Response) (json.RawMessage, error) {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		bodyStr := string(bodyBytes)
		if bodyStr == "" {
			bodyStr = resp.Status
		}
		t.logger.Warn("Request rejected", zap.Int("status", resp.StatusCode), zap.String("body", truncate(bodyStr)))
		return nil, &TransportError{StatusCode: resp.StatusCode, Body: bodyStr}
	}

	if !json.Valid(bodyBytes) {
		return nil, &TransportError{
			StatusCode: resp.StatusCode,
			Body:       truncate(string(bodyBytes)),
			Err:        fmt.Errorf("response is not valid JSON"),
		}
	}
	return bodyBytes, nil
}
