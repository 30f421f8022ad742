package hyperliquid

import (
	"encoding/json"
	"fmt"
)

// ValidateResponse decodes an action response. A status "err" response or
// any per-item error becomes an *ApiRequestError carrying the full body.
func ValidateResponse(raw json.RawMessage) (*ExchangeResponse, error) {
	var envelope rawResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &TransportError{Body: truncate(string(raw)), Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	switch envelope.Status {
	case StatusOK:
	case StatusErr:
		var msg string
		if err := json.Unmarshal(envelope.Response, &msg); err != nil {
			msg = string(envelope.Response)
		}
		return nil, &ApiRequestError{Message: msg, Response: raw}
	default:
		return nil, &TransportError{Body: truncate(string(raw)), Err: fmt.Errorf("unexpected response status %q", envelope.Status)}
	}

	var resp ExchangeResponse
	if len(envelope.Response) > 0 && string(envelope.Response) != "null" {
		if err := json.Unmarshal(envelope.Response, &resp); err != nil {
			return nil, &TransportError{Body: truncate(string(raw)), Err: fmt.Errorf("failed to decode response body: %w", err)}
		}
	}

	if len(resp.Data) > 0 && resp.Data[0] == '{' {
		var data responseData
		if err := json.Unmarshal(resp.Data, &data); err == nil {
			switch {
			case data.Statuses != nil:
				resp.Statuses = data.Statuses
			case data.Status != nil:
				resp.Statuses = []OrderStatus{*data.Status}
			}
		}
	}

	for _, s := range resp.Statuses {
		if s.Error != "" {
			return &resp, newItemError(raw, resp.Statuses)
		}
	}
	return &resp, nil
}

func truncate(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
