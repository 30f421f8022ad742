package hyperliquid

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidParam represents an invalid parameter error
	ErrInvalidParam = errors.New("invalid parameter")

	// ErrConnectionClosed fails requests that were in flight when the socket dropped
	ErrConnectionClosed = errors.New("websocket connection closed")

	// ErrTransportClosed is returned once the transport was closed by the caller
	ErrTransportClosed = errors.New("websocket transport closed")

	// ErrReconnectExhausted is the abandonment reason when the reconnect policy gives up
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")

	// ErrSubscriptionAbandoned fails subscriptions that can no longer become ready
	ErrSubscriptionAbandoned = errors.New("subscription abandoned")

	// ErrSubscriptionRejected is returned when the venue refuses a subscription
	ErrSubscriptionRejected = errors.New("subscription rejected")
)

// InvalidParamError represents an invalid parameter error with context
type InvalidParamError struct {
	Message string
}

func (e *InvalidParamError) Error() string {
	return e.Message
}

func (e *InvalidParamError) Is(target error) bool {
	return target == ErrInvalidParam
}

// ApiRequestError is a well-formed venue response reporting failure, either
// status "err" or one or more per-item errors of a batch.
type ApiRequestError struct {
	Message  string
	Response json.RawMessage
	// Statuses holds every item of a batch, successes included, so callers
	// can tell which indexes failed
	Statuses []OrderStatus
}

func (e *ApiRequestError) Error() string {
	return fmt.Sprintf("api error: %s", e.Message)
}

// FailedIndexes returns the positions in Statuses that carry an error
func (e *ApiRequestError) FailedIndexes() []int {
	var out []int
	for i, s := range e.Statuses {
		if s.Error != "" {
			out = append(out, i)
		}
	}
	return out
}

func newItemError(raw json.RawMessage, statuses []OrderStatus) *ApiRequestError {
	var msgs []string
	for i, s := range statuses {
		if s.Error != "" {
			msgs = append(msgs, fmt.Sprintf("[%d] %s", i, s.Error))
		}
	}
	return &ApiRequestError{Message: strings.Join(msgs, "; "), Response: raw, Statuses: statuses}
}

// TransportError is a failure to reach the venue or to get a usable reply
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode != 0:
		return fmt.Sprintf("transport error: HTTP %d: %v", e.StatusCode, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("transport error: %v", e.Err)
	default:
		return fmt.Sprintf("transport error: HTTP %d: %s", e.StatusCode, e.Body)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }
