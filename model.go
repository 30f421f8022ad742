package hyperliquid

import (
	"bytes"
	"encoding/json"

	"github.com/kaifufi/hyperliquid-sdk-go/actions"
	"github.com/kaifufi/hyperliquid-sdk-go/chain"
)

// RequestKind selects the venue endpoint a request goes to
type RequestKind string

const (
	RequestInfo   RequestKind = "info"
	RequestAction RequestKind = "action"
)

// Envelope is the signed request submitted for every action
type Envelope struct {
	Action       actions.Action  `json:"action"`
	Nonce        uint64          `json:"nonce"`
	Signature    chain.Signature `json:"signature"`
	VaultAddress *string         `json:"vaultAddress,omitempty"`
	ExpiresAfter *uint64         `json:"expiresAfter,omitempty"`
}

// Response statuses
const (
	StatusOK  = "ok"
	StatusErr = "err"
)

// rawResponse is {status, response}; response is a string when status is "err"
type rawResponse struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

// ExchangeResponse is the body of a successful action response
type ExchangeResponse struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
	// Statuses is data.statuses for batched actions, or data.status
	// wrapped in a one-element list
	Statuses []OrderStatus `json:"-"`
}

type responseData struct {
	Statuses []OrderStatus `json:"statuses"`
	Status   *OrderStatus  `json:"status"`
}

// RestingStatus reports an order placed on the book
type RestingStatus struct {
	Oid   uint64 `json:"oid"`
	Cloid string `json:"cloid,omitempty"`
}

// FilledStatus reports an order filled on placement
type FilledStatus struct {
	TotalSz string `json:"totalSz"`
	AvgPx   string `json:"avgPx"`
	Oid     uint64 `json:"oid"`
	Cloid   string `json:"cloid,omitempty"`
}

// OrderStatus is one element of data.statuses: a literal success marker,
// a typed success payload, or {error}.
type OrderStatus struct {
	Success bool
	Resting *RestingStatus
	Filled  *FilledStatus
	Error   string
	Raw     json.RawMessage
}

func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	s.Raw = append(json.RawMessage(nil), data...)

	if bytes.HasPrefix(bytes.TrimSpace(data), []byte(`"`)) {
		var marker string
		if err := json.Unmarshal(data, &marker); err != nil {
			return err
		}
		s.Success = marker == "success" || marker == "waitingForFill" || marker == "waitingForTrigger"
		return nil
	}

	var obj struct {
		Resting *RestingStatus `json:"resting"`
		Filled  *FilledStatus  `json:"filled"`
		Error   *string        `json:"error"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	s.Resting, s.Filled = obj.Resting, obj.Filled
	if obj.Error != nil {
		s.Error = *obj.Error
	} else {
		s.Success = true
	}
	return nil
}

func (s OrderStatus) MarshalJSON() ([]byte, error) {
	if s.Raw != nil {
		return s.Raw, nil
	}
	if s.Error != "" {
		return json.Marshal(map[string]string{"error": s.Error})
	}
	return json.Marshal("success")
}

// wsRequest is an outbound websocket frame
type wsRequest struct {
	Method       string         `json:"method"`
	ID           uint64         `json:"id,omitempty"`
	Subscription any            `json:"subscription,omitempty"`
	Request      *wsPostRequest `json:"request,omitempty"`
}

type wsPostRequest struct {
	Type    RequestKind `json:"type"`
	Payload any         `json:"payload"`
}

// WSMessage is an inbound websocket frame
type WSMessage struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type wsPostResponse struct {
	ID       uint64 `json:"id"`
	Response struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	} `json:"response"`
}

type wsSubscriptionResponse struct {
	Method       string          `json:"method"`
	Subscription json.RawMessage `json:"subscription"`
}
