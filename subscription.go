package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Subscription types
const (
	SubAllMids                     = "allMids"
	SubL2Book                      = "l2Book"
	SubTrades                      = "trades"
	SubCandle                      = "candle"
	SubBbo                         = "bbo"
	SubNotification                = "notification"
	SubWebData2                    = "webData2"
	SubOrderUpdates                = "orderUpdates"
	SubUserEvents                  = "userEvents"
	SubUserFills                   = "userFills"
	SubUserFundings                = "userFundings"
	SubUserNonFundingLedgerUpdates = "userNonFundingLedgerUpdates"
	SubActiveAssetCtx              = "activeAssetCtx"
	SubActiveAssetData             = "activeAssetData"
	SubUserTwapSliceFills          = "userTwapSliceFills"
	SubUserTwapHistory             = "userTwapHistory"
	SubExplorerBlock               = "explorerBlock"
	SubExplorerTxs                 = "explorerTxs"
	channelPong                    = "pong"
	channelPost                    = "post"
	channelSubscriptionResponse    = "subscriptionResponse"
	channelError                   = "error"
	channelActiveSpotAssetCtx      = "activeSpotAssetCtx"
	channelUser                    = "user"
	channelExplorerBlock           = "_explorerBlock"
	channelExplorerTxs             = "_explorerTxs"
)

// Handler receives the events of one subscription. It runs on the read
// goroutine and must not block.
type Handler func(msg WSMessage)

// channelsFor maps a subscription type to the channels its events arrive on
func channelsFor(typ string) []string {
	switch typ {
	case SubUserEvents:
		return []string{channelUser}
	case SubActiveAssetCtx:
		return []string{SubActiveAssetCtx, channelActiveSpotAssetCtx}
	case SubExplorerBlock:
		return []string{channelExplorerBlock}
	case SubExplorerTxs:
		return []string{channelExplorerTxs}
	default:
		return []string{typ}
	}
}

// subscriptionKey returns the dedupe key of payload: its JSON with sorted
// keys, numbers kept verbatim and the user address lower-cased. The key is
// also the canonical payload sent on the wire.
func subscriptionKey(payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", &InvalidParamError{Message: fmt.Sprintf("invalid subscription: %v", err)}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return "", &InvalidParamError{Message: fmt.Sprintf("subscription must be a JSON object: %v", err)}
	}
	typ, _ := fields["type"].(string)
	if typ == "" {
		return "", &InvalidParamError{Message: "subscription type is required"}
	}
	if user, ok := fields["user"].(string); ok {
		fields["user"] = strings.ToLower(user)
	}
	canonical, err := json.Marshal(fields)
	if err != nil {
		return "", &InvalidParamError{Message: fmt.Sprintf("invalid subscription: %v", err)}
	}
	return string(canonical), nil
}

// listener is one Subscribe call's interest in an event stream
type listener struct {
	id       string
	key      string
	channels []string
	coin     string
	user     string
	handler  Handler
}

func newListener(id, key string, payload map[string]any, handler Handler) *listener {
	typ, _ := payload["type"].(string)
	coin, _ := payload["coin"].(string)
	user, _ := payload["user"].(string)
	return &listener{
		id:       id,
		key:      key,
		channels: channelsFor(typ),
		coin:     coin,
		user:     strings.ToLower(user),
		handler:  handler,
	}
}

func (l *listener) matches(channel, coin, user string) bool {
	found := false
	for _, c := range l.channels {
		if c == channel {
			found = true
			break
		}
	}
	if !found {
		return false
	}
	if l.coin != "" && coin != "" && !strings.EqualFold(l.coin, coin) {
		return false
	}
	if l.user != "" && user != "" && !strings.EqualFold(l.user, user) {
		return false
	}
	return true
}

// eventScope extracts the coin and user an event is about, if it says.
// Candles carry the coin as "s" and trades arrive as a list.
func eventScope(data json.RawMessage) (coin, user string) {
	var scope struct {
		Coin string `json:"coin"`
		S    string `json:"s"`
		User string `json:"user"`
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return "", ""
	}
	switch trimmed[0] {
	case '{':
		if err := json.Unmarshal(trimmed, &scope); err != nil {
			return "", ""
		}
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil || len(items) == 0 {
			return "", ""
		}
		if err := json.Unmarshal(items[0], &scope); err != nil {
			return "", ""
		}
	default:
		return "", ""
	}
	coin = scope.Coin
	if coin == "" {
		coin = scope.S
	}
	return coin, scope.User
}

// subEntry is the shared wire subscription behind every listener with the
// same key.
type subEntry struct {
	key     string
	payload json.RawMessage
	refs    int

	ready     chan struct{}
	readyOnce sync.Once
	readyErr  error

	done     chan struct{}
	doneOnce sync.Once
	doneErr  error
}

func newSubEntry(key string) *subEntry {
	return &subEntry{
		key:     key,
		payload: json.RawMessage(key),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// resolve settles the ready future; only the first call counts
func (e *subEntry) resolve(err error) {
	e.readyOnce.Do(func() {
		e.readyErr = err
		close(e.ready)
	})
}

// finish ends the subscription. A pending ready future fails with err.
func (e *subEntry) finish(err error) {
	e.resolve(err)
	e.doneOnce.Do(func() {
		e.doneErr = err
		close(e.done)
	})
}

// Subscription is the handle returned by WSTransport.Subscribe
type Subscription struct {
	transport *WSTransport
	entry     *subEntry
	listener  *listener
	once      sync.Once
}

// Key is the canonical subscription payload shared by identical subscriptions
func (s *Subscription) Key() string { return s.entry.key }

// Ready is closed once the venue acknowledged the subscription or it failed
func (s *Subscription) Ready() <-chan struct{} { return s.entry.ready }

// Done is closed once the subscription ended, by Unsubscribe or abandonment
func (s *Subscription) Done() <-chan struct{} { return s.entry.done }

// Err returns why the subscription failed or ended, or nil
func (s *Subscription) Err() error {
	select {
	case <-s.entry.done:
		return s.entry.doneErr
	default:
	}
	select {
	case <-s.entry.ready:
		return s.entry.readyErr
	default:
		return nil
	}
}

// WaitReady blocks until the venue acknowledged the subscription
func (s *Subscription) WaitReady(ctx context.Context) error {
	select {
	case <-s.entry.ready:
		return s.entry.readyErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unsubscribe removes this listener. The last listener of a key also
// unsubscribes on the wire and waits for the acknowledgement under ctx.
func (s *Subscription) Unsubscribe(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		err = s.transport.unsubscribe(ctx, s)
	})
	return err
}
