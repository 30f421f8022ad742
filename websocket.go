package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

const (
	// DefaultKeepAliveInterval is how long the connection may stay silent
	// before a ping is sent
	DefaultKeepAliveInterval = 50 * time.Second

	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
)

// ConnState is the lifecycle state of the websocket connection
type ConnState int32

const (
	StateClosed ConnState = iota
	StateConnecting
	StateOpen
	StateClosing
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	default:
		return "closed"
	}
}

// WSConfig holds configuration for the websocket transport. Start from
// DefaultWSConfig; the zero value disables auto-resubscribe.
type WSConfig struct {
	URL               string
	ReconnectPolicy   ReconnectPolicy
	KeepAliveInterval time.Duration
	AutoResubscribe   bool
	HandshakeTimeout  time.Duration
	WriteTimeout      time.Duration
}

// DefaultWSConfig returns the mainnet websocket configuration
func DefaultWSConfig() WSConfig {
	return WSConfig{
		URL:               DefaultEndpoints[Mainnet].WebSocket,
		ReconnectPolicy:   DefaultReconnectPolicy(),
		KeepAliveInterval: DefaultKeepAliveInterval,
		AutoResubscribe:   true,
		HandshakeTimeout:  DefaultHandshakeTimeout,
		WriteTimeout:      DefaultWriteTimeout,
	}
}

func (c *WSConfig) applyDefaults() {
	if c.URL == "" {
		c.URL = DefaultEndpoints[Mainnet].WebSocket
	}
	if c.ReconnectPolicy == nil {
		c.ReconnectPolicy = DefaultReconnectPolicy()
	}
	if c.KeepAliveInterval == 0 {
		c.KeepAliveInterval = DefaultKeepAliveInterval
	}
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
}

func (c *WSConfig) Validate() error {
	var allErrors field.ErrorList
	allErrors = append(allErrors, validateURL(field.NewPath("url"), c.URL, "ws", "wss")...)
	if c.KeepAliveInterval < 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("keepAliveInterval"), c.KeepAliveInterval.String(), "must not be negative"))
	}
	return aggregate(allErrors)
}

type postResult struct {
	data json.RawMessage
	err  error
}

// WSTransport is a resilient websocket connection to the venue. It carries
// subscriptions, which survive reconnects, and post requests, which do not.
type WSTransport struct {
	config WSConfig
	dialer *websocket.Dialer
	logger *zap.Logger

	mu        sync.Mutex
	state     ConnState
	stateCh   chan struct{}
	conn      *websocket.Conn
	started   bool
	abandoned error
	pending   map[uint64]chan postResult
	subs      map[string]*subEntry
	unsubAcks map[string]chan struct{}
	listeners []*listener

	writeMu  sync.Mutex
	lastSent atomic.Int64
	nextID   atomic.Uint64

	cancel context.CancelFunc
	done   chan struct{}
}

var _ Transport = (*WSTransport)(nil)

// NewWSTransport creates a transport. Nothing is dialed until Connect.
func NewWSTransport(cfg WSConfig, logger *zap.Logger) (*WSTransport, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSTransport{
		config:    cfg,
		dialer:    &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		logger:    logger,
		state:     StateClosed,
		stateCh:   make(chan struct{}),
		pending:   make(map[uint64]chan postResult),
		subs:      make(map[string]*subEntry),
		unsubAcks: make(map[string]chan struct{}),
		done:      make(chan struct{}),
	}, nil
}

// State returns the current connection state
func (t *WSTransport) State() ConnState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// setState must be called with t.mu held
func (t *WSTransport) setState(s ConnState) {
	if t.state == s {
		return
	}
	t.state = s
	t.notifyLocked()
}

// notifyLocked wakes every waitOpen caller
func (t *WSTransport) notifyLocked() {
	close(t.stateCh)
	t.stateCh = make(chan struct{})
}

// Connect starts the connection loop and waits until the first connection
// is open. The loop keeps running after ctx ends; stop it with Close.
func (t *WSTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.abandoned != nil {
		err := t.abandoned
		t.mu.Unlock()
		return err
	}
	if !t.started {
		t.started = true
		runCtx, cancel := context.WithCancel(context.Background())
		t.cancel = cancel
		go t.run(runCtx)
	}
	t.mu.Unlock()

	return t.waitOpen(ctx)
}

// Close stops reconnecting, closes the connection and abandons every
// subscription. It is safe to call more than once.
func (t *WSTransport) Close() error {
	t.mu.Lock()
	cancel := t.cancel
	if !t.started {
		t.started = true
		t.mu.Unlock()
		t.abandon(ErrTransportClosed)
		close(t.done)
		return nil
	}
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-t.done
	return nil
}

func (t *WSTransport) waitOpen(ctx context.Context) error {
	for {
		t.mu.Lock()
		switch {
		case t.state == StateOpen:
			t.mu.Unlock()
			return nil
		case t.abandoned != nil:
			err := t.abandoned
			t.mu.Unlock()
			return err
		case !t.started:
			t.mu.Unlock()
			return ErrConnectionClosed
		}
		ch := t.stateCh
		t.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (t *WSTransport) run(ctx context.Context) {
	defer close(t.done)

	attempt := 0
	for {
		conn, err := t.dial(ctx)
		if err == nil {
			attempt = 0
			t.serve(ctx, conn)
		} else if ctx.Err() == nil {
			t.logger.Warn("Websocket dial failed", zap.String("url", t.config.URL), zap.Error(err))
		}

		if ctx.Err() != nil {
			t.abandon(ErrTransportClosed)
			return
		}

		attempt++
		delay, ok := t.config.ReconnectPolicy.NextDelay(attempt)
		if !ok {
			t.logger.Error("Websocket abandoned", zap.String("url", t.config.URL), zap.Int("attempts", attempt-1))
			t.abandon(ErrReconnectExhausted)
			return
		}
		t.logger.Warn("Websocket reconnecting", zap.Int("attempt", attempt), zap.Duration("delay", delay))

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			t.abandon(ErrTransportClosed)
			return
		}
	}
}

func (t *WSTransport) dial(ctx context.Context) (*websocket.Conn, error) {
	t.mu.Lock()
	t.setState(StateConnecting)
	t.mu.Unlock()

	conn, resp, err := t.dialer.DialContext(ctx, t.config.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		t.mu.Lock()
		t.setState(StateClosed)
		t.mu.Unlock()
		return nil, fmt.Errorf("failed to connect to websocket: %w", err)
	}
	return conn, nil
}

// serve runs one connection from Open until it drops or ctx ends
func (t *WSTransport) serve(ctx context.Context, conn *websocket.Conn) {
	connID := uuid.NewString()
	log := t.logger.With(zap.String("conn", connID))
	connDone := make(chan struct{})

	t.mu.Lock()
	t.conn = conn
	t.setState(StateOpen)
	resubscribe := make([]json.RawMessage, 0, len(t.subs))
	for _, entry := range t.subs {
		resubscribe = append(resubscribe, entry.payload)
	}
	t.mu.Unlock()

	log.Info("Websocket open", zap.String("url", t.config.URL), zap.Int("subscriptions", len(resubscribe)))
	t.lastSent.Store(time.Now().UnixNano())

	for _, payload := range resubscribe {
		if err := t.writeFrame(conn, wsRequest{Method: "subscribe", Subscription: payload}); err != nil {
			log.Warn("Resubscribe failed", zap.ByteString("subscription", payload), zap.Error(err))
		}
	}

	go t.keepAlive(conn, connDone, log)
	go func() {
		select {
		case <-ctx.Done():
			t.mu.Lock()
			t.setState(StateClosing)
			t.mu.Unlock()
			t.writeMu.Lock()
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(t.config.WriteTimeout))
			t.writeMu.Unlock()
			conn.Close()
		case <-connDone:
		}
	}()

	t.readLoop(conn, log)
	close(connDone)
	conn.Close()
	t.onClosed(log)
}

func (t *WSTransport) readLoop(conn *websocket.Conn, log *zap.Logger) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info("Websocket closed", zap.Error(err))
			} else {
				log.Warn("Websocket read failed", zap.Error(err))
			}
			return
		}
		t.handleMessage(data, log)
	}
}

// keepAlive pings only when nothing was sent for a whole interval
func (t *WSTransport) keepAlive(conn *websocket.Conn, connDone <-chan struct{}, log *zap.Logger) {
	interval := t.config.KeepAliveInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-connDone:
			return
		case <-ticker.C:
			idle := time.Since(time.Unix(0, t.lastSent.Load()))
			if idle < interval {
				continue
			}
			if err := t.writeFrame(conn, wsRequest{Method: "ping"}); err != nil {
				log.Debug("Ping failed", zap.Error(err))
			}
		}
	}
}

// onClosed fails in-flight posts and, without auto-resubscribe, every subscription
func (t *WSTransport) onClosed(log *zap.Logger) {
	t.mu.Lock()
	t.conn = nil
	t.setState(StateClosed)
	pending := t.pending
	t.pending = make(map[uint64]chan postResult)
	unsubAcks := t.unsubAcks
	t.unsubAcks = make(map[string]chan struct{})
	var dropped []*subEntry
	if !t.config.AutoResubscribe {
		dropped = t.dropSubscriptions()
	}
	t.mu.Unlock()

	for _, ch := range pending {
		ch <- postResult{err: ErrConnectionClosed}
	}
	for _, ch := range unsubAcks {
		close(ch)
	}
	for _, entry := range dropped {
		entry.finish(fmt.Errorf("%w: %w", ErrSubscriptionAbandoned, ErrConnectionClosed))
	}
	if len(pending) > 0 || len(dropped) > 0 {
		log.Debug("Websocket cleanup", zap.Int("posts", len(pending)), zap.Int("subscriptions", len(dropped)))
	}
}

// abandon ends the transport for good with reason
func (t *WSTransport) abandon(reason error) {
	t.mu.Lock()
	if t.abandoned == nil {
		t.abandoned = reason
	}
	t.conn = nil
	t.state = StateClosed
	t.notifyLocked()
	pending := t.pending
	t.pending = make(map[uint64]chan postResult)
	unsubAcks := t.unsubAcks
	t.unsubAcks = make(map[string]chan struct{})
	dropped := t.dropSubscriptions()
	t.mu.Unlock()

	for _, ch := range pending {
		ch <- postResult{err: reason}
	}
	for _, ch := range unsubAcks {
		close(ch)
	}
	for _, entry := range dropped {
		entry.finish(fmt.Errorf("%w: %w", ErrSubscriptionAbandoned, reason))
	}
}

// dropSubscriptions must be called with t.mu held
func (t *WSTransport) dropSubscriptions() []*subEntry {
	dropped := make([]*subEntry, 0, len(t.subs))
	for key, entry := range t.subs {
		dropped = append(dropped, entry)
		delete(t.subs, key)
	}
	t.listeners = nil
	return dropped
}

func (t *WSTransport) writeFrame(conn *websocket.Conn, frame wsRequest) error {
	if conn == nil {
		return ErrConnectionClosed
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(t.config.WriteTimeout)); err != nil {
		return err
	}
	if err := conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	t.lastSent.Store(time.Now().UnixNano())
	return nil
}

func (t *WSTransport) handleMessage(data []byte, log *zap.Logger) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Debug("Ignoring non-JSON frame", zap.ByteString("frame", data))
		return
	}

	switch msg.Channel {
	case channelPong:
	case channelPost:
		t.handlePost(msg.Data, log)
	case channelSubscriptionResponse:
		t.handleSubscriptionResponse(msg.Data, log)
	case channelError:
		t.handleError(msg.Data, log)
	default:
		t.dispatch(msg)
	}
}

func (t *WSTransport) handlePost(data json.RawMessage, log *zap.Logger) {
	var resp wsPostResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		log.Warn("Malformed post response", zap.Error(err))
		return
	}

	t.mu.Lock()
	ch, ok := t.pending[resp.ID]
	delete(t.pending, resp.ID)
	t.mu.Unlock()
	if !ok {
		log.Debug("Post response without waiter", zap.Uint64("id", resp.ID))
		return
	}

	payload := resp.Response.Payload
	switch resp.Response.Type {
	case "error":
		var msg string
		if err := json.Unmarshal(payload, &msg); err != nil {
			msg = string(payload)
		}
		ch <- postResult{err: &ApiRequestError{Message: msg, Response: data}}
	case string(RequestInfo):
		var info struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(payload, &info); err != nil {
			ch <- postResult{err: &TransportError{Body: truncate(string(payload)), Err: err}}
			return
		}
		ch <- postResult{data: info.Data}
	default:
		ch <- postResult{data: payload}
	}
}

func (t *WSTransport) handleSubscriptionResponse(data json.RawMessage, log *zap.Logger) {
	var resp wsSubscriptionResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		log.Warn("Malformed subscription response", zap.Error(err))
		return
	}
	key, err := subscriptionKey(resp.Subscription)
	if err != nil {
		log.Warn("Unrecognized subscription response", zap.ByteString("data", data))
		return
	}

	t.mu.Lock()
	entry := t.subs[key]
	ack := t.unsubAcks[key]
	if resp.Method == "unsubscribe" && ack != nil {
		delete(t.unsubAcks, key)
	}
	t.mu.Unlock()

	switch resp.Method {
	case "subscribe":
		if entry != nil {
			entry.resolve(nil)
		}
	case "unsubscribe":
		if ack != nil {
			close(ack)
		}
	}
}

// handleError fails a subscription the venue refused. The venue embeds the
// offending payload in its error text.
func (t *WSTransport) handleError(data json.RawMessage, log *zap.Logger) {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		text = string(data)
	}
	log.Warn("Venue error", zap.String("error", text))

	start := strings.Index(text, "{")
	if start < 0 {
		return
	}
	key, err := subscriptionKey(json.RawMessage(text[start:]))
	if err != nil {
		return
	}

	t.mu.Lock()
	entry, ok := t.subs[key]
	if ok {
		select {
		case <-entry.ready:
			ok = false
		default:
			delete(t.subs, key)
			t.removeListeners(key)
		}
	}
	t.mu.Unlock()

	if ok {
		entry.finish(fmt.Errorf("%w: %s", ErrSubscriptionRejected, text))
	}
}

// removeListeners must be called with t.mu held
func (t *WSTransport) removeListeners(key string) {
	kept := t.listeners[:0:0]
	for _, l := range t.listeners {
		if l.key != key {
			kept = append(kept, l)
		}
	}
	t.listeners = kept
}

func (t *WSTransport) dispatch(msg WSMessage) {
	coin, user := eventScope(msg.Data)

	t.mu.Lock()
	var targets []Handler
	for _, l := range t.listeners {
		if l.matches(msg.Channel, coin, user) {
			targets = append(targets, l.handler)
		}
	}
	t.mu.Unlock()

	for _, h := range targets {
		h(msg)
	}
}

// Subscribe registers handler for the events of payload, e.g.
// {"type":"l2Book","coin":"BTC"}. Identical payloads share one wire
// subscription. It may be called before Connect.
func (t *WSTransport) Subscribe(payload map[string]any, handler Handler) (*Subscription, error) {
	if handler == nil {
		return nil, &InvalidParamError{Message: "handler is required"}
	}
	key, err := subscriptionKey(payload)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	if t.abandoned != nil {
		err := t.abandoned
		t.mu.Unlock()
		return nil, err
	}
	entry, ok := t.subs[key]
	send := false
	if !ok {
		entry = newSubEntry(key)
		t.subs[key] = entry
		send = t.state == StateOpen
	}
	entry.refs++
	l := newListener(uuid.NewString(), key, payload, handler)
	t.listeners = append(t.listeners, l)
	conn := t.conn
	t.mu.Unlock()

	if send {
		if err := t.writeFrame(conn, wsRequest{Method: "subscribe", Subscription: entry.payload}); err != nil {
			// the next Open re-sends every registered subscription
			t.logger.Warn("Subscribe failed", zap.String("subscription", key), zap.Error(err))
		}
	}
	return &Subscription{transport: t, entry: entry, listener: l}, nil
}

func (t *WSTransport) unsubscribe(ctx context.Context, s *Subscription) error {
	key := s.entry.key

	t.mu.Lock()
	for i, l := range t.listeners {
		if l == s.listener {
			t.listeners = append(t.listeners[:i:i], t.listeners[i+1:]...)
			break
		}
	}
	s.entry.refs--
	if s.entry.refs > 0 || t.subs[key] != s.entry {
		t.mu.Unlock()
		return nil
	}
	delete(t.subs, key)

	if t.state != StateOpen {
		t.mu.Unlock()
		s.entry.finish(nil)
		return nil
	}
	ack := make(chan struct{})
	t.unsubAcks[key] = ack
	conn := t.conn
	t.mu.Unlock()

	s.entry.finish(nil)
	if err := t.writeFrame(conn, wsRequest{Method: "unsubscribe", Subscription: s.entry.payload}); err != nil {
		t.dropUnsubAck(key, ack)
		return err
	}

	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		t.dropUnsubAck(key, ack)
		return ctx.Err()
	}
}

func (t *WSTransport) dropUnsubAck(key string, ack chan struct{}) {
	t.mu.Lock()
	if t.unsubAcks[key] == ack {
		delete(t.unsubAcks, key)
	}
	t.mu.Unlock()
}

// Post sends a request over the socket and waits for its correlated reply.
// Info replies return payload.data; action replies return the raw
// {status, response} body for ValidateResponse.
func (t *WSTransport) Post(ctx context.Context, kind RequestKind, payload any) (json.RawMessage, error) {
	if _, err := endpointFor(kind); err != nil {
		return nil, err
	}
	if err := t.waitOpen(ctx); err != nil {
		return nil, err
	}

	id := t.nextID.Add(1)
	ch := make(chan postResult, 1)

	t.mu.Lock()
	if t.state != StateOpen {
		t.mu.Unlock()
		return nil, ErrConnectionClosed
	}
	t.pending[id] = ch
	conn := t.conn
	t.mu.Unlock()

	frame := wsRequest{Method: "post", ID: id, Request: &wsPostRequest{Type: kind, Payload: payload}}
	if err := t.writeFrame(conn, frame); err != nil {
		t.removePending(id)
		return nil, &TransportError{Err: err}
	}

	select {
	case r := <-ch:
		return r.data, r.err
	case <-ctx.Done():
		t.removePending(id)
		return nil, ctx.Err()
	}
}

// Request implements Transport over post requests
func (t *WSTransport) Request(ctx context.Context, kind RequestKind, payload any) (json.RawMessage, error) {
	return t.Post(ctx, kind, payload)
}

func (t *WSTransport) removePending(id uint64) {
	t.mu.Lock()
	delete(t.pending, id)
	t.mu.Unlock()
}

// IsAbandoned reports whether the transport stopped for good, and why
func (t *WSTransport) IsAbandoned() (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.abandoned != nil, t.abandoned
}
