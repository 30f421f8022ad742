// Package venuetest runs a fake venue websocket endpoint for tests.
package venuetest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// Frame is a request the fake venue received
type Frame struct {
	Method       string          `json:"method"`
	ID           uint64          `json:"id,omitempty"`
	Subscription json.RawMessage `json:"subscription,omitempty"`
	Request      *PostRequest    `json:"request,omitempty"`
}

type PostRequest struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// PostHandler answers a post request with a response type ("info",
// "action" or "error") and payload
type PostHandler func(req PostRequest) (string, any)

// Server is a fake venue. By default it acknowledges every subscribe and
// unsubscribe, answers pings and echoes post requests back as errors.
type Server struct {
	srv    *httptest.Server
	logger *zap.Logger

	mu          sync.Mutex
	conns       map[*websocket.Conn]struct{}
	frames      []Frame
	accepted    int
	refuse      bool
	silent      bool
	rejected    map[string]bool
	postHandler PostHandler
}

// NewServer starts a fake venue that is closed with the test
func NewServer(t testing.TB) *Server {
	s := &Server{
		logger:   zaptest.NewLogger(t),
		conns:    make(map[*websocket.Conn]struct{}),
		rejected: make(map[string]bool),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// URL is the ws:// address of the venue
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *Server) Close() {
	s.DropConnections()
	s.srv.Close()
}

// SetPostHandler replaces the post responder
func (s *Server) SetPostHandler(h PostHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.postHandler = h
}

// RejectType makes the venue answer subscriptions of typ with an error
func (s *Server) RejectType(typ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected[typ] = true
}

// SetSilent stops acknowledging subscribe and unsubscribe requests
func (s *Server) SetSilent(silent bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.silent = silent
}

// Refuse makes new handshakes fail with 503
func (s *Server) Refuse(refuse bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refuse = refuse
}

// Accepted counts successful handshakes
func (s *Server) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

// Connections counts live connections
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) Frames() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Frame(nil), s.frames...)
}

// Count returns how many frames with method were received
func (s *Server) Count(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, f := range s.frames {
		if f.Method == method {
			n++
		}
	}
	return n
}

// Push sends {channel, data} to every live connection
func (s *Server) Push(channel string, data any) error {
	msg, err := json.Marshal(map[string]any{"channel": channel, "data": data})
	if err != nil {
		return err
	}
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	if len(conns) == 0 {
		return fmt.Errorf("no live connections")
	}
	for _, c := range conns {
		if err := write(c, msg); err != nil {
			return err
		}
	}
	return nil
}

// DropConnections aborts every live connection without a close handshake
func (s *Server) DropConnections() {
	s.mu.Lock()
	conns := s.conns
	s.conns = make(map[*websocket.Conn]struct{})
	s.mu.Unlock()

	for c := range conns {
		c.CloseNow()
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	refuse := s.refuse
	s.mu.Unlock()
	if refuse {
		http.Error(w, "venue unavailable", http.StatusServiceUnavailable)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{})
	if err != nil {
		s.logger.Warn("Accept failed", zap.Error(err))
		return
	}
	defer c.CloseNow()

	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.accepted++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
	}()

	for {
		_, data, err := c.Read(r.Context())
		if err != nil {
			return
		}
		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.logger.Warn("Malformed frame", zap.ByteString("frame", data))
			continue
		}

		s.mu.Lock()
		s.frames = append(s.frames, frame)
		s.mu.Unlock()

		reply, err := s.reply(frame)
		if err != nil {
			s.logger.Warn("Reply failed", zap.Error(err))
			continue
		}
		if reply == nil {
			continue
		}
		if err := write(c, reply); err != nil {
			return
		}
	}
}

func (s *Server) reply(frame Frame) ([]byte, error) {
	s.mu.Lock()
	silent := s.silent
	handler := s.postHandler
	var subType struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(frame.Subscription, &subType)
	rejected := s.rejected[subType.Type]
	s.mu.Unlock()

	switch frame.Method {
	case "ping":
		return json.Marshal(map[string]any{"channel": "pong"})
	case "subscribe", "unsubscribe":
		if frame.Method == "subscribe" && rejected {
			return json.Marshal(map[string]any{
				"channel": "error",
				"data":    "Invalid subscription " + string(frame.Subscription),
			})
		}
		if silent {
			return nil, nil
		}
		return json.Marshal(map[string]any{
			"channel": "subscriptionResponse",
			"data":    map[string]any{"method": frame.Method, "subscription": frame.Subscription},
		})
	case "post":
		if frame.Request == nil {
			return nil, fmt.Errorf("post without request")
		}
		respType, payload := "error", any("no post handler")
		if handler != nil {
			respType, payload = handler(*frame.Request)
		}
		return json.Marshal(map[string]any{
			"channel": "post",
			"data": map[string]any{
				"id":       frame.ID,
				"response": map[string]any{"type": respType, "payload": payload},
			},
		})
	default:
		return nil, nil
	}
}

func write(c *websocket.Conn, msg []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return c.Write(ctx, websocket.MessageText, msg)
}
