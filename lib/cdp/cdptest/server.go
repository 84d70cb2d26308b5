// Package cdptest provides an in-process DevTools endpoint for tests.
package cdptest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/coder/websocket"
)

// Request is a decoded command received by the fake browser.
type Request struct {
	ID        int64           `json:"id"`
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params"`
	SessionID string          `json:"sessionId"`
}

// HandlerFunc answers one command. A non-nil error becomes a protocol error.
type HandlerFunc func(req Request) (any, error)

// Server is a fake browser speaking the DevTools protocol over WebSocket. It
// also serves /json/version.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]HandlerFunc
	requests []Request
	conns    []*websocket.Conn
}

func NewServer() *Server {
	s := &Server{handlers: make(map[string]HandlerFunc)}
	mux := http.NewServeMux()
	mux.HandleFunc("/json/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"Browser":              "FakeChrome/1.0",
			"webSocketDebuggerUrl": s.WebSocketURL(),
		})
	})
	mux.HandleFunc("/devtools/browser/", s.serveWS)
	s.Server = httptest.NewServer(mux)
	return s
}

// WebSocketURL is the browser-level DevTools URL.
func (s *Server) WebSocketURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/devtools/browser/fake"
}

// Handle registers the answer for a method.
func (s *Server) Handle(method string, h HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// Requests returns the commands received so far, optionally filtered by method.
func (s *Server) Requests(method string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Request
	for _, r := range s.requests {
		if method == "" || r.Method == method {
			out = append(out, r)
		}
	}
	return out
}

// DropConnections closes every open browser socket.
func (s *Server) DropConnections() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, c := range conns {
		_ = c.Close(websocket.StatusGoingAway, "dropped")
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	c.SetReadLimit(16 << 20)
	s.mu.Lock()
	s.conns = append(s.conns, c)
	s.mu.Unlock()
	defer c.Close(websocket.StatusNormalClosure, "")

	ctx := r.Context()
	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			return
		}
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}
		s.mu.Lock()
		s.requests = append(s.requests, req)
		h := s.handlers[req.Method]
		s.mu.Unlock()

		resp := map[string]any{"id": req.ID}
		if req.SessionID != "" {
			resp["sessionId"] = req.SessionID
		}
		if h == nil {
			resp["result"] = map[string]any{}
		} else if result, err := h(req); err != nil {
			resp["error"] = map[string]any{"code": -32000, "message": err.Error()}
		} else {
			resp["result"] = result
		}
		out, _ := json.Marshal(resp)
		if err := c.Write(context.Background(), websocket.MessageText, out); err != nil {
			return
		}
	}
}

// EvalValue builds a Runtime.evaluate result carrying v by value.
func EvalValue(v any) map[string]any {
	return map[string]any{"result": map[string]any{"type": "object", "value": v}}
}

// EvalException builds a Runtime.evaluate result reporting a thrown exception.
func EvalException(description string) map[string]any {
	return map[string]any{
		"result": map[string]any{"type": "object", "subtype": "error"},
		"exceptionDetails": map[string]any{
			"text":      "Uncaught",
			"exception": map[string]any{"description": description},
		},
	}
}

// Expression extracts the script of a Runtime.evaluate request.
func (r Request) Expression() string {
	var p struct {
		Expression string `json:"expression"`
	}
	_ = json.Unmarshal(r.Params, &p)
	return p.Expression
}
