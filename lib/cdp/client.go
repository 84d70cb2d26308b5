// Package cdp is a small Chrome DevTools Protocol client: browser-level
// connection, target discovery, flattened sessions and Runtime.evaluate.
package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
)

// ErrClosed is returned for calls on a client whose socket has gone away.
var ErrClosed = errors.New("cdp: connection closed")

const callTimeout = 30 * time.Second

// Error is a protocol-level error returned by the browser.
type Error struct {
	Method  string `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("cdp %s: %s (%d)", e.Method, e.Message, e.Code)
}

type message struct {
	ID        int64           `json:"id,omitempty"`
	Method    string          `json:"method,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *Error          `json:"error,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
}

type reply struct {
	result json.RawMessage
	err    *Error
}

// Client is a browser-level CDP connection.
type Client struct {
	logger *slog.Logger
	conn   *websocket.Conn
	msgID  atomic.Int64
	done   chan struct{}

	mu      sync.Mutex
	pending map[int64]chan reply
	err     error
}

// Dial connects to a browser-level DevTools WebSocket URL.
func Dial(ctx context.Context, wsURL string, logger *slog.Logger) (*Client, error) {
	parsed, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid CDP URL: %w", err)
	}
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{"Host": []string{parsed.Host}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to CDP: %w", err)
	}
	conn.SetReadLimit(100 * 1024 * 1024)

	c := &Client{
		logger:  logger,
		conn:    conn,
		done:    make(chan struct{}),
		pending: make(map[int64]chan reply),
	}
	go c.readLoop()
	return c, nil
}

// Done is closed once the socket has gone away.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err reports why the client stopped, once Done is closed.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) Close() error {
	err := c.conn.Close(websocket.StatusNormalClosure, "client closing")
	<-c.done
	return err
}

// Call sends a command and waits for its result. An empty sessionID targets the browser.
func (c *Client) Call(ctx context.Context, sessionID, method string, params any) (json.RawMessage, error) {
	id := c.msgID.Add(1)

	var paramsRaw json.RawMessage
	if params != nil {
		var err error
		paramsRaw, err = json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
	}
	data, err := json.Marshal(message{ID: id, Method: method, Params: paramsRaw, SessionID: sessionID})
	if err != nil {
		return nil, fmt.Errorf("marshal CDP message: %w", err)
	}

	ch := make(chan reply, 1)
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return nil, fmt.Errorf("write CDP: %w", err)
	}

	timer := time.NewTimer(callTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			r.err.Method = method
			return nil, r.err
		}
		return r.result, nil
	case <-timer.C:
		return nil, fmt.Errorf("CDP call timed out: %s", method)
	case <-c.done:
		return nil, ErrClosed
	}
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.conn.Read(context.Background())
		if err != nil {
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				c.logger.Warn("CDP read error", "err", err)
			}
			return
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Error("CDP unmarshal error", "err", err)
			continue
		}
		// events are not consumed; state is sampled by polling
		if msg.ID == 0 {
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[msg.ID]
		c.mu.Unlock()
		if ok {
			ch <- reply{result: msg.Result, err: msg.Error}
		}
	}
}
