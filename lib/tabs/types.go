// Package tabs runs one agent per monitored browser tab and carries messages
// between those agents and the rest of the bridge.
package tabs

import (
	"context"
	"errors"

	"github.com/onkernel/aibridge/lib/extract"
	"github.com/onkernel/aibridge/lib/inject"
	"github.com/onkernel/aibridge/lib/monitor"
	"github.com/onkernel/aibridge/lib/protocol"
)

var (
	ErrNoTab       = errors.New("tabs: no such tab")
	ErrTabClosed   = errors.New("tabs: tab closed")
	ErrNoActiveTab = errors.New("tabs: no active monitored tab")
)

// Message types exchanged with tab agents.
const (
	TypeInjectMessage = "INJECT_MESSAGE"
	TypeGetAIResponse = "GET_AI_RESPONSE"
	TypeAICompleted   = "AI_COMPLETED"
)

type Message struct {
	Type    string               `json:"type"`
	Message string               `json:"message,omitempty"`
	Data    *protocol.Completion `json:"data,omitempty"`
}

type Response struct {
	Success bool   `json:"success"`
	Content string `json:"content,omitempty"`
}

// Envelope is a message posted by a tab agent. Reply, when set, receives
// exactly one response.
type Envelope struct {
	TabID   int
	Message Message
	Reply   chan<- Response
}

// PageInfo is a page target as reported by the browser.
type PageInfo struct {
	TargetID string
	URL      string
	Title    string
}

type Presence struct {
	Visible bool `json:"visible"`
	Focused bool `json:"focused"`
}

// Page is an attached tab.
type Page interface {
	monitor.Page
	inject.Surface
	extract.Source
	Presence(ctx context.Context) (Presence, error)
	// Done is closed when the page's connection to the browser is gone.
	Done() <-chan struct{}
	Detach(ctx context.Context) error
}

type Browser interface {
	Pages(ctx context.Context) ([]PageInfo, error)
	Attach(ctx context.Context, targetID string) (Page, error)
}

// TabStatus is a snapshot of one monitored tab.
type TabStatus struct {
	ID         int    `json:"id"`
	Site       string `json:"site"`
	Host       string `json:"host"`
	URL        string `json:"url"`
	Generating bool   `json:"generating"`
}
