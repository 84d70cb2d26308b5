// Package protocol defines the JSON frames exchanged with the desktop app.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	TypePing          = "ping"
	TypeAICompleted   = "ai_completed"
	TypeAIResponse    = "ai_response"
	TypeSendMessage   = "send_message"
	TypeGetAIResponse = "get_ai_response"
)

// Completion describes a finished generation on a page.
type Completion struct {
	SiteName  string    `json:"siteName"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
	// Seconds, parsed from "Ran for N s" and "Thought for N seconds" annotations.
	RunTime        *int `json:"runTime,omitempty"`
	ThinkTime      *int `json:"thinkTime,omitempty"`
	ImageGenerated bool `json:"imageGenerated,omitempty"`
	NewImages      int  `json:"newImages,omitempty"`
}

type Ping struct {
	Type string `json:"type"`
}

func NewPing() Ping { return Ping{Type: TypePing} }

// Completed is the ai_completed frame. The completion fields sit at the top
// level next to the type.
type Completed struct {
	Type string `json:"type"`
	Completion
}

func NewCompleted(c Completion) Completed {
	return Completed{Type: TypeAICompleted, Completion: c}
}

type AIResponse struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	TabID   int    `json:"tabId"`
}

func NewAIResponse(content string, tabID int) AIResponse {
	return AIResponse{Type: TypeAIResponse, Content: content, TabID: tabID}
}

// Command is an inbound frame from the desktop app.
type Command struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	TabID   *int   `json:"tabId,omitempty"`
}

// DecodeCommand parses an inbound frame. Unknown types decode successfully
// and are left to the caller to reject.
func DecodeCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("decode frame: %w", err)
	}
	if cmd.Type == "" {
		return Command{}, fmt.Errorf("decode frame: missing type")
	}
	return cmd, nil
}
