// Package router dispatches desktop-app commands to tabs and tab events to
// the desktop app.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/onkernel/aibridge/lib/protocol"
	"github.com/onkernel/aibridge/lib/tabs"
)

// Sender delivers a frame to the desktop app and reports whether it went out.
type Sender interface {
	Send(frame any) bool
}

type Tabs interface {
	SendToTab(ctx context.Context, tabID int, msg tabs.Message) (tabs.Response, error)
	ActiveTab(ctx context.Context) (int, error)
}

type Notifier interface {
	Show(ctx context.Context, title, body string) error
}

type Router struct {
	sender   Sender
	tabs     Tabs
	notifier Notifier
	log      *slog.Logger
	timeout  time.Duration
}

func New(sender Sender, t Tabs, n Notifier, log *slog.Logger, requestTimeout time.Duration) *Router {
	if requestTimeout <= 0 {
		requestTimeout = 10 * time.Second
	}
	return &Router{
		sender:   sender,
		tabs:     t,
		notifier: n,
		log:      log.With("component", "router"),
		timeout:  requestTimeout,
	}
}

// HandleFrame processes one inbound frame. Bad frames are logged and dropped.
func (r *Router) HandleFrame(ctx context.Context, data []byte) {
	cmd, err := protocol.DecodeCommand(data)
	if err != nil {
		r.log.Warn("dropping malformed frame", "err", err, "len", len(data))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	switch cmd.Type {
	case protocol.TypeSendMessage:
		if cmd.Message == "" {
			r.log.Warn("dropping send_message without message")
			return
		}
		tabID, err := r.resolveTab(ctx, cmd.TabID)
		if err != nil {
			r.log.Warn("send_message: no target tab", "err", err)
			return
		}
		resp, err := r.tabs.SendToTab(ctx, tabID, tabs.Message{Type: tabs.TypeInjectMessage, Message: cmd.Message})
		if err != nil {
			r.log.Warn("send_message failed", "tab", tabID, "err", err)
			return
		}
		r.log.Info("send_message handled", "tab", tabID, "success", resp.Success)

	case protocol.TypeGetAIResponse:
		tabID, err := r.resolveTab(ctx, cmd.TabID)
		if err != nil {
			r.log.Warn("get_ai_response: no target tab", "err", err)
			return
		}
		resp, err := r.tabs.SendToTab(ctx, tabID, tabs.Message{Type: tabs.TypeGetAIResponse})
		if err != nil {
			r.log.Warn("get_ai_response failed", "tab", tabID, "err", err)
			return
		}
		if !resp.Success || resp.Content == "" {
			r.log.Info("get_ai_response: no response on page", "tab", tabID)
			return
		}
		if !r.sender.Send(protocol.NewAIResponse(resp.Content, tabID)) {
			r.log.Warn("ai_response not delivered", "tab", tabID)
		}

	case protocol.TypePing:
	default:
		r.log.Warn("dropping frame of unknown type", "type", cmd.Type)
	}
}

func (r *Router) resolveTab(ctx context.Context, explicit *int) (int, error) {
	if explicit != nil {
		return *explicit, nil
	}
	return r.tabs.ActiveTab(ctx)
}

// Run handles messages posted by tab agents until ctx is done or in closes.
func (r *Router) Run(ctx context.Context, in <-chan tabs.Envelope) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-in:
			if !ok {
				return nil
			}
			r.HandleTabMessage(ctx, env)
		}
	}
}

// HandleTabMessage forwards a completion to the desktop app, or shows a
// notification when it cannot be delivered. Only one of the two happens.
func (r *Router) HandleTabMessage(ctx context.Context, env tabs.Envelope) {
	resp := tabs.Response{Success: true}
	switch env.Message.Type {
	case tabs.TypeAICompleted:
		if env.Message.Data == nil {
			r.log.Warn("AI_COMPLETED without data", "tab", env.TabID)
			resp.Success = false
			break
		}
		c := *env.Message.Data
		if r.sender.Send(protocol.NewCompleted(c)) {
			r.log.Info("completion delivered", "tab", env.TabID, "site", c.SiteName)
			break
		}
		body := c.Title
		if body == "" {
			body = "Click to view"
		}
		if err := r.notifier.Show(ctx, fmt.Sprintf("%s AI completed", c.SiteName), body); err != nil {
			r.log.Error("notification failed", "err", err, "site", c.SiteName)
		}
	default:
		r.log.Warn("unknown tab message", "type", env.Message.Type, "tab", env.TabID)
		resp.Success = false
	}
	if env.Reply != nil {
		env.Reply <- resp
	}
}
