package tabs

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/onkernel/aibridge/lib/extract"
	"github.com/onkernel/aibridge/lib/inject"
	"github.com/onkernel/aibridge/lib/monitor"
	"github.com/onkernel/aibridge/lib/sites"
)

type request struct {
	ctx   context.Context
	msg   Message
	reply chan Response
}

// agent owns everything about one tab. Its goroutine is the only one that
// touches the monitor, so sampling and requests never interleave.
type agent struct {
	id        int
	targetID  string
	site      sites.Site
	page      Page
	log       *slog.Logger
	monitor   *monitor.Monitor
	injector  *inject.Injector
	extractor *extract.Extractor
	out       chan<- Envelope

	requests   chan request
	cancel     context.CancelFunc
	done       chan struct{}
	generating atomic.Bool

	// guarded by Manager.mu
	url string
}

func (a *agent) run(ctx context.Context, poll time.Duration) {
	defer close(a.done)
	a.log.Info("monitoring tab")

	t := time.NewTicker(poll)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.page.Done():
			a.log.Info("tab connection lost")
			return
		case <-t.C:
			a.tick(ctx)
		case req := <-a.requests:
			req.reply <- a.handle(req.ctx, req.msg)
		}
	}
}

func (a *agent) tick(ctx context.Context) {
	events, err := a.monitor.Tick(ctx)
	if err != nil {
		// pages mid-navigation have no execution context for a moment
		a.log.Debug("sample failed", "err", err)
		return
	}
	for _, ev := range events {
		switch ev.Kind {
		case monitor.Started:
			a.generating.Store(true)
		case monitor.Completed:
			a.generating.Store(false)
			a.post(Message{Type: TypeAICompleted, Data: ev.Completion})
		case monitor.ImageCompleted:
			a.post(Message{Type: TypeAICompleted, Data: ev.Completion})
		}
	}
}

func (a *agent) post(msg Message) {
	select {
	case a.out <- Envelope{TabID: a.id, Message: msg}:
	default:
		a.log.Warn("outbound queue full, dropping event", "type", msg.Type)
	}
}

func (a *agent) handle(ctx context.Context, msg Message) Response {
	switch msg.Type {
	case TypeInjectMessage:
		if err := a.injector.Inject(ctx, msg.Message); err != nil {
			a.log.Warn("inject failed", "err", err)
			return Response{Success: false}
		}
		return Response{Success: true}
	case TypeGetAIResponse:
		content, ok, err := a.extractor.Latest(ctx)
		if err != nil {
			a.log.Warn("extract failed", "err", err)
		}
		return Response{Success: ok, Content: content}
	default:
		a.log.Warn("unknown tab message", "type", msg.Type)
		return Response{Success: false}
	}
}
