package page

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go/v5"

	"github.com/onkernel/aibridge/lib/cdp"
	"github.com/onkernel/aibridge/lib/tabs"
)

const (
	dialAttempts   = 3
	dialRetryDelay = 500 * time.Millisecond
)

// Browser is a lazily established connection to a Chrome DevTools endpoint.
// A dropped connection is re-dialed on next use.
type Browser struct {
	endpoint string
	logger   *slog.Logger

	mu     sync.Mutex
	client *cdp.Client
}

var _ tabs.Browser = (*Browser)(nil)

func NewBrowser(endpoint string, logger *slog.Logger) *Browser {
	return &Browser{
		endpoint: endpoint,
		logger:   logger.With("component", "browser"),
	}
}

func (b *Browser) conn(ctx context.Context) (*cdp.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.client != nil {
		select {
		case <-b.client.Done():
			b.logger.Warn("browser connection lost", "err", b.client.Err())
			b.client = nil
		default:
			return b.client, nil
		}
	}

	var client *cdp.Client
	err := retry.New(
		retry.Attempts(dialAttempts),
		retry.Delay(dialRetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	).Do(func() error {
		wsURL, err := cdp.ResolveBrowserURL(ctx, b.endpoint)
		if err != nil {
			return err
		}
		dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		client, err = cdp.Dial(dialCtx, wsURL, b.logger)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("connect to browser at %s: %w", b.endpoint, err)
	}
	b.logger.Info("connected to browser", "endpoint", b.endpoint)
	b.client = client
	return client, nil
}

// Pages lists open page targets.
func (b *Browser) Pages(ctx context.Context) ([]tabs.PageInfo, error) {
	c, err := b.conn(ctx)
	if err != nil {
		return nil, err
	}
	targets, err := c.Targets(ctx)
	if err != nil {
		return nil, err
	}
	var pages []tabs.PageInfo
	for _, t := range targets {
		if t.Type != "page" {
			continue
		}
		pages = append(pages, tabs.PageInfo{TargetID: t.TargetID, URL: t.URL, Title: t.Title})
	}
	return pages, nil
}

// Attach opens a session on a page target.
func (b *Browser) Attach(ctx context.Context, targetID string) (tabs.Page, error) {
	c, err := b.conn(ctx)
	if err != nil {
		return nil, err
	}
	sessionID, err := c.Attach(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if _, err := c.Call(ctx, sessionID, "Runtime.enable", nil); err != nil {
		b.logger.Warn("failed to enable Runtime", "err", err, "target", targetID)
	}
	b.logger.Debug("attached to page target", "target", targetID, "session", sessionID)
	return &Tab{client: c, targetID: targetID, sessionID: sessionID}, nil
}

func (b *Browser) Close() error {
	b.mu.Lock()
	c := b.client
	b.client = nil
	b.mu.Unlock()
	if c == nil {
		return nil
	}
	return c.Close()
}
