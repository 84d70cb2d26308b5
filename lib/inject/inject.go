// Package inject writes a prompt into an AI page's input and submits it.
package inject

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/onkernel/aibridge/lib/sites"
)

var (
	ErrNoInput      = errors.New("inject: no input element found")
	ErrNotSubmitted = errors.New("inject: no submit strategy succeeded")
)

// Button describes a send-control candidate in document order.
type Button struct {
	Index     int    `json:"index"`
	Disabled  bool   `json:"disabled"`
	Visible   bool   `json:"visible"`
	TestID    string `json:"testId"`
	ID        string `json:"id"`
	AriaLabel string `json:"ariaLabel"`
}

// Surface is the page capability the injector drives.
type Surface interface {
	// FillInput writes text into the first element matching selector and
	// focuses it. It reports false if nothing matched.
	FillInput(ctx context.Context, selector, text string) (bool, error)
	SendButtons(ctx context.Context, selector string) ([]Button, error)
	// ClickButton dispatches mousedown, mouseup and click on the index-th match.
	ClickButton(ctx context.Context, selector string, index int) (bool, error)
	// PressEnter focuses the first match and dispatches an Enter keydown.
	PressEnter(ctx context.Context, selector string) (bool, error)
}

// Target is what a strategy acts on.
type Target struct {
	Surface       Surface
	InputSelector string
	SendSelector  string
}

// Strategy is one way of submitting the filled input.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, t Target) (bool, error)
}

// DefaultStrategies is the submission order: a real send control first, the
// keyboard as a fallback.
func DefaultStrategies() []Strategy {
	return []Strategy{ClickSendButton{}, PressEnter{}}
}

type Option func(*Injector)

func WithSubmitDelay(d time.Duration) Option {
	return func(i *Injector) { i.delay = d }
}

func WithStrategies(s ...Strategy) Option {
	return func(i *Injector) { i.strategies = s }
}

type Injector struct {
	target     Target
	strategies []Strategy
	delay      time.Duration
	log        *slog.Logger
}

func New(site sites.Site, surface Surface, log *slog.Logger, opts ...Option) *Injector {
	i := &Injector{
		target: Target{
			Surface:       surface,
			InputSelector: site.Input(),
			SendSelector:  site.Send(),
		},
		strategies: DefaultStrategies(),
		delay:      200 * time.Millisecond,
		log:        log,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Inject fills the input with text, waits for the page to react, then runs
// the strategy chain until one submits. A failed chain is not retried since a
// retry could submit the prompt twice.
func (i *Injector) Inject(ctx context.Context, text string) error {
	ok, err := i.target.Surface.FillInput(ctx, i.target.InputSelector, text)
	if err != nil {
		return fmt.Errorf("fill input: %w", err)
	}
	if !ok {
		return ErrNoInput
	}

	if i.delay > 0 {
		t := time.NewTimer(i.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	for _, s := range i.strategies {
		ok, err := s.Attempt(ctx, i.target)
		if err != nil {
			i.log.Warn("submit strategy failed", "strategy", s.Name(), "err", err)
			continue
		}
		if ok {
			i.log.Info("message submitted", "strategy", s.Name())
			return nil
		}
		i.log.Debug("submit strategy not applicable", "strategy", s.Name())
	}
	return ErrNotSubmitted
}
