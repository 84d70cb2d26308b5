// Package page drives browser tabs over the DevTools protocol with small
// probe scripts.
package page

import (
	"context"

	"github.com/onkernel/aibridge/lib/cdp"
	"github.com/onkernel/aibridge/lib/inject"
	"github.com/onkernel/aibridge/lib/monitor"
	"github.com/onkernel/aibridge/lib/tabs"
)

// Tab is an attached page target.
type Tab struct {
	client    *cdp.Client
	targetID  string
	sessionID string
}

var _ tabs.Page = (*Tab)(nil)

func (t *Tab) eval(ctx context.Context, body string, args, out any) error {
	expr, err := script(body, args)
	if err != nil {
		return err
	}
	return t.client.Evaluate(ctx, t.sessionID, expr, out)
}

func (t *Tab) Sample(ctx context.Context, p monitor.Probe) (monitor.Signals, error) {
	var sig monitor.Signals
	err := t.eval(ctx, sampleJS, p, &sig)
	return sig, err
}

func (t *Tab) PageText(ctx context.Context) (string, error) {
	var text string
	err := t.eval(ctx, pageTextJS, nil, &text)
	return text, err
}

type selectorArgs struct {
	Selector string `json:"selector"`
	Text     string `json:"text,omitempty"`
}

type clickArgs struct {
	Selector string `json:"selector"`
	Index    int    `json:"index"`
}

func (t *Tab) FillInput(ctx context.Context, selector, text string) (bool, error) {
	var ok bool
	err := t.eval(ctx, fillJS, selectorArgs{Selector: selector, Text: text}, &ok)
	return ok, err
}

func (t *Tab) SendButtons(ctx context.Context, selector string) ([]inject.Button, error) {
	var buttons []inject.Button
	err := t.eval(ctx, buttonsJS, selectorArgs{Selector: selector}, &buttons)
	return buttons, err
}

func (t *Tab) ClickButton(ctx context.Context, selector string, index int) (bool, error) {
	var ok bool
	err := t.eval(ctx, clickJS, clickArgs{Selector: selector, Index: index}, &ok)
	return ok, err
}

func (t *Tab) PressEnter(ctx context.Context, selector string) (bool, error) {
	var ok bool
	err := t.eval(ctx, enterJS, selectorArgs{Selector: selector}, &ok)
	return ok, err
}

func (t *Tab) Texts(ctx context.Context, selector string) ([]string, error) {
	var texts []string
	err := t.eval(ctx, textsJS, selectorArgs{Selector: selector}, &texts)
	return texts, err
}

func (t *Tab) Presence(ctx context.Context) (tabs.Presence, error) {
	var p tabs.Presence
	err := t.eval(ctx, presenceJS, nil, &p)
	return p, err
}

func (t *Tab) Done() <-chan struct{} { return t.client.Done() }

func (t *Tab) Detach(ctx context.Context) error {
	select {
	case <-t.client.Done():
		return nil
	default:
	}
	return t.client.Detach(ctx, t.sessionID)
}
