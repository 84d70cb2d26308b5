package inject

import (
	"context"
	"strings"

	"github.com/samber/lo"
)

// ClickSendButton clicks the most likely send control among the enabled,
// visible candidates.
type ClickSendButton struct{}

func (ClickSendButton) Name() string { return "click-send-button" }

func (ClickSendButton) Attempt(ctx context.Context, t Target) (bool, error) {
	buttons, err := t.Surface.SendButtons(ctx, t.SendSelector)
	if err != nil {
		return false, err
	}
	btn, ok := PickSendButton(buttons)
	if !ok {
		return false, nil
	}
	return t.Surface.ClickButton(ctx, t.SendSelector, btn.Index)
}

// PickSendButton prefers a usable button whose attributes name it as the send
// action, and otherwise takes the first usable one.
func PickSendButton(buttons []Button) (Button, bool) {
	usable := lo.Filter(buttons, func(b Button, _ int) bool {
		return !b.Disabled && b.Visible
	})
	if len(usable) == 0 {
		return Button{}, false
	}
	if b, ok := lo.Find(usable, isPrimarySend); ok {
		return b, true
	}
	return usable[0], true
}

func isPrimarySend(b Button) bool {
	return strings.Contains(b.TestID, "send") ||
		strings.Contains(b.ID, "submit") ||
		strings.Contains(b.AriaLabel, "发送") ||
		strings.Contains(strings.ToLower(b.AriaLabel), "send")
}

// PressEnter focuses the input and sends an Enter keydown.
type PressEnter struct{}

func (PressEnter) Name() string { return "press-enter" }

func (PressEnter) Attempt(ctx context.Context, t Target) (bool, error) {
	return t.Surface.PressEnter(ctx, t.InputSelector)
}
