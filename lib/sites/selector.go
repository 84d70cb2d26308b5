package sites

import (
	"fmt"

	"github.com/andybalholm/cascadia"
)

// ValidateSelector reports whether sel parses as a CSS selector group. The
// browser does the matching; parsing here catches typos at load time instead
// of as silent non-matches on every poll.
func ValidateSelector(sel string) error {
	if _, err := cascadia.ParseGroup(sel); err != nil {
		return fmt.Errorf("invalid selector %q: %w", sel, err)
	}
	return nil
}
