// Package sites holds the table of AI chat sites the bridge knows how to
// observe, keyed by page host name.
package sites

import (
	"fmt"
	"strings"
)

// Kind distinguishes sites with a reliable stop control from those that need
// extra heuristics to tell whether generation is running.
type Kind string

const (
	KindChat   Kind = "chat"
	KindStudio Kind = "studio"
)

// Generic selectors used when a site does not declare its own.
const (
	GenericInputSelector    = `textarea, div[contenteditable="true"]`
	GenericSendSelector     = `button[type="submit"], button[aria-label*="Send"]`
	GenericResponseSelector = `.assistant-message, .ai-response, .model-response`
)

// Site describes one AI web application.
type Site struct {
	Host             string `json:"host"`
	DisplayName      string `json:"displayName"`
	Kind             Kind   `json:"kind"`
	StopSelector     string `json:"stopSelector,omitempty"`
	InputSelector    string `json:"inputSelector,omitempty"`
	SendSelector     string `json:"sendSelector,omitempty"`
	ResponseSelector string `json:"responseSelector,omitempty"`
}

func (s Site) Input() string {
	if s.InputSelector != "" {
		return s.InputSelector
	}
	return GenericInputSelector
}

func (s Site) Send() string {
	if s.SendSelector != "" {
		return s.SendSelector
	}
	return GenericSendSelector
}

func (s Site) Response() string {
	if s.ResponseSelector != "" {
		return s.ResponseSelector
	}
	return GenericResponseSelector
}

func (s Site) validate() error {
	if s.Host == "" {
		return fmt.Errorf("host is required")
	}
	if strings.ContainsAny(s.Host, "/: ") || s.Host != strings.ToLower(s.Host) {
		return fmt.Errorf("host %q must be a lowercase host name", s.Host)
	}
	if s.DisplayName == "" {
		return fmt.Errorf("%s: displayName is required", s.Host)
	}
	switch s.Kind {
	case KindChat, KindStudio:
	default:
		return fmt.Errorf("%s: unknown kind %q", s.Host, s.Kind)
	}
	for field, sel := range map[string]string{
		"stopSelector":     s.StopSelector,
		"inputSelector":    s.InputSelector,
		"sendSelector":     s.SendSelector,
		"responseSelector": s.ResponseSelector,
	} {
		if sel == "" {
			continue
		}
		if err := ValidateSelector(sel); err != nil {
			return fmt.Errorf("%s: %s: %w", s.Host, field, err)
		}
	}
	return nil
}
