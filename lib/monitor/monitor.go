package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/onkernel/aibridge/lib/protocol"
	"github.com/onkernel/aibridge/lib/sites"
)

// Page is the view of a tab the monitor samples.
type Page interface {
	Sample(ctx context.Context, p Probe) (Signals, error)
	PageText(ctx context.Context) (string, error)
}

// Event is emitted for every transition. Completion is set for Completed and
// ImageCompleted.
type Event struct {
	Kind       TransitionKind
	Completion *protocol.Completion
}

// Monitor drives a Machine from a page.
type Monitor struct {
	site    sites.Site
	probe   Probe
	page    Page
	log     *slog.Logger
	now     func() time.Time
	machine Machine
	docID   string
	// images is set for studio sites; chat pages show pasted uploads and
	// inline results that are not generation events of their own.
	images bool
}

func New(site sites.Site, page Page, log *slog.Logger) *Monitor {
	return &Monitor{
		site:   site,
		probe:  ProbeFor(site),
		page:   page,
		log:    log,
		now:    time.Now,
		images: site.Kind == sites.KindStudio,
	}
}

func (m *Monitor) State() State { return m.machine.State() }

// Tick samples the page once and returns the resulting events.
func (m *Monitor) Tick(ctx context.Context) ([]Event, error) {
	sig, err := m.page.Sample(ctx, m.probe)
	if err != nil {
		return nil, fmt.Errorf("sample page: %w", err)
	}
	if sig.DocumentID != m.docID {
		if m.docID != "" {
			m.log.Debug("page reloaded, resetting monitor", "url", sig.URL)
		}
		m.machine.Reset()
		m.docID = sig.DocumentID
	}

	at := m.now()
	images := 0
	if m.images {
		images = sig.ImageCount
	}
	transitions := m.machine.Step(Sample{Generating: sig.Generating(), ImageCount: images, At: at})

	events := make([]Event, 0, len(transitions))
	for _, tr := range transitions {
		ev := Event{Kind: tr.Kind}
		switch tr.Kind {
		case Started:
			m.log.Info("generation started", "site", m.site.DisplayName, "url", sig.URL)
		case Completed:
			c := m.completion(sig, at)
			text, err := m.page.PageText(ctx)
			if err != nil {
				m.log.Warn("read page text for annotations", "err", err)
			} else {
				ann := ParseAnnotations(text)
				c.RunTime, c.ThinkTime = ann.RunTime, ann.ThinkTime
			}
			ev.Completion = c
			m.log.Info("generation completed", "site", m.site.DisplayName, "url", sig.URL)
		case ImageCompleted:
			c := m.completion(sig, at)
			c.ImageGenerated = true
			c.NewImages = tr.NewImages
			ev.Completion = c
			m.log.Info("images rendered", "site", m.site.DisplayName, "new_images", tr.NewImages)
		}
		events = append(events, ev)
	}
	return events, nil
}

func (m *Monitor) completion(sig Signals, at time.Time) *protocol.Completion {
	return &protocol.Completion{
		SiteName:  m.site.DisplayName,
		URL:       sig.URL,
		Title:     sig.Title,
		Timestamp: at.UTC(),
	}
}
