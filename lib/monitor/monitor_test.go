package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onkernel/aibridge/lib/sites"
)

type scriptedPage struct {
	samples []Signals
	text    string
	textErr error
	probes  []Probe
}

func (p *scriptedPage) Sample(ctx context.Context, probe Probe) (Signals, error) {
	p.probes = append(p.probes, probe)
	if len(p.samples) == 0 {
		return Signals{}, errors.New("no more samples")
	}
	s := p.samples[0]
	p.samples = p.samples[1:]
	return s, nil
}

func (p *scriptedPage) PageText(ctx context.Context) (string, error) {
	return p.text, p.textErr
}

func newTestMonitor(t *testing.T, host string, page Page) *Monitor {
	t.Helper()
	site, ok := sites.Builtin().Lookup(host)
	require.True(t, ok)
	m := New(site, page, slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.now = func() time.Time { return time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC) }
	return m
}

func tickAll(t *testing.T, m *Monitor, n int) []Event {
	t.Helper()
	var out []Event
	for i := 0; i < n; i++ {
		evs, err := m.Tick(context.Background())
		require.NoError(t, err)
		out = append(out, evs...)
	}
	return out
}

func TestMonitorCompletionCarriesAnnotations(t *testing.T) {
	t.Parallel()

	doc := "doc-1"
	page := &scriptedPage{
		samples: []Signals{
			{URL: "https://aistudio.google.com/prompts/1", Title: "Run", DocumentID: doc},
			{URL: "https://aistudio.google.com/prompts/1", Title: "Run", DocumentID: doc, RunningText: true},
			{URL: "https://aistudio.google.com/prompts/1", Title: "Run", DocumentID: doc, LoadingVisible: true},
			{URL: "https://aistudio.google.com/prompts/1", Title: "Done", DocumentID: doc},
		},
		text: "Thought for 3 seconds\nRan for 12s",
	}
	m := newTestMonitor(t, "aistudio.google.com", page)

	events := tickAll(t, m, 4)
	require.Len(t, events, 2)
	assert.Equal(t, Started, events[0].Kind)
	assert.Nil(t, events[0].Completion)

	assert.Equal(t, Completed, events[1].Kind)
	c := events[1].Completion
	require.NotNil(t, c)
	assert.Equal(t, "AI Studio", c.SiteName)
	assert.Equal(t, "Done", c.Title)
	assert.Equal(t, "https://aistudio.google.com/prompts/1", c.URL)
	require.NotNil(t, c.RunTime)
	assert.Equal(t, 12, *c.RunTime)
	require.NotNil(t, c.ThinkTime)
	assert.Equal(t, 3, *c.ThinkTime)

	assert.Equal(t, RunningWords, page.probes[0].RunningWords)
}

func TestMonitorImageEvents(t *testing.T) {
	t.Parallel()

	var samples []Signals
	for _, n := range []int{0, 0, 2, 2, 5} {
		samples = append(samples, Signals{URL: "https://aistudio.google.com/prompts/1", Title: "Images", DocumentID: "d", ImageCount: n})
	}
	page := &scriptedPage{samples: samples}
	m := newTestMonitor(t, "aistudio.google.com", page)

	events := tickAll(t, m, 5)
	require.Len(t, events, 2)
	for i, want := range []int{2, 3} {
		assert.Equal(t, ImageCompleted, events[i].Kind)
		require.NotNil(t, events[i].Completion)
		assert.True(t, events[i].Completion.ImageGenerated)
		assert.Equal(t, want, events[i].Completion.NewImages)
		assert.Equal(t, "AI Studio", events[i].Completion.SiteName)
	}
	assert.Equal(t, ImageSelector, page.probes[0].ImageSelector)
}

func TestMonitorChatSiteIgnoresImages(t *testing.T) {
	t.Parallel()

	// a screenshot pasted into the composer shows up as a blob: preview
	page := &scriptedPage{samples: []Signals{
		{URL: "https://claude.ai/chat/1", DocumentID: "d"},
		{URL: "https://claude.ai/chat/1", DocumentID: "d", ImageCount: 1},
		{URL: "https://claude.ai/chat/1", DocumentID: "d", ImageCount: 3},
	}}
	m := newTestMonitor(t, "claude.ai", page)

	assert.Empty(t, tickAll(t, m, 3))
	assert.Empty(t, page.probes[0].ImageSelector)
}

func TestMonitorChatImageTurnCompletesOnce(t *testing.T) {
	t.Parallel()

	page := &scriptedPage{samples: []Signals{
		{DocumentID: "d"},
		{DocumentID: "d", StopVisible: true},
		{DocumentID: "d", ImageCount: 2},
		{DocumentID: "d", ImageCount: 2},
	}}
	m := newTestMonitor(t, "chatgpt.com", page)

	events := tickAll(t, m, 4)
	require.Len(t, events, 2)
	assert.Equal(t, Started, events[0].Kind)
	assert.Equal(t, Completed, events[1].Kind)
	assert.False(t, events[1].Completion.ImageGenerated)
}

func TestMonitorResetsOnReload(t *testing.T) {
	t.Parallel()

	page := &scriptedPage{samples: []Signals{
		{DocumentID: "a", StopVisible: true},
		// reload while generating: the fresh document starts idle, no completion fires
		{DocumentID: "b", ImageCount: 6},
		{DocumentID: "b", ImageCount: 6},
	}}
	m := newTestMonitor(t, "claude.ai", page)

	events := tickAll(t, m, 3)
	require.Len(t, events, 1)
	assert.Equal(t, Started, events[0].Kind)
	assert.Equal(t, Idle, m.State())
}

func TestMonitorPageTextFailureStillCompletes(t *testing.T) {
	t.Parallel()

	page := &scriptedPage{
		samples: []Signals{{DocumentID: "a", StopVisible: true}, {DocumentID: "a"}},
		textErr: errors.New("detached"),
	}
	m := newTestMonitor(t, "claude.ai", page)

	events := tickAll(t, m, 2)
	require.Len(t, events, 2)
	require.NotNil(t, events[1].Completion)
	assert.Nil(t, events[1].Completion.RunTime)
}

func TestMonitorSampleError(t *testing.T) {
	t.Parallel()
	m := newTestMonitor(t, "claude.ai", &scriptedPage{})
	_, err := m.Tick(context.Background())
	require.Error(t, err)
}
