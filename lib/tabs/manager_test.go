package tabs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onkernel/aibridge/lib/inject"
	"github.com/onkernel/aibridge/lib/monitor"
	"github.com/onkernel/aibridge/lib/sites"
)

type fakePage struct {
	mu       sync.Mutex
	url      string
	signals  monitor.Signals
	presence Presence
	texts    []string
	hasInput bool
	filled   []string
	entered  int
	detached bool

	done     chan struct{}
	doneOnce sync.Once
}

func newFakePage(url string) *fakePage {
	return &fakePage{url: url, hasInput: true, done: make(chan struct{})}
}

func (p *fakePage) set(fn func(p *fakePage)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p)
}

func (p *fakePage) Sample(ctx context.Context, probe monitor.Probe) (monitor.Signals, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.signals
	s.URL = p.url
	s.Title = "Title of " + p.url
	s.DocumentID = "doc"
	return s, nil
}

func (p *fakePage) PageText(ctx context.Context) (string, error) { return "Thought for 5 seconds", nil }

func (p *fakePage) FillInput(ctx context.Context, selector, text string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasInput {
		return false, nil
	}
	p.filled = append(p.filled, text)
	return true, nil
}

func (p *fakePage) SendButtons(ctx context.Context, selector string) ([]inject.Button, error) {
	return nil, nil
}

func (p *fakePage) ClickButton(ctx context.Context, selector string, index int) (bool, error) {
	return false, nil
}

func (p *fakePage) PressEnter(ctx context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entered++
	return true, nil
}

func (p *fakePage) Texts(ctx context.Context, selector string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.texts, nil
}

func (p *fakePage) Presence(ctx context.Context) (Presence, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.presence, nil
}

func (p *fakePage) Done() <-chan struct{} { return p.done }

func (p *fakePage) Detach(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.detached = true
	return nil
}

func (p *fakePage) kill() { p.doneOnce.Do(func() { close(p.done) }) }

type fakeBrowser struct {
	mu       sync.Mutex
	pages    []PageInfo
	attached map[string][]*fakePage
	setup    func(p *fakePage)
}

func newFakeBrowser(pages ...PageInfo) *fakeBrowser {
	return &fakeBrowser{pages: pages, attached: make(map[string][]*fakePage)}
}

func (b *fakeBrowser) Pages(ctx context.Context) ([]PageInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]PageInfo(nil), b.pages...), nil
}

func (b *fakeBrowser) Attach(ctx context.Context, targetID string) (Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, info := range b.pages {
		if info.TargetID != targetID {
			continue
		}
		p := newFakePage(info.URL)
		if b.setup != nil {
			b.setup(p)
		}
		b.attached[targetID] = append(b.attached[targetID], p)
		return p, nil
	}
	return nil, errors.New("no such target")
}

func (b *fakeBrowser) setPages(pages ...PageInfo) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pages = pages
}

func (b *fakeBrowser) page(targetID string, n int) *fakePage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attached[targetID][n]
}

func (b *fakeBrowser) attachCount(targetID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.attached[targetID])
}

func testConfig() Config {
	return Config{
		ScanInterval: 2 * time.Second,
		PollInterval: 500 * time.Millisecond,
		SubmitDelay:  200 * time.Millisecond,
	}
}

func startManager(t *testing.T, b Browser) (*Manager, func()) {
	t.Helper()
	m := NewManager(testConfig(), b, sites.Builtin(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	synctest.Wait()
	return m, func() {
		cancel()
		require.NoError(t, <-done)
	}
}

func TestOnlyRegisteredSitesAreMonitored(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		b := newFakeBrowser(
			PageInfo{TargetID: "T1", URL: "https://claude.ai/chat/1"},
			PageInfo{TargetID: "T2", URL: "https://example.com/"},
			PageInfo{TargetID: "T3", URL: "https://aistudio.google.com/prompts/new"},
		)
		m, stop := startManager(t, b)
		defer stop()

		got := m.Tabs()
		require.Len(t, got, 2)
		assert.Equal(t, TabStatus{ID: 1, Site: "Claude", Host: "claude.ai", URL: "https://claude.ai/chat/1"}, got[0])
		assert.Equal(t, 3, got[1].ID)
		assert.Equal(t, "AI Studio", got[1].Site)
		assert.Zero(t, b.attachCount("T2"))
	})
}

func TestCompletionIsPosted(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		b := newFakeBrowser(PageInfo{TargetID: "T1", URL: "https://claude.ai/chat/1"})
		m, stop := startManager(t, b)
		defer stop()

		p := b.page("T1", 0)
		time.Sleep(time.Second)
		p.set(func(p *fakePage) { p.signals.StopVisible = true })
		time.Sleep(time.Second)
		synctest.Wait()
		assert.True(t, m.Tabs()[0].Generating)

		p.set(func(p *fakePage) { p.signals.StopVisible = false })
		time.Sleep(time.Second)
		synctest.Wait()

		select {
		case env := <-m.Outbound():
			assert.Equal(t, 1, env.TabID)
			assert.Equal(t, TypeAICompleted, env.Message.Type)
			require.NotNil(t, env.Message.Data)
			assert.Equal(t, "Claude", env.Message.Data.SiteName)
			assert.Equal(t, "Title of https://claude.ai/chat/1", env.Message.Data.Title)
			require.NotNil(t, env.Message.Data.ThinkTime)
			assert.Equal(t, 5, *env.Message.Data.ThinkTime)
		default:
			t.Fatal("no completion posted")
		}
		select {
		case env := <-m.Outbound():
			t.Fatalf("unexpected second message %+v", env)
		default:
		}
		assert.False(t, m.Tabs()[0].Generating)
	})
}

func TestSendToTab(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		b := newFakeBrowser(PageInfo{TargetID: "T1", URL: "https://chat.deepseek.com/"})
		b.setup = func(p *fakePage) { p.texts = []string{"old", "  newest answer  "} }
		m, stop := startManager(t, b)
		defer stop()

		start := time.Now()
		resp, err := m.SendToTab(t.Context(), 1, Message{Type: TypeInjectMessage, Message: "hello"})
		require.NoError(t, err)
		assert.True(t, resp.Success)
		assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond, "submit waits for the page to react")

		p := b.page("T1", 0)
		p.mu.Lock()
		assert.Equal(t, []string{"hello"}, p.filled)
		assert.Equal(t, 1, p.entered)
		p.mu.Unlock()

		resp, err = m.SendToTab(t.Context(), 1, Message{Type: TypeGetAIResponse})
		require.NoError(t, err)
		assert.Equal(t, Response{Success: true, Content: "newest answer"}, resp)

		_, err = m.SendToTab(t.Context(), 42, Message{Type: TypeGetAIResponse})
		require.ErrorIs(t, err, ErrNoTab)
	})
}

func TestInjectWithoutInputFails(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		b := newFakeBrowser(PageInfo{TargetID: "T1", URL: "https://claude.ai/"})
		b.setup = func(p *fakePage) { p.hasInput = false }
		m, stop := startManager(t, b)
		defer stop()

		resp, err := m.SendToTab(t.Context(), 1, Message{Type: TypeInjectMessage, Message: "x"})
		require.NoError(t, err)
		assert.False(t, resp.Success)
		assert.Zero(t, b.page("T1", 0).entered)
	})
}

func TestHostChangeRestartsAgent(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		b := newFakeBrowser(PageInfo{TargetID: "T1", URL: "https://claude.ai/chat/1"})
		m, stop := startManager(t, b)
		defer stop()

		// same host navigation keeps the agent
		b.setPages(PageInfo{TargetID: "T1", URL: "https://claude.ai/chat/2"})
		time.Sleep(2 * time.Second)
		synctest.Wait()
		assert.Equal(t, 1, b.attachCount("T1"))
		assert.Equal(t, "https://claude.ai/chat/2", m.Tabs()[0].URL)

		b.setPages(PageInfo{TargetID: "T1", URL: "https://chatgpt.com/"})
		time.Sleep(2 * time.Second)
		synctest.Wait()
		assert.Equal(t, 2, b.attachCount("T1"))
		assert.True(t, b.page("T1", 0).detached)
		got := m.Tabs()
		require.Len(t, got, 1)
		assert.Equal(t, 1, got[0].ID, "tab id is stable for the target")
		assert.Equal(t, "ChatGPT", got[0].Site)

		b.setPages(PageInfo{TargetID: "T1", URL: "https://example.com/"})
		time.Sleep(2 * time.Second)
		synctest.Wait()
		assert.Empty(t, m.Tabs())
	})
}

func TestClosedTabIsForgotten(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		b := newFakeBrowser(
			PageInfo{TargetID: "T1", URL: "https://claude.ai/"},
			PageInfo{TargetID: "T2", URL: "https://claude.ai/"},
		)
		m, stop := startManager(t, b)
		defer stop()
		require.Len(t, m.Tabs(), 2)

		b.setPages(PageInfo{TargetID: "T2", URL: "https://claude.ai/"})
		time.Sleep(2 * time.Second)
		synctest.Wait()

		got := m.Tabs()
		require.Len(t, got, 1)
		assert.Equal(t, 2, got[0].ID)
		assert.True(t, b.page("T1", 0).detached)

		_, err := m.SendToTab(t.Context(), 1, Message{Type: TypeGetAIResponse})
		require.ErrorIs(t, err, ErrNoTab)
	})
}

func TestDeadPageIsReattached(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		b := newFakeBrowser(PageInfo{TargetID: "T1", URL: "https://claude.ai/"})
		m, stop := startManager(t, b)
		defer stop()

		b.page("T1", 0).kill()
		synctest.Wait()
		_, err := m.SendToTab(t.Context(), 1, Message{Type: TypeGetAIResponse})
		require.ErrorIs(t, err, ErrTabClosed)

		time.Sleep(2 * time.Second)
		synctest.Wait()
		assert.Equal(t, 2, b.attachCount("T1"))
		_, err = m.SendToTab(t.Context(), 1, Message{Type: TypeGetAIResponse})
		require.NoError(t, err)
	})
}

func TestActiveTab(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		b := newFakeBrowser(
			PageInfo{TargetID: "T1", URL: "https://claude.ai/"},
			PageInfo{TargetID: "T2", URL: "https://chatgpt.com/"},
			PageInfo{TargetID: "T3", URL: "https://example.com/"},
		)
		m, stop := startManager(t, b)
		defer stop()

		_, err := m.ActiveTab(t.Context())
		require.ErrorIs(t, err, ErrNoActiveTab)

		b.page("T1", 0).set(func(p *fakePage) { p.presence = Presence{Visible: true} })
		b.page("T2", 0).set(func(p *fakePage) { p.presence = Presence{Visible: true} })
		id, err := m.ActiveTab(t.Context())
		require.NoError(t, err)
		assert.Equal(t, 2, id)

		b.page("T1", 0).set(func(p *fakePage) { p.presence = Presence{Visible: true, Focused: true} })
		id, err = m.ActiveTab(t.Context())
		require.NoError(t, err)
		assert.Equal(t, 1, id)
	})
}

func TestOutboundOverflowDrops(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		cfg := testConfig()
		cfg.OutboundBuffer = 1
		b := newFakeBrowser(PageInfo{TargetID: "T1", URL: "https://aistudio.google.com/prompts/1"})
		m := NewManager(cfg, b, sites.Builtin(), slog.New(slog.NewTextHandler(io.Discard, nil)))
		ctx, cancel := context.WithCancel(t.Context())
		done := make(chan error, 1)
		go func() { done <- m.Run(ctx) }()
		synctest.Wait()

		p := b.page("T1", 0)
		for _, n := range []int{1, 2, 3} {
			p.set(func(p *fakePage) { p.signals.ImageCount = n })
			time.Sleep(time.Second)
		}
		synctest.Wait()

		require.Len(t, m.Outbound(), 1)
		env := <-m.Outbound()
		assert.Equal(t, 1, env.Message.Data.NewImages)

		cancel()
		require.NoError(t, <-done)
	})
}
