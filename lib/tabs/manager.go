package tabs

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/onkernel/aibridge/lib/extract"
	"github.com/onkernel/aibridge/lib/inject"
	"github.com/onkernel/aibridge/lib/monitor"
	"github.com/onkernel/aibridge/lib/sites"
)

// SiteLookup resolves a page URL to its site. *sites.Store and
// *sites.Registry implement it.
type SiteLookup interface {
	LookupURL(raw string) (sites.Site, bool)
}

type Config struct {
	ScanInterval time.Duration
	PollInterval time.Duration
	SubmitDelay  time.Duration
	// OutboundBuffer bounds queued AI_COMPLETED messages.
	OutboundBuffer int
}

// Manager tracks the browser's page targets and keeps an agent running for
// each one that belongs to a registered site.
type Manager struct {
	cfg     Config
	browser Browser
	sites   SiteLookup
	log     *slog.Logger
	out     chan Envelope

	mu     sync.Mutex
	nextID int
	ids    map[string]int
	agents map[int]*agent
}

func NewManager(cfg Config, browser Browser, lookup SiteLookup, log *slog.Logger) *Manager {
	if cfg.OutboundBuffer <= 0 {
		cfg.OutboundBuffer = 64
	}
	return &Manager{
		cfg:     cfg,
		browser: browser,
		sites:   lookup,
		log:     log.With("component", "tabs"),
		out:     make(chan Envelope, cfg.OutboundBuffer),
		ids:     make(map[string]int),
		agents:  make(map[int]*agent),
	}
}

// Outbound carries messages posted by tab agents.
func (m *Manager) Outbound() <-chan Envelope { return m.out }

// Run scans the browser until ctx is done, then stops every agent.
func (m *Manager) Run(ctx context.Context) error {
	defer m.stopAll()

	m.scan(ctx)
	t := time.NewTicker(m.cfg.ScanInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			m.scan(ctx)
		}
	}
}

func (m *Manager) scan(ctx context.Context) {
	pages, err := m.browser.Pages(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.log.Warn("list browser pages", "err", err)
		}
		return
	}

	seen := make(map[string]bool, len(pages))
	for _, p := range pages {
		seen[p.TargetID] = true
		m.reconcile(ctx, p)
	}

	m.mu.Lock()
	var gone []*agent
	for targetID, id := range m.ids {
		if seen[targetID] {
			continue
		}
		if a := m.agents[id]; a != nil {
			gone = append(gone, a)
			delete(m.agents, id)
		}
		delete(m.ids, targetID)
	}
	m.mu.Unlock()

	for _, a := range gone {
		m.stop(a, "tab closed")
	}
}

func (m *Manager) reconcile(ctx context.Context, p PageInfo) {
	site, ok := m.sites.LookupURL(p.URL)

	m.mu.Lock()
	id, known := m.ids[p.TargetID]
	if !known {
		m.nextID++
		id = m.nextID
		m.ids[p.TargetID] = id
	}
	a := m.agents[id]
	var stale *agent
	if a != nil {
		switch {
		case a.exited():
			stale = a
		case !ok || site != a.site:
			stale = a
		default:
			a.url = p.URL
			m.mu.Unlock()
			return
		}
		delete(m.agents, id)
	}
	m.mu.Unlock()

	if stale != nil {
		m.stop(stale, "page changed")
	}
	if !ok {
		return
	}

	page, err := m.browser.Attach(ctx, p.TargetID)
	if err != nil {
		m.log.Warn("attach to tab", "err", err, "tab", id, "url", p.URL)
		return
	}
	m.start(ctx, id, p, site, page)
}

func (m *Manager) start(ctx context.Context, id int, p PageInfo, site sites.Site, page Page) {
	log := m.log.With("tab", id, "site", site.DisplayName)
	actx, cancel := context.WithCancel(ctx)
	a := &agent{
		id:        id,
		targetID:  p.TargetID,
		site:      site,
		page:      page,
		log:       log,
		monitor:   monitor.New(site, page, log),
		injector:  inject.New(site, page, log, inject.WithSubmitDelay(m.cfg.SubmitDelay)),
		extractor: extract.New(site, page),
		out:       m.out,
		requests:  make(chan request),
		cancel:    cancel,
		done:      make(chan struct{}),
		url:       p.URL,
	}

	m.mu.Lock()
	m.agents[id] = a
	m.mu.Unlock()

	go a.run(actx, m.cfg.PollInterval)
}

func (m *Manager) stop(a *agent, reason string) {
	a.cancel()
	<-a.done
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.page.Detach(ctx); err != nil {
		a.log.Debug("detach tab", "err", err)
	}
	a.log.Info("stopped monitoring tab", "reason", reason)
}

func (m *Manager) stopAll() {
	m.mu.Lock()
	agents := lo.Values(m.agents)
	m.agents = make(map[int]*agent)
	m.mu.Unlock()
	for _, a := range agents {
		m.stop(a, "shutting down")
	}
}

func (a *agent) exited() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

func (m *Manager) agent(tabID int) *agent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.agents[tabID]
}

// SendToTab delivers msg to a tab agent and waits for its response.
func (m *Manager) SendToTab(ctx context.Context, tabID int, msg Message) (Response, error) {
	a := m.agent(tabID)
	if a == nil {
		return Response{}, ErrNoTab
	}
	reply := make(chan Response, 1)
	select {
	case a.requests <- request{ctx: ctx, msg: msg, reply: reply}:
	case <-a.done:
		return Response{}, ErrTabClosed
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
	select {
	case r := <-reply:
		return r, nil
	case <-a.done:
		return Response{}, ErrTabClosed
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

// ActiveTab returns the focused monitored tab, or failing that the most
// recently opened visible one.
func (m *Manager) ActiveTab(ctx context.Context) (int, error) {
	m.mu.Lock()
	agents := lo.Values(m.agents)
	m.mu.Unlock()
	sort.Slice(agents, func(i, j int) bool { return agents[i].id < agents[j].id })

	var visible []int
	for _, a := range agents {
		p, err := a.page.Presence(ctx)
		if err != nil {
			a.log.Debug("presence check failed", "err", err)
			continue
		}
		if p.Focused {
			return a.id, nil
		}
		if p.Visible {
			visible = append(visible, a.id)
		}
	}
	if len(visible) == 0 {
		return 0, ErrNoActiveTab
	}
	return lo.Max(visible), nil
}

// Tabs returns the monitored tabs ordered by id.
func (m *Manager) Tabs() []TabStatus {
	m.mu.Lock()
	out := lo.MapToSlice(m.agents, func(id int, a *agent) TabStatus {
		return TabStatus{
			ID:         id,
			Site:       a.site.DisplayName,
			Host:       a.site.Host,
			URL:        a.url,
			Generating: a.generating.Load(),
		}
	})
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
