package sites

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Registry is an immutable host to Site table.
type Registry struct {
	byHost map[string]Site
}

// New validates the given sites and builds a registry. Duplicate hosts are an error.
func New(list []Site) (*Registry, error) {
	r := &Registry{byHost: make(map[string]Site, len(list))}
	var errs []error
	for _, s := range list {
		if err := s.validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := r.byHost[s.Host]; dup {
			errs = append(errs, fmt.Errorf("duplicate host %q", s.Host))
			continue
		}
		r.byHost[s.Host] = s
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return r, nil
}

// Lookup returns the site registered for host.
func (r *Registry) Lookup(host string) (Site, bool) {
	if r == nil {
		return Site{}, false
	}
	s, ok := r.byHost[strings.ToLower(host)]
	return s, ok
}

// LookupURL resolves a page URL to its site by host name. Ports are ignored.
func (r *Registry) LookupURL(raw string) (Site, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return Site{}, false
	}
	return r.Lookup(u.Hostname())
}

// Sites returns all entries ordered by host.
func (r *Registry) Sites() []Site {
	if r == nil {
		return nil
	}
	out := make([]Site, 0, len(r.byHost))
	for _, s := range r.byHost {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Host < out[j].Host })
	return out
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.byHost)
}

// Merge returns a new registry where overrides replace entries with the same host.
func (r *Registry) Merge(overrides []Site) (*Registry, error) {
	byHost := make(map[string]Site, r.Len()+len(overrides))
	for _, s := range r.Sites() {
		byHost[s.Host] = s
	}
	seen := make(map[string]bool, len(overrides))
	for _, s := range overrides {
		if seen[s.Host] {
			return nil, fmt.Errorf("duplicate host %q in overrides", s.Host)
		}
		seen[s.Host] = true
		byHost[s.Host] = s
	}
	merged := make([]Site, 0, len(byHost))
	for _, s := range byHost {
		merged = append(merged, s)
	}
	return New(merged)
}
