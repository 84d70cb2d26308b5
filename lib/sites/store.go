package sites

import "sync/atomic"

// Store holds the current registry. Reloads swap the whole table so readers
// never observe a partially updated one.
type Store struct {
	cur atomic.Pointer[Registry]
}

func NewStore(r *Registry) *Store {
	s := &Store{}
	s.cur.Store(r)
	return s
}

func (s *Store) Current() *Registry { return s.cur.Load() }

func (s *Store) Set(r *Registry) { s.cur.Store(r) }

func (s *Store) LookupURL(raw string) (Site, bool) {
	return s.Current().LookupURL(raw)
}
