// Package dedupe provides the per-cycle membership set that keeps a package
// identifier from being enqueued twice in the same crawl cycle.
package dedupe

import (
	"strings"
	"sync"
)

// Set is a concurrent, case-insensitive membership set. A fresh Set is
// created for every crawl cycle; the same identifier may legitimately
// reappear in the next cycle.
type Set struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// New returns an empty Set.
func New() *Set {
	return &Set{seen: make(map[string]struct{})}
}

// CheckAndInsert records id and reports whether this is the first time it has
// been seen. The check and the insert are one atomic step, so exactly one of
// any number of concurrent callers with the same identifier gets true.
func (s *Set) CheckAndInsert(id string) bool {
	key := strings.ToLower(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Len reports how many distinct identifiers have been seen this cycle.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
