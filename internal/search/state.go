package search

import (
	"strings"
	"sync"
	"time"
)

// DefaultDebounce delays scanning until typing pauses.
const DefaultDebounce = 300 * time.Millisecond

// State is the active query, its matches and the selected match.
type State struct {
	index    *Index
	debounce time.Duration

	mu      sync.Mutex
	query   string
	pending string
	seq     uint64
	matches []Match
	active  int
}

// NewState returns search state over index.
func NewState(index *Index, debounce time.Duration) *State {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &State{index: index, debounce: debounce, active: -1}
}

// Debounce returns the configured delay.
func (s *State) Debounce() time.Duration {
	return s.debounce
}

// SetQuery records a query change and returns a ticket. The scan runs when
// Apply is called with the latest ticket after the debounce delay; earlier
// tickets are ignored.
func (s *State) SetQuery(query string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.pending = strings.TrimSpace(query)
	return s.seq
}

// Apply runs the scan for ticket if no newer query arrived. It reports
// whether the scan ran.
func (s *State) Apply(ticket uint64) bool {
	s.mu.Lock()
	if ticket != s.seq {
		s.mu.Unlock()
		return false
	}
	query := s.pending
	s.mu.Unlock()
	s.run(query)
	return true
}

// Flush scans the pending query immediately.
func (s *State) Flush() {
	s.mu.Lock()
	s.seq++
	query := s.pending
	s.mu.Unlock()
	s.run(query)
}

// Refresh re-runs the current query, for example after page text arrives.
func (s *State) Refresh() {
	s.mu.Lock()
	query := s.query
	s.mu.Unlock()
	s.run(query)
}

func (s *State) run(query string) {
	matches := s.index.Matches(query)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = query
	s.matches = matches
	s.active = -1
	if len(matches) > 0 {
		s.active = 0
	}
}

// Clear drops the query and matches.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.query = ""
	s.pending = ""
	s.matches = nil
	s.active = -1
}

// Query returns the applied query.
func (s *State) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// Matches returns a copy of the matches.
func (s *State) Matches() []Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Match(nil), s.matches...)
}

// Count returns the number of matches.
func (s *State) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.matches)
}

// Position returns the 1-based position of the active match, or 0.
func (s *State) Position() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active + 1
}

// Active returns the selected match.
func (s *State) Active() (Match, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active < 0 || s.active >= len(s.matches) {
		return Match{}, false
	}
	return s.matches[s.active], true
}

// Next selects the following match, wrapping to the first.
func (s *State) Next() (Match, bool) {
	return s.step(1)
}

// Prev selects the previous match, wrapping to the last.
func (s *State) Prev() (Match, bool) {
	return s.step(-1)
}

func (s *State) step(delta int) (Match, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.matches)
	if n == 0 {
		return Match{}, false
	}
	s.active = ((s.active+delta)%n + n) % n
	return s.matches[s.active], true
}
