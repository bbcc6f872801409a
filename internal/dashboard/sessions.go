package dashboard

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"animedash/internal/filter"
	"animedash/internal/metrics"
)

// StateSource supplies the current load state; *Service implements it.
type StateSource interface {
	State() LoadState
}

// Sessions keeps one ViewState per browser session. The least recently
// used session is evicted once max is reached.
type Sessions struct {
	src StateSource

	// mu makes each read-derive-store step atomic, so a stale re-derive in
	// Current cannot overwrite a filter applied in between.
	mu    sync.Mutex
	views *lru.Cache[string, ViewState]
}

func NewSessions(src StateSource, max int) (*Sessions, error) {
	views, err := lru.New[string, ViewState](max)
	if err != nil {
		return nil, fmt.Errorf("session table: %w", err)
	}
	return &Sessions{src: src, views: views}, nil
}

// Current returns the session's view, re-deriving it with the same active
// filter when the dataset moved on since it was built.
func (s *Sessions) Current(id string) ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()

	ls := s.src.State()
	vs, ok := s.views.Get(id)
	if ok && !vs.stale(ls) {
		return vs
	}
	var active filter.Criterion
	if ok {
		active = vs.Active
	}
	vs = Derive(ls, active)
	s.views.Add(id, vs)
	return vs
}

// Apply replaces the session's active filter.
func (s *Sessions) Apply(id string, c filter.Criterion) ViewState {
	kind := string(c.Kind)
	if kind == "" {
		kind = "clear"
	}
	metrics.FiltersApplied.WithLabelValues(kind).Inc()

	s.mu.Lock()
	defer s.mu.Unlock()
	vs := Derive(s.src.State(), c)
	s.views.Add(id, vs)
	return vs
}

// Clear restores the identity view.
func (s *Sessions) Clear(id string) ViewState {
	return s.Apply(id, filter.Criterion{})
}

func (s *Sessions) Len() int {
	return s.views.Len()
}
