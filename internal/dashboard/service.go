// Package dashboard runs the fetch, validate, aggregate, store pipeline and
// owns the state the presentation layer reads.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"animedash/internal/jikan"
	"animedash/internal/metrics"
	"animedash/internal/stats"
	"animedash/pkg/models"
)

var (
	ErrInvalidIdentifier = errors.New("invalid anime identifier")
	ErrNoSelection       = errors.New("nothing to pick from: ranking not loaded")
	ErrLoadInProgress    = errors.New("ranking load already in progress")
)

// Source is the ranking API as the pipeline sees it.
type Source interface {
	Top(ctx context.Context) ([]jikan.RawAnime, error)
	Anime(ctx context.Context, id int) (*models.Detail, error)
}

type Service struct {
	src           Source
	logger        *zap.Logger
	detailTimeout time.Duration
	now           func() time.Time

	state atomic.Pointer[LoadState]

	loadMu   sync.Mutex
	revision int64

	obsMu     sync.Mutex
	observers []func(LoadState)
}

type Option func(*Service)

func WithDetailTimeout(d time.Duration) Option {
	return func(s *Service) { s.detailTimeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(src Source, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		src:           src,
		logger:        logger,
		detailTimeout: 10 * time.Second,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.state.Store(&LoadState{Status: StatusLoading, Since: s.now().UTC()})
	return s
}

// State returns the current load state.
func (s *Service) State() LoadState {
	return *s.state.Load()
}

// OnChange registers fn to be called after every state transition, in the
// goroutine that made it.
func (s *Service) OnChange(fn func(LoadState)) {
	s.obsMu.Lock()
	s.observers = append(s.observers, fn)
	s.obsMu.Unlock()
}

func (s *Service) publish(ls LoadState) {
	s.state.Store(&ls)

	s.obsMu.Lock()
	observers := append([]func(LoadState){}, s.observers...)
	s.obsMu.Unlock()
	for _, fn := range observers {
		fn(ls)
	}
}

// Load runs the pipeline once. On failure the previous dataset, if any,
// stays available and the state records the reason. Only one load runs at
// a time; a concurrent call returns ErrLoadInProgress.
func (s *Service) Load(ctx context.Context) error {
	if !s.loadMu.TryLock() {
		return ErrLoadInProgress
	}
	defer s.loadMu.Unlock()

	prev := s.State().Dataset
	s.publish(LoadState{Status: StatusLoading, Since: s.now().UTC(), Dataset: prev})

	start := s.now()
	raw, err := s.src.Top(ctx)
	if err != nil {
		metrics.DatasetLoads.WithLabelValues(metrics.OutcomeError).Inc()
		s.logger.Error("ranking load failed", zap.Error(err))
		s.publish(LoadState{
			Status:  StatusFailed,
			Reason:  "unable to load the ranking: " + err.Error(),
			Since:   s.now().UTC(),
			Dataset: prev,
		})
		return fmt.Errorf("load ranking: %w", err)
	}

	records, dropped := jikan.Normalize(raw)
	snapshot := stats.Compute(records)

	s.revision++
	ds := &Dataset{
		Revision: s.revision,
		LoadedAt: s.now().UTC(),
		Records:  records,
		Stats:    snapshot,
		Dropped:  dropped,
	}

	metrics.DatasetLoads.WithLabelValues(metrics.OutcomeOK).Inc()
	metrics.DatasetRecords.Set(float64(len(records)))
	s.logger.Info("ranking loaded",
		zap.Int64("revision", ds.Revision),
		zap.Int("records", len(records)),
		zap.Int("dropped", dropped),
		zap.Duration("took", s.now().Sub(start)))

	s.publish(LoadState{Status: StatusReady, Since: ds.LoadedAt, Dataset: ds})
	return nil
}

// Refresh runs Load in the background, bounded by timeout. It is the
// reload affordance offered after a failure and the scheduler's job.
func (s *Service) Refresh(timeout time.Duration) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		// failures are logged and published by Load itself
		if err := s.Load(ctx); errors.Is(err, ErrLoadInProgress) {
			s.logger.Debug("refresh skipped", zap.Error(err))
		}
	}()
}

// Detail looks an entry up at the ranking API. It never consults the loaded
// list. Non-positive ids are rejected without a request.
func (s *Service) Detail(ctx context.Context, id int) (*models.Detail, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidIdentifier, id)
	}

	ctx, cancel := context.WithTimeout(ctx, s.detailTimeout)
	defer cancel()

	d, err := s.src.Anime(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("detail %d: %w", id, err)
	}
	return d, nil
}

// RandomPick returns the id of a uniformly chosen record. ok is false when
// records is empty. intn must return a value in [0, n).
func RandomPick(records []models.Record, intn func(n int) int) (id int, ok bool) {
	if len(records) == 0 {
		return 0, false
	}
	return records[intn(len(records))].ID, true
}

// Random picks an entry of the current dataset and looks up its detail.
func (s *Service) Random(ctx context.Context, intn func(n int) int) (*models.Detail, error) {
	id, ok := RandomPick(s.State().Records(), intn)
	if !ok {
		return nil, ErrNoSelection
	}
	return s.Detail(ctx, id)
}

// PickID picks the id of a random entry without looking it up.
func (s *Service) PickID(intn func(n int) int) (int, bool) {
	return RandomPick(s.State().Records(), intn)
}
