package lookup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/frahmantamala/fleet-expense/internal/driver"
)

const defaultSearchTimeout = 5 * time.Second

type DriverSearcher interface {
	SearchDrivers(ctx context.Context, query string) ([]driver.Driver, error)
}

type SearchResult struct {
	Query      string          `json:"query"`
	Drivers    []driver.Driver `json:"drivers"`
	Generation uint64          `json:"generation"`
	Error      string          `json:"error,omitempty"`
}

// DriverSearch runs debounced directory queries. Every issued query gets a
// generation number; a response is applied only while its generation is
// still the latest, and issuing a new query cancels the previous one.
type DriverSearch struct {
	searcher  DriverSearcher
	debouncer *Debouncer
	timeout   time.Duration
	logger    *slog.Logger

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	inflight   int
	result     SearchResult
	onResult   func(SearchResult)
}

func NewDriverSearch(searcher DriverSearcher, wait time.Duration, logger *slog.Logger) *DriverSearch {
	s := &DriverSearch{
		searcher: searcher,
		timeout:  defaultSearchTimeout,
		logger:   logger,
		result:   SearchResult{Drivers: []driver.Driver{}},
	}
	s.debouncer = NewDebouncer(wait, s.SearchNow)
	return s
}

// OnResult registers a callback for every applied (non-stale) result.
func (s *DriverSearch) OnResult(fn func(SearchResult)) {
	s.mu.Lock()
	s.onResult = fn
	s.mu.Unlock()
}

// Input records a keystroke; the query fires after the quiet period.
func (s *DriverSearch) Input(query string) {
	s.debouncer.Trigger(query)
}

// SearchNow issues query immediately and blocks until it completes.
func (s *DriverSearch) SearchNow(query string) {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	s.cancel = cancel
	s.inflight++
	s.mu.Unlock()

	drivers, err := s.searcher.SearchDrivers(ctx, query)
	cancel()

	s.apply(gen, query, drivers, err)
}

func (s *DriverSearch) apply(gen uint64, query string, drivers []driver.Driver, err error) {
	s.mu.Lock()
	s.inflight--
	if gen != s.generation {
		s.mu.Unlock()
		s.logger.Debug("discarding stale driver search result",
			"query", query,
			"generation", gen)
		return
	}

	res := SearchResult{Query: query, Drivers: drivers, Generation: gen}
	if res.Drivers == nil {
		res.Drivers = []driver.Driver{}
	}
	if err != nil {
		s.logger.Warn("driver search failed", "query", query, "error", err)
		res.Error = "Unable to search drivers"
	}
	s.result = res
	s.cancel = nil
	cb := s.onResult
	s.mu.Unlock()

	if cb != nil {
		cb(res)
	}
}

func (s *DriverSearch) Result() SearchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Pending is true while a query is scheduled or in flight.
func (s *DriverSearch) Pending() bool {
	s.mu.Lock()
	busy := s.inflight > 0
	s.mu.Unlock()
	return busy || s.debouncer.Pending()
}

// Reset clears results and invalidates in-flight queries.
func (s *DriverSearch) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.result = SearchResult{Drivers: []driver.Driver{}, Generation: s.generation}
}

func (s *DriverSearch) Close() {
	s.debouncer.Stop()
	s.Reset()
}
