package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Registry holds open drafts in memory and evicts idle ones.
type Registry struct {
	mu     sync.RWMutex
	drafts map[string]*Draft
	ttl    time.Duration
	logger *slog.Logger
}

func NewRegistry(ttl time.Duration, logger *slog.Logger) *Registry {
	return &Registry{
		drafts: make(map[string]*Draft),
		ttl:    ttl,
		logger: logger,
	}
}

func (r *Registry) Put(d *Draft) {
	r.mu.Lock()
	r.drafts[d.ID()] = d
	r.mu.Unlock()
}

func (r *Registry) Get(id string) (*Draft, bool) {
	r.mu.RLock()
	d, ok := r.drafts[id]
	r.mu.RUnlock()
	return d, ok
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.drafts, id)
	r.mu.Unlock()
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.drafts)
}

// Sweep cancels and drops drafts idle for longer than the TTL.
func (r *Registry) Sweep(now time.Time) int {
	if r.ttl <= 0 {
		return 0
	}

	r.mu.RLock()
	open := make([]*Draft, 0, len(r.drafts))
	for _, d := range r.drafts {
		open = append(open, d)
	}
	r.mu.RUnlock()

	var expired []*Draft
	for _, d := range open {
		if now.Sub(d.idleSince()) > r.ttl {
			expired = append(expired, d)
		}
	}

	r.mu.Lock()
	for _, d := range expired {
		delete(r.drafts, d.ID())
	}
	r.mu.Unlock()

	for _, d := range expired {
		d.Cancel()
	}
	if len(expired) > 0 {
		r.logger.Info("expired idle expense drafts", "count", len(expired))
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Sweep(now)
		}
	}
}
