// Package reaper runs the periodic eviction pass over the coordination
// stores so abandoned requests and stale results cannot grow without bound.
package reaper

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultInterval = time.Minute

// Store is any collection that can evict expired entries.
type Store interface {
	Name() string
	RemoveExpired(now time.Time) int
}

// Service periodically sweeps a set of stores.
type Service struct {
	interval time.Duration
	stores   []Store
	now      func() time.Time

	mu      sync.Mutex
	stopCh  chan struct{}
	stopped chan struct{}
	running bool
}

// NewService creates a reaper over the given stores.
func NewService(interval time.Duration, stores ...Store) *Service {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		interval: interval,
		stores:   stores,
		now:      time.Now,
	}
}

// Start launches the sweep loop. Starting a running service is a no-op.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.stopCh = make(chan struct{})
	s.stopped = make(chan struct{})
	s.running = true

	go s.loop(s.stopCh, s.stopped)
	slog.Info("reaper started", "interval", s.interval.String(), "stores", len(s.stores))
}

// Stop halts the sweep loop and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	stopCh := s.stopCh
	stopped := s.stopped
	s.running = false
	s.stopCh = nil
	s.stopped = nil
	s.mu.Unlock()

	close(stopCh)
	<-stopped
	slog.Info("reaper stopped")
}

func (s *Service) loop(stopCh <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.RunOnce(context.Background())
		}
	}
}

// RunOnce performs a single sweep over every store.
func (s *Service) RunOnce(_ context.Context) {
	now := s.now()
	for _, store := range s.stores {
		if removed := store.RemoveExpired(now); removed > 0 {
			slog.Debug("reaped expired entries", "store", store.Name(), "removed", removed)
		}
	}
}
