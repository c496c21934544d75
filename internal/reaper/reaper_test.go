package reaper

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeStore struct {
	mu     sync.Mutex
	name   string
	sweeps int
	drop   int
}

func (f *fakeStore) Name() string { return f.name }

func (f *fakeStore) RemoveExpired(now time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	return f.drop
}

func (f *fakeStore) sweepCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sweeps
}

func TestService_RunOnceSweepsAllStores(t *testing.T) {
	a := &fakeStore{name: "a", drop: 2}
	b := &fakeStore{name: "b"}
	svc := NewService(time.Hour, a, b)

	svc.RunOnce(context.Background())

	if a.sweepCount() != 1 || b.sweepCount() != 1 {
		t.Fatalf("expected one sweep per store, got %d and %d", a.sweepCount(), b.sweepCount())
	}
}

func TestService_StartAndStop(t *testing.T) {
	store := &fakeStore{name: "s"}
	svc := NewService(5*time.Millisecond, store)

	svc.Start()
	svc.Start() // second start is a no-op

	deadline := time.After(time.Second)
	for store.sweepCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("expected at least one sweep before deadline")
		case <-time.After(time.Millisecond):
		}
	}

	svc.Stop()
	svc.Stop() // second stop is a no-op

	after := store.sweepCount()
	time.Sleep(20 * time.Millisecond)
	if got := store.sweepCount(); got != after {
		t.Fatalf("expected no sweeps after stop, got %d more", got-after)
	}
}
