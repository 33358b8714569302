package chatsync_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/bazchat-go/internal/chatsync"

	"go.uber.org/zap"
)

func TestCronScheduler_EveryAndStop(t *testing.T) {
	s := chatsync.NewCronScheduler(zap.NewNop())
	defer s.Close()

	var ticks atomic.Int32
	sub := s.Every(20*time.Millisecond, func() { ticks.Add(1) })

	deadline := time.Now().Add(2 * time.Second)
	for ticks.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if ticks.Load() < 3 {
		t.Fatalf("expected at least 3 ticks, got %d", ticks.Load())
	}

	sub.Stop()
	sub.Stop()
	time.Sleep(50 * time.Millisecond)
	stopped := ticks.Load()
	time.Sleep(100 * time.Millisecond)
	if ticks.Load() != stopped {
		t.Errorf("ticks continued after Stop: %d -> %d", stopped, ticks.Load())
	}
}

// manualScheduler runs jobs only when Tick is called.
type manualScheduler struct {
	mu   sync.Mutex
	jobs map[int]func()
	next int
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{jobs: map[int]func(){}}
}

func (m *manualScheduler) Every(_ time.Duration, fn func()) chatsync.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	id := m.next
	m.jobs[id] = fn
	return manualSub{m: m, id: id}
}

func (m *manualScheduler) Tick() {
	m.mu.Lock()
	jobs := make([]func(), 0, len(m.jobs))
	for _, fn := range m.jobs {
		jobs = append(jobs, fn)
	}
	m.mu.Unlock()
	for _, fn := range jobs {
		fn()
	}
}

func (m *manualScheduler) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

type manualSub struct {
	m  *manualScheduler
	id int
}

func (s manualSub) Stop() {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	delete(s.m.jobs, s.id)
}
