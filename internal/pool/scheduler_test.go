package pool

import (
	"sync/atomic"
	"testing"
	"time"
)

type countingPolicy struct {
	calls int32
}

func (c *countingPolicy) SendRequest() (string, error) { return "", nil }
func (c *countingPolicy) RefreshHealth()               { atomic.AddInt32(&c.calls, 1) }
func (c *countingPolicy) Snapshot() []BackendSnapshot  { return nil }

func TestSchedulerFirstTickAfterInterval(t *testing.T) {
	p := &countingPolicy{}
	s := NewScheduler(p, 30*time.Millisecond)
	s.Start()
	defer s.Stop()

	time.Sleep(10 * time.Millisecond)
	if atomic.LoadInt32(&p.calls) != 0 {
		t.Fatal("expected no refresh before the first interval elapses")
	}

	time.Sleep(40 * time.Millisecond)
	if atomic.LoadInt32(&p.calls) < 1 {
		t.Fatal("expected at least one refresh after the interval elapsed")
	}
}

func TestSchedulerStopEndsTicks(t *testing.T) {
	p := &countingPolicy{}
	s := NewScheduler(p, 10*time.Millisecond)
	s.Start()
	time.Sleep(35 * time.Millisecond)
	s.Stop()

	seen := atomic.LoadInt32(&p.calls)
	time.Sleep(35 * time.Millisecond)
	if atomic.LoadInt32(&p.calls) != seen {
		t.Fatal("expected no further refreshes after Stop")
	}
}
