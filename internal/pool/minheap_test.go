package pool

import (
	"math"
	"testing"
)

func TestBackendHeapOrdersByPriority(t *testing.T) {
	h := newBackendHeap()
	a := NewBackend("http://a/")
	b := NewBackend("http://b/")
	c := NewBackend("http://c/")

	h.push(50, a)
	h.push(10, b)
	h.push(100, c)

	top, ok := h.peek()
	if !ok || top != b {
		t.Fatalf("expected b (priority 10) at top, got %+v", top)
	}

	first, _ := h.pop()
	second, _ := h.pop()
	third, _ := h.pop()
	if first != b || second != a || third != c {
		t.Fatalf("unexpected pop order: %v %v %v", first.Address(), second.Address(), third.Address())
	}

	if _, ok := h.pop(); ok {
		t.Fatal("expected empty heap to report ok=false")
	}
}

func TestBackendHeapNaNPriorityNeverLess(t *testing.T) {
	nan := math.NaN()

	if less(nan, 1) || less(1, nan) {
		t.Fatal("NaN priorities must never compare less than anything")
	}
}
