package pool

import "container/heap"

// heapItem pairs a priority with a backend reference. Ordering is ascending
// by priority — the smallest priority sits at the top of the heap. NaN
// priorities never compare less than anything, matching the source's
// partial_cmp-with-NaN-as-equal fallback.
type heapItem struct {
	priority float64
	backend  *Backend
}

func less(a, b float64) bool {
	if a != a || b != b { // either is NaN
		return false
	}
	return a < b
}

// backendHeap is a container/heap.Interface min-heap of heapItem, ordered by
// ascending priority (low priority first — see §3 Min-priority item).
type backendHeap []heapItem

func (h backendHeap) Len() int            { return len(h) }
func (h backendHeap) Less(i, j int) bool  { return less(h[i].priority, h[j].priority) }
func (h backendHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *backendHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }

func (h *backendHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// newBackendHeap returns an initialized, empty min-heap.
func newBackendHeap() *backendHeap {
	h := &backendHeap{}
	heap.Init(h)
	return h
}

// push inserts a backend with the given priority.
func (h *backendHeap) push(priority float64, b *Backend) {
	heap.Push(h, heapItem{priority: priority, backend: b})
}

// pop removes and returns the backend with the smallest priority. Ok is
// false if the heap is empty.
func (h *backendHeap) pop() (*Backend, bool) {
	if h.Len() == 0 {
		return nil, false
	}
	item := heap.Pop(h).(heapItem)
	return item.backend, true
}

// peek returns the backend with the smallest priority without removing it.
func (h *backendHeap) peek() (*Backend, bool) {
	if h.Len() == 0 {
		return nil, false
	}
	return (*h)[0].backend, true
}
