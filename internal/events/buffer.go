package events

import "sync"

// RingBuffer keeps the most recent events in emission order.
type RingBuffer struct {
	mu     sync.RWMutex
	events []Event
	next   int
	count  int
	total  uint64
}

func NewRingBuffer(size int) *RingBuffer {
	if size < 1 {
		size = 1
	}
	return &RingBuffer{events: make([]Event, size)}
}

// Add stores e, overwriting the oldest event once the buffer is full.
func (rb *RingBuffer) Add(e Event) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.events[rb.next] = e
	rb.next = (rb.next + 1) % len(rb.events)
	if rb.count < len(rb.events) {
		rb.count++
	}
	rb.total++
}

// at returns the i-th oldest buffered event. Callers hold mu.
func (rb *RingBuffer) at(i int) Event {
	start := rb.next - rb.count
	if start < 0 {
		start += len(rb.events)
	}
	return rb.events[(start+i)%len(rb.events)]
}

// Snapshot returns every buffered event, oldest first.
func (rb *RingBuffer) Snapshot() []Event {
	return rb.Last(0, Filter{})
}

// Last returns up to n of the newest events matching f, oldest first.
// n <= 0 means no limit.
func (rb *RingBuffer) Last(n int, f Filter) []Event {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var picked []Event
	for i := rb.count - 1; i >= 0; i-- {
		if n > 0 && len(picked) == n {
			break
		}
		if e := rb.at(i); f.Match(e) {
			picked = append(picked, e)
		}
	}

	out := make([]Event, len(picked))
	for i, e := range picked {
		out[len(picked)-1-i] = e
	}
	return out
}

// Total returns how many events were ever added, including overwritten ones.
func (rb *RingBuffer) Total() uint64 {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.total
}

// Clear drops all buffered events. The total count is kept.
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	clear(rb.events)
	rb.next = 0
	rb.count = 0
}
