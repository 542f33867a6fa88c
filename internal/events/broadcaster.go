package events

import (
	"sync"
	"sync/atomic"
)

// subscriberBuffer is how many events a slow subscriber may lag behind before
// events are dropped for it.
const subscriberBuffer = 64

// Subscription is one live consumer, such as a WebSocket preview client.
// Events are delivered on C until Unsubscribe or CloseAllSubscribers.
type Subscription struct {
	C <-chan Event

	ch      chan Event
	filter  Filter
	dropped atomic.Uint64
}

// Dropped returns how many matching events were lost because C was full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

type broadcasterState struct {
	mu          sync.RWMutex
	subscribers map[*Subscription]struct{}
	dropped     atomic.Uint64
}

var broadcaster = &broadcasterState{
	subscribers: make(map[*Subscription]struct{}),
}

// Subscribe registers a consumer for events matching f.
func Subscribe(f Filter) *Subscription {
	ch := make(chan Event, subscriberBuffer)
	sub := &Subscription{C: ch, ch: ch, filter: f}

	broadcaster.mu.Lock()
	broadcaster.subscribers[sub] = struct{}{}
	broadcaster.mu.Unlock()
	return sub
}

// Unsubscribe removes sub and closes its channel. Unsubscribing twice is a no-op.
func Unsubscribe(sub *Subscription) {
	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()
	if _, ok := broadcaster.subscribers[sub]; !ok {
		return
	}
	delete(broadcaster.subscribers, sub)
	close(sub.ch)
}

// broadcast never blocks Emit: a full subscriber loses the event.
func broadcast(e Event) {
	broadcaster.mu.RLock()
	defer broadcaster.mu.RUnlock()

	for sub := range broadcaster.subscribers {
		if !sub.filter.Match(e) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			sub.dropped.Add(1)
			broadcaster.dropped.Add(1)
		}
	}
}

// CloseAllSubscribers removes and closes every subscriber. Used on shutdown.
func CloseAllSubscribers() {
	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()
	for sub := range broadcaster.subscribers {
		delete(broadcaster.subscribers, sub)
		close(sub.ch)
	}
}

// SubscriberCount returns the current number of subscribers.
func SubscriberCount() int {
	broadcaster.mu.RLock()
	defer broadcaster.mu.RUnlock()
	return len(broadcaster.subscribers)
}

// DroppedCount returns how many events were dropped across all subscribers.
func DroppedCount() uint64 {
	return broadcaster.dropped.Load()
}

// RecentEvents returns the last n buffered events matching f, oldest first.
// n <= 0 returns every match.
func RecentEvents(n int, f Filter) []Event {
	return buffer.Last(n, f)
}
