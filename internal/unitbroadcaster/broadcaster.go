package unitbroadcaster

import (
	deadlock "github.com/sasha-s/go-deadlock"
)

// DefaultQueueDepth bounds each subscriber's private event queue. When full,
// the oldest droppable event is discarded to make room — §4.1/§9 require
// RescanStart/RescanFinish bracketing to survive overflow, so those two
// kinds are never the ones dropped; see subscriber.enqueue.
const DefaultQueueDepth = 64

// Handler receives events delivered to one subscriber, on that subscriber's
// own dedicated goroutine. A slow handler only ever delays its own queue.
type Handler func(Event)

// isBracket reports whether e is one of the two events a rescan is
// bracketed by, which enqueue protects from drop-oldest eviction.
func isBracket(e Event) bool {
	return e.Kind == EventRescanStart || e.Kind == EventRescanFinish
}

// subscriber is a bounded FIFO of pending events plus a single-slot wake
// channel, rather than a plain buffered channel: a channel only lets
// enqueue evict its head, but protecting RescanStart/RescanFinish means
// enqueue must be able to evict whichever queued event isn't a bracket,
// wherever it sits in the queue.
type subscriber struct {
	mu    deadlock.Mutex
	queue []Event
	depth int
	wake  chan struct{}
}

func newSubscriber(depth int) *subscriber {
	return &subscriber{depth: depth, wake: make(chan struct{}, 1)}
}

// enqueue never blocks. If the queue is full it drops the oldest
// non-bracket event to make room; RescanStart/RescanFinish are never
// dropped. If every queued event is a bracket, the queue grows by one
// instead of evicting anything.
func (s *subscriber) enqueue(e Event) {
	s.mu.Lock()
	if len(s.queue) >= s.depth {
		for i, qe := range s.queue {
			if !isBracket(qe) {
				s.queue = append(s.queue[:i], s.queue[i+1:]...)
				break
			}
		}
	}
	s.queue = append(s.queue, e)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// pop removes and returns the oldest queued event, if any.
func (s *subscriber) pop() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return Event{}, false
	}
	e := s.queue[0]
	s.queue = s.queue[1:]
	return e, true
}

// state is the shared, reference-counted core a Broadcaster points at; this
// is what makes Broadcaster "cheaply clonable: cloning shares the subscriber
// list" per §4.1.
type state struct {
	mu          deadlock.Mutex
	subscribers []*subscriber
}

// Broadcaster is an in-process multicast of Event values. Broadcast only
// enqueues; each subscriber's handler runs on its own goroutine.
type Broadcaster struct {
	s *state
}

// New creates a fresh, empty Broadcaster.
func New() Broadcaster {
	return Broadcaster{s: &state{}}
}

// Clone returns a Broadcaster sharing the same subscriber list as b.
func (b Broadcaster) Clone() Broadcaster { return b }

// Subscribe registers handler to receive every future broadcast event, on
// its own goroutine, through a bounded drop-oldest queue. Returns a function
// that unsubscribes and stops that goroutine.
func (b Broadcaster) Subscribe(handler Handler) (unsubscribe func()) {
	sub := newSubscriber(DefaultQueueDepth)

	b.s.mu.Lock()
	b.s.subscribers = append(b.s.subscribers, sub)
	b.s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for {
			for {
				e, ok := sub.pop()
				if !ok {
					break
				}
				handler(e)
			}
			select {
			case <-sub.wake:
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		b.s.mu.Lock()
		defer b.s.mu.Unlock()
		for i, s := range b.s.subscribers {
			if s == sub {
				b.s.subscribers = append(b.s.subscribers[:i], b.s.subscribers[i+1:]...)
				break
			}
		}
	}
}

// Broadcast delivers e to every current subscriber. Subscribers receive
// events in the order Broadcast is called; a full subscriber queue drops its
// own oldest non-bracket entry rather than blocking this call or other
// subscribers.
func (b Broadcaster) Broadcast(e Event) {
	b.s.mu.Lock()
	subs := make([]*subscriber, len(b.s.subscribers))
	copy(subs, b.s.subscribers)
	b.s.mu.Unlock()

	for _, s := range subs {
		s.enqueue(e)
	}
}
