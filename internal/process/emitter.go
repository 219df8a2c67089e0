package process

import "sync"

// Emitter fans events out to any number of subscribers. Publishing is
// serialised, so every subscriber observes events in publication order.
// A slow subscriber never blocks publishers: each one owns an unbounded
// queue drained into its channel by a dedicated goroutine.
type Emitter struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewEmitter creates an empty Emitter.
func NewEmitter() *Emitter {
	return &Emitter{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a new subscriber. Events published before the call are
// not replayed.
func (e *Emitter) Subscribe() *Subscription {
	s := &Subscription{
		emitter: e,
		out:     make(chan Event),
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go s.pump()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		s.shutdown()
		return s
	}
	e.subs[s] = struct{}{}
	return s
}

// Publish delivers ev to every current subscriber.
func (e *Emitter) Publish(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for s := range e.subs {
		s.push(ev)
	}
}

// Close ends every subscription. Later subscriptions are closed immediately.
func (e *Emitter) Close() {
	e.mu.Lock()
	subs := e.subs
	e.subs = make(map[*Subscription]struct{})
	e.closed = true
	e.mu.Unlock()
	for s := range subs {
		s.shutdown()
	}
}

func (e *Emitter) remove(s *Subscription) {
	e.mu.Lock()
	delete(e.subs, s)
	e.mu.Unlock()
}

// Subscription is one subscriber's ordered view of the event stream.
type Subscription struct {
	emitter *Emitter

	mu     sync.Mutex
	queue  []Event
	notify chan struct{}

	out       chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// Events returns the delivery channel. It is closed after Close.
func (s *Subscription) Events() <-chan Event {
	return s.out
}

// Close detaches the subscription and discards undelivered events.
func (s *Subscription) Close() {
	s.emitter.remove(s)
	s.shutdown()
}

func (s *Subscription) shutdown() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Subscription) push(ev Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.notify:
				continue
			case <-s.done:
				return
			}
		}
		ev := s.queue[0]
		s.queue[0] = Event{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}
}
