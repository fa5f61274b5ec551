package gps

import "sync"

// subscriber feeds one callback from its own goroutine. Batches queue
// without bound, so a slow callback never stalls a tick and always sees
// ticks in the order they ran.
type subscriber struct {
	callback func(NMEAData)

	mu     sync.Mutex
	queue  []NMEAData
	closed bool

	wake chan struct{}
	done chan struct{}
}

func newSubscriber(callback func(NMEAData)) *subscriber {
	s := &subscriber{
		callback: callback,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *subscriber) deliver(data NMEAData) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, data)
	s.mu.Unlock()
	s.notify()
}

func (s *subscriber) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) run() {
	defer close(s.done)

	for range s.wake {
		s.mu.Lock()
		pending := s.queue
		s.queue = nil
		closed := s.closed
		s.mu.Unlock()

		for _, data := range pending {
			s.callback(data)
		}
		if closed {
			return
		}
	}
}

// close stops accepting batches and waits until the queued ones have been
// handed to the callback.
func (s *subscriber) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.notify()
	<-s.done
}
