package connectivity

import "sync"

// Static is a manually driven connectivity source. It backs the CLI's
// --offline override and makes coordinator tests deterministic.
type Static struct {
	subscribers map[chan bool]struct{}
	mu          sync.RWMutex
	online      bool
}

// NewStatic creates a static source with the given initial state.
func NewStatic(online bool) *Static {
	return &Static{
		online:      online,
		subscribers: make(map[chan bool]struct{}),
	}
}

// Online reports the current state.
func (s *Static) Online() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.online
}

// Set changes the state and notifies subscribers on a transition.
func (s *Static) Set(online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if online == s.online {
		return
	}
	s.online = online

	for sub := range s.subscribers {
		select {
		case sub <- online:
		default:
			select {
			case <-sub:
			default:
			}
			sub <- online
		}
	}
}

// Subscribe registers for transition notifications.
func (s *Static) Subscribe() <-chan bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan bool, 1)
	s.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Static) Unsubscribe(ch <-chan bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for sub := range s.subscribers {
		if sub == ch {
			delete(s.subscribers, sub)
			close(sub)
			return
		}
	}
}
