package safety

import "CraneGuard/internal/entity"

// Subscribe registers a listener for snapshots published after every change.
// Slow listeners miss intermediate snapshots rather than blocking writers.
func (s *State) Subscribe() (int, <-chan entity.SafetySnapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan entity.SafetySnapshot, 4)
	if s.closed {
		close(ch)
		return id, ch
	}
	s.subs[id] = ch
	return id, ch
}

func (s *State) Unsubscribe(id int) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if ch, ok := s.subs[id]; ok {
		close(ch)
		delete(s.subs, id)
	}
}

// Close releases every subscriber. Later writes are still applied but no
// longer published.
func (s *State) Close() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

func (s *State) publish(snap entity.SafetySnapshot) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
		}
	}
}
