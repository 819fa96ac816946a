package fanout

import (
	"sync"

	"github.com/fathima-sithara/chat-core/internal/domain"
)

type State int

const (
	StateIdle State = iota
	StateActive
	StateClosed
)

// Subscription is one live conversation channel. Lifecycle is
// Idle -> Active -> Closed; Closed is terminal, a new channel requires a
// fresh Subscribe plus a history backfill to cover the gap.
type Subscription struct {
	ownerID   string
	partnerID string
	engine    *Engine

	mu    sync.Mutex
	state State
	ch    chan domain.Message
	done  chan struct{}
}

// C yields appended messages in store append order. The channel is closed
// when the subscription closes, including a lag-induced close.
func (s *Subscription) C() <-chan domain.Message { return s.ch }

// Done is closed when the subscription reaches Closed.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close is idempotent and immediate: no message is delivered after it
// returns, even if it races an in-flight append.
func (s *Subscription) Close() {
	if s.closeLocked() {
		s.engine.removeConv(s)
	}
}

func (s *Subscription) closeLocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return false
	}
	s.state = StateClosed
	close(s.done)
	close(s.ch)
	return true
}

// deliver attempts a non-blocking send. A full buffer means the consumer is
// lagging; the channel is closed instead of blocking the writer, and lagged
// reports that transition so the engine can unregister it.
func (s *Subscription) deliver(m domain.Message) (ok, lagged bool) {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return false, false
	}
	select {
	case s.ch <- m:
		s.mu.Unlock()
		return true, false
	default:
		s.state = StateClosed
		close(s.done)
		close(s.ch)
		s.mu.Unlock()
		return false, true
	}
}

func (s *Subscription) activate() {
	s.mu.Lock()
	s.state = StateActive
	s.mu.Unlock()
}

// RecentSubscription is the live channel counterpart for the
// recent-activity list; same lifecycle as Subscription.
type RecentSubscription struct {
	ownerID string
	engine  *Engine

	mu    sync.Mutex
	state State
	ch    chan domain.RecentActivity
	done  chan struct{}
}

func (s *RecentSubscription) C() <-chan domain.RecentActivity { return s.ch }

func (s *RecentSubscription) Done() <-chan struct{} { return s.done }

func (s *RecentSubscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *RecentSubscription) Close() {
	if s.closeLocked() {
		s.engine.removeRecent(s)
	}
}

func (s *RecentSubscription) closeLocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return false
	}
	s.state = StateClosed
	close(s.done)
	close(s.ch)
	return true
}

func (s *RecentSubscription) deliver(r domain.RecentActivity) (ok, lagged bool) {
	s.mu.Lock()
	if s.state != StateActive {
		s.mu.Unlock()
		return false, false
	}
	select {
	case s.ch <- r:
		s.mu.Unlock()
		return true, false
	default:
		s.state = StateClosed
		close(s.done)
		close(s.ch)
		s.mu.Unlock()
		return false, true
	}
}

func (s *RecentSubscription) activate() {
	s.mu.Lock()
	s.state = StateActive
	s.mu.Unlock()
}
