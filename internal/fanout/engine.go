package fanout

import (
	"sync"

	"github.com/fathima-sithara/chat-core/internal/domain"
	"github.com/fathima-sithara/chat-core/internal/metrics"
	"go.uber.org/zap"
)

// Engine maintains the live channels. An append touches exactly two
// conversation channel groups (sender's view, recipient's view) and two
// recent groups, however many subscribers each group holds.
type Engine struct {
	mu     sync.RWMutex
	byConv map[string]map[*Subscription]struct{}
	recent map[string]map[*RecentSubscription]struct{}

	buffer int
	log    *zap.SugaredLogger

	// optional cross-instance hook, set by the redis bridge
	remote func(domain.Message)
}

func NewEngine(buffer int, log *zap.SugaredLogger) *Engine {
	if buffer <= 0 {
		buffer = 256
	}
	return &Engine{
		byConv: make(map[string]map[*Subscription]struct{}),
		recent: make(map[string]map[*RecentSubscription]struct{}),
		buffer: buffer,
		log:    log,
	}
}

func convKey(ownerID, partnerID string) string { return ownerID + "/" + partnerID }

// Subscribe opens an Active channel receiving every message appended to
// conversation(owner, partner) from now on.
func (e *Engine) Subscribe(ownerID, partnerID string) *Subscription {
	s := &Subscription{
		ownerID:   ownerID,
		partnerID: partnerID,
		engine:    e,
		state:     StateIdle,
		ch:        make(chan domain.Message, e.buffer),
		done:      make(chan struct{}),
	}
	key := convKey(ownerID, partnerID)
	e.mu.Lock()
	set, ok := e.byConv[key]
	if !ok {
		set = make(map[*Subscription]struct{})
		e.byConv[key] = set
	}
	set[s] = struct{}{}
	e.mu.Unlock()
	s.activate()
	return s
}

// SubscribeRecent opens an Active channel of recent-activity upserts for the
// owner, driving the conversation list view.
func (e *Engine) SubscribeRecent(ownerID string) *RecentSubscription {
	s := &RecentSubscription{
		ownerID: ownerID,
		engine:  e,
		state:   StateIdle,
		ch:      make(chan domain.RecentActivity, e.buffer),
		done:    make(chan struct{}),
	}
	e.mu.Lock()
	set, ok := e.recent[ownerID]
	if !ok {
		set = make(map[*RecentSubscription]struct{})
		e.recent[ownerID] = set
	}
	set[s] = struct{}{}
	e.mu.Unlock()
	s.activate()
	return s
}

// Publish fans a committed append out to both participants' conversation
// channels. Registered as a store append listener, so delivery never
// precedes durability.
func (e *Engine) Publish(m domain.Message) {
	e.fanOutMessage(m)
	e.mu.RLock()
	remote := e.remote
	e.mu.RUnlock()
	if remote != nil {
		remote(m)
	}
}

// PublishRecent fans an index upsert out to the owner's recent channels.
// Registered as an index upsert listener.
func (e *Engine) PublishRecent(r domain.RecentActivity) {
	var lagging []*RecentSubscription
	e.mu.RLock()
	for s := range e.recent[r.OwnerID] {
		if _, lagged := s.deliver(r); lagged {
			lagging = append(lagging, s)
		}
	}
	e.mu.RUnlock()
	for _, s := range lagging {
		e.removeRecent(s)
	}
}

func (e *Engine) fanOutMessage(m domain.Message) {
	keys := [2]string{convKey(m.FromID, m.ToID), convKey(m.ToID, m.FromID)}
	var lagging []*Subscription

	e.mu.RLock()
	for _, key := range keys {
		for s := range e.byConv[key] {
			ok, lagged := s.deliver(m)
			if ok {
				metrics.FanoutDelivered.Inc()
			} else if lagged {
				lagging = append(lagging, s)
			}
		}
	}
	e.mu.RUnlock()

	for _, s := range lagging {
		metrics.FanoutDropped.Inc()
		e.log.Warnw("closed lagging subscription",
			"owner", s.ownerID, "partner", s.partnerID)
		e.removeConv(s)
	}
}

func (e *Engine) removeConv(s *Subscription) {
	key := convKey(s.ownerID, s.partnerID)
	e.mu.Lock()
	if set, ok := e.byConv[key]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(e.byConv, key)
		}
	}
	e.mu.Unlock()
}

func (e *Engine) removeRecent(s *RecentSubscription) {
	e.mu.Lock()
	if set, ok := e.recent[s.ownerID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(e.recent, s.ownerID)
		}
	}
	e.mu.Unlock()
}

func (e *Engine) setRemote(fn func(domain.Message)) {
	e.mu.Lock()
	e.remote = fn
	e.mu.Unlock()
}
