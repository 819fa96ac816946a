package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fathima-sithara/chat-core/internal/cerr"
	"github.com/fathima-sithara/chat-core/internal/domain"
	"github.com/google/uuid"
)

// MemoryStore keeps both namespace copies in process memory. Both copies are
// committed under one lock, so the double-write is atomic by construction.
// Backs tests and the single-node dev mode.
type MemoryStore struct {
	mu        sync.Mutex
	byNS      map[string][]domain.Message
	seq       map[string]uint64
	lastTS    map[string]time.Time
	pairLocks map[string]*sync.Mutex
	listeners []AppendListener

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byNS:      make(map[string][]domain.Message),
		seq:       make(map[string]uint64),
		lastTS:    make(map[string]time.Time),
		pairLocks: make(map[string]*sync.Mutex),
		now:       time.Now,
	}
}

func (s *MemoryStore) OnAppend(fn AppendListener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *MemoryStore) Append(ctx context.Context, fromID, toID, text string) (domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Message{}, cerr.Validation("message text is blank")
	}
	if fromID == toID {
		return domain.Message{}, cerr.Validation("sender and recipient are the same user")
	}
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}

	pk := pairKey(fromID, toID)
	l := s.lockPair(pk)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	// timestamps never move backwards within a conversation; equal
	// timestamps are fine, seq orders them
	ts := s.now().UTC()
	if last := s.lastTS[pk]; ts.Before(last) {
		ts = last
	}
	s.lastTS[pk] = ts

	s.seq[pk]++
	m := domain.Message{
		ID:        uuid.New().String(),
		FromID:    fromID,
		ToID:      toID,
		Text:      text,
		Timestamp: ts,
		Seq:       s.seq[pk],
	}

	s.byNS[nsKey(fromID, toID)] = append(s.byNS[nsKey(fromID, toID)], m)
	s.byNS[nsKey(toID, fromID)] = append(s.byNS[nsKey(toID, fromID)], m)
	listeners := s.listeners
	s.mu.Unlock()

	// the pair lock is still held, so listeners observe one conversation's
	// appends in store order, and a slow listener only stalls its own
	// conversation, not every append in the process
	for _, fn := range listeners {
		fn(m)
	}
	return m, nil
}

// lockPair serializes appends per conversation so listener notification
// follows seq order without holding the map lock across listener calls.
func (s *MemoryStore) lockPair(pk string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.pairLocks[pk]
	if !ok {
		l = &sync.Mutex{}
		s.pairLocks[pk] = l
	}
	return l
}

func (s *MemoryStore) History(ctx context.Context, userA, userB string, after domain.Cursor, limit int) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.byNS[nsKey(userA, userB)]
	out := make([]domain.Message, 0, len(msgs))
	for _, m := range msgs {
		if !after.IsZero() && !m.Cursor().After(after) {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
