package recent

import (
	"context"
	"sort"
	"sync"

	"github.com/fathima-sithara/chat-core/internal/domain"
)

type memoryEntry struct {
	domain.RecentActivity
	upsertSeq uint64
}

type MemoryIndex struct {
	mu        sync.Mutex
	byOwner   map[string]map[string]memoryEntry
	upserts   uint64
	listeners []UpsertListener
	users     UserDirectory
}

func NewMemoryIndex(users UserDirectory) *MemoryIndex {
	return &MemoryIndex{
		byOwner: make(map[string]map[string]memoryEntry),
		users:   users,
	}
}

func (i *MemoryIndex) OnUpsert(fn UpsertListener) {
	i.mu.Lock()
	i.listeners = append(i.listeners, fn)
	i.mu.Unlock()
}

func (i *MemoryIndex) Apply(ctx context.Context, m domain.Message) error {
	entries := entriesFor(ctx, i.users, m)

	i.mu.Lock()
	for _, e := range entries {
		owned, ok := i.byOwner[e.OwnerID]
		if !ok {
			owned = make(map[string]memoryEntry)
			i.byOwner[e.OwnerID] = owned
		}
		i.upserts++
		owned[e.PartnerID] = memoryEntry{RecentActivity: e, upsertSeq: i.upserts}
		for _, fn := range i.listeners {
			fn(e)
		}
	}
	i.mu.Unlock()
	return nil
}

func (i *MemoryIndex) List(ctx context.Context, ownerID string) ([]domain.RecentActivity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i.mu.Lock()
	defer i.mu.Unlock()

	owned := i.byOwner[ownerID]
	entries := make([]memoryEntry, 0, len(owned))
	for _, e := range owned {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(a, b int) bool {
		ta, tb := entries[a].Timestamp, entries[b].Timestamp
		if ta.Equal(tb) {
			return entries[a].upsertSeq > entries[b].upsertSeq
		}
		return ta.After(tb)
	})

	out := make([]domain.RecentActivity, len(entries))
	for n, e := range entries {
		out[n] = e.RecentActivity
	}
	return out, nil
}
