package recent

import (
	"context"
	"testing"
	"time"

	"github.com/fathima-sithara/chat-core/internal/domain"
	"github.com/fathima-sithara/chat-core/internal/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUsers(t *testing.T) *profile.MemoryRepository {
	t.Helper()
	users := profile.NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, users.Persist(ctx, domain.User{ID: "alice", Email: "alice@example.com", ProfileImageURL: "https://img/alice"}))
	require.NoError(t, users.Persist(ctx, domain.User{ID: "bob", Email: "bob@example.com", ProfileImageURL: "https://img/bob"}))
	require.NoError(t, users.Persist(ctx, domain.User{ID: "carol", Email: "carol@example.com"}))
	return users
}

func msg(from, to, text string, ts time.Time, seq uint64) domain.Message {
	return domain.Message{ID: text, FromID: from, ToID: to, Text: text, Timestamp: ts, Seq: seq}
}

func TestMemoryIndexSingleEntryPerPartner(t *testing.T) {
	idx := NewMemoryIndex(seedUsers(t))
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, idx.Apply(ctx, msg("alice", "bob", "m", base.Add(time.Duration(i)*time.Second), uint64(i+1))))
	}

	entries, err := idx.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "bob", entries[0].PartnerID)
	assert.Equal(t, base.Add(4*time.Second), entries[0].Timestamp)
}

func TestMemoryIndexBothDirections(t *testing.T) {
	idx := NewMemoryIndex(seedUsers(t))
	ctx := context.Background()
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, idx.Apply(ctx, msg("alice", "bob", "hi", ts, 1)))

	aliceList, err := idx.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, aliceList, 1)
	assert.Equal(t, "bob", aliceList[0].PartnerID)
	assert.Equal(t, "bob@example.com", aliceList[0].PartnerEmail)
	assert.Equal(t, "https://img/bob", aliceList[0].PartnerImageURL)
	assert.Equal(t, "hi", aliceList[0].Text)

	bobList, err := idx.List(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, bobList, 1)
	assert.Equal(t, "alice", bobList[0].PartnerID)
	assert.Equal(t, "alice@example.com", bobList[0].PartnerEmail)
	assert.Equal(t, "hi", bobList[0].Text)
}

func TestMemoryIndexListOrder(t *testing.T) {
	idx := NewMemoryIndex(seedUsers(t))
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	// bob's conversation is older than carol's
	require.NoError(t, idx.Apply(ctx, msg("alice", "bob", "old", base, 1)))
	require.NoError(t, idx.Apply(ctx, msg("alice", "carol", "new", base.Add(time.Minute), 1)))

	entries, err := idx.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "carol", entries[0].PartnerID)
	assert.Equal(t, "bob", entries[1].PartnerID)

	t.Run("equal timestamps fall back to upsert recency", func(t *testing.T) {
		require.NoError(t, idx.Apply(ctx, msg("alice", "bob", "same-instant", base.Add(time.Minute), 2)))
		entries, err := idx.List(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "bob", entries[0].PartnerID)
	})
}

func TestMemoryIndexEmitsUpsertEvents(t *testing.T) {
	idx := NewMemoryIndex(seedUsers(t))
	ctx := context.Background()

	var owners []string
	idx.OnUpsert(func(e domain.RecentActivity) { owners = append(owners, e.OwnerID) })

	require.NoError(t, idx.Apply(ctx, msg("alice", "bob", "hi", time.Now().UTC(), 1)))
	assert.Equal(t, []string{"alice", "bob"}, owners)
}
