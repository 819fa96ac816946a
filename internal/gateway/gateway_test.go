package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/fathima-sithara/chat-core/internal/cerr"
	"github.com/fathima-sithara/chat-core/internal/domain"
	"github.com/fathima-sithara/chat-core/internal/fanout"
	"github.com/fathima-sithara/chat-core/internal/profile"
	"github.com/fathima-sithara/chat-core/internal/recent"
	"github.com/fathima-sithara/chat-core/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testRig struct {
	gw     *Gateway
	engine *fanout.Engine
	users  *profile.MemoryRepository
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	log := zap.NewNop().Sugar()
	users := profile.NewMemoryRepository()
	st := store.NewMemoryStore()
	idx := recent.NewMemoryIndex(users)
	eng := fanout.NewEngine(16, log)
	Wire(st, idx, eng, log)

	ctx := context.Background()
	for _, u := range []domain.User{
		{ID: "alice", Email: "alice@example.com", ProfileImageURL: "https://img/alice"},
		{ID: "bob", Email: "bob@example.com"},
		{ID: "carol", Email: "carol@example.com"},
	} {
		require.NoError(t, users.Persist(ctx, u))
	}
	return &testRig{gw: New(st, idx, eng, users, nil, log), engine: eng, users: users}
}

func (r *testRig) send(t *testing.T, from, to, text string) domain.Message {
	t.Helper()
	m, err := r.gw.Send(context.Background(), from, to, text)
	require.NoError(t, err)
	return m
}

func waitMsg(t *testing.T, ch <-chan domain.Message) domain.Message {
	t.Helper()
	select {
	case m, ok := <-ch:
		require.True(t, ok, "live channel closed")
		return m
	case <-time.After(time.Second):
		t.Fatal("timed out waiting on live channel")
		return domain.Message{}
	}
}

func waitRecent(t *testing.T, ch <-chan domain.RecentActivity) domain.RecentActivity {
	t.Helper()
	select {
	case e, ok := <-ch:
		require.True(t, ok, "live channel closed")
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting on live channel")
		return domain.RecentActivity{}
	}
}

func TestSendValidation(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()

	t.Run("blank text", func(t *testing.T) {
		_, err := r.gw.Send(ctx, "alice", "bob", "   ")
		assert.ErrorIs(t, err, cerr.ErrValidation)
	})
	t.Run("self send", func(t *testing.T) {
		_, err := r.gw.Send(ctx, "alice", "alice", "hi me")
		assert.ErrorIs(t, err, cerr.ErrValidation)
	})
	t.Run("unknown recipient", func(t *testing.T) {
		_, err := r.gw.Send(ctx, "alice", "mallory", "hi")
		assert.ErrorIs(t, err, cerr.ErrValidation)
	})
	t.Run("unknown sender", func(t *testing.T) {
		_, err := r.gw.Send(ctx, "mallory", "bob", "hi")
		assert.ErrorIs(t, err, cerr.ErrValidation)
	})
}

// A single send must land in both participants' history, both recent lists,
// and both live conversation channels.
func TestSendReachesEverySurface(t *testing.T) {
	r := newTestRig(t)
	ctx := context.Background()

	aliceSide := r.engine.Subscribe("alice", "bob")
	bobSide := r.engine.Subscribe("bob", "alice")
	defer aliceSide.Close()
	defer bobSide.Close()

	sent := r.send(t, "alice", "bob", "hello bob")

	assert.Equal(t, sent, waitMsg(t, aliceSide.C()))
	assert.Equal(t, sent, waitMsg(t, bobSide.C()))

	forAlice, err := r.gw.History(ctx, "alice", "bob", domain.Cursor{}, 0)
	require.NoError(t, err)
	forBob, err := r.gw.History(ctx, "bob", "alice", domain.Cursor{}, 0)
	require.NoError(t, err)
	assert.Equal(t, forAlice, forBob)
	require.Len(t, forAlice, 1)
	assert.Equal(t, sent, forAlice[0])

	aliceRecent, err := r.gw.Recent(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, aliceRecent, 1)
	assert.Equal(t, "bob", aliceRecent[0].PartnerID)
	assert.Equal(t, "bob@example.com", aliceRecent[0].PartnerEmail)
	assert.Equal(t, "hello bob", aliceRecent[0].Text)

	bobRecent, err := r.gw.Recent(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, bobRecent, 1)
	assert.Equal(t, "alice", bobRecent[0].PartnerID)
	assert.Equal(t, "https://img/alice", bobRecent[0].PartnerImageURL)
}

func TestOpenConversationJoinsSnapshotAndLive(t *testing.T) {
	r := newTestRig(t)
	m1 := r.send(t, "alice", "bob", "one")
	m2 := r.send(t, "bob", "alice", "two")

	view, err := r.gw.OpenConversation(context.Background(), "alice", "bob")
	require.NoError(t, err)
	defer view.Cancel()

	require.Equal(t, []domain.Message{m1, m2}, view.Snapshot)

	// a replay at or before the snapshot cursor must not surface on Live
	r.engine.Publish(m2)
	m3 := r.send(t, "alice", "bob", "three")
	assert.Equal(t, m3, waitMsg(t, view.Live))
}

// Every message appended before the view opened must be in the snapshot;
// anything less would leave messages in neither snapshot nor live.
func TestOpenConversationSnapshotCoversPriorHistory(t *testing.T) {
	r := newTestRig(t)
	var sent []domain.Message
	for _, text := range []string{"one", "two", "three", "four"} {
		sent = append(sent, r.send(t, "alice", "bob", text))
	}

	view, err := r.gw.OpenConversation(context.Background(), "alice", "bob")
	require.NoError(t, err)
	defer view.Cancel()

	assert.Equal(t, sent, view.Snapshot)

	next := r.send(t, "bob", "alice", "five")
	assert.Equal(t, next, waitMsg(t, view.Live))
}

func TestOpenConversationCancelStopsLive(t *testing.T) {
	r := newTestRig(t)
	view, err := r.gw.OpenConversation(context.Background(), "alice", "bob")
	require.NoError(t, err)
	assert.Empty(t, view.Snapshot)

	view.Cancel()
	view.Cancel() // idempotent
	select {
	case _, ok := <-view.Live:
		assert.False(t, ok, "live channel should be closed after cancel")
	case <-time.After(time.Second):
		t.Fatal("live channel not closed after cancel")
	}
}

func TestOpenConversationUnknownPartner(t *testing.T) {
	r := newTestRig(t)
	_, err := r.gw.OpenConversation(context.Background(), "alice", "mallory")
	assert.ErrorIs(t, err, cerr.ErrValidation)
}

func TestListRecentJoinsSnapshotAndLive(t *testing.T) {
	r := newTestRig(t)
	r.send(t, "alice", "bob", "old news")

	view, err := r.gw.ListRecent(context.Background(), "alice")
	require.NoError(t, err)
	defer view.Cancel()

	require.Len(t, view.Snapshot, 1)
	assert.Equal(t, "bob", view.Snapshot[0].PartnerID)

	// replaying the snapshot's own entry must not surface on Live
	r.engine.PublishRecent(view.Snapshot[0])

	r.send(t, "carol", "alice", "fresh")
	got := waitRecent(t, view.Live)
	assert.Equal(t, "carol", got.PartnerID)
	assert.Equal(t, "fresh", got.Text)
}

func TestHistoryUnknownPartner(t *testing.T) {
	r := newTestRig(t)
	_, err := r.gw.History(context.Background(), "alice", "mallory", domain.Cursor{}, 0)
	assert.ErrorIs(t, err, cerr.ErrValidation)
}

func TestUsersExcludesCaller(t *testing.T) {
	r := newTestRig(t)
	users, err := r.gw.Users(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, users, 2)
	for _, u := range users {
		assert.NotEqual(t, "alice", u.ID)
	}
}
