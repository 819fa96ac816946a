package fanout

import (
	"testing"
	"time"

	"github.com/fathima-sithara/chat-core/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEngine(buffer int) *Engine {
	return NewEngine(buffer, zap.NewNop().Sugar())
}

func testMsg(from, to, text string, seq uint64) domain.Message {
	return domain.Message{
		ID: text, FromID: from, ToID: to, Text: text,
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Seq:       seq,
	}
}

func recv(t *testing.T, ch <-chan domain.Message) domain.Message {
	t.Helper()
	select {
	case m, ok := <-ch:
		require.True(t, ok, "channel closed unexpectedly")
		return m
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return domain.Message{}
	}
}

func TestEngineDeliversInAppendOrder(t *testing.T) {
	e := newTestEngine(8)
	sub := e.Subscribe("alice", "bob")
	defer sub.Close()

	for i := uint64(1); i <= 3; i++ {
		e.Publish(testMsg("alice", "bob", "m", i))
	}
	for i := uint64(1); i <= 3; i++ {
		assert.Equal(t, i, recv(t, sub.C()).Seq)
	}
}

func TestEngineFansOutToBothSides(t *testing.T) {
	e := newTestEngine(8)
	senderSide := e.Subscribe("alice", "bob")
	recipientSide := e.Subscribe("bob", "alice")
	bystander := e.Subscribe("carol", "bob")
	defer senderSide.Close()
	defer recipientSide.Close()
	defer bystander.Close()

	e.Publish(testMsg("alice", "bob", "hi", 1))

	assert.Equal(t, "hi", recv(t, senderSide.C()).Text)
	assert.Equal(t, "hi", recv(t, recipientSide.C()).Text)
	select {
	case m := <-bystander.C():
		t.Fatalf("bystander received %q", m.Text)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscriptionCloseIsIdempotentAndTerminal(t *testing.T) {
	e := newTestEngine(8)
	sub := e.Subscribe("alice", "bob")

	require.Equal(t, StateActive, sub.State())
	sub.Close()
	sub.Close() // repeated close is a no-op
	assert.Equal(t, StateClosed, sub.State())

	e.Publish(testMsg("alice", "bob", "late", 1))
	_, ok := <-sub.C()
	assert.False(t, ok, "no delivery after close")
}

func TestEngineClosesLaggingSubscriber(t *testing.T) {
	e := newTestEngine(1)
	slow := e.Subscribe("alice", "bob")

	e.Publish(testMsg("alice", "bob", "first", 1))
	e.Publish(testMsg("alice", "bob", "overflow", 2))

	assert.Equal(t, StateClosed, slow.State())

	// the buffered message is still readable, then the channel closes
	assert.Equal(t, "first", recv(t, slow.C()).Text)
	_, ok := <-slow.C()
	assert.False(t, ok)

	select {
	case <-slow.Done():
	default:
		t.Fatal("Done not signalled for lag-closed subscription")
	}
}

func TestEngineLagDoesNotAffectOtherSubscribers(t *testing.T) {
	e := newTestEngine(1)
	slow := e.Subscribe("alice", "bob")
	healthy := e.Subscribe("alice", "bob")

	e.Publish(testMsg("alice", "bob", "a", 1))
	assert.Equal(t, "a", recv(t, healthy.C()).Text)
	e.Publish(testMsg("alice", "bob", "b", 2))
	assert.Equal(t, "b", recv(t, healthy.C()).Text)

	assert.Equal(t, StateClosed, slow.State())
	assert.Equal(t, StateActive, healthy.State())
	healthy.Close()
}

func TestEngineRecentChannels(t *testing.T) {
	e := newTestEngine(8)
	sub := e.SubscribeRecent("alice")
	other := e.SubscribeRecent("bob")
	defer sub.Close()
	defer other.Close()

	entry := domain.RecentActivity{OwnerID: "alice", PartnerID: "bob", Text: "hi"}
	e.PublishRecent(entry)

	select {
	case got, ok := <-sub.C():
		require.True(t, ok)
		assert.Equal(t, entry, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for recent event")
	}
	select {
	case got := <-other.C():
		t.Fatalf("wrong owner received %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}
