package gateway

import (
	"context"
	"errors"

	"github.com/fathima-sithara/chat-core/internal/cerr"
	"github.com/fathima-sithara/chat-core/internal/domain"
)

// ConversationView joins a history snapshot with a live channel. The
// contract: every message lands in exactly one of the two; nothing is
// duplicated across the seam and nothing falls between it.
type ConversationView struct {
	Snapshot []domain.Message
	Live     <-chan domain.Message
	// Cancel closes the underlying subscription; idempotent.
	Cancel func()
}

// RecentView is the same join for the conversation list.
type RecentView struct {
	Snapshot []domain.RecentActivity
	Live     <-chan domain.RecentActivity
	Cancel   func()
}

// OpenConversation subscribes first, then reads the snapshot, so the
// subscription cursor sits at or before the snapshot's last item; live
// items already covered by the snapshot are filtered out. The snapshot is
// always the full history up to the seam: a truncated snapshot would leave
// messages that are in neither snapshot nor live, so callers wanting fewer
// messages page backwards with History instead.
func (g *Gateway) OpenConversation(ctx context.Context, ownerID, partnerID string) (*ConversationView, error) {
	if _, err := g.users.Get(ctx, partnerID); err != nil {
		if errors.Is(err, cerr.ErrNotFound) {
			return nil, cerr.Validation("unknown user " + partnerID)
		}
		return nil, err
	}

	sub := g.engine.Subscribe(ownerID, partnerID)
	snapshot, err := g.store.History(ctx, ownerID, partnerID, domain.Cursor{}, 0)
	if err != nil {
		sub.Close()
		return nil, err
	}

	var last domain.Cursor
	if len(snapshot) > 0 {
		last = snapshot[len(snapshot)-1].Cursor()
	}

	out := make(chan domain.Message)
	go func() {
		defer close(out)
		for m := range sub.C() {
			if !last.IsZero() && !m.Cursor().After(last) {
				continue
			}
			select {
			case out <- m:
			case <-sub.Done():
				return
			}
		}
	}()

	return &ConversationView{
		Snapshot: snapshot,
		Live:     out,
		Cancel:   sub.Close,
	}, nil
}

// ListRecent joins the index snapshot with the owner's live upsert channel.
// Entries are keyed by partner, so "covered by the snapshot" is judged per
// partner cursor.
func (g *Gateway) ListRecent(ctx context.Context, ownerID string) (*RecentView, error) {
	sub := g.engine.SubscribeRecent(ownerID)
	snapshot, err := g.index.List(ctx, ownerID)
	if err != nil {
		sub.Close()
		return nil, err
	}

	seen := make(map[string]domain.Cursor, len(snapshot))
	for _, e := range snapshot {
		seen[e.PartnerID] = e.Cursor()
	}

	out := make(chan domain.RecentActivity)
	go func() {
		defer close(out)
		for e := range sub.C() {
			if c, ok := seen[e.PartnerID]; ok && !e.Cursor().After(c) {
				continue
			}
			select {
			case out <- e:
			case <-sub.Done():
				return
			}
		}
	}()

	return &RecentView{
		Snapshot: snapshot,
		Live:     out,
		Cancel:   sub.Close,
	}, nil
}
