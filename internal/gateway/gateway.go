package gateway

import (
	"context"
	"errors"
	"strings"

	"github.com/fathima-sithara/chat-core/internal/cerr"
	"github.com/fathima-sithara/chat-core/internal/domain"
	"github.com/fathima-sithara/chat-core/internal/events"
	"github.com/fathima-sithara/chat-core/internal/fanout"
	"github.com/fathima-sithara/chat-core/internal/metrics"
	"github.com/fathima-sithara/chat-core/internal/profile"
	"github.com/fathima-sithara/chat-core/internal/recent"
	"github.com/fathima-sithara/chat-core/internal/store"
	"go.uber.org/zap"
)

// Gateway is the public surface the presentation layer consumes. Caller
// identity is always an explicit parameter; nothing here reads ambient
// session state.
type Gateway struct {
	store  store.ConversationStore
	index  recent.Index
	engine *fanout.Engine
	users  profile.Repository
	events *events.Producer // optional
	log    *zap.SugaredLogger
}

func New(st store.ConversationStore, idx recent.Index, eng *fanout.Engine, users profile.Repository, prod *events.Producer, log *zap.SugaredLogger) *Gateway {
	return &Gateway{store: st, index: idx, engine: eng, users: users, events: prod, log: log}
}

// Wire registers the reactive chain: store appends drive the index and the
// conversation channels, index upserts drive the recent channels. Neither
// the index nor the engine has any other mutation path.
func Wire(st store.ConversationStore, idx recent.Index, eng *fanout.Engine, log *zap.SugaredLogger) {
	st.OnAppend(func(m domain.Message) {
		if err := idx.Apply(context.Background(), m); err != nil {
			log.Errorw("recent index update failed", "message_id", m.ID, "error", err)
		}
	})
	st.OnAppend(eng.Publish)
	idx.OnUpsert(eng.PublishRecent)
}

// Send validates and appends a message. Fan-out and index updates happen as
// a consequence of the store append, so no subscriber can observe either
// before the message is durable.
func (g *Gateway) Send(ctx context.Context, fromID, toID, text string) (domain.Message, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Message{}, cerr.Validation("message text is blank")
	}
	if fromID == toID {
		return domain.Message{}, cerr.Validation("sender and recipient are the same user")
	}
	for _, id := range []string{fromID, toID} {
		if _, err := g.users.Get(ctx, id); err != nil {
			if errors.Is(err, cerr.ErrNotFound) {
				return domain.Message{}, cerr.Validation("unknown user " + id)
			}
			return domain.Message{}, err
		}
	}

	m, err := g.store.Append(ctx, fromID, toID, text)
	if err != nil {
		return domain.Message{}, err
	}
	metrics.MessagesSent.Inc()

	if g.events != nil {
		if err := g.events.PublishMessageCreated(ctx, m); err != nil {
			g.log.Warnw("publish message.created", "message_id", m.ID, "error", err)
		}
	}
	return m, nil
}

// History returns messages of the caller's conversation with partnerID,
// oldest first, resumable via the cursor.
func (g *Gateway) History(ctx context.Context, ownerID, partnerID string, after domain.Cursor, limit int) ([]domain.Message, error) {
	if _, err := g.users.Get(ctx, partnerID); err != nil {
		if errors.Is(err, cerr.ErrNotFound) {
			return nil, cerr.Validation("unknown user " + partnerID)
		}
		return nil, err
	}
	return g.store.History(ctx, ownerID, partnerID, after, limit)
}

// Recent returns the caller's conversation list snapshot, most recent first.
func (g *Gateway) Recent(ctx context.Context, ownerID string) ([]domain.RecentActivity, error) {
	return g.index.List(ctx, ownerID)
}

// Users lists everyone except the caller, for starting a new conversation.
func (g *Gateway) Users(ctx context.Context, callerID string) ([]domain.User, error) {
	return g.users.List(ctx, callerID)
}

// Profile fetches one user record.
func (g *Gateway) Profile(ctx context.Context, userID string) (domain.User, error) {
	return g.users.Get(ctx, userID)
}
