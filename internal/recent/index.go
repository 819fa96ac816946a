package recent

import (
	"context"

	"github.com/fathima-sithara/chat-core/internal/domain"
)

// UpsertListener observes committed index updates; the fan-out engine's
// recent channels are driven through it.
type UpsertListener func(domain.RecentActivity)

// UserDirectory resolves partner identity for denormalization into index
// entries. Satisfied by profile.Repository.
type UserDirectory interface {
	Get(ctx context.Context, id string) (domain.User, error)
}

// Index is the per-user "latest message per partner" view. It is derived
// state: Apply is only ever fed from conversation store append events, and
// the whole index is rebuildable from the store.
type Index interface {
	// Apply upserts both directions for the message: (owner=sender,
	// partner=recipient) and (owner=recipient, partner=sender).
	Apply(ctx context.Context, m domain.Message) error
	// List returns the owner's entries ordered by last-message timestamp
	// descending, ties broken by most recent upsert.
	List(ctx context.Context, ownerID string) ([]domain.RecentActivity, error)
	OnUpsert(fn UpsertListener)
}

// entriesFor builds the two directional entries for a message. Partner
// lookups that fail leave identity fields blank rather than dropping the
// entry; the text and ordering data always come from the message itself.
func entriesFor(ctx context.Context, users UserDirectory, m domain.Message) []domain.RecentActivity {
	sender, _ := users.Get(ctx, m.FromID)
	recipient, _ := users.Get(ctx, m.ToID)
	return []domain.RecentActivity{
		{
			OwnerID:         m.FromID,
			PartnerID:       m.ToID,
			PartnerEmail:    recipient.Email,
			PartnerImageURL: recipient.ProfileImageURL,
			Text:            m.Text,
			Timestamp:       m.Timestamp,
			Seq:             m.Seq,
		},
		{
			OwnerID:         m.ToID,
			PartnerID:       m.FromID,
			PartnerEmail:    sender.Email,
			PartnerImageURL: sender.ProfileImageURL,
			Text:            m.Text,
			Timestamp:       m.Timestamp,
			Seq:             m.Seq,
		},
	}
}
