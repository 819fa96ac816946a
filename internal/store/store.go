package store

import (
	"context"
	"strings"

	"github.com/fathima-sithara/chat-core/internal/domain"
)

// AppendListener observes committed appends. Listeners are invoked
// synchronously after the message is durable under both namespaces, in
// append order; the recent-activity index and the fan-out engine are the
// only intended consumers.
type AppendListener func(domain.Message)

// ConversationStore owns message records. Every accepted append is written
// under both participants' namespaces as one unit: conversation(A,B) and
// conversation(B,A) always hold the same ordered message set.
type ConversationStore interface {
	Append(ctx context.Context, fromID, toID, text string) (domain.Message, error)
	// History returns messages of the (userA, userB) conversation strictly
	// after the cursor, ordered by (timestamp, seq) ascending. A zero cursor
	// starts from the beginning; calling again with the last returned
	// message's cursor resumes without gaps or duplicates.
	History(ctx context.Context, userA, userB string, after domain.Cursor, limit int) ([]domain.Message, error)
	// OnAppend registers a listener. Must be called during wiring, before
	// the store accepts writes.
	OnAppend(fn AppendListener)
}

// nsKey names one participant's copy of a conversation.
func nsKey(ownerID, partnerID string) string {
	return ownerID + "/" + partnerID
}

// pairKey is direction-independent; sequence numbers are allocated per pair
// so both copies of a message share one seq.
func pairKey(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + "|" + b
}
