package profile

import (
	"context"

	"github.com/fathima-sithara/chat-core/internal/domain"
)

// Repository stores user records keyed by uid. Persist is a full replace:
// re-running it for the same uid overwrites instead of duplicating, which
// is what makes profile persistence safely retryable.
type Repository interface {
	Persist(ctx context.Context, u domain.User) error
	Get(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	// List returns all users except excludeID, for the new-conversation
	// picker.
	List(ctx context.Context, excludeID string) ([]domain.User, error)
}
