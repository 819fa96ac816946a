package blob

import "context"

// Store holds opaque binary objects; the core only ever stores the returned
// URL and never inspects content. Put overwrites an existing key, so the
// profile-image step can be retried for the same uid.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}
