package cerr

import "fmt"

// PartialWriteError reports that a message could be committed under only one
// of the two conversation namespaces. The store only returns it after
// exhausting retries and rolling back the first copy, so callers never
// observe a half-written conversation.
type PartialWriteError struct {
	FromID   string
	ToID     string
	Attempts int
	Err      error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial write for conversation %s/%s after %d attempts: %v",
		e.FromID, e.ToID, e.Attempts, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }
