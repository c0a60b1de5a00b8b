package ports

import "context"

// ThreadService owns the mapping from a user identity to its conversation
// thread on the assistant service. Implementations serialize concurrent
// calls for the same user; calls for different users proceed independently.
type ThreadService interface {
	// ResolveThread returns the user's current thread id, creating and
	// persisting a new thread when none is stored. A stored id is trusted
	// without probing the assistant service.
	ResolveThread(ctx context.Context, userID string) (string, error)
	// ResetThread unconditionally creates a new thread, overwrites the stored
	// id, and returns it. The previous thread is abandoned, not deleted.
	ResetThread(ctx context.Context, userID string) (string, error)
}
