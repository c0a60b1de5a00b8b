package ports

import "context"

// RunEventType discriminates the events an assistant run stream can emit.
type RunEventType string

const (
	// RunDelta carries an incremental text fragment.
	RunDelta RunEventType = "delta"
	// RunCompleted terminates a successful run.
	RunCompleted RunEventType = "completed"
	// RunFailed terminates a run the provider reported as failed or expired.
	RunFailed RunEventType = "failed"
)

// RunEvent is one element of the provider-paced event stream for a run.
type RunEvent struct {
	Type  RunEventType
	Text  string // set for RunDelta
	RunID string
	Err   error // set for RunFailed when the provider gave a reason
}

// AssistantClient is the opaque interface to the hosted assistant service.
type AssistantClient interface {
	// CreateThread provisions a new conversation thread and returns its id.
	CreateThread(ctx context.Context) (string, error)
	// StreamRun submits prompt to threadID, starts a run, and returns a
	// channel of provider events. The channel is closed after a terminal
	// RunCompleted or RunFailed event, or when ctx is done.
	StreamRun(ctx context.Context, threadID, prompt string) (<-chan RunEvent, error)
	// Ping performs a cheap connectivity check against the service.
	Ping(ctx context.Context) error
}
