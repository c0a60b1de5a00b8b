package ports

import (
	"context"
	"encoding/json"
)

// TurnEvent is one element of the stream a turn produces for the caller.
// Exactly one terminal event (Result or Err set) precedes channel close.
type TurnEvent struct {
	// Delta is an incremental text fragment, forwarded as received.
	Delta string
	// Result is the structured object extracted from the accumulated output.
	Result json.RawMessage
	// Err is the terminal failure: domain.ErrAssistantRunFailed,
	// domain.ErrAssistantTimeout or domain.ErrMalformedAssistantOutput.
	Err error
	// RunID identifies the provider-side run once known.
	RunID string
}

// RelayService drives a single assistant turn and streams its output.
type RelayService interface {
	// RunTurn submits prompt to threadID and returns the event stream.
	// An immediate submission failure returns domain.ErrAssistantUnavailable
	// and no channel. The relay never retries; retrying a stateful run risks
	// duplicate side effects, so that choice belongs to the edge.
	RunTurn(ctx context.Context, threadID, prompt string) (<-chan TurnEvent, error)
}
