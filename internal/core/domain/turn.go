package domain

import "encoding/json"

// Turn captures one completed exchange against a thread. Turns are ephemeral:
// they exist only while the response is being streamed and are never
// persisted.
type Turn struct {
	ThreadID string
	RunID    string
	Prompt   string
	// FullText is the concatenation of every output chunk the run produced.
	FullText string
	// Result is the JSON object extracted from FullText, nil when extraction
	// failed.
	Result json.RawMessage
}
