package handler

// errorResponse mirrors the envelope the global error handler renders; kept
// here for swagger docs on handler-local failures.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type askRequest struct {
	Prompt string `json:"prompt" validate:"required,min=1,max=8000"`
}

type threadResponse struct {
	ThreadID string `json:"thread_id"`
}

// streamFrame is one newline-delimited JSON frame on the ask stream.
// type is "delta" while output is being produced, then exactly one terminal
// "result" or "error" frame.
type streamFrame struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Data any    `json:"data,omitempty"`
	Code string `json:"code,omitempty"`
}
