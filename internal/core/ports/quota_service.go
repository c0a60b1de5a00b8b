package ports

import "context"

// QuotaDecision is the outcome of a quota check for one request.
type QuotaDecision struct {
	Allowed bool
	// Remaining is the number of questions left today after this decision.
	// -1 means unlimited (paying tier).
	Remaining int
}

// QuotaService enforces the per-user daily interaction quota.
type QuotaService interface {
	// CheckAndConsume evaluates the user's counters for the current day and,
	// when the request is admitted, consumes one unit. Denials never mutate
	// state. Store failures are returned as domain.ErrStoreUnavailable and
	// the caller must treat them as a denial (fail closed).
	CheckAndConsume(ctx context.Context, userID string) (*QuotaDecision, error)
}
