package ports

import (
	"context"

	"github.com/acqadvantage/assistant-api/internal/core/domain"
)

// PaymentEventInput is the provider-neutral form of an inbound payment
// notification, produced after signature verification.
type PaymentEventInput struct {
	EventID        string
	Type           string
	CustomerID     string
	SubscriptionID string
	// CorrelationID is the client reference carried through checkout-session
	// metadata; it resolves the target user when no customer id is stored yet.
	CorrelationID string
	Plan          domain.SubscriptionPlan
	Status        domain.SubscriptionStatus
	// Recognized is false for event types this service deliberately ignores.
	Recognized bool
}

// BillingService reconciles payment-provider state into user records and
// starts checkout flows.
type BillingService interface {
	// ParseEvent verifies payload against sigHeader and maps the event into a
	// PaymentEventInput. Verification failures return
	// domain.ErrInvalidSignature; this path is reachable by arbitrary network
	// input and must never panic.
	ParseEvent(payload []byte, sigHeader string) (*PaymentEventInput, error)
	// Apply performs the idempotent state transition for event. Redelivery of
	// the same event id produces the same end state with no duplicate side
	// effects. Unresolvable users are logged and acknowledged (nil return).
	Apply(ctx context.Context, event *PaymentEventInput) error
	// CreateCheckoutSession starts a provider checkout for the given plan and
	// returns the hosted payment page URL.
	CreateCheckoutSession(ctx context.Context, userID string, plan domain.SubscriptionPlan) (string, error)
	// VerifySession confirms a completed checkout session and activates the
	// subscription it paid for.
	VerifySession(ctx context.Context, sessionID string) error
}

// EventDeduper is the processed-event-id log backing webhook idempotency.
// Retention is bounded; a miss after expiry is tolerable because Apply's
// writes are absolute-state and therefore idempotent on their own.
type EventDeduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}
