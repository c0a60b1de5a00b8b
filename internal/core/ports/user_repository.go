package ports

import (
	"context"

	"github.com/acqadvantage/assistant-api/internal/core/domain"
)

// UserUpdate is a partial update of a User record. Only non-nil fields are
// written; the store applies them as a single last-write-wins document
// update (no multi-field transaction is available or assumed).
type UserUpdate struct {
	ThreadID            *string
	QuestionsAskedToday *int
	LastResetDate       *string
	SubscriptionStatus  *domain.SubscriptionStatus
	SubscriptionPlan    *domain.SubscriptionPlan
	StripeCustomerID    *string
}

// UserRepository is the adapter over the remote user store.
//
// Implementations wrap connectivity failures in domain.ErrStoreUnavailable so
// callers can fail closed without inspecting driver errors.
type UserRepository interface {
	// FindOrCreate returns the record for id, creating a zero-valued free-tier
	// record on first access.
	FindOrCreate(ctx context.Context, id string) (*domain.User, error)
	// Update applies the non-nil fields of upd to the record for id.
	Update(ctx context.Context, id string, upd UserUpdate) error
	// FindByStripeCustomer resolves a user from the payment provider's
	// customer id. Returns domain.ErrUserNotFound when no record matches.
	FindByStripeCustomer(ctx context.Context, customerID string) (*domain.User, error)
}

// StrPtr, IntPtr and friends keep UserUpdate call sites readable.
func StrPtr(s string) *string                                  { return &s }
func IntPtr(i int) *int                                        { return &i }
func StatusPtr(s domain.SubscriptionStatus) *domain.SubscriptionStatus { return &s }
func PlanPtr(p domain.SubscriptionPlan) *domain.SubscriptionPlan       { return &p }
