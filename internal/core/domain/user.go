package domain

import "time"

// SubscriptionStatus is the billing state of a user, as last reported by the
// payments provider.
type SubscriptionStatus string

const (
	SubscriptionFree     SubscriptionStatus = "free"
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// SubscriptionPlan identifies which paid plan, if any, the user is on.
type SubscriptionPlan string

const (
	PlanNone    SubscriptionPlan = "none"
	PlanMonthly SubscriptionPlan = "monthly"
	PlanAnnual  SubscriptionPlan = "annual"
)

// ValidPlan reports whether p is a purchasable plan.
func ValidPlan(p SubscriptionPlan) bool {
	return p == PlanMonthly || p == PlanAnnual
}

// DateLayout is the calendar-date format used for LastResetDate. Day
// boundaries are evaluated in UTC, so two dates compare correctly as plain
// strings.
const DateLayout = "2006-01-02"

// User is the durable record kept per identity in the user store. Identities
// are issued externally; a record is created implicitly on first
// authenticated request and never deleted by this service.
type User struct {
	ID                  string             `json:"id" bson:"_id"`
	ThreadID            string             `json:"thread_id,omitempty" bson:"thread_id,omitempty"`
	QuestionsAskedToday int                `json:"questions_asked_today" bson:"questions_asked_today"`
	LastResetDate       string             `json:"last_reset_date,omitempty" bson:"last_reset_date,omitempty"`
	SubscriptionStatus  SubscriptionStatus `json:"subscription_status" bson:"subscription_status"`
	SubscriptionPlan    SubscriptionPlan   `json:"subscription_plan" bson:"subscription_plan"`
	StripeCustomerID    string             `json:"-" bson:"stripe_customer_id,omitempty"`
	CreatedAt           time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at" bson:"updated_at"`
}

// Unlimited reports whether the user's tier bypasses the daily quota.
func (u *User) Unlimited() bool {
	return u.SubscriptionStatus == SubscriptionActive
}
