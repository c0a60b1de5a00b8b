package domain

// Payment-provider event types this service acts on. Anything else is
// acknowledged and ignored so the provider's retry policy never fires for
// events we deliberately skip.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)
