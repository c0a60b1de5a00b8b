package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/acqadvantage/assistant-api/internal/api/metrics"
	"github.com/acqadvantage/assistant-api/internal/core/domain"
	"github.com/acqadvantage/assistant-api/internal/core/ports"
)

// BillingConfig carries the Stripe settings the billing service needs.
type BillingConfig struct {
	WebhookSecret string
	PriceMonthly  string
	PriceAnnual   string
	SuccessURL    string
	CancelURL     string
}

// BillingService reconciles Stripe state into user records and starts
// checkout flows. Webhook verification and decoding are delegated to the
// Stripe library; the HMAC comparison inside it is constant-time.
type BillingService struct {
	users  ports.UserRepository
	dedup  ports.EventDeduper
	cfg    BillingConfig
	logger zerolog.Logger
}

func NewBillingService(users ports.UserRepository, dedup ports.EventDeduper, cfg BillingConfig, logger zerolog.Logger) *BillingService {
	return &BillingService{users: users, dedup: dedup, cfg: cfg, logger: logger}
}

// ParseEvent implements ports.BillingService. Any verification or decoding
// failure collapses into domain.ErrInvalidSignature; this endpoint is
// reachable by arbitrary network input.
func (s *BillingService) ParseEvent(payload []byte, sigHeader string) (*ports.PaymentEventInput, error) {
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, s.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "rejected").Inc()
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}

	in := &ports.PaymentEventInput{EventID: event.ID, Type: string(event.Type)}

	switch event.Type {
	case domain.EventCheckoutCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("%w: bad session payload: %v", domain.ErrInvalidSignature, err)
		}
		in.Recognized = true
		in.CorrelationID = sess.ClientReferenceID
		in.Plan = planFromMetadata(sess.Metadata)
		in.Status = domain.SubscriptionActive
		if sess.Customer != nil {
			in.CustomerID = sess.Customer.ID
		}
		if sess.Subscription != nil {
			in.SubscriptionID = sess.Subscription.ID
		}

	case domain.EventSubscriptionUpdated, domain.EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: bad subscription payload: %v", domain.ErrInvalidSignature, err)
		}
		in.Recognized = true
		in.SubscriptionID = sub.ID
		if sub.Customer != nil {
			in.CustomerID = sub.Customer.ID
		}
		if event.Type == domain.EventSubscriptionDeleted {
			in.Status = domain.SubscriptionCanceled
		} else {
			in.Status = mapSubscriptionStatus(sub.Status)
			in.Plan = s.planFromSubscription(&sub)
		}

	default:
		// Acknowledged but not acted on; the provider must not retry these.
		in.Recognized = false
	}

	return in, nil
}

// Apply implements ports.BillingService. All writes set absolute target
// state, so redelivering an event — with or without a dedup-log hit —
// converges on the same user record.
func (s *BillingService) Apply(ctx context.Context, event *ports.PaymentEventInput) error {
	if !event.Recognized {
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, "ignored").Inc()
		s.logger.Debug().Str("event_id", event.EventID).Str("type", event.Type).Msg("unrecognized payment event acknowledged")
		return nil
	}

	seen, err := s.dedup.Seen(ctx, event.EventID)
	if err != nil {
		// Degrade to the absolute-state idempotency guarantee.
		s.logger.Warn().Err(err).Str("event_id", event.EventID).Msg("dedup check failed, processing anyway")
	} else if seen {
		metrics.WebhookDedupTotal.WithLabelValues("hit").Inc()
		s.logger.Debug().Str("event_id", event.EventID).Msg("duplicate payment event skipped")
		return nil
	}
	metrics.WebhookDedupTotal.WithLabelValues("miss").Inc()

	user, err := s.resolveUser(ctx, event)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			// Retrying cannot fix an unknown user; acknowledge, but make the
			// loss visible to monitoring.
			metrics.WebhookEventsTotal.WithLabelValues(event.Type, "unresolved").Inc()
			s.logger.Warn().
				Str("event_id", event.EventID).
				Str("type", event.Type).
				Str("customer_id", event.CustomerID).
				Str("correlation_id", event.CorrelationID).
				Msg("payment event for unresolvable user acknowledged")
			return nil
		}
		return fmt.Errorf("resolve payment event user: %w", err)
	}

	upd := ports.UserUpdate{SubscriptionStatus: ports.StatusPtr(event.Status)}
	if event.Plan != "" {
		upd.SubscriptionPlan = ports.PlanPtr(event.Plan)
	}
	if event.CustomerID != "" && user.StripeCustomerID != event.CustomerID {
		upd.StripeCustomerID = ports.StrPtr(event.CustomerID)
	}

	if err := s.users.Update(ctx, user.ID, upd); err != nil {
		return fmt.Errorf("apply payment event: %w", err)
	}

	if markErr := s.dedup.Mark(ctx, event.EventID); markErr != nil {
		s.logger.Warn().Err(markErr).Str("event_id", event.EventID).Msg("failed to mark event processed")
	}

	metrics.WebhookEventsTotal.WithLabelValues(event.Type, "applied").Inc()
	s.logger.Info().
		Str("event_id", event.EventID).
		Str("type", event.Type).
		Str("user_id", user.ID).
		Str("status", string(event.Status)).
		Msg("payment event applied")
	return nil
}

// resolveUser finds the target user via the stored customer id, falling back
// to the correlation token carried through checkout metadata.
func (s *BillingService) resolveUser(ctx context.Context, event *ports.PaymentEventInput) (*domain.User, error) {
	if event.CustomerID != "" {
		user, err := s.users.FindByStripeCustomer(ctx, event.CustomerID)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
	}
	if event.CorrelationID != "" {
		return s.users.FindOrCreate(ctx, event.CorrelationID)
	}
	return nil, domain.ErrUserNotFound
}

// CreateCheckoutSession implements ports.BillingService. The user id rides
// along as both client reference and metadata so the completion event can be
// correlated even before a customer id is stored.
func (s *BillingService) CreateCheckoutSession(ctx context.Context, userID string, plan domain.SubscriptionPlan) (string, error) {
	priceID, err := s.priceFor(plan)
	if err != nil {
		return "", err
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(s.cfg.SuccessURL),
		CancelURL:         stripe.String(s.cfg.CancelURL),
		ClientReferenceID: stripe.String(userID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
	}
	params.Context = ctx
	params.AddMetadata("plan", string(plan))
	params.AddMetadata("user_id", userID)

	sess, err := session.New(params)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("plan", string(plan)).Msg("checkout session create failed")
		return "", fmt.Errorf("create checkout session: %w", err)
	}

	s.logger.Info().Str("user_id", userID).Str("plan", string(plan)).Str("session_id", sess.ID).Msg("checkout session created")
	return sess.URL, nil
}

// VerifySession implements ports.BillingService: the post-redirect
// double-check that a checkout really completed before access is granted.
func (s *BillingService) VerifySession(ctx context.Context, sessionID string) error {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := session.Get(sessionID, params)
	if err != nil {
		return fmt.Errorf("retrieve checkout session: %w", err)
	}

	if sess.Status != stripe.CheckoutSessionStatusComplete || sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return fmt.Errorf("%w: session %s not paid", domain.ErrInvalidPlan, sessionID)
	}
	if sess.ClientReferenceID == "" {
		return domain.ErrUserNotFound
	}

	event := &ports.PaymentEventInput{
		EventID:       "verify:" + sess.ID,
		Type:          domain.EventCheckoutCompleted,
		CorrelationID: sess.ClientReferenceID,
		Plan:          planFromMetadata(sess.Metadata),
		Status:        domain.SubscriptionActive,
		Recognized:    true,
	}
	if sess.Customer != nil {
		event.CustomerID = sess.Customer.ID
	}
	if sess.Subscription != nil {
		event.SubscriptionID = sess.Subscription.ID
	}
	return s.Apply(ctx, event)
}

func (s *BillingService) priceFor(plan domain.SubscriptionPlan) (string, error) {
	switch plan {
	case domain.PlanMonthly:
		return s.cfg.PriceMonthly, nil
	case domain.PlanAnnual:
		return s.cfg.PriceAnnual, nil
	default:
		return "", domain.ErrInvalidPlan
	}
}

// planFromSubscription recovers the plan from subscription metadata, falling
// back to matching the line-item price against the configured price ids.
func (s *BillingService) planFromSubscription(sub *stripe.Subscription) domain.SubscriptionPlan {
	if p := planFromMetadata(sub.Metadata); p != "" {
		return p
	}
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item.Price == nil {
				continue
			}
			switch item.Price.ID {
			case s.cfg.PriceMonthly:
				return domain.PlanMonthly
			case s.cfg.PriceAnnual:
				return domain.PlanAnnual
			}
		}
	}
	return ""
}

func planFromMetadata(md map[string]string) domain.SubscriptionPlan {
	if p := domain.SubscriptionPlan(md["plan"]); domain.ValidPlan(p) {
		return p
	}
	return ""
}

func mapSubscriptionStatus(st stripe.SubscriptionStatus) domain.SubscriptionStatus {
	switch st {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return domain.SubscriptionActive
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return domain.SubscriptionPastDue
	default:
		return domain.SubscriptionCanceled
	}
}
