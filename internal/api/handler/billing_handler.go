package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/acqadvantage/assistant-api/internal/core/domain"
	"github.com/acqadvantage/assistant-api/internal/core/ports"
	"github.com/acqadvantage/assistant-api/internal/infrastructure/queue"
)

// maxWebhookBody bounds how much of an inbound webhook payload is read.
// Stripe events are a few KB; anything larger is not a legitimate event.
const maxWebhookBody = 64 << 10

// BillingHandler exposes checkout, session verification, and the provider
// webhook endpoint.
type BillingHandler struct {
	billing    ports.BillingService
	dispatcher *queue.Dispatcher
	logger     zerolog.Logger
}

func NewBillingHandler(billing ports.BillingService, dispatcher *queue.Dispatcher, logger zerolog.Logger) *BillingHandler {
	return &BillingHandler{billing: billing, dispatcher: dispatcher, logger: logger}
}

// Checkout handles POST /v1/billing/checkout — starts a hosted checkout for
// the requested plan and returns the payment page URL.
//
// @Summary      Start a subscription checkout
// @Tags         billing
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      checkoutRequest  true  "Plan to subscribe to"
// @Success      200   {object}  checkoutResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      502   {object}  errorResponse
// @Router       /v1/billing/checkout [post]
func (h *BillingHandler) Checkout(c echo.Context) error {
	userID := ctxUserID(c)

	var req checkoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	plan := domain.SubscriptionPlan(req.Plan)
	if !domain.ValidPlan(plan) {
		return domain.ErrInvalidPlan
	}

	url, err := h.billing.CreateCheckoutSession(c.Request().Context(), userID, plan)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, checkoutResponse{CheckoutURL: url})
}

// Verify handles POST /v1/billing/verify — confirms a completed checkout
// session and activates the subscription it paid for. Covers the window
// where the client returns from checkout before the webhook lands.
//
// @Summary      Verify a completed checkout session
// @Tags         billing
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      verifyRequest  true  "Checkout session id"
// @Success      200   {object}  statusResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      502   {object}  errorResponse
// @Router       /v1/billing/verify [post]
func (h *BillingHandler) Verify(c echo.Context) error {
	var req verifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.billing.VerifySession(c.Request().Context(), req.SessionID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statusResponse{Status: "active"})
}

// Webhook handles POST /webhooks/stripe. Signature verification happens
// synchronously; the state transition is enqueued so the provider gets its
// ack without waiting on store writes. Unsigned or tampered payloads are the
// only rejection path.
//
// @Summary      Stripe webhook receiver
// @Tags         billing
// @Accept       json
// @Produce      json
// @Success      200  {object}  statusResponse
// @Failure      400  {object}  errorResponse
// @Router       /webhooks/stripe [post]
func (h *BillingHandler) Webhook(c echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable payload")
	}

	event, err := h.billing.ParseEvent(payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		return err
	}

	h.dispatcher.Enqueue(event)
	return c.JSON(http.StatusOK, statusResponse{Status: "ok"})
}
