package handler

type checkoutRequest struct {
	Plan string `json:"plan" validate:"required,oneof=monthly annual"`
}

type checkoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
}

type verifyRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

type statusResponse struct {
	Status string `json:"status"`
}
