package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/acqadvantage/assistant-api/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors. Code is a
// stable machine-readable kind; clients key retry behavior on it.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps every domain sentinel to its documented status/code pair.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "...", "code": "..."}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, code, msg := resolveError(err, log, c)
		_ = c.JSON(status, errorResponse{Error: msg, Code: code})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string, string) {
	// Echo's own errors (bind failures, 404 from router, auth middleware).
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code := "bad_request"
		if he.Code == http.StatusUnauthorized {
			code = "unauthorized"
		}
		return he.Code, code, fmt.Sprintf("%v", he.Message)
	}

	// Domain sentinels → deterministic status/code pairs (design §7).
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized", "missing or invalid identity"
	case errors.Is(err, domain.ErrQuotaExceeded):
		return http.StatusTooManyRequests, "quota_exceeded", "daily question limit reached"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "store_unavailable", "user store unavailable"
	case errors.Is(err, domain.ErrAssistantUnavailable):
		return http.StatusBadGateway, "assistant_unavailable", "assistant service unavailable"
	case errors.Is(err, domain.ErrAssistantRunFailed):
		return http.StatusBadGateway, "assistant_run_failed", "assistant run failed"
	case errors.Is(err, domain.ErrAssistantTimeout):
		return http.StatusGatewayTimeout, "assistant_timeout", "assistant run timed out"
	case errors.Is(err, domain.ErrMalformedAssistantOutput):
		return http.StatusBadGateway, "malformed_assistant_output", "assistant produced no structured result"
	case errors.Is(err, domain.ErrInvalidSignature):
		return http.StatusBadRequest, "invalid_signature", "signature verification failed"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "user_not_found", "user not found"
	case errors.Is(err, domain.ErrInvalidPlan):
		return http.StatusBadRequest, "invalid_plan", "invalid subscription plan"
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal", "internal server error"
}
