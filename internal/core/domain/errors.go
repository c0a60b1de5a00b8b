package domain

import "errors"

// Sentinel errors. Every externally visible failure maps to exactly one of
// these; the HTTP layer translates them into stable status/code pairs.
var (
	ErrUnauthorized             = errors.New("missing or invalid identity")
	ErrQuotaExceeded            = errors.New("daily question limit reached")
	ErrStoreUnavailable         = errors.New("user store unavailable")
	ErrAssistantUnavailable     = errors.New("assistant service unavailable")
	ErrAssistantRunFailed       = errors.New("assistant run failed")
	ErrAssistantTimeout         = errors.New("assistant run timed out")
	ErrMalformedAssistantOutput = errors.New("no structured object in assistant output")
	ErrInvalidSignature         = errors.New("webhook signature verification failed")
	ErrUserNotFound             = errors.New("user not found")
	ErrInvalidPlan              = errors.New("invalid subscription plan")
)
