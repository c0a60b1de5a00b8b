package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/acqadvantage/assistant-api/internal/api/middleware"
	"github.com/acqadvantage/assistant-api/internal/core/domain"
	"github.com/acqadvantage/assistant-api/internal/core/ports"
)

// ChatHandler exposes the conversation endpoints: thread start/reset and the
// streaming ask operation.
type ChatHandler struct {
	quota   ports.QuotaService
	threads ports.ThreadService
	relay   ports.RelayService
	logger  zerolog.Logger
}

func NewChatHandler(quota ports.QuotaService, threads ports.ThreadService, relay ports.RelayService, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{quota: quota, threads: threads, relay: relay, logger: logger}
}

// Start handles POST /v1/chat/start — resolves (or creates) the caller's
// conversation thread.
//
// @Summary      Start or resume a conversation
// @Tags         chat
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  threadResponse
// @Failure      401  {object}  errorResponse
// @Failure      502  {object}  errorResponse
// @Failure      503  {object}  errorResponse
// @Router       /v1/chat/start [post]
func (h *ChatHandler) Start(c echo.Context) error {
	userID := ctxUserID(c)

	threadID, err := h.threads.ResolveThread(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, threadResponse{ThreadID: threadID})
}

// Reset handles POST /v1/chat/reset — abandons the current thread and
// provisions a fresh one.
//
// @Summary      Reset the conversation
// @Tags         chat
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  threadResponse
// @Failure      401  {object}  errorResponse
// @Failure      502  {object}  errorResponse
// @Failure      503  {object}  errorResponse
// @Router       /v1/chat/reset [post]
func (h *ChatHandler) Reset(c echo.Context) error {
	userID := ctxUserID(c)

	threadID, err := h.threads.ResetThread(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, threadResponse{ThreadID: threadID})
}

// Ask handles POST /v1/chat/ask — checks the daily quota, resolves the
// thread, and streams the turn back as newline-delimited JSON frames.
//
// Quota and identity failures surface before any byte is written. Once the
// stream is open, failures arrive as a terminal {"type":"error"} frame.
//
// @Summary      Ask the assistant a question (streamed)
// @Tags         chat
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      askRequest  true  "The question"
// @Success      200   {object}  streamFrame
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      429   {object}  errorResponse
// @Failure      502   {object}  errorResponse
// @Failure      503   {object}  errorResponse
// @Router       /v1/chat/ask [post]
func (h *ChatHandler) Ask(c echo.Context) error {
	userID := ctxUserID(c)

	var req askRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	decision, err := h.quota.CheckAndConsume(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return domain.ErrQuotaExceeded
	}

	threadID, err := h.threads.ResolveThread(c.Request().Context(), userID)
	if err != nil {
		return err
	}

	// The run outlives a caller disconnect: it proceeds on a detached context
	// (the relay applies its own bounded timeout) and is left to finish
	// server-side. Only writes stop.
	events, err := h.relay.RunTurn(context.WithoutCancel(c.Request().Context()), threadID, req.Prompt)
	if err != nil {
		return err
	}

	return h.stream(c, userID, events)
}

// stream forwards turn events to the caller's open connection, flushing each
// frame. After a failed write the remaining events are drained without
// further writes so the producer can finish.
func (h *ChatHandler) stream(c echo.Context, userID string, events <-chan ports.TurnEvent) error {
	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "application/x-ndjson")
	resp.WriteHeader(http.StatusOK)

	enc := json.NewEncoder(resp)
	var writeErr error

	write := func(frame streamFrame) {
		if writeErr != nil {
			return
		}
		if err := enc.Encode(frame); err != nil {
			writeErr = err
			h.logger.Debug().Err(err).Str("user_id", userID).Msg("caller disconnected mid-stream")
			return
		}
		resp.Flush()
	}

	for ev := range events {
		switch {
		case ev.Err != nil:
			write(streamFrame{Type: "error", Code: errCode(ev.Err)})
		case ev.Result != nil:
			write(streamFrame{Type: "result", Data: json.RawMessage(ev.Result)})
		default:
			write(streamFrame{Type: "delta", Text: ev.Delta})
		}
	}
	return nil
}

// errCode maps stream-terminal failures onto the documented error kinds.
func errCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrAssistantTimeout):
		return "assistant_timeout"
	case errors.Is(err, domain.ErrMalformedAssistantOutput):
		return "malformed_assistant_output"
	case errors.Is(err, domain.ErrAssistantUnavailable):
		return "assistant_unavailable"
	default:
		return "assistant_run_failed"
	}
}

// ctxUserID extracts the identity injected by the Auth middleware. The
// middleware guards every route that reaches here, so an empty value means a
// wiring bug; treat it as unauthorized rather than panicking.
func ctxUserID(c echo.Context) string {
	id, _ := c.Get(middleware.ContextUserID).(string)
	return id
}
