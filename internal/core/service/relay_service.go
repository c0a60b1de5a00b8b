package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/acqadvantage/assistant-api/internal/api/metrics"
	"github.com/acqadvantage/assistant-api/internal/core/domain"
	"github.com/acqadvantage/assistant-api/internal/core/ports"
)

const defaultRunTimeout = 90 * time.Second

// RelayService drives one assistant turn: it forwards provider text deltas to
// the caller as they arrive, accumulates the full output, and extracts the
// structured result once the run terminates. It never retries a run.
type RelayService struct {
	assistant  ports.AssistantClient
	runTimeout time.Duration
	logger     zerolog.Logger
}

func NewRelayService(assistant ports.AssistantClient, runTimeout time.Duration, logger zerolog.Logger) *RelayService {
	if runTimeout <= 0 {
		runTimeout = defaultRunTimeout
	}
	return &RelayService{assistant: assistant, runTimeout: runTimeout, logger: logger}
}

// RunTurn implements ports.RelayService. The returned channel carries each
// delta as received and is closed after exactly one terminal event. The
// bounded run timeout guards against indefinite worker occupation; the
// caller's disconnect does not cancel the run (the caller passes a context
// detached from its connection).
func (s *RelayService) RunTurn(ctx context.Context, threadID, prompt string) (<-chan ports.TurnEvent, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)

	events, err := s.assistant.StreamRun(runCtx, threadID, prompt)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", domain.ErrAssistantUnavailable, err)
	}

	metrics.TurnsStartedTotal.Inc()
	out := make(chan ports.TurnEvent)
	go func() {
		defer close(out)
		defer cancel()
		s.consume(runCtx, events, out, threadID)
	}()
	return out, nil
}

func (s *RelayService) consume(ctx context.Context, events <-chan ports.RunEvent, out chan<- ports.TurnEvent, threadID string) {
	started := time.Now()
	var full strings.Builder
	var runID string

	terminal := func(ev ports.TurnEvent, outcome string) {
		ev.RunID = runID
		out <- ev
		metrics.TurnDuration.WithLabelValues(outcome).Observe(time.Since(started).Seconds())
	}

	for {
		select {
		case <-ctx.Done():
			// Bounded wait exhausted while the provider was still streaming.
			s.logger.Warn().Str("thread_id", threadID).Str("run_id", runID).Msg("assistant run timed out")
			terminal(ports.TurnEvent{Err: domain.ErrAssistantTimeout}, "timeout")
			return

		case ev, ok := <-events:
			if !ok {
				// Stream ended without a terminal marker: treat as a provider
				// failure rather than guessing at completeness.
				terminal(ports.TurnEvent{Err: domain.ErrAssistantRunFailed}, "failed")
				return
			}
			if ev.RunID != "" {
				runID = ev.RunID
			}

			switch ev.Type {
			case ports.RunDelta:
				full.WriteString(ev.Text)
				out <- ports.TurnEvent{Delta: ev.Text, RunID: runID}

			case ports.RunFailed:
				if ev.Err != nil {
					s.logger.Error().Err(ev.Err).Str("thread_id", threadID).Str("run_id", runID).Msg("assistant run failed")
				}
				terminal(ports.TurnEvent{Err: domain.ErrAssistantRunFailed}, "failed")
				return

			case ports.RunCompleted:
				result, err := ExtractStructured(full.String())
				if err != nil {
					if errors.Is(err, domain.ErrMalformedAssistantOutput) {
						s.logger.Warn().Str("thread_id", threadID).Str("run_id", runID).Int("output_len", full.Len()).Msg("no structured object in assistant output")
					}
					terminal(ports.TurnEvent{Err: err}, "malformed")
					return
				}
				terminal(ports.TurnEvent{Result: result}, "completed")
				return
			}
		}
	}
}
