package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/acqadvantage/assistant-api/internal/core/domain"
	"github.com/acqadvantage/assistant-api/internal/core/ports"
)

// scriptedAssistant feeds a fixed sequence of run events to the relay.
func scriptedAssistant(events ...ports.RunEvent) *stubAssistant {
	return &stubAssistant{
		streamFn: func(ctx context.Context, _, _ string) (<-chan ports.RunEvent, error) {
			ch := make(chan ports.RunEvent)
			go func() {
				defer close(ch)
				for _, ev := range events {
					select {
					case ch <- ev:
					case <-ctx.Done():
						return
					}
				}
			}()
			return ch, nil
		},
	}
}

func collect(t *testing.T, events <-chan ports.TurnEvent) []ports.TurnEvent {
	t.Helper()
	var out []ports.TurnEvent
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			t.Fatalf("stream did not terminate")
		}
	}
}

func TestRelayService_DeltasThenResult(t *testing.T) {
	assistant := scriptedAssistant(
		ports.RunEvent{Type: ports.RunDelta, Text: "Here you go:\n", RunID: "run_1"},
		ports.RunEvent{Type: ports.RunDelta, Text: "```json\n{\"answer\": "},
		ports.RunEvent{Type: ports.RunDelta, Text: "42}\n```"},
		ports.RunEvent{Type: ports.RunCompleted},
	)
	svc := NewRelayService(assistant, time.Second, zerolog.Nop())

	events, err := svc.RunTurn(context.Background(), "thread_1", "what is the answer")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	got := collect(t, events)
	if len(got) != 4 {
		t.Fatalf("expected 3 deltas and a result, got %d events: %+v", len(got), got)
	}

	var text strings.Builder
	for _, ev := range got[:3] {
		if ev.Err != nil || ev.Result != nil {
			t.Fatalf("expected delta, got %+v", ev)
		}
		text.WriteString(ev.Delta)
	}
	if !strings.Contains(text.String(), "answer") {
		t.Errorf("deltas not forwarded verbatim: %q", text.String())
	}

	last := got[3]
	if last.Err != nil {
		t.Fatalf("expected result, got error: %v", last.Err)
	}
	if string(last.Result) != `{"answer": 42}` {
		t.Errorf("got result %q", last.Result)
	}
	if last.RunID != "run_1" {
		t.Errorf("run id not carried to terminal event: %q", last.RunID)
	}
}

func TestRelayService_NoStructuredOutput(t *testing.T) {
	assistant := scriptedAssistant(
		ports.RunEvent{Type: ports.RunDelta, Text: "I cannot answer that in the requested format."},
		ports.RunEvent{Type: ports.RunCompleted},
	)
	svc := NewRelayService(assistant, time.Second, zerolog.Nop())

	events, err := svc.RunTurn(context.Background(), "thread_1", "question")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	got := collect(t, events)
	last := got[len(got)-1]
	if !errors.Is(last.Err, domain.ErrMalformedAssistantOutput) {
		t.Errorf("expected ErrMalformedAssistantOutput, got: %v", last.Err)
	}
}

func TestRelayService_RunFailure(t *testing.T) {
	assistant := scriptedAssistant(
		ports.RunEvent{Type: ports.RunDelta, Text: "partial"},
		ports.RunEvent{Type: ports.RunFailed, Err: errors.New("rate limited")},
	)
	svc := NewRelayService(assistant, time.Second, zerolog.Nop())

	events, err := svc.RunTurn(context.Background(), "thread_1", "question")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	got := collect(t, events)
	last := got[len(got)-1]
	if !errors.Is(last.Err, domain.ErrAssistantRunFailed) {
		t.Errorf("expected ErrAssistantRunFailed, got: %v", last.Err)
	}
}

func TestRelayService_StreamEndsWithoutTerminal(t *testing.T) {
	assistant := scriptedAssistant(
		ports.RunEvent{Type: ports.RunDelta, Text: "partial"},
	)
	svc := NewRelayService(assistant, time.Second, zerolog.Nop())

	events, err := svc.RunTurn(context.Background(), "thread_1", "question")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	got := collect(t, events)
	last := got[len(got)-1]
	if !errors.Is(last.Err, domain.ErrAssistantRunFailed) {
		t.Errorf("expected ErrAssistantRunFailed on truncated stream, got: %v", last.Err)
	}
}

func TestRelayService_Timeout(t *testing.T) {
	// Provider streams one delta, then stalls forever.
	assistant := &stubAssistant{
		streamFn: func(ctx context.Context, _, _ string) (<-chan ports.RunEvent, error) {
			ch := make(chan ports.RunEvent)
			go func() {
				select {
				case ch <- ports.RunEvent{Type: ports.RunDelta, Text: "thinking"}:
				case <-ctx.Done():
				}
				<-ctx.Done() // never send a terminal event
			}()
			return ch, nil
		},
	}
	svc := NewRelayService(assistant, 50*time.Millisecond, zerolog.Nop())

	events, err := svc.RunTurn(context.Background(), "thread_1", "question")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	got := collect(t, events)
	last := got[len(got)-1]
	if !errors.Is(last.Err, domain.ErrAssistantTimeout) {
		t.Errorf("expected ErrAssistantTimeout, got: %v", last.Err)
	}
}

func TestRelayService_StartFailure(t *testing.T) {
	assistant := &stubAssistant{
		streamFn: func(context.Context, string, string) (<-chan ports.RunEvent, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := NewRelayService(assistant, time.Second, zerolog.Nop())

	if _, err := svc.RunTurn(context.Background(), "thread_1", "question"); !errors.Is(err, domain.ErrAssistantUnavailable) {
		t.Fatalf("expected ErrAssistantUnavailable, got: %v", err)
	}
}
