package assistant

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/acqadvantage/assistant-api/internal/core/ports"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:     srv.URL,
		APIKey:      "sk-test",
		AssistantID: "asst_test",
		Timeout:     2 * time.Second,
	}, zerolog.Nop())
}

func writeSSE(w http.ResponseWriter, event, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func drain(t *testing.T, events <-chan ports.RunEvent) []ports.RunEvent {
	t.Helper()
	var out []ports.RunEvent
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			t.Fatalf("stream did not close")
		}
	}
}

func TestClient_CreateThread(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/threads" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("OpenAI-Beta"); got != "assistants=v2" {
			t.Errorf("missing beta header, got %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("missing auth header, got %q", got)
		}
		fmt.Fprint(w, `{"id": "thread_abc", "object": "thread"}`)
	})

	id, err := c.CreateThread(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if id != "thread_abc" {
		t.Errorf("got thread id %q", id)
	}
}

func TestClient_CreateThread_APIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": {"message": "invalid api key", "type": "invalid_request_error"}}`)
	})

	if _, err := c.CreateThread(context.Background()); err == nil || !strings.Contains(err.Error(), "invalid api key") {
		t.Fatalf("expected provider message surfaced, got: %v", err)
	}
}

func TestClient_StreamRun_HappyPath(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/messages"):
			fmt.Fprint(w, `{"id": "msg_1"}`)
		case strings.HasSuffix(r.URL.Path, "/runs"):
			w.Header().Set("Content-Type", "text/event-stream")
			writeSSE(w, "thread.run.created", `{"id": "run_1", "status": "queued"}`)
			writeSSE(w, "thread.message.delta", `{"id": "msg_1", "delta": {"content": [{"type": "text", "text": {"value": "Hello"}}]}}`)
			writeSSE(w, "thread.message.delta", `{"id": "msg_1", "delta": {"content": [{"type": "text", "text": {"value": " world"}}]}}`)
			writeSSE(w, "thread.run.completed", `{"id": "run_1", "status": "completed"}`)
			fmt.Fprint(w, "data: [DONE]\n\n")
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	})

	events, err := c.StreamRun(context.Background(), "thread_abc", "say hello")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	got := drain(t, events)
	if len(got) != 3 {
		t.Fatalf("expected 2 deltas and a completion, got %d: %+v", len(got), got)
	}
	if got[0].Type != ports.RunDelta || got[0].Text != "Hello" {
		t.Errorf("bad first delta: %+v", got[0])
	}
	last := got[2]
	if last.Type != ports.RunCompleted {
		t.Errorf("expected completion, got %+v", last)
	}
	if last.RunID != "run_1" {
		t.Errorf("run id not captured: %q", last.RunID)
	}
}

func TestClient_StreamRun_RunFailed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/messages"):
			fmt.Fprint(w, `{"id": "msg_1"}`)
		case strings.HasSuffix(r.URL.Path, "/runs"):
			w.Header().Set("Content-Type", "text/event-stream")
			writeSSE(w, "thread.run.failed", `{"id": "run_1", "status": "failed", "last_error": {"code": "rate_limit_exceeded", "message": "try later"}}`)
		}
	})

	events, err := c.StreamRun(context.Background(), "thread_abc", "question")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	got := drain(t, events)
	if len(got) != 1 || got[0].Type != ports.RunFailed {
		t.Fatalf("expected single failure event, got %+v", got)
	}
	if got[0].Err == nil || !strings.Contains(got[0].Err.Error(), "rate_limit_exceeded") {
		t.Errorf("provider reason not surfaced: %v", got[0].Err)
	}
}

func TestClient_StreamRun_MessageAppendFails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error": {"message": "thread not found", "type": "invalid_request_error"}}`)
	})

	if _, err := c.StreamRun(context.Background(), "thread_gone", "question"); err == nil {
		t.Fatalf("expected error when message append fails")
	}
}

func TestClient_Ping(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"object": "list", "data": []}`)
	})
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

func TestClient_Ping_Unauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": {"message": "invalid api key"}}`)
	})
	if err := c.Ping(context.Background()); err == nil {
		t.Fatalf("expected error on 401")
	}
}
