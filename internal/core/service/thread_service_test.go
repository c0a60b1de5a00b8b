package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/acqadvantage/assistant-api/internal/core/domain"
	"github.com/acqadvantage/assistant-api/internal/core/ports"
)

// stubAssistant is an in-memory ports.AssistantClient. CreateThread mints a
// fresh id per call; an optional delay widens race windows in concurrency
// tests.
type stubAssistant struct {
	createErr   error
	createDelay time.Duration
	createCalls atomic.Int64

	streamFn func(ctx context.Context, threadID, prompt string) (<-chan ports.RunEvent, error)
}

func (a *stubAssistant) CreateThread(_ context.Context) (string, error) {
	if a.createDelay > 0 {
		time.Sleep(a.createDelay)
	}
	if a.createErr != nil {
		return "", a.createErr
	}
	a.createCalls.Add(1)
	return "thread_" + uuid.NewString(), nil
}

func (a *stubAssistant) StreamRun(ctx context.Context, threadID, prompt string) (<-chan ports.RunEvent, error) {
	if a.streamFn != nil {
		return a.streamFn(ctx, threadID, prompt)
	}
	return nil, errors.New("not implemented")
}

func (a *stubAssistant) Ping(_ context.Context) error { return nil }

func TestThreadService_Resolve_StableAcrossCalls(t *testing.T) {
	repo := newStubUserRepo()
	assistant := &stubAssistant{}
	svc := NewThreadService(repo, assistant, zerolog.Nop())

	first, err := svc.ResolveThread(context.Background(), "user_1")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if first == "" {
		t.Fatalf("expected a thread id")
	}

	second, err := svc.ResolveThread(context.Background(), "user_1")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if second != first {
		t.Errorf("resolve must be stable, got %q then %q", first, second)
	}
	if n := assistant.createCalls.Load(); n != 1 {
		t.Errorf("expected exactly one remote create, got %d", n)
	}
}

func TestThreadService_Reset_ReplacesThread(t *testing.T) {
	repo := newStubUserRepo()
	assistant := &stubAssistant{}
	svc := NewThreadService(repo, assistant, zerolog.Nop())

	first, err := svc.ResolveThread(context.Background(), "user_1")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	fresh, err := svc.ResetThread(context.Background(), "user_1")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if fresh == first {
		t.Errorf("reset must provision a new thread, got same id %q", fresh)
	}
	if got := repo.get("user_1").ThreadID; got != fresh {
		t.Errorf("stored id %q does not match returned id %q", got, fresh)
	}

	resolved, err := svc.ResolveThread(context.Background(), "user_1")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if resolved != fresh {
		t.Errorf("resolve after reset returned %q, want %q", resolved, fresh)
	}
}

func TestThreadService_ConcurrentResolves_SingleCreate(t *testing.T) {
	repo := newStubUserRepo()
	assistant := &stubAssistant{createDelay: 10 * time.Millisecond}
	svc := NewThreadService(repo, assistant, zerolog.Nop())

	const callers = 8
	results := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.ResolveThread(context.Background(), "user_1")
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if results[i] != results[0] {
			t.Errorf("caller %d got %q, want %q", i, results[i], results[0])
		}
	}
	if n := assistant.createCalls.Load(); n != 1 {
		t.Errorf("expected exactly one remote create under contention, got %d", n)
	}
}

func TestThreadService_CreateFailure_LeavesNoState(t *testing.T) {
	repo := newStubUserRepo()
	assistant := &stubAssistant{createErr: errors.New("upstream 500")}
	svc := NewThreadService(repo, assistant, zerolog.Nop())

	_, err := svc.ResolveThread(context.Background(), "user_1")
	if err == nil {
		t.Fatalf("expected error when remote create fails")
	}
	if !errors.Is(err, domain.ErrAssistantUnavailable) {
		t.Errorf("expected ErrAssistantUnavailable, got: %v", err)
	}
	if got := repo.get("user_1").ThreadID; got != "" {
		t.Errorf("failed create must not persist a thread id, got %q", got)
	}
}

func TestThreadService_ResetFailure_Sentinel(t *testing.T) {
	repo := newStubUserRepo()
	assistant := &stubAssistant{createErr: errors.New("upstream 500")}
	svc := NewThreadService(repo, assistant, zerolog.Nop())

	if _, err := svc.ResetThread(context.Background(), "user_1"); !errors.Is(err, domain.ErrAssistantUnavailable) {
		t.Fatalf("expected ErrAssistantUnavailable, got: %v", err)
	}
}
