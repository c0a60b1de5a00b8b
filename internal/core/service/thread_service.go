package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/acqadvantage/assistant-api/internal/api/metrics"
	"github.com/acqadvantage/assistant-api/internal/core/domain"
	"github.com/acqadvantage/assistant-api/internal/core/ports"
)

// ThreadService maps user identities to assistant threads. All
// thread-identifier mutation for one user happens under a per-user lock, so
// two concurrent resolves create exactly one thread and a reset cannot
// interleave with a resolve. Different users never contend.
type ThreadService struct {
	users     ports.UserRepository
	assistant ports.AssistantClient
	logger    zerolog.Logger

	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	sync.Mutex
	refs int
}

func NewThreadService(users ports.UserRepository, assistant ports.AssistantClient, logger zerolog.Logger) *ThreadService {
	return &ThreadService{
		users:     users,
		assistant: assistant,
		logger:    logger,
		locks:     make(map[string]*userLock),
	}
}

// ResolveThread implements ports.ThreadService. A stored thread id is trusted
// and returned without probing the assistant service.
func (s *ThreadService) ResolveThread(ctx context.Context, userID string) (string, error) {
	unlock := s.lock(userID)
	defer unlock()

	user, err := s.users.FindOrCreate(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("resolve thread: %w", err)
	}
	if user.ThreadID != "" {
		return user.ThreadID, nil
	}

	return s.create(ctx, userID, "resolve")
}

// ResetThread implements ports.ThreadService. The prior thread, if any, is
// abandoned server-side; only the stored id is replaced.
func (s *ThreadService) ResetThread(ctx context.Context, userID string) (string, error) {
	unlock := s.lock(userID)
	defer unlock()

	return s.create(ctx, userID, "reset")
}

// create provisions a new thread and persists its id. Nothing is persisted
// when the remote create fails, so a failed call leaves no partial state.
func (s *ThreadService) create(ctx context.Context, userID, reason string) (string, error) {
	threadID, err := s.assistant.CreateThread(ctx)
	if err != nil {
		return "", fmt.Errorf("create thread: %w: %v", domain.ErrAssistantUnavailable, err)
	}

	if err := s.users.Update(ctx, userID, ports.UserUpdate{ThreadID: ports.StrPtr(threadID)}); err != nil {
		return "", fmt.Errorf("persist thread id: %w", err)
	}

	metrics.ThreadsCreatedTotal.WithLabelValues(reason).Inc()
	s.logger.Info().Str("user_id", userID).Str("thread_id", threadID).Str("reason", reason).Msg("thread created")
	return threadID, nil
}

// lock acquires the per-user critical section and returns its release func.
// Entries are reference-counted so the map does not grow with the user
// population.
func (s *ThreadService) lock(userID string) func() {
	s.mu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &userLock{}
		s.locks[userID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, userID)
		}
		s.mu.Unlock()
	}
}
