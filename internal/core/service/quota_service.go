package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/acqadvantage/assistant-api/internal/api/metrics"
	"github.com/acqadvantage/assistant-api/internal/core/domain"
	"github.com/acqadvantage/assistant-api/internal/core/ports"
)

// DefaultDailyLimit is the free-tier question allowance per calendar day.
const DefaultDailyLimit = 100

// QuotaService enforces the daily question quota against the user store.
type QuotaService struct {
	users  ports.UserRepository
	limit  int
	logger zerolog.Logger
	now    func() time.Time
}

func NewQuotaService(users ports.UserRepository, limit int, logger zerolog.Logger) *QuotaService {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	return &QuotaService{users: users, limit: limit, logger: logger, now: time.Now}
}

// CheckAndConsume implements ports.QuotaService.
//
// The counter reset is lazy: the first access after a UTC day boundary zeroes
// the counter before the limit is evaluated, so count=limit yesterday still
// admits the first call today. Two concurrent requests for the same user can
// race on the read-increment-write cycle and over-admit by one; the store
// offers no conditional increment and the design accepts that race rather
// than serializing quota checks.
func (s *QuotaService) CheckAndConsume(ctx context.Context, userID string) (*ports.QuotaDecision, error) {
	user, err := s.users.FindOrCreate(ctx, userID)
	if err != nil {
		// Fail closed: a request must never be admitted on a store error.
		return nil, fmt.Errorf("quota read: %w", err)
	}

	today := s.now().UTC().Format(domain.DateLayout)

	count := user.QuestionsAskedToday
	if user.LastResetDate != today {
		count = 0
	}

	if user.Unlimited() {
		// Paying tier: no limit check, but the counter still advances so the
		// reset-date bookkeeping stays consistent if the subscription lapses.
		if err := s.persist(ctx, userID, count+1, today); err != nil {
			return nil, err
		}
		metrics.QuotaDecisionsTotal.WithLabelValues("unlimited").Inc()
		return &ports.QuotaDecision{Allowed: true, Remaining: -1}, nil
	}

	if count >= s.limit {
		metrics.QuotaDecisionsTotal.WithLabelValues("denied").Inc()
		s.logger.Debug().Str("user_id", userID).Int("count", count).Msg("quota denied")
		return &ports.QuotaDecision{Allowed: false, Remaining: 0}, nil
	}

	if err := s.persist(ctx, userID, count+1, today); err != nil {
		return nil, err
	}

	metrics.QuotaDecisionsTotal.WithLabelValues("allowed").Inc()
	return &ports.QuotaDecision{Allowed: true, Remaining: s.limit - count - 1}, nil
}

func (s *QuotaService) persist(ctx context.Context, userID string, count int, today string) error {
	err := s.users.Update(ctx, userID, ports.UserUpdate{
		QuestionsAskedToday: ports.IntPtr(count),
		LastResetDate:       ports.StrPtr(today),
	})
	if err != nil {
		return fmt.Errorf("quota write: %w", err)
	}
	return nil
}
