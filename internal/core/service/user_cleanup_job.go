package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/jewel-store/internal/port"
)

const UnverifiedUserMaxAge = 24 * time.Hour

// UnverifiedUserCleaner deletes accounts that never completed verification.
// Related records are not touched; unverified users are expected to have none.
type UnverifiedUserCleaner struct {
	users  port.UserRepository
	maxAge time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func NewUnverifiedUserCleaner(users port.UserRepository, logger *zap.Logger) *UnverifiedUserCleaner {
	return &UnverifiedUserCleaner{
		users:  users,
		maxAge: UnverifiedUserMaxAge,
		logger: logger,
		now:    time.Now,
	}
}

func (j *UnverifiedUserCleaner) Run(ctx context.Context) (int64, error) {
	cutoff := j.now().UTC().Add(-j.maxAge)

	deleted, err := j.users.DeleteUnverifiedBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete unverified users: %w", err)
	}

	j.logger.Info("unverified user cleanup finished",
		zap.Int64("deleted", deleted),
		zap.Time("cutoff", cutoff),
	)
	return deleted, nil
}
