package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/scanmarket-backend/pkg/logger"
	"github.com/angelmondragon/scanmarket-backend/pkg/metrics"
)

const (
	IdempotencyRetentionJobName = "idempotency-retention"
	RefreshTokenCleanupJobName  = "refresh-token-cleanup"
)

type idempotencyPruner interface {
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type refreshTokenPruner interface {
	DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// retentionJob deletes rows older than now minus age.
type retentionJob struct {
	name    string
	age     time.Duration
	prune   func(ctx context.Context, cutoff time.Time) (int64, error)
	logg    *logger.Logger
	metrics *metrics.MaintenanceMetrics
	now     func() time.Time
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.age)
	deleted, err := j.prune(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	j.metrics.RowsDeleted(j.name, deleted)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "maintenance.retention_done")
	return nil
}

// NewIdempotencyRetentionJob drops stored responses once their replay window
// has passed. Redis-backed keys expire on their own and need no job.
func NewIdempotencyRetentionJob(store idempotencyPruner, ttl time.Duration, logg *logger.Logger, m *metrics.MaintenanceMetrics) (Job, error) {
	if store == nil {
		return nil, fmt.Errorf("idempotency store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("idempotency ttl must be positive")
	}
	return &retentionJob{
		name:    IdempotencyRetentionJobName,
		age:     ttl,
		prune:   store.DeleteCreatedBefore,
		logg:    logg,
		metrics: m,
		now:     time.Now,
	}, nil
}

// NewRefreshTokenCleanupJob removes refresh tokens that expired or were
// revoked more than grace ago.
func NewRefreshTokenCleanupJob(repo refreshTokenPruner, grace time.Duration, logg *logger.Logger, m *metrics.MaintenanceMetrics) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("refresh token repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if grace < 0 {
		grace = 0
	}
	return &retentionJob{
		name:    RefreshTokenCleanupJobName,
		age:     grace,
		prune:   repo.DeleteInactiveBefore,
		logg:    logg,
		metrics: m,
		now:     time.Now,
	}, nil
}
