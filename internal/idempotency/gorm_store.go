package idempotency

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/scanmarket-backend/pkg/db/models"
)

// GormStore keeps records in the idempotency_keys table.
type GormStore struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

func NewGormStore(db *gorm.DB, ttl time.Duration) *GormStore {
	return &GormStore{db: db, ttl: ttl, now: time.Now}
}

func (s *GormStore) Find(ctx context.Context, scope Scope) (*Record, error) {
	var row models.IdempotencyKey
	q := s.db.WithContext(ctx).
		Where("actor_id = ? AND method = ? AND path = ? AND key = ?", scope.ActorID, scope.Method, scope.Path, scope.Key)
	if s.ttl > 0 {
		q = q.Where("created_at > ?", s.now().Add(-s.ttl))
	}
	if err := q.First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &Record{
		RequestHash: row.RequestHash,
		Status:      row.ResponseStatus,
		Body:        row.ResponseBody,
		ContentType: row.ContentType,
		CreatedAt:   row.CreatedAt,
	}, nil
}

func (s *GormStore) Save(ctx context.Context, scope Scope, record Record) error {
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	row := models.IdempotencyKey{
		ActorID:        scope.ActorID,
		Method:         scope.Method,
		Path:           scope.Path,
		Key:            scope.Key,
		RequestHash:    record.RequestHash,
		ResponseStatus: record.Status,
		ResponseBody:   record.Body,
		ContentType:    record.ContentType,
		CreatedAt:      createdAt,
	}
	if row.ContentType == "" {
		row.ContentType = "application/json"
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

// DeleteCreatedBefore removes records that can no longer be replayed.
func (s *GormStore) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.IdempotencyKey{})
	return res.RowsAffected, res.Error
}

// TTL is the replay window the store was built with.
func (s *GormStore) TTL() time.Duration {
	return s.ttl
}
