package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/frahmantamala/procurement-workflow/internal/core/datamodel/document"
	"github.com/frahmantamala/procurement-workflow/internal/store"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KV implements store.KV on the kv_documents table using GORM
type KV struct {
	db  *gorm.DB
	now func() time.Time
}

// NewKV creates a new document store. The caller owns db.
func NewKV(db *gorm.DB) *KV {
	return &KV{db: db, now: time.Now}
}

func (s *KV) Get(ctx context.Context, key string) ([]byte, error) {
	var doc document.Document
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&doc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return []byte(doc.Value), nil
}

func (s *KV) Set(ctx context.Context, key string, value []byte) error {
	doc := document.Document{Key: key, Value: datatypes.JSON(value), UpdatedAt: s.now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&doc).Error
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *KV) Del(ctx context.Context, key string) (int64, error) {
	res := s.db.WithContext(ctx).Where("key = ?", key).Delete(&document.Document{})
	if res.Error != nil {
		return 0, fmt.Errorf("del %s: %w", key, res.Error)
	}
	return res.RowsAffected, nil
}

func (s *KV) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys := make([]string, 0)
	err := s.db.WithContext(ctx).
		Model(&document.Document{}).
		Where("key LIKE ? ESCAPE ?", escapeLike(prefix)+"%", `\`).
		Order("key").
		Pluck("key", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("keys %s: %w", prefix, err)
	}
	return keys, nil
}

// CompareAndSwap is a conditional insert or update; RowsAffected tells whether it won.
func (s *KV) CompareAndSwap(ctx context.Context, key string, prev, next []byte) (bool, error) {
	db := s.db.WithContext(ctx)
	now := s.now()

	if prev == nil {
		doc := document.Document{Key: key, Value: datatypes.JSON(next), UpdatedAt: now}
		res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&doc)
		if res.Error != nil {
			return false, fmt.Errorf("cas insert %s: %w", key, res.Error)
		}
		return res.RowsAffected == 1, nil
	}

	res := db.Model(&document.Document{}).
		Where("key = ? AND value = ?", key, datatypes.JSON(prev)).
		Updates(map[string]interface{}{
			"value":      datatypes.JSON(next),
			"updated_at": now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("cas update %s: %w", key, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *KV) DeleteIf(ctx context.Context, key string, prev []byte) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("key = ? AND value = ?", key, datatypes.JSON(prev)).
		Delete(&document.Document{})
	if res.Error != nil {
		return false, fmt.Errorf("delete-if %s: %w", key, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *KV) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *KV) Close() error {
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
