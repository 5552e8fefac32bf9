package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jjatencia/exorawebipad/internal/model"
)

// ErrKeyNotFound is returned when a key has no stored value.
var ErrKeyNotFound = errors.New("key not found")

// KVRepository is the durable key-value storage of the client: session and
// last appointment snapshot live here under fixed keys.
type KVRepository interface {
	// Get returns ErrKeyNotFound when the key has no value.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set creates or overwrites the JSON value of key.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes keys; missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error
}

// GetJSON decodes the value under key into out.
func GetJSON(ctx context.Context, kv KVRepository, key string, out any) error {
	b, err := kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// SetJSON stores v as JSON under key.
func SetJSON(ctx context.Context, kv KVRepository, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return kv.Set(ctx, key, b)
}

// GORM implementation.
type GormKVRepository struct {
	db *gorm.DB
}

func NewGormKVRepository(db *gorm.DB) *GormKVRepository {
	return &GormKVRepository{db: db}
}

func (r *GormKVRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var e model.KVEntry
	err := r.db.WithContext(ctx).First(&e, "entry_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(e.Value), nil
}

func (r *GormKVRepository) Set(ctx context.Context, key string, value []byte) error {
	e := model.KVEntry{
		Key:       key,
		Value:     datatypes.JSON(value),
		UpdatedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "entry_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&e).
		Error
}

func (r *GormKVRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("entry_key IN ?", keys).
		Delete(&model.KVEntry{}).
		Error
}
