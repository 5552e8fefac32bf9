package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/jjatencia/exorawebipad/internal/model"
)

type EventRepository interface {
	Create(ctx context.Context, event *model.Event) error
	// ListByAppointment returns the appointment's events, oldest first.
	ListByAppointment(ctx context.Context, appointmentID string) ([]model.Event, error)
	ListByRange(ctx context.Context, from, to time.Time, limit, offset int) ([]model.Event, int64, error)
}

// GORM implementation.
type GormEventRepository struct {
	db *gorm.DB
}

func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

func (r *GormEventRepository) Create(ctx context.Context, event *model.Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *GormEventRepository) ListByAppointment(ctx context.Context, appointmentID string) ([]model.Event, error) {
	var events []model.Event
	err := r.db.WithContext(ctx).
		Where("appointment_id = ?", appointmentID).
		Order("created_at ASC").
		Find(&events).
		Error
	return events, err
}

func (r *GormEventRepository) ListByRange(
	ctx context.Context,
	from, to time.Time,
	limit, offset int,
) ([]model.Event, int64, error) {
	var (
		events []model.Event
		total  int64
	)

	q := r.db.WithContext(ctx).
		Model(&model.Event{}).
		Where("created_at >= ? AND created_at < ?", from, to)

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	if err := q.Order("created_at DESC").Find(&events).Error; err != nil {
		return nil, 0, err
	}

	return events, total, nil
}
