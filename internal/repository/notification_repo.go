package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kursadbilgin/notify-dispatcher/internal/domain"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

type ListParams struct {
	Kind     *string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// Normalize clamps paging to sane bounds.
func (p ListParams) Normalize() ListParams {
	p.Page = max(p.Page, 1)
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	p.PageSize = min(p.PageSize, maxPageSize)
	return p
}

func (p ListParams) offset() int {
	return (p.Page - 1) * p.PageSize
}

// NotificationStore persists notification records and their status logs.
type NotificationStore interface {
	Create(ctx context.Context, n *domain.Notification) error
	Save(ctx context.Context, n *domain.Notification) error
	DeleteCreatedBefore(ctx context.Context, kind string, userID string, cutoff time.Time) (int64, error)
	DeleteAllCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	ListByUser(ctx context.Context, userID string, params ListParams) ([]domain.Notification, int64, error)
}

type GormNotificationRepo struct {
	db *gorm.DB
}

func NewGormNotificationRepo(db *gorm.DB) *GormNotificationRepo {
	return &GormNotificationRepo{db: db}
}

func (r *GormNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	model, err := notificationModelFromDomain(n)
	if err != nil {
		return err
	}
	if model == nil {
		return domain.ErrValidation
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	n.CreatedAt = model.CreatedAt
	n.UpdatedAt = model.UpdatedAt
	return nil
}

// Save overwrites an existing record, status log included. A record that is gone,
// for instance swept while it was being delivered, is not recreated.
func (r *GormNotificationRepo) Save(ctx context.Context, n *domain.Notification) error {
	model, err := notificationModelFromDomain(n)
	if err != nil {
		return err
	}
	if model == nil {
		return domain.ErrValidation
	}

	result := r.db.WithContext(ctx).
		Model(model).
		Select("*").
		Omit("created_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	n.UpdatedAt = model.UpdatedAt
	return nil
}

// DeleteCreatedBefore removes the user's records of kind created at or before cutoff.
func (r *GormNotificationRepo) DeleteCreatedBefore(ctx context.Context, kind string, userID string, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("kind = ? AND user_id = ? AND created_at <= ?", kind, userID, cutoff).
		Delete(&NotificationModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *GormNotificationRepo) DeleteAllCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("created_at <= ?", cutoff).
		Delete(&NotificationModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *GormNotificationRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	var model NotificationModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return notificationModelToDomain(&model)
}

func (r *GormNotificationRepo) ListByUser(ctx context.Context, userID string, params ListParams) ([]domain.Notification, int64, error) {
	params = params.Normalize()
	query := r.db.WithContext(ctx).Model(&NotificationModel{}).Where("user_id = ?", userID)

	if params.Kind != nil && strings.TrimSpace(*params.Kind) != "" {
		query = query.Where("kind = ?", strings.TrimSpace(*params.Kind))
	}
	if params.From != nil {
		query = query.Where("created_at >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("created_at <= ?", *params.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []NotificationModel
	err := query.
		Order("created_at DESC").
		Offset(params.offset()).
		Limit(params.PageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	notifications := make([]domain.Notification, 0, len(models))
	for i := range models {
		n, err := notificationModelToDomain(&models[i])
		if err != nil {
			return nil, 0, err
		}
		notifications = append(notifications, *n)
	}

	return notifications, total, nil
}
