package repository

import (
	"context"
	"time"

	"github.com/kursadbilgin/notify-dispatcher/internal/domain"
	"gorm.io/gorm"
)

var _ domain.DeviceDirectory = (*GormDeviceDirectory)(nil)

// GormDeviceDirectory lists registered devices and flags the ones idle longer than the dormancy window.
type GormDeviceDirectory struct {
	db       *gorm.DB
	dormancy time.Duration
	now      func() time.Time
}

func NewGormDeviceDirectory(db *gorm.DB, dormancy time.Duration) *GormDeviceDirectory {
	return &GormDeviceDirectory{db: db, dormancy: dormancy, now: time.Now}
}

func (d *GormDeviceDirectory) RegisteredTo(ctx context.Context, userID string, platform domain.Platform) ([]domain.Device, error) {
	var models []DeviceModel
	err := d.db.WithContext(ctx).
		Where("user_id = ? AND platform = ?", userID, platform).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	dormantBefore := d.dormantBefore()
	devices := make([]domain.Device, 0, len(models))
	for i := range models {
		devices = append(devices, deviceModelToDomain(&models[i], dormantBefore))
	}
	return devices, nil
}

func (d *GormDeviceDirectory) Unregister(ctx context.Context, deviceID string) error {
	result := d.db.WithContext(ctx).Delete(&DeviceModel{}, "id = ?", deviceID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (d *GormDeviceDirectory) dormantBefore() time.Time {
	if d.dormancy <= 0 {
		return time.Time{}
	}
	return d.now().Add(-d.dormancy)
}
