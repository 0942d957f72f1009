package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/notify-dispatcher/internal/repository"
	"gorm.io/gorm"
)

func createDevicesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_devices",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.DeviceModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_devices_user_platform ON devices (user_id, platform)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.DeviceModel{})
		},
	}
}
