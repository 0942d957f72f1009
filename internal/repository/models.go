package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kursadbilgin/notify-dispatcher/internal/domain"
	"gorm.io/datatypes"
)

// NotificationModel is the persistence model for the notifications table.
type NotificationModel struct {
	ID                string         `gorm:"type:uuid;primaryKey"`
	Kind              string         `gorm:"type:varchar(64);not null"`
	UserID            string         `gorm:"type:varchar(64);not null"`
	ActionCode        int            `gorm:"not null"`
	Message           *string        `gorm:"type:text"`
	ShortMessage      *string        `gorm:"type:text"`
	FullMessage       *string        `gorm:"type:text"`
	Subject           *string        `gorm:"type:varchar(255)"`
	DeliveryPlatforms datatypes.JSON `gorm:"type:jsonb"`
	Meta              datatypes.JSON `gorm:"type:jsonb"`
	DeliverySettings  datatypes.JSON `gorm:"type:jsonb"`
	StatusLog         datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (NotificationModel) TableName() string {
	return "notifications"
}

// DeviceModel is the persistence model for registered push devices.
type DeviceModel struct {
	ID           string          `gorm:"type:uuid;primaryKey"`
	UserID       string          `gorm:"type:varchar(64);not null"`
	Platform     domain.Platform `gorm:"type:varchar(10);not null"`
	Token        string          `gorm:"type:varchar(512);not null"`
	LastActiveAt time.Time       `gorm:"type:timestamptz;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (DeviceModel) TableName() string {
	return "devices"
}

// UserModel is the persistence model for notification recipients.
type UserModel struct {
	ID        string `gorm:"type:varchar(64);primaryKey"`
	Email     string `gorm:"type:varchar(255);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (UserModel) TableName() string {
	return "users"
}

func notificationModelFromDomain(n *domain.Notification) (*NotificationModel, error) {
	if n == nil {
		return nil, nil
	}

	platforms, err := marshalJSON(n.DeliveryPlatforms, "[]")
	if err != nil {
		return nil, fmt.Errorf("encode delivery platforms: %w", err)
	}
	meta, err := marshalJSON(n.Meta, "{}")
	if err != nil {
		return nil, fmt.Errorf("encode meta: %w", err)
	}
	settings, err := marshalJSON(n.DeliverySettings, "{}")
	if err != nil {
		return nil, fmt.Errorf("encode delivery settings: %w", err)
	}
	statusLog, err := marshalJSON(n.StatusLog, "[]")
	if err != nil {
		return nil, fmt.Errorf("encode status log: %w", err)
	}

	return &NotificationModel{
		ID:                n.ID,
		Kind:              n.Kind,
		UserID:            n.UserID,
		ActionCode:        n.ActionCode,
		Message:           n.Message,
		ShortMessage:      n.ShortMessage,
		FullMessage:       n.FullMessage,
		Subject:           n.Subject,
		DeliveryPlatforms: platforms,
		Meta:              meta,
		DeliverySettings:  settings,
		StatusLog:         statusLog,
		CreatedAt:         n.CreatedAt,
		UpdatedAt:         n.UpdatedAt,
	}, nil
}

func notificationModelToDomain(m *NotificationModel) (*domain.Notification, error) {
	if m == nil {
		return nil, nil
	}

	n := &domain.Notification{
		ID:           m.ID,
		Kind:         m.Kind,
		UserID:       m.UserID,
		ActionCode:   m.ActionCode,
		Message:      m.Message,
		ShortMessage: m.ShortMessage,
		FullMessage:  m.FullMessage,
		Subject:      m.Subject,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
		Persisted:    true,
	}

	if err := unmarshalJSON(m.DeliveryPlatforms, &n.DeliveryPlatforms); err != nil {
		return nil, fmt.Errorf("decode delivery platforms: %w", err)
	}
	if err := unmarshalJSON(m.Meta, &n.Meta); err != nil {
		return nil, fmt.Errorf("decode meta: %w", err)
	}
	if err := unmarshalJSON(m.DeliverySettings, &n.DeliverySettings); err != nil {
		return nil, fmt.Errorf("decode delivery settings: %w", err)
	}
	if err := unmarshalJSON(m.StatusLog, &n.StatusLog); err != nil {
		return nil, fmt.Errorf("decode status log: %w", err)
	}
	if n.DeliverySettings == nil {
		n.DeliverySettings = map[string]map[string]any{}
	}

	return n, nil
}

func deviceModelToDomain(m *DeviceModel, dormantBefore time.Time) domain.Device {
	return domain.Device{
		ID:           m.ID,
		UserID:       m.UserID,
		Platform:     m.Platform,
		Token:        m.Token,
		LastActiveAt: m.LastActiveAt,
		Dormant:      !dormantBefore.IsZero() && m.LastActiveAt.Before(dormantBefore),
	}
}

func userModelToDomain(m *UserModel) *domain.User {
	if m == nil {
		return nil
	}
	return &domain.User{ID: m.ID, Email: m.Email}
}

func marshalJSON(value any, empty string) (datatypes.JSON, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		return datatypes.JSON(empty), nil
	}
	return datatypes.JSON(raw), nil
}

func unmarshalJSON(raw datatypes.JSON, target any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, target)
}
