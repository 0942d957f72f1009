package domain

import (
	"context"
	"time"
)

// Device is a push endpoint registered to a user.
type Device struct {
	ID           string
	UserID       string
	Platform     Platform
	Token        string
	LastActiveAt time.Time
	// Dormant is resolved by the directory at lookup time.
	Dormant bool
}

func (d Device) IsDormant() bool { return d.Dormant }

// DeviceDirectory resolves the active devices of a user.
type DeviceDirectory interface {
	RegisteredTo(ctx context.Context, userID string, platform Platform) ([]Device, error)
	Unregister(ctx context.Context, deviceID string) error
}
