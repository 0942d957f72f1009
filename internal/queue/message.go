package queue

import (
	"fmt"
	"strings"
)

// DeliveryMessage is the broker payload asking a worker to deliver one notification.
type DeliveryMessage struct {
	NotificationID string `json:"notificationId"`
	CorrelationID  string `json:"correlationId,omitempty"`
	Kind           string `json:"kind,omitempty"`
}

func (m DeliveryMessage) Validate() error {
	if strings.TrimSpace(m.NotificationID) == "" {
		return fmt.Errorf("notificationId is required")
	}
	return nil
}
