package provider

import (
	"context"

	"github.com/kursadbilgin/notify-dispatcher/internal/domain"
)

// MailSender delivers the email rendition of a notification to its owner.
type MailSender interface {
	SendNotification(ctx context.Context, user domain.User, n domain.Notifiable) error
}

// PushSender delivers a notification to one registered device.
type PushSender interface {
	Send(ctx context.Context, device domain.Device, n domain.Notifiable) error
}

var _ PushSender = DisabledPush{}

// DisabledPush rejects every push. It backs deployments without a push transport.
type DisabledPush struct{}

func (DisabledPush) Send(context.Context, domain.Device, domain.Notifiable) error {
	return rejected("push", "push transport is disabled")
}

var _ MailSender = DisabledMail{}

// DisabledMail rejects every email. It backs deployments without a Postmark server token.
type DisabledMail struct{}

func (DisabledMail) SendNotification(context.Context, domain.User, domain.Notifiable) error {
	return rejected("email", "mail transport is disabled")
}
