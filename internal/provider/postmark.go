package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/notify-dispatcher/internal/domain"
	"github.com/mrz1836/postmark"
)

const (
	mailTransport     = "postmark"
	trackLinksHTML    = "HtmlOnly"
	metadataNotifyKey = "notification_id"
)

var _ MailSender = (*PostmarkMailer)(nil)

// PostmarkMailer sends notification emails through Postmark's transactional API.
type PostmarkMailer struct {
	client *postmark.Client
	sender string
}

func NewPostmarkMailer(serverToken string, accountToken string, sender string) (*PostmarkMailer, error) {
	if strings.TrimSpace(serverToken) == "" {
		return nil, fmt.Errorf("postmark server token is required")
	}
	return NewPostmarkMailerWithClient(postmark.NewClient(serverToken, accountToken), sender)
}

func NewPostmarkMailerWithClient(client *postmark.Client, sender string) (*PostmarkMailer, error) {
	if client == nil {
		return nil, fmt.Errorf("postmark client is required")
	}
	trimmedSender := strings.TrimSpace(sender)
	if trimmedSender == "" {
		return nil, fmt.Errorf("mail sender is required")
	}

	return &PostmarkMailer{client: client, sender: trimmedSender}, nil
}

func (m *PostmarkMailer) SendNotification(ctx context.Context, user domain.User, n domain.Notifiable) error {
	if m == nil || m.client == nil {
		return fmt.Errorf("mailer is not initialized")
	}
	if n == nil {
		return rejected(mailTransport, "notification is required")
	}

	to := strings.TrimSpace(user.Email)
	if to == "" {
		return rejected(mailTransport, "recipient email is missing")
	}

	resp, err := m.client.SendEmail(ctx, buildEmail(m.sender, to, n))
	if err != nil {
		return requestFailed(mailTransport, "postmark request failed", err)
	}
	if resp.ErrorCode > 0 {
		return rejected(mailTransport, fmt.Sprintf("postmark error %d: %s", resp.ErrorCode, resp.Message))
	}
	return nil
}

func buildEmail(sender string, to string, n domain.Notifiable) postmark.Email {
	email := postmark.Email{
		From:       sender,
		To:         to,
		Subject:    n.Title(),
		Tag:        n.NotificationKind(),
		TextBody:   n.Text(),
		TrackOpens: true,
		TrackLinks: trackLinksHTML,
		Metadata:   map[string]string{metadataNotifyKey: n.NotificationID()},
	}

	if html := n.HTMLMessage(); html != nil {
		email.HTMLBody = *html
		email.TextBody = n.FullText()
	}
	if email.TextBody == "" {
		email.TextBody = n.ShortText()
	}
	return email
}
