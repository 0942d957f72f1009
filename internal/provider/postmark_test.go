package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kursadbilgin/notify-dispatcher/internal/domain"
	"github.com/mrz1836/postmark"
)

func strPtr(s string) *string { return &s }

func newTestPostmarkMailer(t *testing.T, handler http.HandlerFunc) *PostmarkMailer {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := postmark.NewClient("server-token", "account-token")
	client.BaseURL = server.URL

	mailer, err := NewPostmarkMailerWithClient(client, "alerts@example.com")
	if err != nil {
		t.Fatalf("NewPostmarkMailerWithClient() error = %v", err)
	}
	return mailer
}

func TestPostmarkMailerSendNotificationSuccess(t *testing.T) {
	t.Parallel()

	var got map[string]any
	mailer := newTestPostmarkMailer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Postmark-Server-Token") != "server-token" {
			t.Errorf("server token header = %q", r.Header.Get("X-Postmark-Server-Token"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"To":"jane@example.com","ErrorCode":0,"Message":"OK","MessageID":"pm-1"}`))
	})

	n := &domain.Notification{
		ID:          "n-1",
		Kind:        "account",
		Subject:     strPtr("Welcome"),
		Message:     strPtr("hello"),
		FullMessage: strPtr("hello\nthere"),
	}

	err := mailer.SendNotification(context.Background(), domain.User{ID: "u-1", Email: "jane@example.com"}, n)
	if err != nil {
		t.Fatalf("SendNotification() error = %v", err)
	}

	if got["To"] != "jane@example.com" || got["From"] != "alerts@example.com" {
		t.Fatalf("addresses = %v / %v", got["To"], got["From"])
	}
	if got["Subject"] != "Welcome" {
		t.Fatalf("Subject = %v", got["Subject"])
	}
	if got["HtmlBody"] != "hello<br>there" {
		t.Fatalf("HtmlBody = %v", got["HtmlBody"])
	}
	if got["Tag"] != "account" {
		t.Fatalf("Tag = %v", got["Tag"])
	}
}

func TestPostmarkMailerSendNotificationAPIError(t *testing.T) {
	t.Parallel()

	mailer := newTestPostmarkMailer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ErrorCode":406,"Message":"Inactive recipient"}`))
	})

	err := mailer.SendNotification(context.Background(), domain.User{ID: "u-1", Email: "jane@example.com"}, &domain.Notification{ID: "n-1", Message: strPtr("hi")})
	if err == nil {
		t.Fatal("expected error")
	}

	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected ProviderError, got %T", err)
	}
	if IsTransient(err) {
		t.Fatal("api rejection should be permanent")
	}
}

func TestPostmarkMailerRequiresRecipientEmail(t *testing.T) {
	t.Parallel()

	called := false
	mailer := newTestPostmarkMailer(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	err := mailer.SendNotification(context.Background(), domain.User{ID: "u-1"}, &domain.Notification{ID: "n-1"})
	if err == nil {
		t.Fatal("expected error for missing email")
	}
	if called {
		t.Fatal("postmark must not be called without a recipient")
	}
}

func TestNewPostmarkMailerValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewPostmarkMailer("", "account", "alerts@example.com"); err == nil {
		t.Fatal("expected error for missing server token")
	}
	if _, err := NewPostmarkMailer("server", "account", " "); err == nil {
		t.Fatal("expected error for missing sender")
	}
}

func TestBuildEmailFallsBackToShortText(t *testing.T) {
	t.Parallel()

	email := buildEmail("alerts@example.com", "jane@example.com", &domain.Notification{ID: "n-1", ShortMessage: strPtr("short")})
	if email.TextBody != "short" {
		t.Fatalf("TextBody = %q, want short", email.TextBody)
	}
	if email.HTMLBody != "" {
		t.Fatalf("HTMLBody = %q, want empty", email.HTMLBody)
	}
	if email.Metadata[metadataNotifyKey] != "n-1" {
		t.Fatalf("Metadata = %+v", email.Metadata)
	}
}

// digest is a Notifiable that is not a stored notification record.
type digest struct {
	id   string
	body string
}

func (d digest) NotificationID() string { return d.id }
func (d digest) NotificationKind() string { return "digest" }
func (d digest) Recipient() domain.User { return domain.User{ID: "u-1"} }
func (d digest) Title() string { return "Weekly digest" }
func (d digest) Text() string { return "" }
func (d digest) ShortText() string { return d.body }
func (d digest) FullText() string { return "" }
func (d digest) HTMLMessage() *string { return nil }
func (d digest) Metadata() map[string]any { return nil }
func (d digest) SettingsFor(domain.Platform) map[string]any { return map[string]any{"badge": 7} }

func TestTransportsRenderAnyNotifiable(t *testing.T) {
	t.Parallel()

	n := digest{id: "dg-1", body: "3 new followers"}

	email := buildEmail("alerts@example.com", "jane@example.com", n)
	if email.Subject != "Weekly digest" || email.Tag != "digest" || email.TextBody != "3 new followers" {
		t.Fatalf("email = %+v", email)
	}
	if email.Metadata[metadataNotifyKey] != "dg-1" {
		t.Fatalf("Metadata = %+v", email.Metadata)
	}

	req := buildGatewayRequest(domain.Device{Token: "tok-1"}, n)
	if req.NotificationID != "dg-1" || req.Body != "3 new followers" || req.Badge != 7 {
		t.Fatalf("gateway request = %+v", req)
	}
}
