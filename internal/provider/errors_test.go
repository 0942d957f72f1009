package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/kursadbilgin/notify-dispatcher/internal/domain"
)

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "canceled", err: fmt.Errorf("wrap: %w", context.Canceled), want: false},
		{name: "transient provider error", err: &ProviderError{Transient: true}, want: true},
		{name: "wrapped permanent provider error", err: fmt.Errorf("send: %w", &ProviderError{StatusCode: 400}), want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := IsTransient(tt.err); got != tt.want {
				t.Fatalf("IsTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProviderErrorMessage(t *testing.T) {
	t.Parallel()

	err := &ProviderError{Transport: "postmark", StatusCode: 503, Message: "unavailable", Cause: errors.New("eof")}
	if got, want := err.Error(), "postmark transport error: status=503: unavailable: eof"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, err.Cause) {
		t.Fatal("expected Unwrap to expose the cause")
	}
}

func TestProviderErrorConstructors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		err           *ProviderError
		wantTransient bool
	}{
		{name: "rejected", err: rejected("postmark", "recipient email is missing"), wantTransient: false},
		{name: "request failed", err: requestFailed("postmark", "request failed", errors.New("dial tcp")), wantTransient: true},
		{name: "request canceled", err: requestFailed("postmark", "request failed", context.Canceled), wantTransient: false},
		{name: "status 400", err: statusFailed("apns-gateway", 400, "bad token"), wantTransient: false},
		{name: "status 429", err: statusFailed("apns-gateway", 429, "slow down"), wantTransient: true},
		{name: "status 502", err: statusFailed("apns-gateway", 502, "bad gateway"), wantTransient: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if tt.err.Transient != tt.wantTransient {
				t.Fatalf("Transient = %v, want %v (%v)", tt.err.Transient, tt.wantTransient, tt.err)
			}
		})
	}
}

func TestDisabledTransportsAlwaysFail(t *testing.T) {
	t.Parallel()

	err := DisabledPush{}.Send(context.Background(), domain.Device{ID: "dev-1"}, &domain.Notification{ID: "n-1"})
	if err == nil || IsTransient(err) {
		t.Fatalf("Send() error = %v, want permanent error", err)
	}

	err = DisabledMail{}.SendNotification(context.Background(), domain.User{ID: "u-1"}, &domain.Notification{ID: "n-1"})
	if err == nil || IsTransient(err) {
		t.Fatalf("SendNotification() error = %v, want permanent error", err)
	}
}
