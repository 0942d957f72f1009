package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/notify-dispatcher/internal/domain"
)

const (
	pushTransport         = "apns-gateway"
	defaultGatewayTimeout = 10 * time.Second
)

type gatewayRequest struct {
	Token          string         `json:"token"`
	NotificationID string         `json:"notificationId"`
	Title          string         `json:"title,omitempty"`
	Body           string         `json:"body"`
	Badge          any            `json:"badge,omitempty"`
	Sound          any            `json:"sound,omitempty"`
	Category       any            `json:"category,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

var _ PushSender = (*APNSGateway)(nil)

// APNSGateway posts iOS pushes to an HTTP gateway that fronts APNs.
type APNSGateway struct {
	client   *resty.Client
	endpoint string
}

func NewAPNSGateway(endpoint string) (*APNSGateway, error) {
	client := resty.New()
	client.SetTimeout(defaultGatewayTimeout)
	client.SetRetryCount(0)

	return NewAPNSGatewayWithClient(endpoint, client)
}

func NewAPNSGatewayWithClient(endpoint string, client *resty.Client) (*APNSGateway, error) {
	trimmedEndpoint := strings.TrimSpace(endpoint)
	if trimmedEndpoint == "" {
		return nil, fmt.Errorf("push gateway endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
		return nil, fmt.Errorf("invalid push gateway endpoint: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultGatewayTimeout)
	}
	client.SetRetryCount(0)

	return &APNSGateway{
		client:   client,
		endpoint: trimmedEndpoint,
	}, nil
}

func (g *APNSGateway) Send(ctx context.Context, device domain.Device, n domain.Notifiable) error {
	if g == nil || g.client == nil {
		return fmt.Errorf("push gateway is not initialized")
	}
	if n == nil {
		return rejected(pushTransport, "notification is required")
	}
	if strings.TrimSpace(device.Token) == "" {
		return rejected(pushTransport, "device token is missing")
	}

	response, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(buildGatewayRequest(device, n)).
		Post(g.endpoint)
	if err != nil {
		return requestFailed(pushTransport, "push gateway request failed", err)
	}
	if response == nil {
		return requestFailed(pushTransport, "push gateway returned empty response", nil)
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return nil
	}

	return statusFailed(pushTransport, statusCode, gatewayErrorMessage(statusCode, strings.TrimSpace(response.String())))
}

func buildGatewayRequest(device domain.Device, n domain.Notifiable) gatewayRequest {
	settings := n.SettingsFor(domain.PlatformIOS)

	return gatewayRequest{
		Token:          device.Token,
		NotificationID: n.NotificationID(),
		Title:          n.Title(),
		Body:           n.ShortText(),
		Badge:          settings["badge"],
		Sound:          settings["sound"],
		Category:       settings["category"],
		Data:           n.Metadata(),
	}
}

func gatewayErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("push gateway returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}
