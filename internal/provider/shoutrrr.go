package provider

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/kursadbilgin/notify-dispatcher/internal/domain"
)

const relayTransport = "shoutrrr"

var _ PushSender = (*ShoutrrrPush)(nil)

// deviceParams maps the shoutrrr services that can target a single device to the param
// carrying the device token. Other services broadcast to every subscriber of the URL.
var deviceParams = map[string]string{
	"pushover": "devices",
}

// ShoutrrrPush relays pushes to the services behind a set of shoutrrr URLs.
type ShoutrrrPush struct {
	routes []relayRoute
}

type relayRoute struct {
	scheme string
	sender *router.ServiceRouter
}

func NewShoutrrrPush(urls []string, timeout time.Duration) (*ShoutrrrPush, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("at least one shoutrrr url is required")
	}

	routes := make([]relayRoute, 0, len(urls))
	for _, raw := range urls {
		sender, err := shoutrrr.CreateSender(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid shoutrrr url: %w", err)
		}
		if timeout > 0 {
			sender.Timeout = timeout
		}
		sender.SetLogger(log.New(io.Discard, "", 0))
		routes = append(routes, relayRoute{scheme: serviceScheme(raw), sender: sender})
	}

	return &ShoutrrrPush{routes: routes}, nil
}

func (s *ShoutrrrPush) Send(ctx context.Context, device domain.Device, n domain.Notifiable) error {
	if s == nil || len(s.routes) == 0 {
		return fmt.Errorf("shoutrrr sender is not initialized")
	}
	if n == nil {
		return rejected(relayTransport, "notification is required")
	}
	if err := ctx.Err(); err != nil {
		return requestFailed(relayTransport, "push canceled", err)
	}

	for _, route := range s.routes {
		params := relayParams(route.scheme, n.Title(), device.Token)
		for _, err := range route.sender.Send(n.ShortText(), &params) {
			if err != nil {
				return requestFailed(relayTransport, route.scheme+" send failed", err)
			}
		}
	}
	return nil
}

// relayParams builds the per-service params. The device token is only passed to services
// listed in deviceParams since others reject unknown keys.
func relayParams(scheme, title, token string) stypes.Params {
	params := stypes.Params{}
	if title = strings.TrimSpace(title); title != "" {
		params.SetTitle(title)
	}
	if key, ok := deviceParams[scheme]; ok {
		if token = strings.TrimSpace(token); token != "" {
			params[key] = token
		}
	}
	return params
}

func serviceScheme(raw string) string {
	scheme, _, _ := strings.Cut(strings.TrimSpace(raw), "://")
	return strings.ToLower(scheme)
}
