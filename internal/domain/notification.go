package domain

import (
	"fmt"
	"strings"
	"time"
)

const lineBreakMarker = "<br>"

// User is the owner of a notification. Only the fields delivery needs are carried.
type User struct {
	ID    string
	Email string
}

// StatusEntry records the initiation or outcome of one delivery attempt.
type StatusEntry struct {
	Platform Platform   `json:"plat" bson:"plat"`
	Code     StatusCode `json:"code" bson:"code"`
	Note     string     `json:"note" bson:"note"`
}

// Notifiable is the read view transports render a notification from. Transports never see
// the status log or the persistence state.
type Notifiable interface {
	NotificationID() string
	NotificationKind() string
	Recipient() User
	Title() string
	Text() string
	ShortText() string
	FullText() string
	HTMLMessage() *string
	Metadata() map[string]any
	SettingsFor(platform Platform) map[string]any
}

var _ Notifiable = (*Notification)(nil)

// Notification is one notification instance addressed to a user.
type Notification struct {
	ID                string
	Kind              string
	UserID            string
	User              User
	ActionCode        int
	Message           *string
	ShortMessage      *string
	FullMessage       *string
	Subject           *string
	DeliveryPlatforms []string
	Meta              map[string]any
	DeliverySettings  map[string]map[string]any
	StatusLog         []StatusEntry
	CreatedAt         time.Time
	UpdatedAt         time.Time

	// Persisted reports whether the initial create reached the store; PersistErr holds the cause otherwise.
	Persisted  bool
	PersistErr error
}

func (n *Notification) Validate() error {
	if strings.TrimSpace(n.Kind) == "" {
		return fmt.Errorf("%w: kind is required", ErrValidation)
	}
	if strings.TrimSpace(n.UserID) == "" {
		return fmt.Errorf("%w: user id is required", ErrValidation)
	}
	return nil
}

// AppendStatus adds an entry to the end of the status log. Existing entries are never touched.
func (n *Notification) AppendStatus(platform Platform, code StatusCode, note string) StatusEntry {
	entry := StatusEntry{Platform: platform, Code: code, Note: note}
	n.StatusLog = append(n.StatusLog, entry)
	return entry
}

// Platforms returns the requested platforms that name a known channel exactly, in request
// order. Anything else, including "IOS" or " email", is ignored.
func (n *Notification) Platforms() []Platform {
	platforms := make([]Platform, 0, len(n.DeliveryPlatforms))
	for _, raw := range n.DeliveryPlatforms {
		if p := Platform(raw); p.IsValid() {
			platforms = append(platforms, p)
		}
	}
	return platforms
}

// HTMLMessage renders FullMessage with newlines replaced by <br>. Nil when FullMessage is unset.
func (n *Notification) HTMLMessage() *string {
	if n.FullMessage == nil {
		return nil
	}
	rendered := strings.ReplaceAll(*n.FullMessage, "\n", lineBreakMarker)
	return &rendered
}

func (n *Notification) NotificationID() string { return n.ID }

func (n *Notification) NotificationKind() string { return n.Kind }

func (n *Notification) Recipient() User {
	if n.User.ID == "" {
		return User{ID: n.UserID, Email: n.User.Email}
	}
	return n.User
}

func (n *Notification) Title() string { return deref(n.Subject) }

func (n *Notification) Text() string { return deref(n.Message) }

func (n *Notification) ShortText() string {
	if short := deref(n.ShortMessage); short != "" {
		return short
	}
	return deref(n.Message)
}

func (n *Notification) FullText() string { return deref(n.FullMessage) }

func (n *Notification) Metadata() map[string]any { return n.Meta }

func (n *Notification) SettingsFor(platform Platform) map[string]any {
	return DeliverySettingsFor(n, platform)
}

// DeliverySettingsFor returns the nested settings for platform, keyed by its lower-case string form.
// A missing entry yields an empty map.
func DeliverySettingsFor[P ~string](n *Notification, platform P) map[string]any {
	if n == nil || len(n.DeliverySettings) == 0 {
		return map[string]any{}
	}

	key := strings.ToLower(strings.TrimSpace(string(platform)))
	if settings, ok := n.DeliverySettings[key]; ok && settings != nil {
		return settings
	}
	for k, settings := range n.DeliverySettings {
		if strings.EqualFold(strings.TrimSpace(k), key) && settings != nil {
			return settings
		}
	}
	return map[string]any{}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
