package domain

// Platform identifies a delivery channel.
type Platform string

const (
	PlatformEmail   Platform = "email"
	PlatformIOS     Platform = "ios"
	PlatformAndroid Platform = "android"
)

func (p Platform) String() string { return string(p) }

func (p Platform) IsValid() bool {
	switch p {
	case PlatformEmail, PlatformIOS, PlatformAndroid:
		return true
	}
	return false
}

// Code returns the stored numeric platform code. These values are persisted and must not change.
func (p Platform) Code() int {
	switch p {
	case PlatformEmail:
		return 1
	case PlatformIOS:
		return 2
	case PlatformAndroid:
		return 3
	}
	return 0
}

// StatusCode is the numeric outcome recorded in a status entry.
type StatusCode int

const (
	StatusSending StatusCode = 1
	StatusSent    StatusCode = 2
	StatusError   StatusCode = 3
)

func (s StatusCode) String() string {
	switch s {
	case StatusSending:
		return "sending"
	case StatusSent:
		return "sent"
	case StatusError:
		return "error"
	}
	return "unknown"
}

func (s StatusCode) IsValid() bool {
	switch s {
	case StatusSending, StatusSent, StatusError:
		return true
	}
	return false
}
