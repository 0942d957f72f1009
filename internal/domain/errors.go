package domain

import "errors"

var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrUnknownKind       = errors.New("unknown notification kind")
	ErrUnknownAction     = errors.New("unknown action")
	ErrUnknownActionCode = errors.New("unknown action code")
)
