package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrNotAuthorized        = errors.New("not authorized")
	ErrMediaUnavailable     = errors.New("media unavailable")
	ErrSignalDeliveryFailed = errors.New("signal delivery failed")
)
