package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrThrottled       = errors.New("worker invocation throttled")
	ErrInvalidMediaURL = errors.New("invalid media url")
	ErrNoFrames        = errors.New("no keyframes extracted")
)
