package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrMalformedCode       = errors.New("malformed ticket code")
	ErrDeviceUnavailable   = errors.New("frame source unavailable")
	ErrUpstreamUnavailable = errors.New("store unavailable")
)
