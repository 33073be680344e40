package service

import "errors"

// Sentinel errors the API layer maps to HTTP status codes.
var (
	ErrNotFound           = errors.New("scan not found")
	ErrInvalidTarget      = errors.New("invalid target")
	ErrUnsupportedScanner = errors.New("unsupported scanner type")
	ErrInvalidOptions     = errors.New("invalid scan options")
)
