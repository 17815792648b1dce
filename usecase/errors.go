package usecase

import (
	"errors"
	"fmt"
)

// Request-fatal errors. Everything else is confined to one platform's result.
var (
	ErrValidation       = errors.New("invalid publish request")
	ErrStoreUnavailable = errors.New("credential store unavailable")
)

// Per-platform errors.
var (
	ErrCredentialMissing   = errors.New("credential not found")
	ErrCredentialExpired   = errors.New("credential expired, reconnection required")
	ErrRefreshFailed       = errors.New("credential expired, refresh failed")
	ErrPersistence         = errors.New("refreshed credential could not be saved")
	ErrPlatformPublish     = errors.New("platform publish failed")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrMediaReleased       = errors.New("media already released")
)

// Result codes for errors raised before an adapter runs.
const (
	CodeCredentialNotFound  = "credential_not_found"
	CodeReconnectRequired   = "reconnect_required"
	CodeRefreshFailed       = "credential_refresh_failed"
	CodeUnsupportedPlatform = "unsupported_platform"
	CodeInternal            = "internal_error"
	CodeTimeout             = "timeout"
)

// PlatformError is a terminal per-platform failure with the code reported to the caller.
type PlatformError struct {
	Platform string
	Code     string
	Err      error
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("%s: %v", e.Platform, e.Err)
}

func (e *PlatformError) Unwrap() error { return e.Err }

func platformError(platform, code string, err error) *PlatformError {
	return &PlatformError{Platform: platform, Code: code, Err: err}
}

// ValidationError lists the offending fields.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %v", ErrValidation, e.Fields)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
