package model

import (
	"errors"
	"fmt"
)

var ErrMissingAPIKey = errors.New("REALTIME_API_KEY is not set")

// Missing or invalid configuration. Raised before any network call.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Non-success HTTP status, or a transport failure. StatusCode is 0
// when no response was received (timeouts, refused connections).
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("network: %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("network: %s: %s", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Response body is not JSON, or lacks the required top level
// structure.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse: %s", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Destination unreachable, schema conflict or any other storage
// failure. Table is blank when the failure isn't tied to one.
type WriteError struct {
	Table string
	Err   error
}

func (e *WriteError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("write %s: %s", e.Table, e.Err)
	}
	return fmt.Sprintf("write: %s", e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
