package models

import (
	"errors"
	"fmt"
)

// ProviderError represents cloud provider operation errors
type ProviderError struct {
	Provider  ProviderID // "aws", "azure2", ...
	Operation string     // "connect", "list", "start", "stop", "connect-ssh"
	Resource  string     // instance name, region, project, etc.
	Cause     error
}

func (e *ProviderError) Error() string {
	if e.Resource == "" {
		return fmt.Sprintf("%s provider error during %s: %v", e.Provider, e.Operation, e.Cause)
	}
	return fmt.Sprintf("%s provider error during %s on '%s': %v",
		e.Provider, e.Operation, e.Resource, e.Cause)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// AuthenticationError represents rejected credentials or a failed TLS handshake
type AuthenticationError struct {
	Provider ProviderID
	Cause    error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication with %s failed: %v", e.Provider, e.Cause)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Cause
}

// TransportError represents a request that failed mid-flight
type TransportError struct {
	Provider  ProviderID
	Operation string
	Cause     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s request to %s failed: %v", e.Operation, e.Provider, e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// ConfigError represents a fatal configuration problem
type ConfigError struct {
	Path  string
	Key   string // "info.providers", "aws", etc.
	Cause error
}

func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error in '%s' (%s): %v", e.Path, e.Key, e.Cause)
	}
	return fmt.Sprintf("config error in '%s': %v", e.Path, e.Cause)
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// StateError is raised when an instance carries a state outside the known
// vocabulary. Display cannot proceed safely.
type StateError struct {
	Instance string
	Provider ProviderID
	State    string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("instance '%s' (%s) reports unrecognized state '%s'",
		e.Instance, e.Provider, e.State)
}

// InputValidationError represents user input validation errors
type InputValidationError struct {
	InputType string // "command", "instance number", ...
	Value     string
	Expected  string // description of expected format
}

func (e *InputValidationError) Error() string {
	if e.Expected != "" {
		return fmt.Sprintf("invalid %s value '%s' (expected: %s)", e.InputType, e.Value, e.Expected)
	}
	return fmt.Sprintf("invalid %s value '%s'", e.InputType, e.Value)
}

// IsAuthentication reports whether err is (or wraps) an AuthenticationError
func IsAuthentication(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}

// IsTransport reports whether err is (or wraps) a TransportError
func IsTransport(err error) bool {
	var tErr *TransportError
	return errors.As(err, &tErr)
}
