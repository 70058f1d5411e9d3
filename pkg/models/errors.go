package models

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Every typed error below matches exactly one of them
// with errors.Is.
var (
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrDispatch      = errors.New("dispatch error")
	ErrNotFound      = errors.New("not found")
)

// ValidationError reports a malformed trigger, action or workflow.
type ValidationError struct {
	Op      string
	Message string
	Err     error
}

func NewValidationError(op, message string) *ValidationError {
	return &ValidationError{Op: op, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ConfigurationError reports an unsupported operator, frequency or kind.
type ConfigurationError struct {
	Op      string
	Message string
}

func NewConfigurationError(op, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Op: op, Message: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// DispatchError wraps a failed call through the integration dispatch interface.
type DispatchError struct {
	Service string
	Kind    string
	Err     error
}

func NewDispatchError(service, kind string, err error) *DispatchError {
	return &DispatchError{Service: service, Kind: kind, Err: err}
}

func (e *DispatchError) Error() string {
	if e.Service == "" {
		return fmt.Sprintf("dispatch of trigger %s failed: %v", e.Kind, e.Err)
	}

	return fmt.Sprintf("dispatch of %s to service %s failed: %v", e.Kind, e.Service, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

func (e *DispatchError) Is(target error) bool { return target == ErrDispatch }

// NotFoundError reports an unknown trigger, action or service id.
type NotFoundError struct {
	Resource string
	ID       string
}

func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

func IsConfiguration(err error) bool { return errors.Is(err, ErrConfiguration) }

func IsDispatch(err error) bool { return errors.Is(err, ErrDispatch) }

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
