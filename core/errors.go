package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError reports malformed or missing input, with optional per-field details.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// NotFoundError reports that a referenced entity does not exist.
type NotFoundError struct {
	Resource string
}

func NewNotFoundError(resource string) error {
	return &NotFoundError{Resource: resource}
}

func (err NotFoundError) Error() string {
	return err.Resource + " not found"
}

// StateConflictError reports a transition attempted from a terminal state.
type StateConflictError struct {
	Resource string
	State    string
}

func NewStateConflictError(resource, state string) error {
	return &StateConflictError{Resource: resource, State: state}
}

func (err StateConflictError) Error() string {
	return fmt.Sprintf("%s is already %s", err.Resource, err.State)
}

// DeliveryError reports a mail transport failure.
type DeliveryError struct {
	To  string
	Err error
}

func NewDeliveryError(to string, err error) error {
	return &DeliveryError{To: to, Err: err}
}

func (err DeliveryError) Error() string {
	if err.Err == nil {
		return "could not deliver email to " + err.To
	}
	return fmt.Sprintf("could not deliver email to %s: %v", err.To, err.Err)
}

func (err DeliveryError) Unwrap() error { return err.Err }

// IsValidation, IsNotFound, IsStateConflict and IsDelivery look through wrapped errors.

func IsValidation(err error) bool {
	_, ok := errors.Cause(err).(*ValidationError)
	return ok
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

func IsStateConflict(err error) bool {
	_, ok := errors.Cause(err).(*StateConflictError)
	return ok
}

func IsDelivery(err error) bool {
	_, ok := errors.Cause(err).(*DeliveryError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
