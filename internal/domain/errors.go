package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the dispatch core wraps exactly one of these.
var (
	ErrValidation          = errors.New("validation error")
	ErrNotFound            = errors.New("not found")
	ErrIllegalTransition   = errors.New("illegal status transition")
	ErrAlreadyAssigned     = errors.New("load already assigned")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// Validation errors with a fixed meaning.
var (
	ErrNoCouriers    = fmt.Errorf("%w: blast requires at least one courier", ErrValidation)
	ErrBlastClosed   = fmt.Errorf("%w: blast is no longer active", ErrValidation)
	ErrResponseFinal = fmt.Errorf("%w: response can no longer change", ErrValidation)
)

// IllegalTransitionError is returned when the state machine rejects a status change.
type IllegalTransitionError struct {
	From LoadStatus
	To   LoadStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal status transition %q -> %q", e.From, e.To)
}

func (e *IllegalTransitionError) Is(target error) bool { return target == ErrIllegalTransition }

// NotFound builds a NotFound error naming the missing entity.
func NotFound(entity, id string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, entity, id)
}

// Validation builds a validation error with a formatted detail.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Upstream wraps a collaborator failure (push sender, geocoder) as UpstreamUnavailable.
func Upstream(service string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUpstreamUnavailable, service, err)
}

// UserMessage maps an error to the message shown to an operator or courier.
// Losing the confirmation race is an expected outcome and gets a non-alarming message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrAlreadyAssigned) {
		return "load already assigned"
	}
	return "request failed: " + err.Error()
}
