// Package matcherr holds the error taxonomy shared by the matching pipeline.
package matcherr

import (
	"errors"
	"fmt"
)

var (
	// ErrProfileNotFound is returned when a requested user has no stored profile.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrInvalidProfile marks profiles that fail validation or are not eligible for matching.
	ErrInvalidProfile = errors.New("invalid profile")
	// ErrSelfComparison is returned when a pairwise comparison targets the same user twice.
	ErrSelfComparison = errors.New("cannot compare a profile with itself")
	// ErrMalformedResponse marks text-completion output that could not be parsed.
	ErrMalformedResponse = errors.New("malformed model response")
	// ErrExternalService marks failures of an outbound dependency.
	ErrExternalService = errors.New("external service failure")
)

// ProfileNotFound wraps ErrProfileNotFound with the missing identifier.
func ProfileNotFound(id string) error {
	return fmt.Errorf("%w: %s", ErrProfileNotFound, id)
}

// InvalidProfileError describes why a profile was rejected.
type InvalidProfileError struct {
	ID     string
	Reason string
}

func (e *InvalidProfileError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("invalid profile: %s", e.Reason)
	}
	return fmt.Sprintf("invalid profile %q: %s", e.ID, e.Reason)
}

func (e *InvalidProfileError) Is(target error) bool {
	return target == ErrInvalidProfile
}

// ExternalServiceError wraps an error returned by a remote collaborator.
type ExternalServiceError struct {
	Service   string
	Retryable bool
	Err       error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

func (e *ExternalServiceError) Is(target error) bool {
	return target == ErrExternalService
}

// MalformedResponseError is raised by response parsers when model output cannot be understood.
type MalformedResponseError struct {
	Reason string
	Raw    string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed model response: %s", e.Reason)
}

func (e *MalformedResponseError) Is(target error) bool {
	return target == ErrMalformedResponse
}
