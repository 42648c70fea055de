package reconcile

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownResolution is returned for a resolution type outside the allowed set.
	ErrUnknownResolution = errors.New("unknown resolution type")
	// ErrLocalRecordRequired is returned when a resolution needs a local record that does not exist.
	ErrLocalRecordRequired = errors.New("local record is required")
	// ErrRemoteRecordRequired is returned when a resolution needs a remote record that does not exist.
	ErrRemoteRecordRequired = errors.New("remote record is required")
	// ErrMissingOption is returned when a required resolution option is absent.
	ErrMissingOption = errors.New("missing required option")
	// ErrRemoteIDRequired is returned when a remote write targets a record that was never pushed.
	ErrRemoteIDRequired = errors.New("record has no remote id")
	// ErrUnknownMechanism is returned for an unregistered query mechanism name.
	ErrUnknownMechanism = errors.New("unknown query mechanism")
	// ErrInvalidMapping is returned when a field mapping breaks its invariants.
	ErrInvalidMapping = errors.New("invalid mapping")
	// ErrWindowUnavailable is returned by remotes that cannot report changes for a window.
	// Mechanisms treat it as zero changes.
	ErrWindowUnavailable = errors.New("change window not replicable")
)

// ValidationError wraps caller errors that must never be retried.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(err error, format string, args ...any) error {
	if format == "" {
		return &ValidationError{Err: err}
	}
	return &ValidationError{Err: fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))}
}

// IsValidation reports whether err is a caller error.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
