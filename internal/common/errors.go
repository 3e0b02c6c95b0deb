package common

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthenticationRequired is returned when an operation needs an active session and has none.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrBackendOperationFailed wraps every failed relational, storage or realtime call.
	ErrBackendOperationFailed = errors.New("backend operation failed")
	// ErrUploadFailed means the attachment never reached object storage, so no message was written.
	ErrUploadFailed = errors.New("attachment upload failed")

	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotParticipant  = errors.New("not a participant of this conversation")
	ErrNotFound        = errors.New("not found")
)

// Backend tags err as a backend failure while keeping it inspectable with errors.Is.
func Backend(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrBackendOperationFailed, err)
}

// Upload tags err as an attachment upload failure.
func Upload(path string, err error) error {
	return fmt.Errorf("upload %s: %w: %w", path, ErrUploadFailed, err)
}

func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func NotFound(what, id string) error {
	return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
}
