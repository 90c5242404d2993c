package kafka

import (
	"errors"

	"shipment-tracker/internal/apperr"
)

// PermanentError marks a sample that will never be accepted. The message is
// committed instead of redelivered.
type PermanentError struct {
	Err error
}

func (e PermanentError) Error() string {
	if e.Err == nil {
		return "sample rejected"
	}
	return "sample rejected: " + e.Err.Error()
}

func (e PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a PermanentError. A nil err stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return PermanentError{Err: err}
}

// IsPermanent reports whether err is a PermanentError.
func IsPermanent(err error) bool {
	var perm PermanentError
	return errors.As(err, &perm)
}

// rejections are the ingest errors caused by the sample itself.
var rejections = []error{
	apperr.ErrInvalid,
	apperr.ErrInvalidTimestamp,
	apperr.ErrNotFound,
	apperr.ErrNotTrackable,
}

// classify wraps sample rejections as permanent and leaves other errors retryable.
func classify(err error) error {
	for _, r := range rejections {
		if errors.Is(err, r) {
			return Permanent(err)
		}
	}
	return err
}
