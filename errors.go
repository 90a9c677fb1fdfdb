package changeset

import (
	"errors"
	"fmt"
)

// RejectionError is the structured form of a validation rejection, pairing
// the field key and rejected candidate with the validator's diagnostic.
// Validators may return one directly; plain errors are wrapped by Err.
type RejectionError struct {
	Key    string
	Value  any
	Reason error
}

func (e *RejectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("changeset: field %q rejected: %v", e.Key, e.Reason)
}

func (e *RejectionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Reason
}

func wrapRejection(key string, value any, err error) error {
	if err == nil {
		return nil
	}

	var rejErr *RejectionError
	if errors.As(err, &rejErr) {
		if rejErr.Key == "" {
			rejErr.Key = key
		}
		if rejErr.Value == nil {
			rejErr.Value = value
		}
		return rejErr
	}

	return &RejectionError{
		Key:    key,
		Value:  value,
		Reason: err,
	}
}
