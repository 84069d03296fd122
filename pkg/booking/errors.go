package booking

import (
	"errors"
	"fmt"
)

// Kind categorizes a decode failure.
type Kind string

const (
	KindMalformed  Kind = "payload_malformed"
	KindIncomplete Kind = "payload_incomplete"
)

var (
	// ErrMalformed matches any decode failure caused by unparseable input.
	ErrMalformed = &Error{Kind: KindMalformed}
	// ErrIncomplete matches any decode failure caused by a missing field.
	ErrIncomplete = &Error{Kind: KindIncomplete}
)

// Error is a categorized payload decode failure.
type Error struct {
	Kind  Kind
	Field string
	Err   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	switch {
	case e.Field != "":
		return fmt.Sprintf("%s: missing %s", e.Kind, e.Field)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by kind so callers can use errors.Is(err, ErrMalformed).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil {
		return false
	}

	return t.Kind == e.Kind && t.Field == "" && t.Err == nil
}

// MissingField returns the field named by an incomplete-payload error.
func MissingField(err error) string {
	var decodeErr *Error
	if errors.As(err, &decodeErr) && decodeErr.Kind == KindIncomplete {
		return decodeErr.Field
	}

	return ""
}

func malformed(err error) error {
	return &Error{Kind: KindMalformed, Err: err}
}

func incomplete(field string) error {
	return &Error{Kind: KindIncomplete, Field: field}
}
