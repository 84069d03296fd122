package booking

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultGuests is used when guests is absent, non-numeric, or not positive.
const DefaultGuests = 1

// Payload is a validated booking request submitted from the mini-app.
type Payload struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Date    string `json:"date"`
	Guests  int    `json:"guests"`
	Message string `json:"message,omitempty"`
}

// wirePayload mirrors the mini-app JSON contract before normalization.
type wirePayload struct {
	Name    string          `json:"name" validate:"required"`
	Email   string          `json:"email" validate:"required"`
	Date    string          `json:"date" validate:"required"`
	Guests  json.RawMessage `json:"guests"`
	Message string          `json:"message"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// Decode parses and validates a raw mini-app payload.
//
// Failures are *Error values matching ErrMalformed or ErrIncomplete.
func Decode(raw string) (Payload, error) {
	trimmed := bytes.TrimSpace([]byte(raw))
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Payload{}, malformed(errors.New("payload is not a JSON object"))
	}

	var wire wirePayload
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return Payload{}, malformed(err)
	}

	// Blank-only values count as missing; accepted values are kept verbatim.
	check := wire
	check.Name = strings.TrimSpace(wire.Name)
	check.Email = strings.TrimSpace(wire.Email)
	check.Date = strings.TrimSpace(wire.Date)

	if err := validate.Struct(check); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return Payload{}, incomplete(fieldErrs[0].Field())
		}
		return Payload{}, malformed(err)
	}

	return Payload{
		Name:    wire.Name,
		Email:   wire.Email,
		Date:    wire.Date,
		Guests:  parseGuests(wire.Guests),
		Message: wire.Message,
	}, nil
}

// parseGuests accepts a JSON number or numeric string and clamps to DefaultGuests.
func parseGuests(raw json.RawMessage) int {
	if len(raw) == 0 {
		return DefaultGuests
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		text = string(raw)
	}

	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n <= 0 {
		return DefaultGuests
	}

	return n
}
