// Package validate checks conversion and analysis requests before any
// descriptor or network work happens.
package validate

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// Text length bounds in runes, inclusive.
const (
	MinTextLength = 10
	MaxTextLength = 2000
)

// Kind classifies a validation failure.
type Kind int

const (
	EmptyInput Kind = iota + 1
	TooShort
	TooLong
	InvalidField
)

func (k Kind) String() string {
	switch k {
	case EmptyInput:
		return "empty_input"
	case TooShort:
		return "too_short"
	case TooLong:
		return "too_long"
	case InvalidField:
		return "invalid_field"
	}
	return "unknown"
}

// Error is returned for every validation failure.
type Error struct {
	Kind   Kind
	Field  string
	Length int
	Detail string
}

func (e *Error) Error() string {
	switch e.Kind {
	case EmptyInput:
		return "text is empty"
	case TooShort:
		return fmt.Sprintf("text too short: %d characters, minimum %d", e.Length, MinTextLength)
	case TooLong:
		return fmt.Sprintf("text too long: %d characters, maximum %d", e.Length, MaxTextLength)
	case InvalidField:
		if e.Detail != "" {
			return fmt.Sprintf("invalid field %s: %s", e.Field, e.Detail)
		}
		return fmt.Sprintf("invalid field %s", e.Field)
	}
	return "invalid request"
}

// Is reports whether err is a validation error of kind k.
func Is(err error, k Kind) bool {
	var ve *Error
	return errors.As(err, &ve) && ve.Kind == k
}

// Text checks s against the length bounds. Length is counted in runes
// after trimming surrounding whitespace.
func Text(s string) error {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return &Error{Kind: EmptyInput, Field: "text"}
	}
	n := utf8.RuneCountInString(trimmed)
	switch {
	case n < MinTextLength:
		return &Error{Kind: TooShort, Field: "text", Length: n}
	case n > MaxTextLength:
		return &Error{Kind: TooLong, Field: "text", Length: n}
	}
	return nil
}

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Struct runs struct-tag validation on v and reports the first failing field.
func Struct(v any) error {
	err := structValidator.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		detail := fe.Tag()
		if fe.Param() != "" {
			detail = fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
		}
		return &Error{Kind: InvalidField, Field: fe.Field(), Detail: detail}
	}
	return fmt.Errorf("validating request: %w", err)
}
