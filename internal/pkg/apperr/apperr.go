package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind groups errors by how callers are expected to react to them.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindConflict        Kind = "conflict"
	KindNotFound        Kind = "not_found"
	KindAuthentication  Kind = "authentication"
	KindForbidden       Kind = "forbidden"
	KindDeletionFailed  Kind = "deletion_failed"
	KindExternalService Kind = "external_service"
	KindInternal        Kind = "internal"
)

// Code narrows a validation failure down to the rule that was broken.
type Code string

const (
	CodeMissingField      Code = "missing_field"
	CodeInvalidTimestamp  Code = "invalid_timestamp"
	CodeInvalidRange      Code = "invalid_range"
	CodeTooLong           Code = "too_long"
	CodeWeakCredential    Code = "weak_credential"
	CodeInvalidFormat     Code = "invalid_format"
	CodeEmptyContent      Code = "empty_content"
	CodeInvalidParent     Code = "invalid_parent"
	CodeNoFilterProvided  Code = "no_filter_provided"
	CodeInvalidDate       Code = "invalid_date"
	CodeInvalidPagination Code = "invalid_pagination"
	CodeInvalidReaction   Code = "invalid_reaction"
	CodeInvalidCategory   Code = "invalid_category"
)

type Error struct {
	Kind   Kind
	Code   Code
	Fields []string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Code != "" {
		b.WriteString("/")
		b.WriteString(string(e.Code))
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if len(e.Fields) > 0 {
		b.WriteString(" [")
		b.WriteString(strings.Join(e.Fields, ", "))
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on kind and code so sentinel-style comparisons work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

func Validation(code Code, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: code, Msg: fmt.Sprintf(format, args...)}
}

// MissingFields reports every absent required field at once.
func MissingFields(fields ...string) *Error {
	return &Error{
		Kind:   KindValidation,
		Code:   CodeMissingField,
		Fields: fields,
		Msg:    "missing required fields",
	}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Authentication(msg string) *Error {
	return &Error{Kind: KindAuthentication, Msg: msg}
}

func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Msg: fmt.Sprintf(format, args...)}
}

func DeletionFailed(err error) *Error {
	return &Error{Kind: KindDeletionFailed, Msg: "account deletion failed", Err: err}
}

func ExternalService(service string, err error) *Error {
	return &Error{Kind: KindExternalService, Msg: service, Err: err}
}

func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func IsKind(err error, k Kind) bool {
	if err == nil {
		return false
	}
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

func IsCode(err error, c Code) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == c
}
