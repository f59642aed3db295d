// Package exception defines the structured error taxonomy shared by the
// pipeline, the credential store and the services. Every exception is carried
// as a *goerrors.Error so it logs and wraps like any other rich error, while
// keeping the numeric code, message key and parameters adapters rely on.
package exception

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

// Numeric exception codes.
const (
	Unknown         = 1000
	Duplicate       = 1009
	InvalidArgument = 2000
	NotFound        = 4000
)

// Message keys.
const (
	KeyInternalError      = "internal_error"
	KeyParameterNotString = "parameter_is_not_a_string"
	KeyParameterRequired  = "parameter_required"
	KeyResourceNotFound   = "resource_not_found"
	KeyReflectionError    = "reflection_error"
	KeyMethodNotFound     = "method_not_found"
	KeySessionNotFound    = "session_not_found"
	KeyWrongEmailFormat   = "wrong_email_format"
	KeyWrongPassword      = "wrong_password_format"
	KeyEmailExists        = "email_already_exists"
	KeyAuthentication     = "authentication_error"
	KeyEmailNotFound      = "email_not_found"
	KeyInvalidToken       = "invalid_token"
	KeyUserNotFound       = "user_not_found"
	KeyUnknownCategory    = "unknown_token_category"
	KeyMalformedBody      = "malformed_body"
)

// Exception is the transport neutral view of a structured error.
type Exception struct {
	Code       int               `json:"code"`
	MessageKey string            `json:"message"`
	Params     map[string]string `json:"msgParams,omitempty"`
	Localized  string            `json:"localeMessage,omitempty"`
}

// Error implements error so an Exception can be returned directly.
func (e Exception) Error() string {
	return e.MessageKey
}

// Param returns the named parameter or an empty string.
func (e Exception) Param(name string) string {
	return e.Params[name]
}

// New builds a rich error for the given code and message key.
func New(code int, key string, params map[string]string) *goerrors.Error {
	err := goerrors.New(key, CategoryFor(code)).
		WithCode(code).
		WithTextCode(key)
	if len(params) > 0 {
		err.WithMetadata(toMetadata(params))
	}
	return err
}

// Wrap attaches an exception code and key to an underlying cause.
func Wrap(cause error, code int, key string, params map[string]string) *goerrors.Error {
	if cause == nil {
		return New(code, key, params)
	}
	err := goerrors.Wrap(cause, CategoryFor(code), key).
		WithCode(code).
		WithTextCode(key)
	// go-errors keeps the category and metadata of a rich cause
	err.Category = CategoryFor(code)
	err.Metadata = nil
	if len(params) > 0 {
		err.WithMetadata(toMetadata(params))
	}
	return err
}

func NewUnknown(key string, params map[string]string) *goerrors.Error {
	return New(Unknown, key, params)
}

func NewDuplicate(key string, params map[string]string) *goerrors.Error {
	return New(Duplicate, key, params)
}

func NewInvalidArgument(key string, params map[string]string) *goerrors.Error {
	return New(InvalidArgument, key, params)
}

func NewNotFound(key string, params map[string]string) *goerrors.Error {
	return New(NotFound, key, params)
}

// Internal wraps an infrastructure failure as an Unknown exception.
func Internal(cause error, message string) *goerrors.Error {
	err := goerrors.Wrap(cause, goerrors.CategoryInternal, message).
		WithCode(Unknown).
		WithTextCode(KeyInternalError)
	err.Category = goerrors.CategoryInternal
	return err
}

// CategoryFor maps an exception code to its go-errors category.
func CategoryFor(code int) goerrors.Category {
	switch code {
	case Duplicate:
		return goerrors.CategoryConflict
	case InvalidArgument:
		return goerrors.CategoryBadInput
	case NotFound:
		return goerrors.CategoryNotFound
	default:
		return goerrors.CategoryInternal
	}
}

// From normalizes any error into an Exception. Errors that carry no exception
// code become Unknown internal errors.
func From(err error) Exception {
	if err == nil {
		return Exception{}
	}

	var ex Exception
	if errors.As(err, &ex) {
		return ex
	}

	var rich *goerrors.Error
	if goerrors.As(err, &rich) && isKnownCode(rich.Code) {
		key := rich.TextCode
		if key == "" {
			key = rich.Message
		}
		return Exception{
			Code:       rich.Code,
			MessageKey: key,
			Params:     fromMetadata(rich.Metadata),
		}
	}

	return Exception{Code: Unknown, MessageKey: KeyInternalError}
}

// Is reports whether err carries the given code and message key.
func Is(err error, code int, key string) bool {
	if err == nil {
		return false
	}
	ex := From(err)
	return ex.Code == code && ex.MessageKey == key
}

// HasCode reports whether err carries the given exception code.
func HasCode(err error, code int) bool {
	return err != nil && From(err).Code == code
}

func isKnownCode(code int) bool {
	switch code {
	case Unknown, Duplicate, InvalidArgument, NotFound:
		return true
	}
	return false
}

func toMetadata(params map[string]string) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

func fromMetadata(meta map[string]any) map[string]string {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
