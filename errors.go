package auth

import (
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-auth-service/exception"
)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode("EMPTY_PASSWORD")

func errSessionNotFound(sessionID string) error {
	return exception.NewNotFound(exception.KeySessionNotFound, map[string]string{"sessionId": sessionID})
}

func errWrongEmailFormat(email string) error {
	return exception.NewInvalidArgument(exception.KeyWrongEmailFormat, map[string]string{"email": email})
}

func errWrongPasswordFormat() error {
	return exception.NewInvalidArgument(exception.KeyWrongPassword, nil)
}

func errEmailExists(email string) error {
	return exception.NewDuplicate(exception.KeyEmailExists, map[string]string{"email": email})
}

func errEmailNotFound(email string) error {
	return exception.NewNotFound(exception.KeyEmailNotFound, map[string]string{"email": email})
}

func errInvalidToken(token string) error {
	return exception.NewNotFound(exception.KeyInvalidToken, map[string]string{"token": token})
}

func errUserNotFound(userID string) error {
	return exception.NewNotFound(exception.KeyUserNotFound, map[string]string{"userId": userID})
}

func errResourceMissing(name string) error {
	return exception.NewUnknown(exception.KeyResourceNotFound, map[string]string{"resource": name})
}

// ErrUnknownCategory reports a token category without a configured policy.
func ErrUnknownCategory(category string) error {
	return exception.NewInvalidArgument(exception.KeyUnknownCategory, map[string]string{"category": category})
}

func errAuthentication() error {
	return exception.NewNotFound(exception.KeyAuthentication, nil)
}
