package auth

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Password length bounds, inclusive.
const (
	PasswordMinLength = 6
	PasswordMaxLength = 32
)

func validateEmail(email string) error {
	if err := validation.Validate(email, validation.Required, is.EmailFormat); err != nil {
		return errWrongEmailFormat(email)
	}
	return nil
}

func validatePassword(password string) error {
	if err := validation.Validate(password,
		validation.Required,
		validation.RuneLength(PasswordMinLength, PasswordMaxLength),
	); err != nil {
		return errWrongPasswordFormat()
	}
	return nil
}
