package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-auth-service/pipeline"
)

// AccountVerificationMessage asks for an email confirmation token to be mailed.
type AccountVerificationMessage struct {
	Email string `json:"email"`
}

func (e AccountVerificationMessage) Type() string { return "auth.email.request" }

type AccountVerificationHandler struct {
	auth Caller
}

func NewAccountVerificationHandler(auth Caller) *AccountVerificationHandler {
	return &AccountVerificationHandler{auth: auth}
}

func (h *AccountVerificationHandler) Execute(ctx context.Context, event AccountVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account verification request",
		)
	default:
		return callVoid(ctx, h.auth, "email", pipeline.RawEvent{FieldEmail: event.Email})
	}
}

// ValidateEmailMessage spends an email token to mark the account validated.
type ValidateEmailMessage struct {
	Token string `json:"token"`
}

func (e ValidateEmailMessage) Type() string { return "auth.email.validate" }

type ValidateEmailHandler struct {
	auth Caller
}

func NewValidateEmailHandler(auth Caller) *ValidateEmailHandler {
	return &ValidateEmailHandler{auth: auth}
}

func (h *ValidateEmailHandler) Execute(ctx context.Context, event ValidateEmailMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email validation",
		)
	default:
		return callVoid(ctx, h.auth, "validate", pipeline.RawEvent{FieldToken: event.Token})
	}
}
