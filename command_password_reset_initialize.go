package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-auth-service/pipeline"
)

// InitializePasswordResetMessage asks for a password reset token to be mailed.
type InitializePasswordResetMessage struct {
	Email string `json:"email"`
}

func (e InitializePasswordResetMessage) Type() string { return "auth.password.initialize" }

type InitializePasswordResetHandler struct {
	auth Caller
}

func NewInitializePasswordResetHandler(auth Caller) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{auth: auth}
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset request",
		)
	default:
		return callVoid(ctx, h.auth, "password", pipeline.RawEvent{FieldEmail: event.Email})
	}
}
