package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-auth-service/pipeline"
)

// FinalizePasswordResetMessage spends a password token to set a new password.
type FinalizePasswordResetMessage struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (e FinalizePasswordResetMessage) Type() string { return "auth.password.finalize" }

type FinalizePasswordResetHandler struct {
	auth Caller
}

func NewFinalizePasswordResetHandler(auth Caller) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{auth: auth}
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset",
		)
	default:
		return callVoid(ctx, h.auth, "reset", pipeline.RawEvent{
			FieldToken:    event.Token,
			FieldPassword: event.Password,
		})
	}
}
