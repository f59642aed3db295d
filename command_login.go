package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-auth-service/pipeline"
)

type LoginMessage struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (e LoginMessage) Type() string { return "auth.login" }

type LoginHandler struct {
	auth Caller
}

func NewLoginHandler(auth Caller) *LoginHandler {
	return &LoginHandler{auth: auth}
}

func (h *LoginHandler) Execute(ctx context.Context, event LoginMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during login")
	default:
		return callSession(ctx, h.auth, "login", pipeline.RawEvent{
			FieldEmail:    event.Email,
			FieldPassword: event.Password,
		})
	}
}

type LogoutMessage struct {
	SessionID string `json:"sessionId"`
}

func (e LogoutMessage) Type() string { return "auth.logout" }

type LogoutHandler struct {
	auth Caller
}

func NewLogoutHandler(auth Caller) *LogoutHandler {
	return &LogoutHandler{auth: auth}
}

func (h *LogoutHandler) Execute(ctx context.Context, event LogoutMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during logout")
	default:
		return callVoid(ctx, h.auth, "logout", pipeline.RawEvent{FieldSessionID: event.SessionID})
	}
}
