package auth

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-auth-service/pipeline"
)

// Caller invokes a composed service method. *pipeline.Dispatcher implements it.
type Caller interface {
	Call(ctx context.Context, method string, raw pipeline.RawEvent, rc *pipeline.Context) (any, error)
}

type RegisterUserMessage struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (e RegisterUserMessage) Type() string { return "auth.register" }

// RegisterUserHandler registers a user and stores the new session in the
// command result collector.
type RegisterUserHandler struct {
	auth Caller
}

func NewRegisterUserHandler(auth Caller) *RegisterUserHandler {
	return &RegisterUserHandler{auth: auth}
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return callSession(ctx, h.auth, "register", pipeline.RawEvent{
			FieldEmail:    event.Email,
			FieldPassword: event.Password,
		})
	}
}

func callSession(ctx context.Context, caller Caller, method string, raw pipeline.RawEvent) error {
	if caller == nil {
		return goerrors.New("auth dispatcher is required", goerrors.CategoryInternal).
			WithTextCode("MISSING_DISPATCHER")
	}
	out, err := caller.Call(ctx, method, raw, nil)
	if err != nil {
		return err
	}
	if session, ok := out.(*Session); ok {
		storeResult(ctx, session)
	}
	return nil
}

func callVoid(ctx context.Context, caller Caller, method string, raw pipeline.RawEvent) error {
	if caller == nil {
		return goerrors.New("auth dispatcher is required", goerrors.CategoryInternal).
			WithTextCode("MISSING_DISPATCHER")
	}
	_, err := caller.Call(ctx, method, raw, nil)
	return err
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
