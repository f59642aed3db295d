package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-auth-service/pipeline"
)

type CurrentUserMessage struct {
	SessionID string `json:"sessionId"`
}

func (e CurrentUserMessage) Type() string { return "user.me" }

type CurrentUserQuery struct {
	users Caller
}

func NewCurrentUserQuery(users Caller) *CurrentUserQuery {
	return &CurrentUserQuery{users: users}
}

func (q *CurrentUserQuery) Query(ctx context.Context, msg CurrentUserMessage) (*User, error) {
	return queryUser(ctx, q.users, "me", pipeline.RawEvent{FieldSessionID: msg.SessionID})
}

type FetchUserMessage struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

func (e FetchUserMessage) Type() string { return "user.fetch" }

type FetchUserQuery struct {
	users Caller
}

func NewFetchUserQuery(users Caller) *FetchUserQuery {
	return &FetchUserQuery{users: users}
}

func (q *FetchUserQuery) Query(ctx context.Context, msg FetchUserMessage) (*User, error) {
	return queryUser(ctx, q.users, "fetch", pipeline.RawEvent{
		FieldSessionID: msg.SessionID,
		FieldUserID:    msg.UserID,
	})
}

func queryUser(ctx context.Context, caller Caller, method string, raw pipeline.RawEvent) (*User, error) {
	if caller == nil {
		return nil, goerrors.New("user dispatcher is required", goerrors.CategoryInternal).
			WithTextCode("MISSING_DISPATCHER")
	}
	out, err := caller.Call(ctx, method, raw, nil)
	if err != nil {
		return nil, err
	}
	user, ok := out.(*User)
	if !ok {
		return nil, goerrors.New("unexpected user query result", goerrors.CategoryInternal).
			WithTextCode("UNEXPECTED_RESULT")
	}
	return user, nil
}
