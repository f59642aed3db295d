package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-auth-service"
	"github.com/goliatone/go-auth-service/exception"
	"github.com/goliatone/go-auth-service/pipeline"
)

func TestAuthenticate_DeclaresGuard(t *testing.T) {
	h := newHarness(t)
	composer := pipeline.NewComposer(h.providers)

	var (
		seenUser    *auth.User
		seenSession *auth.Session
		ctxUser     *auth.User
		ctxSession  *auth.Session
	)
	handler := func(ctx context.Context, _ pipeline.Event, rc *pipeline.Context) (any, error) {
		seenUser, _ = auth.UserFrom(rc)
		seenSession, _ = auth.SessionFrom(rc)
		ctxUser, _ = auth.FromContext(ctx)
		ctxSession, _ = auth.SessionFromContext(ctx)
		return "ok", nil
	}

	dispatcher, err := pipeline.NewService("reports", composer).
		Method("list", handler, auth.Authenticate()).
		Method("public", handler).
		Build()
	require.NoError(t, err)

	meta := dispatcher.Metadata("list")
	assert.Equal(t, []string{auth.FieldSessionID}, meta.RequiredFields)
	assert.Equal(t, []string{auth.ResourceClock, auth.ResourceStorage}, meta.ResourceNames)
	assert.Equal(t, []string{auth.GuardAuthenticate}, meta.Guards)
	assert.Empty(t, dispatcher.Metadata("public").Guards)

	session := h.register(t, "a@b.com", "abcdef")

	out, err := dispatcher.Call(context.Background(), "list", pipeline.RawEvent{auth.FieldSessionID: session.ID}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	require.NotNil(t, seenUser)
	assert.Equal(t, "a@b.com", seenUser.Email)
	require.NotNil(t, seenSession)
	assert.Equal(t, session.ID, seenSession.ID)
	assert.Same(t, seenUser, ctxUser)
	assert.Same(t, seenSession, ctxSession)
}

func TestAuthenticate_RejectsBeforeHandler(t *testing.T) {
	h := newHarness(t)
	composer := pipeline.NewComposer(h.providers)

	called := false
	dispatcher, err := pipeline.NewService("reports", composer, auth.Authenticate()).
		Method("list", func(context.Context, pipeline.Event, *pipeline.Context) (any, error) {
			called = true
			return nil, nil
		}).
		Build()
	require.NoError(t, err)

	_, err = dispatcher.Call(context.Background(), "list", pipeline.RawEvent{auth.FieldSessionID: "zz"}, nil)
	assert.True(t, exception.Is(err, exception.NotFound, exception.KeySessionNotFound))
	assert.Equal(t, "zz", exception.From(err).Param(auth.FieldSessionID))
	assert.False(t, called)
}

func TestAuthenticate_MissingStorage(t *testing.T) {
	composer := pipeline.NewComposer(pipeline.NewProviders())
	dispatcher, err := pipeline.NewService("reports", composer, auth.Authenticate()).
		Method("list", func(context.Context, pipeline.Event, *pipeline.Context) (any, error) {
			return nil, nil
		}).
		Build()
	require.NoError(t, err)

	_, err = dispatcher.Call(context.Background(), "list", pipeline.RawEvent{auth.FieldSessionID: "abcd"}, nil)
	assert.True(t, exception.Is(err, exception.Unknown, exception.KeyResourceNotFound))
}
