package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-auth-service"
	"github.com/goliatone/go-auth-service/exception"
	"github.com/goliatone/go-auth-service/pipeline"
	"github.com/goliatone/go-auth-service/store/storetest"
)

func TestUserService_Methods(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, []string{"fetch", "me"}, h.user.Methods())

	for _, method := range h.user.Methods() {
		meta := h.user.Metadata(method)
		assert.True(t, meta.Requires(auth.FieldSessionID), method)
		assert.True(t, meta.Uses(auth.ResourceStorage), method)
		assert.True(t, meta.Uses(auth.ResourceClock), method)
		assert.Equal(t, []string{auth.GuardAuthenticate}, meta.Guards, method)
	}
	assert.True(t, h.user.Metadata("fetch").Requires(auth.FieldUserID))
}

func TestUserService_Me(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	session := h.register(t, "a@b.com", "abcdef")

	out, err := h.user.Call(ctx, "me", pipeline.RawEvent{auth.FieldSessionID: session.ID}, nil)
	require.NoError(t, err)

	user, ok := out.(*auth.User)
	require.True(t, ok)
	assert.Equal(t, "a@b.com", user.Email)
	assert.Equal(t, session.UserID, user.ID.String())
	assert.Empty(t, user.PasswordDigest)
	assert.Empty(t, user.PasswordSalt)
}

func TestUserService_MeRejectsBadSessions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.register(t, "a@b.com", "abcdef")

	for _, id := range []string{"not-hex", "abcdef0123", uuid.NewString()} {
		_, err := h.user.Call(ctx, "me", pipeline.RawEvent{auth.FieldSessionID: id}, nil)
		assert.True(t, exception.Is(err, exception.NotFound, exception.KeySessionNotFound), id)
	}

	_, err := h.user.Call(ctx, "me", pipeline.RawEvent{}, nil)
	assert.True(t, exception.Is(err, exception.InvalidArgument, exception.KeyParameterRequired))
	assert.Equal(t, auth.FieldSessionID, exception.From(err).Param("paramName"))
}

func TestUserService_SessionSlidingExpiry(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	session := h.register(t, "a@b.com", "abcdef")
	me := pipeline.RawEvent{auth.FieldSessionID: session.ID}

	h.clock.Advance(storetest.Timeout - time.Second)
	_, err := h.user.Call(ctx, "me", me, nil)
	require.NoError(t, err)

	// past the first expiry, still inside the extended one
	h.clock.Advance(storetest.Timeout - time.Second)
	_, err = h.user.Call(ctx, "me", me, nil)
	require.NoError(t, err)

	h.clock.Advance(storetest.Timeout + time.Second)
	_, err = h.user.Call(ctx, "me", me, nil)
	assert.True(t, exception.Is(err, exception.NotFound, exception.KeySessionNotFound))
}

func TestUserService_Fetch(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	session := h.register(t, "a@b.com", "abcdef")
	other := h.register(t, "c@d.com", "abcdef")

	out, err := h.user.Call(ctx, "fetch", pipeline.RawEvent{
		auth.FieldSessionID: session.ID,
		auth.FieldUserID:    other.UserID,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "c@d.com", out.(*auth.User).Email)

	missing := uuid.NewString()
	_, err = h.user.Call(ctx, "fetch", pipeline.RawEvent{
		auth.FieldSessionID: session.ID,
		auth.FieldUserID:    missing,
	}, nil)
	require.Error(t, err)
	assert.True(t, exception.Is(err, exception.NotFound, exception.KeyUserNotFound))
	assert.Equal(t, missing, exception.From(err).Param("userId"))

	// required fields are checked in sorted order
	_, err = h.user.Call(ctx, "fetch", pipeline.RawEvent{}, nil)
	assert.Equal(t, auth.FieldSessionID, exception.From(err).Param("paramName"))
}

func TestUserService_RequiresLiveOwner(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	// a session whose user does not exist
	session, err := h.store.Sessions(storetest.T0).Create(ctx, uuid.NewString())
	require.NoError(t, err)

	_, err = h.user.Call(ctx, "me", pipeline.RawEvent{auth.FieldSessionID: session.ID}, nil)
	assert.True(t, exception.Is(err, exception.NotFound, exception.KeySessionNotFound))
}
