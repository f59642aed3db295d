package auth_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	auth "github.com/goliatone/go-auth-service"
)

func TestUserContext(t *testing.T) {
	_, ok := auth.FromContext(context.Background())
	assert.False(t, ok)

	user := &auth.User{ID: uuid.New(), Email: "a@b.com"}
	ctx := auth.WithContext(context.Background(), user)

	got, ok := auth.FromContext(ctx)
	assert.True(t, ok)
	assert.Same(t, user, got)

	_, ok = auth.FromContext(auth.WithContext(context.Background(), nil))
	assert.False(t, ok)
}

func TestSessionContext(t *testing.T) {
	_, ok := auth.SessionFromContext(context.Background())
	assert.False(t, ok)

	session := &auth.Session{ID: "abcd", UserID: uuid.NewString()}
	ctx := auth.WithSessionContext(context.Background(), session)

	got, ok := auth.SessionFromContext(ctx)
	assert.True(t, ok)
	assert.Same(t, session, got)

	_, ok = auth.FromContext(ctx)
	assert.False(t, ok, "session and user keys are distinct")
}
