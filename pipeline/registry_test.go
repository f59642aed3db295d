package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/goliatone/go-auth-service/pipeline"
)

type declaration func(r *pipeline.Registry)

func permutations(n int) [][]int {
	if n == 0 {
		return [][]int{{}}
	}
	var out [][]int
	for _, p := range permutations(n - 1) {
		for i := 0; i <= len(p); i++ {
			next := make([]int, 0, n)
			next = append(next, p[:i]...)
			next = append(next, n-1)
			next = append(next, p[i:]...)
			out = append(out, next)
		}
	}
	return out
}

func TestRegistry_DeclarationOrderDoesNotMatter(t *testing.T) {
	key := pipeline.HandlerKey{Owner: "auth", Name: "reset"}
	noop := func(next pipeline.Handler) pipeline.Handler { return next }

	decls := []declaration{
		func(r *pipeline.Registry) { r.DeclareRequired(key, "token", "password") },
		func(r *pipeline.Registry) { r.DeclareResource(key, "storage") },
		func(r *pipeline.Registry) { r.DeclareOwnerResource("auth", "clock", "storage") },
		func(r *pipeline.Registry) { r.DeclareOwnerRequired("auth", "token") },
		func(r *pipeline.Registry) { r.DeclareGuard(key, pipeline.Guard{Name: "b", Priority: 1, Wrap: noop}) },
		func(r *pipeline.Registry) { r.DeclareOwnerGuard("auth", pipeline.Guard{Name: "a", Priority: 1, Wrap: noop}) },
	}

	want := pipeline.HandlerMetadata{
		RequiredFields: []string{"password", "token"},
		ResourceNames:  []string{"clock", "storage"},
		Guards:         []string{"a", "b"},
	}

	for _, perm := range permutations(len(decls)) {
		r := pipeline.NewRegistry()
		for _, i := range perm {
			decls[i](r)
		}
		// repeating every declaration is a no-op
		for _, i := range perm {
			decls[i](r)
		}
		assert.Equal(t, want, r.Metadata(key), "permutation %v", perm)
	}
}

func TestRegistry_OwnerDeclarationsDoNotLeak(t *testing.T) {
	r := pipeline.NewRegistry()
	r.DeclareOwnerResource("user", "storage")
	r.DeclareRequired(pipeline.HandlerKey{Owner: "auth", Name: "login"}, "email")

	meta := r.Metadata(pipeline.HandlerKey{Owner: "auth", Name: "login"})
	assert.Equal(t, []string{"email"}, meta.RequiredFields)
	assert.Empty(t, meta.ResourceNames)

	other := r.Metadata(pipeline.HandlerKey{Owner: "user", Name: "me"})
	assert.Equal(t, []string{"storage"}, other.ResourceNames)
	assert.True(t, other.Uses("storage"))
	assert.False(t, other.Requires("email"))
}

func TestRegistry_IgnoresBlankNames(t *testing.T) {
	r := pipeline.NewRegistry()
	key := pipeline.HandlerKey{Owner: "auth", Name: "login"}
	r.DeclareRequired(key, "", "  ", "email")
	r.DeclareGuard(key, pipeline.Guard{Name: "no-wrap"})

	meta := r.Metadata(key)
	assert.Equal(t, []string{"email"}, meta.RequiredFields)
	assert.Empty(t, meta.Guards)
}

func TestRegistry_KeysSorted(t *testing.T) {
	r := pipeline.NewRegistry()
	r.DeclareRequired(pipeline.HandlerKey{Owner: "user", Name: "me"}, "sessionId")
	r.DeclareRequired(pipeline.HandlerKey{Owner: "auth", Name: "login"}, "email")

	assert.Equal(t, []pipeline.HandlerKey{
		{Owner: "auth", Name: "login"},
		{Owner: "user", Name: "me"},
	}, r.Keys())
}
