package cli_test

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	auth "github.com/goliatone/go-auth-service"
	authcli "github.com/goliatone/go-auth-service/internal/cli"
)

type run struct {
	stdout string
	stderr string
	err    error
}

func baseArgs(t *testing.T) []string {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "authctl.db")
	return []string{
		"authctl",
		"--env-prefix", "AUTHSVC_TEST_CLI_",
		"--set", "session.secret=session-secret",
		"--set", "tokens.password.secret=password-secret",
		"--set", "tokens.email.secret=email-secret",
		"--set", "storage.driver=sqlite",
		"--set", "storage.dsn=" + dsn,
	}
}

func runApp(args ...string) run {
	var stdout, stderr bytes.Buffer
	app := authcli.App()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(args)
	return run{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func exitCode(err error) int {
	if coder, ok := err.(cli.ExitCoder); ok {
		return coder.ExitCode()
	}
	return -1
}

func TestCall_RegisterThenLogin(t *testing.T) {
	args := baseArgs(t)

	res := runApp(append(args, "call", "auth", "register", "email=a%40b.com", "password=abcdef")...)
	require.NoError(t, res.err, res.stderr)

	var session auth.Session
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &session))
	assert.True(t, auth.IsHex(session.ID))

	res = runApp(append(args, "call", "auth", "login", "email=a@b.com", "password=abcdef")...)
	require.NoError(t, res.err, res.stderr)

	res = runApp(append(args, "call", "user", "me", "sessionId="+session.ID)...)
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, `"email": "a@b.com"`)
}

func TestCall_ExceptionOnStderr(t *testing.T) {
	res := runApp(append(baseArgs(t), "call", "auth", "login", "email=a@b.com")...)
	require.Error(t, res.err)
	assert.Equal(t, 1, exitCode(res.err))
	assert.Empty(t, res.stdout)
	assert.Contains(t, res.stderr, `"message": "parameter_required"`)
	assert.Contains(t, res.stderr, `"code": 2000`)
	assert.Contains(t, res.stderr, "Parameter password is required")
}

func TestCall_UnknownService(t *testing.T) {
	res := runApp(append(baseArgs(t), "call", "billing", "charge")...)
	require.Error(t, res.err)
	assert.Equal(t, 1, exitCode(res.err))
	assert.Contains(t, res.stderr, "method_not_found")
}

func TestCall_UnknownMethod(t *testing.T) {
	res := runApp(append(baseArgs(t), "call", "auth", "explode")...)
	require.Error(t, res.err)
	assert.Contains(t, res.stderr, "method_not_found")
	assert.Contains(t, res.stderr, `"code": 4000`)
}

func TestCall_BadArguments(t *testing.T) {
	res := runApp(append(baseArgs(t), "call", "auth")...)
	assert.Equal(t, 2, exitCode(res.err))

	res = runApp(append(baseArgs(t), "call", "auth", "login", "novalue")...)
	assert.Equal(t, 2, exitCode(res.err))
}

func TestConfig_Redacted(t *testing.T) {
	res := runApp(append(baseArgs(t), "config")...)
	require.NoError(t, res.err, res.stderr)
	assert.NotContains(t, res.stdout, "session-secret")
	assert.NotContains(t, res.stdout, "password-secret")
	assert.Contains(t, res.stdout, "********")
	assert.Contains(t, res.stdout, "sqlite")
}

func TestConfig_Invalid(t *testing.T) {
	res := runApp("authctl", "--env-prefix", "AUTHSVC_TEST_CLI_EMPTY_", "config")
	require.Error(t, res.err)
}

func TestMethods(t *testing.T) {
	res := runApp(append(baseArgs(t), "methods")...)
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "auth register required=email,password resources=clock,storage")
	assert.Contains(t, res.stdout, "user me required=sessionId")
}

func TestRedact(t *testing.T) {
	cfg := auth.DefaultConfig()
	cfg.Session.Secret = "s"
	cfg.Tokens[auth.CategoryEmail] = auth.CredentialConfig{Timeout: 1, Secret: "e"}
	cfg.Storage.RedisPassword = "p"

	out := authcli.Redact(cfg)
	assert.Equal(t, "********", out.Session.Secret)
	assert.Equal(t, "********", out.Tokens[auth.CategoryEmail].Secret)
	assert.Equal(t, "", out.Tokens[auth.CategoryPassword].Secret)
	assert.Equal(t, "********", out.Storage.RedisPassword)
	assert.Equal(t, "e", cfg.Tokens[auth.CategoryEmail].Secret, "input is not modified")
}
