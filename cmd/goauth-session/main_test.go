package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/internal/authtest"
	"github.com/alicebob/miniredis/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "ada@example.com"
	testPassword = "correct horse"
)

type result struct {
	stdout string
	stderr string
	err    error
}

func execute(ctx context.Context, args ...string) result {
	var out, errOut bytes.Buffer
	root := newRootCmd(viper.New(), &out, &errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return result{stdout: out.String(), stderr: errOut.String(), err: err}
}

// session runs commands against one server and one token file.
type session struct {
	t         *testing.T
	srv       *authtest.Server
	tokenFile string
}

func newSession(t *testing.T, opts ...authtest.Option) *session {
	t.Helper()
	srv := authtest.NewServer(append([]authtest.Option{authtest.WithUser(testEmail, testPassword)}, opts...)...)
	t.Cleanup(srv.Close)
	return &session{t: t, srv: srv, tokenFile: filepath.Join(t.TempDir(), "tokens.json")}
}

func (s *session) run(args ...string) result {
	s.t.Helper()
	base := []string{"--base-url", s.srv.URL, "--token-file", s.tokenFile}
	return execute(context.Background(), append(base, args...)...)
}

func (s *session) login() {
	s.t.Helper()
	res := s.run("login", "-e", testEmail, "-p", testPassword)
	require.NoError(s.t, res.err)
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCmd(viper.New(), &bytes.Buffer{}, &bytes.Buffer{})
	assert.Equal(t, "goauth-session", root.Use)

	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"login", "register", "logout", "status", "refresh", "request", "watch"} {
		assert.Contains(t, names, want)
	}

	timeout, err := root.PersistentFlags().GetDuration("timeout")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, timeout)
}

func TestLoginStatusLogout(t *testing.T) {
	s := newSession(t)

	res := s.run("login", "-e", testEmail, "-p", testPassword)
	require.NoError(t, res.err)
	assert.Equal(t, "signed in as "+testEmail+"\n", res.stdout)

	raw, err := os.ReadFile(s.tokenFile)
	require.NoError(t, err)
	var slots map[string]string
	require.NoError(t, json.Unmarshal(raw, &slots))
	assert.NotEmpty(t, slots["access_token"])
	assert.NotEmpty(t, slots["refresh_token"])

	res = s.run("status")
	require.NoError(t, res.err)
	assert.Equal(t, "authenticated as "+testEmail+"\n", res.stdout)

	res = s.run("logout")
	require.NoError(t, res.err)
	assert.Equal(t, "signed out\n", res.stdout)

	res = s.run("status")
	require.NoError(t, res.err)
	assert.Equal(t, "not authenticated\n", res.stdout)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	s := newSession(t)

	res := s.run("login", "-e", testEmail, "-p", "nope")
	require.Error(t, res.err)

	var apiErr *goAuthClient.APIError
	require.True(t, errors.As(res.err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Invalid email or password", apiErr.Detail)
	assert.Equal(t, int64(0), s.srv.Exchanges())
}

func TestLoginRequiresCredentials(t *testing.T) {
	s := newSession(t)

	res := s.run("login", "-e", testEmail)
	assert.EqualError(t, res.err, "email and password are required")
}

func TestRegisterSignsIn(t *testing.T) {
	s := newSession(t)

	res := s.run("register", "-e", "grace@example.com", "-p", "hopper")
	require.NoError(t, res.err)
	assert.Equal(t, "signed in as grace@example.com\n", res.stdout)

	res = s.run("register", "-e", "grace@example.com", "-p", "hopper")
	var apiErr *goAuthClient.APIError
	require.True(t, errors.As(res.err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
}

func TestRequestRenewsAfterRevokedAccess(t *testing.T) {
	s := newSession(t)
	s.login()
	s.srv.RevokeAccess()

	res := s.run("request", "get", "/api/things", "-q", "page=2")
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "HTTP 200")

	var echo authtest.Echo
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &echo))
	assert.Equal(t, http.MethodGet, echo.Method)
	assert.Equal(t, "/api/things", echo.Path)
	assert.Equal(t, "page=2", echo.Query)
	assert.Equal(t, int64(1), s.srv.Exchanges())
}

func TestRequestSendsJSONData(t *testing.T) {
	s := newSession(t)
	s.login()

	res := s.run("request", "POST", "/api/notes", "-d", `{"title":"hi"}`)
	require.NoError(t, res.err)

	var echo authtest.Echo
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &echo))
	assert.Equal(t, "application/json", echo.ContentType)
	assert.JSONEq(t, `{"title":"hi"}`, echo.Body)
}

func TestRequestSendsMultipart(t *testing.T) {
	s := newSession(t)
	s.login()

	upload := filepath.Join(t.TempDir(), "avatar.png")
	require.NoError(t, os.WriteFile(upload, []byte("png-bytes"), 0o600))

	res := s.run("request", "POST", "/api/upload", "-F", "caption=me", "--file", "image="+upload)
	require.NoError(t, res.err)

	var echo authtest.Echo
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &echo))
	assert.True(t, strings.HasPrefix(echo.ContentType, "multipart/form-data; boundary="), echo.ContentType)
	assert.Contains(t, echo.Body, `filename="avatar.png"`)
	assert.Contains(t, echo.Body, "png-bytes")
	assert.Contains(t, echo.Body, "caption")
}

func TestRequestInputValidation(t *testing.T) {
	s := newSession(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "invalid json", args: []string{"request", "POST", "/api/x", "-d", "{"}, want: "--data must be valid JSON"},
		{name: "data with field", args: []string{"request", "POST", "/api/x", "-d", "{}", "-F", "a=b"}, want: "--data cannot be combined with --field or --file"},
		{name: "bad field", args: []string{"request", "POST", "/api/x", "-F", "novalue"}, want: `invalid field "novalue", want key=value`},
		{name: "bad query", args: []string{"request", "GET", "/api/x", "-q", "=1"}, want: `invalid query "=1", want key=value`},
		{name: "bad file", args: []string{"request", "POST", "/api/x", "--file", "image"}, want: `invalid file "image", want field=path`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.run(tt.args...)
			assert.EqualError(t, res.err, tt.want)
		})
	}
}

func TestRequestReportsFailureStatus(t *testing.T) {
	s := newSession(t)
	s.login()

	res := s.run("request", "GET", "/api/fail")
	assert.EqualError(t, res.err, "request failed with status 422")
	assert.Contains(t, res.stderr, "HTTP 422")
	assert.Contains(t, res.stdout, "validation failed")
}

func TestRefreshCommand(t *testing.T) {
	s := newSession(t)

	res := s.run("refresh")
	assert.ErrorIs(t, res.err, errNotSignedIn)

	s.login()
	res = s.run("refresh")
	require.NoError(t, res.err)
	assert.Equal(t, "session renewed\n", res.stdout)
	assert.Equal(t, int64(1), s.srv.Exchanges())
}

func TestRefreshDeniedEndsSession(t *testing.T) {
	s := newSession(t)
	s.login()
	s.srv.SetRefreshMode(authtest.RefreshDeny)

	res := s.run("refresh")
	assert.ErrorIs(t, res.err, goAuthClient.ErrRefreshDenied)
	assert.Contains(t, res.stderr, "session ended, sign in again (/login)")

	res = s.run("status")
	require.NoError(t, res.err)
	assert.Equal(t, "not authenticated\n", res.stdout)
}

func TestEnvironmentSuppliesSettings(t *testing.T) {
	srv := authtest.NewServer(authtest.WithUser(testEmail, testPassword))
	t.Cleanup(srv.Close)

	t.Setenv("GOAUTH_SESSION_BASE_URL", srv.URL)
	t.Setenv("GOAUTH_SESSION_TOKEN_FILE", filepath.Join(t.TempDir(), "tokens.json"))
	t.Setenv("GOAUTH_SESSION_PASSWORD", testPassword)

	res := execute(context.Background(), "login", "--email", testEmail)
	require.NoError(t, res.err)
	assert.Equal(t, "signed in as "+testEmail+"\n", res.stdout)
}

func TestConfigFileSuppliesSettings(t *testing.T) {
	srv := authtest.NewServer(authtest.WithUser(testEmail, testPassword))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := filepath.Join(dir, "session.yaml")
	body := "base-url: " + srv.URL + "\ntoken-file: " + filepath.Join(dir, "tokens.json") + "\n"
	require.NoError(t, os.WriteFile(cfg, []byte(body), 0o600))

	res := execute(context.Background(), "-c", cfg, "login", "-e", testEmail, "-p", testPassword)
	require.NoError(t, res.err)

	res = execute(context.Background(), "--config", cfg, "status")
	require.NoError(t, res.err)
	assert.Equal(t, "authenticated as "+testEmail+"\n", res.stdout)
}

func TestMissingBaseURL(t *testing.T) {
	res := execute(context.Background(), "--token-file", filepath.Join(t.TempDir(), "t.json"), "status")
	assert.EqualError(t, res.err, "BaseURL is required")
}

func TestRedisBackedSession(t *testing.T) {
	srv := authtest.NewServer(authtest.WithUser(testEmail, testPassword))
	t.Cleanup(srv.Close)
	mr := miniredis.RunT(t)

	base := []string{"--base-url", srv.URL, "--redis-addr", mr.Addr(), "--redis-prefix", "cli"}
	res := execute(context.Background(), append(base, "login", "-e", testEmail, "-p", testPassword)...)
	require.NoError(t, res.err)
	assert.True(t, mr.Exists("cli:access_token"))
	assert.True(t, mr.Exists("cli:refresh_token"))

	res = execute(context.Background(), append(base, "logout")...)
	require.NoError(t, res.err)
	assert.False(t, mr.Exists("cli:access_token"))
}

func TestWatchRequiresSession(t *testing.T) {
	s := newSession(t)

	res := s.run("watch")
	assert.ErrorIs(t, res.err, errNotSignedIn)
}

func TestWatchEndsWhenRenewalDenied(t *testing.T) {
	s := newSession(t)
	s.login()
	s.srv.SetRefreshMode(authtest.RefreshDeny)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	base := []string{"--base-url", s.srv.URL, "--token-file", s.tokenFile}
	res := execute(ctx, append(base, "watch", "--threshold", "1h", "--interval", "10m")...)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "session ended")
	assert.Equal(t, int64(1), s.srv.Exchanges())
}

func TestWatchStopsOnCancel(t *testing.T) {
	s := newSession(t)
	s.login()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	base := []string{"--base-url", s.srv.URL, "--token-file", s.tokenFile}
	res := execute(ctx, append(base, "watch", "--threshold", "1m", "--interval", "30s")...)
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "watching session (threshold 1m0s, every 30s)")
	assert.Contains(t, res.stdout, "stopped")
	assert.Equal(t, int64(0), s.srv.Exchanges())
}

func TestVerboseLogsAuditEvents(t *testing.T) {
	s := newSession(t)

	res := s.run("-v", "login", "-e", testEmail, "-p", testPassword)
	require.NoError(t, res.err)
	assert.Contains(t, res.stderr, "goAuthClient: audit")
	assert.Contains(t, res.stderr, "event=login")
}
