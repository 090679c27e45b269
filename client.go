package goAuthClient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/MrEthical07/goAuthClient/gateway"
	"github.com/MrEthical07/goAuthClient/internal/audit"
	"github.com/MrEthical07/goAuthClient/internal/metrics"
	"github.com/MrEthical07/goAuthClient/refresh"
	"github.com/MrEthical07/goAuthClient/scheduler"
	"github.com/MrEthical07/goAuthClient/tokenstore"
	"github.com/google/uuid"
)

const maxBodyBytes = 1 << 20

// ErrUnexpectedResponse is returned when a login or registration answer is 2xx but
// carries no credential pair.
var ErrUnexpectedResponse = errors.New("unexpected response")

// Client is the authenticated session of one user. It is safe for concurrent use.
type Client struct {
	config      Config
	logger      *slog.Logger
	httpClient  *http.Client
	store       *tokenstore.Store
	coordinator *refresh.Coordinator
	gateway     *gateway.Gateway
	scheduler   *scheduler.Scheduler
	metrics     *metrics.Metrics
	audit       *audit.Dispatcher

	userMu sync.RWMutex
	user   *User

	unwatch   func()
	closed    atomic.Bool
	closeOnce sync.Once
}

// Init hydrates the token pair from durable storage and starts background renewal when
// both tokens are present.
func (c *Client) Init(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if err := c.store.Load(ctx); err != nil {
		return fmt.Errorf("load tokens: %w", err)
	}

	p := c.store.Get()
	c.logger.Debug("goAuthClient: session initialized",
		slog.Bool("access", p.AccessToken != ""),
		slog.Bool("refresh", p.RefreshToken != ""),
	)
	if p.AccessToken != "" && p.RefreshToken != "" {
		c.startRenewal()
	}
	return nil
}

// Login exchanges credentials for a token pair, stores it and starts renewal.
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	return c.authenticate(ctx, c.config.Endpoints.Login, audit.EventLogin, "Login failed", email, password)
}

// Register creates an account and signs it in.
func (c *Client) Register(ctx context.Context, email, password string) (*User, error) {
	return c.authenticate(ctx, c.config.Endpoints.Register, audit.EventRegister, "Registration failed", email, password)
}

func (c *Client) authenticate(ctx context.Context, endpoint, event, fallback, email, password string) (*User, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}

	out, err := c.postCredentials(ctx, endpoint, fallback, credentials{Email: email, Password: password})
	if err != nil {
		c.metrics.Inc(metrics.LoginFailure)
		c.audit.Emit(ctx, audit.NewEvent(event, err, nil))
		return nil, err
	}

	c.store.Set(ctx, tokenstore.Pair{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken})
	c.setUser(out.User)
	c.startRenewal()

	c.metrics.Inc(metrics.LoginSuccess)
	c.audit.Emit(ctx, audit.NewEvent(event, nil, nil))
	c.logger.Info("goAuthClient: signed in", slog.String("event", event))
	return out.User, nil
}

// postCredentials bypasses the gateway: a 401 here means bad credentials, not an
// expired access token.
func (c *Client) postCredentials(ctx context.Context, endpoint, fallback string, in credentials) (*sessionResponse, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(c.config.BaseURL, endpoint), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.config.HTTP.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.HTTP.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer closeBody(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeAPIError(resp, fallback)
	}

	var out sessionResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	if out.AccessToken == "" || out.RefreshToken == "" {
		return nil, fmt.Errorf("%w: missing token fields", ErrUnexpectedResponse)
	}
	return &out, nil
}

// Logout stops renewal and clears the session locally.
func (c *Client) Logout(ctx context.Context) {
	if c.scheduler != nil {
		c.scheduler.Stop()
	}
	c.store.Clear(ctx)
	c.setUser(nil)

	c.metrics.Inc(metrics.Logout)
	c.audit.Emit(ctx, audit.NewEvent(audit.EventLogout, nil, nil))
	c.logger.Info("goAuthClient: signed out")
}

// CheckAuthStatus asks the me endpoint whether the session is still accepted, renewing
// once if needed. A non-2xx answer clears the session. A transport failure is returned
// and the session is kept.
func (c *Client) CheckAuthStatus(ctx context.Context) (bool, error) {
	if c.closed.Load() {
		return false, ErrClientClosed
	}
	if !c.store.IsAuthenticated() {
		return false, nil
	}

	resp, err := c.gateway.Send(ctx, gateway.Request{Method: http.MethodGet, Path: c.config.Endpoints.Me})
	switch {
	case errors.Is(err, ErrRefreshDenied):
		c.setUser(nil)
		c.audit.Emit(ctx, audit.NewEvent(audit.EventCheckAuth, err, nil))
		return false, nil
	case err != nil:
		c.audit.Emit(ctx, audit.NewEvent(audit.EventCheckAuth, err, nil))
		return false, err
	}
	defer closeBody(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := decodeAPIError(resp, "Not authenticated")
		c.store.Clear(ctx)
		c.setUser(nil)
		c.audit.Emit(ctx, audit.NewEvent(audit.EventCheckAuth, apiErr, nil))
		return false, nil
	}

	var u User
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&u); err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	c.setUser(&u)
	c.audit.Emit(ctx, audit.NewEvent(audit.EventCheckAuth, nil, nil))
	return true, nil
}

// Refresh renews the token pair now, joining a renewal already in flight.
func (c *Client) Refresh(ctx context.Context) (tokenstore.Pair, error) {
	if c.closed.Load() {
		return tokenstore.Pair{}, ErrClientClosed
	}
	return c.coordinator.Refresh(ctx)
}

// Tokens returns the current pair.
func (c *Client) Tokens() tokenstore.Pair {
	return c.store.Get()
}

func (c *Client) IsAuthenticated() bool {
	return c.store.IsAuthenticated()
}

// User returns the last account document seen by Login, Register or CheckAuthStatus.
func (c *Client) User() (User, bool) {
	c.userMu.RLock()
	defer c.userMu.RUnlock()
	if c.user == nil {
		return User{}, false
	}
	return *c.user, true
}

// OnAuthChange calls fn with the new authenticated state each time it flips. fn runs
// synchronously with the mutation and must not call back into the Client's session
// mutators. The returned function unsubscribes.
func (c *Client) OnAuthChange(fn func(authenticated bool)) func() {
	if fn == nil {
		return func() {}
	}
	var mu sync.Mutex
	last := c.store.IsAuthenticated()
	return c.store.Subscribe(func(p tokenstore.Pair) {
		mu.Lock()
		now := p.Authenticated()
		changed := now != last
		last = now
		mu.Unlock()
		if changed {
			fn(now)
		}
	})
}

// RenewalState reports whether background renewal is running.
func (c *Client) RenewalState() scheduler.State {
	if c.scheduler == nil {
		return scheduler.Stopped
	}
	return c.scheduler.State()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot returns empty maps when metrics are disabled.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// AuditDropped returns the number of audit events dropped under backpressure.
func (c *Client) AuditDropped() uint64 {
	return c.audit.Dropped()
}

// Close stops renewal, waits for renewals it started and flushes audit events. The
// token pair is left in place.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if c.scheduler != nil {
			c.scheduler.Stop()
			c.scheduler.Wait()
		}
		if c.unwatch != nil {
			c.unwatch()
		}
		c.audit.Close()
	})
	return nil
}

func (c *Client) startRenewal() {
	if c.scheduler == nil {
		return
	}
	if !c.scheduler.Start() {
		c.logger.Debug("goAuthClient: renewal not started, no refresh token")
	}
}

func (c *Client) setUser(u *User) {
	c.userMu.Lock()
	defer c.userMu.Unlock()
	c.user = u
}

// onPairChange drops the cached user once the session is gone.
func (c *Client) onPairChange(p tokenstore.Pair) {
	if p.Empty() {
		c.setUser(nil)
	}
}

func closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	_ = resp.Body.Close()
}

// decodeAPIError reads the detail or message field of an error body.
func decodeAPIError(resp *http.Response, fallback string) *APIError {
	apiErr := &APIError{Status: resp.StatusCode, Detail: fallback}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil || len(data) == 0 {
		return apiErr
	}
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return apiErr
	}

	switch {
	case len(body.Detail) > 0 && string(body.Detail) != "null":
		var s string
		if err := json.Unmarshal(body.Detail, &s); err == nil {
			if s != "" {
				apiErr.Detail = s
			}
		} else {
			apiErr.Detail = string(body.Detail)
		}
	case body.Message != "":
		apiErr.Detail = body.Message
	}
	return apiErr
}
