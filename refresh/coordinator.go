package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/MrEthical07/goAuthClient/internal/audit"
	"github.com/MrEthical07/goAuthClient/internal/metrics"
	"github.com/MrEthical07/goAuthClient/tokenstore"
	"golang.org/x/sync/singleflight"
)

const flightKey = "refresh"

// DefaultLoginPath is the navigation target after a terminal refresh failure.
const DefaultLoginPath = "/login"

// Exchanger performs the network exchange of a refresh token for a new pair.
type Exchanger interface {
	Exchange(ctx context.Context, refreshToken string) (tokenstore.Pair, error)
}

// TokenStore is the part of *tokenstore.Store the coordinator writes through.
type TokenStore interface {
	Get() tokenstore.Pair
	Swap(ctx context.Context, expectRefresh string, next tokenstore.Pair) bool
	ClearIf(ctx context.Context, expectRefresh string) bool
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

func WithNavigator(n Navigator) Option {
	return func(c *Coordinator) {
		if n != nil {
			c.navigator = n
		}
	}
}

func WithLoginPath(path string) Option {
	return func(c *Coordinator) {
		if path != "" {
			c.loginPath = path
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

func WithAudit(e audit.Emitter) Option {
	return func(c *Coordinator) {
		if e != nil {
			c.audit = e
		}
	}
}

// Coordinator owns the single in-flight renewal attempt of a client.
type Coordinator struct {
	store     TokenStore
	exchanger Exchanger
	navigator Navigator
	loginPath string
	logger    *slog.Logger
	metrics   *metrics.Metrics
	audit     audit.Emitter

	group singleflight.Group
}

func New(store TokenStore, exchanger Exchanger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     store,
		exchanger: exchanger,
		navigator: noopNavigator{},
		loginPath: DefaultLoginPath,
		logger:    slog.Default(),
		audit:     audit.NoOpSink{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Refresh renews the credential pair, joining an attempt already in flight.
//
// When ctx ends first, Refresh returns ctx.Err() while the attempt keeps running for
// the remaining waiters.
func (c *Coordinator) Refresh(ctx context.Context) (tokenstore.Pair, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	detached := context.WithoutCancel(ctx)

	ch := c.group.DoChan(flightKey, func() (any, error) {
		return c.run(detached)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return tokenstore.Pair{}, res.Err
		}
		return res.Val.(tokenstore.Pair), nil
	case <-ctx.Done():
		return tokenstore.Pair{}, ctx.Err()
	}
}

func (c *Coordinator) run(ctx context.Context) (tokenstore.Pair, error) {
	current := c.store.Get()
	if current.RefreshToken == "" {
		c.metrics.Inc(metrics.RefreshNoToken)
		c.logger.Debug("goAuthClient: no refresh token, skipping refresh")
		return tokenstore.Pair{}, ErrNoRefreshToken
	}

	c.metrics.Inc(metrics.RefreshExchange)
	start := time.Now()
	next, err := c.exchanger.Exchange(ctx, current.RefreshToken)
	c.metrics.Observe(metrics.RefreshLatency, time.Since(start))
	if err != nil {
		return tokenstore.Pair{}, c.fail(ctx, current.RefreshToken, err)
	}

	if !c.store.Swap(ctx, current.RefreshToken, next) {
		c.metrics.Inc(metrics.RefreshSessionChanged)
		c.logger.Info("goAuthClient: session changed during refresh, discarding exchanged tokens")
		c.audit.Emit(ctx, audit.NewEvent(audit.EventRefresh, ErrSessionChanged, nil))
		return tokenstore.Pair{}, ErrSessionChanged
	}

	c.metrics.Inc(metrics.RefreshSuccess)
	c.logger.Info("goAuthClient: token refreshed")
	c.audit.Emit(ctx, audit.NewEvent(audit.EventRefresh, nil, nil))
	return next, nil
}

func (c *Coordinator) fail(ctx context.Context, presented string, err error) error {
	if errors.Is(err, ErrTransport) {
		c.metrics.Inc(metrics.RefreshTransportError)
		c.logger.Warn("goAuthClient: token refresh transport failure", slog.Any("error", err))
		c.audit.Emit(ctx, audit.NewEvent(audit.EventRefresh, err, map[string]string{"terminal": "false"}))
		return err
	}

	if errors.Is(err, ErrMalformedResponse) {
		c.metrics.Inc(metrics.RefreshMalformed)
	} else {
		c.metrics.Inc(metrics.RefreshDenied)
	}
	if !errors.Is(err, ErrRefreshDenied) {
		err = fmt.Errorf("%w: %w", ErrRefreshDenied, err)
	}

	c.logger.Warn("goAuthClient: token refresh denied, clearing session", slog.Any("error", err))
	c.audit.Emit(ctx, audit.NewEvent(audit.EventRefresh, err, map[string]string{"terminal": "true"}))

	// A newer session established while the exchange was in flight survives.
	if !c.store.ClearIf(ctx, presented) {
		return err
	}
	c.audit.Emit(ctx, audit.NewEvent(audit.EventSessionCleared, err, nil))
	c.navigator.Navigate(ctx, c.loginPath)
	return err
}
