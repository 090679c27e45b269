package goAuthClient

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MrEthical07/goAuthClient/gateway"
	"github.com/MrEthical07/goAuthClient/internal/audit"
	"github.com/MrEthical07/goAuthClient/internal/metrics"
	"github.com/MrEthical07/goAuthClient/refresh"
	"github.com/MrEthical07/goAuthClient/scheduler"
	"github.com/MrEthical07/goAuthClient/tokenstore"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// Builder defines a public type used by goAuthClient APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config

	storage    tokenstore.Storage
	redis      redis.UniversalClient
	httpClient *http.Client
	navigator  Navigator
	auditSink  AuditSink
	logger     *slog.Logger
	clock      clockwork.Clock

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithBaseURL sets Config.BaseURL.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.BaseURL = baseURL
	return b
}

// WithStorage sets the durable backend of the token pair. Without one, and without
// WithRedis, tokens live in memory only.
func (b *Builder) WithStorage(storage tokenstore.Storage) *Builder {
	b.storage = storage
	return b
}

// WithRedis persists the token pair in Redis under Config.Storage.RedisPrefix. It is
// ignored when WithStorage is also used.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithHTTPClient replaces the default client built from Config.HTTP. The caller's
// client must carry its own timeout.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithNavigator sets the receiver of login-surface requests.
func (b *Builder) WithNavigator(n Navigator) *Builder {
	b.navigator = n
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// The sink only receives events when Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces the clock driving background renewal.
func (b *Builder) WithClock(clock clockwork.Clock) *Builder {
	b.clock = clock
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires a Client. A Builder builds once.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := b.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTP.Timeout}
	}

	clock := b.clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	// -------- STORAGE --------
	storage := b.storage
	if storage == nil && b.redis != nil {
		storage = tokenstore.NewRedisStorage(b.redis, cfg.Storage.RedisPrefix, cfg.Storage.RedisTTL)
	}

	m := metrics.New(metrics.Config{
		Enabled:                 cfg.Metrics.Enabled,
		EnableLatencyHistograms: cfg.Metrics.EnableLatencyHistograms,
	})
	dispatcher := audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Logger:     logger,
	}, b.auditSink)

	store := tokenstore.New(storage,
		tokenstore.WithKeys(cfg.Storage.AccessTokenKey, cfg.Storage.RefreshTokenKey),
		tokenstore.WithLogger(logger),
		tokenstore.WithMetrics(m),
	)

	// -------- RENEWAL --------
	exchanger := refresh.NewHTTPExchanger(httpClient, joinURL(cfg.BaseURL, cfg.Endpoints.Refresh), cfg.HTTP.UserAgent)
	coordinator := refresh.New(store, exchanger,
		refresh.WithNavigator(b.navigator),
		refresh.WithLoginPath(cfg.LoginPath),
		refresh.WithLogger(logger),
		refresh.WithMetrics(m),
		refresh.WithAudit(dispatcher),
	)

	gw, err := gateway.New(cfg.BaseURL, store, coordinator,
		gateway.WithHTTPClient(httpClient),
		gateway.WithUserAgent(cfg.HTTP.UserAgent),
		gateway.WithLogger(logger),
		gateway.WithMetrics(m),
	)
	if err != nil {
		dispatcher.Close()
		return nil, fmt.Errorf("build gateway: %w", err)
	}

	var sched *scheduler.Scheduler
	if cfg.Renewal.Enabled {
		sched = scheduler.New(store, coordinator,
			scheduler.WithClock(clock),
			scheduler.WithThreshold(cfg.Renewal.Threshold),
			scheduler.WithInterval(cfg.Renewal.CheckInterval),
			scheduler.WithLogger(logger),
			scheduler.WithMetrics(m),
		)
	}

	c := &Client{
		config:      cfg,
		logger:      logger,
		httpClient:  httpClient,
		store:       store,
		coordinator: coordinator,
		gateway:     gw,
		scheduler:   sched,
		metrics:     m,
		audit:       dispatcher,
	}
	c.unwatch = store.Subscribe(c.onPairChange)

	b.built = true
	return c, nil
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
