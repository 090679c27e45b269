package goAuthClient

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goAuthClient/refresh"
	"github.com/MrEthical07/goAuthClient/scheduler"
	"github.com/MrEthical07/goAuthClient/tokenstore"
)

// Config defines a public type used by goAuthClient APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	// BaseURL is the absolute http(s) URL every endpoint path is resolved against.
	BaseURL string
	// LoginPath is the navigation target after a terminal refresh failure.
	LoginPath string

	Endpoints EndpointsConfig
	Storage   StorageConfig
	Renewal   RenewalConfig
	HTTP      HTTPConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
ENDPOINTS CONFIG
====================================
*/

// EndpointsConfig holds the authentication endpoint paths, relative to BaseURL.
type EndpointsConfig struct {
	Login    string
	Register string
	Refresh  string
	Me       string
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageConfig names the durable slots of the token pair.
type StorageConfig struct {
	AccessTokenKey  string
	RefreshTokenKey string
	// RedisPrefix and RedisTTL apply only when the builder is given a Redis client.
	RedisPrefix string
	RedisTTL    time.Duration
}

/*
====================================
RENEWAL CONFIG
====================================
*/

// RenewalConfig controls background renewal.
type RenewalConfig struct {
	Enabled bool
	// Threshold is the remaining access token lifetime below which a check renews.
	Threshold time.Duration
	// CheckInterval is the period between checks.
	CheckInterval time.Duration
}

/*
====================================
HTTP CONFIG
====================================
*/

// HTTPConfig configures the default http.Client. Timeout bounds every request,
// including refresh exchanges.
type HTTPConfig struct {
	Timeout   time.Duration
	UserAgent string
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig defines a public type used by goAuthClient APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by goAuthClient APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the baseline configuration. BaseURL must still be set.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		LoginPath: refresh.DefaultLoginPath,
		Endpoints: EndpointsConfig{
			Login:    "/auth/login",
			Register: "/auth/register",
			Refresh:  "/auth/refresh",
			Me:       "/auth/me",
		},
		Storage: StorageConfig{
			AccessTokenKey:  tokenstore.DefaultAccessTokenKey,
			RefreshTokenKey: tokenstore.DefaultRefreshTokenKey,
			RedisPrefix:     "gac",
		},
		Renewal: RenewalConfig{
			Enabled:       true,
			Threshold:     scheduler.DefaultThreshold,
			CheckInterval: scheduler.DefaultInterval,
		},
		HTTP: HTTPConfig{
			Timeout:   30 * time.Second,
			UserAgent: "goAuthClient",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// Validate describes the validate operation and its observable behavior.
//
// Validate returns the first configuration error found; it never mutates c.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return errors.New("BaseURL is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return errors.New("BaseURL is not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("BaseURL scheme must be http or https")
	}
	if u.Host == "" {
		return errors.New("BaseURL must include a host")
	}

	if c.LoginPath == "" {
		return errors.New("LoginPath is required")
	}
	if err := validateEndpoint("Login", c.Endpoints.Login); err != nil {
		return err
	}
	if err := validateEndpoint("Register", c.Endpoints.Register); err != nil {
		return err
	}
	if err := validateEndpoint("Refresh", c.Endpoints.Refresh); err != nil {
		return err
	}
	if err := validateEndpoint("Me", c.Endpoints.Me); err != nil {
		return err
	}

	if c.Storage.AccessTokenKey == "" || c.Storage.RefreshTokenKey == "" {
		return errors.New("Storage token keys must be set")
	}
	if c.Storage.AccessTokenKey == c.Storage.RefreshTokenKey {
		return errors.New("Storage AccessTokenKey and RefreshTokenKey must differ")
	}
	if c.Storage.RedisTTL < 0 {
		return errors.New("Storage RedisTTL must be >= 0")
	}

	if c.Renewal.Enabled {
		if c.Renewal.Threshold <= 0 {
			return errors.New("Renewal Threshold must be > 0")
		}
		if c.Renewal.CheckInterval <= 0 {
			return errors.New("Renewal CheckInterval must be > 0")
		}
		if c.Renewal.CheckInterval >= c.Renewal.Threshold {
			return errors.New("Renewal CheckInterval must be shorter than Threshold")
		}
	}

	if c.HTTP.Timeout <= 0 {
		return errors.New("HTTP Timeout must be > 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}

func validateEndpoint(name, path string) error {
	if path == "" {
		return errors.New("Endpoints " + name + " is required")
	}
	if !strings.HasPrefix(path, "/") {
		return errors.New("Endpoints " + name + " must start with /")
	}
	return nil
}
