package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/tokenstore"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "GOAUTH_SESSION"

// app carries what every subcommand shares: resolved settings and output streams.
type app struct {
	v      *viper.Viper
	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(v *viper.Viper, stdout, stderr io.Writer) *cobra.Command {
	a := &app{v: v, stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "goauth-session",
		Short:         "Manage an authenticated API session from the command line",
		Long:          "goauth-session signs in against a goAuth-style API, keeps the token pair in a file or Redis, and sends requests that renew the session on 401.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.loadConfig()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringP("base-url", "u", "", "API base URL (http or https)")
	flags.StringP("config", "c", "", "Configuration file path (yaml, json or toml)")
	flags.String("token-file", defaultTokenFile(), "File holding the token pair")
	flags.String("redis-addr", "", "Keep the token pair in Redis at this address instead of the token file")
	flags.String("redis-prefix", "gac", "Key prefix for the Redis token slots")
	flags.Duration("timeout", 30*time.Second, "HTTP timeout per request")
	flags.BoolP("verbose", "v", false, "Enable debug logging")

	if err := v.BindPFlags(flags); err != nil {
		fmt.Fprintf(stderr, "failed to bind flags: %v\n", err)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root.AddCommand(
		a.loginCmd(),
		a.registerCmd(),
		a.logoutCmd(),
		a.statusCmd(),
		a.refreshCmd(),
		a.requestCmd(),
		a.watchCmd(),
	)
	return root
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".goauth-session.json"
	}
	return filepath.Join(dir, "goauth-session", "tokens.json")
}

func (a *app) loadConfig() error {
	path := a.v.GetString("config")
	if path == "" {
		return nil
	}
	a.v.SetConfigFile(path)
	if err := a.v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

func (a *app) logger() *slog.Logger {
	level := slog.LevelWarn
	if a.v.GetBool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
}

// renewal configures background renewal; nil leaves it off.
type renewal struct {
	threshold time.Duration
	interval  time.Duration
}

// open builds a client over the configured storage and hydrates it. The returned
// function closes the client and any Redis connection.
func (a *app) open(ctx context.Context, renew *renewal) (*goAuthClient.Client, func(), error) {
	cfg := goAuthClient.DefaultConfig()
	cfg.BaseURL = a.v.GetString("base-url")
	cfg.HTTP.Timeout = a.v.GetDuration("timeout")
	cfg.HTTP.UserAgent = "goauth-session"
	cfg.Storage.RedisPrefix = a.v.GetString("redis-prefix")
	cfg.Renewal.Enabled = renew != nil
	if renew != nil {
		cfg.Renewal.Threshold = renew.threshold
		cfg.Renewal.CheckInterval = renew.interval
	}

	logger := a.logger()
	if a.v.GetBool("verbose") {
		cfg.Audit.Enabled = true
	}

	b := goAuthClient.New().
		WithConfig(cfg).
		WithLogger(logger).
		WithAuditSink(goAuthClient.NewSlogSink(logger)).
		WithNavigator(goAuthClient.NavigatorFunc(func(_ context.Context, target string) {
			fmt.Fprintf(a.stderr, "session ended, sign in again (%s)\n", target)
		}))

	closers := []func(){}
	if addr := a.v.GetString("redis-addr"); addr != "" {
		rc := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		closers = append(closers, func() { _ = rc.Close() })
		b.WithRedis(rc)
	} else {
		b.WithStorage(tokenstore.NewFileStorage(a.v.GetString("token-file")))
	}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	client, err := b.Build()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append([]func(){func() { _ = client.Close() }}, closers...)

	if err := client.Init(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}
	return client, cleanup, nil
}
