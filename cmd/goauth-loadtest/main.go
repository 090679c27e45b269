package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/gateway"
	"github.com/MrEthical07/goAuthClient/internal/authtest"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	loadEmail    = "load@example.com"
	loadPassword = "load-password"
)

func main() {
	var (
		sessions     = flag.Int("sessions", 32, "number of independent client sessions")
		concurrency  = flag.Int("concurrency", 64, "concurrent requests per session in each storm")
		rounds       = flag.Int("rounds", 10, "number of 401 storms")
		refreshDelay = flag.Duration("refresh-delay", 20*time.Millisecond, "artificial latency of the refresh endpoint")
		redisAddr    = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *rounds <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, and rounds must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		rc      redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		rc = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = rc.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		rc = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = rc.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	srv := authtest.NewServer(
		authtest.WithUser(loadEmail, loadPassword),
		authtest.WithRefreshDelay(*refreshDelay),
	)
	defer srv.Close()

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        *sessions * *concurrency,
			MaxIdleConnsPerHost: *sessions * *concurrency,
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	clients := make([]*goAuthClient.Client, *sessions)
	fmt.Printf("signing in %d sessions...\n", *sessions)
	startLogin := time.Now()
	for i := range clients {
		c, err := openSession(ctx, srv.URL, fmt.Sprintf("lt%d", i), rc, httpClient, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "session %d: %v\n", i, err)
			os.Exit(1)
		}
		defer c.Close()
		clients[i] = c
	}
	fmt.Printf("signed in in %s\n", time.Since(startLogin).Round(time.Millisecond))

	steady := runPhase(ctx, clients, *concurrency, 1, nil)

	before := srv.Exchanges()
	storm := runPhase(ctx, clients, *concurrency, *rounds, srv.RevokeAccess)
	exchanges := srv.Exchanges() - before

	fmt.Println("---- results ----")
	printStats("steady", steady)
	printStats("401-storm", storm)

	expected := int64(*sessions * *rounds)
	fmt.Printf("refresh exchanges: observed=%d expected=%d\n", exchanges, expected)
	if exchanges != expected {
		fmt.Fprintln(os.Stderr, "refresh single-flight violated: exchanges do not match sessions x rounds")
		os.Exit(1)
	}
}

func openSession(ctx context.Context, baseURL, prefix string, rc redis.UniversalClient, httpClient *http.Client, logger *slog.Logger) (*goAuthClient.Client, error) {
	cfg := goAuthClient.DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.Storage.RedisPrefix = prefix
	cfg.Renewal.Enabled = false
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	c, err := goAuthClient.New().
		WithConfig(cfg).
		WithRedis(rc).
		WithHTTPClient(httpClient).
		WithLogger(logger).
		Build()
	if err != nil {
		return nil, err
	}
	if _, err := c.Login(ctx, loadEmail, loadPassword); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// runPhase fires concurrency requests per session at once, rounds times. before runs
// ahead of every round.
func runPhase(ctx context.Context, clients []*goAuthClient.Client, concurrency, rounds int, before func()) phaseStats {
	var (
		failures  int64
		latencies = make([]time.Duration, 0, len(clients)*concurrency*rounds)
		mu        sync.Mutex
		total     time.Duration
	)

	for round := 0; round < rounds; round++ {
		if before != nil {
			before()
		}

		var wg sync.WaitGroup
		gate := make(chan struct{})
		start := time.Now()
		for _, c := range clients {
			for w := 0; w < concurrency; w++ {
				wg.Add(1)
				go func(c *goAuthClient.Client) {
					defer wg.Done()
					<-gate
					t0 := time.Now()
					ok := ping(ctx, c)
					d := time.Since(t0)
					if !ok {
						atomic.AddInt64(&failures, 1)
					}
					mu.Lock()
					latencies = append(latencies, d)
					mu.Unlock()
				}(c)
			}
		}
		close(gate)
		wg.Wait()
		total += time.Since(start)
	}
	return computeStats(total, latencies, failures)
}

func ping(ctx context.Context, c *goAuthClient.Client) bool {
	resp, err := c.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/api/ping"})
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: requests=%d failures=%d total=%s req/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
