package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MrEthical07/goAuthClient/internal/metrics"
	"github.com/MrEthical07/goAuthClient/jwt"
	"github.com/MrEthical07/goAuthClient/tokenstore"
	"github.com/jonboulle/clockwork"
)

const (
	// DefaultThreshold is the remaining access token lifetime below which a check renews.
	DefaultThreshold = 24 * time.Hour
	// DefaultInterval is the period between checks.
	DefaultInterval = time.Hour
)

// State is the lifecycle state of a Scheduler.
type State int32

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	default:
		return "stopped"
	}
}

// TokenSource reads the current credential pair.
type TokenSource interface {
	Get() tokenstore.Pair
}

// Refresher renews the credential pair.
type Refresher interface {
	Refresh(ctx context.Context) (tokenstore.Pair, error)
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

func WithClock(clock clockwork.Clock) Option {
	return func(s *Scheduler) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithThreshold(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.threshold = d
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

// Scheduler periodically renews the session. It is safe for concurrent use.
type Scheduler struct {
	tokens    TokenSource
	refresher Refresher
	clock     clockwork.Clock
	threshold time.Duration
	interval  time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics

	mu     sync.Mutex
	state  State
	gen    uint64
	cancel context.CancelFunc

	inflight sync.WaitGroup
}

func New(tokens TokenSource, refresher Refresher, opts ...Option) *Scheduler {
	s := &Scheduler{
		tokens:    tokens,
		refresher: refresher,
		clock:     clockwork.NewRealClock(),
		threshold: DefaultThreshold,
		interval:  DefaultInterval,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start (re)starts the schedule. A running schedule is stopped first. It returns false
// and stays Stopped when no refresh token is held.
func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	if s.tokens.Get().RefreshToken == "" {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	ticker := s.clock.NewTicker(s.interval)
	s.gen++
	s.cancel = cancel
	s.state = Running

	s.logger.Debug("goAuthClient: renewal scheduler started", slog.Duration("interval", s.interval))
	s.check(ctx)
	go s.loop(ctx, ticker, s.gen)
	return true
}

// Stop cancels future checks. Renewals already started run to completion.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Wait blocks until renewals started by checks have finished.
func (s *Scheduler) Wait() {
	s.inflight.Wait()
}

// NeedsRenewal reports whether accessToken expires within the threshold. A token whose
// expiry cannot be decoded needs renewal.
func (s *Scheduler) NeedsRenewal(accessToken string) bool {
	remaining, ok := jwt.Remaining(accessToken, s.clock.Now())
	if !ok {
		return true
	}
	return remaining < s.threshold
}

func (s *Scheduler) stopLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.state == Running {
		s.logger.Debug("goAuthClient: renewal scheduler stopped")
	}
	s.state = Stopped
}

func (s *Scheduler) loop(ctx context.Context, ticker clockwork.Ticker, gen uint64) {
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if ctx.Err() != nil {
				return
			}
			if !s.tick(ctx, gen) {
				return
			}
		}
	}
}

// tick runs one timer check. It holds s.mu so that a Stop or restart racing with the
// ticker cannot let a stale tick start a renewal.
func (s *Scheduler) tick(ctx context.Context, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gen != gen || s.state != Running || ctx.Err() != nil {
		return false
	}
	if s.tokens.Get().RefreshToken == "" {
		s.stopLocked()
		s.metrics.Inc(metrics.SchedulerSelfStop)
		s.logger.Info("goAuthClient: no refresh token, renewal scheduler stopping")
		return false
	}
	s.check(ctx)
	return true
}

func (s *Scheduler) check(ctx context.Context) {
	s.metrics.Inc(metrics.SchedulerCheck)
	if !s.NeedsRenewal(s.tokens.Get().AccessToken) {
		return
	}

	s.metrics.Inc(metrics.SchedulerRenewal)
	s.logger.Debug("goAuthClient: access token near expiry, refreshing")

	detached := context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if _, err := s.refresher.Refresh(detached); err != nil {
			s.logger.Warn("goAuthClient: scheduled token refresh failed", slog.Any("error", err))
		}
	}()
}
