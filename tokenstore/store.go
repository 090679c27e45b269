package tokenstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrEthical07/goAuthClient/internal/metrics"
)

const (
	// DefaultAccessTokenKey is the storage slot of the access token.
	DefaultAccessTokenKey = "access_token"
	// DefaultRefreshTokenKey is the storage slot of the refresh token.
	DefaultRefreshTokenKey = "refresh_token"
)

// Pair is the credential pair held by the client. An empty string means absent.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Authenticated reports whether an access token is present.
func (p Pair) Authenticated() bool {
	return p.AccessToken != ""
}

// Empty reports whether both tokens are absent (logged out).
func (p Pair) Empty() bool {
	return p.AccessToken == "" && p.RefreshToken == ""
}

// Option customizes a Store.
type Option func(*Store)

// WithKeys overrides the storage slot names.
func WithKeys(accessKey, refreshKey string) Option {
	return func(s *Store) {
		if accessKey != "" {
			s.accessKey = accessKey
		}
		if refreshKey != "" {
			s.refreshKey = refreshKey
		}
	}
}

// WithLogger sets the logger used for best-effort storage failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

type subscriber struct {
	id uint64
	fn func(Pair)
}

// Store is the process-owned holder of the current credential pair.
//
// A Store is safe for concurrent use.
type Store struct {
	storage    Storage
	accessKey  string
	refreshKey string
	logger     *slog.Logger
	metrics    *metrics.Metrics

	// writeMu serializes mutations, their durable writes and their notifications.
	writeMu sync.Mutex

	mu   sync.RWMutex
	pair Pair

	subMu  sync.Mutex
	subs   []subscriber
	nextID uint64
}

// New creates a Store backed by storage. A nil storage keeps the pair in memory only.
func New(storage Storage, opts ...Option) *Store {
	if storage == nil {
		storage = NewMemoryStorage()
	}
	s := &Store{
		storage:    storage,
		accessKey:  DefaultAccessTokenKey,
		refreshKey: DefaultRefreshTokenKey,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load hydrates the in-memory pair from durable storage. Missing slots load as absent.
// On a storage error the in-memory pair is left untouched.
func (s *Store) Load(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	access, _, err := s.storage.Get(ctx, s.accessKey)
	if err != nil {
		return fmt.Errorf("load access token: %w", err)
	}
	refresh, _, err := s.storage.Get(ctx, s.refreshKey)
	if err != nil {
		return fmt.Errorf("load refresh token: %w", err)
	}

	next := Pair{AccessToken: access, RefreshToken: refresh}
	s.mu.Lock()
	s.pair = next
	s.mu.Unlock()

	s.notify(next)
	return nil
}

// Get returns the current pair.
func (s *Store) Get() Pair {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair
}

// IsAuthenticated reports whether an access token is currently held.
func (s *Store) IsAuthenticated() bool {
	return s.Get().Authenticated()
}

// Set replaces both tokens and persists them.
func (s *Store) Set(ctx context.Context, p Pair) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.replace(ctx, p)
}

// Swap replaces the pair with next only while the held refresh token still equals
// expectRefresh. It reports whether the replacement happened.
func (s *Store) Swap(ctx context.Context, expectRefresh string, next Pair) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.Get().RefreshToken != expectRefresh {
		return false
	}
	s.replace(ctx, next)
	return true
}

// Clear removes both tokens and their durable copies.
func (s *Store) Clear(ctx context.Context) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.clear(ctx)
}

// ClearIf clears the pair only while the held refresh token still equals expectRefresh.
// It reports whether the pair was cleared.
func (s *Store) ClearIf(ctx context.Context, expectRefresh string) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.Get().RefreshToken != expectRefresh {
		return false
	}
	s.clear(ctx)
	return true
}

// Subscribe registers fn to be called with the new pair after every mutation. The
// returned function removes the subscription. fn runs while the Store serializes
// writers and must not mutate the Store.
func (s *Store) Subscribe(fn func(Pair)) func() {
	if fn == nil {
		return func() {}
	}

	s.subMu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// replace must be called with writeMu held.
func (s *Store) replace(ctx context.Context, p Pair) {
	s.mu.Lock()
	s.pair = p
	s.mu.Unlock()

	s.persist(ctx, s.accessKey, p.AccessToken)
	s.persist(ctx, s.refreshKey, p.RefreshToken)

	s.logger.Debug("goAuthClient: tokens saved",
		slog.Bool("access", p.AccessToken != ""),
		slog.Bool("refresh", p.RefreshToken != ""),
	)
	s.notify(p)
}

// clear must be called with writeMu held.
func (s *Store) clear(ctx context.Context) {
	s.mu.Lock()
	s.pair = Pair{}
	s.mu.Unlock()
	s.metrics.Inc(metrics.StoreCleared)

	s.remove(ctx, s.accessKey)
	s.remove(ctx, s.refreshKey)

	s.logger.Debug("goAuthClient: tokens cleared")
	s.notify(Pair{})
}

func (s *Store) persist(ctx context.Context, key, value string) {
	if value == "" {
		s.remove(ctx, key)
		return
	}
	if err := s.storage.Set(ctx, key, value); err != nil {
		s.metrics.Inc(metrics.StorePersistFailure)
		s.logger.Warn("goAuthClient: token persist failed", slog.String("slot", key), slog.Any("error", err))
	}
}

func (s *Store) remove(ctx context.Context, key string) {
	if err := s.storage.Remove(ctx, key); err != nil {
		s.metrics.Inc(metrics.StorePersistFailure)
		s.logger.Warn("goAuthClient: token removal failed", slog.String("slot", key), slog.Any("error", err))
	}
}

func (s *Store) notify(p Pair) {
	s.subMu.Lock()
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.subMu.Unlock()

	for _, sub := range subs {
		sub.fn(p)
	}
}
