package authtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// RefreshMode selects how the refresh endpoint answers.
type RefreshMode int32

const (
	// RefreshRotate issues a new pair and invalidates the presented refresh token.
	RefreshRotate RefreshMode = iota
	// RefreshDeny answers 401 for every refresh token.
	RefreshDeny
	// RefreshHTML answers 200 with an HTML document.
	RefreshHTML
	// RefreshMissingFields answers 200 JSON without a refresh_token field.
	RefreshMissingFields
)

// Option customizes a Server.
type Option func(*Server)

// WithAccessTTL sets the lifetime of issued access tokens.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Server) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshDelay delays every refresh answer, widening the window in which
// concurrent callers can pile up.
func WithRefreshDelay(d time.Duration) Option {
	return func(s *Server) {
		s.refreshDelay = d
	}
}

// WithUser registers an account up front.
func WithUser(email, password string) Option {
	return func(s *Server) {
		s.users[email] = account{id: uuid.NewString(), email: email, password: password}
	}
}

type account struct {
	id       string
	email    string
	password string
}

// Server is a fake authentication server.
type Server struct {
	*httptest.Server

	secret       []byte
	accessTTL    time.Duration
	refreshDelay time.Duration

	mu      sync.Mutex
	users   map[string]account
	access  map[string]string
	refresh map[string]string

	mode      atomic.Int32
	exchanges atomic.Int64
	logins    atomic.Int64
	protected atomic.Int64
}

// NewServer starts a server. Callers must Close it.
func NewServer(opts ...Option) *Server {
	s := &Server{
		secret:    []byte(uuid.NewString()),
		accessTTL: 15 * time.Minute,
		users:     make(map[string]account),
		access:    make(map[string]string),
		refresh:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/refresh", s.handleRefresh)
	mux.HandleFunc("GET /auth/me", s.handleMe)
	mux.HandleFunc("/api/empty", s.protect(s.handleEmpty))
	mux.HandleFunc("/api/fail", s.protect(s.handleFail))
	mux.HandleFunc("/api/", s.protect(s.handleEcho))

	s.Server = httptest.NewServer(mux)
	return s
}

// SetRefreshMode switches the refresh endpoint behavior.
func (s *Server) SetRefreshMode(mode RefreshMode) {
	s.mode.Store(int32(mode))
}

// Exchanges returns the number of refresh requests received.
func (s *Server) Exchanges() int64 {
	return s.exchanges.Load()
}

// Logins returns the number of successful logins and registrations.
func (s *Server) Logins() int64 {
	return s.logins.Load()
}

// ProtectedRequests returns the number of requests that reached a protected route,
// authorized or not.
func (s *Server) ProtectedRequests() int64 {
	return s.protected.Load()
}

// Issue creates a session for email and returns its pair. The account is created when
// missing.
func (s *Server) Issue(email string) (accessToken, refreshToken string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.users[email]
	if !ok {
		acct = account{id: uuid.NewString(), email: email}
		s.users[email] = acct
	}
	return s.issueLocked(acct, s.accessTTL)
}

// IssueWithTTL is Issue with an explicit access token lifetime.
func (s *Server) IssueWithTTL(email string, ttl time.Duration) (accessToken, refreshToken string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.users[email]
	if !ok {
		acct = account{id: uuid.NewString(), email: email}
		s.users[email] = acct
	}
	return s.issueLocked(acct, ttl)
}

// RevokeAccess invalidates every issued access token while keeping refresh tokens,
// which makes the next protected call answer 401.
func (s *Server) RevokeAccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = make(map[string]string)
}

// RevokeRefresh invalidates every issued refresh token.
func (s *Server) RevokeRefresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = make(map[string]string)
}

func (s *Server) issueLocked(acct account, ttl time.Duration) (string, string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   acct.id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", "", fmt.Errorf("sign access token: %w", err)
	}

	refreshToken := uuid.NewString()
	s.access[signed] = acct.email
	s.refresh[refreshToken] = acct.email
	return signed, refreshToken, nil
}

func (s *Server) authorize(r *http.Request) (account, bool) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return account{}, false
	}

	_, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return account{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	email, ok := s.access[raw]
	if !ok {
		return account{}, false
	}
	return s.users[email], true
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         user   `json:"user"`
}

type user struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	acct, ok := s.users[in.Email]
	if !ok || acct.password == "" || acct.password != in.Password {
		s.mu.Unlock()
		writeDetail(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	access, refresh, err := s.issueLocked(acct, s.accessTTL)
	s.mu.Unlock()
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logins.Add(1)
	writeJSON(w, http.StatusOK, sessionResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user{ID: acct.id, Email: acct.email},
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Email == "" || in.Password == "" {
		writeDetail(w, http.StatusBadRequest, "email and password are required")
		return
	}

	s.mu.Lock()
	if _, exists := s.users[in.Email]; exists {
		s.mu.Unlock()
		writeDetail(w, http.StatusConflict, "Email already registered")
		return
	}
	acct := account{id: uuid.NewString(), email: in.Email, password: in.Password}
	s.users[in.Email] = acct
	access, refresh, err := s.issueLocked(acct, s.accessTTL)
	s.mu.Unlock()
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logins.Add(1)
	writeJSON(w, http.StatusCreated, sessionResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         user{ID: acct.id, Email: acct.email},
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.exchanges.Add(1)
	if s.refreshDelay > 0 {
		time.Sleep(s.refreshDelay)
	}

	switch RefreshMode(s.mode.Load()) {
	case RefreshDeny:
		writeDetail(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	case RefreshHTML:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "<!doctype html><html><body>Sign in</body></html>")
		return
	case RefreshMissingFields:
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "partial"})
		return
	}

	var in struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.RefreshToken == "" {
		writeDetail(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	s.mu.Lock()
	email, ok := s.refresh[in.RefreshToken]
	if !ok {
		s.mu.Unlock()
		writeDetail(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	delete(s.refresh, in.RefreshToken)
	access, refresh, err := s.issueLocked(s.users[email], s.accessTTL)
	s.mu.Unlock()
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"access_token":  access,
		"refresh_token": refresh,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.authorize(r)
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, user{ID: acct.id, Email: acct.email})
}

func (s *Server) protect(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.protected.Add(1)
		if _, ok := s.authorize(r); !ok {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		next(w, r)
	}
}

// Echo is the body of every /api/ answer except the fixed routes.
type Echo struct {
	Method        string `json:"method"`
	Path          string `json:"path"`
	Query         string `json:"query,omitempty"`
	ContentType   string `json:"content_type,omitempty"`
	Authorization string `json:"authorization,omitempty"`
	RequestID     string `json:"request_id,omitempty"`
	Body          string `json:"body,omitempty"`
}

func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "unreadable body")
		return
	}
	writeJSON(w, http.StatusOK, Echo{
		Method:        r.Method,
		Path:          r.URL.Path,
		Query:         r.URL.RawQuery,
		ContentType:   r.Header.Get("Content-Type"),
		Authorization: r.Header.Get("Authorization"),
		RequestID:     r.Header.Get("X-Request-ID"),
		Body:          string(body),
	})
}

func (s *Server) handleEmpty(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFail(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("field") == "message" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "validation failed"})
		return
	}
	writeDetail(w, http.StatusUnprocessableEntity, "validation failed")
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
