package authtest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestServerRefreshRotates(t *testing.T) {
	srv := NewServer()
	defer srv.Close()

	_, refresh, err := srv.Issue("a@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	first := postJSON(t, srv.URL+"/auth/refresh", map[string]string{"refresh_token": refresh})
	if first.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", first.StatusCode)
	}
	var pair map[string]string
	if err := json.NewDecoder(first.Body).Decode(&pair); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if pair["access_token"] == "" || pair["refresh_token"] == "" || pair["refresh_token"] == refresh {
		t.Fatalf("expected rotated pair, got %v", pair)
	}

	reused := postJSON(t, srv.URL+"/auth/refresh", map[string]string{"refresh_token": refresh})
	if reused.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected reused refresh token to be rejected, got %d", reused.StatusCode)
	}
	if srv.Exchanges() != 2 {
		t.Fatalf("expected 2 exchanges, got %d", srv.Exchanges())
	}
}

func TestServerAccessTokenCarriesExpiry(t *testing.T) {
	srv := NewServer()
	defer srv.Close()

	access, _, err := srv.IssueWithTTL("a@example.com", 12*time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(access, claims); err != nil {
		t.Fatalf("parse: %v", err)
	}
	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining < 11*time.Hour || remaining > 12*time.Hour {
		t.Fatalf("unexpected remaining lifetime %v", remaining)
	}
}

func TestServerProtectedRoutesRequireBearer(t *testing.T) {
	srv := NewServer()
	defer srv.Close()

	access, _, err := srv.Issue("a@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	srv.RevokeAccess()
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after revocation, got %d", resp.StatusCode)
	}
}

func TestServerLoginAndRegister(t *testing.T) {
	srv := NewServer(WithUser("a@example.com", "secret"))
	defer srv.Close()

	if resp := postJSON(t, srv.URL+"/auth/login", map[string]string{"email": "a@example.com", "password": "wrong"}); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", resp.StatusCode)
	}
	if resp := postJSON(t, srv.URL+"/auth/login", map[string]string{"email": "a@example.com", "password": "secret"}); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for valid login, got %d", resp.StatusCode)
	}
	if resp := postJSON(t, srv.URL+"/auth/register", map[string]string{"email": "a@example.com", "password": "x"}); resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate registration, got %d", resp.StatusCode)
	}
	if resp := postJSON(t, srv.URL+"/auth/register", map[string]string{"email": "b@example.com", "password": "x"}); resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for registration, got %d", resp.StatusCode)
	}
	if srv.Logins() != 2 {
		t.Fatalf("expected 2 sessions created, got %d", srv.Logins())
	}
}
