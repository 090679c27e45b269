package jwt

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the unverified claims of an access token.
type Claims struct {
	SID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

var parser = jwt.NewParser()

// DecodeClaims decodes the payload segment of token. The header and signature are
// never inspected, so any alg is accepted. ok is false when the payload is not a
// base64url JSON object.
func DecodeClaims(token string) (claims *Claims, ok bool) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	if len(parts) != 3 || parts[1] == "" {
		return nil, false
	}

	payload, err := parser.DecodeSegment(parts[1])
	if err != nil {
		return nil, false
	}
	claims = &Claims{}
	if err := json.Unmarshal(payload, claims); err != nil {
		return nil, false
	}
	return claims, true
}

// DecodeExpiry returns the exp claim of token. ok is false for malformed tokens and
// for tokens without exp.
func DecodeExpiry(token string) (expiresAt time.Time, ok bool) {
	claims, ok := DecodeClaims(token)
	if !ok || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Remaining returns how long token stays valid after now. The duration is negative
// for an already expired token.
func Remaining(token string, now time.Time) (time.Duration, bool) {
	exp, ok := DecodeExpiry(token)
	if !ok {
		return 0, false
	}
	return exp.Sub(now), true
}
