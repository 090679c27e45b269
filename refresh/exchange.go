package refresh

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/MrEthical07/goAuthClient/tokenstore"
	"github.com/google/uuid"
)

const maxResponseBytes = 1 << 20

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// HTTPExchanger posts the refresh token to the refresh endpoint as JSON.
type HTTPExchanger struct {
	client    *http.Client
	endpoint  string
	userAgent string
}

// NewHTTPExchanger returns an exchanger for endpoint (absolute URL). client must carry
// a timeout; the exchanger adds none.
func NewHTTPExchanger(client *http.Client, endpoint, userAgent string) *HTTPExchanger {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPExchanger{
		client:    client,
		endpoint:  endpoint,
		userAgent: userAgent,
	}
}

func (e *HTTPExchanger) Exchange(ctx context.Context, refreshToken string) (tokenstore.Pair, error) {
	body, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return tokenstore.Pair{}, fmt.Errorf("encode refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return tokenstore.Pair{}, fmt.Errorf("%w: build refresh request: %w", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return tokenstore.Pair{}, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return tokenstore.Pair{}, fmt.Errorf("%w: status %d", ErrRefreshDenied, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !IsJSONContentType(contentType) {
		return tokenstore.Pair{}, fmt.Errorf("%w: content type %q", ErrMalformedResponse, contentType)
	}

	var out refreshResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return tokenstore.Pair{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if out.AccessToken == "" || out.RefreshToken == "" {
		return tokenstore.Pair{}, fmt.Errorf("%w: missing token fields", ErrMalformedResponse)
	}

	return tokenstore.Pair{AccessToken: out.AccessToken, RefreshToken: out.RefreshToken}, nil
}

// IsJSONContentType reports whether a Content-Type header declares JSON
// (application/json or a +json structured suffix).
func IsJSONContentType(v string) bool {
	if strings.TrimSpace(v) == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(v)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
