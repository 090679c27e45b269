package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/MrEthical07/goAuthClient/internal/metrics"
	"github.com/MrEthical07/goAuthClient/refresh"
	"github.com/MrEthical07/goAuthClient/tokenstore"
	"github.com/google/uuid"
)

const (
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	headerRequestID     = "X-Request-ID"
	headerUserAgent     = "User-Agent"

	contentTypeJSON = "application/json"

	maxDrainBytes = 64 << 10
)

// Request describes one logical call.
type Request struct {
	Method string
	// Path is resolved against the base URL unless it is absolute.
	Path   string
	Query  url.Values
	Header http.Header
	Body   any
}

// TokenSource reads the current credential pair.
type TokenSource interface {
	Get() tokenstore.Pair
}

// Refresher renews the credential pair. *refresh.Coordinator implements it.
type Refresher interface {
	Refresh(ctx context.Context) (tokenstore.Pair, error)
}

// Option customizes a Gateway.
type Option func(*Gateway)

func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		if client != nil {
			g.client = client
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(g *Gateway) {
		g.userAgent = ua
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// Gateway dispatches authenticated requests. It is safe for concurrent use.
type Gateway struct {
	baseURL   *url.URL
	tokens    TokenSource
	refresher Refresher
	client    *http.Client
	userAgent string
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// New returns a Gateway for baseURL (absolute http or https URL).
func New(baseURL string, tokens TokenSource, refresher Refresher, opts ...Option) (*Gateway, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("gateway: invalid base url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("gateway: base url must be absolute http(s), got %q", baseURL)
	}
	if tokens == nil || refresher == nil {
		return nil, errors.New("gateway: token source and refresher are required")
	}

	g := &Gateway{
		baseURL:   u,
		tokens:    tokens,
		refresher: refresher,
		client:    http.DefaultClient,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Send dispatches req and replays it once after a coordinated renewal when the server
// answers 401. The caller owns the returned response body.
func (g *Gateway) Send(ctx context.Context, req Request) (*http.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	target, err := g.resolve(req.Path, req.Query)
	if err != nil {
		return nil, err
	}
	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	c := &call{
		method:    method,
		target:    target,
		header:    req.Header,
		body:      body,
		requestID: uuid.NewString(),
	}

	sent := g.tokens.Get().AccessToken
	resp, err := g.dispatch(ctx, c, sent)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	g.metrics.Inc(metrics.GatewayUnauthorized)

	current := g.tokens.Get()
	if current.RefreshToken == "" {
		return resp, nil
	}

	next := current.AccessToken
	if next == "" || next == sent {
		pair, err := g.refresher.Refresh(ctx)
		if errors.Is(err, refresh.ErrNoRefreshToken) {
			return resp, nil
		}
		if err != nil {
			drain(resp)
			return nil, err
		}
		next = pair.AccessToken
	}
	drain(resp)

	g.metrics.Inc(metrics.GatewayReplay)
	g.logger.Debug("goAuthClient: replaying request after token refresh",
		slog.String("method", method),
		slog.String("request_id", c.requestID),
	)

	replayed, err := g.dispatch(ctx, c, next)
	if err != nil {
		return nil, err
	}
	if replayed.StatusCode == http.StatusUnauthorized {
		g.metrics.Inc(metrics.GatewayReplayUnauthorized)
	}
	return replayed, nil
}

type call struct {
	method    string
	target    string
	header    http.Header
	body      encodedBody
	requestID string
}

func (g *Gateway) dispatch(ctx context.Context, c *call, accessToken string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, c.method, c.target, c.body.reader())
	if err != nil {
		return nil, fmt.Errorf("gateway: build request: %w", err)
	}
	if c.header != nil {
		req.Header = c.header.Clone()
	}

	switch {
	case c.body.contentType != "":
		req.Header.Set(headerContentType, c.body.contentType)
	case c.body.defaultJSON && req.Header.Get(headerContentType) == "":
		req.Header.Set(headerContentType, contentTypeJSON)
	}
	if accessToken != "" {
		req.Header.Set(headerAuthorization, "Bearer "+accessToken)
	} else {
		req.Header.Del(headerAuthorization)
	}
	if req.Header.Get(headerRequestID) == "" {
		req.Header.Set(headerRequestID, c.requestID)
	}
	if g.userAgent != "" && req.Header.Get(headerUserAgent) == "" {
		req.Header.Set(headerUserAgent, g.userAgent)
	}

	g.metrics.Inc(metrics.GatewayRequest)
	resp, err := g.client.Do(req)
	if err != nil {
		g.metrics.Inc(metrics.GatewayTransportError)
		return nil, fmt.Errorf("%w: %s %s: %w", refresh.ErrTransport, c.method, c.target, err)
	}
	return resp, nil
}

func (g *Gateway) resolve(path string, query url.Values) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("gateway: invalid path %q: %w", path, err)
	}

	var u *url.URL
	if ref.IsAbs() {
		u = ref
	} else {
		u = g.baseURL.JoinPath(ref.Path)
		u.RawQuery = ref.RawQuery
	}

	if len(query) > 0 {
		q := u.Query()
		for key, values := range query {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))
	_ = resp.Body.Close()
}
