package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/ayandah-api/internal/catalog"
	"github.com/noah-isme/ayandah-api/internal/models"
)

// DefaultCacheTTL is how long a fetched listing is reused.
const DefaultCacheTTL = 5 * time.Minute

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Message)
}

// Result carries the outcome of one fetch. Refetch repeats the identical
// request against the server, skipping the cache.
type Result[T any] struct {
	Data T
	Err  error

	refetch func(ctx context.Context) Result[T]
}

// Refetch re-issues the request that produced r.
func (r Result[T]) Refetch(ctx context.Context) Result[T] {
	if r.refetch == nil {
		return r
	}
	return r.refetch(ctx)
}

type cacheEntry struct {
	body    []byte
	expires time.Time
}

// Client talks to the public catalog and auth endpoints. Nothing is retried;
// callers decide when to Refetch.
type Client struct {
	baseURL string
	http    *http.Client
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time

	mu     sync.Mutex
	cache  map[string]cacheEntry
	token  string
	flight singleflight.Group
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCacheTTL overrides DefaultCacheTTL. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.ttl = ttl }
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New builds a client for the API mounted at baseURL, for example
// "https://ayandah.example/api".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		ttl:     DefaultCacheTTL,
		logger:  zap.NewNop(),
		now:     time.Now,
		cache:   make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Recent fetches the newest scholarships.
func (c *Client) Recent(ctx context.Context) Result[[]models.Scholarship] {
	return fetch(ctx, c, "/scholarships/limit", nil, decodeRecords)
}

// Search fetches the scholarships matching params. Each distinct parameter
// combination is cached separately.
func (c *Client) Search(ctx context.Context, params catalog.SearchParams) Result[[]models.Scholarship] {
	return fetch(ctx, c, "/scholarships/search", params.Values(), decodeRecords)
}

// List fetches the full catalog from the legacy listing.
func (c *Client) List(ctx context.Context) Result[[]models.Scholarship] {
	return fetch(ctx, c, "/schalorships", nil, decodeRecords)
}

// Facets fetches the server computed filter options.
func (c *Client) Facets(ctx context.Context) Result[catalog.FilterOptions] {
	return fetch(ctx, c, "/scholarships/facets", nil, func(body []byte) (catalog.FilterOptions, error) {
		var env struct {
			Data catalog.FilterOptions `json:"data"`
		}
		err := json.Unmarshal(body, &env)
		return env.Data, err
	})
}

// Login authenticates and keeps the access token for later requests.
func (c *Client) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	var res models.LoginResponse
	if err := c.post(ctx, "/auth/login", models.LoginRequest{Email: email, Password: password}, &res); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.token = res.AccessToken
	c.mu.Unlock()
	return &res, nil
}

// Register creates an account and immediately logs in with the same
// credentials.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.LoginResponse, error) {
	var created models.RegisterResponse
	if err := c.post(ctx, "/auth/register", req, &created); err != nil {
		return nil, err
	}
	res, err := c.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, fmt.Errorf("registered but login failed: %w", err)
	}
	return res, nil
}

// Invalidate drops every cached response.
func (c *Client) Invalidate() {
	c.mu.Lock()
	c.cache = make(map[string]cacheEntry)
	c.mu.Unlock()
}

func fetch[T any](ctx context.Context, c *Client, path string, query url.Values, decode func([]byte) (T, error)) Result[T] {
	key := path
	if encoded := query.Encode(); encoded != "" {
		key += "?" + encoded
	}

	run := func(ctx context.Context, useCache bool) Result[T] {
		body, err := c.get(ctx, key, useCache)
		if err != nil {
			var zero T
			return Result[T]{Data: zero, Err: err}
		}
		data, err := decode(body)
		if err != nil {
			return Result[T]{Data: data, Err: fmt.Errorf("decode %s: %w", path, err)}
		}
		return Result[T]{Data: data}
	}

	res := run(ctx, true)
	res.refetch = func(ctx context.Context) Result[T] {
		next := run(ctx, false)
		next.refetch = res.refetch
		return next
	}
	return res
}

func decodeRecords(body []byte) ([]models.Scholarship, error) {
	return catalog.DecodeRecords(body), nil
}

func (c *Client) get(ctx context.Context, key string, useCache bool) ([]byte, error) {
	if useCache {
		if body, ok := c.cached(key); ok {
			c.logger.Debug("client cache hit", zap.String("key", key))
			return body, nil
		}
	}

	// identical in-flight requests share one round trip
	v, err, _ := c.flight.Do(key, func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+key, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		body, err := c.do(req)
		if err != nil {
			return nil, err
		}
		c.store(key, body)
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Client) post(ctx context.Context, path string, payload, dest interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		return err
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(env.Data) == 0 || dest == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPError{Status: resp.StatusCode, Message: serverMessage(body)}
	}
	return body, nil
}

func serverMessage(body []byte) string {
	var env struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	return env.Message
}

func (c *Client) cached(key string) ([]byte, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[key]
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expires) {
		delete(c.cache, key)
		return nil, false
	}
	return entry.body, true
}

func (c *Client) store(key string, body []byte) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.cache[key] = cacheEntry{body: body, expires: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// IsStatus reports whether err is an HTTPError with the given status.
func IsStatus(err error, status int) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.Status == status
}
