// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/time/rate"

	"github.com/jeranaias/chatdesk/internal/model"
)

// Configuration constants for the backend client.
const (
	// DefaultBaseURL is where the backend listens in a local deployment.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultTimeout bounds a single request. Chat replies wait on a model.
	DefaultTimeout = 120 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	// SECURITY: Response size limit prevents memory exhaustion.
	MaxResponseSize = 10 * 1024 * 1024
)

// CredentialSource supplies the token for authenticated calls. It is read at
// request time so a logout is honored by every later call.
type CredentialSource interface {
	Credential() string
}

// Client is a thin typed wrapper over the backend HTTP contract. It never
// retries; callers decide what a failure means.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      CredentialSource
	limiter    *rate.Limiter
	logger     zerolog.Logger
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout without mutating a shared client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// WithCredentials sets the token source for authenticated operations.
func WithCredentials(src CredentialSource) Option {
	return func(c *Client) {
		c.creds = src
	}
}

// WithRateLimit throttles outgoing requests. A non-positive rps disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the request logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l.With().Str("component", "api").Logger()
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
			Timeout: DefaultTimeout,
		},
		logger:    zerolog.Nop(),
		userAgent: "chatdesk",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend root this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// AUTH
// =============================================================================

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, username, password string) error {
	body := credentialsRequest{Username: username, Password: password}
	return c.do(ctx, "register", http.MethodPost, "/register", false, body, nil)
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	body := credentialsRequest{Username: username, Password: password}
	var out loginResponse
	if err := c.do(ctx, "login", http.MethodPost, "/login", false, body, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", &Error{Op: "login", Method: http.MethodPost, Path: "/login", Status: http.StatusOK, Err: ErrMalformedResponse}
	}
	return out.Token, nil
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// ListConversations returns the caller's conversations in the order the
// backend listed them.
func (c *Client) ListConversations(ctx context.Context) ([]model.ConversationSummary, error) {
	listing := orderedmap.New[string, conversationEntry]()
	if err := c.do(ctx, "list conversations", http.MethodGet, "/conversations", true, nil, listing); err != nil {
		return nil, err
	}

	out := make([]model.ConversationSummary, 0, listing.Len())
	for pair := listing.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, model.ConversationSummary{ID: pair.Key, Title: pair.Value.Title})
	}
	return out, nil
}

// GetConversation fetches one conversation with its history.
func (c *Client) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	path := "/conversations/" + url.PathEscape(id)
	var out conversationResponse
	if err := c.do(ctx, "get conversation", http.MethodGet, path, true, nil, &out); err != nil {
		return nil, err
	}
	// The backend reports a missing conversation as a 200 with an error body.
	if out.Error != "" {
		return nil, &Error{Op: "get conversation", Method: http.MethodGet, Path: path, Status: http.StatusNotFound, Detail: out.Error}
	}

	if out.ID == "" {
		out.ID = id
	}
	return &Conversation{ID: out.ID, Title: out.Title, History: model.Confirm(out.History)}, nil
}

// CreateConversation allocates a new, empty conversation on the backend.
func (c *Client) CreateConversation(ctx context.Context) (model.ConversationSummary, error) {
	var out conversationResponse
	if err := c.do(ctx, "create conversation", http.MethodPost, "/conversations", true, nil, &out); err != nil {
		return model.ConversationSummary{}, err
	}
	if out.ID == "" {
		return model.ConversationSummary{}, &Error{Op: "create conversation", Method: http.MethodPost, Path: "/conversations", Status: http.StatusOK, Err: ErrMalformedResponse}
	}
	return model.ConversationSummary{ID: out.ID, Title: out.Title}, nil
}

// DeleteConversation removes a conversation on the backend.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	path := "/conversations/" + url.PathEscape(id)
	return c.do(ctx, "delete conversation", http.MethodDelete, path, true, nil, nil)
}

// =============================================================================
// CHAT / SPEECH
// =============================================================================

// Chat sends text to the backend's current conversation. The text is sent
// exactly as given.
func (c *Client) Chat(ctx context.Context, text string) (*ChatReply, error) {
	var out chatResponse
	if err := c.do(ctx, "chat", http.MethodPost, "/chat", true, chatRequest{Message: text}, &out); err != nil {
		return nil, err
	}
	if out.History == nil {
		return nil, &Error{Op: "chat", Method: http.MethodPost, Path: "/chat", Status: http.StatusOK, Err: ErrMalformedResponse}
	}
	return &ChatReply{Response: out.Response, History: model.Confirm(out.History)}, nil
}

// Speak asks the backend to synthesize text and returns the audio URL as the
// backend reported it. This endpoint is unauthenticated.
func (c *Client) Speak(ctx context.Context, text string) (string, error) {
	var out speakResponse
	if err := c.do(ctx, "speak", http.MethodPost, "/speak", false, speakRequest{Text: text}, &out); err != nil {
		return "", err
	}
	if out.AudioURL == "" {
		return "", &Error{Op: "speak", Method: http.MethodPost, Path: "/speak", Status: http.StatusOK, Err: ErrMalformedResponse}
	}
	return out.AudioURL, nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

func (c *Client) do(ctx context.Context, op, method, path string, auth bool, in, out interface{}) error {
	var token string
	if auth {
		if c.creds != nil {
			token = c.creds.Credential()
		}
		if token == "" {
			return fmt.Errorf("api: %s: %w", op, ErrNoCredential)
		}
	}

	fail := func(status int, err error) error {
		return &Error{Op: op, Method: method, Path: path, Status: status, Err: err}
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fail(0, err)
		}
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fail(0, fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fail(0, fmt.Errorf("create request: %w", err))
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	if token != "" {
		// The backend expects the bare token, no scheme.
		req.Header.Set("Authorization", token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().
			Str("op", op).
			Str("request_id", requestID).
			Dur("duration", time.Since(start)).
			Err(err).
			Msg("request failed")
		return fail(0, err)
	}
	defer resp.Body.Close()

	data, readErr := readResponse(resp)

	// SECURITY: never log headers or bodies; they carry tokens and passwords.
	c.logger.Debug().
		Str("op", op).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Str("request_id", requestID).
		Dur("duration", time.Since(start)).
		Msg("request")

	if readErr != nil {
		return fail(resp.StatusCode, readErr)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Op: op, Method: method, Path: path, Status: resp.StatusCode, Detail: parseDetail(data)}
	}

	trimmed := bytes.TrimSpace(data)
	if out == nil || len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(trimmed, out); err != nil {
		return fail(resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// readResponse reads the body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	// SECURITY: Limit response size to prevent memory exhaustion
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}
