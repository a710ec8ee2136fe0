// Package upstream is the HTTP client for the marketplace REST API. Each
// Client owns a cookie jar, so it carries exactly one visitor's upstream
// session cookie.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/picha-hub/picha_portal/internal/identity"
)

const maxErrorBody = 64 << 10

// Factory builds per-visitor clients that share one transport.
type Factory struct {
	baseURL   string
	timeout   time.Duration
	transport http.RoundTripper
	logger    *slog.Logger
}

// NewFactory validates baseURL and prepares a client factory. A nil transport
// uses http.DefaultTransport.
func NewFactory(baseURL string, timeout time.Duration, transport http.RoundTripper, logger *slog.Logger) (*Factory, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api base url must be absolute: %q", baseURL)
	}
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Factory{
		baseURL:   u.String(),
		timeout:   timeout,
		transport: transport,
		logger:    logger.With(slog.String("component", "upstream")),
	}, nil
}

// NewClient returns a client with an empty cookie jar.
func (f *Factory) NewClient() *Client {
	jar, _ := cookiejar.New(nil) // only fails on a non-nil options error
	return &Client{
		http: &http.Client{
			Jar:       jar,
			Timeout:   f.timeout,
			Transport: f.transport,
		},
		baseURL: f.baseURL,
		logger:  f.logger,
	}
}

// Client calls the marketplace API on behalf of one visitor.
type Client struct {
	http    *http.Client
	baseURL string
	logger  *slog.Logger
}

type userEnvelope struct {
	User *identity.Identity `json:"user"`
}

// Me returns the identity bound to the client's session cookie.
// GET /auth/me
func (c *Client) Me(ctx context.Context) (identity.Identity, error) {
	return c.userCall(ctx, http.MethodGet, "/auth/me", nil)
}

// Login authenticates and stores the session cookie.
// POST /auth/login
func (c *Client) Login(ctx context.Context, creds identity.Credentials) (identity.Identity, error) {
	return c.userCall(ctx, http.MethodPost, "/auth/login", creds)
}

// Register creates an account and stores the session cookie.
// POST /auth/register
func (c *Client) Register(ctx context.Context, reg identity.Registration) (identity.Identity, error) {
	return c.userCall(ctx, http.MethodPost, "/auth/register", reg)
}

// Logout ends the upstream session. The response body is ignored.
// POST /auth/logout
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

func (c *Client) userCall(ctx context.Context, method, path string, body any) (identity.Identity, error) {
	var env userEnvelope
	if err := c.do(ctx, method, path, body, &env); err != nil {
		return identity.Identity{}, err
	}
	if env.User == nil || env.User.ID == "" {
		return identity.Identity{}, fmt.Errorf("%s %s: response has no user", method, path)
	}
	return *env.User, nil
}

// ListSubscriptions returns the subscriptions of a user.
// GET /subscriptions?user={id}
func (c *Client) ListSubscriptions(ctx context.Context, userID string) ([]Subscription, error) {
	var env struct {
		Subscriptions []Subscription `json:"subscriptions"`
	}
	path := "/subscriptions?user=" + url.QueryEscape(userID)
	if err := c.do(ctx, http.MethodGet, path, nil, &env); err != nil {
		return nil, err
	}
	return env.Subscriptions, nil
}

// SubscriptionLimits returns the entitlement of a subscription.
// GET /subscriptions/{id}/limits
func (c *Client) SubscriptionLimits(ctx context.Context, subscriptionID string) (Limits, error) {
	var env struct {
		Success bool    `json:"success"`
		Limits  *Limits `json:"limits"`
	}
	path := "/subscriptions/" + url.PathEscape(subscriptionID) + "/limits"
	if err := c.do(ctx, http.MethodGet, path, nil, &env); err != nil {
		return Limits{}, err
	}
	if !env.Success || env.Limits == nil {
		return Limits{}, fmt.Errorf("GET %s: unsuccessful response", path)
	}
	return *env.Limits, nil
}

// CreateSubscription starts a subscription.
// POST /subscriptions
func (c *Client) CreateSubscription(ctx context.Context, input CreateSubscriptionInput) (CreateSubscriptionResult, error) {
	var res CreateSubscriptionResult
	if err := c.do(ctx, http.MethodPost, "/subscriptions", input, &res); err != nil {
		return CreateSubscriptionResult{}, err
	}
	return res, nil
}

// CancelSubscription cancels a subscription.
// POST /subscriptions/{id}/cancel
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) (Subscription, error) {
	var env struct {
		Success bool          `json:"success"`
		Data    *Subscription `json:"data"`
	}
	path := "/subscriptions/" + url.PathEscape(subscriptionID) + "/cancel"
	if err := c.do(ctx, http.MethodPost, path, nil, &env); err != nil {
		return Subscription{}, err
	}
	if !env.Success {
		return Subscription{}, fmt.Errorf("POST %s: unsuccessful response", path)
	}
	if env.Data == nil {
		return Subscription{ID: subscriptionID, Status: StatusCancelled}, nil
	}
	return *env.Data, nil
}

// ListRequests returns open client requests visible to the caller.
// GET /requests
func (c *Client) ListRequests(ctx context.Context) ([]Request, error) {
	var env struct {
		Requests []Request `json:"requests"`
	}
	if err := c.do(ctx, http.MethodGet, "/requests", nil, &env); err != nil {
		return nil, err
	}
	return env.Requests, nil
}

// SubmitProposal submits a proposal on a request.
// POST /requests/{id}/proposals
func (c *Client) SubmitProposal(ctx context.Context, requestID string, input ProposalInput) (Proposal, error) {
	var env struct {
		Success bool      `json:"success"`
		Data    *Proposal `json:"data"`
	}
	path := "/requests/" + url.PathEscape(requestID) + "/proposals"
	if err := c.do(ctx, http.MethodPost, path, input, &env); err != nil {
		return Proposal{}, err
	}
	if env.Data == nil {
		return Proposal{}, fmt.Errorf("POST %s: response has no proposal", path)
	}
	return *env.Data, nil
}

// Ping reports whether the API answers at all; any HTTP status counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/auth/me", http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	return resp.Body.Close()
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("upstream call",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return decodeAPIError(resp.StatusCode, raw)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
