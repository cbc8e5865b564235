// Package directdebit talks to the direct-debit gateway: bearer-token exchange, customers and
// payment schedules.
package directdebit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"fleetrent/utils"

	"go.uber.org/zap"
)

const (
	// MaxDescriptionLength is the longest schedule description the gateway accepts.
	MaxDescriptionLength = 50
	DefaultReminderDays  = 2

	maxResponseBytes = 1 << 20
)

var authEndpoints = []string{"/v3/authenticate", "/v3/token"}

type ClientConfig struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
}

// Client is an authenticated JSON client for the gateway API. Every call is bounded by the
// configured timeout.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	tokens   TokenStore
	logger   *zap.Logger

	// refreshMu keeps concurrent callers from exchanging credentials at the same time.
	refreshMu sync.Mutex
}

func NewClient(cfg ClientConfig, tokens TokenStore, logger *zap.Logger) *Client {
	if tokens == nil {
		tokens = NewMemoryTokenStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: timeout},
		tokens:   tokens,
		logger:   logger,
	}
}

// retryableStatus reports whether an upstream status is worth retrying later.
func retryableStatus(status int) bool {
	return status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500
}

// IsDefinitiveRejection reports whether err is an upstream 4xx that says the request itself
// was refused, as opposed to a timeout or throttling.
func IsDefinitiveRejection(err error) bool {
	var appErr *utils.AppError
	if !errors.As(err, &appErr) || appErr.Kind != utils.KindGateway {
		return false
	}
	return appErr.Status >= 400 && appErr.Status < 500 && !retryableStatus(appErr.Status)
}

func transportError(method, path string, err error) error {
	return utils.NewGatewayError(0, true, fmt.Sprintf("gateway %s %s failed", method, path), err)
}

// send performs one HTTP exchange and returns the status and raw body.
func (c *Client) send(ctx context.Context, method, path, token string, body interface{}) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode %s payload: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, transportError(method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, transportError(method, path, err)
	}
	return resp.StatusCode, raw, nil
}

func decodeObject(raw []byte) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, utils.NewGatewayError(0, false, "gateway returned a non-object body", err)
	}
	return out, nil
}

// Token returns a cached bearer token or exchanges the credentials for a new one, trying each
// known auth endpoint in turn.
func (c *Client) Token(ctx context.Context) (string, error) {
	if token, ok := c.tokens.Get(ctx); ok {
		return token, nil
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	if token, ok := c.tokens.Get(ctx); ok {
		return token, nil
	}

	credentials := map[string]string{"username": c.username, "password": c.password}
	var lastErr error
	for _, endpoint := range authEndpoints {
		status, raw, err := c.send(ctx, http.MethodPost, endpoint, "", credentials)
		if err != nil {
			lastErr = err
			continue
		}
		if status != http.StatusOK {
			lastErr = utils.NewGatewayError(status, retryableStatus(status),
				fmt.Sprintf("gateway authentication at %s returned %d", endpoint, status), nil)
			continue
		}
		data, err := decodeObject(raw)
		if err != nil {
			lastErr = err
			continue
		}
		token := utils.FirstString(data, tokenKeys...)
		if token == "" {
			lastErr = utils.NewGatewayError(status, false, "gateway authentication response carried no token", nil)
			continue
		}
		c.tokens.Set(ctx, token, tokenTTL(data))
		c.logger.Debug("gateway token refreshed", zap.String("endpoint", endpoint))
		return token, nil
	}
	return "", lastErr
}

// tokenTTL honours an explicit expiry in the auth response and otherwise assumes the default
// lifetime. A safety margin keeps a nearly expired token from being used.
func tokenTTL(data map[string]interface{}) time.Duration {
	lifetime := utils.GatewayTokenLifetime
	if raw := utils.FirstString(data, tokenExpiryKeys...); raw != "" {
		if secs, err := strconv.ParseFloat(raw, 64); err == nil && secs > 0 {
			lifetime = time.Duration(secs) * time.Second
		}
	}
	if lifetime > 2*utils.GatewayTokenSafetyMargin {
		lifetime -= utils.GatewayTokenSafetyMargin
	}
	return lifetime
}

// Do sends an authenticated request and decodes the JSON object it returns. A 401 drops the
// cached token and the request is sent once more with a fresh one.
func (c *Client) Do(ctx context.Context, method, path string, body interface{}) (map[string]interface{}, error) {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.Token(ctx)
		if err != nil {
			return nil, err
		}
		status, raw, err := c.send(ctx, method, path, token, body)
		if err != nil {
			return nil, err
		}
		switch {
		case status >= 200 && status < 300:
			return decodeObject(raw)
		case status == http.StatusUnauthorized && attempt == 0:
			c.tokens.Clear(ctx)
			continue
		}
		return nil, utils.NewGatewayError(status, retryableStatus(status),
			fmt.Sprintf("gateway %s %s returned %d", method, path, status),
			errors.New(snippet(raw)))
	}
	return nil, utils.NewGatewayError(http.StatusUnauthorized, false, "gateway rejected a fresh token", nil)
}

// GetWithRetry retries an idempotent GET on retryable failures with exponential backoff.
func (c *Client) GetWithRetry(ctx context.Context, path string, attempts int) (map[string]interface{}, error) {
	if attempts < 1 {
		attempts = 1
	}
	backoff := 200 * time.Millisecond
	var lastErr error
	for i := 0; i < attempts; i++ {
		resp, err := c.Do(ctx, http.MethodGet, path, nil)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !utils.IsRetryable(err) || i == attempts-1 {
			break
		}
		c.logger.Warn("gateway read failed, retrying",
			zap.String("path", path), zap.Int("attempt", i+1), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, transportError(http.MethodGet, path, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, lastErr
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	if s == "" {
		return "empty response body"
	}
	return s
}
