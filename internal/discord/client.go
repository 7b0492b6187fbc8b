// Package discord is a small client for the Discord REST API and the types
// of the inbound interaction payloads the bot receives.
//
// Only the handful of endpoints the bot needs are wrapped. Every request is
// authenticated with the bot token, and every non-2xx response is returned as
// an *APIError that carries the HTTP status and Discord's own error message.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the versioned REST endpoint used when ClientConfig.BaseURL is empty.
const DefaultBaseURL = "https://discord.com/api/v10"

const (
	defaultMaxRetries = 2
	maxRetryAfter     = 10 * time.Second
	maxResponseBytes  = 4 << 20
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// Token is the bot token. Required.
	Token string
	// BaseURL is the REST API root. Defaults to DefaultBaseURL.
	BaseURL string
	// HTTPClient is used for all requests. If nil, a client with a 15s timeout is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger
	// MaxRetries bounds how often a rate-limited (429) request is retried.
	// Zero means the default of 2; negative disables retries.
	MaxRetries int
}

// Client is an authenticated Discord REST client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
	maxRetries int
}

// NewClient creates a new Client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Token == "" {
		return nil, fmt.Errorf("discord: Token is required")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("discord: invalid BaseURL %q: %w", baseURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxRetries := config.MaxRetries
	switch {
	case maxRetries == 0:
		maxRetries = defaultMaxRetries
	case maxRetries < 0:
		maxRetries = 0
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      config.Token,
		httpClient: httpClient,
		logger:     logger,
		maxRetries: maxRetries,
	}, nil
}

// Get issues a GET request and decodes the JSON response into out (if non-nil).
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// Patch issues a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPatch, path, body, out)
}

// Put issues a PUT request. body may be nil.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, body, out)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// do performs the request, retrying on 429 after the delay Discord asks for.
func (c *Client) do(ctx context.Context, method, path string, requestBody, out any) error {
	var encoded []byte
	if requestBody != nil {
		var err error
		encoded, err = json.Marshal(requestBody)
		if err != nil {
			return fmt.Errorf("discord: failed to encode request body: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		responseBody, err := c.doOnce(ctx, method, path, encoded)
		if err == nil {
			if out == nil || len(responseBody) == 0 {
				return nil
			}
			if err := json.Unmarshal(responseBody, out); err != nil {
				return fmt.Errorf("discord: failed to parse response from %s %s: %w", method, path, err)
			}
			return nil
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusTooManyRequests || attempt >= c.maxRetries {
			return err
		}

		wait := apiErr.RetryAfter
		if wait > maxRetryAfter {
			return err
		}
		c.logger.WarnContext(ctx, "discord rate limited, retrying",
			"method", method,
			"path", path,
			"retry_after_ms", wait.Milliseconds(),
			"attempt", attempt+1,
		)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("discord: %s %s: %w", method, path, ctx.Err())
		case <-timer.C:
		}
	}
}

func (c *Client) doOnce(ctx context.Context, method, path string, encoded []byte) ([]byte, error) {
	var bodyReader io.Reader
	if encoded != nil {
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("discord: failed to create request: %w", err)
	}
	request.Header.Set("Authorization", "Bot "+c.token)
	request.Header.Set("User-Agent", "DiscordBot (https://github.com/pkordes/tripbot, 1.0)")
	if encoded != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("discord: request to %s %s failed: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("discord: failed to read response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}
	return nil, newAPIError(method, path, response.StatusCode, responseBody)
}
