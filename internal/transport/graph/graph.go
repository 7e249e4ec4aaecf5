package graph

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
	"strconv"
	"strings"
	"time"

	"github.com/shineum/release-announcer/internal/mail"
)

const (
	DefaultAuthority = "https://login.microsoftonline.com"
	DefaultEndpoint  = "https://graph.microsoft.com"

	maxRetries     = 3
	baseRetryDelay = 1 * time.Second
)

// Config holds the application registration used for client-credentials
// authentication. Authority and Endpoint default to the global cloud.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	Authority    string
	Endpoint     string
}

func (c Config) authority() string {
	if c.Authority == "" {
		return DefaultAuthority
	}
	return strings.TrimRight(c.Authority, "/")
}

func (c Config) endpoint() string {
	if c.Endpoint == "" {
		return DefaultEndpoint
	}
	return strings.TrimRight(c.Endpoint, "/")
}

func (c Config) credentials() clientCredentials {
	return clientCredentials{
		tokenURL:     c.authority() + "/" + url.PathEscape(c.TenantID) + "/oauth2/v2.0/token",
		clientID:     c.ClientID,
		clientSecret: c.ClientSecret,
		scope:        c.endpoint() + "/.default",
	}
}

// Transport sends announcements through the sendMail endpoint of the mailbox
// named by the announcement's from address.
type Transport struct {
	apiURL     string
	httpClient *http.Client
	token      *tokenCache
	baseDelay  time.Duration
}

// New creates a Transport for the given tenant and application.
func New(cfg Config) *Transport {
	client := &http.Client{Timeout: 30 * time.Second}
	return &Transport{
		apiURL:     cfg.endpoint() + "/v1.0",
		httpClient: client,
		token:      newTokenCache(cfg.credentials(), client),
		baseDelay:  baseRetryDelay,
	}
}

// Send delivers the announcement. 5xx and 429 responses are retried with
// exponential backoff or the Retry-After delay, and a 401 triggers a single
// token refresh.
func (t *Transport) Send(ctx context.Context, opts *mail.Options) error {
	if opts.From == "" {
		return fmt.Errorf("Graph requires a from address")
	}

	bodyJSON, err := json.Marshal(buildSendMailRequest(opts))
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}
	endpoint := t.sendMailURL(opts.From)

	var lastErr error
	tokenRefreshed := false

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			slog.Debug("retrying Graph API request",
				"attempt", attempt,
				"max_retries", maxRetries,
			)
		}

		err := t.doSendRequest(ctx, endpoint, bodyJSON)
		if err == nil {
			slog.Info("announcement accepted by Graph", "sender", opts.From)
			return nil
		}

		lastErr = err

		var graphErr *sendError
		if !errors.As(err, &graphErr) {
			return err
		}

		switch {
		case graphErr.permanent:
			return graphErr
		case graphErr.statusCode == http.StatusUnauthorized && !tokenRefreshed:
			slog.Info("refreshing Graph API token after 401")
			if _, refreshErr := t.token.ForceRefresh(ctx); refreshErr != nil {
				return fmt.Errorf("token refresh failed: %w", refreshErr)
			}
			tokenRefreshed = true
		case graphErr.statusCode == http.StatusTooManyRequests:
			delay := t.retryAfterDelay(graphErr.retryAfter, attempt)
			slog.Info("rate limited by Graph API", "retry_after", delay)
			if err := sleepWithContext(ctx, delay); err != nil {
				return fmt.Errorf("context cancelled during retry wait: %w", err)
			}
		case graphErr.transient:
			delay := backoffDelay(t.baseDelay, attempt)
			slog.Info("transient Graph API error, retrying",
				"status", graphErr.statusCode,
				"delay", delay,
			)
			if err := sleepWithContext(ctx, delay); err != nil {
				return fmt.Errorf("context cancelled during retry wait: %w", err)
			}
		default:
			return graphErr
		}
	}

	return fmt.Errorf("Graph API request failed after %d retries: %w", maxRetries, lastErr)
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "graph"
}

func (t *Transport) sendMailURL(sender string) string {
	return t.apiURL + "/users/" + url.PathEscape(sender) + "/sendMail"
}

// doSendRequest performs a single HTTP request to the sendMail endpoint.
func (t *Transport) doSendRequest(ctx context.Context, endpoint string, bodyJSON []byte) error {
	token, err := t.token.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("HTTP request failed: %w", err)
		}
		return &sendError{
			message:   fmt.Sprintf("HTTP request failed: %v", err),
			transient: true,
		}
	}
	defer resp.Body.Close()

	// sendMail answers 202 Accepted
	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK {
		return nil
	}

	body, _ := io.ReadAll(resp.Body)

	var graphErrResp graphErrorResponse
	if jsonErr := json.Unmarshal(body, &graphErrResp); jsonErr == nil && graphErrResp.Error.Message != "" {
		return classifyError(resp.StatusCode, graphErrResp.Error.Message, resp.Header.Get("Retry-After"))
	}

	return classifyError(resp.StatusCode, string(body), resp.Header.Get("Retry-After"))
}

// sendError is a Graph API failure classified for retry decisions.
type sendError struct {
	message    string
	statusCode int
	permanent  bool
	transient  bool
	retryAfter string
}

func (e *sendError) Error() string {
	return fmt.Sprintf("Graph API error (HTTP %d): %s", e.statusCode, e.message)
}

func classifyError(statusCode int, message, retryAfter string) *sendError {
	err := &sendError{
		message:    message,
		statusCode: statusCode,
		retryAfter: retryAfter,
	}

	switch {
	case statusCode == http.StatusBadRequest || statusCode == http.StatusForbidden:
		err.permanent = true
	case statusCode == http.StatusUnauthorized:
		err.transient = true
	case statusCode == http.StatusTooManyRequests:
		err.transient = true
	case statusCode >= 500:
		err.transient = true
	default:
		err.permanent = true
	}

	return err
}

// retryAfterDelay honours a Retry-After value in seconds and falls back to
// exponential backoff.
func (t *Transport) retryAfterDelay(retryAfter string, attempt int) time.Duration {
	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return backoffDelay(t.baseDelay, attempt)
}

// backoffDelay doubles base once per attempt.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
	}
	return delay
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
