package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// tokenExpiryBuffer is subtracted from the reported token lifetime.
const tokenExpiryBuffer = 5 * time.Minute

// clientCredentials describes an application registration.
type clientCredentials struct {
	tokenURL     string
	clientID     string
	clientSecret string
	scope        string
}

// form returns the client-credentials grant request body.
func (c clientCredentials) form() url.Values {
	return url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"scope":         {c.scope},
	}
}

// tokenCache holds an access token and refreshes it shortly before it
// expires. It is safe for concurrent use.
type tokenCache struct {
	creds      clientCredentials
	httpClient *http.Client
	now        func() time.Time

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func newTokenCache(creds clientCredentials, httpClient *http.Client) *tokenCache {
	return &tokenCache{creds: creds, httpClient: httpClient, now: time.Now}
}

// Token returns the cached token or acquires a new one.
func (tc *tokenCache) Token(ctx context.Context) (string, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.accessToken != "" && tc.now().Before(tc.expiresAt) {
		return tc.accessToken, nil
	}
	return tc.refresh(ctx)
}

// ForceRefresh drops the cached token and acquires a new one. Used after
// the API rejects a token with 401.
func (tc *tokenCache) ForceRefresh(ctx context.Context) (string, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.accessToken = ""
	tc.expiresAt = time.Time{}
	return tc.refresh(ctx)
}

// refresh must be called with tc.mu held.
func (tc *tokenCache) refresh(ctx context.Context) (string, error) {
	resp, err := tc.request(ctx)
	if err != nil {
		return "", err
	}

	tc.accessToken = resp.AccessToken
	tc.expiresAt = tc.now().Add(time.Duration(resp.ExpiresIn)*time.Second - tokenExpiryBuffer)
	return tc.accessToken, nil
}

func (tc *tokenCache) request(ctx context.Context) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tc.creds.tokenURL,
		strings.NewReader(tc.creds.form().Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := tc.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}
	return &tr, nil
}
