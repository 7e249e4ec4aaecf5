package graph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// newTokenEndpoint serves tokens named token-1, token-2, ... and counts the
// requests it receives.
func newTokenEndpoint(t *testing.T, expiresIn int64) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tokenResponse{
			AccessToken: "token-" + string(rune('0'+n)),
			ExpiresIn:   expiresIn,
			TokenType:   "Bearer",
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func testCredentials(tokenURL string) clientCredentials {
	return clientCredentials{
		tokenURL:     tokenURL,
		clientID:     "cid",
		clientSecret: "csecret",
		scope:        DefaultEndpoint + "/.default",
	}
}

func TestConfig_Credentials(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      Config
		tokenURL string
		scope    string
	}{
		{
			name:     "global cloud",
			cfg:      Config{TenantID: "contoso", ClientID: "cid", ClientSecret: "cs"},
			tokenURL: "https://login.microsoftonline.com/contoso/oauth2/v2.0/token",
			scope:    "https://graph.microsoft.com/.default",
		},
		{
			name: "national cloud",
			cfg: Config{
				TenantID:  "contoso",
				Authority: "https://login.microsoftonline.us/",
				Endpoint:  "https://graph.microsoft.us/",
			},
			tokenURL: "https://login.microsoftonline.us/contoso/oauth2/v2.0/token",
			scope:    "https://graph.microsoft.us/.default",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			creds := tt.cfg.credentials()
			if creds.tokenURL != tt.tokenURL {
				t.Errorf("tokenURL: got %q, want %q", creds.tokenURL, tt.tokenURL)
			}
			if creds.scope != tt.scope {
				t.Errorf("scope: got %q, want %q", creds.scope, tt.scope)
			}
		})
	}
}

func TestTokenCache_AcquiresToken(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}

		want := map[string]string{
			"grant_type":    "client_credentials",
			"client_id":     "cid",
			"client_secret": "csecret",
			"scope":         "https://graph.microsoft.com/.default",
		}
		for key, value := range want {
			if got := r.FormValue(key); got != value {
				t.Errorf("%s: got %q, want %q", key, got, value)
			}
		}

		json.NewEncoder(w).Encode(tokenResponse{AccessToken: "access", ExpiresIn: 3600})
	}))
	defer server.Close()

	token, err := newTokenCache(testCredentials(server.URL), server.Client()).Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "access" {
		t.Errorf("token: got %q, want %q", token, "access")
	}
}

func TestTokenCache_Expiry(t *testing.T) {
	t.Parallel()

	server, calls := newTokenEndpoint(t, 3600)
	tc := newTokenCache(testCredentials(server.URL), server.Client())

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tc.now = func() time.Time { return now }

	first, err := tc.Token(context.Background())
	if err != nil {
		t.Fatalf("first call error: %v", err)
	}

	// Still inside the lifetime minus the expiry buffer.
	now = now.Add(50 * time.Minute)
	second, err := tc.Token(context.Background())
	if err != nil {
		t.Fatalf("second call error: %v", err)
	}
	if second != first || calls.Load() != 1 {
		t.Errorf("expected cached token, got %q after %d calls", second, calls.Load())
	}

	now = now.Add(6 * time.Minute)
	third, err := tc.Token(context.Background())
	if err != nil {
		t.Fatalf("third call error: %v", err)
	}
	if third != "token-2" || calls.Load() != 2 {
		t.Errorf("expected refreshed token-2, got %q after %d calls", third, calls.Load())
	}
}

func TestTokenCache_ForceRefresh(t *testing.T) {
	t.Parallel()

	server, calls := newTokenEndpoint(t, 3600)
	tc := newTokenCache(testCredentials(server.URL), server.Client())

	if _, err := tc.Token(context.Background()); err != nil {
		t.Fatalf("first call error: %v", err)
	}

	token, err := tc.ForceRefresh(context.Background())
	if err != nil {
		t.Fatalf("force refresh error: %v", err)
	}
	if token != "token-2" {
		t.Errorf("token: got %q, want %q", token, "token-2")
	}
	if calls.Load() != 2 {
		t.Errorf("server call count: got %d, want 2", calls.Load())
	}
}

func TestTokenCache_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	server, calls := newTokenEndpoint(t, 3600)
	tc := newTokenCache(testCredentials(server.URL), server.Client())

	const goroutines = 10
	var wg sync.WaitGroup
	tokens := make([]string, goroutines)
	errs := make([]error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			tokens[idx], errs[idx] = tc.Token(context.Background())
		}(i)
	}
	wg.Wait()

	for i := range tokens {
		if errs[i] != nil {
			t.Errorf("goroutine %d error: %v", i, errs[i])
		}
		if tokens[i] != "token-1" {
			t.Errorf("goroutine %d token: got %q, want %q", i, tokens[i], "token-1")
		}
	}
	if calls.Load() != 1 {
		t.Errorf("server call count: got %d, want 1", calls.Load())
	}
}

func TestTokenCache_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error": "internal server error"}`))
			},
		},
		{
			name: "empty access token",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(tokenResponse{ExpiresIn: 3600})
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("not json"))
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(tt.handler)
			defer server.Close()

			if _, err := newTokenCache(testCredentials(server.URL), server.Client()).Token(context.Background()); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestTokenCache_CancelledContext(t *testing.T) {
	t.Parallel()

	server, calls := newTokenEndpoint(t, 3600)
	tc := newTokenCache(testCredentials(server.URL), server.Client())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := tc.Token(ctx); err == nil {
		t.Fatal("expected error for cancelled context, got nil")
	}
	if calls.Load() != 0 {
		t.Errorf("token endpoint calls: got %d, want 0", calls.Load())
	}
}
