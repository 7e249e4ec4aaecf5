package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func boolPtr(b bool) *bool { return &b }

var fullEnv = map[string]string{
	EnvServer:   "smtp.env.com",
	EnvFrom:     "from@env.com",
	EnvAccount:  "account@env.com",
	EnvPassword: "env-secret",
	EnvPort:     "2525",
	EnvDomain:   "env.com",
	EnvLogin:    "plain",
	EnvSecure:   "true",
}

func TestResolve_ExplicitWins(t *testing.T) {
	t.Parallel()

	explicit := Settings{
		Server:   "smtp.example.com",
		From:     "me@example.com",
		Account:  "acct@example.com",
		Password: "pw",
		Port:     "587",
		Domain:   "example.com",
		Login:    "login",
		Secure:   boolPtr(false),
	}

	got := Resolve(explicit, envMap(fullEnv), false)

	assert.Equal(t, explicit, got)
}

func TestResolve_FromEnvironment(t *testing.T) {
	t.Parallel()

	got := Resolve(Settings{}, envMap(fullEnv), false)

	assert.Equal(t, "smtp.env.com", got.Server)
	assert.Equal(t, "env-secret", got.Password)
	assert.Equal(t, "2525", got.Port)
	assert.Equal(t, "env.com", got.Domain)
	assert.Equal(t, "plain", got.Login)
	require.NotNil(t, got.Secure)
	assert.True(t, *got.Secure)
}

func TestResolve_SkipEnvironment(t *testing.T) {
	t.Parallel()

	got := Resolve(Settings{Server: "explicit"}, envMap(fullEnv), true)

	assert.Equal(t, Settings{Server: "explicit"}, got)
}

func TestResolve_FromAndAccountCrossFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		env         map[string]string
		wantFrom    string
		wantAccount string
	}{
		{
			name:        "both set",
			env:         map[string]string{EnvFrom: "from@env.com", EnvAccount: "account@env.com"},
			wantFrom:    "account@env.com",
			wantAccount: "from@env.com",
		},
		{
			name:        "only from variable",
			env:         map[string]string{EnvFrom: "from@env.com"},
			wantFrom:    "from@env.com",
			wantAccount: "from@env.com",
		},
		{
			name:        "only account variable",
			env:         map[string]string{EnvAccount: "account@env.com"},
			wantFrom:    "account@env.com",
			wantAccount: "account@env.com",
		},
		{
			name:        "empty value is skipped",
			env:         map[string]string{EnvAccount: "", EnvFrom: "from@env.com"},
			wantFrom:    "from@env.com",
			wantAccount: "from@env.com",
		},
		{
			name: "neither set",
			env:  map[string]string{},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Resolve(Settings{}, envMap(tt.env), false)
			assert.Equal(t, tt.wantFrom, got.From)
			assert.Equal(t, tt.wantAccount, got.Account)
		})
	}
}

func TestResolve_InvalidSecureLeftUnset(t *testing.T) {
	t.Parallel()

	got := Resolve(Settings{}, envMap(map[string]string{EnvSecure: "bogus"}), false)

	assert.Nil(t, got.Secure)
}

func TestResolve_DefaultsToProcessEnvironment(t *testing.T) {
	t.Setenv(EnvServer, "smtp.process.com")

	got := Resolve(Settings{}, nil, false)

	assert.Equal(t, "smtp.process.com", got.Server)
}

func TestPortNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		s       Settings
		want    int
		wantErr bool
	}{
		{name: "unset", s: Settings{}, want: DefaultPort},
		{name: "unset secure", s: Settings{Secure: boolPtr(true)}, want: DefaultSecurePort},
		{name: "explicit", s: Settings{Port: "2525"}, want: 2525},
		{name: "not a number", s: Settings{Port: "smtp"}, wantErr: true},
		{name: "out of range", s: Settings{Port: "70000"}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.s.PortNumber()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSecure(t *testing.T) {
	t.Parallel()

	got, err := ParseSecure("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = ParseSecure("1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, *got)

	got, err = ParseSecure("false")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, *got)

	_, err = ParseSecure("maybe")
	assert.Error(t, err)
}
