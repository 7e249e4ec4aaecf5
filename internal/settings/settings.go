// Package settings resolves email account settings from explicit values and
// EMAIL_* environment variables.
package settings

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cast"
)

// Environment variable names consulted during resolution.
const (
	EnvServer   = "EMAIL_SERVER"
	EnvFrom     = "EMAIL_FROM"
	EnvAccount  = "EMAIL_ACCOUNT"
	EnvPassword = "EMAIL_PASSWORD"
	EnvPort     = "EMAIL_PORT"
	EnvDomain   = "EMAIL_DOMAIN"
	EnvLogin    = "EMAIL_LOGIN"
	EnvSecure   = "EMAIL_SECURE"
)

// Default SMTP ports used when no port is configured.
const (
	DefaultPort       = 587
	DefaultSecurePort = 465
)

// Settings holds the email account settings. An empty string or a nil
// Secure means the field is unset.
type Settings struct {
	Server   string `yaml:"server"`
	From     string `yaml:"from"`
	Account  string `yaml:"account"`
	Password string `yaml:"password"`
	Port     string `yaml:"port"`
	Domain   string `yaml:"domain"`
	Login    string `yaml:"login"`
	Secure   *bool  `yaml:"secure"`
}

// LookupFunc looks up an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Resolve fills every unset field of explicit from the environment, unless
// skipEnv is set. Explicit values always win. The from and account fields
// consult each other's variable before their own.
func Resolve(explicit Settings, lookup LookupFunc, skipEnv bool) Settings {
	s := explicit
	if skipEnv {
		return s
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}

	fill := func(field *string, keys ...string) {
		if *field != "" {
			return
		}
		*field = firstEnv(lookup, keys...)
	}

	fill(&s.Server, EnvServer)
	fill(&s.From, EnvAccount, EnvFrom)
	fill(&s.Account, EnvFrom, EnvAccount)
	fill(&s.Password, EnvPassword)
	fill(&s.Port, EnvPort)
	fill(&s.Domain, EnvDomain)
	fill(&s.Login, EnvLogin)

	if s.Secure == nil {
		if v := firstEnv(lookup, EnvSecure); v != "" {
			b, err := cast.ToBoolE(v)
			if err != nil {
				slog.Debug("ignoring unparseable secure flag", "env", EnvSecure, "value", v)
			} else {
				s.Secure = &b
			}
		}
	}

	return s
}

// IsSecure reports whether implicit TLS was requested.
func (s Settings) IsSecure() bool {
	return s.Secure != nil && *s.Secure
}

// PortNumber returns the configured port as an integer, or the default port
// for the security mode when unset.
func (s Settings) PortNumber() (int, error) {
	if s.Port == "" {
		if s.IsSecure() {
			return DefaultSecurePort, nil
		}
		return DefaultPort, nil
	}

	port, err := cast.ToIntE(s.Port)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q", s.Port)
	}
	return port, nil
}

// ParseSecure converts a user-supplied secure flag such as "true", "1" or
// "no" into a tri-state value. An empty string yields nil.
func ParseSecure(v string) (*bool, error) {
	if v == "" {
		return nil, nil
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return nil, fmt.Errorf("invalid secure flag %q: %w", v, err)
	}
	return &b, nil
}

func firstEnv(lookup LookupFunc, keys ...string) string {
	for _, key := range keys {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
	}
	return ""
}
