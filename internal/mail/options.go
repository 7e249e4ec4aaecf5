// Package mail defines the options handed to a mail transport and the
// transport interface itself.
package mail

import (
	"context"
	"strings"
)

// Options is the finalized set of values for one announcement email.
// Empty strings and a nil Secure mean "unset".
type Options struct {
	Message  string
	To       []string
	From     string
	Subject  string
	Server   string
	Port     string
	Account  string
	Domain   string
	Login    string
	Secure   *bool
	Password string
}

// Recipients returns the recipients joined the way they appear in headers
// and reports.
func (o *Options) Recipients() string {
	return strings.Join(o.To, ", ")
}

// Map flattens the options into a key/value mapping with unset fields
// removed. The password is never included.
func (o *Options) Map() map[string]any {
	m := map[string]any{}

	set := func(key, value string) {
		if value != "" {
			m[key] = value
		}
	}

	set("message", o.Message)
	if len(o.To) > 0 {
		m["to"] = o.Recipients()
	}
	set("from", o.From)
	set("subject", o.Subject)
	set("server", o.Server)
	set("port", o.Port)
	set("account", o.Account)
	set("domain", o.Domain)
	set("login", o.Login)
	if o.Secure != nil {
		m["secure"] = *o.Secure
	}

	return m
}

// IsSecure reports whether implicit TLS was requested.
func (o *Options) IsSecure() bool {
	return o.Secure != nil && *o.Secure
}

// Transport is the interface that mail delivery backends must implement.
type Transport interface {
	// Send delivers the announcement described by opts.
	Send(ctx context.Context, opts *Options) error

	// Name returns the human-readable name of this transport.
	Name() string
}
