// Package smtp implements a Transport that delivers announcements to an SMTP
// server.
package smtp

import (
	"context"
	"fmt"
	"log/slog"
	netsmtp "net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"github.com/shineum/release-announcer/internal/mail"
	"github.com/shineum/release-announcer/internal/settings"
	tlsconfig "github.com/shineum/release-announcer/internal/tls"
)

// Supported values of the login setting. Any other value lets the client
// pick a mechanism the server advertises.
const (
	LoginPlain   = "plain"
	LoginLogin   = "login"
	LoginCRAMMD5 = "cram_md5"
)

// Transport sends each announcement over a fresh SMTP connection built from
// the announcement's account settings.
type Transport struct {
	tls tlsconfig.Options
	now func() time.Time
	// send delivers a composed message, defaulting to DialAndSend.
	send func(d *gomail.Dialer, m *gomail.Message) error
}

// New creates an SMTP Transport. The server name in tlsOpts is filled in
// from each announcement.
func New(tlsOpts tlsconfig.Options) *Transport {
	return &Transport{
		tls: tlsOpts,
		now: time.Now,
		send: func(d *gomail.Dialer, m *gomail.Message) error {
			return d.DialAndSend(m)
		},
	}
}

// Send composes a plain-text message and delivers it.
func (t *Transport) Send(ctx context.Context, opts *mail.Options) error {
	if opts.Server == "" {
		return fmt.Errorf("no SMTP server configured")
	}
	if opts.From == "" {
		return fmt.Errorf("SMTP requires a from address")
	}
	if len(opts.To) == 0 {
		return fmt.Errorf("no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dialer, err := t.dialer(opts)
	if err != nil {
		return err
	}
	msg := t.message(opts)

	slog.Debug("sending announcement over SMTP",
		"server", dialer.Host,
		"port", dialer.Port,
		"ssl", dialer.SSL,
		"recipients", len(opts.To),
	)

	if err := t.send(dialer, msg); err != nil {
		return fmt.Errorf("failed to send via %s:%d: %w", dialer.Host, dialer.Port, err)
	}

	slog.Info("announcement sent over SMTP",
		"server", dialer.Host,
		"message_id", msg.GetHeader("Message-ID"),
	)
	return nil
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "smtp"
}

func (t *Transport) dialer(opts *mail.Options) (*gomail.Dialer, error) {
	port, err := settings.Settings{Port: opts.Port, Secure: opts.Secure}.PortNumber()
	if err != nil {
		return nil, err
	}

	tlsOpts := t.tls
	tlsOpts.ServerName = opts.Server
	tlsCfg, err := tlsconfig.ClientConfig(tlsOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to build TLS config: %w", err)
	}

	// NewDialer enables implicit TLS for port 465; an explicit flag wins.
	d := gomail.NewDialer(opts.Server, port, opts.Account, opts.Password)
	if opts.Secure != nil {
		d.SSL = *opts.Secure
	}
	d.TLSConfig = tlsCfg
	if opts.Domain != "" {
		d.LocalName = opts.Domain
	}
	if opts.Account != "" {
		d.Auth = authFor(opts)
	}
	return d, nil
}

// authFor maps the login setting onto an auth mechanism. A nil result lets
// gomail negotiate from the server's advertised mechanisms.
func authFor(opts *mail.Options) netsmtp.Auth {
	switch strings.ToLower(opts.Login) {
	case LoginPlain:
		return netsmtp.PlainAuth("", opts.Account, opts.Password, opts.Server)
	case LoginLogin:
		return LoginAuth(opts.Account, opts.Password, opts.Server)
	case LoginCRAMMD5:
		return netsmtp.CRAMMD5Auth(opts.Account, opts.Password)
	default:
		return nil
	}
}

func (t *Transport) message(opts *mail.Options) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", opts.From)
	m.SetHeader("To", opts.To...)
	m.SetHeader("Subject", opts.Subject)
	m.SetHeader("Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), messageDomain(opts)))
	m.SetDateHeader("Date", t.now())
	m.SetBody("text/plain", opts.Message)
	return m
}

// messageDomain picks the right-hand side of the Message-ID.
func messageDomain(opts *mail.Options) string {
	if opts.Domain != "" {
		return opts.Domain
	}
	if i := strings.LastIndex(opts.From, "@"); i >= 0 && i < len(opts.From)-1 {
		return strings.Trim(opts.From[i+1:], "> ")
	}
	return "localhost"
}
