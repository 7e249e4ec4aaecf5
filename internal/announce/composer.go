// Package announce composes a release announcement and takes part in the
// prepare and promote stations of the release pipeline.
package announce

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/shineum/release-announcer/internal/confirm"
	"github.com/shineum/release-announcer/internal/mail"
	"github.com/shineum/release-announcer/internal/message"
	"github.com/shineum/release-announcer/internal/pipeline"
	"github.com/shineum/release-announcer/internal/settings"
)

// Confirmer asks whether the announcement should go out.
type Confirmer interface {
	Confirm(recipients []string, force bool, preview confirm.Preview) (confirm.Decision, error)
}

// Config holds the announcement values chosen by the user.
type Config struct {
	Recipients []string
	Subject    string

	// Settings holds the explicitly configured account settings; unset
	// fields are filled from the environment unless SkipEnv is set.
	Settings settings.Settings
	SkipEnv  bool

	Force bool
	Trial bool
}

// Composer implements pipeline.Hooks for the announcement email.
type Composer struct {
	cfg       Config
	builder   *message.Builder
	gate      Confirmer
	transport mail.Transport
	lookup    settings.LookupFunc
	out       io.Writer
	logger    *slog.Logger

	resolved *settings.Settings
	approved *bool
}

var _ pipeline.Hooks = (*Composer)(nil)

// Option customizes a Composer.
type Option func(*Composer)

// WithLookup replaces the environment lookup used for settings resolution.
func WithLookup(lookup settings.LookupFunc) Option {
	return func(c *Composer) { c.lookup = lookup }
}

// WithOutput sets where reports are written. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(c *Composer) { c.out = w }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Composer) { c.logger = l }
}

// New creates a Composer. transport may be nil when only trial runs are
// performed.
func New(cfg Config, builder *message.Builder, gate Confirmer, transport mail.Transport, opts ...Option) *Composer {
	c := &Composer{
		cfg:       cfg,
		builder:   builder,
		gate:      gate,
		transport: transport,
		lookup:    os.LookupEnv,
		out:       os.Stdout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Prepare asks for confirmation when the pipeline is headed for the promote
// station. Any other destination is skipped.
func (c *Composer) Prepare(_ context.Context, destination pipeline.Station) (pipeline.Outcome, error) {
	if destination != pipeline.StationPromote {
		return pipeline.Skipped, nil
	}

	s := c.Settings()
	preview := confirm.Preview{
		From:    s.From,
		Subject: c.cfg.Subject,
		Body:    c.builder.Message,
	}

	decision, err := c.gate.Confirm(c.cfg.Recipients, c.cfg.Force, preview)
	if err != nil {
		return pipeline.Skipped, fmt.Errorf("confirmation failed: %w", err)
	}

	switch decision {
	case confirm.Yes:
		c.setApproved(true)
		c.logger.Debug("announcement approved", "forced", c.cfg.Force)
		return pipeline.Approved, nil
	case confirm.No:
		c.setApproved(false)
		c.logger.Info("announcement declined")
		return pipeline.Rejected, nil
	default:
		// No recipients and no force: nothing was decided, which halts like a decline.
		c.logger.Info("announcement not confirmed", "reason", "no recipients")
		return pipeline.Rejected, nil
	}
}

// Promote sends the announcement, or in trial mode reports what would be
// sent. Sending without prior approval is rejected.
func (c *Composer) Promote(ctx context.Context) (pipeline.Outcome, error) {
	if len(c.cfg.Recipients) == 0 {
		c.report("No recipients given.")
		return pipeline.NoRecipients, nil
	}

	opts, err := c.MailOptions()
	if err != nil {
		return pipeline.Skipped, err
	}

	if c.cfg.Trial {
		c.report(fmt.Sprintf("email '%s' to %s", opts.Subject, opts.Recipients()))
		return pipeline.Reported, nil
	}

	if !c.Approved() {
		c.logger.Error("refusing to send unapproved announcement")
		return pipeline.Rejected, nil
	}

	if c.transport == nil {
		return pipeline.Skipped, fmt.Errorf("no mail transport configured")
	}

	c.logger.Info("sending announcement",
		"transport", c.transport.Name(),
		"to", opts.Recipients(),
		"subject", opts.Subject,
	)
	if err := c.transport.Send(ctx, opts); err != nil {
		return pipeline.Skipped, fmt.Errorf("failed to send announcement via %s: %w", c.transport.Name(), err)
	}
	return pipeline.Sent, nil
}

// Approved reports whether the announcement was approved at prepare.
func (c *Composer) Approved() bool {
	return c.approved != nil && *c.approved
}

// Settings returns the resolved account settings, resolving them on first
// use.
func (c *Composer) Settings() settings.Settings {
	if c.resolved == nil {
		s := settings.Resolve(c.cfg.Settings, c.lookup, c.cfg.SkipEnv)
		c.resolved = &s
	}
	return *c.resolved
}

// MailOptions flattens the announcement into the options handed to the
// transport. Building it evaluates the message.
func (c *Composer) MailOptions() (*mail.Options, error) {
	body, err := c.builder.Message()
	if err != nil {
		return nil, err
	}

	s := c.Settings()
	return &mail.Options{
		Message:  body,
		To:       append([]string(nil), c.cfg.Recipients...),
		From:     s.From,
		Subject:  c.cfg.Subject,
		Server:   s.Server,
		Port:     s.Port,
		Account:  s.Account,
		Domain:   s.Domain,
		Login:    s.Login,
		Secure:   s.Secure,
		Password: s.Password,
	}, nil
}

// Preview writes the announcement headers and body to w.
func (c *Composer) Preview(w io.Writer) error {
	return confirm.Print(w, c.cfg.Recipients, confirm.Preview{
		From:    c.Settings().From,
		Subject: c.cfg.Subject,
		Body:    c.builder.Message,
	})
}

func (c *Composer) setApproved(v bool) {
	c.approved = &v
}

func (c *Composer) report(msg string) {
	fmt.Fprintln(c.out, msg)
}
