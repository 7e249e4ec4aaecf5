// Package stdout implements a Transport that prints announcements to standard output.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shineum/release-announcer/internal/mail"
)

const separator = "========================================\n"

// Transport prints announcements in a human-readable format.
type Transport struct {
	// writer is the output destination, defaulting to os.Stdout.
	writer io.Writer
}

// New creates a new stdout Transport that writes to os.Stdout.
func New() *Transport {
	return &Transport{writer: os.Stdout}
}

// NewWithWriter creates a new stdout Transport that writes to the given writer.
// This is useful for testing.
func NewWithWriter(w io.Writer) *Transport {
	return &Transport{writer: w}
}

// Send prints the announcement. Account settings are shown without the
// password.
func (t *Transport) Send(_ context.Context, opts *mail.Options) error {
	var b strings.Builder

	b.WriteString(separator)
	fmt.Fprintf(&b, "From: %s\n", opts.From)
	fmt.Fprintf(&b, "To: %s\n", opts.Recipients())
	fmt.Fprintf(&b, "Subject: %s\n", opts.Subject)

	if opts.Server != "" {
		server := opts.Server
		if opts.Port != "" {
			server += ":" + opts.Port
		}
		if opts.IsSecure() {
			server += " (tls)"
		}
		fmt.Fprintf(&b, "Server: %s\n", server)
	}

	b.WriteString("Body:\n")
	b.WriteString(strings.TrimRight(opts.Message, "\n") + "\n")
	b.WriteString(separator)

	if _, err := io.WriteString(t.writer, b.String()); err != nil {
		return fmt.Errorf("failed to write announcement: %w", err)
	}
	return nil
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "stdout"
}
