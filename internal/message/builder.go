// Package message builds the announcement body, either from a message file
// or from named parts assembled by a Generator.
package message

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// LiteralPrefix marks a part as literal content rather than a part name.
const LiteralPrefix = "file://"

// DefaultParts is the part list used when none is configured.
var DefaultParts = []string{"message", "description", "resources", "notes", "changes"}

// Part is one segment of a generated announcement.
type Part struct {
	Name    string
	Literal bool
}

// ParsePart interprets a configured part entry.
func ParsePart(raw string) Part {
	if rest, ok := strings.CutPrefix(raw, LiteralPrefix); ok {
		return Part{Name: rest, Literal: true}
	}
	return Part{Name: raw}
}

// Generator assembles announcement text from parts. Separators and headers
// are up to the implementation.
type Generator interface {
	Announcement(parts []Part) (string, error)
}

// Builder produces the announcement body and caches it after the first
// successful build. Changing File or Parts afterwards has no effect until
// Reset is called.
type Builder struct {
	File  string
	Parts []string

	gen    Generator
	logger *slog.Logger

	cached *string
}

// NewBuilder creates a Builder. A nil parts slice selects DefaultParts.
func NewBuilder(file string, parts []string, gen Generator) *Builder {
	if parts == nil {
		parts = append([]string(nil), DefaultParts...)
	}
	return &Builder{
		File:   file,
		Parts:  parts,
		gen:    gen,
		logger: slog.Default(),
	}
}

// WithLogger sets the logger used for fallback diagnostics.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	if l != nil {
		b.logger = l
	}
	return b
}

// Message returns the announcement body, building it on first use.
func (b *Builder) Message() (string, error) {
	if b.cached != nil {
		return *b.cached, nil
	}

	msg, err := b.build()
	if err != nil {
		return "", err
	}
	b.cached = &msg
	return msg, nil
}

// Cached reports whether a message has already been built.
func (b *Builder) Cached() bool {
	return b.cached != nil
}

// Reset drops the cached message so the next call to Message rebuilds it.
func (b *Builder) Reset() {
	b.cached = nil
}

func (b *Builder) build() (string, error) {
	if b.File != "" {
		path, err := firstMatch(b.File)
		if err != nil {
			return "", err
		}
		if path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return "", fmt.Errorf("failed to read message file: %w", err)
			}
			return string(data), nil
		}
		b.logger.Warn("message file not found, falling back to parts", "file", b.File)
	}

	if b.gen == nil {
		return "", fmt.Errorf("no message file and no announcement generator configured")
	}

	parts := make([]Part, 0, len(b.Parts))
	for _, raw := range b.Parts {
		parts = append(parts, ParsePart(raw))
	}

	msg, err := b.gen.Announcement(parts)
	if err != nil {
		return "", fmt.Errorf("failed to generate announcement: %w", err)
	}
	return msg, nil
}

// firstMatch expands pattern and returns the first existing path, or an
// empty string when nothing matches.
func firstMatch(pattern string) (string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid message file pattern %q: %w", pattern, err)
	}
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && !info.IsDir() {
			return m, nil
		}
	}
	return "", nil
}
