package project

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shineum/release-announcer/internal/message"
)

// defaultChangeLogs are tried in order when Metadata.Changes is empty.
var defaultChangeLogs = []string{"HISTORY*", "CHANGELOG*", "CHANGES*"}

// Generator assembles announcements from project metadata. Relative paths
// are resolved against Dir.
type Generator struct {
	Meta   *Metadata
	Dir    string
	Logger *slog.Logger
}

var _ message.Generator = (*Generator)(nil)

// NewGenerator creates a Generator rooted at dir.
func NewGenerator(meta *Metadata, dir string) *Generator {
	if meta == nil {
		meta = &Metadata{}
	}
	return &Generator{Meta: meta, Dir: dir, Logger: slog.Default()}
}

// Announcement builds the announcement text. Named parts come from the
// metadata; a literal part naming an existing file is replaced by that
// file's contents, any other literal is used as is. Empty sections are left
// out and the rest are separated by a blank line.
func (g *Generator) Announcement(parts []message.Part) (string, error) {
	sections := make([]string, 0, len(parts))

	for _, part := range parts {
		var (
			text string
			err  error
		)
		if part.Literal {
			text, err = g.literal(part.Name)
		} else {
			text, err = g.named(part.Name)
		}
		if err != nil {
			return "", err
		}

		text = strings.TrimSpace(text)
		if text != "" {
			sections = append(sections, text)
		}
	}

	return strings.Join(sections, "\n\n") + "\n", nil
}

func (g *Generator) named(name string) (string, error) {
	m := g.Meta
	switch name {
	case "message":
		if m.DisplayTitle() == "" {
			return "", nil
		}
		if m.Version == "" {
			return fmt.Sprintf("%s has been released.", m.DisplayTitle()), nil
		}
		return fmt.Sprintf("%s %s has been released.", m.DisplayTitle(), m.Version), nil
	case "summary":
		return m.Summary, nil
	case "description":
		return m.Description, nil
	case "resources":
		return formatResources(m.Resources), nil
	case "notes":
		return m.Notes, nil
	case "changes":
		return g.changes()
	default:
		g.logger().Warn("skipping unknown announcement part", "part", name)
		return "", nil
	}
}

func (g *Generator) literal(text string) (string, error) {
	path := g.path(text)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return text, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read announcement part %q: %w", text, err)
	}
	return string(data), nil
}

// changes returns the most recent section of the change log.
func (g *Generator) changes() (string, error) {
	patterns := defaultChangeLogs
	if g.Meta.Changes != "" {
		patterns = []string{g.Meta.Changes}
	}

	for _, pattern := range patterns {
		matches, err := filepath.Glob(g.path(pattern))
		if err != nil {
			return "", fmt.Errorf("invalid change log pattern %q: %w", pattern, err)
		}
		for _, path := range matches {
			info, err := os.Stat(path)
			if err != nil || info.IsDir() {
				continue
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return "", fmt.Errorf("failed to read change log: %w", err)
			}
			return latestRelease(string(data)), nil
		}
	}

	g.logger().Debug("no change log found", "patterns", patterns)
	return "", nil
}

func (g *Generator) path(p string) string {
	if filepath.IsAbs(p) || g.Dir == "" {
		return p
	}
	return filepath.Join(g.Dir, p)
}

func (g *Generator) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

// formatResources renders resources as "name: url" lines sorted by name.
func formatResources(resources map[string]string) string {
	if len(resources) == 0 {
		return ""
	}

	names := make([]string, 0, len(resources))
	for name := range resources {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "* %s: %s\n", name, resources[name])
	}
	return b.String()
}

// latestRelease extracts the most recent section of a change log. Headings
// are Markdown ("#") or RDoc ("=") lines; the release level is the highest
// level that occurs more than once, so a document title above the releases
// is skipped. A log without headings is returned whole.
func latestRelease(log string) string {
	lines := strings.Split(log, "\n")

	counts := map[int]int{}
	for _, line := range lines {
		if l := headingLevel(line); l > 0 {
			counts[l]++
		}
	}
	if len(counts) == 0 {
		return log
	}

	level := 0
	for l, n := range counts {
		if n > 1 && (level == 0 || l < level) {
			level = l
		}
	}
	if level == 0 {
		for l := range counts {
			if level == 0 || l < level {
				level = l
			}
		}
	}

	var (
		b       strings.Builder
		started bool
	)
	for _, line := range lines {
		l := headingLevel(line)
		if !started {
			if l != level {
				continue
			}
			started = true
		} else if l > 0 && l <= level {
			break
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func headingLevel(line string) int {
	if line == "" || (line[0] != '#' && line[0] != '=') {
		return 0
	}
	marker := line[0]
	n := 0
	for n < len(line) && line[n] == marker {
		n++
	}
	if n < len(line) && line[n] != ' ' {
		return 0
	}
	return n
}
