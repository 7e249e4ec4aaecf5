// Package project loads release metadata and assembles announcements from
// it.
package project

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"gopkg.in/yaml.v3"
)

// DefaultMetadataFile is the metadata file looked up in the project root.
const DefaultMetadataFile = ".project.yaml"

// DefaultSubject is the subject template used when none is configured.
const DefaultSubject = "[ANN] {{ .Title }} v{{ .Version }} released"

// Metadata describes the project being released.
type Metadata struct {
	Name        string            `yaml:"name"`
	Title       string            `yaml:"title"`
	Version     string            `yaml:"version"`
	Summary     string            `yaml:"summary"`
	Description string            `yaml:"description"`
	Resources   map[string]string `yaml:"resources"`
	Notes       string            `yaml:"notes"`

	// Changes is a glob naming the change log. When empty the usual
	// HISTORY/CHANGELOG/CHANGES files are tried.
	Changes string `yaml:"changes"`
}

// LoadMetadata reads metadata from a YAML file. The returned error wraps
// fs.ErrNotExist when the file is missing.
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project metadata: %w", err)
	}

	meta := &Metadata{}
	if err := yaml.Unmarshal(data, meta); err != nil {
		return nil, fmt.Errorf("failed to parse project metadata: %w", err)
	}
	return meta, nil
}

// DisplayTitle returns the title, falling back to the name.
func (m *Metadata) DisplayTitle() string {
	if m.Title != "" {
		return m.Title
	}
	return m.Name
}

// Subject returns the announcement subject. An explicit subject is used as
// given; otherwise DefaultSubject is rendered from the metadata.
func (m *Metadata) Subject(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	return m.RenderSubject(DefaultSubject)
}

// RenderSubject expands a subject template against the metadata. Templates
// have the sprig function set available.
func (m *Metadata) RenderSubject(tmpl string) (string, error) {
	if tmpl == "" {
		tmpl = DefaultSubject
	}

	t, err := template.New("subject").Funcs(sprig.TxtFuncMap()).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("invalid subject template: %w", err)
	}

	data := map[string]any{
		"Title":   m.DisplayTitle(),
		"Name":    m.Name,
		"Version": m.Version,
		"Summary": m.Summary,
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render subject: %w", err)
	}
	return buf.String(), nil
}
