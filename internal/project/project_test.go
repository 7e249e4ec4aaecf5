package project

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shineum/release-announcer/internal/message"
)

const metadataYAML = `
name: foo
title: Foo
version: 1.0.0
summary: A tiny foo library.
description: |
  Foo does one thing and does it well.
resources:
  home: https://foo.example.com
  code: https://github.com/example/foo
notes: Please upgrade.
`

const changeLog = `# History

## 1.0.0 / 2026-10-01

* First stable release.
* Faster bars.

## 0.9.0 / 2026-09-01

* Beta.
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMetadata(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, DefaultMetadataFile, metadataYAML)

	meta, err := LoadMetadata(path)
	require.NoError(t, err)

	assert.Equal(t, "foo", meta.Name)
	assert.Equal(t, "Foo", meta.Title)
	assert.Equal(t, "1.0.0", meta.Version)
	assert.Equal(t, "https://foo.example.com", meta.Resources["home"])
}

func TestLoadMetadata_Missing(t *testing.T) {
	t.Parallel()

	_, err := LoadMetadata(filepath.Join(t.TempDir(), "missing.yaml"))

	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestLoadMetadata_Invalid(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "bad.yaml", "{{invalid yaml")

	_, err := LoadMetadata(path)
	assert.Error(t, err)
}

func TestRenderSubject(t *testing.T) {
	t.Parallel()

	meta := &Metadata{Name: "foo", Title: "Foo", Version: "1.0"}

	tests := []struct {
		name string
		tmpl string
		want string
	}{
		{name: "default", tmpl: "", want: "[ANN] Foo v1.0 released"},
		{name: "literal", tmpl: "Big news", want: "Big news"},
		{name: "sprig function", tmpl: "{{ .Name | upper }} {{ .Version }}", want: "FOO 1.0"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := meta.RenderSubject(tt.tmpl)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSubject(t *testing.T) {
	t.Parallel()

	meta := &Metadata{Name: "foo", Title: "Foo", Version: "1.0"}

	tests := []struct {
		name     string
		explicit string
		want     string
	}{
		{name: "default from metadata", explicit: "", want: "[ANN] Foo v1.0 released"},
		{name: "explicit", explicit: "Big news", want: "Big news"},
		{name: "explicit with braces", explicit: "[ANN] Foo {{beta}} v1.0 released", want: "[ANN] Foo {{beta}} v1.0 released"},
		{name: "explicit is not rendered", explicit: "{{ .Title }}", want: "{{ .Title }}"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := meta.Subject(tt.explicit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderSubject_TitleFallsBackToName(t *testing.T) {
	t.Parallel()

	got, err := (&Metadata{Name: "foo", Version: "2.0"}).RenderSubject("")
	require.NoError(t, err)

	assert.Equal(t, "[ANN] foo v2.0 released", got)
}

func TestRenderSubject_Errors(t *testing.T) {
	t.Parallel()

	meta := &Metadata{}

	_, err := meta.RenderSubject("{{ .Title ")
	assert.Error(t, err)

	_, err = meta.RenderSubject("{{ .Unknown }}")
	assert.Error(t, err)
}

func TestAnnouncement_DefaultParts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	meta, err := LoadMetadata(writeFile(t, dir, DefaultMetadataFile, metadataYAML))
	require.NoError(t, err)
	writeFile(t, dir, "HISTORY.md", changeLog)

	g := NewGenerator(meta, dir)
	parts := []message.Part{
		{Name: "message"}, {Name: "description"}, {Name: "resources"}, {Name: "notes"}, {Name: "changes"},
	}

	got, err := g.Announcement(parts)
	require.NoError(t, err)

	want := "Foo 1.0.0 has been released.\n\n" +
		"Foo does one thing and does it well.\n\n" +
		"* code: https://github.com/example/foo\n* home: https://foo.example.com\n\n" +
		"Please upgrade.\n\n" +
		"## 1.0.0 / 2026-10-01\n\n* First stable release.\n* Faster bars.\n"
	assert.Equal(t, want, got)
}

func TestAnnouncement_LiteralParts(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "README.md", "Read me first.\n")

	g := NewGenerator(&Metadata{}, dir)

	got, err := g.Announcement([]message.Part{
		{Name: "README.md", Literal: true},
		{Name: "Thanks to all contributors!", Literal: true},
	})
	require.NoError(t, err)

	assert.Equal(t, "Read me first.\n\nThanks to all contributors!\n", got)
}

func TestAnnouncement_SkipsUnknownAndEmpty(t *testing.T) {
	t.Parallel()

	g := NewGenerator(&Metadata{Title: "Foo", Version: "1.0", Notes: "n"}, t.TempDir())

	got, err := g.Announcement([]message.Part{
		{Name: "bogus"}, {Name: "description"}, {Name: "notes"}, {Name: "changes"},
	})
	require.NoError(t, err)

	assert.Equal(t, "n\n", got)
}

func TestAnnouncement_CustomChangeLogGlob(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "RELEASES.rdoc", "= Release 2.0\n\nNew things.\n\n= Release 1.0\n\nOld things.\n")

	g := NewGenerator(&Metadata{Changes: "RELEASES*"}, dir)

	got, err := g.Announcement([]message.Part{{Name: "changes"}})
	require.NoError(t, err)

	assert.Equal(t, "= Release 2.0\n\nNew things.\n", got)
}

func TestLatestRelease(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		log  string
		want string
	}{
		{
			name: "no headings",
			log:  "just text\n",
			want: "just text\n",
		},
		{
			name: "nested headings kept",
			log:  "## 1.0\n### Fixed\n* a\n## 0.9\n* b\n",
			want: "## 1.0\n### Fixed\n* a\n",
		},
		{
			name: "hashtag is not a heading",
			log:  "## 1.0\n#notaheading\n## 0.9\n",
			want: "## 1.0\n#notaheading\n",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, latestRelease(tt.log))
		})
	}
}
