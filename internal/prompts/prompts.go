// Package prompts holds the model prompts used by the classifier, the
// structurer, and the summarizer.
//
// Every prompt has an embedded default. A file named <name>.md in the
// configured prompts directory replaces the default for that prompt.
// Prompts are text/template documents rendered against Data.
package prompts

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// Name identifies a prompt.
type Name string

// Prompt names.
const (
	ClassifyAbstract Name = "classify_abstract"
	ClassifySnippet  Name = "classify_snippet"
	ClassifyFullText Name = "classify_full_text"
	Structure        Name = "structure"
	Summary          Name = "summary"
	BaseSummary      Name = "base_summary"
)

// All lists every prompt name.
var All = []Name{ClassifyAbstract, ClassifySnippet, ClassifyFullText, Structure, Summary, BaseSummary}

//go:embed templates/*.tmpl
var defaults embed.FS

// Data is the template input. Prompts use the subset of fields they need.
type Data struct {
	TargetTitle    string
	TargetAbstract string
	Title          string
	Abstract       string
	Snippet        string
	FullText       string
	Text           string
}

// Library is a parsed set of prompts. It is safe for concurrent use.
type Library struct {
	templates map[Name]*template.Template
	sources   map[Name]string
}

// Load parses every prompt, preferring dir/<name>.md over the embedded default.
// An empty dir or a missing directory uses only the defaults.
func Load(dir string) (*Library, error) {
	lib := &Library{
		templates: make(map[Name]*template.Template, len(All)),
		sources:   make(map[Name]string, len(All)),
	}

	for _, name := range All {
		text, source, err := readPrompt(dir, name)
		if err != nil {
			return nil, err
		}

		tmpl, err := template.New(string(name)).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parsing prompt %s from %s: %w", name, source, err)
		}
		lib.templates[name] = tmpl
		lib.sources[name] = source
	}

	return lib, nil
}

// Render executes the named prompt against data.
func (l *Library) Render(name Name, data Data) (string, error) {
	tmpl, ok := l.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", name)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("rendering prompt %s: %w", name, err)
	}
	return sb.String(), nil
}

// Source reports where the named prompt was loaded from: a file path, or "embedded".
func (l *Library) Source(name Name) string {
	return l.sources[name]
}

func readPrompt(dir string, name Name) (text, source string, err error) {
	if dir != "" {
		path := filepath.Join(dir, string(name)+".md")
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			return string(b), path, nil
		case !errors.Is(err, fs.ErrNotExist):
			return "", "", fmt.Errorf("reading prompt override %s: %w", path, err)
		}
	}

	b, err := defaults.ReadFile("templates/" + string(name) + ".tmpl")
	if err != nil {
		return "", "", fmt.Errorf("reading embedded prompt %s: %w", name, err)
	}
	return string(b), "embedded", nil
}
