// Package targets loads the list of target papers whose citations are tracked.
//
// The registry is a JSON (papers.json) or YAML file holding a list of
// {id, alias} records. Aliases become directory names, so unsafe
// characters are replaced and an empty alias falls back to the id.
package targets

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var unsafeAliasChars = regexp.MustCompile(`[\\/*?:"<>|]`)

// Target is one tracked paper.
type Target struct {
	// ID is a Semantic Scholar paper id, an arXiv id, or any id form the provider accepts.
	ID string `json:"id" yaml:"id" validate:"required"`
	// Alias names the target's summary directory.
	Alias string `json:"alias" yaml:"alias" validate:"omitempty,max=200"`
}

type registry struct {
	Targets []Target `validate:"dive"`
}

// Load reads and validates the registry at path. The format follows the
// file extension: .yaml or .yml for YAML, anything else JSON.
func Load(path string) ([]Target, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read targets file: %w", err)
	}
	return Parse(data, filepath.Ext(path))
}

// Parse decodes a registry in the format named by ext.
func Parse(data []byte, ext string) ([]Target, error) {
	var list []Target
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("parse targets yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("parse targets json: %w", err)
		}
	}

	for i := range list {
		list[i].ID = strings.TrimSpace(list[i].ID)
		list[i].Alias = strings.TrimSpace(list[i].Alias)
	}

	if err := validator.New().Struct(registry{Targets: list}); err != nil {
		return nil, fmt.Errorf("invalid targets: %w", err)
	}

	seen := make(map[string]struct{}, len(list))
	for i := range list {
		if _, dup := seen[list[i].ID]; dup {
			return nil, fmt.Errorf("invalid targets: duplicate id %q", list[i].ID)
		}
		seen[list[i].ID] = struct{}{}

		if list[i].Alias == "" {
			list[i].Alias = list[i].ID
		}
		list[i].Alias = SanitizeAlias(list[i].Alias)
	}

	return list, nil
}

// SanitizeAlias replaces characters unsafe in file paths with underscores.
// An alias made only of dots would name the current or parent directory, so
// its dots become underscores too.
func SanitizeAlias(alias string) string {
	safe := unsafeAliasChars.ReplaceAllString(alias, "_")
	if strings.Trim(safe, ".") == "" {
		return strings.Repeat("_", len(safe))
	}
	return safe
}
