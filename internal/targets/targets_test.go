package targets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTargets(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_JSON(t *testing.T) {
	path := writeTargets(t, "papers.json", `[
		{"id": "1706.03762", "alias": "Attention: Is All/You Need?"},
		{"id": "204e3073870fae3d05bcbc2f6a8e263d9b72e776"}
	]`)

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []Target{
		{ID: "1706.03762", Alias: "Attention_ Is All_You Need_"},
		{ID: "204e3073870fae3d05bcbc2f6a8e263d9b72e776", Alias: "204e3073870fae3d05bcbc2f6a8e263d9b72e776"},
	}, got)
}

func TestLoad_YAML(t *testing.T) {
	path := writeTargets(t, "targets.yml", `
- id: "1706.03762"
  alias: transformer
- id: " 1512.03385 "
`)

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []Target{
		{ID: "1706.03762", Alias: "transformer"},
		{ID: "1512.03385", Alias: "1512.03385"},
	}, got)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"missing id", "papers.json", `[{"alias": "x"}]`, "invalid targets"},
		{"blank id", "papers.json", `[{"id": "  "}]`, "invalid targets"},
		{"duplicate id", "papers.json", `[{"id": "a"}, {"id": "a"}]`, "duplicate id"},
		{"malformed json", "papers.json", `{`, "parse targets json"},
		{"malformed yaml", "papers.yaml", "- id: [", "parse targets yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTargets(t, tt.file, tt.content))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorContains(t, err, "read targets file")
}

func TestLoad_Empty(t *testing.T) {
	got, err := Load(writeTargets(t, "papers.json", `[]`))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSanitizeAlias(t *testing.T) {
	assert.Equal(t, "a_b_c_d_e_f_g_h_i_", SanitizeAlias(`a\b/c*d?e:f"g<h>i|`))
	assert.Equal(t, "plain-alias", SanitizeAlias("plain-alias"))
	assert.Equal(t, "v1.2", SanitizeAlias("v1.2"))
	assert.Equal(t, "_", SanitizeAlias("."))
	assert.Equal(t, "__", SanitizeAlias(".."))
	assert.Equal(t, "._", SanitizeAlias("./"))
	assert.Equal(t, "_._", SanitizeAlias("/./"))
}

func TestParse_DotAliasStaysInsideSummaryDir(t *testing.T) {
	list, err := Parse([]byte(`[{"id": "1706.03762", "alias": ".."}, {"id": "abc", "alias": "."}]`), ".json")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "__", list[0].Alias)
	assert.Equal(t, "_", list[1].Alias)

	root := filepath.Join(t.TempDir(), "summaries")
	for _, tgt := range list {
		dir := filepath.Join(root, tgt.Alias)
		assert.True(t, strings.HasPrefix(dir, root+string(filepath.Separator)), dir)
	}
}
