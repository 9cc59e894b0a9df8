package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	lib, err := Load("")
	require.NoError(t, err)

	for _, name := range All {
		assert.Equal(t, "embedded", lib.Source(name), name)
	}

	t.Run("classify_abstract uses both abstracts", func(t *testing.T) {
		out, err := lib.Render(ClassifyAbstract, Data{TargetAbstract: "TARGET-ABS", Abstract: "CITING-ABS"})
		require.NoError(t, err)
		assert.Contains(t, out, "TARGET-ABS")
		assert.Contains(t, out, "CITING-ABS")
		assert.Contains(t, out, "YES or NO")
	})

	t.Run("classify_full_text includes titles and text", func(t *testing.T) {
		out, err := lib.Render(ClassifyFullText, Data{
			TargetTitle: "Target T", TargetAbstract: "ta", Title: "Citing T", Abstract: "ca", FullText: "## Method\nbody",
		})
		require.NoError(t, err)
		assert.Contains(t, out, "Target T")
		assert.Contains(t, out, "Citing T")
		assert.Contains(t, out, "## Method\nbody")
	})

	t.Run("structure embeds the raw text and schema", func(t *testing.T) {
		out, err := lib.Render(Structure, Data{Text: "RAW PDF TEXT"})
		require.NoError(t, err)
		assert.Contains(t, out, "RAW PDF TEXT")
		assert.Contains(t, out, `"experiments"`)
	})

	t.Run("snippet prompt", func(t *testing.T) {
		out, err := lib.Render(ClassifySnippet, Data{Snippet: "first pages"})
		require.NoError(t, err)
		assert.Contains(t, out, "first pages")
	})
}

func TestLoad_Override(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "summary.md"), []byte("Summarize {{.Title}} briefly."), 0o644))

	lib, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "summary.md"), lib.Source(Summary))
	assert.Equal(t, "embedded", lib.Source(BaseSummary))

	out, err := lib.Render(Summary, Data{Title: "Paper X"})
	require.NoError(t, err)
	assert.Equal(t, "Summarize Paper X briefly.", out)
}

func TestLoad_MissingDirUsesDefaults(t *testing.T) {
	lib, err := Load(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.Equal(t, "embedded", lib.Source(Structure))
}

func TestLoad_InvalidOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "structure.md"), []byte("{{.Text"), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "structure")
}

func TestRender_UnknownField(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "summary.md"), []byte("{{.Nope}}"), 0o644))

	lib, err := Load(dir)
	require.NoError(t, err)

	_, err = lib.Render(Summary, Data{})
	assert.Error(t, err)
}

func TestRender_UnknownPrompt(t *testing.T) {
	lib, err := Load("")
	require.NoError(t, err)

	_, err = lib.Render(Name("missing"), Data{})
	assert.Error(t, err)
}
