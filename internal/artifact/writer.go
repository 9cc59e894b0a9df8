// Package artifact writes paper summaries to disk as Markdown files.
//
// Layout under the summary directory:
//
//	<alias>/_base_summary.md                        the target paper's own summary
//	<alias>/<classification>/<title> (<year>).md    one file per accepted citing paper
//
// When two citing papers share a title and year, the later one gets the
// paper id appended: "<title> (<year>) [<id>].md".
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/helixir/citation-tracker-service/internal/domain"
)

// BaseSummaryFile is the file name of a target's own summary.
const BaseSummaryFile = "_base_summary.md"

// maxTitleBytes keeps "<title> (<year>) [<id>].md" under the 255-byte
// file name limit of common file systems.
const maxTitleBytes = 180

// maxIDBytes bounds the id suffix of a disambiguated file name.
const maxIDBytes = 48

var (
	unsafeTitleChars = regexp.MustCompile(`[\\/*?:"<>|]`)
	paperIDMarker    = regexp.MustCompile(`<!-- paper_id: (.+?) -->`)
)

// MarkdownWriter writes summaries under a root directory.
type MarkdownWriter struct {
	root   string
	logger zerolog.Logger
}

// NewMarkdownWriter creates a writer rooted at dir.
func NewMarkdownWriter(dir string, logger zerolog.Logger) *MarkdownWriter {
	return &MarkdownWriter{
		root:   dir,
		logger: logger.With().Str("component", "artifact_writer").Logger(),
	}
}

// BasePath returns the path of the target's base summary.
func (w *MarkdownWriter) BasePath(alias string) string {
	return filepath.Join(w.root, alias, BaseSummaryFile)
}

// HasBaseSummary reports whether the target's base summary file exists.
func (w *MarkdownWriter) HasBaseSummary(alias string) bool {
	_, err := os.Stat(w.BasePath(alias))
	return err == nil
}

// Path returns where Write stores paper's summary for classification,
// before any disambiguation against an existing file.
func (w *MarkdownWriter) Path(paper *domain.Paper, alias, classification string) string {
	if classification == domain.BaseSummaryClassification {
		return w.BasePath(alias)
	}
	name := fmt.Sprintf("%s (%s).md", SafeTitle(paper.Title), strings.ReplaceAll(yearOrNA(paper.Year), "/", ""))
	return filepath.Join(w.root, alias, classification, name)
}

// Write renders and stores summary, creating directories as needed, and
// returns the file path. A file written earlier for the same paper is
// overwritten; one belonging to another paper is kept.
func (w *MarkdownWriter) Write(paper *domain.Paper, summary, alias, classification string) (string, error) {
	path := w.Path(paper, alias, classification)
	if classification != domain.BaseSummaryClassification {
		if owner := fileOwner(path); owner != "" && owner != paper.ID {
			path = disambiguate(path, paper.ID)
			w.logger.Debug().Str("paper_id", paper.ID).Str("other_paper_id", owner).Msg("title collision, adding paper id to file name")
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create summary directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(Render(paper, summary)), 0o644); err != nil {
		return "", fmt.Errorf("write summary: %w", err)
	}

	w.logger.Info().Str("path", path).Str("paper_id", paper.ID).Msg("summary saved")
	return path, nil
}

// fileOwner returns the paper id recorded in an existing summary file, or "".
func fileOwner(path string) string {
	content, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	m := paperIDMarker.FindSubmatch(content)
	if m == nil {
		return ""
	}
	return string(m[1])
}

func disambiguate(path, paperID string) string {
	id := truncateBytes(SafeTitle(paperID), maxIDBytes)
	return strings.TrimSuffix(path, ".md") + " [" + id + "].md"
}

// Render returns the Markdown document for a summary.
func Render(paper *domain.Paper, summary string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s (%s)\n\n", paper.Title, yearOrNA(paper.Year))
	if paper.URL != "" {
		fmt.Fprintf(&sb, "**🔗 Link:** [%s](%s)\n\n", paper.URL, paper.URL)
	}
	sb.WriteString("---\n\n")
	sb.WriteString(strings.TrimSpace(summary))
	if paper.ID != "" {
		fmt.Fprintf(&sb, "\n\n<!-- paper_id: %s -->", paper.ID)
	}
	return strings.TrimSpace(sb.String())
}

// SafeTitle strips characters that are not allowed in file names and cuts
// the result to maxTitleBytes on a rune boundary.
func SafeTitle(title string) string {
	safe := strings.TrimSpace(unsafeTitleChars.ReplaceAllString(title, ""))
	safe = strings.TrimSpace(truncateBytes(safe, maxTitleBytes))
	if safe == "" {
		return "untitled"
	}
	return safe
}

// truncateBytes cuts s to at most limit bytes without splitting a rune.
func truncateBytes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := 0
	for i := range s {
		if i > limit {
			break
		}
		cut = i
	}
	return s[:cut]
}

func yearOrNA(year int) string {
	if year <= 0 {
		return "N/A"
	}
	return strconv.Itoa(year)
}
