package domain

import (
	"strings"
	"unicode/utf8"
)

// NoAbstractSentinel is the placeholder some providers return instead of an abstract.
const NoAbstractSentinel = "No abstract available."

// Author represents a paper author. Only the display name is tracked.
type Author struct {
	Name string `json:"name"`
}

// ExternalIDs holds the identifiers a bibliographic provider resolved for a paper.
type ExternalIDs struct {
	ArXiv    string `json:"arxiv,omitempty"`
	DOI      string `json:"doi,omitempty"`
	CorpusID string `json:"corpus_id,omitempty"`
}

// Paper holds bibliographic metadata for a paper, as resolved by a provider.
type Paper struct {
	ID               string      `json:"id"`
	Title            string      `json:"title"`
	Abstract         string      `json:"abstract,omitempty"`
	Year             int         `json:"year,omitempty"`
	URL              string      `json:"url,omitempty"`
	Authors          []Author    `json:"authors,omitempty"`
	PublicationTypes []string    `json:"publication_types,omitempty"`
	ExternalIDs      ExternalIDs `json:"external_ids"`
	OpenAccessPDF    string      `json:"open_access_pdf,omitempty"`
	IsOpenAccess     bool        `json:"is_open_access,omitempty"`
}

// AuthorNames returns the author names in order.
func (p *Paper) AuthorNames() []string {
	names := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		if n := strings.TrimSpace(a.Name); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// HasAbstract returns true if the paper carries a usable abstract.
func (p *Paper) HasAbstract() bool {
	a := strings.TrimSpace(p.Abstract)
	return a != "" && !strings.EqualFold(a, NoAbstractSentinel)
}

// HasPublicationType reports whether the paper is tagged with the given type (case-insensitive).
func (p *Paper) HasPublicationType(t string) bool {
	for _, pt := range p.PublicationTypes {
		if strings.EqualFold(pt, t) {
			return true
		}
	}
	return false
}

// TargetPaper is a paper whose citations are monitored.
type TargetPaper struct {
	Paper
	// Alias is the filesystem-safe storage key for the target's artifacts.
	Alias string `json:"alias"`
}

// CitingPaper is a paper found to cite a target paper.
//
// Abstract is the only field mutated after construction: BackfillAbstract fills it
// from extracted text when the provider had none.
type CitingPaper struct {
	Paper
}

// BackfillAbstract replaces the abstract with the first limit runes of text.
func (p *CitingPaper) BackfillAbstract(text string, limit int) {
	p.Abstract = TruncateRunes(text, limit)
}

// TruncateRunes returns at most limit runes of s. A non-positive limit returns s unchanged.
func TruncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	i := 0
	for pos := range s {
		if i == limit {
			return s[:pos]
		}
		i++
	}
	return s
}
