// Package papersources provides interfaces and types for the external
// bibliographic and archival search APIs the tracker consumes.
//
// Two capabilities are defined here: a BibliographicProvider that resolves
// paper metadata and citation lists, and a Searcher that looks papers up by
// title and author when no direct PDF link is known.
//
// Example usage:
//
//	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{RateLimit: 1})
//	provider := semanticscholar.NewClient(cfg, httpClient, logger, metrics)
//	paper, err := provider.GetPaper(ctx, "1706.03762")
package papersources

import (
	"context"

	"github.com/helixir/citation-tracker-service/internal/domain"
)

// BibliographicProvider resolves paper metadata and citation lists.
type BibliographicProvider interface {
	// GetPaper returns the paper's metadata, or nil with a nil error when the
	// provider has no usable record (unknown id, retries exhausted, upstream error).
	// Only context cancellation is returned as an error.
	GetPaper(ctx context.Context, id string) (*domain.Paper, error)

	// GetCitingPapers returns papers citing id. Records without an identifier
	// are dropped. An unavailable provider yields an empty list.
	GetCitingPapers(ctx context.Context, id string) ([]domain.CitingPaper, error)

	// Name returns a human-readable name for this provider.
	Name() string
}

// SearchQuery describes a title/author lookup against an archival search index.
type SearchQuery struct {
	// Title is the normalized paper title.
	Title string

	// Authors holds author names used to narrow the query. May be empty.
	Authors []string

	// MaxResults limits the number of candidates returned.
	MaxResults int
}

// Candidate is one search hit, in relevance order.
type Candidate struct {
	Title   string
	Authors []string
	PDFURL  string
}

// Searcher queries an archival search index. Implementations may block.
type Searcher interface {
	Search(ctx context.Context, query SearchQuery) ([]Candidate, error)
}
