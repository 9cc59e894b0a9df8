// Package document finds, downloads, and structures the full text of papers.
//
// A Locator resolves a paper to a PDF URL through a fixed chain of sources,
// an Extractor downloads and parses that PDF, and a Structurer asks a
// language model to split raw text into named sections.
package document

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/helixir/citation-tracker-service/internal/domain"
	"github.com/helixir/citation-tracker-service/internal/observability"
	"github.com/helixir/citation-tracker-service/internal/papersources"
	"github.com/helixir/citation-tracker-service/internal/textmatch"
)

// Resolution sources, in the order the Locator tries them.
const (
	SourceArXivID     = "arxiv_id"
	SourceOpenAccess  = "open_access"
	SourceDirectURL   = "direct_url"
	SourceLandingPage = "landing_page"
	SourceSearch      = "search"
)

// Resolution is a located PDF URL and the source that produced it.
type Resolution struct {
	URL    string
	Source string
}

// DocumentSearch looks papers up in an archival index.
type DocumentSearch interface {
	Search(ctx context.Context, query papersources.SearchQuery) ([]papersources.Candidate, error)
}

// LandingPageLookup reads a PDF link from a publisher landing page.
type LandingPageLookup interface {
	PDFURL(ctx context.Context, pageURL string) (string, bool)
}

// LocatorConfig configures a Locator.
type LocatorConfig struct {
	// SearchMaxResults limits candidates examined from the fallback search.
	SearchMaxResults int
}

// Locator resolves papers to downloadable PDF URLs. It is safe for concurrent use.
type Locator struct {
	landing    LandingPageLookup
	search     DocumentSearch
	maxResults int
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// NewLocator creates a Locator. landing and search may be nil to disable those steps.
func NewLocator(cfg LocatorConfig, landing LandingPageLookup, search DocumentSearch, logger zerolog.Logger, metrics *observability.Metrics) *Locator {
	if cfg.SearchMaxResults <= 0 {
		cfg.SearchMaxResults = 5
	}
	return &Locator{
		landing:    landing,
		search:     search,
		maxResults: cfg.SearchMaxResults,
		logger:     logger.With().Str("component", "locator").Logger(),
		metrics:    metrics,
	}
}

// Resolve returns the first PDF URL found for paper:
//  1. arXiv identifier
//  2. open-access PDF link
//  3. the paper URL when it is an arXiv abstract page or ends in .pdf
//  4. citation_pdf_url on the paper's landing page
//  5. a search hit whose title and authors match the paper
func (l *Locator) Resolve(ctx context.Context, paper *domain.Paper) (Resolution, bool) {
	if res, ok := directResolution(paper); ok {
		return l.found(res), true
	}

	if l.landing != nil && isHTTPURL(paper.URL) {
		if pdfURL, ok := l.landing.PDFURL(ctx, paper.URL); ok {
			return l.found(Resolution{URL: pdfURL, Source: SourceLandingPage}), true
		}
	}

	if l.search != nil && strings.TrimSpace(paper.Title) != "" {
		if pdfURL, ok := l.searchFallback(ctx, paper); ok {
			return l.found(Resolution{URL: pdfURL, Source: SourceSearch}), true
		}
	}

	return Resolution{}, false
}

func (l *Locator) found(res Resolution) Resolution {
	l.metrics.RecordDocumentResolved(res.Source)
	return res
}

// directResolution covers the steps that need no network call.
func directResolution(paper *domain.Paper) (Resolution, bool) {
	if id := strings.TrimSpace(paper.ExternalIDs.ArXiv); id != "" {
		return Resolution{URL: "https://arxiv.org/pdf/" + id + ".pdf", Source: SourceArXivID}, true
	}

	if u := strings.TrimSpace(paper.OpenAccessPDF); u != "" {
		return Resolution{URL: u, Source: SourceOpenAccess}, true
	}

	u := strings.TrimSpace(paper.URL)
	if strings.Contains(u, "arxiv.org/abs/") {
		return Resolution{URL: strings.Replace(u, "/abs/", "/pdf/", 1) + ".pdf", Source: SourceDirectURL}, true
	}
	if strings.HasSuffix(strings.ToLower(u), ".pdf") {
		return Resolution{URL: u, Source: SourceDirectURL}, true
	}

	return Resolution{}, false
}

func (l *Locator) searchFallback(ctx context.Context, paper *domain.Paper) (string, bool) {
	authors := paper.AuthorNames()
	candidates, err := l.search.Search(ctx, papersources.SearchQuery{
		Title:      textmatch.NormalizeTitle(paper.Title),
		Authors:    authors,
		MaxResults: l.maxResults,
	})
	if err != nil {
		l.logger.Debug().Err(err).Str("paper_id", paper.ID).Msg("fallback search failed")
		return "", false
	}

	for _, c := range candidates {
		if c.PDFURL == "" || !textmatch.IsFuzzyMatch(paper.Title, c.Title) {
			continue
		}
		if len(authors) > 0 && !textmatch.AuthorsIntersect(authors, c.Authors) {
			continue
		}
		return c.PDFURL, true
	}
	return "", false
}

func isHTTPURL(u string) bool {
	lower := strings.ToLower(strings.TrimSpace(u))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
