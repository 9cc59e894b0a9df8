package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixir/citation-tracker-service/internal/domain"
	"github.com/helixir/citation-tracker-service/internal/observability"
	"github.com/helixir/citation-tracker-service/internal/pdf"
)

// Resolver locates a PDF URL for a paper.
type Resolver interface {
	Resolve(ctx context.Context, paper *domain.Paper) (Resolution, bool)
}

// Downloader fetches PDF bytes.
type Downloader interface {
	Download(ctx context.Context, url string) (*pdf.DownloadResult, error)
}

// Extractor turns a paper into plain text from its PDF.
type Extractor struct {
	resolver   Resolver
	downloader Downloader
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// NewExtractor creates an Extractor.
func NewExtractor(resolver Resolver, downloader Downloader, logger zerolog.Logger, metrics *observability.Metrics) *Extractor {
	return &Extractor{
		resolver:   resolver,
		downloader: downloader,
		logger:     logger.With().Str("component", "extractor").Logger(),
		metrics:    metrics,
	}
}

// ExtractText returns the text of the first maxPages pages of the paper's PDF
// (maxPages <= 0 means every page).
//
// Failures are *domain.DocumentUnavailableError. A cancelled ctx is returned as is.
func (e *Extractor) ExtractText(ctx context.Context, paper *domain.Paper, maxPages int) (string, error) {
	res, ok := e.resolver.Resolve(ctx, paper)
	if !ok {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "", e.unavailable(paper.ID, "no_url", "no PDF URL found", nil)
	}

	logger := e.logger.With().Str("paper_id", paper.ID).Str("url", res.URL).Str("source", res.Source).Logger()
	logger.Debug().Msg("downloading document")

	download, err := e.downloader.Download(ctx, res.URL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		reason := "download"
		if errors.Is(err, pdf.ErrNotPDF) {
			reason = "not_pdf"
		}
		return "", e.unavailable(paper.ID, reason, fmt.Sprintf("PDF download failed: %v", err), err)
	}

	text, err := pdf.ExtractText(download.Content, maxPages)
	if err != nil {
		if errors.Is(err, pdf.ErrNoText) {
			return "", e.unavailable(paper.ID, "empty_text", "no text could be extracted from the PDF", err)
		}
		return "", e.unavailable(paper.ID, "parse", fmt.Sprintf("PDF parsing failed: %v", err), err)
	}

	logger.Info().
		Int("chars", len([]rune(text))).
		Int64("bytes", download.SizeBytes).
		Int("max_pages", maxPages).
		Msg("text extracted")
	return text, nil
}

func (e *Extractor) unavailable(paperID, reason, cause string, err error) error {
	e.metrics.RecordDocumentFailed(reason)
	return domain.NewDocumentUnavailableError(paperID, cause, err)
}
