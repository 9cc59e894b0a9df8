package document

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/citation-tracker-service/internal/domain"
	"github.com/helixir/citation-tracker-service/internal/pdf"
	"github.com/helixir/citation-tracker-service/internal/pdf/pdftest"
)

type stubResolver struct {
	res Resolution
	ok  bool
}

func (s stubResolver) Resolve(context.Context, *domain.Paper) (Resolution, bool) {
	return s.res, s.ok
}

type stubDownloader struct {
	result *pdf.DownloadResult
	err    error
	urls   []string
}

func (s *stubDownloader) Download(_ context.Context, url string) (*pdf.DownloadResult, error) {
	s.urls = append(s.urls, url)
	return s.result, s.err
}

func pdfResult(content []byte) *pdf.DownloadResult {
	return &pdf.DownloadResult{Content: content, SizeBytes: int64(len(content)), ContentType: "application/pdf"}
}

func TestExtractor_ExtractText(t *testing.T) {
	paper := &domain.Paper{ID: "p1", Title: "Some Paper"}
	resolved := stubResolver{res: Resolution{URL: "https://x.org/p1.pdf", Source: SourceOpenAccess}, ok: true}

	t.Run("extracts limited pages", func(t *testing.T) {
		dl := &stubDownloader{result: pdfResult(pdftest.Build("First page text", "Second page text", "Third page text"))}
		e := NewExtractor(resolved, dl, zerolog.Nop(), nil)

		text, err := e.ExtractText(context.Background(), paper, 2)
		require.NoError(t, err)
		assert.Contains(t, text, "First page text")
		assert.Contains(t, text, "Second page text")
		assert.NotContains(t, text, "Third page text")
		assert.Equal(t, []string{"https://x.org/p1.pdf"}, dl.urls)
	})

	t.Run("all pages", func(t *testing.T) {
		dl := &stubDownloader{result: pdfResult(pdftest.Build("One", "Two", "Three"))}
		e := NewExtractor(resolved, dl, zerolog.Nop(), nil)

		text, err := e.ExtractText(context.Background(), paper, 0)
		require.NoError(t, err)
		assert.Contains(t, text, "Three")
	})

	tests := []struct {
		name      string
		resolver  Resolver
		dl        *stubDownloader
		wantCause string
	}{
		{
			name:      "no url",
			resolver:  stubResolver{},
			dl:        &stubDownloader{},
			wantCause: "no PDF URL found",
		},
		{
			name:      "download failure",
			resolver:  resolved,
			dl:        &stubDownloader{err: errors.New("connection reset")},
			wantCause: "PDF download failed: connection reset",
		},
		{
			name:      "not a pdf",
			resolver:  resolved,
			dl:        &stubDownloader{err: fmt.Errorf("%w: got text/html", pdf.ErrNotPDF)},
			wantCause: "PDF download failed",
		},
		{
			name:      "corrupt pdf",
			resolver:  resolved,
			dl:        &stubDownloader{result: pdfResult([]byte("%PDF-1.4 garbage"))},
			wantCause: "PDF parsing failed",
		},
		{
			name:      "no text",
			resolver:  resolved,
			dl:        &stubDownloader{result: pdfResult(pdftest.Build(""))},
			wantCause: "no text could be extracted from the PDF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExtractor(tt.resolver, tt.dl, zerolog.Nop(), nil)

			_, err := e.ExtractText(context.Background(), paper, 3)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrDocumentUnavailable)

			var docErr *domain.DocumentUnavailableError
			require.ErrorAs(t, err, &docErr)
			assert.Equal(t, "p1", docErr.PaperID)
			assert.Contains(t, docErr.Cause, tt.wantCause)
		})
	}
}

func TestExtractor_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	t.Run("during resolve", func(t *testing.T) {
		e := NewExtractor(stubResolver{}, &stubDownloader{}, zerolog.Nop(), nil)
		_, err := e.ExtractText(ctx, &domain.Paper{ID: "p1"}, 1)
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, domain.ErrDocumentUnavailable)
	})

	t.Run("during download", func(t *testing.T) {
		resolver := stubResolver{res: Resolution{URL: "https://x.org/a.pdf", Source: SourceDirectURL}, ok: true}
		e := NewExtractor(resolver, &stubDownloader{err: context.Canceled}, zerolog.Nop(), nil)
		_, err := e.ExtractText(ctx, &domain.Paper{ID: "p1"}, 1)
		assert.ErrorIs(t, err, context.Canceled)
		assert.NotErrorIs(t, err, domain.ErrDocumentUnavailable)
	})
}
