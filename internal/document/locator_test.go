package document

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/citation-tracker-service/internal/domain"
	"github.com/helixir/citation-tracker-service/internal/papersources"
)

func TestDirectResolution(t *testing.T) {
	tests := []struct {
		name       string
		paper      domain.Paper
		wantURL    string
		wantSource string
		wantOK     bool
	}{
		{
			name:       "arxiv id wins over everything",
			paper:      domain.Paper{ExternalIDs: domain.ExternalIDs{ArXiv: "2101.00001"}, OpenAccessPDF: "https://x.org/a.pdf"},
			wantURL:    "https://arxiv.org/pdf/2101.00001.pdf",
			wantSource: SourceArXivID,
			wantOK:     true,
		},
		{
			name:       "open access pdf",
			paper:      domain.Paper{OpenAccessPDF: "https://x.org/a.pdf", URL: "https://arxiv.org/abs/2101.00001"},
			wantURL:    "https://x.org/a.pdf",
			wantSource: SourceOpenAccess,
			wantOK:     true,
		},
		{
			name:       "arxiv abstract page url",
			paper:      domain.Paper{URL: "https://arxiv.org/abs/2101.00001"},
			wantURL:    "https://arxiv.org/pdf/2101.00001.pdf",
			wantSource: SourceDirectURL,
			wantOK:     true,
		},
		{
			name:       "url ending in pdf",
			paper:      domain.Paper{URL: "https://example.org/paper.PDF"},
			wantURL:    "https://example.org/paper.PDF",
			wantSource: SourceDirectURL,
			wantOK:     true,
		},
		{
			name:   "landing page url needs network",
			paper:  domain.Paper{URL: "https://www.semanticscholar.org/paper/abc"},
			wantOK: false,
		},
		{
			name:   "nothing",
			paper:  domain.Paper{},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, ok := directResolution(&tt.paper)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantURL, res.URL)
			assert.Equal(t, tt.wantSource, res.Source)
		})
	}
}

func TestLocator_Resolve(t *testing.T) {
	paper := domain.Paper{
		ID:      "p1",
		Title:   "Attention Is All You Need",
		URL:     "https://publisher.example/article/1",
		Authors: []domain.Author{{Name: "Ashish Vaswani"}, {Name: "Noam Shazeer"}},
	}

	t.Run("direct source skips network steps", func(t *testing.T) {
		landing := &fakeLanding{url: "https://publisher.example/1.pdf", ok: true}
		search := &fakeSearcher{}
		loc := NewLocator(LocatorConfig{}, landing, search, zerolog.Nop(), nil)

		p := paper
		p.ExternalIDs.ArXiv = "1706.03762"
		res, ok := loc.Resolve(context.Background(), &p)
		require.True(t, ok)
		assert.Equal(t, SourceArXivID, res.Source)
		assert.Zero(t, landing.calls.Load())
		assert.Empty(t, search.calls())
	})

	t.Run("landing page before search", func(t *testing.T) {
		landing := &fakeLanding{url: "https://publisher.example/1.pdf", ok: true}
		search := &fakeSearcher{}
		loc := NewLocator(LocatorConfig{}, landing, search, zerolog.Nop(), nil)

		res, ok := loc.Resolve(context.Background(), &paper)
		require.True(t, ok)
		assert.Equal(t, Resolution{URL: "https://publisher.example/1.pdf", Source: SourceLandingPage}, res)
		assert.Empty(t, search.calls())
	})

	t.Run("search accepts first matching candidate", func(t *testing.T) {
		search := &fakeSearcher{candidates: []papersources.Candidate{
			{Title: "A Completely Different Paper", Authors: []string{"Ashish Vaswani"}, PDFURL: "https://arxiv.org/pdf/0000.00000"},
			{Title: "Attention is all you need", Authors: []string{"Someone Else"}, PDFURL: "https://arxiv.org/pdf/1111.11111"},
			{Title: "Attention Is All You Need.", Authors: []string{"N. Shazeer"}, PDFURL: "https://arxiv.org/pdf/1706.03762"},
			{Title: "Attention Is All You Need", Authors: []string{"Ashish Vaswani"}, PDFURL: "https://arxiv.org/pdf/2222.22222"},
		}}
		loc := NewLocator(LocatorConfig{SearchMaxResults: 4}, &fakeLanding{}, search, zerolog.Nop(), nil)

		res, ok := loc.Resolve(context.Background(), &paper)
		require.True(t, ok)
		assert.Equal(t, Resolution{URL: "https://arxiv.org/pdf/1706.03762", Source: SourceSearch}, res)

		queries := search.calls()
		require.Len(t, queries, 1)
		assert.Equal(t, "attention is all you need", queries[0].Title)
		assert.Equal(t, []string{"Ashish Vaswani", "Noam Shazeer"}, queries[0].Authors)
		assert.Equal(t, 4, queries[0].MaxResults)
	})

	t.Run("paper without authors accepts title match", func(t *testing.T) {
		search := &fakeSearcher{candidates: []papersources.Candidate{
			{Title: "Attention Is All You Need", Authors: []string{"Anyone"}, PDFURL: "https://arxiv.org/pdf/1706.03762"},
		}}
		loc := NewLocator(LocatorConfig{}, nil, search, zerolog.Nop(), nil)

		p := paper
		p.Authors = nil
		res, ok := loc.Resolve(context.Background(), &p)
		require.True(t, ok)
		assert.Equal(t, SourceSearch, res.Source)
	})

	t.Run("no match and search error yield nothing", func(t *testing.T) {
		for _, search := range []*fakeSearcher{
			{candidates: []papersources.Candidate{{Title: "Unrelated", PDFURL: "https://x"}}},
			{err: errors.New("arxiv down")},
		} {
			loc := NewLocator(LocatorConfig{}, nil, search, zerolog.Nop(), nil)
			_, ok := loc.Resolve(context.Background(), &paper)
			assert.False(t, ok)
		}
	})

	t.Run("no title skips search", func(t *testing.T) {
		search := &fakeSearcher{}
		loc := NewLocator(LocatorConfig{}, nil, search, zerolog.Nop(), nil)
		_, ok := loc.Resolve(context.Background(), &domain.Paper{ID: "x"})
		assert.False(t, ok)
		assert.Empty(t, search.calls())
	})
}
