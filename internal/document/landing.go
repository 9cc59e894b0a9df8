package document

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/helixir/citation-tracker-service/internal/pdf"
)

// maxLandingPageBytes bounds how much of a landing page is parsed.
const maxLandingPageBytes = 5 << 20

// LandingPageResolver reads the Highwire citation_pdf_url meta tag that most
// publisher and repository landing pages carry.
type LandingPageResolver struct {
	client       *http.Client
	userAgent    string
	allowPrivate bool
	logger       zerolog.Logger
}

// LandingConfig configures a LandingPageResolver.
type LandingConfig struct {
	Timeout   time.Duration
	UserAgent string
	// AllowPrivateNetworks lets pages on loopback and private addresses be
	// fetched. It follows document.allow_private_networks.
	AllowPrivateNetworks bool
}

// NewLandingPageResolver creates a resolver. Page fetches share the PDF
// downloader's private-address policy.
func NewLandingPageResolver(cfg LandingConfig, logger zerolog.Logger) *LandingPageResolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &LandingPageResolver{
		client:       pdf.NewGuardedClient(cfg.Timeout, cfg.AllowPrivateNetworks),
		userAgent:    cfg.UserAgent,
		allowPrivate: cfg.AllowPrivateNetworks,
		logger:       logger.With().Str("component", "landing_page").Logger(),
	}
}

// PDFURL fetches pageURL and returns the absolute citation_pdf_url it declares.
// Any failure yields false.
func (r *LandingPageResolver) PDFURL(ctx context.Context, pageURL string) (string, bool) {
	doc, base, err := r.fetchDocument(ctx, pageURL)
	if err != nil {
		r.logger.Debug().Err(err).Str("url", pageURL).Msg("landing page unavailable")
		return "", false
	}

	content, ok := doc.Find(`meta[name="citation_pdf_url"]`).First().Attr("content")
	content = strings.TrimSpace(content)
	if !ok || content == "" {
		return "", false
	}

	ref, err := url.Parse(content)
	if err != nil {
		return "", false
	}
	return base.ResolveReference(ref).String(), true
}

func (r *LandingPageResolver) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, *url.URL, error) {
	if !r.allowPrivate {
		if err := pdf.CheckURL(pageURL); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("landing page returned %s", resp.Status)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(strings.ToLower(ct), "html") {
		return nil, nil, fmt.Errorf("landing page is %q, not HTML", ct)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxLandingPageBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, resp.Request.URL, nil
}
