package semanticscholar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/citation-tracker-service/internal/domain"
	"github.com/helixir/citation-tracker-service/internal/observability"
	"github.com/helixir/citation-tracker-service/internal/papersources"
)

const (
	// DefaultBaseURL is the default base URL for the Semantic Scholar Graph API.
	DefaultBaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultRateLimit is the default rate limit for unauthenticated requests.
	DefaultRateLimit = 1.0

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultCitationLimit is the number of citing papers requested per target.
	DefaultCitationLimit = 50

	// DefaultMaxRetries is the number of retries on 429 responses.
	DefaultMaxRetries = 5

	// DefaultRetryDelay is the initial backoff delay.
	DefaultRetryDelay = time.Second

	// apiKeyHeader is the header name for the Semantic Scholar API key.
	apiKeyHeader = "x-api-key"

	// paperFields is the list of fields requested for a single paper.
	paperFields = "title,abstract,year,url,externalIds,openAccessPdf,authors,publicationTypes"

	// citationFields is the list of fields requested for each citing paper.
	citationFields = "title,abstract,year,url,isOpenAccess,externalIds,openAccessPdf,authors,publicationTypes"

	// sourceName is the human-readable name for this source.
	sourceName = "Semantic Scholar"

	// metricsSource labels this source in metrics.
	metricsSource = "semantic_scholar"
)

// bareArXivID matches new-style arXiv identifiers such as 1706.03762.
var bareArXivID = regexp.MustCompile(`^\d{4}\.\d{4,5}$`)

// Config contains configuration options for the Semantic Scholar client.
type Config struct {
	// BaseURL is the base URL for the API.
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the optional API key for authenticated requests.
	// Authenticated requests have higher rate limits.
	APIKey string

	// Timeout is the HTTP request timeout.
	// Defaults to DefaultTimeout if zero.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	// Defaults to DefaultRateLimit if zero.
	RateLimit float64

	// MaxRetries is the number of retries on rate-limit responses.
	// Defaults to DefaultMaxRetries if zero.
	MaxRetries int

	// RetryDelay is the initial backoff delay, doubled on every retry.
	// Defaults to DefaultRetryDelay if zero.
	RetryDelay time.Duration

	// CitationLimit is the maximum number of citing papers fetched per target.
	// Defaults to DefaultCitationLimit if zero.
	CitationLimit int
}

// Client implements papersources.BibliographicProvider for Semantic Scholar.
type Client struct {
	httpClient *papersources.HTTPClient
	config     Config
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// Compile-time check that Client implements papersources.BibliographicProvider.
var _ papersources.BibliographicProvider = (*Client)(nil)

// NewClient creates a new Semantic Scholar client with the given configuration.
// If httpClient is nil, a new one will be created with the configuration settings.
func NewClient(cfg Config, httpClient *papersources.HTTPClient, logger zerolog.Logger, metrics *observability.Metrics) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.CitationLimit == 0 {
		cfg.CitationLimit = DefaultCitationLimit
	}

	if httpClient == nil {
		httpClient = papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Source:       metricsSource,
			Timeout:      cfg.Timeout,
			RateLimit:    cfg.RateLimit,
			BurstSize:    1,
			MaxRetries:   cfg.MaxRetries,
			RetryDelay:   cfg.RetryDelay,
			APIKey:       cfg.APIKey,
			APIKeyHeader: apiKeyHeader,
			Metrics:      metrics,
		})
	}

	return &Client{
		httpClient: httpClient,
		config:     cfg,
		logger:     logger.With().Str("component", "semantic_scholar").Logger(),
		metrics:    metrics,
	}
}

// NormalizeID rewrites bare arXiv identifiers into the "ARXIV:<id>" form the API expects.
// Other identifiers are returned unchanged.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	if bareArXivID.MatchString(id) {
		return "ARXIV:" + id
	}
	return id
}

// GetPaper retrieves a paper by Semantic Scholar ID, DOI, or arXiv identifier.
// It returns nil without error when the paper cannot be fetched.
func (c *Client) GetPaper(ctx context.Context, id string) (*domain.Paper, error) {
	paperURL := fmt.Sprintf("%s/paper/%s?fields=%s", c.config.BaseURL, url.PathEscape(NormalizeID(id)), paperFields)

	var result PaperResult
	if err := c.getJSON(ctx, "paper", paperURL, &result); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger := observability.WithSourceContext(observability.ContextLogger(ctx, c.logger), metricsSource, "paper")
		logger.Warn().Err(err).Str("paper_id", id).Msg("paper metadata unavailable")
		return nil, nil
	}

	paper := convertToPaper(result)
	if paper.ID == "" {
		paper.ID = id
	}
	return &paper, nil
}

// GetCitingPapers lists papers citing id, up to the configured citation limit.
// It returns an empty list without error when citations cannot be fetched.
func (c *Client) GetCitingPapers(ctx context.Context, id string) ([]domain.CitingPaper, error) {
	citationsURL := fmt.Sprintf("%s/paper/%s/citations?fields=%s&limit=%s",
		c.config.BaseURL, url.PathEscape(NormalizeID(id)), citationFields, strconv.Itoa(c.config.CitationLimit))

	var resp CitationsResponse
	if err := c.getJSON(ctx, "citations", citationsURL, &resp); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger := observability.WithSourceContext(observability.ContextLogger(ctx, c.logger), metricsSource, "citations")
		logger.Warn().Err(err).Str("paper_id", id).Msg("citations unavailable")
		return []domain.CitingPaper{}, nil
	}

	papers := make([]domain.CitingPaper, 0, len(resp.Data))
	for _, edge := range resp.Data {
		if edge.CitingPaper.PaperID == "" {
			continue
		}
		papers = append(papers, domain.CitingPaper{Paper: convertToPaper(edge.CitingPaper)})
	}
	return papers, nil
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// getJSON performs a GET request and decodes the JSON body into out.
func (c *Client) getJSON(ctx context.Context, endpoint, target string, out any) error {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errType := "network"
		if errors.Is(err, domain.ErrTransientProvider) {
			errType = "retries_exhausted"
		}
		c.metrics.RecordSourceRequestFailed(metricsSource, endpoint, errType)
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		c.metrics.RecordSourceRequestFailed(metricsSource, endpoint, "not_found")
		return domain.NewNotFoundError("paper", target)
	}

	if err := c.handleErrorResponse(resp); err != nil {
		c.metrics.RecordSourceRequestFailed(metricsSource, endpoint, fmt.Sprintf("http_%d", resp.StatusCode))
		return err
	}

	// Limit body to 10MB to prevent resource exhaustion.
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(out); err != nil {
		c.metrics.RecordSourceRequestFailed(metricsSource, endpoint, "decode")
		return fmt.Errorf("decoding response: %w", err)
	}

	c.metrics.RecordSourceRequest(metricsSource, endpoint, time.Since(start).Seconds())
	return nil
}

// handleErrorResponse checks for API errors and returns appropriate error types.
func (c *Client) handleErrorResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		var retryAfter time.Duration
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			retryAfter = time.Duration(secs) * time.Second
		}
		return &domain.RateLimitError{Source: sourceName, RetryAfter: retryAfter}
	}

	// Read the error body (limit to 1MB to prevent resource exhaustion)
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, "failed to read error response", err)
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		message := errResp.Error
		if message == "" {
			message = errResp.Message
		}
		if message == "" {
			message = string(body)
		}
		return domain.NewExternalAPIError(sourceName, resp.StatusCode, message, nil)
	}

	return domain.NewExternalAPIError(sourceName, resp.StatusCode, string(body), nil)
}

// convertToPaper converts a single API paper result to a domain paper.
func convertToPaper(result PaperResult) domain.Paper {
	paper := domain.Paper{
		ID:               result.PaperID,
		Title:            strings.TrimSpace(result.Title),
		Abstract:         result.Abstract,
		Year:             result.Year,
		URL:              result.URL,
		Authors:          convertAuthors(result.Authors),
		PublicationTypes: result.PublicationTypes,
		IsOpenAccess:     result.IsOpenAccess,
	}

	if result.OpenAccessPDF != nil {
		paper.OpenAccessPDF = result.OpenAccessPDF.URL
	}

	if result.ExternalIDs != nil {
		paper.ExternalIDs = domain.ExternalIDs{
			ArXiv: result.ExternalIDs.ArXiv,
			DOI:   result.ExternalIDs.DOI,
		}
		if result.ExternalIDs.CorpusID != 0 {
			paper.ExternalIDs.CorpusID = strconv.FormatInt(result.ExternalIDs.CorpusID, 10)
		}
	}

	return paper
}

// convertAuthors converts API authors to domain authors.
func convertAuthors(apiAuthors []Author) []domain.Author {
	authors := make([]domain.Author, 0, len(apiAuthors))
	for _, a := range apiAuthors {
		authors = append(authors, domain.Author{
			Name: a.Name,
		})
	}
	return authors
}
