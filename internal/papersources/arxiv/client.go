package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/helixir/citation-tracker-service/internal/domain"
	"github.com/helixir/citation-tracker-service/internal/observability"
	"github.com/helixir/citation-tracker-service/internal/papersources"
	"github.com/helixir/citation-tracker-service/internal/textmatch"
)

const (
	// DefaultBaseURL is the default arXiv API base URL.
	DefaultBaseURL = "https://export.arxiv.org/api"

	// DefaultRateLimit is the default rate limit. arXiv asks for one request every three seconds.
	DefaultRateLimit = 0.33

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per search.
	DefaultMaxResults = 5

	// DefaultMaxRetries is the default number of retries on 429 and 5xx.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the initial backoff delay.
	DefaultRetryDelay = 3 * time.Second

	// sourceName is the human-readable name for this source.
	sourceName = "arXiv"

	// metricsSource labels this source in metrics.
	metricsSource = "arxiv"
)

// arxivIDRegex extracts the arXiv ID from the full URL.
// Matches patterns like "http://arxiv.org/abs/2301.12345v1" or "http://arxiv.org/abs/hep-th/9901001v1".
var arxivIDRegex = regexp.MustCompile(`arxiv\.org/abs/(.+?)(?:v\d+)?$`)

// Config holds configuration for the arXiv client.
type Config struct {
	// BaseURL is the arXiv API base URL.
	BaseURL string

	// Timeout is the request timeout.
	Timeout time.Duration

	// RateLimit is the maximum requests per second.
	RateLimit float64

	// MaxRetries is the number of retries on 429 and 5xx.
	MaxRetries int

	// RetryDelay is the initial backoff delay.
	RetryDelay time.Duration

	// MaxResults is the default number of candidates per search.
	MaxResults int
}

// applyDefaults sets default values for unset configuration fields.
func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client implements papersources.Searcher for arXiv.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
	metrics    *observability.Metrics
}

// Ensure Client implements the Searcher interface.
var _ papersources.Searcher = (*Client)(nil)

// New creates a new arXiv client with the given configuration.
func New(cfg Config, metrics *observability.Metrics) *Client {
	cfg.applyDefaults()

	httpClient := papersources.NewHTTPClient(papersources.HTTPClientConfig{
		Source:     metricsSource,
		Timeout:    cfg.Timeout,
		RateLimit:  cfg.RateLimit,
		BurstSize:  1,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Metrics:    metrics,
	})

	return &Client{
		config:     cfg,
		httpClient: httpClient,
		metrics:    metrics,
	}
}

// NewWithHTTPClient creates a new arXiv client with a custom HTTP client.
// This is useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()

	return &Client{
		config:     cfg,
		httpClient: httpClient,
	}
}

// Search looks up papers by title and, when given, the first author's last name.
// Candidates are returned in arXiv relevance order.
func (c *Client) Search(ctx context.Context, query papersources.SearchQuery) ([]papersources.Candidate, error) {
	start := time.Now()

	if strings.TrimSpace(query.Title) == "" {
		return nil, domain.NewValidationError("title", "search title is required")
	}

	searchURL, err := c.buildSearchURL(query)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordSourceRequestFailed(metricsSource, "query", "network")
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.RecordSourceRequestFailed(metricsSource, "query", fmt.Sprintf("http_%d", resp.StatusCode))
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError(
			sourceName,
			resp.StatusCode,
			string(body),
			nil,
		)
	}

	// Parse the Atom XML response (limit body to 10MB).
	var feed Feed
	if err := xml.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&feed); err != nil {
		c.metrics.RecordSourceRequestFailed(metricsSource, "query", "decode")
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	candidates := make([]papersources.Candidate, 0, len(feed.Entries))
	for i := range feed.Entries {
		if cand, ok := entryToCandidate(&feed.Entries[i]); ok {
			candidates = append(candidates, cand)
		}
	}

	c.metrics.RecordSourceRequest(metricsSource, "query", time.Since(start).Seconds())
	return candidates, nil
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// buildSearchURL constructs the arXiv search API URL.
func (c *Client) buildSearchURL(query papersources.SearchQuery) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/query"

	values := url.Values{}
	values.Set("search_query", buildSearchQuery(query))

	maxResults := query.MaxResults
	if maxResults <= 0 {
		maxResults = c.config.MaxResults
	}
	values.Set("max_results", strconv.Itoa(maxResults))
	values.Set("sortBy", "relevance")

	baseURL.RawQuery = values.Encode()
	return baseURL.String(), nil
}

// buildSearchQuery renders `ti:"<title>"`, narrowed by `au:<last name>` of the
// first author that has one.
func buildSearchQuery(query papersources.SearchQuery) string {
	title := strings.ReplaceAll(normalizeWhitespace(query.Title), `"`, "")
	q := `ti:"` + title + `"`

	for _, name := range query.Authors {
		if last := textmatch.LastName(name); last != "" {
			q += " AND au:" + last
			break
		}
	}
	return q
}

// entryToCandidate converts an arXiv Atom entry to a search candidate.
func entryToCandidate(entry *Entry) (papersources.Candidate, bool) {
	arxivID := extractArXivID(entry.ID)
	if arxivID == "" {
		return papersources.Candidate{}, false
	}

	authors := make([]string, 0, len(entry.Authors))
	for _, a := range entry.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			authors = append(authors, name)
		}
	}

	pdfURL := ""
	for _, link := range entry.Links {
		if link.Title == "pdf" || link.Type == "application/pdf" {
			pdfURL = link.Href
			break
		}
	}
	if pdfURL == "" {
		pdfURL = "https://arxiv.org/pdf/" + arxivID + ".pdf"
	}

	return papersources.Candidate{
		Title:   normalizeWhitespace(entry.Title),
		Authors: authors,
		PDFURL:  pdfURL,
	}, true
}

// extractArXivID extracts the arXiv ID from the full entry URL.
// Input: "http://arxiv.org/abs/2301.12345v1" -> "2301.12345"
func extractArXivID(entryURL string) string {
	matches := arxivIDRegex.FindStringSubmatch(strings.TrimSpace(entryURL))
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}

// normalizeWhitespace trims and collapses multiple whitespace characters.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
