// Package pdf downloads PDF files and extracts their plain text.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sentinel errors for PDF download operations.
var (
	// ErrNotPDF is returned when the response is neither typed nor shaped like a PDF.
	ErrNotPDF = errors.New("pdf: response is not a PDF")
	// ErrTooLarge is returned when the file exceeds the maximum allowed size.
	ErrTooLarge = errors.New("pdf: file exceeds maximum size")
	// ErrDownloadFailed is returned when the download fails due to network or HTTP errors.
	ErrDownloadFailed = errors.New("pdf: download failed")
	// ErrSSRF is returned when the URL resolves to a private/internal network address.
	ErrSSRF = errors.New("pdf: request to private network denied")
)

// DownloadResult holds the result of downloading a PDF.
type DownloadResult struct {
	// Content is the PDF bytes.
	Content []byte
	// FinalURL is the URL the content was served from after redirects.
	FinalURL string
	// SizeBytes is the size of the content in bytes.
	SizeBytes int64
	// ContentType is the actual Content-Type header from the response.
	ContentType string
}

// Config holds downloader configuration.
type Config struct {
	// Timeout is the HTTP request timeout. Default: 30 seconds.
	Timeout time.Duration
	// MaxSize is the maximum file size in bytes. Default: 100MB.
	MaxSize int64
	// UserAgent is the User-Agent header. Default: DefaultUserAgent.
	// Several publishers reject requests without a browser-like agent.
	UserAgent string
	// AllowPrivateNetworks disables SSRF private-IP checks. This MUST only be
	// set to true in test environments. Production code must never set this.
	AllowPrivateNetworks bool
}

// DefaultUserAgent is a desktop browser User-Agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// pdfMagic is the header every PDF file starts with.
var pdfMagic = []byte("%PDF")

// Downloader downloads PDFs from URLs. It is safe for concurrent use.
type Downloader struct {
	client               *http.Client
	maxSize              int64
	userAgent            string
	allowPrivateNetworks bool // For testing only; never enable in production.
}

// NewDownloader creates a new Downloader with the given configuration.
func NewDownloader(cfg Config) *Downloader {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 100 * 1024 * 1024 // 100MB
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	d := &Downloader{
		maxSize:              cfg.MaxSize,
		userAgent:            cfg.UserAgent,
		allowPrivateNetworks: cfg.AllowPrivateNetworks,
	}

	d.client = NewGuardedClient(cfg.Timeout, cfg.AllowPrivateNetworks)

	return d
}

// NewGuardedClient returns an HTTP client whose redirects are checked
// against private addresses unless allowPrivate is set. Callers still check
// the first URL with CheckURL.
func NewGuardedClient(timeout time.Duration, allowPrivate bool) *http.Client {
	return &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("%w: too many redirects", ErrSSRF)
			}
			if allowPrivate {
				return nil
			}
			return validateURLNotPrivate(req.URL.String())
		},
	}
}

// CheckURL rejects URLs whose host resolves to a private, loopback, or
// link-local address. It matches ErrSSRF.
func CheckURL(rawURL string) error {
	return validateURLNotPrivate(rawURL)
}

// isPrivateIP returns true if the IP address is in a private, loopback, or
// otherwise non-routable range. Covers both IPv4 and IPv6 private ranges.
func isPrivateIP(ip net.IP) bool {
	// IPv4 private ranges.
	privateRanges := []struct{ start, end net.IP }{
		{net.ParseIP("10.0.0.0"), net.ParseIP("10.255.255.255")},
		{net.ParseIP("172.16.0.0"), net.ParseIP("172.31.255.255")},
		{net.ParseIP("192.168.0.0"), net.ParseIP("192.168.255.255")},
		{net.ParseIP("169.254.0.0"), net.ParseIP("169.254.255.255")},
		// IPv6 Unique Local Addresses (fc00::/7).
		{net.ParseIP("fc00::"), net.ParseIP("fdff:ffff:ffff:ffff:ffff:ffff:ffff:ffff")},
		// IPv6 link-local (fe80::/10).
		{net.ParseIP("fe80::"), net.ParseIP("febf:ffff:ffff:ffff:ffff:ffff:ffff:ffff")},
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	// IPv6 loopback (::1) is already covered by ip.IsLoopback() above.
	for _, r := range privateRanges {
		if bytesInRange(ip.To16(), r.start.To16(), r.end.To16()) {
			return true
		}
	}
	return false
}

func bytesInRange(ip, lo, hi []byte) bool {
	for i := range ip {
		if ip[i] < lo[i] {
			return false
		}
		if ip[i] > hi[i] {
			return false
		}
	}
	return true
}

// validateURLNotPrivate resolves the hostname and rejects private IPs.
func validateURLNotPrivate(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSSRF, err)
	}

	// Reject non-HTTP(S) schemes to prevent file://, gopher://, etc.
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		// allowed
	default:
		return fmt.Errorf("%w: scheme %q is not allowed", ErrSSRF, parsed.Scheme)
	}

	host := parsed.Hostname()
	ips, err := net.LookupHost(host)
	if err != nil {
		return fmt.Errorf("%w: DNS lookup failed for %s: %w", ErrDownloadFailed, host, err)
	}
	for _, ipStr := range ips {
		ip := net.ParseIP(ipStr)
		if ip != nil && isPrivateIP(ip) {
			return fmt.Errorf("%w: %s resolves to private address %s", ErrSSRF, host, ipStr)
		}
	}
	return nil
}

// Download fetches a PDF from the given URL.
//
// The response is accepted when its Content-Type is application/pdf or
// application/octet-stream, or when the body starts with the %PDF header
// (repositories often serve PDFs with a generic type).
// Returns ErrNotPDF, ErrTooLarge, ErrSSRF, or ErrDownloadFailed otherwise.
func (d *Downloader) Download(ctx context.Context, rawURL string) (*DownloadResult, error) {
	if !d.allowPrivateNetworks {
		if err := validateURLNotPrivate(rawURL); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid URL: %w", ErrDownloadFailed, err)
	}
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "application/pdf, */*;q=0.8")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrDownloadFailed, resp.StatusCode)
	}

	// Read one extra byte to detect if file is too large.
	content, err := io.ReadAll(io.LimitReader(resp.Body, d.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrDownloadFailed, err)
	}
	if int64(len(content)) > d.maxSize {
		return nil, fmt.Errorf("%w: exceeded %d bytes", ErrTooLarge, d.maxSize)
	}

	contentType := resp.Header.Get("Content-Type")
	if !acceptableContent(contentType, content) {
		return nil, fmt.Errorf("%w: Content-Type is %q", ErrNotPDF, contentType)
	}

	return &DownloadResult{
		Content:     content,
		FinalURL:    resp.Request.URL.String(),
		SizeBytes:   int64(len(content)),
		ContentType: contentType,
	}, nil
}

// acceptableContent reports whether a response looks like a PDF.
func acceptableContent(contentType string, content []byte) bool {
	if len(content) == 0 {
		return false
	}
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "application/pdf") || strings.Contains(ct, "application/octet-stream") {
		return true
	}
	return bytes.HasPrefix(bytes.TrimLeft(content, " \t\r\n"), pdfMagic)
}
