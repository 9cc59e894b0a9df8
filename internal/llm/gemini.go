package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// defaultGeminiRetryDelay is the initial backoff between transient failures.
const defaultGeminiRetryDelay = 2 * time.Second

// GeminiConfig holds the parameters needed to create a Gemini provider.
// This is defined in the llm package to avoid importing the config package.
type GeminiConfig struct {
	// APIKey is the Gemini API key.
	APIKey string
	// BaseURL overrides the API endpoint (empty means the public endpoint).
	BaseURL string
}

// GeminiProvider implements Generator using the Gemini API through google.golang.org/genai.
type GeminiProvider struct {
	client      *genai.Client
	temperature float32
	timeout     time.Duration
	maxRetries  int
	retryDelay  time.Duration
}

// NewGeminiProvider creates a Gemini generator. Each call is bounded by timeout.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig, temperature float64, timeout time.Duration, maxRetries int, retryDelay time.Duration) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	if retryDelay <= 0 {
		retryDelay = defaultGeminiRetryDelay
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}

	return &GeminiProvider{
		client:      client,
		temperature: float32(temperature),
		timeout:     timeout,
		maxRetries:  maxRetries,
		retryDelay:  retryDelay,
	}, nil
}

// Generate sends prompt as a single user turn and returns the response text.
func (p *GeminiProvider) Generate(ctx context.Context, model, prompt string, jsonMode bool) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(p.temperature),
	}
	if jsonMode {
		cfg.ResponseMIMEType = "application/json"
	}
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	return withRetries(ctx, "gemini", p.maxRetries, p.retryDelay, func() (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		resp, err := p.client.Models.GenerateContent(callCtx, model, contents, cfg)
		if err != nil {
			return "", convertGeminiError(ctx, err)
		}

		text := resp.Text()
		if strings.TrimSpace(text) == "" {
			return "", fmt.Errorf("gemini: empty response")
		}
		return text, nil
	})
}

// Provider returns the name of the LLM provider.
func (p *GeminiProvider) Provider() string {
	return "gemini"
}

// convertGeminiError maps genai errors onto APIError. The Gemini API reports
// exhausted quota as 429 RESOURCE_EXHAUSTED.
func convertGeminiError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("gemini: request failed: %w", ctx.Err())
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return geminiAPIError(apiErr)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return geminiAPIError(*apiErrPtr)
	}

	return &APIError{
		Provider: "gemini",
		Message:  fmt.Sprintf("request failed: %v", err),
		Type:     "network_error",
	}
}

func geminiAPIError(e genai.APIError) *APIError {
	status := e.Status
	if e.Code == http.StatusTooManyRequests && status == "" {
		status = "RESOURCE_EXHAUSTED"
	}
	return &APIError{
		Provider:   "gemini",
		StatusCode: e.Code,
		Message:    e.Message,
		Type:       status,
	}
}
