package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/helixir/citation-tracker-service/internal/artifact"
	"github.com/helixir/citation-tracker-service/internal/classifier"
	"github.com/helixir/citation-tracker-service/internal/config"
	"github.com/helixir/citation-tracker-service/internal/document"
	"github.com/helixir/citation-tracker-service/internal/ledger"
	"github.com/helixir/citation-tracker-service/internal/llm"
	"github.com/helixir/citation-tracker-service/internal/notify"
	"github.com/helixir/citation-tracker-service/internal/observability"
	"github.com/helixir/citation-tracker-service/internal/papersources/arxiv"
	"github.com/helixir/citation-tracker-service/internal/papersources/semanticscholar"
	"github.com/helixir/citation-tracker-service/internal/pdf"
	"github.com/helixir/citation-tracker-service/internal/pipeline"
	"github.com/helixir/citation-tracker-service/internal/prompts"
	"github.com/helixir/citation-tracker-service/internal/targets"
)

// app holds the wired tracker and the resources it must release.
type app struct {
	orchestrator *pipeline.Orchestrator
	publisher    notify.Publisher
	search       *document.PooledSearch
}

// Close releases the search pool and the event publisher.
func (a *app) Close() error {
	if a.search != nil {
		a.search.Close()
	}
	return a.publisher.Close()
}

// buildApp wires every collaborator of the orchestrator from cfg.
func buildApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, metrics *observability.Metrics) (*app, error) {
	library, err := prompts.Load(cfg.Tracker.PromptsDir)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	rawGenerator, err := llm.NewGenerator(ctx, llm.FactoryConfig{
		Provider:    cfg.LLM.Provider,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		MaxRetries:  cfg.LLM.MaxRetries,
		RetryDelay:  cfg.LLM.RetryDelay,
		Gemini:      llm.GeminiConfig{APIKey: cfg.LLM.Gemini.APIKey, BaseURL: cfg.LLM.Gemini.BaseURL},
		OpenAI:      llm.OpenAIConfig{APIKey: cfg.LLM.OpenAI.APIKey, BaseURL: cfg.LLM.OpenAI.BaseURL},
		Anthropic: llm.AnthropicConfig{
			APIKey:    cfg.LLM.Anthropic.APIKey,
			BaseURL:   cfg.LLM.Anthropic.BaseURL,
			MaxTokens: cfg.LLM.Anthropic.MaxTokens,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create LLM client: %w", err)
	}
	generator := llm.NewInstrumentedGenerator(rawGenerator, metrics, logger)

	s2 := cfg.PaperSources.SemanticScholar
	provider := semanticscholar.NewClient(semanticscholar.Config{
		BaseURL:       s2.BaseURL,
		APIKey:        s2.APIKey,
		Timeout:       s2.Timeout,
		RateLimit:     s2.RateLimit,
		MaxRetries:    s2.MaxRetries,
		RetryDelay:    s2.RetryDelay,
		CitationLimit: s2.MaxResults,
	}, nil, logger, metrics)

	var landing document.LandingPageLookup
	if cfg.Document.LandingPageLookup {
		landing = document.NewLandingPageResolver(document.LandingConfig{
			Timeout:              cfg.Document.DownloadTimeout,
			UserAgent:            cfg.Document.UserAgent,
			AllowPrivateNetworks: cfg.Document.AllowPrivateNetworks,
		}, logger)
	}

	var (
		search document.DocumentSearch
		pooled *document.PooledSearch
	)
	if ax := cfg.PaperSources.ArXiv; ax.Enabled {
		pooled = document.NewPooledSearch(arxiv.New(arxiv.Config{
			BaseURL:    ax.BaseURL,
			Timeout:    ax.Timeout,
			RateLimit:  ax.RateLimit,
			MaxRetries: ax.MaxRetries,
			RetryDelay: ax.RetryDelay,
			MaxResults: ax.MaxResults,
		}, metrics), cfg.Document.SearchWorkers)
		search = pooled
	}

	locator := document.NewLocator(document.LocatorConfig{SearchMaxResults: cfg.Document.SearchMaxResults}, landing, search, logger, metrics)
	downloader := pdf.NewDownloader(pdf.Config{
		Timeout:              cfg.Document.DownloadTimeout,
		MaxSize:              cfg.Document.MaxSize,
		UserAgent:            cfg.Document.UserAgent,
		AllowPrivateNetworks: cfg.Document.AllowPrivateNetworks,
	})
	extractor := document.NewExtractor(locator, downloader, logger, metrics)
	structurer := document.NewStructurer(document.StructurerConfig{
		Model:              cfg.LLM.StructuringModel,
		MaxTextLength:      cfg.Document.MaxTextLength,
		FallbackTextLength: cfg.Document.FallbackTextLength,
	}, generator, library, logger)

	cls := classifier.New(classifier.Config{
		Model:                 cfg.LLM.ClassificationModel,
		SnippetPages:          cfg.Tracker.SnippetPages,
		AbstractBackfillChars: cfg.Tracker.AbstractBackfillChars,
	}, generator, library, extractor, structurer, logger, metrics)

	var publisher notify.Publisher = notify.Nop{}
	if cfg.Kafka.Enabled {
		kp, err := notify.NewKafkaPublisher(notify.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		}, logger)
		if err != nil {
			if pooled != nil {
				pooled.Close()
			}
			return nil, fmt.Errorf("create event publisher: %w", err)
		}
		publisher = kp
	}

	orchestrator := pipeline.NewOrchestrator(pipeline.Config{
		MaxCitationsPerRun: cfg.Tracker.MaxCitationsPerRun,
		Concurrency:        cfg.Tracker.Concurrency,
		MaxRetries:         cfg.Tracker.MaxRetries,
	}, pipeline.Deps{
		Provider:    provider,
		Classifier:  cls,
		Summarizer:  pipeline.NewSummarizer(generator, library, cfg.LLM.SummarizationModel, logger),
		Writer:      artifact.NewMarkdownWriter(cfg.Tracker.SummaryDir, logger),
		Extractor:   extractor,
		Structurer:  structurer,
		Publisher:   publisher,
		LoadTargets: func() ([]targets.Target, error) { return targets.Load(cfg.Tracker.TargetsFile) },
		OpenLedger: func(ctx context.Context) (ledger.Store, error) {
			return ledger.Open(ctx, cfg.Ledger, cfg.Database, logger)
		},
	}, logger, metrics)

	return &app{orchestrator: orchestrator, publisher: publisher, search: pooled}, nil
}
