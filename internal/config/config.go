// Package config provides configuration management for the citation tracker service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "CITETRACK"

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Ledger driver constants.
const (
	LedgerDriverSQLite   = "sqlite"
	LedgerDriverPostgres = "postgres"
)

// Config holds all configuration for the citation tracker service.
type Config struct {
	// Tracker contains cycle scheduling and processing limits.
	Tracker TrackerConfig `mapstructure:"tracker"`
	// Ledger selects and configures the processing ledger backend.
	Ledger LedgerConfig `mapstructure:"ledger"`
	// Database contains PostgreSQL connection settings (postgres ledger driver only).
	Database DatabaseConfig `mapstructure:"database"`
	// Server contains status HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// LLM contains language model client settings.
	LLM LLMConfig `mapstructure:"llm"`
	// Document contains PDF acquisition and structuring settings.
	Document DocumentConfig `mapstructure:"document"`
	// PaperSources contains bibliographic and search API configurations.
	PaperSources PaperSourcesConfig `mapstructure:"paper_sources"`
	// Kafka contains citation event publisher settings.
	Kafka KafkaConfig `mapstructure:"kafka"`
}

// TrackerConfig holds the monitoring cycle settings.
type TrackerConfig struct {
	// CheckInterval is the pause between cycles in loop mode (default: 1h).
	CheckInterval time.Duration `mapstructure:"check_interval" validate:"gt=0"`
	// MaxCitationsPerRun caps how many new citing papers are processed per target per cycle.
	// Zero or negative disables the cap.
	MaxCitationsPerRun int `mapstructure:"max_citations_per_run"`
	// Concurrency bounds concurrently processed citing papers within a target.
	// Zero or negative means unbounded.
	Concurrency int `mapstructure:"concurrency"`
	// MaxRetries is the failure count at which a paper becomes permanently failed.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=1"`
	// TargetsFile is the JSON or YAML file listing target papers.
	TargetsFile string `mapstructure:"targets_file" validate:"required"`
	// SummaryDir is the root directory for Markdown summaries.
	SummaryDir string `mapstructure:"summary_dir" validate:"required"`
	// PromptsDir optionally overrides the embedded prompt templates.
	PromptsDir string `mapstructure:"prompts_dir"`
	// SnippetPages is the number of pages extracted for the first-pass excerpt.
	SnippetPages int `mapstructure:"snippet_pages" validate:"gte=1"`
	// AbstractBackfillChars bounds the abstract backfilled from extracted text.
	AbstractBackfillChars int `mapstructure:"abstract_backfill_chars" validate:"gte=1"`
}

// LedgerConfig holds processing ledger settings.
type LedgerConfig struct {
	// Driver selects the backend (sqlite, postgres).
	Driver string `mapstructure:"driver" validate:"oneof=sqlite postgres"`
	// SQLitePath is the database file for the sqlite driver.
	SQLitePath string `mapstructure:"sqlite_path"`
	// AutoMigrate applies pending schema migrations when the ledger is opened.
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// ServerConfig holds status server configuration.
type ServerConfig struct {
	// Enabled starts the status HTTP server alongside the tracker loop.
	Enabled bool `mapstructure:"enabled"`
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (use environment variable in production).
	Password string `mapstructure:"password"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool (default: 10).
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open (default: 1).
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
	// Namespace prefixes every metric name.
	Namespace string `mapstructure:"namespace"`
}

// LLMConfig holds LLM client configuration.
type LLMConfig struct {
	// Provider is the LLM provider (gemini, openai, anthropic).
	Provider string `mapstructure:"provider" validate:"oneof=gemini openai anthropic"`
	// StructuringModel turns raw text into named sections.
	StructuringModel string `mapstructure:"structuring_model" validate:"required"`
	// ClassificationModel runs both classifier stages.
	ClassificationModel string `mapstructure:"classification_model" validate:"required"`
	// SummarizationModel writes paper and base summaries.
	SummarizationModel string `mapstructure:"summarization_model" validate:"required"`
	// Timeout is the timeout for LLM API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxRetries is the maximum number of retries for transient failures.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0"`
	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// Temperature is the LLM temperature setting.
	Temperature float64 `mapstructure:"temperature" validate:"gte=0,lte=2"`
	// OpenAI contains OpenAI-specific settings.
	OpenAI OpenAIConfig `mapstructure:"openai"`
	// Anthropic contains Anthropic-specific settings.
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	// Gemini contains Google Gemini-specific settings.
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// OpenAIConfig holds OpenAI-specific settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key (loaded from CITETRACK_LLM_OPENAI_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// BaseURL is the OpenAI API base URL (for custom endpoints).
	BaseURL string `mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic-specific settings.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key (loaded from CITETRACK_LLM_ANTHROPIC_API_KEY env var).
	APIKey string `mapstructure:"-"`
	// BaseURL is the Anthropic API base URL (for custom endpoints).
	BaseURL string `mapstructure:"base_url"`
	// MaxTokens bounds each response.
	MaxTokens int `mapstructure:"max_tokens"`
}

// GeminiConfig holds Google Gemini-specific settings.
type GeminiConfig struct {
	// APIKey is the Gemini API key (loaded from CITETRACK_LLM_GEMINI_API_KEY or GEMINI_API_KEY).
	APIKey string `mapstructure:"-"`
	// BaseURL overrides the Gemini API endpoint.
	BaseURL string `mapstructure:"base_url"`
}

// DocumentConfig holds document acquisition settings.
type DocumentConfig struct {
	// DownloadTimeout bounds each PDF download.
	DownloadTimeout time.Duration `mapstructure:"download_timeout" validate:"gt=0"`
	// MaxSize is the largest accepted PDF in bytes.
	MaxSize int64 `mapstructure:"max_size" validate:"gt=0"`
	// UserAgent is sent with every download; some hosts reject default clients.
	UserAgent string `mapstructure:"user_agent" validate:"required"`
	// AllowPrivateNetworks permits downloads from loopback and private addresses.
	AllowPrivateNetworks bool `mapstructure:"allow_private_networks"`
	// LandingPageLookup enables reading citation_pdf_url from HTML landing pages.
	LandingPageLookup bool `mapstructure:"landing_page_lookup"`
	// MaxTextLength is the character budget sent to the structuring model.
	MaxTextLength int `mapstructure:"max_text_length" validate:"gt=0"`
	// FallbackTextLength is the raw text kept when structuring fails.
	FallbackTextLength int `mapstructure:"fallback_text_length" validate:"gt=0,ltfield=MaxTextLength"`
	// SearchWorkers is the size of the fallback search worker pool.
	SearchWorkers int `mapstructure:"search_workers" validate:"gte=1"`
	// SearchMaxResults is the number of search candidates inspected.
	SearchMaxResults int `mapstructure:"search_max_results" validate:"gte=1"`
}

// PaperSourcesConfig holds configuration for all paper source APIs.
type PaperSourcesConfig struct {
	// SemanticScholar is the bibliographic provider.
	SemanticScholar PaperSourceConfig `mapstructure:"semantic_scholar"`
	// ArXiv is the fallback search provider.
	ArXiv PaperSourceConfig `mapstructure:"arxiv"`
}

// PaperSourceConfig holds configuration for a single paper source API.
type PaperSourceConfig struct {
	// Enabled controls whether this source is used.
	Enabled bool `mapstructure:"enabled"`
	// APIKey is the API key (loaded from environment variable, e.g. CITETRACK_PAPER_SOURCES_SEMANTIC_SCHOLAR_API_KEY).
	APIKey string `mapstructure:"-"`
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit" validate:"gte=0"`
	// MaxRetries is the number of retries on rate-limit and server errors.
	MaxRetries int `mapstructure:"max_retries" validate:"gte=0"`
	// RetryDelay is the initial backoff delay, doubled on every retry.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// MaxResults is the maximum results per query.
	MaxResults int `mapstructure:"max_results"`
}

// KafkaConfig holds Kafka publisher settings for citation events.
type KafkaConfig struct {
	// Enabled controls whether Kafka publishing is active.
	Enabled bool `mapstructure:"enabled"`
	// Brokers is the list of Kafka broker addresses.
	Brokers []string `mapstructure:"brokers"`
	// Topic is the Kafka topic to publish citation events to.
	Topic string `mapstructure:"topic"`
	// BatchSize is the maximum number of messages to batch before sending.
	BatchSize int `mapstructure:"batch_size"`
	// BatchTimeout is the maximum time to wait for a batch to fill before sending.
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile loads configuration like Load, reading path instead of searching
// the default locations when path is not empty.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/citation-tracker-service")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// Config file not found is OK, we'll use env vars and defaults
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Secrets come exclusively from the environment.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// These fields are tagged with mapstructure:"-" to prevent loading from config files.
func loadSecrets(cfg *Config) {
	cfg.LLM.OpenAI.APIKey = os.Getenv(EnvPrefix + "_LLM_OPENAI_API_KEY")
	cfg.LLM.Anthropic.APIKey = os.Getenv(EnvPrefix + "_LLM_ANTHROPIC_API_KEY")
	cfg.LLM.Gemini.APIKey = firstEnv(EnvPrefix+"_LLM_GEMINI_API_KEY", "GEMINI_API_KEY")

	cfg.PaperSources.SemanticScholar.APIKey = firstEnv(
		EnvPrefix+"_PAPER_SOURCES_SEMANTIC_SCHOLAR_API_KEY",
		"SEMANTIC_SCHOLAR_API_KEY",
	)
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Tracker defaults
	v.SetDefault("tracker.check_interval", "1h")
	v.SetDefault("tracker.max_citations_per_run", 3)
	v.SetDefault("tracker.concurrency", 0)
	v.SetDefault("tracker.max_retries", 3)
	v.SetDefault("tracker.targets_file", "papers.json")
	v.SetDefault("tracker.summary_dir", "summaries")
	v.SetDefault("tracker.prompts_dir", "prompts")
	v.SetDefault("tracker.snippet_pages", 3)
	v.SetDefault("tracker.abstract_backfill_chars", 1500)

	// Ledger defaults
	v.SetDefault("ledger.driver", LedgerDriverSQLite)
	v.SetDefault("ledger.sqlite_path", "paper_agent.db")
	v.SetDefault("ledger.auto_migrate", true)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "citetrack")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "citation_tracker")
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")

	// Server defaults
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "citation_tracker")

	// LLM defaults
	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.structuring_model", "gemini-2.5-flash")
	v.SetDefault("llm.classification_model", "gemini-2.5-flash")
	v.SetDefault("llm.summarization_model", "gemini-2.5-pro")
	v.SetDefault("llm.timeout", "120s")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", "2s")
	v.SetDefault("llm.temperature", 0.2)
	// API keys are loaded exclusively from environment variables (see loadSecrets).
	v.SetDefault("llm.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.anthropic.base_url", "https://api.anthropic.com")
	v.SetDefault("llm.anthropic.max_tokens", 8192)
	v.SetDefault("llm.gemini.base_url", "")

	// Document defaults
	v.SetDefault("document.download_timeout", "30s")
	v.SetDefault("document.max_size", 100*1024*1024)
	v.SetDefault("document.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault("document.allow_private_networks", false)
	v.SetDefault("document.landing_page_lookup", true)
	v.SetDefault("document.max_text_length", 30000)
	v.SetDefault("document.fallback_text_length", 20000)
	v.SetDefault("document.search_workers", 2)
	v.SetDefault("document.search_max_results", 5)

	// Paper sources defaults - Semantic Scholar
	v.SetDefault("paper_sources.semantic_scholar.enabled", true)
	v.SetDefault("paper_sources.semantic_scholar.base_url", "https://api.semanticscholar.org/graph/v1")
	v.SetDefault("paper_sources.semantic_scholar.timeout", "30s")
	v.SetDefault("paper_sources.semantic_scholar.rate_limit", 1.0)
	v.SetDefault("paper_sources.semantic_scholar.max_retries", 5)
	v.SetDefault("paper_sources.semantic_scholar.retry_delay", "1s")
	v.SetDefault("paper_sources.semantic_scholar.max_results", 50)

	// Paper sources defaults - arXiv
	v.SetDefault("paper_sources.arxiv.enabled", true)
	v.SetDefault("paper_sources.arxiv.base_url", "https://export.arxiv.org/api")
	v.SetDefault("paper_sources.arxiv.timeout", "30s")
	v.SetDefault("paper_sources.arxiv.rate_limit", 0.33) // arXiv asks for one request every three seconds
	v.SetDefault("paper_sources.arxiv.max_retries", 3)
	v.SetDefault("paper_sources.arxiv.retry_delay", "3s")
	v.SetDefault("paper_sources.arxiv.max_results", 5)

	// Kafka defaults
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "events.citation_tracker")
	v.SetDefault("kafka.batch_size", 100)
	v.SetDefault("kafka.batch_timeout", "10ms")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return err
	}

	if c.Server.Enabled && (c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535) {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}

	switch c.Ledger.Driver {
	case LedgerDriverSQLite:
		if c.Ledger.SQLitePath == "" {
			return fmt.Errorf("ledger sqlite_path is required for the sqlite driver")
		}
	case LedgerDriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid database port: %d", c.Database.Port)
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
		}
	}

	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required when kafka is enabled")
	}

	// The configured LLM provider must have its API key set.
	switch strings.ToLower(c.LLM.Provider) {
	case "openai":
		if c.LLM.OpenAI.APIKey == "" {
			return fmt.Errorf("LLM provider %q requires %s_LLM_OPENAI_API_KEY to be set", c.LLM.Provider, EnvPrefix)
		}
	case "anthropic":
		if c.LLM.Anthropic.APIKey == "" {
			return fmt.Errorf("LLM provider %q requires %s_LLM_ANTHROPIC_API_KEY to be set", c.LLM.Provider, EnvPrefix)
		}
	case "gemini":
		if c.LLM.Gemini.APIKey == "" {
			return fmt.Errorf("LLM provider %q requires %s_LLM_GEMINI_API_KEY or GEMINI_API_KEY to be set", c.LLM.Provider, EnvPrefix)
		}
	}

	return nil
}
