package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Dedupe     DedupeConfig     `yaml:"dedupe" mapstructure:"dedupe"`
	Priority   PriorityConfig   `yaml:"priority" mapstructure:"priority"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	Batch      BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the key-value backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // memory, sqlite, postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// CacheConfig sets time-to-live for cached artifacts. Zero means no expiry.
type CacheConfig struct {
	CandidateTTLHours int `yaml:"candidate_ttl_hours" mapstructure:"candidate_ttl_hours"`
	ScoreTTLHours     int `yaml:"score_ttl_hours" mapstructure:"score_ttl_hours"`
	CleanupMinutes    int `yaml:"cleanup_minutes" mapstructure:"cleanup_minutes"`
}

// DedupeConfig configures identity resolution.
type DedupeConfig struct {
	SimilarityThreshold float64  `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	AutoMergeThreshold  float64  `yaml:"auto_merge_threshold" mapstructure:"auto_merge_threshold"`
	FuzzyNameThreshold  float64  `yaml:"fuzzy_name_threshold" mapstructure:"fuzzy_name_threshold"`
	UsePhonetic         bool     `yaml:"use_phonetic" mapstructure:"use_phonetic"`
	AutoMerge           bool     `yaml:"auto_merge" mapstructure:"auto_merge"`
	Workers             int      `yaml:"workers" mapstructure:"workers"`
	IgnoredEmailDomains []string `yaml:"ignored_email_domains" mapstructure:"ignored_email_domains"`
	LLMAdjust           bool     `yaml:"llm_adjust" mapstructure:"llm_adjust"`
}

// PriorityWeights are the component weights of the priority score.
type PriorityWeights struct {
	Revenue      float64 `yaml:"revenue" mapstructure:"revenue"`
	Procurement  float64 `yaml:"procurement" mapstructure:"procurement"`
	Partnership  float64 `yaml:"partnership" mapstructure:"partnership"`
	DataQuality  float64 `yaml:"data_quality" mapstructure:"data_quality"`
	Geographic   float64 `yaml:"geographic" mapstructure:"geographic"`
	Industry     float64 `yaml:"industry" mapstructure:"industry"`
	Indigenous   float64 `yaml:"indigenous" mapstructure:"indigenous"`
	Relationship float64 `yaml:"relationship" mapstructure:"relationship"`
}

// PriorityConfig configures priority scoring.
type PriorityConfig struct {
	Weights     PriorityWeights `yaml:"weights" mapstructure:"weights"`
	ProfilePath string          `yaml:"profile_path" mapstructure:"profile_path"`
	Refine      bool            `yaml:"refine" mapstructure:"refine"`
	Workers     int             `yaml:"workers" mapstructure:"workers"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ResilienceConfig configures guards around external collaborators.
type ResilienceConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	FailureThreshold int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int     `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
	RatePerSecond    float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
}

// BatchConfig configures batch ingestion.
type BatchConfig struct {
	MaxRecords int `yaml:"max_records" mapstructure:"max_records"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultIgnoredEmailDomains are free-mail providers whose domains say
// nothing about organization identity.
var DefaultIgnoredEmailDomains = []string{
	"gmail.com", "yahoo.com", "yahoo.ca", "hotmail.com", "hotmail.ca",
	"outlook.com", "live.com", "icloud.com", "aol.com", "shaw.ca",
	"telus.net", "sympatico.ca", "rogers.com",
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ORGMATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("cache.candidate_ttl_hours", 24)
	v.SetDefault("cache.score_ttl_hours", 24*7)
	v.SetDefault("cache.cleanup_minutes", 10)
	v.SetDefault("dedupe.similarity_threshold", 0.7)
	v.SetDefault("dedupe.auto_merge_threshold", 0.9)
	v.SetDefault("dedupe.fuzzy_name_threshold", 0.8)
	v.SetDefault("dedupe.use_phonetic", true)
	v.SetDefault("dedupe.auto_merge", true)
	v.SetDefault("dedupe.workers", 4)
	v.SetDefault("dedupe.ignored_email_domains", DefaultIgnoredEmailDomains)
	v.SetDefault("dedupe.llm_adjust", false)
	v.SetDefault("priority.weights.revenue", 0.25)
	v.SetDefault("priority.weights.procurement", 0.20)
	v.SetDefault("priority.weights.partnership", 0.15)
	v.SetDefault("priority.weights.data_quality", 0.10)
	v.SetDefault("priority.weights.geographic", 0.10)
	v.SetDefault("priority.weights.industry", 0.10)
	v.SetDefault("priority.weights.indigenous", 0.05)
	v.SetDefault("priority.weights.relationship", 0.05)
	v.SetDefault("priority.refine", false)
	v.SetDefault("priority.workers", 4)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 512)
	v.SetDefault("resilience.max_attempts", 3)
	v.SetDefault("resilience.initial_backoff_ms", 500)
	v.SetDefault("resilience.max_backoff_ms", 10_000)
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.reset_timeout_secs", 30)
	v.SetDefault("resilience.rate_per_second", 2)
	v.SetDefault("batch.max_records", 50_000)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings needed by the given mode are present
// and consistent. Modes: dedupe, score, run, serve. Priority weights are
// checked by the priority engine, which may normalize them.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "dedupe", "score", "run", "serve":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	d := c.Dedupe
	if mode != "score" {
		if d.SimilarityThreshold <= 0 || d.SimilarityThreshold > 1 {
			errs = append(errs, "dedupe.similarity_threshold must be in (0, 1]")
		}
		if d.AutoMergeThreshold <= 0 || d.AutoMergeThreshold > 1 {
			errs = append(errs, "dedupe.auto_merge_threshold must be in (0, 1]")
		}
		if d.AutoMergeThreshold < d.SimilarityThreshold {
			errs = append(errs, "dedupe.auto_merge_threshold must be >= dedupe.similarity_threshold")
		}
		if d.FuzzyNameThreshold < 0 || d.FuzzyNameThreshold > 1 {
			errs = append(errs, "dedupe.fuzzy_name_threshold must be in [0, 1]")
		}
		if d.Workers < 1 || d.Workers > 64 {
			errs = append(errs, "dedupe.workers must be between 1 and 64")
		}
	}
	if mode != "dedupe" && (c.Priority.Workers < 1 || c.Priority.Workers > 64) {
		errs = append(errs, "priority.workers must be between 1 and 64")
	}
	if (d.LLMAdjust || c.Priority.Refine) && c.Anthropic.Key == "" {
		errs = append(errs, "anthropic.key is required when dedupe.llm_adjust or priority.refine is set")
	}
	if mode == "serve" && c.Server.Port <= 0 {
		errs = append(errs, "server.port must be > 0")
	}

	switch c.Store.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for "+c.Store.Driver)
		}
	default:
		errs = append(errs, "store.driver must be one of memory, sqlite, postgres")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

// DefaultDedupeConfig returns the dedupe settings Load would produce with no
// file or environment overrides.
func DefaultDedupeConfig() DedupeConfig {
	return DedupeConfig{
		SimilarityThreshold: 0.7,
		AutoMergeThreshold:  0.9,
		FuzzyNameThreshold:  0.8,
		UsePhonetic:         true,
		AutoMerge:           true,
		Workers:             4,
		IgnoredEmailDomains: DefaultIgnoredEmailDomains,
	}
}

// DefaultPriorityWeights returns the standard component weights (sum = 1).
func DefaultPriorityWeights() PriorityWeights {
	return PriorityWeights{
		Revenue:      0.25,
		Procurement:  0.20,
		Partnership:  0.15,
		DataQuality:  0.10,
		Geographic:   0.10,
		Industry:     0.10,
		Indigenous:   0.05,
		Relationship: 0.05,
	}
}
