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
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Catalog      CatalogConfig      `yaml:"catalog" mapstructure:"catalog"`
	Anthropic    AnthropicConfig    `yaml:"anthropic" mapstructure:"anthropic"`
	Conversation ConversationConfig `yaml:"conversation" mapstructure:"conversation"`
	Relaxation   RelaxationConfig   `yaml:"relaxation" mapstructure:"relaxation"`
	Validation   ValidationConfig   `yaml:"validation" mapstructure:"validation"`
	Padding      PaddingConfig      `yaml:"padding" mapstructure:"padding"`
	Budget       BudgetConfig       `yaml:"budget" mapstructure:"budget"`
	Batch        BatchConfig        `yaml:"batch" mapstructure:"batch"`
	Decisions    DecisionsConfig    `yaml:"decisions" mapstructure:"decisions"`
	Pricing      PricingConfig      `yaml:"pricing" mapstructure:"pricing"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// CatalogConfig holds music catalog API settings.
type CatalogConfig struct {
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	Key            string  `yaml:"key" mapstructure:"key"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Retries        int     `yaml:"retries" mapstructure:"retries"`
	RatePerSecond  float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	CallTimeoutSec int     `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ConversationConfig bounds the per-daypart selection conversation.
type ConversationConfig struct {
	MaxIterations   int `yaml:"max_iterations" mapstructure:"max_iterations"`
	TimeoutSecs     int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	EarlyStopWindow int `yaml:"early_stop_window" mapstructure:"early_stop_window"`
}

// RelaxationConfig configures the constraint relaxation ladder.
type RelaxationConfig struct {
	LadderPath string `yaml:"ladder_path" mapstructure:"ladder_path"`
	MaxLevels  int    `yaml:"max_levels" mapstructure:"max_levels"`
}

// ValidationConfig holds the scoring thresholds.
type ValidationConfig struct {
	ConstraintPass float64 `yaml:"constraint_pass" mapstructure:"constraint_pass"`
	FlowPass       float64 `yaml:"flow_pass" mapstructure:"flow_pass"`
	SmoothDelta    float64 `yaml:"smooth_delta" mapstructure:"smooth_delta"`
	ChoppyDelta    float64 `yaml:"choppy_delta" mapstructure:"choppy_delta"`
	FlowScale      float64 `yaml:"flow_scale" mapstructure:"flow_scale"`
}

// PaddingConfig configures duration padding.
type PaddingConfig struct {
	MinFillRatio    float64 `yaml:"min_fill_ratio" mapstructure:"min_fill_ratio"`
	MaxAttempts     int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	StartLevel      int     `yaml:"start_level" mapstructure:"start_level"`
	AvgTrackSeconds int     `yaml:"avg_track_seconds" mapstructure:"avg_track_seconds"`
}

// BudgetConfig configures batch cost control.
type BudgetConfig struct {
	TotalUSD             float64 `yaml:"total_usd" mapstructure:"total_usd"`
	Mode                 string  `yaml:"mode" mapstructure:"mode"`
	Allocation           string  `yaml:"allocation" mapstructure:"allocation"`
	EstimatedSlotCostUSD float64 `yaml:"estimated_slot_cost_usd" mapstructure:"estimated_slot_cost_usd"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// DecisionsConfig configures the decision log.
type DecisionsConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PricingConfig holds per-provider pricing rates.
type PricingConfig struct {
	Anthropic map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
	Catalog   CatalogPricing          `yaml:"catalog" mapstructure:"catalog"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// CatalogPricing holds catalog API pricing.
type CatalogPricing struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// ServerConfig configures the read-only API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PLAYLIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "playlist.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("catalog.base_url", "http://localhost:9090")
	v.SetDefault("catalog.timeout_secs", 10)
	v.SetDefault("catalog.retries", 3)
	v.SetDefault("catalog.rate_per_second", 5)
	v.SetDefault("catalog.call_timeout_secs", 10)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("conversation.max_iterations", 15)
	v.SetDefault("conversation.timeout_secs", 120)
	v.SetDefault("conversation.early_stop_window", 3)
	v.SetDefault("validation.constraint_pass", 0.80)
	v.SetDefault("validation.flow_pass", 0.70)
	v.SetDefault("validation.smooth_delta", 10)
	v.SetDefault("validation.choppy_delta", 20)
	v.SetDefault("validation.flow_scale", 50)
	v.SetDefault("padding.min_fill_ratio", 0.90)
	v.SetDefault("padding.max_attempts", 5)
	v.SetDefault("padding.start_level", 2)
	v.SetDefault("padding.avg_track_seconds", 210)
	v.SetDefault("budget.total_usd", 5.00)
	v.SetDefault("budget.mode", "hard")
	v.SetDefault("budget.allocation", "dynamic")
	v.SetDefault("budget.estimated_slot_cost_usd", 0.25)
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("decisions.path", "decisions.jsonl")
	v.SetDefault("pricing.catalog.per_query", 0.0002)

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

// Validate checks the fields required for the given run mode. Mode is
// "generate", "batch", or "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	generation := func() {
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
		if c.Catalog.BaseURL == "" {
			problems = append(problems, "catalog.base_url is required")
		}
		if c.Budget.TotalUSD <= 0 {
			problems = append(problems, "budget.total_usd must be > 0")
		}
		if m := c.Budget.Mode; m != "hard" && m != "suggested" {
			problems = append(problems, "budget.mode must be hard or suggested")
		}
		if a := c.Budget.Allocation; a != "fixed" && a != "dynamic" {
			problems = append(problems, "budget.allocation must be fixed or dynamic")
		}
		if c.Batch.Concurrency < 1 || c.Batch.Concurrency > 32 {
			problems = append(problems, "batch.concurrency must be between 1 and 32")
		}
		if c.Validation.ConstraintPass < 0 || c.Validation.ConstraintPass > 1 {
			problems = append(problems, "validation.constraint_pass must be between 0 and 1")
		}
		if c.Validation.FlowPass < 0 || c.Validation.FlowPass > 1 {
			problems = append(problems, "validation.flow_pass must be between 0 and 1")
		}
		if c.Padding.MinFillRatio <= 0 || c.Padding.MinFillRatio > 1 {
			problems = append(problems, "padding.min_fill_ratio must be in (0, 1]")
		}
	}

	switch mode {
	case "generate", "batch":
		generation()
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
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
