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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Resolve   ResolveConfig   `yaml:"resolve" mapstructure:"resolve"`
	Dedupe    DedupeConfig    `yaml:"dedupe" mapstructure:"dedupe"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Source    SourceConfig    `yaml:"source" mapstructure:"source"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int    `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int    `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings. An empty key switches the
// classifier to keyword rules.
type AnthropicConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	Model     string  `yaml:"model" mapstructure:"model"`
	MaxTokens int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	RPS       float64 `yaml:"rps" mapstructure:"rps"`
}

// ResolveConfig configures entity resolution.
type ResolveConfig struct {
	SimilarityThreshold float64             `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	AliasSeeds          map[string][]string `yaml:"alias_seeds" mapstructure:"alias_seeds"`
}

// DedupeConfig configures duplicate detection.
type DedupeConfig struct {
	AmountTolerance float64 `yaml:"amount_tolerance" mapstructure:"amount_tolerance"`
	DayWindow       int     `yaml:"day_window" mapstructure:"day_window"`
}

// PipelineConfig configures batch processing.
type PipelineConfig struct {
	MaxConcurrentArticles int `yaml:"max_concurrent_articles" mapstructure:"max_concurrent_articles"`
	BatchLimit            int `yaml:"batch_limit" mapstructure:"batch_limit"`
}

// SourceConfig configures feed ingestion.
type SourceConfig struct {
	Feeds       []string `yaml:"feeds" mapstructure:"feeds"`
	TimeoutSecs int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ServerConfig configures the read-only HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// defaultAliasSeeds maps well-known firms to the shorthand names articles
// use for them.
var defaultAliasSeeds = map[string][]string{
	"Sequoia Capital":              {"Sequoia"},
	"Andreessen Horowitz":          {"a16z"},
	"Breakthrough Energy Ventures": {"BEV"},
	"Google Ventures":              {"GV"},
	"Y Combinator":                 {"YC"},
	"Khosla Ventures":              {"Khosla"},
	"General Catalyst":             {"GC"},
	"Lowercarbon Capital":          {"Lowercarbon"},
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FUNDING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "funding.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 512)
	v.SetDefault("anthropic.rps", 2.0)
	v.SetDefault("resolve.similarity_threshold", 0.90)
	v.SetDefault("resolve.alias_seeds", defaultAliasSeeds)
	v.SetDefault("dedupe.amount_tolerance", 0.05)
	v.SetDefault("dedupe.day_window", 7)
	v.SetDefault("pipeline.max_concurrent_articles", 4)
	v.SetDefault("pipeline.batch_limit", 200)
	v.SetDefault("source.timeout_secs", 30)
	v.SetDefault("server.port", 8080)
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

// Validate rejects configurations that would corrupt downstream data
// rather than letting them run.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Resolve.SimilarityThreshold < 0 || c.Resolve.SimilarityThreshold > 1 {
		return eris.Errorf("config: similarity threshold %v outside [0, 1]", c.Resolve.SimilarityThreshold)
	}
	if c.Dedupe.AmountTolerance < 0 || c.Dedupe.AmountTolerance >= 1 {
		return eris.Errorf("config: amount tolerance %v outside [0, 1)", c.Dedupe.AmountTolerance)
	}
	if c.Dedupe.DayWindow < 0 {
		return eris.Errorf("config: negative day window %d", c.Dedupe.DayWindow)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return eris.Errorf("config: invalid server port %d", c.Server.Port)
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
