// Package config provides configuration loading and validation for the ccr
// tool.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidMaxRootPaths = errors.New("max root paths must be positive")
	ErrInvalidTrainRatio   = errors.New("train ratio must be between 0 and 1 exclusive")
	ErrInvalidPNRatio      = errors.New("positive-negative ratio must be in (0, 1]")
	ErrInvalidVocabKeep    = errors.New("vocabulary keep count must be positive")
	ErrInvalidVocabNoAbove = errors.New("vocabulary no-above fraction must be in (0, 1]")
	ErrInvalidWorkers      = errors.New("worker count must not be negative")
)

// Config holds all configuration for ccr.
type Config struct {
	Parser    ParserConfig    `mapstructure:"parser"    yaml:"parser"`
	Cache     CacheConfig     `mapstructure:"cache"     yaml:"cache"`
	Dataset   DatasetConfig   `mapstructure:"dataset"   yaml:"dataset"`
	Corpus    CorpusConfig    `mapstructure:"corpus"    yaml:"corpus"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"  yaml:"pipeline"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
}

// ParserConfig controls parsing and root-path extraction.
type ParserConfig struct {
	// Language forces a grammar; empty means detect per file.
	Language     string `mapstructure:"language"       yaml:"language"`
	MaxRootPaths int    `mapstructure:"max_root_paths" yaml:"max_root_paths"`
}

// CacheConfig controls the snapshot cache.
type CacheConfig struct {
	Directory    string `mapstructure:"directory"     yaml:"directory"`
	MemoryBudget string `mapstructure:"memory_budget" yaml:"memory_budget"`
	DiskEnabled  bool   `mapstructure:"disk_enabled"  yaml:"disk_enabled"`
}

// DatasetConfig controls splitting and sampling.
type DatasetConfig struct {
	Seed       int64   `mapstructure:"seed"        yaml:"seed"`
	TrainRatio float64 `mapstructure:"train_ratio" yaml:"train_ratio"`
	PNRatio    float64 `mapstructure:"pn_ratio"    yaml:"pn_ratio"`
}

// CorpusConfig controls vocabulary construction.
type CorpusConfig struct {
	VocabKeep    int     `mapstructure:"vocab_keep"     yaml:"vocab_keep"`
	VocabNoBelow int     `mapstructure:"vocab_no_below" yaml:"vocab_no_below"`
	VocabNoAbove float64 `mapstructure:"vocab_no_above" yaml:"vocab_no_above"`
}

// PipelineConfig controls the batch corpus builder.
type PipelineConfig struct {
	ReposDir     string        `mapstructure:"repos_dir"     yaml:"repos_dir"`
	OutDir       string        `mapstructure:"out_dir"       yaml:"out_dir"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" yaml:"fetch_timeout"`
	Workers      int           `mapstructure:"workers"       yaml:"workers"`
	FetchRetries int           `mapstructure:"fetch_retries" yaml:"fetch_retries"`
}

// MarshalYAML renders FetchTimeout in duration notation ("30s") instead of
// integer nanoseconds.
func (p PipelineConfig) MarshalYAML() (any, error) {
	return struct {
		ReposDir     string `yaml:"repos_dir"`
		OutDir       string `yaml:"out_dir"`
		FetchTimeout string `yaml:"fetch_timeout"`
		Workers      int    `yaml:"workers"`
		FetchRetries int    `yaml:"fetch_retries"`
	}{p.ReposDir, p.OutDir, p.FetchTimeout.String(), p.Workers, p.FetchRetries}, nil
}

// TelemetryConfig controls logging and exporters.
type TelemetryConfig struct {
	LogLevel     string `mapstructure:"log_level"     yaml:"log_level"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	MetricsAddr  string `mapstructure:"metrics_addr"  yaml:"metrics_addr"`
	LogJSON      bool   `mapstructure:"log_json"      yaml:"log_json"`
}

// Load reads configuration from an optional file path, the environment, and
// built-in defaults, in ascending precedence of file over defaults and
// environment over file.
func Load(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(".ccr")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("$HOME")
	}

	viperCfg.SetEnvPrefix("CCR")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	// Parser defaults.
	viperCfg.SetDefault("parser.language", DefaultLanguage)
	viperCfg.SetDefault("parser.max_root_paths", DefaultMaxRootPaths)

	// Cache defaults.
	viperCfg.SetDefault("cache.directory", DefaultCacheDirectory)
	viperCfg.SetDefault("cache.memory_budget", DefaultCacheMemoryBudget)
	viperCfg.SetDefault("cache.disk_enabled", DefaultCacheDiskEnabled)

	// Dataset defaults.
	viperCfg.SetDefault("dataset.seed", DefaultDatasetSeed)
	viperCfg.SetDefault("dataset.train_ratio", DefaultDatasetTrainRatio)
	viperCfg.SetDefault("dataset.pn_ratio", DefaultDatasetPNRatio)

	// Corpus defaults.
	viperCfg.SetDefault("corpus.vocab_keep", DefaultVocabKeep)
	viperCfg.SetDefault("corpus.vocab_no_below", DefaultVocabNoBelow)
	viperCfg.SetDefault("corpus.vocab_no_above", DefaultVocabNoAbove)

	// Pipeline defaults.
	viperCfg.SetDefault("pipeline.workers", DefaultPipelineWorkers)
	viperCfg.SetDefault("pipeline.repos_dir", DefaultPipelineReposDir)
	viperCfg.SetDefault("pipeline.out_dir", DefaultPipelineOutDir)
	viperCfg.SetDefault("pipeline.fetch_retries", DefaultPipelineFetchRetries)
	viperCfg.SetDefault("pipeline.fetch_timeout", DefaultPipelineFetchTimeout)

	// Telemetry defaults.
	viperCfg.SetDefault("telemetry.log_level", DefaultLogLevel)
	viperCfg.SetDefault("telemetry.log_json", DefaultLogJSON)
	viperCfg.SetDefault("telemetry.otlp_endpoint", DefaultOTLPEndpoint)
	viperCfg.SetDefault("telemetry.metrics_addr", DefaultMetricsAddr)
}

// Validate checks the configuration's value ranges.
func (c *Config) Validate() error {
	if c.Parser.MaxRootPaths <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxRootPaths, c.Parser.MaxRootPaths)
	}

	if c.Dataset.TrainRatio <= 0 || c.Dataset.TrainRatio >= 1 {
		return fmt.Errorf("%w: %g", ErrInvalidTrainRatio, c.Dataset.TrainRatio)
	}

	if c.Dataset.PNRatio <= 0 || c.Dataset.PNRatio > 1 {
		return fmt.Errorf("%w: %g", ErrInvalidPNRatio, c.Dataset.PNRatio)
	}

	if c.Corpus.VocabKeep <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidVocabKeep, c.Corpus.VocabKeep)
	}

	if c.Corpus.VocabNoAbove <= 0 || c.Corpus.VocabNoAbove > 1 {
		return fmt.Errorf("%w: %g", ErrInvalidVocabNoAbove, c.Corpus.VocabNoAbove)
	}

	if c.Pipeline.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Pipeline.Workers)
	}

	return nil
}
