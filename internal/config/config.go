// Package config loads application configuration from config.yaml and
// PFAS_-prefixed environment variables.
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
	Data      DataConfig      `yaml:"data" mapstructure:"data"`
	Watershed WatershedConfig `yaml:"watershed" mapstructure:"watershed"`
	Elevation ElevationConfig `yaml:"elevation" mapstructure:"elevation"`
	Link      LinkConfig      `yaml:"link" mapstructure:"link"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// DataConfig locates input datasets and output artifacts on disk.
type DataConfig struct {
	Dir        string `yaml:"dir" mapstructure:"dir"`
	OutDir     string `yaml:"out_dir" mapstructure:"out_dir"`
	SourcesYML string `yaml:"sources_yml" mapstructure:"sources_yml"`
}

// WatershedConfig configures the HUC-12 boundary dataset.
type WatershedConfig struct {
	ShapefilePath string `yaml:"shapefile_path" mapstructure:"shapefile_path"`
	HUCField      string `yaml:"huc_field" mapstructure:"huc_field"`
}

// ElevationConfig configures the external elevation service client.
type ElevationConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Dataset     string  `yaml:"dataset" mapstructure:"dataset"`
	BatchSize   int     `yaml:"batch_size" mapstructure:"batch_size"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
}

// LinkConfig configures the facility-source join stage.
type LinkConfig struct {
	TotalFacilities int `yaml:"total_facilities" mapstructure:"total_facilities"`
	Threshold       int `yaml:"threshold" mapstructure:"threshold"`
}

// PipelineConfig configures pipeline fan-out across source types.
type PipelineConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
}

// ServerConfig configures the read-only HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from config.yaml (optional) and environment
// variables prefixed with PFAS_.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PFAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "pfas.db")
	v.SetDefault("data.dir", "data")
	v.SetDefault("data.out_dir", "out")
	v.SetDefault("data.sources_yml", "sources.yaml")
	v.SetDefault("watershed.huc_field", "HUC12")
	v.SetDefault("elevation.base_url", "https://api.opentopodata.org/v1")
	v.SetDefault("elevation.dataset", "ned10m")
	v.SetDefault("elevation.batch_size", 100)
	v.SetDefault("elevation.rate_limit", 1.0)
	v.SetDefault("elevation.timeout_secs", 60)
	v.SetDefault("elevation.max_retries", 3)
	v.SetDefault("link.total_facilities", 6135)
	v.SetDefault("link.threshold", 1)
	v.SetDefault("pipeline.max_concurrent", 4)
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
