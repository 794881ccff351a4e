package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. APICHECK_LOG_LEVEL
const EnvPrefix = "APICHECK"

// Config is the complete apicheck configuration
type Config struct {
	Log   LogConfig   `mapstructure:"log"`
	Specs SpecsConfig `mapstructure:"specs"`
	Batch BatchConfig `mapstructure:"batch"`
	Check CheckConfig `mapstructure:"check"`
}

// LogConfig configures the logger
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// SpecsConfig locates the OpenAPI documents
type SpecsConfig struct {
	Dir string `mapstructure:"dir"`
}

// BatchConfig configures the batch runner
type BatchConfig struct {
	Concurrency int    `mapstructure:"concurrency"`
	Seed        uint64 `mapstructure:"seed"`
}

// CheckConfig configures the request checker
type CheckConfig struct {
	CollectAll bool `mapstructure:"collect_all"`
	Audit      bool `mapstructure:"audit"`
}

// SetDefaults registers the default value of every key on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("specs.dir", "APIs")
	v.SetDefault("batch.concurrency", 1)
	v.SetDefault("batch.seed", 0)
	v.SetDefault("check.collect_all", false)
	v.SetDefault("check.audit", true)
}

// New returns a viper instance with defaults, env overrides and the config
// search path registered. When file is non-empty only that file is read.
func New(file string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		return v
	}

	v.SetConfigName("apicheck")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "apicheck"))
	}
	return v
}

// Load reads the config file, if any, and decodes the merged settings.
// A missing config file is not an error.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to decode config: %w", err)
	}

	if cfg.Batch.Concurrency < 1 {
		cfg.Batch.Concurrency = 1
	}

	return cfg, nil
}
