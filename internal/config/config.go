package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Database     string   `mapstructure:"database"`
	Suffix       string   `mapstructure:"suffix"`
	MaxEntrySize int64    `mapstructure:"max_entry_size"`
	Classpath    []string `mapstructure:"classpath"`
	LogLevel     string   `mapstructure:"log_level"`
	LogFormat    string   `mapstructure:"log_format"`
}

// Load reads configuration from file and JARNEST_* environment variables
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("database", "jarnest.db")
	v.SetDefault("suffix", ".jar")
	v.SetDefault("max_entry_size", 128<<20)
	v.SetDefault("classpath", []string{})
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetEnvPrefix("jarnest")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// Config file handling
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}

		v.AddConfigPath(home)
		v.AddConfigPath(".")
		v.SetConfigName("jarnest")
		v.SetConfigType("yaml")
	}

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that may have been overridden after Load
func (c *Config) Validate() error {
	if err := validateSuffix(c.Suffix); err != nil {
		return fmt.Errorf("invalid suffix configuration: %w", err)
	}
	if err := validateMaxEntrySize(c.MaxEntrySize); err != nil {
		return fmt.Errorf("invalid max_entry_size configuration: %w", err)
	}
	if err := validateLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level configuration: %w", err)
	}
	if err := validateLogFormat(c.LogFormat); err != nil {
		return fmt.Errorf("invalid log_format configuration: %w", err)
	}
	return nil
}
