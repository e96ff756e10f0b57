package common

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Extract ExtractConfig
	Batch   BatchConfig
	Log     LogConfig
}

// ExtractConfig holds settings for the external extraction endpoint.
type ExtractConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// BatchConfig holds settings for the batch orchestrator.
type BatchConfig struct {
	// TickInterval is the fixed wall-clock schedule the cosmetic phase
	// ticker advances on. It never gates the real pipeline.
	TickInterval time.Duration
	// ResultsDelay is the pause between the last record finishing and the
	// success notification, so the final phase is visible.
	ResultsDelay time.Duration
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string
}

// LoadConfig reads configuration from a chartscan.yaml (if present) and the
// CHARTSCAN_* environment, with sensible defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("chartscan")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/chartscan")

	v.SetEnvPrefix("CHARTSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("extract.base_url", "https://api.chartscan.dev")
	v.SetDefault("extract.timeout", 45*time.Second)
	v.SetDefault("batch.tick_interval", 900*time.Millisecond)
	v.SetDefault("batch.results_delay", 600*time.Millisecond)
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, WrapError(err, "read config")
		}
	}

	return &Config{
		Extract: ExtractConfig{
			BaseURL: v.GetString("extract.base_url"),
			APIKey:  v.GetString("extract.api_key"),
			Timeout: v.GetDuration("extract.timeout"),
		},
		Batch: BatchConfig{
			TickInterval: v.GetDuration("batch.tick_interval"),
			ResultsDelay: v.GetDuration("batch.results_delay"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
		},
	}, nil
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Extract.BaseURL == "" {
		return NewAppError("CONFIG_ERROR", "extract.base_url is required", ErrInvalidInput)
	}
	if c.Extract.Timeout <= 0 {
		return NewAppError("CONFIG_ERROR", "extract.timeout must be positive", ErrInvalidInput)
	}
	return nil
}
