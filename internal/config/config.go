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
	ITSP    ITSPConfig    `yaml:"itsp" mapstructure:"itsp"`
	Shopify ShopifyConfig `yaml:"shopify" mapstructure:"shopify"`
	Recon   ReconConfig   `yaml:"recon" mapstructure:"recon"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// ITSPConfig holds ITSP (warehouse/ERP) API settings.
type ITSPConfig struct {
	BaseURL             string `yaml:"base_url" mapstructure:"base_url"`
	Username            string `yaml:"username" mapstructure:"username"`
	Password            string `yaml:"password" mapstructure:"password"`
	PageSize            int    `yaml:"page_size" mapstructure:"page_size"`
	MaxRateLimitRetries int    `yaml:"max_rate_limit_retries" mapstructure:"max_rate_limit_retries"`
	RateLimitDelaySecs  int    `yaml:"rate_limit_delay_secs" mapstructure:"rate_limit_delay_secs"`
	RequestsPerSecond   int    `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// ShopifySource identifies one backing store (live or archive).
type ShopifySource struct {
	AccessToken string `yaml:"access_token" mapstructure:"access_token"`
	GraphQLURL  string `yaml:"graphql_url" mapstructure:"graphql_url"`
}

// ShopifyConfig holds the analytics query API settings for both sources.
type ShopifyConfig struct {
	Live             ShopifySource `yaml:"live" mapstructure:"live"`
	Archive          ShopifySource `yaml:"archive" mapstructure:"archive"`
	BatchSize        int           `yaml:"batch_size" mapstructure:"batch_size"`
	MaxRetries       int           `yaml:"max_retries" mapstructure:"max_retries"`
	InitialDelaySecs int           `yaml:"initial_delay_secs" mapstructure:"initial_delay_secs"`
}

// ReconConfig scopes which records participate in the reconciliation.
type ReconConfig struct {
	Subsidiary string `yaml:"subsidiary" mapstructure:"subsidiary"`
	Channel    string `yaml:"channel" mapstructure:"channel"`
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
	v.SetEnvPrefix("RECON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Secrets default to empty so AutomaticEnv can bind them.
	v.SetDefault("itsp.base_url", "")
	v.SetDefault("itsp.username", "")
	v.SetDefault("itsp.password", "")
	v.SetDefault("shopify.live.access_token", "")
	v.SetDefault("shopify.live.graphql_url", "")
	v.SetDefault("shopify.archive.access_token", "")
	v.SetDefault("shopify.archive.graphql_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("itsp.page_size", 250)
	v.SetDefault("itsp.max_rate_limit_retries", 10)
	v.SetDefault("itsp.rate_limit_delay_secs", 4)
	v.SetDefault("itsp.requests_per_second", 4)
	v.SetDefault("shopify.batch_size", 3000)
	v.SetDefault("shopify.max_retries", 5)
	v.SetDefault("shopify.initial_delay_secs", 5)
	v.SetDefault("recon.subsidiary", "Fab BV")
	v.SetDefault("recon.channel", "B2C order")

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
