// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rovshanmuradov/losscheck/internal/chain"
	"github.com/rovshanmuradov/losscheck/internal/registry"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Wallet           string                   `mapstructure:"wallet"`
	Chain            string                   `mapstructure:"chain"`
	ChainName        string                   `mapstructure:"chain_name"`
	QuoteCurrency    string                   `mapstructure:"quote_currency"`
	CovalentAPIKey   string                   `mapstructure:"covalent_api_key"`
	CovalentBaseURL  string                   `mapstructure:"covalent_base_url"`
	Workers          int                      `mapstructure:"workers"`
	Retries          int                      `mapstructure:"retries"`
	RequestTimeoutMs int                      `mapstructure:"request_timeout_ms"`
	RateLimitPerSec  float64                  `mapstructure:"rate_limit_per_sec"`
	PriceCacheTTLMin int                      `mapstructure:"price_cache_ttl_min"`
	PriceCacheDir    string                   `mapstructure:"price_cache_dir"`
	MetricsAddr      string                   `mapstructure:"metrics_addr"`
	DebugLogging     bool                     `mapstructure:"debug_logging"`
	LogFile          string                   `mapstructure:"log_file"`
	OutputDir        string                   `mapstructure:"output_dir"`
	Assets           []registry.AssetMetadata `mapstructure:"assets"`
}

const (
	DefaultChain            = chain.EVM
	DefaultChainName        = "eth-mainnet"
	DefaultQuoteCurrency    = "USD"
	DefaultCovalentBaseURL  = "https://api.covalenthq.com/v1"
	DefaultWorkers          = 4
	DefaultRetries          = 3
	DefaultRequestTimeoutMs = 20000
	DefaultRateLimitPerSec  = 4
	DefaultPriceCacheTTLMin = 60
	DefaultOutputDir        = "."

	envPrefix = "LOSSCHECK"
)

// LoadConfig reads path (JSON or YAML) over the defaults and applies
// LOSSCHECK_* environment overrides. An empty path loads defaults and
// environment only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	defaults := map[string]interface{}{
		"chain":               DefaultChain,
		"chain_name":          DefaultChainName,
		"quote_currency":      DefaultQuoteCurrency,
		"covalent_base_url":   DefaultCovalentBaseURL,
		"workers":             DefaultWorkers,
		"retries":             DefaultRetries,
		"request_timeout_ms":  DefaultRequestTimeoutMs,
		"rate_limit_per_sec":  DefaultRateLimitPerSec,
		"price_cache_ttl_min": DefaultPriceCacheTTLMin,
		"output_dir":          DefaultOutputDir,
		"wallet":              "",
		"covalent_api_key":    "",
		"price_cache_dir":     "",
		"metrics_addr":        "",
		"debug_logging":       false,
		"log_file":            "",
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return &cfg, validateConfig(&cfg)
}

// Validate re-checks a config after callers override fields.
func (c *Config) Validate() error {
	return validateConfig(c)
}

// RequestTimeout is the per-request HTTP timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// PriceCacheTTL is the lifetime of in-memory price entries.
func (c *Config) PriceCacheTTL() time.Duration {
	return time.Duration(c.PriceCacheTTLMin) * time.Minute
}

func validateConfig(cfg *Config) error {
	codec, err := chain.ForChain(cfg.Chain)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if cfg.Wallet != "" {
		if _, err := codec.Canonical(cfg.Wallet); err != nil {
			return fmt.Errorf("%w: wallet: %v", ErrInvalid, err)
		}
	}
	if cfg.ChainName == "" {
		return fmt.Errorf("%w: chain_name is empty", ErrInvalid)
	}
	if cfg.QuoteCurrency == "" {
		return fmt.Errorf("%w: quote_currency is empty", ErrInvalid)
	}
	if err := validateURL(cfg.CovalentBaseURL, "http"); err != nil {
		return fmt.Errorf("%w: covalent_base_url: %v", ErrInvalid, err)
	}
	if err := validateNumericParams(cfg); err != nil {
		return err
	}
	for i, a := range cfg.Assets {
		if a.ID == "" {
			return fmt.Errorf("%w: assets[%d] has no id", ErrInvalid, i)
		}
	}
	return nil
}

func validateNumericParams(cfg *Config) error {
	if cfg.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0", ErrInvalid)
	}
	if cfg.Retries < 0 {
		return fmt.Errorf("%w: retries must be >= 0", ErrInvalid)
	}
	if cfg.RequestTimeoutMs <= 0 {
		return fmt.Errorf("%w: request_timeout_ms must be > 0", ErrInvalid)
	}
	if cfg.RateLimitPerSec < 0 {
		return fmt.Errorf("%w: rate_limit_per_sec must be >= 0", ErrInvalid)
	}
	if cfg.PriceCacheTTLMin < 0 {
		return fmt.Errorf("%w: price_cache_ttl_min must be >= 0", ErrInvalid)
	}
	return nil
}

func validateURL(rawURL string, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) || parsed.Host == "" {
		return errors.New("invalid URL protocol")
	}
	return nil
}
