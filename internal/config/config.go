// Package config builds the prober configuration via Viper. Values come from
// the INPUT_* environment variables a CI action runner sets, optionally layered
// on top of a YAML file. All struct fields map 1-to-1 with the YAML keys.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Non-200 handling policies.
const (
	PolicyIgnore = "ignore" // non-200 responses neither count nor sleep
	PolicyCount  = "count"  // non-200 responses count as failed trials
)

// Log output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// EnvPrefix is prepended to every key when reading the environment,
// e.g. max_trials is read from INPUT_MAX_TRIALS.
const EnvPrefix = "INPUT"

// Config is the top-level prober configuration.
type Config struct {
	URL         string  `mapstructure:"url"`
	Delay       int     `mapstructure:"delay"`      // seconds between counted failures
	MaxTrials   int     `mapstructure:"max_trials"` // ceiling on counted failures
	Timeout     string  `mapstructure:"timeout"`    // per-request, "0" is unbounded
	NonOKPolicy string  `mapstructure:"non_ok_policy"`
	MaxRPS      float64 `mapstructure:"max_rps"` // 0 disables request pacing
	LogFormat   string  `mapstructure:"log_format"`
}

// ParsedDelay returns the delay as a time.Duration. Negative values clamp to 0.
func (c Config) ParsedDelay() time.Duration {
	if c.Delay <= 0 {
		return 0
	}
	return time.Duration(c.Delay) * time.Second
}

// ParsedTimeout returns the request timeout, or 0 for no timeout.
func (c Config) ParsedTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	if d <= 0 {
		return 0
	}
	return d
}

// CountNonOK reports whether non-200 responses consume a trial.
func (c Config) CountNonOK() bool {
	return c.NonOKPolicy == PolicyCount
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Delay:       5,
		MaxTrials:   10,
		Timeout:     "0",
		NonOKPolicy: PolicyIgnore,
		MaxRPS:      10,
		LogFormat:   FormatText,
	}
}

// Load reads the environment and, if path is non-empty, the YAML file at path.
// Environment values take precedence over the file.
func Load(path string) (Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: reading %q: %w", path, err)
		}
	}
	return unmarshal(v)
}

var keys = []string{
	"url",
	"delay",
	"max_trials",
	"timeout",
	"non_ok_policy",
	"max_rps",
	"log_format",
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)

	d := Default()
	v.SetDefault("url", "")
	v.SetDefault("delay", d.Delay)
	v.SetDefault("max_trials", d.MaxTrials)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("non_ok_policy", d.NonOKPolicy)
	v.SetDefault("max_rps", d.MaxRPS)
	v.SetDefault("log_format", d.LogFormat)

	for _, k := range keys {
		// BindEnv only fails when called without a key.
		_ = v.BindEnv(k)
	}
	return v
}

func unmarshal(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing: %w", err)
	}

	cfg.URL = strings.TrimSpace(cfg.URL)
	cfg.NonOKPolicy = strings.ToLower(strings.TrimSpace(cfg.NonOKPolicy))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))

	if cfg.URL == "" {
		return Config{}, fmt.Errorf("config: %s_URL must be set", EnvPrefix)
	}
	// delay and max_trials are passed through as given: a negative delay
	// sleeps for nothing and max_trials < 1 fails without any request.
	if cfg.Timeout != "" && cfg.Timeout != "0" {
		if _, err := time.ParseDuration(cfg.Timeout); err != nil {
			return Config{}, fmt.Errorf("config: timeout %q: %w", cfg.Timeout, err)
		}
	}
	switch cfg.NonOKPolicy {
	case PolicyIgnore, PolicyCount:
	default:
		return Config{}, fmt.Errorf("config: non_ok_policy must be %q or %q, got %q",
			PolicyIgnore, PolicyCount, cfg.NonOKPolicy)
	}
	switch cfg.LogFormat {
	case FormatText, FormatJSON:
	default:
		return Config{}, fmt.Errorf("config: log_format must be %q or %q, got %q",
			FormatText, FormatJSON, cfg.LogFormat)
	}
	if cfg.MaxRPS < 0 {
		return Config{}, fmt.Errorf("config: max_rps must be >= 0, got %g", cfg.MaxRPS)
	}
	return cfg, nil
}
