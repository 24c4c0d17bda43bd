package stakerd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	if value.Value == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures the runtime configuration for stakerd.
type Config struct {
	ListenAddress string `yaml:"listen"`
	// LedgerPath points at the TOML deployment parameters.
	LedgerPath string `yaml:"ledger"`
	// DataDir overrides the ledger file's DataDir when set.
	DataDir   string                     `yaml:"data_dir"`
	InMemory  bool                       `yaml:"in_memory"`
	Log       LogConfig                  `yaml:"log"`
	Auth      AuthConfig                 `yaml:"auth"`
	Limits    map[string]RateLimitConfig `yaml:"rate_limits"`
	Journal   JournalConfig              `yaml:"journal"`
	Telemetry TelemetryConfig            `yaml:"telemetry"`
	CORS      CORSConfig                 `yaml:"cors"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Requests   bool   `yaml:"requests"`
}

// AuthConfig controls JWT verification of API callers.
type AuthConfig struct {
	Enabled        bool     `yaml:"enabled"`
	HMACSecret     string   `yaml:"hmac_secret"`
	HMACSecretFile string   `yaml:"hmac_secret_file"`
	HMACSecretEnv  string   `yaml:"hmac_secret_env"`
	Issuer         string   `yaml:"issuer"`
	Audience       string   `yaml:"audience"`
	ClockSkew      Duration `yaml:"clock_skew"`
}

type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// JournalConfig selects the event journal database. An empty DSN disables
// the journal.
type JournalConfig struct {
	DSN    string `yaml:"dsn"`
	DSNEnv string `yaml:"dsn_env"`
}

type TelemetryConfig struct {
	Endpoint    string            `yaml:"endpoint"`
	Insecure    bool              `yaml:"insecure"`
	Headers     map[string]string `yaml:"headers"`
	Metrics     bool              `yaml:"metrics"`
	Traces      bool              `yaml:"traces"`
	SampleRatio float64           `yaml:"sample_ratio"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoadConfig reads configuration from the supplied path.
func LoadConfig(path string) (Config, error) {
	cfg := Config{}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg, filepath.Dir(path))
	if err := cfg.Auth.normalise(); err != nil {
		return cfg, fmt.Errorf("auth: %w", err)
	}
	if err := cfg.Journal.normalise(); err != nil {
		return cfg, fmt.Errorf("journal: %w", err)
	}
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config, baseDir string) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":8645"
	}
	if cfg.LedgerPath == "" {
		cfg.LedgerPath = "ledger.toml"
	}
	if !filepath.IsAbs(cfg.LedgerPath) {
		cfg.LedgerPath = filepath.Join(baseDir, cfg.LedgerPath)
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Limits == nil {
		cfg.Limits = map[string]RateLimitConfig{
			"write": {RequestsPerMinute: 120, Burst: 20},
			"read":  {RequestsPerMinute: 600, Burst: 100},
		}
	}
}

func validateConfig(cfg Config) error {
	if cfg.Auth.Enabled && cfg.Auth.HMACSecret == "" {
		return fmt.Errorf("auth enabled but no hmac secret configured")
	}
	for name, limit := range cfg.Limits {
		if limit.RequestsPerMinute < 0 || limit.Burst < 0 {
			return fmt.Errorf("rate_limits.%s must not be negative", name)
		}
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be within [0,1]")
	}
	return nil
}

func (a *AuthConfig) normalise() error {
	a.HMACSecret = strings.TrimSpace(a.HMACSecret)
	if a.HMACSecret != "" {
		return nil
	}
	switch {
	case strings.TrimSpace(a.HMACSecretEnv) != "":
		value := strings.TrimSpace(os.Getenv(strings.TrimSpace(a.HMACSecretEnv)))
		if value == "" {
			return fmt.Errorf("hmac_secret_env %s is empty", a.HMACSecretEnv)
		}
		a.HMACSecret = value
	case strings.TrimSpace(a.HMACSecretFile) != "":
		contents, err := os.ReadFile(strings.TrimSpace(a.HMACSecretFile))
		if err != nil {
			return fmt.Errorf("read hmac_secret_file: %w", err)
		}
		a.HMACSecret = strings.TrimSpace(string(contents))
	}
	return nil
}

func (j *JournalConfig) normalise() error {
	j.DSN = strings.TrimSpace(j.DSN)
	if j.DSN != "" || strings.TrimSpace(j.DSNEnv) == "" {
		return nil
	}
	value := strings.TrimSpace(os.Getenv(strings.TrimSpace(j.DSNEnv)))
	if value == "" {
		return fmt.Errorf("dsn_env %s is empty", j.DSNEnv)
	}
	j.DSN = value
	return nil
}
