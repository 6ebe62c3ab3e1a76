// Package config loads application configuration from CLOUDPANEL_ environment
// variables, optionally layered over a TOML file named by
// CLOUDPANEL_CONFIG_FILE. Environment variables always win over the file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const envPrefix = "CLOUDPANEL_"

// minSecretKeyLen guards against trivially guessable vault keys.
const minSecretKeyLen = 32

// Config holds the application configuration.
type Config struct {
	ListenAddr string
	DBPath     string

	// SecretKey feeds the AES vault cipher. Empty disables credential storage.
	SecretKey   string
	Cipher      string
	AgeIdentity string

	SyncInterval     time.Duration
	SyncConcurrency  int
	AdapterTimeout   time.Duration
	AWSEndpoint      string
	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	RemovedRetention time.Duration
	MockSeed         uint64

	LogLevel  slog.Level
	LogFormat string
}

// VaultEnabled reports whether key material for the configured cipher is present.
func (c *Config) VaultEnabled() bool {
	if c.Cipher == "age" {
		return c.AgeIdentity != ""
	}
	return c.SecretKey != ""
}

func defaults() *Config {
	return &Config{
		ListenAddr:       "127.0.0.1:8080",
		DBPath:           "cloudpanel.db",
		Cipher:           "aes",
		SyncConcurrency:  4,
		AdapterTimeout:   60 * time.Second,
		RetryMaxAttempts: 3,
		RetryBaseDelay:   500 * time.Millisecond,
		RetryMaxDelay:    10 * time.Second,
		MockSeed:         42,
		LogLevel:         slog.LevelInfo,
		LogFormat:        "text",
	}
}

// setting applies one raw value to the config.
type setting func(c *Config, v string) error

// settings maps each key (without prefix) to its parser. File keys are the
// same names in lower case.
var settings = map[string]setting{
	"LISTEN_ADDR":        func(c *Config, v string) error { c.ListenAddr = v; return nil },
	"DB_PATH":            func(c *Config, v string) error { c.DBPath = v; return nil },
	"SECRET_KEY":         func(c *Config, v string) error { c.SecretKey = v; return nil },
	"CIPHER":             func(c *Config, v string) error { c.Cipher = strings.ToLower(v); return nil },
	"AGE_IDENTITY":       func(c *Config, v string) error { c.AgeIdentity = strings.TrimSpace(v); return nil },
	"AGE_IDENTITY_FILE":  setAgeIdentityFile,
	"SYNC_INTERVAL":      durationSetting(func(c *Config) *time.Duration { return &c.SyncInterval }),
	"SYNC_CONCURRENCY":   intSetting(func(c *Config) *int { return &c.SyncConcurrency }),
	"ADAPTER_TIMEOUT":    durationSetting(func(c *Config) *time.Duration { return &c.AdapterTimeout }),
	"AWS_ENDPOINT":       func(c *Config, v string) error { c.AWSEndpoint = v; return nil },
	"RETRY_MAX_ATTEMPTS": intSetting(func(c *Config) *int { return &c.RetryMaxAttempts }),
	"RETRY_BASE_DELAY":   durationSetting(func(c *Config) *time.Duration { return &c.RetryBaseDelay }),
	"RETRY_MAX_DELAY":    durationSetting(func(c *Config) *time.Duration { return &c.RetryMaxDelay }),
	"REMOVED_RETENTION":  durationSetting(func(c *Config) *time.Duration { return &c.RemovedRetention }),
	"MOCK_SEED": func(c *Config, v string) error {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid unsigned integer %q", v)
		}
		c.MockSeed = n
		return nil
	},
	"LOG_LEVEL": func(c *Config, v string) error {
		return c.LogLevel.UnmarshalText([]byte(v))
	},
	"LOG_FORMAT": func(c *Config, v string) error {
		v = strings.ToLower(v)
		if v != "text" && v != "json" {
			return fmt.Errorf("must be text or json, got %q", v)
		}
		c.LogFormat = v
		return nil
	},
}

// Keys returns every recognised environment variable name, sorted.
func Keys() []string {
	keys := make([]string, 0, len(settings)+1)
	for k := range settings {
		keys = append(keys, envPrefix+k)
	}
	keys = append(keys, envPrefix+"CONFIG_FILE")
	slices.Sort(keys)
	return keys
}

// Load reads the optional config file, then environment variables, and
// returns a validated Config. Invalid values fail with an error naming the
// offending variable.
func Load() (*Config, error) {
	values := make(map[string]string)

	if path := os.Getenv(envPrefix + "CONFIG_FILE"); path != "" {
		if err := readFile(path, values); err != nil {
			return nil, err
		}
	}

	for key := range settings {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			values[key] = v
		}
	}

	cfg := defaults()

	// Sorted order applies AGE_IDENTITY before AGE_IDENTITY_FILE.
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		if err := settings[key](cfg, values[key]); err != nil {
			return nil, fmt.Errorf("%s%s: %w", envPrefix, key, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readFile decodes a flat TOML table. Unknown keys are an error so typos do
// not silently fall back to defaults.
func readFile(path string, values map[string]string) error {
	var raw map[string]any
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	for k, v := range raw {
		key := strings.ToUpper(k)
		if _, ok := settings[key]; !ok {
			return fmt.Errorf("config file %s: unknown key %q", path, k)
		}
		switch v := v.(type) {
		case string:
			values[key] = v
		case int64, float64, bool:
			values[key] = fmt.Sprint(v)
		default:
			return fmt.Errorf("config file %s: key %q must be a scalar", path, k)
		}
	}
	return nil
}

func (c *Config) validate() error {
	switch c.Cipher {
	case "aes":
		if c.SecretKey != "" && len(c.SecretKey) < minSecretKeyLen {
			return fmt.Errorf("%sSECRET_KEY must be at least %d characters", envPrefix, minSecretKeyLen)
		}
	case "age":
		if c.AgeIdentity == "" {
			return fmt.Errorf("%sCIPHER=age requires %sAGE_IDENTITY or %sAGE_IDENTITY_FILE", envPrefix, envPrefix, envPrefix)
		}
	default:
		return fmt.Errorf("%sCIPHER must be aes or age, got %q", envPrefix, c.Cipher)
	}

	if c.SyncConcurrency < 1 {
		return fmt.Errorf("%sSYNC_CONCURRENCY must be at least 1", envPrefix)
	}
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("%sRETRY_MAX_ATTEMPTS must be at least 1", envPrefix)
	}
	if c.AdapterTimeout <= 0 {
		return fmt.Errorf("%sADAPTER_TIMEOUT must be positive", envPrefix)
	}
	if c.RetryBaseDelay <= 0 || c.RetryMaxDelay < c.RetryBaseDelay {
		return fmt.Errorf("%sRETRY_BASE_DELAY must be positive and not above %sRETRY_MAX_DELAY", envPrefix, envPrefix)
	}
	if c.SyncInterval < 0 || c.RemovedRetention < 0 {
		return fmt.Errorf("%sSYNC_INTERVAL and %sREMOVED_RETENTION must not be negative", envPrefix, envPrefix)
	}
	return nil
}

func durationSetting(field func(*Config) *time.Duration) setting {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*field(c) = d
		return nil
	}
}

func intSetting(field func(*Config) *int) setting {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid integer %q", v)
		}
		*field(c) = n
		return nil
	}
}

// setAgeIdentityFile reads an age-keygen style file, taking the first
// AGE-SECRET-KEY line. An inline AGE_IDENTITY takes precedence.
func setAgeIdentityFile(c *Config, path string) error {
	if path == "" || c.AgeIdentity != "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read age identity: %w", err)
	}
	for line := range strings.Lines(string(data)) {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "AGE-SECRET-KEY-") {
			c.AgeIdentity = line
			return nil
		}
	}
	return fmt.Errorf("no AGE-SECRET-KEY line in %s", path)
}
