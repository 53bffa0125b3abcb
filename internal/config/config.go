package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds Tabby's settings.
type Config struct {
	BaseURL           string
	APIKey            string
	RequestTimeout    time.Duration
	RequestsPerSecond float64       // zero disables client-side rate limiting
	RefreshInterval   time.Duration // zero disables background refresh
	LogLevel          string
	LogFile           string
	MetricsAddr       string // empty disables the metrics endpoint
	TraceFile         string // empty disables trace export
}

const (
	defaultConfigPath     = "~/.config/tabby/config.toml"
	defaultLogFile        = "~/.local/state/tabby/tabby.log"
	defaultBaseURL        = "https://api.thecatapi.com/v1/"
	defaultRequestTimeout = 10 * time.Second
	defaultLogLevel       = "info"

	// EnvAPIKey overrides api_key.
	EnvAPIKey = "TABBY_API_KEY"
	// EnvBaseURL overrides base_url.
	EnvBaseURL = "TABBY_BASE_URL"
)

// DefaultEnvFiles are the dotenv files LoadEnvFiles reads when given none.
var DefaultEnvFiles = []string{".env", ".env.local"}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		BaseURL:        defaultBaseURL,
		RequestTimeout: defaultRequestTimeout,
		LogLevel:       defaultLogLevel,
		LogFile:        mustExpand(defaultLogFile),
	}
}

// Load locates and parses the tabby config, falling back to defaults when
// missing, then applies environment overrides.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			applyEnv(&cfg)
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		BaseURL           string `toml:"base_url"`
		APIKey            string `toml:"api_key"`
		RequestTimeout    any    `toml:"request_timeout"`
		RequestsPerSecond any    `toml:"requests_per_second"`
		RefreshInterval   any    `toml:"refresh_interval"`
		LogLevel          string `toml:"log_level"`
		LogFile           string `toml:"log_file"`
		MetricsAddr       string `toml:"metrics_addr"`
		TraceFile         string `toml:"trace_file"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.BaseURL); v != "" {
		cfg.BaseURL = v
	}
	cfg.APIKey = strings.TrimSpace(raw.APIKey)

	if raw.RequestTimeout != nil {
		v, err := number("request_timeout", raw.RequestTimeout)
		if err != nil {
			return Config{}, err
		}
		if v <= 0 {
			return Config{}, fmt.Errorf("parse config: request_timeout must be positive")
		}
		cfg.RequestTimeout = seconds(v)
	}
	rps, err := number("requests_per_second", raw.RequestsPerSecond)
	if err != nil {
		return Config{}, err
	}
	if rps < 0 {
		return Config{}, fmt.Errorf("parse config: requests_per_second must not be negative")
	}
	cfg.RequestsPerSecond = rps
	refresh, err := number("refresh_interval", raw.RefreshInterval)
	if err != nil {
		return Config{}, err
	}
	if refresh < 0 {
		return Config{}, fmt.Errorf("parse config: refresh_interval must not be negative")
	}
	cfg.RefreshInterval = seconds(refresh)

	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(raw.LogFile); v != "" {
		cfg.LogFile = mustExpand(v)
	}
	cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	if v := strings.TrimSpace(raw.TraceFile); v != "" {
		cfg.TraceFile = mustExpand(v)
	}

	applyEnv(&cfg)
	return cfg, nil
}

// LoadEnvFiles loads dotenv files into the process environment. Missing files
// are skipped and variables that are already set are never overridden.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = DefaultEnvFiles
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// HasAPIKey reports whether requests will be authenticated.
func (c Config) HasAPIKey() bool {
	return c.APIKey != ""
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvAPIKey)); v != "" {
		cfg.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBaseURL)); v != "" {
		cfg.BaseURL = v
	}
}

// number accepts TOML integers and floats. Absent keys are zero.
func number(key string, v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("parse config: %s must be a number, got %T", key, v)
	}
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
