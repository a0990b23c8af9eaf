// Package config provides configuration management for feeddedup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultThreshold is the scaled cosine similarity at or above which two
	// items from different sources are treated as duplicates.
	DefaultThreshold = 0.7
	// DefaultProvider is the offline fingerprint provider.
	DefaultProvider = "hashing"
	// DefaultModel is the embedding model used by remote providers.
	DefaultModel = "text-embedding-3-small"
	// DefaultDimensions is the fingerprint dimensionality.
	DefaultDimensions = 512
	// DefaultConcurrency bounds parallel embedding calls per request.
	DefaultConcurrency = 4
	// DefaultMaxTokens is the per-item token budget sent to remote providers.
	DefaultMaxTokens = 8191
	// DefaultWorkerPort is the HTTP port of the worker.
	DefaultWorkerPort = 37888
	// DefaultCacheSize is the number of fingerprints kept by the in-memory cache.
	DefaultCacheSize = 4096
)

// Config holds all settings. Keys double as environment variable names.
type Config struct {
	Provider            string  `json:"FEEDDEDUP_PROVIDER" yaml:"FEEDDEDUP_PROVIDER" toml:"FEEDDEDUP_PROVIDER"`
	EmbeddingModel      string  `json:"FEEDDEDUP_EMBEDDING_MODEL" yaml:"FEEDDEDUP_EMBEDDING_MODEL" toml:"FEEDDEDUP_EMBEDDING_MODEL"`
	APIKey              string  `json:"FEEDDEDUP_API_KEY" yaml:"FEEDDEDUP_API_KEY" toml:"FEEDDEDUP_API_KEY"`
	BaseURL             string  `json:"FEEDDEDUP_BASE_URL" yaml:"FEEDDEDUP_BASE_URL" toml:"FEEDDEDUP_BASE_URL"`
	RedisURL            string  `json:"FEEDDEDUP_REDIS_URL" yaml:"FEEDDEDUP_REDIS_URL" toml:"FEEDDEDUP_REDIS_URL"`
	Threshold           float64 `json:"FEEDDEDUP_THRESHOLD" yaml:"FEEDDEDUP_THRESHOLD" toml:"FEEDDEDUP_THRESHOLD"`
	EmbeddingDimensions int     `json:"FEEDDEDUP_EMBEDDING_DIMENSIONS" yaml:"FEEDDEDUP_EMBEDDING_DIMENSIONS" toml:"FEEDDEDUP_EMBEDDING_DIMENSIONS"`
	Concurrency         int     `json:"FEEDDEDUP_CONCURRENCY" yaml:"FEEDDEDUP_CONCURRENCY" toml:"FEEDDEDUP_CONCURRENCY"`
	MaxTokens           int     `json:"FEEDDEDUP_MAX_TOKENS" yaml:"FEEDDEDUP_MAX_TOKENS" toml:"FEEDDEDUP_MAX_TOKENS"`
	WorkerPort          int     `json:"FEEDDEDUP_WORKER_PORT" yaml:"FEEDDEDUP_WORKER_PORT" toml:"FEEDDEDUP_WORKER_PORT"`
	CacheSize           int     `json:"FEEDDEDUP_CACHE_SIZE" yaml:"FEEDDEDUP_CACHE_SIZE" toml:"FEEDDEDUP_CACHE_SIZE"`
}

var (
	global     *Config
	globalOnce sync.Once
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Threshold:           DefaultThreshold,
		Provider:            DefaultProvider,
		EmbeddingModel:      DefaultModel,
		EmbeddingDimensions: DefaultDimensions,
		Concurrency:         DefaultConcurrency,
		MaxTokens:           DefaultMaxTokens,
		WorkerPort:          DefaultWorkerPort,
		CacheSize:           DefaultCacheSize,
	}
}

// DataDir returns the data directory path.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".feeddedup")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0750)
}

// EnsureSettings writes a default settings file if none exists.
func EnsureSettings() error {
	path := SettingsPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	data, err := json.MarshalIndent(Default(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// EnsureAll creates the data directory and default settings.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	return EnsureSettings()
}

// Load reads the settings file and applies environment overrides.
// A missing or unparsable settings file yields defaults.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(SettingsPath())
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			log.Warn().Err(jsonErr).Str("path", SettingsPath()).Msg("Invalid settings file, using defaults")
			cfg = Default()
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// LoadFile reads an explicit config file. The format is chosen by extension:
// .json, .yaml/.yml or .toml. Environment overrides are applied afterwards.
// Unlike Load, a missing or malformed file is an error.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyEnv(cfg)
	return cfg, nil
}

// Get returns the process-wide configuration, loading it on first use.
func Get() *Config {
	globalOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load config, using defaults")
			cfg = Default()
		}
		global = cfg
	})
	return global
}

// GetWorkerPort returns the worker port, honouring FEEDDEDUP_WORKER_PORT.
func GetWorkerPort() int {
	if v := os.Getenv("FEEDDEDUP_WORKER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			return port
		}
	}
	return Get().WorkerPort
}

// applyEnv overrides cfg with any FEEDDEDUP_* environment variables.
func applyEnv(cfg *Config) {
	envString("FEEDDEDUP_PROVIDER", &cfg.Provider)
	envString("FEEDDEDUP_EMBEDDING_MODEL", &cfg.EmbeddingModel)
	envString("FEEDDEDUP_API_KEY", &cfg.APIKey)
	envString("FEEDDEDUP_BASE_URL", &cfg.BaseURL)
	envString("FEEDDEDUP_REDIS_URL", &cfg.RedisURL)
	envFloat("FEEDDEDUP_THRESHOLD", &cfg.Threshold)
	envInt("FEEDDEDUP_EMBEDDING_DIMENSIONS", &cfg.EmbeddingDimensions)
	envInt("FEEDDEDUP_CONCURRENCY", &cfg.Concurrency)
	envInt("FEEDDEDUP_MAX_TOKENS", &cfg.MaxTokens)
	envInt("FEEDDEDUP_WORKER_PORT", &cfg.WorkerPort)
	envInt("FEEDDEDUP_CACHE_SIZE", &cfg.CacheSize)
}

func envString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Warn().Str("key", key).Str("env_value", v).Msg("Invalid integer in environment, ignoring")
		return
	}
	*dst = n
}

func envFloat(key string, dst *float64) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Str("env_value", v).Msg("Invalid float in environment, ignoring")
		return
	}
	*dst = f
}
