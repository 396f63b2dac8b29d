// Package config resolves runtime settings for nbq from the environment.
// All settings have working defaults; NBQ_* variables override them.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults for the query pipeline. These mirror the values the remote UI has
// been observed to tolerate well.
const (
	DefaultCacheSize      = 100
	DefaultCacheTTL       = 24 * time.Hour
	DefaultMaxParallel    = 3
	DefaultIdleTimeout    = 15 * time.Minute
	DefaultDetectTimeout  = 120 * time.Second
	DefaultBrowserTimeout = 30 * time.Second
)

// Config holds everything the pipeline needs at construction time. It is
// loaded once in main and passed down explicitly.
type Config struct {
	// DataDir is the root for credentials, notebook library, history and logs.
	DataDir string

	// CacheDir is where the response cache persists; defaults under DataDir.
	CacheDir string

	// CacheEnabled toggles the response cache globally.
	CacheEnabled bool

	// CacheSize is the LRU capacity in entries.
	CacheSize int

	// CacheTTL is how long a cached answer stays valid.
	CacheTTL time.Duration

	// MaxParallel bounds concurrent in-flight queries.
	MaxParallel int

	// EncryptionKey, when non-empty, enables AES-GCM encryption of the
	// persisted credential file. Never logged.
	EncryptionKey string

	// Headless controls browser visibility; interactive auth setup forces it off.
	Headless bool

	// IdleTimeout is how long a pooled session may sit unused before eviction.
	IdleTimeout time.Duration

	// DetectTimeout is the response detector's overall deadline.
	DetectTimeout time.Duration

	// BrowserTimeout is the default timeout for individual page operations.
	BrowserTimeout time.Duration
}

// Load resolves the configuration from the environment.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NBQ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("cache_enabled", true)
	v.SetDefault("cache_size", DefaultCacheSize)
	v.SetDefault("cache_ttl", DefaultCacheTTL.String())
	v.SetDefault("max_parallel", DefaultMaxParallel)
	v.SetDefault("headless", true)
	v.SetDefault("idle_timeout", DefaultIdleTimeout.String())
	v.SetDefault("detect_timeout", DefaultDetectTimeout.String())
	v.SetDefault("browser_timeout", DefaultBrowserTimeout.String())

	dataDir := v.GetString("data_dir")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".nbq")
	}

	cacheDir := v.GetString("cache_dir")
	if cacheDir == "" {
		cacheDir = filepath.Join(dataDir, "cache")
	}

	cfg := &Config{
		DataDir:        dataDir,
		CacheDir:       cacheDir,
		CacheEnabled:   v.GetBool("cache_enabled"),
		CacheSize:      v.GetInt("cache_size"),
		CacheTTL:       v.GetDuration("cache_ttl"),
		MaxParallel:    v.GetInt("max_parallel"),
		EncryptionKey:  v.GetString("encryption_key"),
		Headless:       v.GetBool("headless"),
		IdleTimeout:    v.GetDuration("idle_timeout"),
		DetectTimeout:  v.GetDuration("detect_timeout"),
		BrowserTimeout: v.GetDuration("browser_timeout"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.CacheSize <= 0 {
		return fmt.Errorf("cache size must be positive, got %d", c.CacheSize)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive, got %s", c.CacheTTL)
	}
	if c.MaxParallel <= 0 {
		return fmt.Errorf("max parallel queries must be positive, got %d", c.MaxParallel)
	}
	return nil
}

// CredentialsPath is the location of the persisted browser auth state.
func (c *Config) CredentialsPath() string {
	return filepath.Join(c.DataDir, "credentials.json")
}

// CachePath is the location of the persisted response cache.
func (c *Config) CachePath() string {
	return filepath.Join(c.CacheDir, "responses.json")
}

// LibraryPath is the location of the notebook library file.
func (c *Config) LibraryPath() string {
	return filepath.Join(c.DataDir, "notebooks.json")
}

// HistoryPath is the location of the query history file.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.DataDir, "history.jsonl")
}

// LogDir is the directory run logs are written to.
func (c *Config) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// EnsureDirs creates the data and cache directories with owner-only access.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, c.CacheDir, c.LogDir()} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
