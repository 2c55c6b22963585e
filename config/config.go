package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultAPIURL       = "https://api.curseforge.com"
	DefaultGameID       = 432 // Minecraft
	DefaultModsDir      = "mods"
	DefaultLedgerPath   = "downloaded-mods.json"
	DefaultHistoryPath  = "downloads.db"
	DefaultLogFile      = "curseforge-fetcher.log"
	DefaultUserAgent    = "curseforge-mod-fetcher/dev"
	DefaultPageSize     = 20
	DefaultSortField    = 2 // popularity
	DefaultSortOrder    = "desc"
	DefaultMaxRedirects = 5
	DefaultCacheSize    = 128
	DefaultCacheTTL     = 5 * time.Minute
)

// ConfigurationError reports a missing or invalid setting. It is fatal: the
// pipeline never starts when one is returned.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s %s", e.Field, e.Reason)
}

// Search holds the catalog query settings taken from flags or the environment.
type Search struct {
	Text          string `mapstructure:"SEARCH"`
	CategoryID    int    `mapstructure:"CATEGORY_ID"`
	ModLoaderType int    `mapstructure:"MOD_LOADER_TYPE"`
	GameVersion   string `mapstructure:"GAME_VERSION"`
	SortField     int    `mapstructure:"SORT_FIELD"`
	SortOrder     string `mapstructure:"SORT_ORDER"`
	PageSize      int    `mapstructure:"PAGE_SIZE"`
	Index         int    `mapstructure:"INDEX"`
	AutoDownload  bool   `mapstructure:"AUTO_DOWNLOAD"`
}

// Config holds all configuration for the application.
// It is built once by Load and passed by value into every component.
type Config struct {
	APIKey       string        `mapstructure:"CURSEFORGE_API_KEY"`
	APIURL       string        `mapstructure:"CURSEFORGE_API_URL"`
	GameID       int           `mapstructure:"GAME_ID"`
	ModsDir      string        `mapstructure:"MODS_DIR"`
	LedgerPath   string        `mapstructure:"LEDGER_PATH"`
	HistoryPath  string        `mapstructure:"HISTORY_DB_PATH"`
	LogFile      string        `mapstructure:"LOG_FILE"`
	MetricsFile  string        `mapstructure:"METRICS_FILE"`
	UserAgent    string        `mapstructure:"USERAGENT"`
	MaxRetries   int           `mapstructure:"MAX_RETRIES"`
	Concurrency  int           `mapstructure:"CONCURRENCY"`
	MaxRedirects int           `mapstructure:"MAX_REDIRECTS"`
	CacheSize    int           `mapstructure:"CACHE_SIZE"`
	CacheTTL     time.Duration `mapstructure:"CACHE_TTL"`
	Search       Search        `mapstructure:",squash"`
}

// keys lists every setting viper binds from the environment.
var keys = []string{
	"CURSEFORGE_API_KEY", "CURSEFORGE_API_URL", "GAME_ID", "MODS_DIR", "LEDGER_PATH",
	"HISTORY_DB_PATH", "LOG_FILE", "METRICS_FILE", "USERAGENT", "MAX_RETRIES", "CONCURRENCY",
	"MAX_REDIRECTS", "CACHE_SIZE", "CACHE_TTL",
	"SEARCH", "CATEGORY_ID", "MOD_LOADER_TYPE", "GAME_VERSION", "SORT_FIELD", "SORT_ORDER",
	"PAGE_SIZE", "INDEX", "AUTO_DOWNLOAD",
}

// FlagKeys maps cobra flag names to the config key they override.
var FlagKeys = map[string]string{
	"search":        "SEARCH",
	"category":      "CATEGORY_ID",
	"loader":        "MOD_LOADER_TYPE",
	"game-version":  "GAME_VERSION",
	"sort-field":    "SORT_FIELD",
	"sort-order":    "SORT_ORDER",
	"page-size":     "PAGE_SIZE",
	"index":         "INDEX",
	"auto-download": "AUTO_DOWNLOAD",
	"mods-dir":      "MODS_DIR",
	"game-id":       "GAME_ID",
	"concurrency":   "CONCURRENCY",
}

// Load reads configuration from an optional .env file in path, the environment,
// and any changed flags in flags (which may be nil). It does not validate; call
// Validate before constructing components.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("fatal error config file: %w", err)
		}
		slog.Debug("Config file (.env) not found, relying on environment variables.")
	}

	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			slog.Warn("Unable to bind env var", "key", key, "error", err)
		}
	}

	if flags != nil {
		for name, key := range FlagKeys {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("binding flag --%s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode into struct, %w", err)
	}

	processConfigDefaults(&cfg)
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("CURSEFORGE_API_URL", DefaultAPIURL)
	v.SetDefault("GAME_ID", DefaultGameID)
	v.SetDefault("MODS_DIR", DefaultModsDir)
	v.SetDefault("LEDGER_PATH", DefaultLedgerPath)
	v.SetDefault("HISTORY_DB_PATH", DefaultHistoryPath)
	v.SetDefault("LOG_FILE", DefaultLogFile)
	v.SetDefault("USERAGENT", DefaultUserAgent)
	v.SetDefault("MAX_RETRIES", 0)
	v.SetDefault("CONCURRENCY", 1)
	v.SetDefault("MAX_REDIRECTS", DefaultMaxRedirects)
	v.SetDefault("CACHE_SIZE", DefaultCacheSize)
	v.SetDefault("CACHE_TTL", DefaultCacheTTL)
	v.SetDefault("SORT_FIELD", DefaultSortField)
	v.SetDefault("SORT_ORDER", DefaultSortOrder)
	v.SetDefault("PAGE_SIZE", DefaultPageSize)
}

// processConfigDefaults fills values that may have been explicitly blanked.
func processConfigDefaults(cfg *Config) {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if cfg.ModsDir == "" {
		cfg.ModsDir = DefaultModsDir
	}
	if cfg.LedgerPath == "" {
		cfg.LedgerPath = DefaultLedgerPath
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Search.SortOrder == "" {
		cfg.Search.SortOrder = DefaultSortOrder
	}
	cfg.Search.SortOrder = strings.ToLower(cfg.Search.SortOrder)
}

// Validate checks the settings the pipeline cannot run without.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.APIKey) == "":
		return &ConfigurationError{Field: "CURSEFORGE_API_KEY", Reason: "is required"}
	case c.GameID <= 0:
		return &ConfigurationError{Field: "GAME_ID", Reason: "must be positive"}
	case c.Search.PageSize <= 0:
		return &ConfigurationError{Field: "PAGE_SIZE", Reason: "must be positive"}
	case c.Search.SortOrder != "asc" && c.Search.SortOrder != "desc":
		return &ConfigurationError{Field: "SORT_ORDER", Reason: fmt.Sprintf("must be asc or desc, got %q", c.Search.SortOrder)}
	case c.Concurrency < 1:
		return &ConfigurationError{Field: "CONCURRENCY", Reason: "must be at least 1"}
	case c.MaxRedirects < 1:
		return &ConfigurationError{Field: "MAX_REDIRECTS", Reason: "must be at least 1"}
	case c.MaxRetries < 0:
		return &ConfigurationError{Field: "MAX_RETRIES", Reason: "must not be negative"}
	}
	return nil
}
