// Package config resolves settings from flags, DOCSCOUT_* environment
// variables, an optional config file and defaults, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/csheth/docscout/internal/highlight"
	"github.com/csheth/docscout/internal/navigation"
	"github.com/csheth/docscout/internal/search"
	"github.com/csheth/docscout/internal/viewer"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DOCSCOUT"

// Config is the merged configuration.
type Config struct {
	APIBase   string `mapstructure:"api_base"`
	SessionID string `mapstructure:"session_id"`
	Locale    string `mapstructure:"locale"`
	Mode      string `mapstructure:"mode"`

	LogFile string `mapstructure:"log_file"`
	Verbose bool   `mapstructure:"verbose"`

	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	SearchDebounce time.Duration `mapstructure:"search_debounce"`

	RenderBuffer       int     `mapstructure:"render_buffer"`
	PrefetchMargin     float64 `mapstructure:"prefetch_margin"`
	OverlapTolerance   float64 `mapstructure:"overlap_tolerance"`
	ZeroHeightEstimate float64 `mapstructure:"zero_height_estimate"`

	SnippetBudget    int `mapstructure:"snippet_budget"`
	SnippetDecrement int `mapstructure:"snippet_decrement"`
	SnippetFloor     int `mapstructure:"snippet_floor"`

	ProgrammaticScroll time.Duration `mapstructure:"programmatic_scroll"`

	CacheDir    string `mapstructure:"cache_dir"`
	TextStore   string `mapstructure:"text_store"`
	NoAltScreen bool   `mapstructure:"no_alt_screen"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api_base", "http://localhost:8000")
	v.SetDefault("session_id", "")
	v.SetDefault("locale", "en")
	v.SetDefault("mode", "balanced")
	v.SetDefault("log_file", "")
	v.SetDefault("verbose", false)
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("poll_interval", 2*time.Second)
	v.SetDefault("search_debounce", search.DefaultDebounce)
	v.SetDefault("render_buffer", viewer.DefaultBuffer)
	v.SetDefault("prefetch_margin", viewer.DefaultPrefetch)
	v.SetDefault("overlap_tolerance", highlight.DefaultTolerance)
	v.SetDefault("zero_height_estimate", highlight.DefaultLineHeight)
	v.SetDefault("snippet_budget", highlight.DefaultSnippetOptions().Budget)
	v.SetDefault("snippet_decrement", highlight.DefaultSnippetOptions().Decrement)
	v.SetDefault("snippet_floor", highlight.DefaultSnippetOptions().Floor)
	v.SetDefault("programmatic_scroll", navigation.DefaultScrollWindow)
	v.SetDefault("cache_dir", "")
	v.SetDefault("text_store", "")
	v.SetDefault("no_alt_screen", false)
}

// Load reads file (or the default location when empty) into v and returns
// the merged configuration. A missing default file is not an error.
func Load(v *viper.Viper, file string) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		if dir := DefaultDir(); dir != "" {
			v.AddConfigPath(dir)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to load config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, cfg.Validate()
}

// DefaultDir is the directory searched for config.toml.
func DefaultDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "docscout")
}

// Validate rejects values the components cannot work with.
func (c Config) Validate() error {
	switch {
	case c.SnippetFloor <= 0 || c.SnippetBudget < c.SnippetFloor:
		return fmt.Errorf("config: snippet_budget (%d) must be at least snippet_floor (%d) > 0", c.SnippetBudget, c.SnippetFloor)
	case c.SnippetDecrement <= 0:
		return fmt.Errorf("config: snippet_decrement must be positive")
	case c.OverlapTolerance < 0:
		return fmt.Errorf("config: overlap_tolerance must not be negative")
	case c.RenderBuffer < 0:
		return fmt.Errorf("config: render_buffer must not be negative")
	}
	return nil
}

// Matcher returns the geometric matcher tunables.
func (c Config) Matcher() highlight.Matcher {
	return highlight.Matcher{Tolerance: c.OverlapTolerance, LineHeight: c.ZeroHeightEstimate}
}

// Snippet returns the textual matcher tunables.
func (c Config) Snippet() highlight.SnippetOptions {
	return highlight.SnippetOptions{Budget: c.SnippetBudget, Decrement: c.SnippetDecrement, Floor: c.SnippetFloor}
}

// Viewer returns the visibility tracker options.
func (c Config) Viewer() viewer.Options {
	return viewer.Options{Buffer: c.RenderBuffer, Prefetch: c.PrefetchMargin}
}

// LogPath returns the log file, defaulting to the user cache directory.
func (c Config) LogPath() string {
	if c.LogFile != "" {
		return c.LogFile
	}
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "docscout", "docscout.log")
}
