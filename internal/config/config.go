package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root application configuration
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Library    LibraryConfig    `mapstructure:"library"`
	Extractor  ExtractorConfig  `mapstructure:"extractor"`
	Player     PlayerConfig     `mapstructure:"player"`
	Playback   PlaybackConfig   `mapstructure:"playback"`
	Session    SessionConfig    `mapstructure:"session"`
	Continuity ContinuityConfig `mapstructure:"continuity"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Advanced   AdvancedConfig   `mapstructure:"advanced"`
}

// LoggingConfig controls the slog/lumberjack logger
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // text or json
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
	Color      bool   `mapstructure:"color"`
}

// DatabaseConfig controls the local sqlite store
type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MaxConnections int    `mapstructure:"max_connections"`
	WALMode        bool   `mapstructure:"wal_mode"`
	AutoVacuum     bool   `mapstructure:"auto_vacuum"`
}

// LibraryConfig points at the metadata/library API
type LibraryConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ExtractorConfig points at the torrent-debrid extraction API
type ExtractorConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	QualityHint string        `mapstructure:"quality_hint"`
}

// PlayerConfig controls the external media engine (mpv)
type PlayerConfig struct {
	Fullscreen     bool     `mapstructure:"fullscreen"`
	Volume         int      `mapstructure:"volume"`
	LoadUserConfig bool     `mapstructure:"load_user_config"`
	ExtraArgs      []string `mapstructure:"extra_args"`
}

// PlaybackConfig bounds the controller's automatic error recovery
type PlaybackConfig struct {
	NetworkRetries  int           `mapstructure:"network_retries"`
	NetworkBackoff  time.Duration `mapstructure:"network_backoff"`
	ProgressPoll    time.Duration `mapstructure:"progress_poll"`
	AttachTimeout   time.Duration `mapstructure:"attach_timeout"`
	AutoplayOnReady bool          `mapstructure:"autoplay_on_ready"`
}

// SessionConfig controls session defaults and chrome behavior
type SessionConfig struct {
	DefaultLanguage string        `mapstructure:"default_language"`
	IdleHideAfter   time.Duration `mapstructure:"idle_hide_after"`
}

// ContinuityConfig controls progress persistence
type ContinuityConfig struct {
	SyncInterval time.Duration `mapstructure:"sync_interval"`
}

// ProvidersConfig carries per-provider overrides
type ProvidersConfig struct {
	Disabled []string          `mapstructure:"disabled"`
	BaseURLs map[string]string `mapstructure:"base_urls"`
}

// AdvancedConfig holds debugging knobs and escape hatches
type AdvancedConfig struct {
	Debug bool `mapstructure:"debug"`
	// ClipboardCommand overrides the system clipboard tool
	ClipboardCommand string `mapstructure:"clipboard_command"`
}

// SetDefaults registers default values on a viper instance
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", filepath.Join(getStateDir(), "vesper", "vesper.log"))
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)
	v.SetDefault("logging.color", true)

	v.SetDefault("database.path", filepath.Join(getDataDir(), "vesper", "vesper.db"))
	v.SetDefault("database.max_connections", 4)
	v.SetDefault("database.wal_mode", true)
	v.SetDefault("database.auto_vacuum", true)

	v.SetDefault("library.base_url", "http://localhost:8080")
	v.SetDefault("library.timeout", 30*time.Second)

	v.SetDefault("extractor.base_url", "http://localhost:8081")
	v.SetDefault("extractor.timeout", 20*time.Second)
	v.SetDefault("extractor.quality_hint", "1080p")

	v.SetDefault("player.fullscreen", false)
	v.SetDefault("player.volume", 100)
	v.SetDefault("player.load_user_config", false)

	v.SetDefault("playback.network_retries", 3)
	v.SetDefault("playback.network_backoff", 2*time.Second)
	v.SetDefault("playback.progress_poll", time.Second)
	v.SetDefault("playback.attach_timeout", 15*time.Second)
	v.SetDefault("playback.autoplay_on_ready", true)

	v.SetDefault("session.default_language", "en")
	v.SetDefault("session.idle_hide_after", 4*time.Second)

	v.SetDefault("continuity.sync_interval", 10*time.Second)
}

// Load reads configuration from file, environment, and defaults.
// The returned viper instance can be used for hot reload (WatchConfig).
func Load(cfgFile string) (*Config, *viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(getConfigDir(), "vesper"))
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("VESPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Missing config file is fine, defaults apply
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, v, nil
}

// InitializeDirs creates the config, data, and state directories
func InitializeDirs() error {
	dirs := []string{
		filepath.Join(getConfigDir(), "vesper"),
		filepath.Join(getDataDir(), "vesper"),
		filepath.Join(getStateDir(), "vesper"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// DefaultConfigPath returns the path `config init` writes to
func DefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "vesper", "config.yaml")
}

const defaultConfigTemplate = `# vesper configuration
# Values shown are the defaults. Uncomment a line to override it.

logging:
  # level: info          # debug, info, warn, error
  # format: text         # text or json
  # color: true

library:
  # base_url: http://localhost:8080

extractor:
  # base_url: http://localhost:8081
  # quality_hint: 1080p

player:
  # fullscreen: false
  # volume: 100
  # load_user_config: false
  # extra_args: []

playback:
  # network_retries: 3
  # network_backoff: 2s
  # autoplay_on_ready: true

session:
  # default_language: en
  # idle_hide_after: 4s

continuity:
  # sync_interval: 10s

providers:
  # disabled: []
  # base_urls:
  #   vidora: https://vidora.stream

advanced:
  # debug: false
  # clipboard_command: ""
`

// SaveDefaultConfig writes a commented default config file
func SaveDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func getConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config")
}

func getDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

func getStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "state")
}
