package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	API     APIConfig
	Session SessionConfig
	Notify  NotifyConfig
	UI      UIConfig
	Log     LogConfig
	Mock    MockConfig
}

// APIConfig selects and reaches the backend.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Variant string        `mapstructure:"variant"`
	Timeout time.Duration `mapstructure:"timeout"`
	UseMock bool          `mapstructure:"use_mock"`
}

// SessionConfig chooses where the token and active account are persisted.
type SessionConfig struct {
	Backend    string `mapstructure:"backend"`
	Path       string `mapstructure:"path"`
	Passphrase string `mapstructure:"passphrase"`
}

// NotifyConfig tunes the notification queue.
type NotifyConfig struct {
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
	MaxQueue   int           `mapstructure:"max_queue"`
}

// UIConfig holds presentation settings.
type UIConfig struct {
	PageSize   int    `mapstructure:"page_size"`
	DateFormat string `mapstructure:"date_format"`
	PrefsPath  string `mapstructure:"prefs_path"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

// MockConfig drives the mock backend, both in process and standalone.
type MockConfig struct {
	Addr       string        `mapstructure:"addr"`
	Variant    string        `mapstructure:"variant"`
	JWTSecret  string        `mapstructure:"jwt_secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	LatencyMin time.Duration `mapstructure:"latency_min"`
	LatencyMax time.Duration `mapstructure:"latency_max"`
}

const (
	SessionFile   = "file"
	SessionSQLite = "sqlite"
	SessionMemory = "memory"
)

func dataDir() string {
	return filepath.Join(os.Getenv("HOME"), ".local", "share", "ledgerview")
}

// Path returns the config file location, honouring LEDGERVIEW_CONFIG.
func Path() string {
	if p := os.Getenv("LEDGERVIEW_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(os.Getenv("HOME"), ".config", "ledgerview", "config.toml")
}

func defaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8000/api/v1")
	v.SetDefault("api.variant", "b")
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("api.use_mock", false)
	v.SetDefault("session.backend", SessionFile)
	v.SetDefault("session.path", "")
	v.SetDefault("session.passphrase", "")
	v.SetDefault("notify.default_ttl", 5*time.Second)
	v.SetDefault("notify.max_queue", 5)
	v.SetDefault("ui.page_size", 10)
	v.SetDefault("ui.date_format", "Jan 2, 2006")
	v.SetDefault("ui.prefs_path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.path", filepath.Join(dataDir(), "ledgerview.log"))
	v.SetDefault("mock.addr", ":8000")
	v.SetDefault("mock.variant", "b")
	v.SetDefault("mock.jwt_secret", "")
	v.SetDefault("mock.token_ttl", 24*time.Hour)
	v.SetDefault("mock.latency_min", time.Duration(0))
	v.SetDefault("mock.latency_max", time.Duration(0))
}

// Load reads configuration from file and env. Env var overrides use prefix LEDGERVIEW_.
// A .env file in the working directory is loaded first when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	defaults(v)

	v.SetConfigType("toml")
	if p := os.Getenv("LEDGERVIEW_CONFIG"); p != "" {
		v.SetConfigFile(p)
	} else {
		v.AddConfigPath(filepath.Join(os.Getenv("HOME"), ".config", "ledgerview"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("LEDGERVIEW")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// a missing config file is fine; defaults and env still apply
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	c.API.Variant = strings.ToLower(strings.TrimSpace(c.API.Variant))
	c.Mock.Variant = strings.ToLower(strings.TrimSpace(c.Mock.Variant))
	if c.Session.Path == "" {
		name := "session.json"
		if c.Session.Backend == SessionSQLite {
			name = "session.db"
		}
		c.Session.Path = filepath.Join(dataDir(), name)
	}
	return c, nil
}

// Save writes the non-sensitive preferences of cfg to the config file,
// creating the config directory if needed.
func Save(cfg Config) error {
	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("api.base_url", cfg.API.BaseURL)
	v.Set("api.variant", cfg.API.Variant)
	v.Set("api.timeout", cfg.API.Timeout.String())
	v.Set("api.use_mock", cfg.API.UseMock)
	v.Set("session.backend", cfg.Session.Backend)
	v.Set("notify.default_ttl", cfg.Notify.DefaultTTL.String())
	v.Set("notify.max_queue", cfg.Notify.MaxQueue)
	v.Set("ui.page_size", cfg.UI.PageSize)
	v.Set("ui.date_format", cfg.UI.DateFormat)
	v.Set("log.level", cfg.Log.Level)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
