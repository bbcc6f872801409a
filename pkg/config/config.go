package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Jikan    JikanConfig    `yaml:"jikan"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Sessions SessionsConfig `yaml:"sessions"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type HTTPConfig struct {
	Addr           string   `yaml:"addr"`
	TrustedProxies []string `yaml:"trusted_proxies"`
}

type JikanConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Timeout       time.Duration `yaml:"timeout"`
	DetailTimeout time.Duration `yaml:"detail_timeout"`
}

type RefreshConfig struct {
	// Schedule is a cron spec ("@every 6h", "0 */6 * * *"). Empty disables
	// periodic reloads.
	Schedule string `yaml:"schedule"`
	Timezone string `yaml:"timezone"`
}

type ArchiveConfig struct {
	// Path of the sqlite archive. Empty disables archiving.
	Path string `yaml:"path"`
}

type SessionsConfig struct {
	Max int `yaml:"max"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:           ":8080",
			TrustedProxies: []string{"127.0.0.1"},
		},
		Jikan: JikanConfig{
			BaseURL:       "https://api.jikan.moe/v4",
			Timeout:       15 * time.Second,
			DetailTimeout: 10 * time.Second,
		},
		Refresh:  RefreshConfig{Timezone: "UTC"},
		Sessions: SessionsConfig{Max: 1024},
		Logging:  LoggingConfig{Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// ANIMEDASH_* environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Path returns the config file named by ANIMEDASH_CONFIG, if any.
func Path() string {
	return os.Getenv("ANIMEDASH_CONFIG")
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("ANIMEDASH_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("ANIMEDASH_JIKAN_BASE_URL"); v != "" {
		cfg.Jikan.BaseURL = v
	}
	if v := os.Getenv("ANIMEDASH_JIKAN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ANIMEDASH_JIKAN_TIMEOUT: %w", err)
		}
		cfg.Jikan.Timeout = d
	}
	if v := os.Getenv("ANIMEDASH_REFRESH_SCHEDULE"); v != "" {
		cfg.Refresh.Schedule = v
	}
	if v := os.Getenv("ANIMEDASH_ARCHIVE_PATH"); v != "" {
		cfg.Archive.Path = v
	}
	if v := os.Getenv("ANIMEDASH_SESSIONS_MAX"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ANIMEDASH_SESSIONS_MAX: %w", err)
		}
		cfg.Sessions.Max = n
	}
	if v := os.Getenv("ANIMEDASH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}

func (c Config) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr required")
	}
	if c.Jikan.BaseURL == "" {
		return fmt.Errorf("jikan.base_url required")
	}
	if c.Jikan.Timeout <= 0 || c.Jikan.DetailTimeout <= 0 {
		return fmt.Errorf("jikan timeouts must be positive")
	}
	if c.Sessions.Max <= 0 {
		return fmt.Errorf("sessions.max must be positive")
	}
	return nil
}
