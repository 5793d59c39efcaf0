// Package config loads ankitui configuration from, in order of precedence,
// command-line flags, ANKITUI_* environment variables, and a yaml config
// file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EngineConfig locates the external flashcard engine's bridge endpoint.
type EngineConfig struct {
	// URL is the bridge endpoint. Defaults to the fixed local loopback
	// address the engine listens on.
	URL string `koanf:"url"`
	// ProxyPath is an optional path prefix for deployments where requests
	// are routed through a local reverse proxy.
	ProxyPath string `koanf:"proxy_path"`
	// Timeout bounds one request round trip.
	Timeout time.Duration `koanf:"timeout"`
	// Key is the optional API key sent with every request.
	Key string `koanf:"key"`
}

// BaseURL is the effective bridge endpoint including any proxy prefix.
func (e EngineConfig) BaseURL() string {
	base := strings.TrimRight(e.URL, "/")
	if e.ProxyPath == "" {
		return base
	}
	return base + "/" + strings.Trim(e.ProxyPath, "/")
}

// DefaultsConfig holds the user's preferred study and authoring defaults.
type DefaultsConfig struct {
	Deck  string `koanf:"deck"`
	Model string `koanf:"model"`
	Query string `koanf:"query"`
}

// LogConfig controls the file logger.
type LogConfig struct {
	Level string `koanf:"level"`
	File  string `koanf:"file"`
}

// Config is the top-level configuration.
type Config struct {
	Engine   EngineConfig   `koanf:"engine"`
	Defaults DefaultsConfig `koanf:"defaults"`
	Log      LogConfig      `koanf:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			URL:     "http://127.0.0.1:8765",
			Timeout: 10 * time.Second,
		},
		Defaults: DefaultsConfig{
			Query: "is:due",
		},
		Log: LogConfig{
			Level: "info",
			File:  defaultLogFile(),
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "ankitui", "config.yaml")
}

func defaultLogFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "ankitui", "ankitui.log")
}

// RegisterFlags declares the flags that override config values.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("engine.url", "", "engine bridge URL")
	fs.String("engine.proxy_path", "", "path prefix for proxied engine access")
	fs.Duration("engine.timeout", 0, "engine request timeout")
	fs.String("engine.key", "", "engine API key")
	fs.String("log.level", "", "log level (debug, info, warn, error)")
	fs.String("log.file", "", "log file path")
}

// Load merges defaults, the config file at path (if present), environment
// variables and flags. A missing file is not an error; a malformed one is.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return cfg, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider("ANKITUI_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "ANKITUI_")), "_", ".")
	}), nil); err != nil {
		return cfg, fmt.Errorf("load environment: %w", err)
	}

	if fs != nil {
		if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
			return cfg, fmt.Errorf("load flags: %w", err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}
	fillDefaults(&cfg)
	return cfg, nil
}

// fillDefaults restores built-in values for settings an override source
// cleared back to a zero value.
func fillDefaults(cfg *Config) {
	def := Default()
	if cfg.Engine.URL == "" {
		cfg.Engine.URL = def.Engine.URL
	}
	if cfg.Engine.Timeout <= 0 {
		cfg.Engine.Timeout = def.Engine.Timeout
	}
	if cfg.Defaults.Query == "" {
		cfg.Defaults.Query = def.Defaults.Query
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.File == "" {
		cfg.Log.File = def.Log.File
	}
}
