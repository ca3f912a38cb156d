// Package config loads the dotspan configuration file.
//
// The file is TOML and lives at $XDG_CONFIG_HOME/dotspan/config.toml by
// default. Every key is optional; a missing file yields [Default]. Command
// line flags override whatever the file sets.
package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/dotspan/dotspan/pkg/cache"
	"github.com/dotspan/dotspan/pkg/errors"
	"github.com/dotspan/dotspan/pkg/export"
	"github.com/dotspan/dotspan/pkg/palette"
)

// Cache backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendNone  = "none"
)

// Config is the full configuration.
type Config struct {
	Theme       string `toml:"theme"`
	Font        string `toml:"font"`
	Paper       string `toml:"paper"`
	JPEGQuality int    `toml:"jpeg_quality"`

	Cache  Cache  `toml:"cache"`
	Server Server `toml:"server"`
}

// Cache configures the artifact and image cache.
type Cache struct {
	Backend       string        `toml:"backend"`
	Dir           string        `toml:"dir"` // Empty means the user cache directory
	RedisAddr     string        `toml:"redis_addr"`
	RedisPassword string        `toml:"redis_password"`
	RedisDB       int           `toml:"redis_db"`
	RedisPrefix   string        `toml:"redis_prefix"`
	TTL           time.Duration `toml:"ttl"`
}

// Server configures the HTTP API.
type Server struct {
	Addr         string        `toml:"addr"`
	ReadTimeout  time.Duration `toml:"read_timeout"`
	WriteTimeout time.Duration `toml:"write_timeout"`
	MaxBodyBytes int64         `toml:"max_body_bytes"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Theme:       palette.DefaultThemeID,
		Font:        "sans",
		Paper:       string(export.DefaultPaper),
		JPEGQuality: export.DefaultJPEGQuality,
		Cache: Cache{
			Backend:     BackendFile,
			RedisAddr:   "localhost:6379",
			RedisPrefix: "dotspan:",
			TTL:         cache.TTLArtifact,
		},
		Server: Server{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			MaxBodyBytes: 1 << 20,
		},
	}
}

// Path returns the default config file location.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidConfig, err, "locate config directory")
	}
	return filepath.Join(dir, "dotspan", "config.toml"), nil
}

// Load reads the file at path over [Default]. An empty path means [Path].
// A missing file is not an error. Unknown keys are.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		p, err := Path()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	md, err := toml.DecodeFile(path, &cfg)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, errors.New(errors.ErrCodeInvalidConfig, "%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "%s", path)
	}
	return cfg, nil
}

// Validate checks every value.
func (c Config) Validate() error {
	if c.Theme != "" {
		if _, ok := palette.Lookup(c.Theme); !ok {
			return errors.New(errors.ErrCodeInvalidTheme, "unknown theme %q (available: %s)",
				c.Theme, strings.Join(palette.ThemeIDs(), ", "))
		}
	}
	if _, err := export.ParsePaperSize(c.Paper); err != nil {
		return err
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return errors.New(errors.ErrCodeInvalidConfig, "jpeg_quality must be between 1 and 100, got %d", c.JPEGQuality)
	}
	switch c.Cache.Backend {
	case BackendFile, BackendNone:
	case BackendRedis:
		if c.Cache.RedisAddr == "" {
			return errors.New(errors.ErrCodeInvalidConfig, "cache.redis_addr is required for the redis backend")
		}
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "cache.backend must be file, redis or none, got %q", c.Cache.Backend)
	}
	if c.Cache.TTL < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "cache.ttl must not be negative")
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "server timeouts must not be negative")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "server.max_body_bytes must be positive")
	}
	return nil
}

// Write encodes c as TOML.
func (c Config) Write(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
