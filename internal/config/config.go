// Package config loads the server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/3-lines-studio/ssrserve/internal/core"
)

var ErrInvalidBase = errors.New("invalid base path")

type Config struct {
	NodeEnv         string        `env:"NODE_ENV" envDefault:"development"`
	Host            string        `env:"HOST"`
	Port            int           `env:"PORT" envDefault:"5173"`
	Base            string        `env:"BASE" envDefault:"/"`
	Root            string        `env:"ROOT" envDefault:"."`
	Template        string        `env:"TEMPLATE" envDefault:"index.html"`
	DevEntry        string        `env:"DEV_ENTRY" envDefault:"/src/entry/entry-server.tsx"`
	ClientDir       string        `env:"CLIENT_DIR" envDefault:"dist/client"`
	ServerEntry     string        `env:"SERVER_ENTRY" envDefault:"dist/server/entry-server.js"`
	Runtime         string        `env:"SSR_RUNTIME" envDefault:"node"`
	RenderTimeout   time.Duration `env:"RENDER_TIMEOUT" envDefault:"0s"`
	MetricsAddr     string        `env:"METRICS_ADDR"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	WatchExecutable bool          `env:"WATCH_EXECUTABLE" envDefault:"true"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Normalize validates fields that env parsing cannot, and canonicalizes the
// base path. It is also used after CLI flags override env values.
func (c *Config) Normalize() error {
	base, err := core.NormalizeBase(c.Base)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBase, err)
	}
	c.Base = base

	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.RenderTimeout < 0 {
		return fmt.Errorf("invalid render timeout %s", c.RenderTimeout)
	}
	if c.Root == "" {
		c.Root = "."
	}
	if c.Runtime == "" {
		c.Runtime = "node"
	}
	return nil
}

func (c Config) Mode() core.Mode {
	return core.ModeFromEnv(c.NodeEnv)
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Path resolves a configured path against the project root.
func (c Config) Path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}

func (c Config) ClientTemplatePath() string {
	return c.Path(filepath.Join(c.ClientDir, "index.html"))
}

func (c Config) ManifestPath() string {
	return c.Path(filepath.Join(c.ClientDir, ".vite", "ssr-manifest.json"))
}
