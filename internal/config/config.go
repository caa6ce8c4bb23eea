package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
// Values are fixed once the server starts; request handlers only read them.
type Config struct {
	Bind              string `envconfig:"SVGPAGES_BIND" default:"127.0.0.1"`
	Port              int    `envconfig:"SVGPAGES_PORT" default:"5000"`
	Index             string `envconfig:"SVGPAGES_INDEX" default:"/home"`
	SVGDir            string `envconfig:"SVGPAGES_SVG_DIR" default:"."`
	TemplateDir       string `envconfig:"SVGPAGES_TEMPLATE_DIR"`
	RedirectPermanent bool   `envconfig:"SVGPAGES_REDIRECT_PERMANENT" default:"false"`

	LogLevel string `envconfig:"SVGPAGES_LOG_LEVEL" default:"info"`
	LogDir   string `envconfig:"SVGPAGES_LOG_DIR" default:"./logs"`
	DBPath   string `envconfig:"SVGPAGES_DB_PATH"`

	RateLimitRPS   float64 `envconfig:"SVGPAGES_RATE_LIMIT_RPS" default:"0"`
	RateLimitBurst int     `envconfig:"SVGPAGES_RATE_LIMIT_BURST" default:"20"`
}

// Load reads configuration from .env file (if present) then from environment variables.
// Environment variables override .env values.
func Load() (*Config, error) {
	envFiles := []string{".env"}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				slog.Warn("failed to load .env file", "file", f, "error", err)
			} else {
				slog.Info("loaded .env file", "file", f)
			}
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	return &cfg, nil
}

// Addr returns the host:port the server listens on.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Bind, strconv.Itoa(c.Port))
}

// Validate checks configuration values for correctness. It is called after
// command-line overrides are applied, so it also verifies the SVG directory.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port must be 1-65535, got %d", ErrInvalidConfig, c.Port)
	}
	if net.ParseIP(c.Bind) == nil && c.Bind != "localhost" {
		return fmt.Errorf("%w: bind must be an IP address, got %q", ErrInvalidConfig, c.Bind)
	}
	if !strings.HasPrefix(c.Index, "/") {
		return fmt.Errorf("%w: index must start with \"/\", got %q", ErrInvalidConfig, c.Index)
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("%w: rate limit must not be negative, got %v", ErrInvalidConfig, c.RateLimitRPS)
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		return fmt.Errorf("%w: rate limit burst must be at least 1, got %d", ErrInvalidConfig, c.RateLimitBurst)
	}

	info, err := os.Stat(c.SVGDir)
	if err != nil {
		return fmt.Errorf("%w: SVG folder %q does not exist", ErrInvalidConfig, c.SVGDir)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: SVG folder %q is not a directory", ErrInvalidConfig, c.SVGDir)
	}

	if c.TemplateDir != "" {
		info, err := os.Stat(c.TemplateDir)
		if err != nil || !info.IsDir() {
			return fmt.Errorf("%w: template folder %q is not a directory", ErrInvalidConfig, c.TemplateDir)
		}
	}
	return nil
}
