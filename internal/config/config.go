package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

// Config holds the server settings, read from the environment
type Config struct {
	// HTTP listen address, e.g. ":8080"
	Address string `env:"ADDRESS" envDefault:":8080"`

	// Analysis service endpoint receiving the past_image/current_image upload
	AnalyzeURL string `env:"ANALYZE_URL" envDefault:"http://127.0.0.1:5001/analyze"`
	// Overall deadline of one analysis request; 0 leaves it to the transport
	AnalyzeTimeout time.Duration `env:"ANALYZE_TIMEOUT" envDefault:"2m"`

	MaxUploadBytes      int64         `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
	PreviewMaxDimension uint          `env:"PREVIEW_MAX_DIMENSION" envDefault:"600"`
	PreviewTTL          time.Duration `env:"PREVIEW_TTL" envDefault:"1h"`
	// Largest accepted width*height; uploads above it are rejected before decoding
	MaxImagePixels      int64         `env:"MAX_IMAGE_PIXELS" envDefault:"50000000"`

	SessionIdleTTL       time.Duration `env:"SESSION_IDLE_TTL" envDefault:"30m"`
	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"1m"`
	// SQLite DSN of the session index. The default never touches disk.
	SessionDB string `env:"SESSION_DB" envDefault:"file:infrascan-sessions?mode=memory&cache=shared"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

// Load loads .env (if present) and parses environment variables into Config.
func Load() (Config, error) {
	// .env is optional
	_ = godotenv.Load()

	return parse(env.Options{})
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	u, err := url.Parse(c.AnalyzeURL)
	if err != nil {
		return fmt.Errorf("ANALYZE_URL: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("ANALYZE_URL must be an absolute http(s) URL, got %q", c.AnalyzeURL)
	}
	if c.AnalyzeTimeout < 0 {
		return errors.New("ANALYZE_TIMEOUT must not be negative")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	}
	if c.MaxImagePixels <= 0 {
		return errors.New("MAX_IMAGE_PIXELS must be positive")
	}
	if c.PreviewTTL <= 0 {
		return errors.New("PREVIEW_TTL must be positive")
	}
	if c.SessionIdleTTL <= 0 || c.SessionSweepInterval <= 0 {
		return errors.New("SESSION_IDLE_TTL and SESSION_SWEEP_INTERVAL must be positive")
	}
	if c.SessionDB == "" {
		return errors.New("SESSION_DB is empty")
	}
	return nil
}
