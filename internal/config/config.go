package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	BucketName      string `env:"GCS_BUCKET_NAME,required"`
	CredentialsFile string `env:"GOOGLE_APPLICATION_CREDENTIALS"`

	PollInterval     time.Duration `env:"POLL_INTERVAL" envDefault:"10s"`
	OperationTimeout time.Duration `env:"OPERATION_TIMEOUT" envDefault:"30m"`
	UploadTimeout    time.Duration `env:"UPLOAD_TIMEOUT" envDefault:"10m"`

	OutputDir string `env:"OUTPUT_DIR" envDefault:"output"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile  string
	LogLevel string
}

// Load reads configuration from .env file, environment variables, and CLI
// overrides. Priority: CLI flags > environment variables > .env file >
// struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}

	return cfg, nil
}

// Validate checks everything that must hold before the first network call,
// covering what struct tags cannot express.
func (c *Config) Validate() error {
	if c.CredentialsFile == "" {
		return errors.New("GOOGLE_APPLICATION_CREDENTIALS is not set; point it at your service account key file, e.g. in .env")
	}
	if _, err := os.Stat(c.CredentialsFile); err != nil {
		return fmt.Errorf("credentials file: %w", err)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}
	if c.OperationTimeout <= 0 {
		return fmt.Errorf("OPERATION_TIMEOUT must be positive, got %s", c.OperationTimeout)
	}
	if c.UploadTimeout <= 0 {
		return fmt.Errorf("UPLOAD_TIMEOUT must be positive, got %s", c.UploadTimeout)
	}
	return nil
}
