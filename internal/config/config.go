// Package config handles loading and parsing application configuration.
// It supports two sources for the file location (in priority order):
//  1. A command-line flag:      --config=/path/to/config.yaml
//  2. An environment variable:  CONFIG_PATH=/path/to/config.yaml
//
// Every value in the file can be overridden by its environment variable.
// The parsed values are returned as a *Config pointer so the struct is
// shared by reference rather than copied everywhere.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Storage backends understood by the record store factory.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Asset backends understood by the asset store factory.
const (
	AssetsFS = "fs"
	AssetsS3 = "s3"
)

// Config is the root configuration structure.
// Every field maps to a key in the YAML file AND can be overridden
// by the corresponding environment variable (env:"...").
//
// env-required:"true" means the app refuses to start if that value is
// missing — better to crash at boot than to silently use a wrong default.
type Config struct {
	// Env controls log format and verbosity.
	// Valid values: "dev", "staging", "prod"
	Env string `yaml:"env" env:"ENV" env-required:"true"`

	// StoragePath is the filesystem path to the SQLite .db file.
	StoragePath string `yaml:"storage_path" env:"STORAGE_PATH" env-required:"true"`

	// StorageBackend selects the record store: "sqlite" or "memory".
	StorageBackend string `yaml:"storage_backend" env:"STORAGE_BACKEND" env-default:"sqlite"`

	// StoreTimeout bounds every record store call. A call that runs past
	// it is reported as a storage fault instead of blocking forever.
	StoreTimeout time.Duration `yaml:"store_timeout" env:"STORE_TIMEOUT" env-default:"5s"`

	// HTTPServer is embedded (not a pointer) so cfg.Addr works directly.
	HTTPServer `yaml:"http_server"`

	Assets      Assets      `yaml:"assets"`
	ImageSource ImageSource `yaml:"image_source"`
}

// HTTPServer holds settings specific to the HTTP server.
// Nested under http_server: in the YAML file.
type HTTPServer struct {
	// Addr is the TCP address the server listens on, e.g. "localhost:8082".
	Addr string `yaml:"address" env:"HTTP_SERVER_ADDR" env-default:"localhost:8082"`
}

// Assets configures where student photos are persisted.
type Assets struct {
	// Backend is "fs" (copy into Dir) or "s3" (upload to a bucket).
	Backend string `yaml:"backend" env:"ASSETS_BACKEND" env-default:"fs"`
	Dir     string `yaml:"dir" env:"ASSETS_DIR" env-default:"storage/photos"`
	S3      S3     `yaml:"s3"`
}

// S3 holds MinIO / S3 connection settings for the "s3" asset backend.
type S3 struct {
	Endpoint  string `yaml:"endpoint" env:"S3_ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"S3_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"S3_SECRET_KEY"`
	Bucket    string `yaml:"bucket" env:"S3_BUCKET" env-default:"student-photos"`
	Region    string `yaml:"region" env:"S3_REGION" env-default:"us-east-1"`
	UseSSL    bool   `yaml:"use_ssl" env:"S3_USE_SSL"`
}

// ImageSource configures the camera capture directory.
type ImageSource struct {
	// CaptureDir is watched for new image files when acquiring from the
	// camera. Whatever tool drives the camera drops its shots here.
	CaptureDir string `yaml:"capture_dir" env:"CAPTURE_DIR" env-default:"storage/capture"`

	// CaptureTimeout is how long to wait for a shot before treating the
	// acquisition as cancelled.
	CaptureTimeout time.Duration `yaml:"capture_timeout" env:"CAPTURE_TIMEOUT" env-default:"2m"`
}

// Load reads, validates, and returns the application config.
// An empty configPath falls back to the CONFIG_PATH environment variable.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}

	// Neither source provided a path — we cannot continue.
	if configPath == "" {
		return nil, errors.New("config path is not set: use --config flag or CONFIG_PATH env var")
	}

	// Verify the file exists before trying to read it, so the user gets a
	// clear message rather than a cryptic "open: no such file" later.
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	// cleanenv.ReadConfig reads the YAML file and populates the struct.
	// It also reads any env:"..." tagged fields from the environment,
	// applies env-default values and validates env-required constraints.
	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageBackend {
	case BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("unknown storage_backend %q: want %q or %q",
			c.StorageBackend, BackendSQLite, BackendMemory)
	}

	switch c.Assets.Backend {
	case AssetsFS:
	case AssetsS3:
		if c.Assets.S3.Endpoint == "" {
			return errors.New("assets.s3.endpoint is required for the s3 asset backend")
		}
	default:
		return fmt.Errorf("unknown assets.backend %q: want %q or %q",
			c.Assets.Backend, AssetsFS, AssetsS3)
	}

	if c.StoreTimeout <= 0 {
		return errors.New("store_timeout must be positive")
	}
	return nil
}
