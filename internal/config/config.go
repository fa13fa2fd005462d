// Package config loads daemon settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"aclchain/internal/blob"
	"aclchain/internal/infra/persistence"
)

// Config is the complete daemon configuration. Every field has an ACLCHAIN_
// environment variable; defaults give a durable single-node setup.
type Config struct {
	LogLevel    string `env:"ACLCHAIN_LOG_LEVEL" env-default:"info"`
	MetricsAddr string `env:"ACLCHAIN_METRICS_ADDR" env-default:":9184"`

	Storage struct {
		Driver      string `env:"ACLCHAIN_STORAGE_DRIVER" env-default:"sqlite"`
		SQLitePath  string `env:"ACLCHAIN_SQLITE_PATH" env-default:"aclchain.db"`
		PostgresDSN string `env:"ACLCHAIN_POSTGRES_DSN"`
	}

	Blob struct {
		Driver      string `env:"ACLCHAIN_BLOB_DRIVER" env-default:"fs"`
		FSRoot      string `env:"ACLCHAIN_BLOB_FS_ROOT" env-default:"./checkpoints"`
		S3Bucket    string `env:"ACLCHAIN_BLOB_S3_BUCKET"`
		S3Region    string `env:"ACLCHAIN_BLOB_S3_REGION"`
		S3Endpoint  string `env:"ACLCHAIN_BLOB_S3_ENDPOINT"`
		S3PathStyle bool   `env:"ACLCHAIN_BLOB_S3_PATH_STYLE"`
	}

	Checkpoint struct {
		Interval time.Duration `env:"ACLCHAIN_CHECKPOINT_INTERVAL" env-default:"5m"`
		Keep     int           `env:"ACLCHAIN_CHECKPOINT_KEEP" env-default:"10"`
	}
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return cfg, nil
}

// StorageOptions maps the storage section onto the persistence factory.
func (c Config) StorageOptions() persistence.Options {
	return persistence.Options{
		Driver:      c.Storage.Driver,
		SQLitePath:  c.Storage.SQLitePath,
		PostgresDSN: c.Storage.PostgresDSN,
	}
}

// BlobOptions maps the blob section onto the blob factory.
func (c Config) BlobOptions() blob.Options {
	return blob.Options{
		Driver: blob.Driver(c.Blob.Driver),
		FSRoot: c.Blob.FSRoot,
		S3: blob.S3Config{
			Region:    c.Blob.S3Region,
			Bucket:    c.Blob.S3Bucket,
			Endpoint:  c.Blob.S3Endpoint,
			PathStyle: c.Blob.S3PathStyle,
		},
	}
}
