package config

import (
	"testing"
	"time"

	"aclchain/internal/infra/persistence"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != persistence.DriverSQLite {
		t.Fatalf("driver = %q", cfg.Storage.Driver)
	}
	if cfg.Storage.SQLitePath != "aclchain.db" {
		t.Fatalf("sqlite path = %q", cfg.Storage.SQLitePath)
	}
	if cfg.Checkpoint.Interval != 5*time.Minute || cfg.Checkpoint.Keep != 10 {
		t.Fatalf("checkpoint = %+v", cfg.Checkpoint)
	}
	if cfg.MetricsAddr != ":9184" {
		t.Fatalf("metrics addr = %q", cfg.MetricsAddr)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ACLCHAIN_STORAGE_DRIVER", "postgres")
	t.Setenv("ACLCHAIN_POSTGRES_DSN", "postgres://ledger@db/aclchain")
	t.Setenv("ACLCHAIN_BLOB_DRIVER", "s3")
	t.Setenv("ACLCHAIN_BLOB_S3_BUCKET", "aclchain-checkpoints")
	t.Setenv("ACLCHAIN_BLOB_S3_PATH_STYLE", "true")
	t.Setenv("ACLCHAIN_CHECKPOINT_INTERVAL", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	opts := cfg.StorageOptions()
	if opts.Driver != persistence.DriverPostgres || opts.PostgresDSN != "postgres://ledger@db/aclchain" {
		t.Fatalf("storage options = %+v", opts)
	}
	blobOpts := cfg.BlobOptions()
	if blobOpts.S3.Bucket != "aclchain-checkpoints" || !blobOpts.S3.PathStyle {
		t.Fatalf("blob options = %+v", blobOpts)
	}
	if cfg.Checkpoint.Interval != 30*time.Second {
		t.Fatalf("interval = %v", cfg.Checkpoint.Interval)
	}
}
