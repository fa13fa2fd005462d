// Package blob abstracts checkpoint archive storage over filesystem, S3
// compatible, and in-memory backends.
package blob

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Driver identifies a concrete blob backend.
type Driver string

const (
	// DriverFilesystem is the local filesystem backend, the default.
	DriverFilesystem Driver = "fs"
	// DriverS3 is an S3 or MinIO compatible backend.
	DriverS3 Driver = "s3"
	// DriverMemory is the in-memory backend used by tests.
	DriverMemory Driver = "memory"
)

// PutOptions carries optional metadata for a write.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// Info describes a stored blob.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

// Store is the backend surface the checkpoint exporter writes through.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

// Options selects and configures a backend.
type Options struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open constructs the store selected by opts.Driver, defaulting to the
// filesystem backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	driver := opts.Driver
	if driver == "" {
		driver = DriverFilesystem
	}
	switch driver {
	case DriverFilesystem:
		return NewFilesystem(opts.FSRoot)
	case DriverS3:
		return NewS3(ctx, opts.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
