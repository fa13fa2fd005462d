package blob

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Filesystem stores blobs as files under a root directory with a JSON
// sidecar per blob for metadata. Keys map to relative paths.
type Filesystem struct {
	root string
}

var _ Store = (*Filesystem)(nil)

// NewFilesystem returns a store rooted at path, creating it if needed.
func NewFilesystem(root string) (*Filesystem, error) {
	if root == "" {
		root = "./checkpoints"
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &Filesystem{root: root}, nil
}

// Driver identifies the backend.
func (s *Filesystem) Driver() Driver { return DriverFilesystem }

const metaSuffix = ".meta"

type sidecar struct {
	ContentType string            `json:"content_type,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Size        int64             `json:"size"`
	CreatedAt   time.Time         `json:"created_at"`
}

// sanitizeKey refuses keys that would escape the root.
func sanitizeKey(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty blob key")
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.ToSlash(filepath.Clean(key)), nil
}

func (s *Filesystem) pathFor(key string) (string, error) {
	clean, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, clean), nil
}

// Put writes a new blob. Existing keys are refused.
func (s *Filesystem) Put(_ context.Context, key string, r io.Reader, opts PutOptions) (Info, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return Info{}, err
	}
	if _, err := os.Stat(path); err == nil {
		return Info{}, fmt.Errorf("blob %s already exists", key)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return Info{}, fmt.Errorf("create blob dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return Info{}, fmt.Errorf("create temp blob: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	size, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		return Info{}, fmt.Errorf("write blob %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return Info{}, fmt.Errorf("close temp blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return Info{}, fmt.Errorf("finalize blob %s: %w", key, err)
	}

	now := time.Now().UTC()
	meta := sidecar{ContentType: opts.ContentType, Metadata: opts.Metadata, Size: size, CreatedAt: now}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return Info{}, fmt.Errorf("encode blob meta: %w", err)
	}
	if err := os.WriteFile(path+metaSuffix, metaBytes, 0o640); err != nil {
		return Info{}, fmt.Errorf("write blob meta: %w", err)
	}
	return Info{Key: key, Size: size, ContentType: opts.ContentType, Metadata: opts.Metadata, LastModified: now}, nil
}

// Get opens a blob for reading.
func (s *Filesystem) Get(ctx context.Context, key string) (Info, io.ReadCloser, error) {
	info, err := s.Head(ctx, key)
	if err != nil {
		return Info{}, nil, err
	}
	path, err := s.pathFor(key)
	if err != nil {
		return Info{}, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return Info{}, nil, fmt.Errorf("open blob %s: %w", key, err)
	}
	return info, f, nil
}

// Head returns blob metadata without opening the content.
func (s *Filesystem) Head(_ context.Context, key string) (Info, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return Info{}, err
	}
	stat, err := os.Stat(path)
	if err != nil {
		return Info{}, fmt.Errorf("blob %s not found", key)
	}
	info := Info{Key: key, Size: stat.Size(), LastModified: stat.ModTime().UTC()}
	if metaBytes, err := os.ReadFile(path + metaSuffix); err == nil {
		var meta sidecar
		if err := json.Unmarshal(metaBytes, &meta); err == nil {
			info.ContentType = meta.ContentType
			info.Metadata = meta.Metadata
			info.LastModified = meta.CreatedAt
		}
	}
	return info, nil
}

// Delete removes a blob, reporting whether it existed.
func (s *Filesystem) Delete(_ context.Context, key string) (bool, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		return false, nil
	}
	if err := os.Remove(path); err != nil {
		return false, fmt.Errorf("delete blob %s: %w", key, err)
	}
	_ = os.Remove(path + metaSuffix)
	return true, nil
}

// List returns blobs under prefix sorted by key.
func (s *Filesystem) List(ctx context.Context, prefix string) ([]Info, error) {
	var infos []Info
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || strings.HasSuffix(path, metaSuffix) {
			return err
		}
		if strings.HasPrefix(filepath.Base(path), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := s.Head(ctx, key)
		if err != nil {
			return err
		}
		infos = append(infos, info)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}
