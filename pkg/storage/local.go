package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalArchive stores artifacts under a directory tree on disk.
type LocalArchive struct {
	Root string
}

func NewLocalArchive(root string) *LocalArchive {
	return &LocalArchive{Root: root}
}

func (a *LocalArchive) Put(ctx context.Context, key string, data []byte) error {
	p := filepath.Join(a.Root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}
	// Snapshots can carry cost and tag data; keep them owner-only.
	return os.WriteFile(p, data, 0o600)
}

func (a *LocalArchive) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(a.Root, filepath.FromSlash(key)))
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", key, err)
	}
	return data, nil
}

func (a *LocalArchive) List(ctx context.Context, prefix string) ([]string, error) {
	root := filepath.Join(a.Root, filepath.FromSlash(prefix))
	var keys []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			rel, err := filepath.Rel(a.Root, p)
			if err != nil {
				return err
			}
			keys = append(keys, filepath.ToSlash(rel))
		}
		return nil
	})
	return keys, err
}
