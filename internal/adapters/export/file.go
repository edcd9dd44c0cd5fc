// Package export publishes exported quote collections to a local directory
// or an S3-compatible bucket.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes exports into a directory. A reader of the target path sees
// either the previous file or the complete new one.
type FileSink struct {
	dir string
}

// NewFileSink creates a sink rooted at dir. The directory is created on the
// first publish.
func NewFileSink(dir string) (*FileSink, error) {
	if dir == "" {
		return nil, errors.New("export directory is required")
	}

	return &FileSink{dir: dir}, nil
}

// Publish implements ports.ExportSink and returns the written path.
func (s *FileSink) Publish(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid export name %q", name)
	}

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}

	target := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}

	tmpName := tmp.Name()
	committed := false

	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("writing export: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("syncing export: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing export: %w", err)
	}

	if err := os.Rename(tmpName, target); err != nil {
		return "", fmt.Errorf("replacing %s: %w", target, err)
	}

	committed = true

	return target, nil
}
