package report

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// WriteFile renders doc with r and replaces the file at path with the
// result. The file is written next to its destination and renamed, so a
// failed write leaves any previous report intact. Every failure wraps
// ErrWrite.
func WriteFile(ctx context.Context, path string, r Reporter, doc *Document) error {
	var buf bytes.Buffer
	if err := r.Generate(ctx, doc, &buf); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: writing %s: %w", ErrWrite, path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: writing %s: %w", ErrWrite, path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%w: replacing %s: %w", ErrWrite, path, err)
	}
	return nil
}
