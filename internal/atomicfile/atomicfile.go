// Package atomicfile writes files so that readers see either the old content
// or the complete new content, never a partial file.
package atomicfile

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
)

// WriteFile writes path by calling write with a buffered temp file created in
// the same directory, then syncing and renaming it over path. On any error
// the temp file is removed and path is left untouched.
func WriteFile(ctx context.Context, path string, perm os.FileMode, write func(io.Writer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		return fail(err)
	}
	if err := bw.Flush(); err != nil {
		return fail(err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := ctx.Err(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	// best effort: persist the rename itself
	_ = syncDir(dir)
	return nil
}

// WriteBytes is WriteFile for content already in memory.
func WriteBytes(ctx context.Context, path string, perm os.FileMode, data []byte) error {
	return WriteFile(ctx, path, perm, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}
