// Package staging writes upload payloads to short-lived files on local disk.
// A staged file belongs to exactly one request and must be released by it.
package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/vidfriends/uploader/internal/logging"
)

// File is a staged copy of an uploaded payload.
type File struct {
	Path string
	Size int64
}

// Stage copies r into a uniquely named file under dir. An empty dir uses the
// system temp directory. On failure nothing is left on disk.
func Stage(ctx context.Context, dir, name string, r io.Reader) (*File, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("staging: mkdir %s: %w", dir, err)
	}

	path := filepath.Join(dir, uuid.NewString()+safeExt(name))
	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("staging: create: %w", err)
	}

	size, copyErr := io.Copy(out, &contextReader{ctx: ctx, r: r})
	closeErr := out.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("staging: write %s: %w", path, err)
	}

	return &File{Path: path, Size: size}, nil
}

// Open returns a reader over the staged bytes.
func (f *File) Open() (*os.File, error) {
	if f == nil {
		return nil, errors.New("staging: nil file")
	}
	return os.Open(f.Path)
}

// Release deletes the staged copy. Failures are logged and otherwise ignored.
func (f *File) Release(ctx context.Context) {
	if f == nil {
		return
	}
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.FromContext(ctx).Error("failed to remove staged file", "path", f.Path, "error", err)
	}
}

func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if len(ext) > 16 || strings.ContainsAny(ext, `/\`) {
		return ""
	}
	return ext
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
