// internal/storage/disk.go
//
// Local-disk form.FileStore.
//
// Context
// -------
// Accepted uploads are written below Root under the destination the forms
// engine chooses (prefix/formID/storedName).  Bytes go to a temp file in the
// target directory first and are renamed into place, so a crash never leaves
// a half-written file under its final name.  The returned path is BaseURL
// joined with the destination, which is what submissions record.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/yanizio/formforge/internal/form"
)

// Disk stores files under Root.
type Disk struct {
	Root    string // filesystem directory
	BaseURL string // public prefix, e.g. "/uploads"
}

// NewDisk creates root if needed.
func NewDisk(root, baseURL string) (*Disk, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage root %s: %w", root, err)
	}
	return &Disk{Root: root, BaseURL: baseURL}, nil
}

// StoreFile implements form.FileStore.
func (d *Disk) StoreFile(ctx context.Context, f *form.UploadedFile, dest string) (string, error) {
	clean := path.Clean("/" + dest)
	if clean == "/" || strings.Contains(dest, "..") {
		return "", fmt.Errorf("storage: invalid destination %q", dest)
	}
	target := filepath.Join(d.Root, filepath.FromSlash(clean))

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", err
	}
	if _, err := os.Stat(target); err == nil {
		return "", fmt.Errorf("storage: %s already exists", dest)
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	if _, err := f.Content.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	n, err := io.Copy(tmp, contextReader{ctx, f.Content})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", err
	}

	zap.L().Debug("upload stored", zap.String("dest", clean), zap.Int64("bytes", n))
	return d.url(clean), nil
}

func (d *Disk) url(clean string) string {
	if d.BaseURL == "" {
		return clean
	}
	u, err := url.JoinPath(d.BaseURL, clean)
	if err != nil {
		return strings.TrimRight(d.BaseURL, "/") + clean
	}
	return u
}

// contextReader stops a copy when ctx is cancelled.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
