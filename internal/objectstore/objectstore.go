// Package objectstore keeps downloaded audio. Objects live in an
// S3-compatible bucket (s3://bucket/key) or, without S3, in a local
// directory (file:///abs/path/key).
package objectstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/cesargomez89/songpipe/internal/constants"
)

var ErrNotFound = errors.New("object not found")

// Store writes and reads objects by key.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Open(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

// AudioKey is the object key of a track's audio.
func AudioKey(trackID, ext string) string {
	return path.Join("audio", Sanitize(trackID)+ext)
}

// Sanitize drops characters that are unsafe in file names and object keys.
func Sanitize(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if strings.ContainsRune("<>:\"/\\|?*", r) || r < 0x20 {
			return -1
		}
		return r
	}, s)
	return strings.TrimRight(mapped, ". ")
}

// Local stores objects below a directory.
type Local struct {
	root string
}

func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, constants.DirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create audio dir: %w", err)
	}
	return &Local{root: abs}, nil
}

func (l *Local) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	dst := filepath.Join(l.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), constants.DirPermissions); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", err
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Chmod(tmp.Name(), constants.FilePermissions); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("failed to move %s into place: %w", key, err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(dst)}).String(), nil
}

func (l *Local) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "file" {
		return nil, fmt.Errorf("not a file url: %s", rawURL)
	}
	f, err := os.Open(filepath.FromSlash(u.Path))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", rawURL, ErrNotFound)
	}
	return f, err
}

// HashReader returns the hex SHA-256 of r's content.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
