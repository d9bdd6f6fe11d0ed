// Package storage is the blob store adapter: byte streams addressed by
// bucket and key. It holds no business logic; callers decide whether a
// failed call is retried.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"strings"
)

var ErrObjectNotFound = errors.New("object not found")

// Error is returned by every Store operation that fails.
type Error struct {
	Op     string
	Bucket string
	Key    string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage %s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type Ref struct {
	Bucket      string
	Key         string
	ContentType string
	URL         string
}

type Store interface {
	Put(ctx context.Context, bucket, key string, r io.Reader) (Ref, error)
	PutFile(ctx context.Context, bucket, key, localPath string) (Ref, error)
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	// GetToFile downloads the object into a new scratch file and returns its
	// path. The caller owns the file.
	GetToFile(ctx context.Context, bucket, key string) (string, error)
}

var contentTypes = map[string]string{
	".mp4": "video/mp4",
	".mov": "video/quicktime",
	".png": "image/png",
}

// ContentType derives the object content type from the key extension.
func ContentType(key string) string {
	ext := strings.ToLower(path.Ext(key))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func putFile(ctx context.Context, s Store, bucket, key, localPath string) (Ref, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return Ref{}, &Error{Op: "put", Bucket: bucket, Key: key, Err: err}
	}
	defer f.Close()

	return s.Put(ctx, bucket, key, f)
}

func copyToScratch(dir string, r io.Reader) (string, error) {
	f, err := os.CreateTemp(dir, "source-*.mp4")
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}

	return f.Name(), nil
}
