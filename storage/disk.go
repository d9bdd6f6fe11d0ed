package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Disk keeps objects under root/bucket/key on the local filesystem. It is
// used for local development and tests.
type Disk struct {
	root       string
	scratchDir string
}

func NewDisk(root, scratchDir string) (*Disk, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Disk{root: root, scratchDir: scratchDir}, nil
}

func (d *Disk) Put(ctx context.Context, bucket, key string, r io.Reader) (Ref, error) {
	dst, err := d.path(bucket, key)
	if err != nil {
		return Ref{}, &Error{Op: "put", Bucket: bucket, Key: key, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return Ref{}, &Error{Op: "put", Bucket: bucket, Key: key, Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Ref{}, &Error{Op: "put", Bucket: bucket, Key: key, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return Ref{}, &Error{Op: "put", Bucket: bucket, Key: key, Err: err}
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return Ref{}, &Error{Op: "put", Bucket: bucket, Key: key, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return Ref{}, &Error{Op: "put", Bucket: bucket, Key: key, Err: err}
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return Ref{}, &Error{Op: "put", Bucket: bucket, Key: key, Err: err}
	}

	return Ref{
		Bucket:      bucket,
		Key:         key,
		ContentType: ContentType(key),
		URL:         "file://" + dst,
	}, nil
}

func (d *Disk) PutFile(ctx context.Context, bucket, key, localPath string) (Ref, error) {
	return putFile(ctx, d, bucket, key, localPath)
}

func (d *Disk) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	f, err := d.open(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, &Error{Op: "get", Bucket: bucket, Key: key, Err: err}
	}
	return data, nil
}

func (d *Disk) GetToFile(ctx context.Context, bucket, key string) (string, error) {
	f, err := d.open(ctx, bucket, key)
	if err != nil {
		return "", err
	}
	defer f.Close()

	localPath, err := copyToScratch(d.scratchDir, f)
	if err != nil {
		return "", &Error{Op: "download", Bucket: bucket, Key: key, Err: err}
	}
	return localPath, nil
}

func (d *Disk) open(ctx context.Context, bucket, key string) (*os.File, error) {
	src, err := d.path(bucket, key)
	if err != nil {
		return nil, &Error{Op: "get", Bucket: bucket, Key: key, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: "get", Bucket: bucket, Key: key, Err: err}
	}

	f, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = ErrObjectNotFound
		}
		return nil, &Error{Op: "get", Bucket: bucket, Key: key, Err: err}
	}
	return f, nil
}

func (d *Disk) path(bucket, key string) (string, error) {
	if bucket == "" || strings.ContainsAny(bucket, `/\`) || bucket == "." || bucket == ".." {
		return "", fmt.Errorf("invalid bucket %q", bucket)
	}
	clean := path.Clean("/" + key)
	if key == "" || clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(d.root, bucket, filepath.FromSlash(clean)), nil
}
