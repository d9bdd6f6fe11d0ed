package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type GCSConfig struct {
	ProjectID string
	// CredentialsBase64 is a base64 encoded service account JSON. Empty
	// means application default credentials.
	CredentialsBase64 string
	ScratchDir        string
}

type GCS struct {
	client     *gcs.Client
	scratchDir string
}

func NewGCS(ctx context.Context, cfg GCSConfig) (*GCS, error) {
	var opts []option.ClientOption
	if cfg.CredentialsBase64 != "" {
		raw, err := base64.StdEncoding.DecodeString(strings.Trim(cfg.CredentialsBase64, `"`))
		if err != nil {
			return nil, fmt.Errorf("decode gcp credentials: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(raw))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	return &GCS{client: client, scratchDir: cfg.ScratchDir}, nil
}

func (g *GCS) Put(ctx context.Context, bucket, key string, r io.Reader) (Ref, error) {
	// Closing the writer commits the object, so a failed copy aborts the
	// upload by cancelling its context instead.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := g.client.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = ContentType(key)

	if _, err := io.Copy(w, r); err != nil {
		cancel()
		return Ref{}, &Error{Op: "put", Bucket: bucket, Key: key, Err: err}
	}
	if err := w.Close(); err != nil {
		return Ref{}, &Error{Op: "put", Bucket: bucket, Key: key, Err: err}
	}

	return Ref{
		Bucket:      bucket,
		Key:         key,
		ContentType: w.ContentType,
		URL:         fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, key),
	}, nil
}

func (g *GCS) PutFile(ctx context.Context, bucket, key, localPath string) (Ref, error) {
	return putFile(ctx, g, bucket, key, localPath)
}

func (g *GCS) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	rc, err := g.open(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &Error{Op: "get", Bucket: bucket, Key: key, Err: err}
	}
	return data, nil
}

func (g *GCS) GetToFile(ctx context.Context, bucket, key string) (string, error) {
	rc, err := g.open(ctx, bucket, key)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	localPath, err := copyToScratch(g.scratchDir, rc)
	if err != nil {
		return "", &Error{Op: "download", Bucket: bucket, Key: key, Err: err}
	}
	return localPath, nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}

func (g *GCS) open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	rc, err := g.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) || errors.Is(err, gcs.ErrBucketNotExist) {
			err = ErrObjectNotFound
		}
		return nil, &Error{Op: "get", Bucket: bucket, Key: key, Err: err}
	}
	return rc, nil
}
