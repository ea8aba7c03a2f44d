package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
)

type gcsBackend struct {
	client *gcs.Client
	bucket string
	prefix string
}

// newGCSBackend uses Application Default Credentials.
func newGCSBackend(ctx context.Context, bucket, prefix string) (*gcsBackend, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs storage requires a bucket")
	}

	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, err
	}

	return &gcsBackend{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}, nil
}

func (b *gcsBackend) Put(ctx context.Context, key string, data []byte, contentType string) error {
	w := b.client.Bucket(b.bucket).Object(objectKey(b.prefix, key)).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func (b *gcsBackend) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := b.client.Bucket(b.bucket).Object(objectKey(b.prefix, key)).NewReader(ctx)
	if err != nil {
		if stderrors.Is(err, gcs.ErrObjectNotExist) {
			return nil, notFound(key)
		}
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}
