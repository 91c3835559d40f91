package files

import (
	"context"
	"io"

	"github.com/kurin/blazer/b2"
	"github.com/pkg/errors"

	"github.com/evolvere-edu/evolvere/core"
	"github.com/evolvere-edu/evolvere/core/material"
)

type b2Store struct {
	bucket *b2.Bucket
}

var _ material.FileStore = (*b2Store)(nil)

// NewB2Store connects to the Backblaze B2 bucket configured in conf.Uploads.
func NewB2Store(ctx context.Context, conf *core.Config) (*b2Store, error) {
	client, err := b2.NewClient(ctx, conf.Uploads.B2AccountID, conf.Uploads.B2AppKey)
	if err != nil {
		return nil, errors.Wrap(err, "creating b2 client")
	}

	bucket, err := client.Bucket(ctx, conf.Uploads.B2Bucket)
	if err != nil {
		return nil, errors.Wrap(err, "getting b2 bucket")
	}
	return &b2Store{bucket: bucket}, nil
}

func (s *b2Store) Save(ctx context.Context, key, contentType string, r io.Reader) error {
	w := s.bucket.Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return errors.Wrap(err, "writing object")
	}
	return errors.Wrap(w.Close(), "closing object writer")
}

func (s *b2Store) Delete(ctx context.Context, key string) error {
	if err := s.bucket.Object(key).Delete(ctx); err != nil {
		return errors.Wrap(err, "deleting object")
	}
	return nil
}
