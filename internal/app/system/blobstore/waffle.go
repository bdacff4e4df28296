package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/dalemusser/waffle/pantry/storage"
)

// Waffle adapts a WAFFLE storage.Store (local disk or S3/CloudFront).
type Waffle struct {
	s storage.Store
}

// NewWaffle wraps an initialized WAFFLE storage backend.
func NewWaffle(s storage.Store) *Waffle {
	return &Waffle{s: s}
}

func missing(err error) bool {
	return errors.Is(err, storage.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}

func (w *Waffle) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	opts := &storage.PutOptions{ContentType: contentType}
	if err := w.s.Put(ctx, key, r, opts); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func (w *Waffle) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := w.s.Get(ctx, key)
	if err != nil {
		if missing(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return rc, nil
}

// Delete removes the blob; an absent key is not an error.
func (w *Waffle) Delete(ctx context.Context, key string) error {
	if err := w.s.Delete(ctx, key); err != nil && !missing(err) {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// Exists asks the backend without reading the object. Errors count as absent.
func (w *Waffle) Exists(ctx context.Context, key string) bool {
	ok, err := w.s.Exists(ctx, key)
	return err == nil && ok
}

