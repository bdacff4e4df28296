// Package blobstore adapts object storage backends to the small contract the
// course library needs: put, get, delete and exists by key.
//
// Backends:
//   - Waffle: WAFFLE pantry/storage (local disk, S3 + CloudFront)
//   - Minio: MinIO or any S3-compatible endpoint via minio-go
//   - Memory: in-process map with fault injection, for tests
package blobstore

import (
	"context"
	"errors"
	"io"

	"github.com/dalemusser/unigrading/internal/app/system/metrics"
)

var (
	// ErrNotFound is returned by Get when no blob is stored under the key.
	ErrNotFound = errors.New("blob not found")
	// ErrStorage wraps backend failures on writes and unexpected read failures.
	ErrStorage = errors.New("blob storage failure")
)

// Store is the blob store contract.
//
// Delete is a no-op for absent keys. Exists never fails: any error while
// probing the backend is reported as "does not exist".
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) bool
}

// Pinger is implemented by backends that can report whether they are reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks s when it implements Pinger. Backends that cannot be probed
// report nil.
func Ping(ctx context.Context, s Store) error {
	if p, ok := s.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Instrument wraps a store so each call is counted in metrics.BlobOperations.
func Instrument(s Store, backend string) Store {
	return &instrumented{next: s, backend: backend}
}

type instrumented struct {
	next    Store
	backend string
}

func (i *instrumented) observe(op string, err error) {
	result := "ok"
	switch {
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
	}
	metrics.BlobOperations.WithLabelValues(i.backend, op, result).Inc()
}

func (i *instrumented) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	err := i.next.Put(ctx, key, r, size, contentType)
	i.observe("put", err)
	return err
}

func (i *instrumented) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := i.next.Get(ctx, key)
	i.observe("get", err)
	return rc, err
}

func (i *instrumented) Delete(ctx context.Context, key string) error {
	err := i.next.Delete(ctx, key)
	i.observe("delete", err)
	return err
}

func (i *instrumented) Exists(ctx context.Context, key string) bool {
	ok := i.next.Exists(ctx, key)
	var err error
	if !ok {
		err = ErrNotFound
	}
	i.observe("exists", err)
	return ok
}

func (i *instrumented) Ping(ctx context.Context) error {
	return Ping(ctx, i.next)
}
