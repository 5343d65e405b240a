// Package storage wraps the S3-compatible bucket that backs the ingestion
// service's staging area.
package storage

import (
	"context"
	"io"
)

// PutOptions describe an upload. Size is -1 when the length is not known up front.
type PutOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo is what the stager needs to know about a stored object.
type ObjectInfo struct {
	Key         string
	Size        int64
	ETag        string
	ContentType string
}

// ObjectStore is the subset of bucket operations used for staging uploads.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, opt PutOptions) (ObjectInfo, error)
	// Get returns a reader the caller must close.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}
