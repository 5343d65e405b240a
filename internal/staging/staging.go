// Package staging holds uploaded bytes for the lifetime of a single request.
// Every Handle must be released; Release is idempotent so it can be deferred
// right after a successful Stage.
package staging

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ErrEmptyUpload is returned when the staged stream contained no bytes.
var ErrEmptyUpload = errors.New("upload is empty")

// Stager acquires transient storage for a stream.
type Stager interface {
	// Stage copies r into transient storage. The returned Handle owns that
	// storage until Release. On error nothing is left behind.
	Stage(ctx context.Context, r io.Reader) (*Handle, error)
}

// Handle grants read access to staged bytes.
type Handle struct {
	size    int64
	open    func(ctx context.Context) (io.ReadCloser, error)
	release func(ctx context.Context) error

	once       sync.Once
	releaseErr error
}

// Size returns the number of staged bytes.
func (h *Handle) Size() int64 {
	return h.size
}

// Open returns a reader over the staged bytes.
func (h *Handle) Open(ctx context.Context) (io.ReadCloser, error) {
	return h.open(ctx)
}

// Release deletes the backing storage. Calls after the first return the first result.
func (h *Handle) Release(ctx context.Context) error {
	h.once.Do(func() {
		h.releaseErr = h.release(ctx)
	})
	return h.releaseErr
}
