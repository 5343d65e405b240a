package staging

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"xmlrelay/internal/storage"
)

const defaultObjectPrefix = "staging/"

// ObjectStager stages streams into an S3-compatible bucket so that ingestion
// replicas do not need local disk.
type ObjectStager struct {
	store  storage.ObjectStore
	prefix string
}

// NewObjectStager creates a stager writing objects under the "staging/" prefix.
func NewObjectStager(store storage.ObjectStore) *ObjectStager {
	return &ObjectStager{store: store, prefix: defaultObjectPrefix}
}

var _ Stager = (*ObjectStager)(nil)

func (s *ObjectStager) Stage(ctx context.Context, r io.Reader) (*Handle, error) {
	key := s.prefix + uuid.NewString()
	info, err := s.store.Put(ctx, key, r, storage.PutOptions{
		Size:        -1,
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return nil, fmt.Errorf("put staging object: %w", err)
	}
	if info.Size == 0 {
		if err := s.store.Delete(ctx, key); err != nil {
			return nil, fmt.Errorf("%w; cleanup failed: %v", ErrEmptyUpload, err)
		}
		return nil, ErrEmptyUpload
	}

	return &Handle{
		size: info.Size,
		open: func(ctx context.Context) (io.ReadCloser, error) {
			rc, _, err := s.store.Get(ctx, key)
			if err != nil {
				return nil, fmt.Errorf("get staging object: %w", err)
			}
			return rc, nil
		},
		release: func(ctx context.Context) error {
			if err := s.store.Delete(ctx, key); err != nil {
				return fmt.Errorf("delete staging object: %w", err)
			}
			return nil
		},
	}, nil
}
