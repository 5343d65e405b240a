package staging

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"
)

// DiskStager stages streams into temporary files.
type DiskStager struct {
	dir  string
	live atomic.Int64
}

// NewDiskStager creates a stager writing under dir. An empty dir means os.TempDir().
func NewDiskStager(dir string) *DiskStager {
	return &DiskStager{dir: dir}
}

var _ Stager = (*DiskStager)(nil)

func (s *DiskStager) Stage(ctx context.Context, r io.Reader) (*Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.CreateTemp(s.dir, "xmlrelay-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if n == 0 {
		_ = os.Remove(path)
		return nil, ErrEmptyUpload
	}

	s.live.Add(1)
	return &Handle{
		size: n,
		open: func(context.Context) (io.ReadCloser, error) {
			return os.Open(path)
		},
		release: func(context.Context) error {
			defer s.live.Add(-1)
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove temp file: %w", err)
			}
			return nil
		},
	}, nil
}

// Outstanding reports how many handles have been staged but not yet released.
func (s *DiskStager) Outstanding() int64 {
	return s.live.Load()
}
