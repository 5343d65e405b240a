package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"xmlrelay/internal/model"
	"xmlrelay/internal/repository"
)

// ProcessedFileMemory stores processed files in memory and is safe for concurrent use.
type ProcessedFileMemory struct {
	mu     sync.RWMutex
	byID   map[int64]model.ProcessedFile
	nextID int64
	now    func() time.Time
}

// NewProcessedFileMemory constructs an empty in-memory store.
func NewProcessedFileMemory() *ProcessedFileMemory {
	return &ProcessedFileMemory{
		byID: make(map[int64]model.ProcessedFile),
		now:  time.Now,
	}
}

var _ repository.ProcessedFileRepository = (*ProcessedFileMemory)(nil)

func (r *ProcessedFileMemory) Create(ctx context.Context, file *model.ProcessedFile) (*model.ProcessedFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	stored := model.ProcessedFile{
		ID:            r.nextID,
		FileName:      file.FileName,
		ProcessedDate: r.now().UTC(),
		FileContent:   file.FileContent,
	}
	r.byID[stored.ID] = stored
	return &stored, nil
}

func (r *ProcessedFileMemory) FindByID(ctx context.Context, id int64) (*model.ProcessedFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &f, nil
}

func (r *ProcessedFileMemory) List(ctx context.Context) ([]model.ProcessedFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]model.ProcessedFile, 0, len(r.byID))
	for _, f := range r.byID {
		items = append(items, f)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (r *ProcessedFileMemory) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *ProcessedFileMemory) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID), nil
}
