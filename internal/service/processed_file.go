package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"xmlrelay/internal/model"
	"xmlrelay/internal/repository"
)

// MessageStored is returned to the forwarder once a file was persisted.
const MessageStored = "File stored successfully"

var (
	// ErrInvalidPayload is returned for a missing body, an empty file name or content that is not JSON.
	ErrInvalidPayload = errors.New("invalid file data")
	ErrNotFound       = errors.New("processed file not found")
)

const countTimeout = 2 * time.Second

// NewStoredFilesGauge registers xmlrelay_processed_files, evaluated at scrape
// time from repo.Count. A failed count reports NaN.
func NewStoredFilesGauge(reg prometheus.Registerer, repo repository.ProcessedFileRepository) error {
	g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "xmlrelay_processed_files",
		Help: "Processed files currently held by the record store.",
	}, func() float64 {
		ctx, cancel := context.WithTimeout(context.Background(), countTimeout)
		defer cancel()
		n, err := repo.Count(ctx)
		if err != nil {
			return math.NaN()
		}
		return float64(n)
	})
	return reg.Register(g)
}

// ReceiveResult is the response body of a successful receive.
type ReceiveResult struct {
	Message string `json:"message"`
	FileID  int64  `json:"fileId"`
}

// Download is a stored file ready to be streamed back to a client.
type Download struct {
	FileName    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// ProcessedFileService defines the use cases of the storage service.
type ProcessedFileService interface {
	// Receive validates and persists a forwarded file.
	Receive(ctx context.Context, file *model.ForwardedFile) (*ReceiveResult, error)

	// List returns every stored file ordered by id.
	List(ctx context.Context) ([]model.ProcessedFile, error)

	// Get returns a single stored file.
	Get(ctx context.Context, id int64) (*model.ProcessedFile, error)

	// Download returns the stored content as a JSON attachment.
	Download(ctx context.Context, id int64) (*Download, error)

	// Delete removes a stored file.
	Delete(ctx context.Context, id int64) error
}

type processedFileService struct {
	repo repository.ProcessedFileRepository
}

// NewProcessedFileService constructs a new ProcessedFileService.
func NewProcessedFileService(repo repository.ProcessedFileRepository) ProcessedFileService {
	return &processedFileService{repo: repo}
}

func (s *processedFileService) Receive(ctx context.Context, file *model.ForwardedFile) (*ReceiveResult, error) {
	if file == nil || strings.TrimSpace(file.FileName) == "" {
		return nil, ErrInvalidPayload
	}
	if !json.Valid([]byte(file.FileContent)) {
		return nil, fmt.Errorf("%w: fileContent is not valid JSON", ErrInvalidPayload)
	}

	saved, err := s.repo.Create(ctx, &model.ProcessedFile{
		FileName:    file.FileName,
		FileContent: file.FileContent,
	})
	if err != nil {
		return nil, fmt.Errorf("save processed file: %w", err)
	}
	return &ReceiveResult{Message: MessageStored, FileID: saved.ID}, nil
}

func (s *processedFileService) List(ctx context.Context) ([]model.ProcessedFile, error) {
	files, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processed files: %w", err)
	}
	return files, nil
}

func (s *processedFileService) Get(ctx context.Context, id int64) (*model.ProcessedFile, error) {
	f, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get processed file: %w", err)
	}
	return f, nil
}

func (s *processedFileService) Download(ctx context.Context, id int64) (*Download, error) {
	f, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Download{
		FileName:    f.FileName + ".json",
		ContentType: "application/json",
		Size:        int64(len(f.FileContent)),
		Content:     strings.NewReader(f.FileContent),
	}, nil
}

func (s *processedFileService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete processed file: %w", err)
	}
	return nil
}
