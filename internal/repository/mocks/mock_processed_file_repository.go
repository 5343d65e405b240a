package mocks

import (
	"context"

	"xmlrelay/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockProcessedFileRepository struct {
	mock.Mock
}

func (m *MockProcessedFileRepository) Create(ctx context.Context, file *model.ProcessedFile) (*model.ProcessedFile, error) {
	args := m.Called(ctx, file)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ProcessedFile), args.Error(1)
}

func (m *MockProcessedFileRepository) FindByID(ctx context.Context, id int64) (*model.ProcessedFile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ProcessedFile), args.Error(1)
}

func (m *MockProcessedFileRepository) List(ctx context.Context) ([]model.ProcessedFile, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ProcessedFile), args.Error(1)
}

func (m *MockProcessedFileRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockProcessedFileRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}
