package mocks

import (
	"context"

	"xmlrelay/internal/model"
	"xmlrelay/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockProcessedFileService struct {
	mock.Mock
}

func (m *MockProcessedFileService) Receive(ctx context.Context, file *model.ForwardedFile) (*service.ReceiveResult, error) {
	args := m.Called(ctx, file)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ReceiveResult), args.Error(1)
}

func (m *MockProcessedFileService) List(ctx context.Context) ([]model.ProcessedFile, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ProcessedFile), args.Error(1)
}

func (m *MockProcessedFileService) Get(ctx context.Context, id int64) (*model.ProcessedFile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ProcessedFile), args.Error(1)
}

func (m *MockProcessedFileService) Download(ctx context.Context, id int64) (*service.Download, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Download), args.Error(1)
}

func (m *MockProcessedFileService) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
