package mocks

import (
	"context"

	"xmlrelay/internal/forwarder"

	"github.com/stretchr/testify/mock"
)

type MockForwarder struct {
	mock.Mock
}

func (m *MockForwarder) Forward(ctx context.Context, fileName, content string) (*forwarder.Receipt, error) {
	args := m.Called(ctx, fileName, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*forwarder.Receipt), args.Error(1)
}
