package staging

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"xmlrelay/internal/storage"
	storeMocks "xmlrelay/internal/storage/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func isStagingKey(key string) bool {
	return strings.HasPrefix(key, "staging/") && len(key) > len("staging/")
}

func TestObjectStager_Stage(t *testing.T) {
	ctx := context.Background()
	mStore := new(storeMocks.MockObjectStore)
	s := NewObjectStager(mStore)

	var stagedKey string
	mStore.On("Put", ctx, mock.MatchedBy(isStagingKey), mock.Anything, storage.PutOptions{
		Size:        -1,
		ContentType: "application/octet-stream",
	}).Return(func(ctx context.Context, key string, r io.Reader, opt storage.PutOptions) storage.ObjectInfo {
		stagedKey = key
		b, _ := io.ReadAll(r)
		return storage.ObjectInfo{Key: key, Size: int64(len(b))}
	}, nil).Once()

	h, err := s.Stage(ctx, strings.NewReader("<a>1</a>"))
	require.NoError(t, err)
	assert.Equal(t, int64(8), h.Size())

	mStore.On("Get", ctx, stagedKey).Return(io.NopCloser(strings.NewReader("<a>1</a>")), storage.ObjectInfo{}, nil).Once()
	rc, err := h.Open(ctx)
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	assert.Equal(t, "<a>1</a>", string(b))

	mStore.On("Delete", ctx, stagedKey).Return(nil).Once()
	require.NoError(t, h.Release(ctx))
	require.NoError(t, h.Release(ctx))

	mStore.AssertExpectations(t)
}

func TestObjectStager_EmptyUpload(t *testing.T) {
	ctx := context.Background()
	mStore := new(storeMocks.MockObjectStore)
	s := NewObjectStager(mStore)

	mStore.On("Put", ctx, mock.MatchedBy(isStagingKey), mock.Anything, mock.Anything).
		Return(func(ctx context.Context, key string, r io.Reader, opt storage.PutOptions) storage.ObjectInfo {
			return storage.ObjectInfo{Key: key}
		}, nil).Once()
	mStore.On("Delete", ctx, mock.MatchedBy(isStagingKey)).Return(nil).Once()

	h, err := s.Stage(ctx, strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyUpload)
	assert.Nil(t, h)
	mStore.AssertExpectations(t)
}

func TestObjectStager_PutError(t *testing.T) {
	ctx := context.Background()
	mStore := new(storeMocks.MockObjectStore)
	s := NewObjectStager(mStore)

	mStore.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).
		Return(storage.ObjectInfo{}, errors.New("bucket unavailable")).Once()

	h, err := s.Stage(ctx, strings.NewReader("x"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "put staging object: bucket unavailable")
	assert.Nil(t, h)
	mStore.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestObjectStager_ReleaseError(t *testing.T) {
	ctx := context.Background()
	mStore := new(storeMocks.MockObjectStore)
	s := NewObjectStager(mStore)

	mStore.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).
		Return(storage.ObjectInfo{Size: 1}, nil).Once()
	mStore.On("Delete", ctx, mock.Anything).Return(errors.New("boom")).Once()

	h, err := s.Stage(ctx, strings.NewReader("x"))
	require.NoError(t, err)

	err = h.Release(ctx)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "delete staging object: boom")
	// the first result is remembered
	assert.Equal(t, err, h.Release(ctx))
	mStore.AssertExpectations(t)
}
