package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-image-forensics/internal/storage"
)

type stubFetcher struct {
	data  []byte
	err   error
	calls []string
}

func (s *stubFetcher) FetchImage(_ context.Context, url string) ([]byte, error) {
	s.calls = append(s.calls, url)
	return s.data, s.err
}

type stubBlobs struct {
	data      []byte
	err       error
	container string
	blob      string
}

func (s *stubBlobs) GetBlob(_ context.Context, containerName, blobName string) ([]byte, error) {
	s.container, s.blob = containerName, blobName
	return s.data, s.err
}

func TestFetchImage_HTTP(t *testing.T) {
	fetcher := &stubFetcher{data: []byte("jpeg bytes")}
	repo := NewImageRepository(fetcher, nil, nil)

	data, err := repo.FetchImage(context.Background(), "https://example.com/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg bytes"), data)
	assert.Equal(t, []string{"https://example.com/a.jpg"}, fetcher.calls)
}

func TestFetchImage_InvalidURLNeverFetches(t *testing.T) {
	fetcher := &stubFetcher{}
	repo := NewImageRepository(fetcher, nil, nil)

	for _, ref := range []string{"", "ftp://example.com/a.jpg", "http://"} {
		_, err := repo.FetchImage(context.Background(), ref)
		assert.ErrorIs(t, err, ErrInvalidImageURL, "ref %q", ref)
	}
	assert.Empty(t, fetcher.calls)
}

func TestFetchImage_Blob(t *testing.T) {
	blobs := &stubBlobs{data: []byte("png bytes")}
	repo := NewImageRepository(&stubFetcher{}, blobs, nil)

	data, err := repo.FetchImage(context.Background(), "azblob://claims/2024/photo.png")
	require.NoError(t, err)
	assert.Equal(t, []byte("png bytes"), data)
	assert.Equal(t, "claims", blobs.container)
	assert.Equal(t, "2024/photo.png", blobs.blob)
}

func TestFetchImage_BlobWithoutStorage(t *testing.T) {
	repo := NewImageRepository(&stubFetcher{}, nil, nil)

	_, err := repo.FetchImage(context.Background(), "azblob://claims/photo.png")
	assert.ErrorIs(t, err, ErrRepositoryUnavailable)
	assert.ErrorIs(t, repo.ValidateImageURL("azblob://claims/photo.png"), ErrInvalidImageURL)
}

func TestFetchImage_ErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"http 404", fmt.Errorf("failed: %w", &storage.StatusError{Code: 404}), ErrImageNotFound},
		{"http 500", fmt.Errorf("failed: %w", &storage.StatusError{Code: 500}), ErrRepositoryUnavailable},
		{"too large", fmt.Errorf("failed: %w", storage.ErrPayloadTooLarge), ErrImageTooLarge},
		{"network", errors.New("connection refused"), ErrRepositoryUnavailable},
		{"deadline", fmt.Errorf("failed: %w", context.DeadlineExceeded), context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewImageRepository(&stubFetcher{err: tt.err}, nil, nil)
			_, err := repo.FetchImage(context.Background(), "https://example.com/a.jpg")
			assert.ErrorIs(t, err, tt.want)
		})
	}

	blobRepo := NewImageRepository(&stubFetcher{}, &stubBlobs{err: storage.ErrBlobNotFound}, nil)
	_, err := blobRepo.FetchImage(context.Background(), "azblob://claims/missing.png")
	assert.ErrorIs(t, err, ErrImageNotFound)
}
