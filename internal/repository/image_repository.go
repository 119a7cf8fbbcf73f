package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go-image-forensics/internal/storage"
	"go-image-forensics/pkg/validation"
)

// SourceImageRepository implements ImageRepository over the HTTP fetcher and,
// when configured, Azure Blob Storage
type SourceImageRepository struct {
	fetcher   storage.ImageFetcher
	blobs     storage.BlobStorage
	validator *validation.URLValidator
}

// NewImageRepository creates a repository. blobs may be nil, in which case
// azblob references are rejected as unavailable.
func NewImageRepository(fetcher storage.ImageFetcher, blobs storage.BlobStorage, validator *validation.URLValidator) *SourceImageRepository {
	if validator == nil {
		validator = validation.NewURLValidator()
	}
	if blobs != nil {
		validator = validator.AllowBlobReferences()
	}
	return &SourceImageRepository{
		fetcher:   fetcher,
		blobs:     blobs,
		validator: validator,
	}
}

// ValidateImageURL validates if the provided reference is acceptable
func (r *SourceImageRepository) ValidateImageURL(ref string) error {
	if err := r.validator.ValidateImageURL(ref); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidImageURL, err)
	}
	return nil
}

// FetchImage retrieves the encoded bytes behind ref
func (r *SourceImageRepository) FetchImage(ctx context.Context, ref string) ([]byte, error) {
	if strings.HasPrefix(strings.ToLower(ref), storage.BlobScheme+"://") {
		return r.fetchBlob(ctx, ref)
	}
	if err := r.ValidateImageURL(ref); err != nil {
		return nil, err
	}

	data, err := r.fetcher.FetchImage(ctx, ref)
	if err != nil {
		return nil, classifyFetchError(err)
	}
	return data, nil
}

func (r *SourceImageRepository) fetchBlob(ctx context.Context, ref string) ([]byte, error) {
	if r.blobs == nil {
		return nil, fmt.Errorf("%w: blob storage is not configured", ErrRepositoryUnavailable)
	}
	if err := r.ValidateImageURL(ref); err != nil {
		return nil, err
	}

	containerName, blobName, err := storage.ParseBlobRef(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImageURL, err)
	}

	data, err := r.blobs.GetBlob(ctx, containerName, blobName)
	if err != nil {
		return nil, classifyFetchError(err)
	}
	return data, nil
}

// classifyFetchError tags storage failures with repository sentinels while
// keeping the original chain for errors.Is on context errors.
func classifyFetchError(err error) error {
	var statusErr *storage.StatusError
	switch {
	case errors.Is(err, storage.ErrBlobNotFound):
		return fmt.Errorf("%w: %w", ErrImageNotFound, err)
	case errors.As(err, &statusErr) && (statusErr.Code == http.StatusNotFound || statusErr.Code == http.StatusGone):
		return fmt.Errorf("%w: %w", ErrImageNotFound, err)
	case errors.Is(err, storage.ErrPayloadTooLarge):
		return fmt.Errorf("%w: %w", ErrImageTooLarge, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrRepositoryUnavailable, err)
	}
}
