package repository

import "context"

// ImageRepository defines the interface for image data access operations.
// References are http(s) URLs or azblob://<container>/<blob>.
type ImageRepository interface {
	// FetchImage retrieves the encoded bytes behind a reference
	FetchImage(ctx context.Context, ref string) ([]byte, error)

	// ValidateImageURL validates if the provided reference is acceptable
	ValidateImageURL(ref string) error
}
