package storage

import (
	"context"
	"fmt"
	"os"
)

// FileImageFetcher reads images from the local file system
type FileImageFetcher struct {
	maxBytes int64
}

func NewFileImageFetcher(maxBytes int64) *FileImageFetcher {
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024
	}
	return &FileImageFetcher{maxBytes: maxBytes}
}

// FetchImage reads the file at path; imageURL is a plain path or file:// URL
func (f *FileImageFetcher) FetchImage(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(trimFileScheme(path))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > f.maxBytes {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrPayloadTooLarge, info.Size(), f.maxBytes)
	}
	return readLimited(file, f.maxBytes)
}

func trimFileScheme(path string) string {
	const scheme = "file://"
	if len(path) > len(scheme) && path[:len(scheme)] == scheme {
		return path[len(scheme):]
	}
	return path
}
