package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// BlobScheme addresses images held in Azure Blob Storage: azblob://<container>/<blob>
const BlobScheme = "azblob"

var (
	ErrBlobNotFound   = errors.New("blob not found")
	ErrInvalidBlobRef = errors.New("invalid blob reference")
)

type BlobStorage interface {
	GetBlob(ctx context.Context, containerName, blobName string) ([]byte, error)
}

type azureStorage struct {
	client   *azblob.Client
	maxBytes int64
}

func NewAzureStorage(accountName string, accountKey string, maxBytes int64) (BlobStorage, error) {
	if accountName == "" || accountKey == "" {
		return nil, errors.New("azure storage account name and key are required")
	}
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024
	}

	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}

	return &azureStorage{client: client, maxBytes: maxBytes}, nil
}

func (s *azureStorage) GetBlob(ctx context.Context, containerName, blobName string) ([]byte, error) {
	resp, err := s.client.DownloadStream(ctx, containerName, blobName, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", ErrBlobNotFound, containerName, blobName)
		}
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.ContentLength != nil && *resp.ContentLength > s.maxBytes {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrPayloadTooLarge, *resp.ContentLength, s.maxBytes)
	}
	return readLimited(resp.Body, s.maxBytes)
}

// ParseBlobRef splits azblob://<container>/<blob path> into its parts
func ParseBlobRef(ref string) (containerName, blobName string, err error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidBlobRef, err)
	}
	if u.Scheme != BlobScheme {
		return "", "", fmt.Errorf("%w: scheme %q", ErrInvalidBlobRef, u.Scheme)
	}

	containerName = u.Host
	blobName = strings.TrimPrefix(u.Path, "/")
	if containerName == "" || blobName == "" {
		return "", "", fmt.Errorf("%w: want %s://<container>/<blob>", ErrInvalidBlobRef, BlobScheme)
	}
	return containerName, blobName, nil
}
