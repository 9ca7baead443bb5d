package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/plantcare-ai/leaf-inspector-go/pkg/models"
)

// BlobStorage reads image bytes from a blob container.
type BlobStorage interface {
	GetImage(ctx context.Context, container, blob string) ([]byte, *models.ImageMetadata, error)
}

type azureStorage struct {
	client   *azblob.Client
	maxBytes int64
}

// NewAzureStorage creates a shared-key Azure Blob client for accountName
func NewAzureStorage(accountName, accountKey string, maxBytes int64) (BlobStorage, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid azure credentials: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net/", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create azure client: %w", err)
	}

	return &azureStorage{client: client, maxBytes: maxBytes}, nil
}

func (s *azureStorage) GetImage(ctx context.Context, container, blob string) ([]byte, *models.ImageMetadata, error) {
	resp, err := s.client.DownloadStream(ctx, container, blob, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("download failed: %w", err)
	}
	body := resp.Body
	defer body.Close()

	if s.maxBytes > 0 && resp.ContentLength != nil && *resp.ContentLength > s.maxBytes {
		return nil, nil, ErrTooLarge
	}
	data, err := readLimited(body, s.maxBytes)
	if err != nil {
		return nil, nil, err
	}

	meta := &models.ImageMetadata{
		ContentLength: int64(len(data)),
		Source:        fmt.Sprintf("azblob://%s/%s", container, blob),
	}
	if resp.ContentType != nil {
		meta.ContentType = *resp.ContentType
	}
	return data, meta, nil
}

// IsBlobURL reports whether rawURL addresses Azure Blob storage, either as
// azblob://container/blob or https://<account>.blob.core.windows.net/container/blob.
func IsBlobURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme == "azblob" || strings.HasSuffix(u.Hostname(), ".blob.core.windows.net")
}

// ParseBlobURL splits a blob URL into container and blob name.
func ParseBlobURL(rawURL string) (container, blob string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid blob URL: %w", err)
	}

	var path string
	if u.Scheme == "azblob" {
		container = u.Host
		path = strings.TrimPrefix(u.Path, "/")
	} else {
		parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 2)
		container = parts[0]
		if len(parts) == 2 {
			path = parts[1]
		}
	}

	if container == "" || path == "" {
		return "", "", fmt.Errorf("blob URL must name a container and a blob: %q", rawURL)
	}
	return container, path, nil
}
