package repository

import (
	"context"
	"fmt"

	"github.com/plantcare-ai/leaf-inspector-go/internal/storage"
	"github.com/plantcare-ai/leaf-inspector-go/pkg/models"
	"github.com/plantcare-ai/leaf-inspector-go/pkg/validation"
)

// SourceRepository implements ImageRepository over HTTP and, when
// configured, Azure Blob storage. Blob URLs (azblob:// or
// *.blob.core.windows.net) go to blob storage; everything else over HTTP.
type SourceRepository struct {
	fetcher   storage.ImageFetcher
	blobs     storage.BlobStorage
	validator *validation.URLValidator
}

// NewSourceRepository creates an image repository. blobs may be nil.
func NewSourceRepository(fetcher storage.ImageFetcher, blobs storage.BlobStorage) ImageRepository {
	return &SourceRepository{
		fetcher:   fetcher,
		blobs:     blobs,
		validator: validation.NewURLValidator(),
	}
}

// FetchImage retrieves image bytes from whichever store imageURL names
func (r *SourceRepository) FetchImage(ctx context.Context, imageURL string) ([]byte, *models.ImageMetadata, error) {
	if !storage.IsBlobURL(imageURL) {
		return r.fetcher.FetchImage(ctx, imageURL)
	}

	if r.blobs == nil {
		return nil, nil, ErrBlobStorageDisabled
	}
	container, blob, err := storage.ParseBlobURL(imageURL)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidImageURL, err)
	}
	return r.blobs.GetImage(ctx, container, blob)
}

// ValidateImageURL validates if the provided URL is acceptable
func (r *SourceRepository) ValidateImageURL(imageURL string) error {
	if err := r.validator.ValidateImageURL(imageURL); err != nil {
		return err
	}
	if storage.IsBlobURL(imageURL) {
		if _, _, err := storage.ParseBlobURL(imageURL); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidImageURL, err)
		}
	}
	return nil
}
