package repository

import (
	"context"

	"github.com/plantcare-ai/leaf-inspector-go/pkg/models"
)

// ImageRepository defines the interface for image data access operations
type ImageRepository interface {
	// FetchImage retrieves the encoded bytes behind a URL
	FetchImage(ctx context.Context, imageURL string) ([]byte, *models.ImageMetadata, error)

	// ValidateImageURL validates if the provided URL is acceptable
	ValidateImageURL(imageURL string) error
}
