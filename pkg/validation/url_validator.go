package validation

import (
	"net/url"
	"slices"
	"strings"

	apperrors "github.com/plantcare-ai/leaf-inspector-go/internal/errors"
)

// BlobScheme addresses an object in the configured Azure storage account
// as azblob://<container>/<blob>.
const BlobScheme = "azblob"

// URLValidator checks that a leaf image URL is something the fetchers can
// reach.
type URLValidator struct {
	allowedSchemes []string
	allowedHosts   []string
}

// NewURLValidator accepts http, https and azblob URLs on any host.
func NewURLValidator() *URLValidator {
	return &URLValidator{
		allowedSchemes: []string{"http", "https", BlobScheme},
	}
}

// NewURLValidatorWithOptions restricts schemes and hosts. An empty host
// list allows every host.
func NewURLValidatorWithOptions(schemes []string, hosts []string) *URLValidator {
	return &URLValidator{
		allowedSchemes: schemes,
		allowedHosts:   hosts,
	}
}

// ValidateImageURL returns a validation AppError describing the first
// problem with imageURL.
func (v *URLValidator) ValidateImageURL(imageURL string) error {
	if strings.TrimSpace(imageURL) == "" {
		return apperrors.NewValidationError("URL cannot be empty", nil)
	}

	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return apperrors.NewValidationError("Invalid URL format", err)
	}

	scheme := strings.ToLower(parsedURL.Scheme)
	if !slices.Contains(v.allowedSchemes, scheme) {
		return apperrors.NewValidationError("URL scheme not allowed", nil)
	}

	// for azblob the host is the container name
	if parsedURL.Host == "" {
		return apperrors.NewValidationError("URL must have a valid host", nil)
	}

	if scheme != BlobScheme && len(v.allowedHosts) > 0 &&
		!slices.Contains(v.allowedHosts, parsedURL.Hostname()) {
		return apperrors.NewValidationError("URL host not allowed", nil)
	}

	return nil
}
