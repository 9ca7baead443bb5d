package validation

import (
	"errors"
	"testing"

	apperrors "github.com/plantcare-ai/leaf-inspector-go/internal/errors"
)

func TestNewURLValidator(t *testing.T) {
	validator := NewURLValidator()
	if validator == nil {
		t.Fatal("Expected non-nil URL validator")
	}

	expectedSchemes := []string{"http", "https", "azblob"}
	if len(validator.allowedSchemes) != len(expectedSchemes) {
		t.Fatalf("Expected %d schemes, got %d", len(expectedSchemes), len(validator.allowedSchemes))
	}
	for i, scheme := range expectedSchemes {
		if validator.allowedSchemes[i] != scheme {
			t.Errorf("Expected scheme %s, got %s", scheme, validator.allowedSchemes[i])
		}
	}
	if len(validator.allowedHosts) != 0 {
		t.Errorf("Expected no host restrictions, got %v", validator.allowedHosts)
	}
}

func TestValidateImageURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantMsg string
	}{
		{name: "https", url: "https://example.com/leaves/tomato.jpg"},
		{name: "http with port", url: "http://192.168.1.1:8080/leaf.png"},
		{name: "azure blob https", url: "https://acct.blob.core.windows.net/leaves/1.jpg"},
		{name: "azblob scheme", url: "azblob://leaves/potato/early_blight.jpg"},
		{name: "uppercase scheme", url: "HTTPS://example.com/leaf.jpg"},
		{name: "empty", url: "", wantMsg: "URL cannot be empty"},
		{name: "whitespace", url: " \t\n", wantMsg: "URL cannot be empty"},
		{name: "ftp", url: "ftp://example.com/leaf.jpg", wantMsg: "URL scheme not allowed"},
		{name: "file", url: "file:///etc/passwd", wantMsg: "URL scheme not allowed"},
		{name: "no scheme", url: "example.com/leaf.jpg", wantMsg: "URL scheme not allowed"},
		{name: "no host", url: "https:///leaf.jpg", wantMsg: "URL must have a valid host"},
		{name: "azblob without container", url: "azblob:///leaf.jpg", wantMsg: "URL must have a valid host"},
		{name: "malformed", url: "http://[::1", wantMsg: "Invalid URL format"},
	}

	validator := NewURLValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateImageURL(tt.url)
			if tt.wantMsg == "" {
				if err != nil {
					t.Fatalf("Expected %q to pass validation, got: %v", tt.url, err)
				}
				return
			}

			var appErr *apperrors.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("Expected AppError for %q, got: %T (%v)", tt.url, err, err)
			}
			if appErr.Type != apperrors.ErrorTypeValidation {
				t.Errorf("Expected validation error, got %s", appErr.Type)
			}
			if appErr.Message != tt.wantMsg {
				t.Errorf("Expected message %q, got %q", tt.wantMsg, appErr.Message)
			}
		})
	}
}

func TestValidateImageURL_HostRestrictions(t *testing.T) {
	validator := NewURLValidatorWithOptions([]string{"https", "azblob"}, []string{"images.example.com"})

	if err := validator.ValidateImageURL("https://images.example.com/leaf.jpg"); err != nil {
		t.Errorf("Expected allowed host to pass, got: %v", err)
	}
	if err := validator.ValidateImageURL("https://images.example.com:443/leaf.jpg"); err != nil {
		t.Errorf("Expected port to be ignored in host check, got: %v", err)
	}
	if err := validator.ValidateImageURL("azblob://leaves/leaf.jpg"); err != nil {
		t.Errorf("Expected blob container to bypass host list, got: %v", err)
	}

	err := validator.ValidateImageURL("https://evil.example.com/leaf.jpg")
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Message != "URL host not allowed" {
		t.Errorf("Expected 'URL host not allowed', got: %v", err)
	}

	err = validator.ValidateImageURL("http://images.example.com/leaf.jpg")
	if !errors.As(err, &appErr) || appErr.Message != "URL scheme not allowed" {
		t.Errorf("Expected 'URL scheme not allowed', got: %v", err)
	}
}
