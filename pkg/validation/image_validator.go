package validation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyPayload indicates no bytes were supplied
	ErrEmptyPayload = errors.New("image payload is empty")

	// ErrNoPixels indicates the image decodes to zero width or height
	ErrNoPixels = errors.New("image has no pixels")

	// ErrTooManyPixels indicates the declared dimensions exceed the configured limit
	ErrTooManyPixels = errors.New("image dimensions exceed the pixel limit")

	// ErrUnsupportedContentType indicates the upload is not declared as an image
	ErrUnsupportedContentType = errors.New("content type is not an image")
)

// ImageValidator checks uploads before and after decoding
type ImageValidator struct {
	maxPixels int
}

// NewImageValidator creates a validator. maxPixels <= 0 disables the pixel limit.
func NewImageValidator(maxPixels int) *ImageValidator {
	return &ImageValidator{maxPixels: maxPixels}
}

// ValidatePayload rejects empty uploads
func (v *ImageValidator) ValidatePayload(raw []byte) error {
	if len(raw) == 0 {
		return ErrEmptyPayload
	}
	return nil
}

// ValidateDimensions checks the declared image size
func (v *ImageValidator) ValidateDimensions(width, height int) error {
	if width < 1 || height < 1 {
		return fmt.Errorf("%w: %dx%d", ErrNoPixels, width, height)
	}
	if v.maxPixels > 0 && width*height > v.maxPixels {
		return fmt.Errorf("%w: %dx%d > %d", ErrTooManyPixels, width, height, v.maxPixels)
	}
	return nil
}

// ValidateContentType accepts image/* media types. An empty value is accepted
// because decoding is the authoritative check.
func (v *ImageValidator) ValidateContentType(contentType string) error {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if ct == "" || strings.HasPrefix(ct, "image/") {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
}
