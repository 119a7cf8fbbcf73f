package analyzer

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"go-image-forensics/pkg/validation"
)

// Input is one uploaded image: the bytes as received plus the pixels decoded once.
// It is read-only for the duration of an analysis.
type Input struct {
	Raw    []byte
	Image  *image.NRGBA
	Format string
}

// Width returns the decoded width in pixels
func (in *Input) Width() int {
	return in.Image.Rect.Dx()
}

// Height returns the decoded height in pixels
func (in *Input) Height() int {
	return in.Image.Rect.Dy()
}

// DecodeError reports bytes that could not be turned into an RGB pixel grid
type DecodeError struct {
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("unreadable image: %v", e.Cause)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// DecodeInput decodes raw into an opaque NRGBA grid anchored at (0,0)
func DecodeInput(raw []byte, validator *validation.ImageValidator) (*Input, error) {
	if err := validator.ValidatePayload(raw); err != nil {
		return nil, &DecodeError{Cause: err}
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, &DecodeError{Cause: err}
	}
	if err := validator.ValidateDimensions(cfg.Width, cfg.Height); err != nil {
		return nil, &DecodeError{Cause: err}
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, &DecodeError{Cause: err}
	}
	b := img.Bounds()
	if err := validator.ValidateDimensions(b.Dx(), b.Dy()); err != nil {
		return nil, &DecodeError{Cause: err}
	}

	return &Input{
		Raw:    raw,
		Image:  toOpaqueNRGBA(img),
		Format: format,
	}, nil
}

// toOpaqueNRGBA copies img into an NRGBA buffer and drops alpha
func toOpaqueNRGBA(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}
