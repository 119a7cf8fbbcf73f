package analyzer

import (
	"errors"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-image-forensics/pkg/validation"
)

func defaultValidator() *validation.ImageValidator {
	return validation.NewImageValidator(DefaultOptions().MaxPixels)
}

func TestDecodeInput_PNGAndJPEG(t *testing.T) {
	img := createTestImage(40, 30, color.RGBA{10, 200, 30, 255})

	tests := []struct {
		name   string
		raw    []byte
		format string
	}{
		{"png", encodePNG(t, img), "png"},
		{"jpeg", encodeJPEG(t, img, 90), "jpeg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := DecodeInput(tt.raw, defaultValidator())
			require.NoError(t, err)
			assert.Equal(t, 40, in.Width())
			assert.Equal(t, 30, in.Height())
			assert.Equal(t, tt.format, in.Format)
			assert.Equal(t, tt.raw, in.Raw)
		})
	}
}

func TestDecodeInput_DropsAlpha(t *testing.T) {
	img := createTestImage(4, 4, color.RGBA{0, 0, 0, 0})
	in, err := DecodeInput(encodePNG(t, img), defaultValidator())
	require.NoError(t, err)

	for i := 3; i < len(in.Image.Pix); i += 4 {
		require.Equal(t, uint8(0xff), in.Image.Pix[i])
	}
}

func TestDecodeInput_Failures(t *testing.T) {
	tests := []struct {
		name    string
		raw     []byte
		wantErr error
	}{
		{"empty", nil, validation.ErrEmptyPayload},
		{"text", []byte("definitely not an image"), nil},
		{"truncated png", encodePNG(t, createGradientImage(16, 16))[:40], nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := DecodeInput(tt.raw, defaultValidator())
			require.Error(t, err)
			assert.Nil(t, in)

			var decodeErr *DecodeError
			require.True(t, errors.As(err, &decodeErr), "expected *DecodeError, got %T", err)
			assert.Contains(t, err.Error(), "unreadable image")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestDecodeInput_PixelLimit(t *testing.T) {
	raw := encodePNG(t, createGradientImage(20, 20))

	_, err := DecodeInput(raw, validation.NewImageValidator(100))
	assert.ErrorIs(t, err, validation.ErrTooManyPixels)

	_, err = DecodeInput(raw, validation.NewImageValidator(400))
	assert.NoError(t, err)
}

func TestDefaultValidator_PixelLimit(t *testing.T) {
	v := defaultValidator()

	assert.NoError(t, v.ValidateDimensions(6000, 4000))
	assert.ErrorIs(t, v.ValidateDimensions(6000, 4001), validation.ErrTooManyPixels)
	assert.ErrorIs(t, v.ValidateDimensions(7071, 7071), validation.ErrTooManyPixels)
}
