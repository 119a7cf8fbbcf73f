package analyzer

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// createTestImage creates a uniform test image
func createTestImage(width, height int, fillColor color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, fillColor)
		}
	}
	return img
}

// createGradientImage creates a gray gradient where R, G and B are identical
func createGradientImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			intensity := uint8((x + y) * 255 / (width + height))
			img.Set(x, y, color.RGBA{intensity, intensity, intensity, 255})
		}
	}
	return img
}

// createNoiseImage fills each channel with independent pseudo-random values
func createNoiseImage(width, height int, seed int64) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255})
		}
	}
	return img
}

// createMidtoneNoiseImage is independent per-channel noise within 88..168, so
// JPEG round trips never clip
func createMidtoneNoiseImage(width, height int, seed int64) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				uint8(88 + rng.Intn(81)),
				uint8(88 + rng.Intn(81)),
				uint8(88 + rng.Intn(81)),
				255,
			})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, img image.Image, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}))
	return buf.Bytes()
}

func inputFrom(t *testing.T, img image.Image) *Input {
	t.Helper()
	return &Input{Raw: encodePNG(t, img), Image: toOpaqueNRGBA(img), Format: "png"}
}

// EXIF tag IDs used by the fixtures
const (
	tagMake     uint16 = 0x010F
	tagModel    uint16 = 0x0110
	tagSoftware uint16 = 0x0131
	tagDateTime uint16 = 0x0132
)

// buildExifTIFF encodes ASCII tags into a little-endian TIFF block with one IFD
func buildExifTIFF(tags map[uint16]string) []byte {
	ids := make([]int, 0, len(tags))
	for id := range tags {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)

	le := binary.LittleEndian
	var head, data bytes.Buffer
	head.WriteString("II")
	_ = binary.Write(&head, le, uint16(42))
	_ = binary.Write(&head, le, uint32(8))
	_ = binary.Write(&head, le, uint16(len(ids)))

	dataOffset := 8 + 2 + 12*len(ids) + 4
	for _, id := range ids {
		value := append([]byte(tags[uint16(id)]), 0)
		_ = binary.Write(&head, le, uint16(id))
		_ = binary.Write(&head, le, uint16(2)) // ASCII
		_ = binary.Write(&head, le, uint32(len(value)))
		if len(value) <= 4 {
			inline := make([]byte, 4)
			copy(inline, value)
			head.Write(inline)
			continue
		}
		_ = binary.Write(&head, le, uint32(dataOffset+data.Len()))
		data.Write(value)
		if data.Len()%2 == 1 {
			data.WriteByte(0)
		}
	}
	_ = binary.Write(&head, le, uint32(0)) // no next IFD

	return append(head.Bytes(), data.Bytes()...)
}

// withExif inserts an APP1 EXIF segment right after the JPEG SOI marker
func withExif(jpegData []byte, tags map[uint16]string) []byte {
	payload := append([]byte("Exif\x00\x00"), buildExifTIFF(tags)...)
	segment := []byte{0xFF, 0xE1, 0, 0}
	binary.BigEndian.PutUint16(segment[2:], uint16(len(payload)+2))
	segment = append(segment, payload...)

	out := make([]byte, 0, len(jpegData)+len(segment))
	out = append(out, jpegData[:2]...)
	out = append(out, segment...)
	return append(out, jpegData[2:]...)
}

func cameraTags() map[uint16]string {
	return map[uint16]string{
		tagMake:     "Canon",
		tagModel:    "Canon EOS 80D",
		tagDateTime: "2024:05:01 10:00:00",
	}
}
