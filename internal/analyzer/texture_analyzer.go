package analyzer

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// ErrImageTooSmall indicates an image with too few pixels for a neighbourhood operator
var ErrImageTooSmall = errors.New("image too small for analysis")

// TextureAnalyzer measures high-frequency detail as the variance of the
// Laplacian response over the luma channel.
type TextureAnalyzer struct {
	opts      AnalysisOptions
	slicePool sync.Pool
}

// NewTextureAnalyzer creates the texture signal analyzer
func NewTextureAnalyzer(opts AnalysisOptions) *TextureAnalyzer {
	return &TextureAnalyzer{
		opts: opts,
		slicePool: sync.Pool{
			New: func() interface{} {
				return make([]float64, 0, 1024)
			},
		},
	}
}

func (t *TextureAnalyzer) Name() SignalName {
	return SignalTexture
}

func (t *TextureAnalyzer) Analyze(in *Input) (SignalResult, error) {
	gray := image.NewGray(in.Image.Rect)
	draw.Draw(gray, gray.Bounds(), in.Image, in.Image.Rect.Min, draw.Src)

	variance, err := t.LaplacianVariance(gray)
	if err != nil {
		return SignalResult{}, err
	}

	res := newSignalResult(SignalTexture)
	res.RawValue = variance
	res.Flags[FlagTextureLow] = variance < t.opts.TextureLowThreshold
	res.Contribution = rampDown(variance, t.opts.TextureSmoothVariance, t.opts.TextureDetailedVariance)
	return res, nil
}

func (t *TextureAnalyzer) Degrade(err error) SignalResult {
	return degradedResult(SignalTexture, err, t.opts.DegradedContribution)
}

// LaplacianVariance computes the variance of the 4-neighbour Laplacian
// [0 1 0; 1 -4 1; 0 1 0] over the interior of gray.
func (t *TextureAnalyzer) LaplacianVariance(gray *image.Gray) (float64, error) {
	b := gray.Bounds()
	width, height := b.Dx(), b.Dy()
	interior := (width - 2) * (height - 2)
	if width < 3 || height < 3 || interior < 2 {
		return 0, fmt.Errorf("%w: laplacian needs an interior of at least 2 pixels, got %dx%d", ErrImageTooSmall, width, height)
	}

	data := t.slicePool.Get().([]float64)[:0]
	defer func() { t.slicePool.Put(data[:0]) }()
	if cap(data) < interior {
		data = make([]float64, 0, interior)
	}

	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		for x := b.Min.X + 1; x < b.Max.X-1; x++ {
			center := float64(gray.GrayAt(x, y).Y)
			top := float64(gray.GrayAt(x, y-1).Y)
			bottom := float64(gray.GrayAt(x, y+1).Y)
			left := float64(gray.GrayAt(x-1, y).Y)
			right := float64(gray.GrayAt(x+1, y).Y)

			data = append(data, -4*center+top+bottom+left+right)
		}
	}

	return stat.Variance(data, nil), nil
}
