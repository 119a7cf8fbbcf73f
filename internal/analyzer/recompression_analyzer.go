package analyzer

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"gonum.org/v1/gonum/stat"
)

// RecompressionAnalyzer performs Error Level Analysis: it re-encodes the image
// as JPEG and measures how much each pixel moves.
type RecompressionAnalyzer struct {
	opts AnalysisOptions
}

// NewRecompressionAnalyzer creates the ELA signal analyzer
func NewRecompressionAnalyzer(opts AnalysisOptions) *RecompressionAnalyzer {
	return &RecompressionAnalyzer{opts: opts}
}

func (r *RecompressionAnalyzer) Name() SignalName {
	return SignalELA
}

func (r *RecompressionAnalyzer) Analyze(in *Input) (SignalResult, error) {
	levels, err := r.errorLevels(in.Image)
	if err != nil {
		return SignalResult{}, err
	}
	w, h := in.Width(), in.Height()

	res := newSignalResult(SignalELA)

	hot := 0
	for _, v := range levels {
		if v > r.opts.ELAHotPixelThreshold {
			hot++
		}
	}
	mean := stat.Mean(levels, nil)

	statistic := mean
	if w < r.opts.ELAWindowSize || h < r.opts.ELAWindowSize {
		res.Flags[FlagWindowFallback] = true
	} else {
		statistic = maxWindowMean(levels, w, h, r.opts.ELAWindowSize, r.opts.ELAWindowStride)
	}

	res.RawValue = statistic
	res.Details = map[string]float64{
		"mean":         mean,
		"hot_fraction": float64(hot) / float64(len(levels)),
	}
	res.Flags[FlagELALow] = statistic < r.opts.ELALowThreshold
	res.Contribution = rampUp(statistic, r.opts.ELANoiseFloor, r.opts.ELAHighEdit)
	return res, nil
}

func (r *RecompressionAnalyzer) Degrade(err error) SignalResult {
	return degradedResult(SignalELA, err, r.opts.DegradedContribution)
}

// errorLevels returns, row-major, the per-pixel mean absolute RGB difference
// between img and its recompression.
func (r *RecompressionAnalyzer) errorLevels(img *image.NRGBA) ([]float64, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.opts.RecompressionQuality}); err != nil {
		return nil, fmt.Errorf("recompress at quality %d: %w", r.opts.RecompressionQuality, err)
	}
	resaved, err := jpeg.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("decode recompressed image: %w", err)
	}

	b := img.Rect
	rb := resaved.Bounds()
	if rb.Dx() != b.Dx() || rb.Dy() != b.Dy() {
		return nil, fmt.Errorf("recompressed size %dx%d differs from %dx%d", rb.Dx(), rb.Dy(), b.Dx(), b.Dy())
	}

	levels := make([]float64, 0, b.Dx()*b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			i := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			rr, gg, bb, _ := resaved.At(rb.Min.X+x, rb.Min.Y+y).RGBA()
			diff := absDiff(img.Pix[i], uint8(rr>>8)) +
				absDiff(img.Pix[i+1], uint8(gg>>8)) +
				absDiff(img.Pix[i+2], uint8(bb>>8))
			levels = append(levels, float64(diff)/3.0)
		}
	}
	return levels, nil
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}

// maxWindowMean returns the largest mean over size x size windows placed every
// stride pixels. The last row and column of windows are always aligned to the
// image edge so no border is skipped. Requires w >= size and h >= size.
func maxWindowMean(levels []float64, w, h, size, stride int) float64 {
	// summed-area table with a zero row and column
	sat := make([]float64, (w+1)*(h+1))
	for y := 1; y <= h; y++ {
		var row float64
		for x := 1; x <= w; x++ {
			row += levels[(y-1)*w+(x-1)]
			sat[y*(w+1)+x] = sat[(y-1)*(w+1)+x] + row
		}
	}

	area := float64(size * size)
	best := 0.0
	for _, y0 := range windowStarts(h, size, stride) {
		for _, x0 := range windowStarts(w, size, stride) {
			x1, y1 := x0+size, y0+size
			sum := sat[y1*(w+1)+x1] - sat[y0*(w+1)+x1] - sat[y1*(w+1)+x0] + sat[y0*(w+1)+x0]
			if m := sum / area; m > best {
				best = m
			}
		}
	}
	return best
}

func windowStarts(n, size, stride int) []int {
	var starts []int
	last := n - size
	for s := 0; s < last; s += stride {
		starts = append(starts, s)
	}
	return append(starts, last)
}
