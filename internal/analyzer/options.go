package analyzer

import (
	"errors"
	"fmt"
)

// AnalysisOptions holds every threshold, weight and cut point of the scoring policy
type AnalysisOptions struct {
	// Recompression (ELA)
	RecompressionQuality int
	ELAWindowSize        int
	ELAWindowStride      int
	ELANoiseFloor        float64
	ELAHighEdit          float64
	ELALowThreshold      float64
	ELAHotPixelThreshold float64

	// Texture
	TextureLowThreshold     float64
	TextureSmoothVariance   float64
	TextureDetailedVariance float64

	// Channel correlation. CorrelationThreshold is kept high on purpose:
	// natural photos routinely correlate near 0.9 across R, G and B, so only
	// grayscale-like or synthetic images with near-identical channels exceed it.
	// The signal's explanation line also needs a contribution above
	// NotableContribution.
	CorrelationThreshold float64

	// Metadata
	ExifMissingContribution     float64
	EditingSoftwareContribution float64
	SuspiciousSoftware          []string

	// Aggregation
	WeightMetadata       float64
	WeightELA            float64
	WeightTexture        float64
	WeightCorrelation    float64
	CompoundBonus        float64
	ReviewCutPoint       float64
	HighPriorityCutPoint float64
	NotableContribution  float64
	DegradedContribution float64

	// Input limits. Analysis peaks near 40 bytes per pixel, so MaxPixels
	// bounds the memory of a single request.
	MaxPixels int

	// Performance options
	UseWorkerPool bool
	MaxWorkers    int
}

// DefaultSuspiciousSoftware lists editor and image-generator signatures.
// Entries are matched as whole words against the lower-cased tag text.
var DefaultSuspiciousSoftware = []string{
	"photoshop",
	"gimp",
	"gemini",
	"stable diffusion",
	"midjourney",
	"dall-e",
	"firefly",
	"ai",
}

// DefaultOptions returns the documented scoring policy
func DefaultOptions() AnalysisOptions {
	return AnalysisOptions{
		RecompressionQuality: 90,
		ELAWindowSize:        16,
		ELAWindowStride:      8,
		ELANoiseFloor:        2.0,
		ELAHighEdit:          20.0,
		ELALowThreshold:      3.0,
		ELAHotPixelThreshold: 25.0,

		TextureLowThreshold:     100.0,
		TextureSmoothVariance:   50.0,
		TextureDetailedVariance: 500.0,

		CorrelationThreshold: 0.95,

		ExifMissingContribution:     1.0,
		EditingSoftwareContribution: 0.5,
		SuspiciousSoftware:          append([]string(nil), DefaultSuspiciousSoftware...),

		WeightMetadata:       0.20,
		WeightELA:            0.40,
		WeightTexture:        0.20,
		WeightCorrelation:    0.20,
		CompoundBonus:        0.25,
		ReviewCutPoint:       0.30,
		HighPriorityCutPoint: 0.60,
		NotableContribution:  0.25,
		DegradedContribution: 1.0,

		MaxPixels: 24_000_000,

		UseWorkerPool: true,
		MaxWorkers:    0, // Use default CPU count
	}
}

// SequentialOptions returns the default policy evaluated on the calling goroutine
func SequentialOptions() AnalysisOptions {
	opts := DefaultOptions()
	opts.UseWorkerPool = false
	return opts
}

// WithWeights replaces the four signal weights
func (opts AnalysisOptions) WithWeights(metadata, ela, texture, correlation float64) AnalysisOptions {
	opts.WeightMetadata = metadata
	opts.WeightELA = ela
	opts.WeightTexture = texture
	opts.WeightCorrelation = correlation
	return opts
}

// WithCutPoints replaces the recommendation cut points
func (opts AnalysisOptions) WithCutPoints(review, highPriority float64) AnalysisOptions {
	opts.ReviewCutPoint = review
	opts.HighPriorityCutPoint = highPriority
	return opts
}

// WithCompoundBonus replaces the escalation bonus of the compound rule
func (opts AnalysisOptions) WithCompoundBonus(bonus float64) AnalysisOptions {
	opts.CompoundBonus = bonus
	return opts
}

// WithRecompressionQuality replaces the JPEG quality used for ELA
func (opts AnalysisOptions) WithRecompressionQuality(quality int) AnalysisOptions {
	opts.RecompressionQuality = quality
	return opts
}

// WithoutWorkerPool runs analyzers sequentially
func (opts AnalysisOptions) WithoutWorkerPool() AnalysisOptions {
	opts.UseWorkerPool = false
	return opts
}

// Weight returns the weight applied to a signal's contribution
func (opts AnalysisOptions) Weight(name SignalName) float64 {
	switch name {
	case SignalMetadata:
		return opts.WeightMetadata
	case SignalELA:
		return opts.WeightELA
	case SignalTexture:
		return opts.WeightTexture
	case SignalChannelCorrelation:
		return opts.WeightCorrelation
	default:
		return 0
	}
}

// Classify maps a final score to a recommendation.
// score < review -> auto approve; review <= score <= high -> low priority; score > high -> high priority.
func (opts AnalysisOptions) Classify(score float64) Recommendation {
	switch {
	case score < opts.ReviewCutPoint:
		return AutoApprove
	case score <= opts.HighPriorityCutPoint:
		return LowPriorityReview
	default:
		return HighPriorityReview
	}
}

// Validate rejects inconsistent policies
func (opts AnalysisOptions) Validate() error {
	var errs []error

	if opts.RecompressionQuality < 1 || opts.RecompressionQuality > 100 {
		errs = append(errs, fmt.Errorf("recompression quality must be in [1,100] (got %d)", opts.RecompressionQuality))
	}
	if opts.ELAWindowSize < 1 || opts.ELAWindowStride < 1 {
		errs = append(errs, fmt.Errorf("ELA window size and stride must be >= 1 (got %d/%d)", opts.ELAWindowSize, opts.ELAWindowStride))
	}
	if opts.ELAHighEdit <= opts.ELANoiseFloor {
		errs = append(errs, fmt.Errorf("ELA high edit threshold must exceed noise floor (got %g <= %g)", opts.ELAHighEdit, opts.ELANoiseFloor))
	}
	if opts.TextureDetailedVariance <= opts.TextureSmoothVariance {
		errs = append(errs, fmt.Errorf("texture detailed variance must exceed smooth variance (got %g <= %g)", opts.TextureDetailedVariance, opts.TextureSmoothVariance))
	}
	if opts.CorrelationThreshold < -1 || opts.CorrelationThreshold >= 1 {
		errs = append(errs, fmt.Errorf("correlation threshold must be in [-1,1) (got %g)", opts.CorrelationThreshold))
	}

	weights := []float64{opts.WeightMetadata, opts.WeightELA, opts.WeightTexture, opts.WeightCorrelation}
	var sum float64
	for _, w := range weights {
		if w < 0 {
			errs = append(errs, fmt.Errorf("weights must be non-negative (got %g)", w))
		}
		sum += w
	}
	if sum > 1+1e-9 {
		errs = append(errs, fmt.Errorf("weights must sum to <= 1 (got %g)", sum))
	}

	if opts.CompoundBonus < 0 {
		errs = append(errs, fmt.Errorf("compound bonus must be non-negative (got %g)", opts.CompoundBonus))
	}
	if opts.ReviewCutPoint > opts.HighPriorityCutPoint {
		errs = append(errs, fmt.Errorf("review cut point must not exceed high priority cut point (got %g > %g)", opts.ReviewCutPoint, opts.HighPriorityCutPoint))
	}
	for _, c := range []float64{opts.ExifMissingContribution, opts.EditingSoftwareContribution, opts.DegradedContribution} {
		if c < 0 || c > 1 {
			errs = append(errs, fmt.Errorf("contributions must be in [0,1] (got %g)", c))
		}
	}

	return errors.Join(errs...)
}
