package services

import (
	"math"
	"sort"
	"time"

	"go-image-forensics/internal/analyzer"
	"go-image-forensics/pkg/models"
)

// scoreDecimals is the precision of scores on the wire; the analyzer keeps full precision
const scoreDecimals = 3

// NewForensicsResponse converts an analysis result into its wire form. policy
// is the one that classified result; the rounded score stays in its band.
func NewForensicsResponse(requestID, source string, result *analyzer.AnalysisResult, policy analyzer.AnalysisOptions) *models.ForensicsResponse {
	resp := &models.ForensicsResponse{
		RequestID:         requestID,
		Source:            source,
		TamperingScore:    WireScore(result.Score, result.Recommendation, policy),
		BaseScore:         RoundScore(result.BaseScore),
		Recommendation:    string(result.Recommendation),
		Explanation:       append([]string{}, result.Explanation...),
		CompoundFired:     result.CompoundFired,
		Signals:           make(map[string]models.SignalReport, len(result.Signals)),
		ImageWidth:        result.Width,
		ImageHeight:       result.Height,
		Format:            result.Format,
		ProcessingTimeSec: result.ProcessingTimeSec,
		Timestamp:         result.Timestamp.UTC().Format(time.RFC3339),
	}

	for _, name := range result.DegradedSignals() {
		resp.DegradedSignals = append(resp.DegradedSignals, string(name))
	}
	for name, s := range result.Signals {
		resp.Signals[string(name)] = newSignalReport(s)
	}
	return resp
}

func newSignalReport(s analyzer.SignalResult) models.SignalReport {
	flags := make([]string, 0, len(s.Flags))
	for f, set := range s.Flags {
		if set {
			flags = append(flags, string(f))
		}
	}
	sort.Strings(flags)

	return models.SignalReport{
		RawValue:               s.RawValue,
		NormalizedContribution: s.Contribution,
		Flags:                  flags,
		Details:                s.Details,
		Notes:                  s.Notes,
		Degraded:               s.Degraded,
		Error:                  s.Error,
	}
}

// RoundScore rounds half away from zero to three decimals
func RoundScore(score float64) float64 {
	p := math.Pow10(scoreDecimals)
	return math.Round(score*p) / p
}

// WireScore rounds score to three decimals without carrying it across a cut
// point: when nearest rounding lands in another band it truncates toward the
// recommended one instead.
func WireScore(score float64, rec analyzer.Recommendation, policy analyzer.AnalysisOptions) float64 {
	p := math.Pow10(scoreDecimals)
	for _, candidate := range []float64{RoundScore(score), math.Floor(score*p) / p, math.Ceil(score*p) / p} {
		if policy.Classify(candidate) == rec {
			return candidate
		}
	}
	return score
}
