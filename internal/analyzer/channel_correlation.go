package analyzer

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ErrUndefinedCorrelation indicates every channel pair had a constant channel
var ErrUndefinedCorrelation = errors.New("channel correlation undefined: channels have no variance")

// ChannelCorrelationAnalyzer measures how strongly the R, G and B planes move
// together. Camera sensor noise is partly independent per channel; synthesized
// texture tends to be almost perfectly correlated.
type ChannelCorrelationAnalyzer struct {
	opts AnalysisOptions
}

// NewChannelCorrelationAnalyzer creates the channel correlation signal analyzer
func NewChannelCorrelationAnalyzer(opts AnalysisOptions) *ChannelCorrelationAnalyzer {
	return &ChannelCorrelationAnalyzer{opts: opts}
}

func (c *ChannelCorrelationAnalyzer) Name() SignalName {
	return SignalChannelCorrelation
}

// Analyze summarises the R/G, G/B and R/B Pearson coefficients by their mean.
// Pairs involving a constant channel are left out of the mean.
func (c *ChannelCorrelationAnalyzer) Analyze(in *Input) (SignalResult, error) {
	n := in.Width() * in.Height()
	r := make([]float64, 0, n)
	g := make([]float64, 0, n)
	b := make([]float64, 0, n)
	pix := in.Image.Pix
	for y := 0; y < in.Height(); y++ {
		row := pix[y*in.Image.Stride : y*in.Image.Stride+in.Width()*4]
		for i := 0; i < len(row); i += 4 {
			r = append(r, float64(row[i]))
			g = append(g, float64(row[i+1]))
			b = append(b, float64(row[i+2]))
		}
	}

	pairs := []struct {
		key  string
		x, y []float64
	}{
		{"red_green", r, g},
		{"green_blue", g, b},
		{"red_blue", r, b},
	}

	res := newSignalResult(SignalChannelCorrelation)
	res.Details = make(map[string]float64, len(pairs))

	var sum float64
	defined := 0
	for _, p := range pairs {
		coef, ok := pearson(p.x, p.y)
		if !ok {
			continue
		}
		res.Details[p.key] = coef
		sum += coef
		defined++
	}
	if defined == 0 {
		return SignalResult{}, ErrUndefinedCorrelation
	}

	summary := sum / float64(defined)
	res.RawValue = summary
	res.Flags[FlagHighChannelCorrelation] = summary > c.opts.CorrelationThreshold
	res.Contribution = rampUp(summary, c.opts.CorrelationThreshold, 1.0)
	return res, nil
}

func (c *ChannelCorrelationAnalyzer) Degrade(err error) SignalResult {
	return degradedResult(SignalChannelCorrelation, err, c.opts.DegradedContribution)
}

func pearson(x, y []float64) (float64, bool) {
	if len(x) < 2 {
		return 0, false
	}
	if !(stat.Variance(x, nil) > 0) || !(stat.Variance(y, nil) > 0) {
		return 0, false
	}
	coef := stat.Correlation(x, y, nil)
	if math.IsNaN(coef) {
		return 0, false
	}
	return math.Max(-1, math.Min(1, coef)), true
}
