package analyzer

import (
	"errors"
	"fmt"
)

const noSignalsLine = "No major tampering signals detected."

// errSignalMissing is recorded on signals the aggregator never received
var errSignalMissing = errors.New("signal not produced")

// Aggregator combines signal results into a score, recommendation and explanation
type Aggregator struct {
	opts AnalysisOptions
}

// NewAggregator creates an aggregator for the given policy
func NewAggregator(opts AnalysisOptions) *Aggregator {
	return &Aggregator{opts: opts}
}

// Aggregate scores a set of signal results. The outcome does not depend on the
// order of signals. Any of the four core signals that is absent is replaced by
// its maximum-suspicion substitute.
func (a *Aggregator) Aggregate(signals []SignalResult) AggregateResult {
	byName := make(map[SignalName]SignalResult, len(SignalOrder))
	for _, s := range signals {
		if prev, ok := byName[s.Name]; ok {
			s = moreSuspicious(prev, s)
		}
		byName[s.Name] = s
	}
	for _, name := range SignalOrder {
		if _, ok := byName[name]; !ok {
			byName[name] = degradedResult(name, errSignalMissing, a.opts.DegradedContribution)
		}
	}

	base := 0.0
	for _, name := range SignalOrder {
		base += a.opts.Weight(name) * clamp01(byName[name].Contribution)
	}
	base = clamp01(base)

	compound := a.compoundFires(byName)
	score := base
	if compound {
		score += a.opts.CompoundBonus
	}
	score = clamp01(score)

	return AggregateResult{
		Score:          score,
		BaseScore:      base,
		Recommendation: a.opts.Classify(score),
		Explanation:    a.explain(byName, compound),
		CompoundFired:  compound,
		Signals:        byName,
	}
}

// compoundFires is a hard conjunction: missing EXIF, low recompression error and
// smooth texture together match an AI-regenerated photo given synthetic damage.
func (a *Aggregator) compoundFires(byName map[SignalName]SignalResult) bool {
	return byName[SignalMetadata].Has(FlagExifMissing) &&
		byName[SignalELA].Has(FlagELALow) &&
		byName[SignalTexture].Has(FlagTextureLow)
}

func (a *Aggregator) explain(byName map[SignalName]SignalResult, compound bool) []string {
	var lines []string
	for _, name := range SignalOrder {
		s := byName[name]
		if s.Contribution <= a.opts.NotableContribution {
			continue
		}
		lines = append(lines, describeSignal(s))
	}
	if compound {
		lines = append(lines, fmt.Sprintf(
			"Compound pattern: missing EXIF, low recompression error and smooth texture occur together, typical of a photo regenerated by an AI tool (+%.2f).",
			a.opts.CompoundBonus))
	}
	if len(lines) == 0 {
		lines = append(lines, noSignalsLine)
	}
	return lines
}

func describeSignal(s SignalResult) string {
	if s.Degraded {
		return fmt.Sprintf("%s analysis could not be completed (%s); assuming maximum suspicion.", s.Name, s.Error)
	}
	switch s.Name {
	case SignalMetadata:
		if s.Has(FlagExifMissing) {
			return "EXIF metadata missing."
		}
		if s.Has(FlagEditingSoftware) {
			return fmt.Sprintf("Editing or image-generation software detected in %s: %q.", s.Notes["matched_tag"], s.Notes["matched_signature"])
		}
		return fmt.Sprintf("Metadata contribution %.2f.", s.Contribution)
	case SignalELA:
		return fmt.Sprintf("Elevated error level after recompression (hotspot %.2f, mean %.2f, hot fraction %.3f).",
			s.RawValue, s.Details["mean"], s.Details["hot_fraction"])
	case SignalTexture:
		return fmt.Sprintf("Unnaturally smooth texture (Laplacian variance %.1f).", s.RawValue)
	case SignalChannelCorrelation:
		return fmt.Sprintf("Unusually high cross-channel correlation (%.3f).", s.RawValue)
	default:
		return fmt.Sprintf("%s contribution %.2f.", s.Name, s.Contribution)
	}
}

// moreSuspicious picks between duplicate results for the same signal without
// depending on arrival order.
func moreSuspicious(a, b SignalResult) SignalResult {
	switch {
	case a.Contribution > b.Contribution:
		return a
	case b.Contribution > a.Contribution:
		return b
	}
	merged := a
	merged.Flags = make(map[Flag]bool, len(a.Flags)+len(b.Flags))
	for f, v := range a.Flags {
		merged.Flags[f] = v
	}
	for f, v := range b.Flags {
		merged.Flags[f] = merged.Flags[f] || v
	}
	merged.Degraded = a.Degraded || b.Degraded
	return merged
}
