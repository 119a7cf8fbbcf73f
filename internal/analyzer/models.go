package analyzer

import "time"

// SignalName identifies one forensic signal extractor
type SignalName string

const (
	SignalMetadata           SignalName = "metadata"
	SignalELA                SignalName = "ela"
	SignalTexture            SignalName = "texture"
	SignalChannelCorrelation SignalName = "channel_correlation"
)

// SignalOrder is the fixed order used for weighting and explanation output
var SignalOrder = []SignalName{
	SignalMetadata,
	SignalELA,
	SignalTexture,
	SignalChannelCorrelation,
}

// Flag is a boolean marker raised by an analyzer and consumed by compound rules
type Flag string

const (
	FlagExifMissing            Flag = "exif_missing"
	FlagEditingSoftware        Flag = "editing_software_detected"
	FlagTimestampMissing       Flag = "timestamp_missing"
	FlagELALow                 Flag = "ela_low"
	FlagWindowFallback         Flag = "window_fallback"
	FlagTextureLow             Flag = "texture_low"
	FlagHighChannelCorrelation Flag = "high_channel_correlation"
	FlagDegraded               Flag = "degraded"
)

// suspicionFlags maps each signal to the flag it raises when it cannot be computed
var suspicionFlags = map[SignalName]Flag{
	SignalMetadata:           FlagExifMissing,
	SignalELA:                FlagELALow,
	SignalTexture:            FlagTextureLow,
	SignalChannelCorrelation: FlagHighChannelCorrelation,
}

// SignalResult is the output of a single analyzer for one image
type SignalResult struct {
	Name         SignalName         `json:"name"`
	RawValue     float64            `json:"raw_value"`
	Contribution float64            `json:"normalized_contribution"`
	Flags        map[Flag]bool      `json:"flags"`
	Details      map[string]float64 `json:"details,omitempty"`
	Notes        map[string]string  `json:"notes,omitempty"`
	Degraded     bool               `json:"degraded"`
	Error        string             `json:"error,omitempty"`
}

// Has reports whether the flag is raised
func (s SignalResult) Has(flag Flag) bool {
	return s.Flags[flag]
}

func newSignalResult(name SignalName) SignalResult {
	return SignalResult{
		Name:  name,
		Flags: make(map[Flag]bool),
	}
}

// degradedResult builds the maximum-suspicion substitute for a signal that
// could not be computed.
func degradedResult(name SignalName, cause error, contribution float64) SignalResult {
	res := newSignalResult(name)
	res.Contribution = clamp01(contribution)
	res.Degraded = true
	res.Flags[FlagDegraded] = true
	if flag, ok := suspicionFlags[name]; ok {
		res.Flags[flag] = true
	}
	if cause != nil {
		res.Error = cause.Error()
	}
	return res
}

// Recommendation is the action suggested to the refund reviewer
type Recommendation string

const (
	AutoApprove        Recommendation = "auto_approve_ok"
	LowPriorityReview  Recommendation = "low_priority_manual_review"
	HighPriorityReview Recommendation = "high_priority_manual_review"
)

// AggregateResult is the scored combination of all signal results
type AggregateResult struct {
	Score          float64                     `json:"tampering_score"`
	BaseScore      float64                     `json:"base_score"`
	Recommendation Recommendation              `json:"recommendation"`
	Explanation    []string                    `json:"explanation"`
	CompoundFired  bool                        `json:"compound_fired"`
	Signals        map[SignalName]SignalResult `json:"signals"`
}

// AnalysisResult wraps the aggregate with facts about the decoded image
type AnalysisResult struct {
	AggregateResult
	Width             int       `json:"width"`
	Height            int       `json:"height"`
	Format            string    `json:"format"`
	Timestamp         time.Time `json:"timestamp"`
	ProcessingTimeSec float64   `json:"processing_time_sec"`
}

// DegradedSignals lists the names of signals that fell back to maximum suspicion
func (r AggregateResult) DegradedSignals() []SignalName {
	var out []SignalName
	for _, name := range SignalOrder {
		if s, ok := r.Signals[name]; ok && s.Degraded {
			out = append(out, name)
		}
	}
	return out
}
