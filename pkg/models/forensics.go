package models

// ForensicsResponse is the wire form of one tampering assessment
type ForensicsResponse struct {
	RequestID         string                  `json:"request_id"`
	Source            string                  `json:"source,omitempty"`
	TamperingScore    float64                 `json:"tampering_score"`
	BaseScore         float64                 `json:"base_score"`
	Recommendation    string                  `json:"recommendation"`
	Explanation       []string                `json:"explanation"`
	CompoundFired     bool                    `json:"compound_rule_fired"`
	DegradedSignals   []string                `json:"degraded_signals,omitempty"`
	Signals           map[string]SignalReport `json:"signals"`
	ImageWidth        int                     `json:"image_width"`
	ImageHeight       int                     `json:"image_height"`
	Format            string                  `json:"format"`
	ProcessingTimeSec float64                 `json:"processing_time_sec"`
	Timestamp         string                  `json:"timestamp"`
}

// SignalReport describes one forensic signal
type SignalReport struct {
	RawValue               float64            `json:"raw_value"`
	NormalizedContribution float64            `json:"normalized_contribution"`
	Flags                  []string           `json:"flags"`
	Details                map[string]float64 `json:"details,omitempty"`
	Notes                  map[string]string  `json:"notes,omitempty"`
	Degraded               bool               `json:"degraded"`
	Error                  string             `json:"error,omitempty"`
}
