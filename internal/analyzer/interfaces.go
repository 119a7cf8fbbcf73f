package analyzer

// ImageAnalyzer runs the full forensic pipeline over one encoded image
type ImageAnalyzer interface {
	// Analyze decodes raw once and scores it. A *DecodeError is returned
	// when the bytes are not a readable image.
	Analyze(raw []byte) (*AnalysisResult, error)

	// Options returns the policy the analyzer was built with
	Options() AnalysisOptions

	// Lifecycle management
	Close() error
}

// SignalAnalyzer produces one signal result from a decoded image.
// Implementations must not mutate the input.
type SignalAnalyzer interface {
	Name() SignalName
	Analyze(in *Input) (SignalResult, error)

	// Degrade returns the maximum-suspicion result used when Analyze fails
	Degrade(err error) SignalResult
}
