package models

// AnalyzeURLRequest asks for analysis of a remote image.
// URL is http(s) or azblob://<container>/<blob>.
type AnalyzeURLRequest struct {
	URL string `json:"url" binding:"required"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Details   string `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// HealthResponse is returned by the health endpoint
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version,omitempty"`
}
