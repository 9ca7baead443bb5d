package models

// AnalysisRequest represents a JSON request for leaf analysis by URL
type AnalysisRequest struct {
	URL       string   `json:"url" binding:"required,url"`
	Artifacts []string `json:"artifacts,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// HealthCheckResponse is returned by the liveness endpoint
type HealthCheckResponse struct {
	Status           string `json:"status"`
	DiagnosisBackend string `json:"diagnosis_backend"`
	DiagnosisReady   bool   `json:"diagnosis_ready"`
}
