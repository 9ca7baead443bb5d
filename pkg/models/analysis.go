package models

import "time"

// HealthAnalysis is the colour-distribution verdict for a leaf photo.
// Green and yellow-brown shares are independent ratios over the hue
// histogram and need not sum to 100.
type HealthAnalysis struct {
	HealthScore           float64 `json:"health_score"`
	GreenPercentage       float64 `json:"green_percentage"`
	YellowBrownPercentage float64 `json:"yellow_brown_percentage"`
	PotentialIssue        bool    `json:"potential_issue"`
}

// LeafAnalysisResult represents the complete result of a leaf analysis request
type LeafAnalysisResult struct {
	ID                string    `json:"id"`
	ImageURL          string    `json:"image_url,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
	ProcessingTimeSec float64   `json:"processing_time_sec"`
	Width             int       `json:"width"`
	Height            int       `json:"height"`

	Health *HealthAnalysis `json:"health,omitempty"`

	// Display artifacts as data:image/png;base64 URIs
	EnhancedImage  string `json:"enhanced_image,omitempty"`
	EdgeMap        string `json:"edge_map,omitempty"`
	SegmentedImage string `json:"segmented_image,omitempty"`

	LeafCoverage *float64      `json:"leaf_coverage,omitempty"`
	Tensor       *TensorSummary `json:"tensor,omitempty"`

	Quality PhotoQuality `json:"quality"`
	Errors  []string     `json:"errors,omitempty"`
}

// TensorSummary describes a model-input tensor without shipping its values
type TensorSummary struct {
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Channels int     `json:"channels"`
	Min      float32 `json:"min"`
	Max      float32 `json:"max"`
	Mean     float64 `json:"mean"`
}

// PhotoQuality carries the advisory capture checks for a photo.
// Advisories never block analysis.
type PhotoQuality struct {
	Brightness   float64  `json:"brightness"`
	LaplacianVar float64  `json:"laplacian_variance"`
	Advisories   []string `json:"advisories,omitempty"`
}

// ImageMetadata contains metadata about a fetched image
type ImageMetadata struct {
	ContentType   string `json:"content_type"`
	ContentLength int64  `json:"content_length"`
	Source        string `json:"source"`
}
