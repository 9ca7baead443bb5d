package models

import "time"

// Treatment is a structured remedy record. Presentation is left to the
// caller.
type Treatment struct {
	Precautions       []string `json:"precautions"`
	OrganicRemedies   []string `json:"organic_remedies"`
	InorganicRemedies []string `json:"inorganic_remedies"`
}

// Diagnosis is the combined result of an inference back-end, the confidence
// gates and the treatment catalog.
type Diagnosis struct {
	PlantName  string  `json:"plant_name"`
	Disease    string  `json:"disease"`
	ClassLabel string  `json:"class_label,omitempty"`
	Confidence float64 `json:"confidence"`

	// LowConfidence is set when the top probability is below the trust threshold.
	LowConfidence bool `json:"low_confidence"`
	// IsUnknown is set when the plant is not in the known set at all.
	IsUnknown bool `json:"is_unknown"`
	IsHealthy bool `json:"is_healthy"`

	Treatment *Treatment `json:"treatment,omitempty"`
	CareTip   string     `json:"care_tip,omitempty"`

	Health *HealthAnalysis `json:"health,omitempty"`
	// ModelHealthScore is the back-end's own 0-100 estimate, when it gives one.
	ModelHealthScore *float64 `json:"model_health_score,omitempty"`

	Backend   string    `json:"backend"`
	Timestamp time.Time `json:"timestamp"`
}
