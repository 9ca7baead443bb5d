package analyzer

import (
	"context"
	"image"
)

// Pipeline is the leaf image analysis boundary. Every method takes encoded
// image bytes and fails only with ErrDecode.
type Pipeline interface {
	Preprocess(buf []byte) (*Tensor, error)
	Enhance(buf []byte) (*image.NRGBA, error)
	DetectEdges(buf []byte) (*image.Gray, error)
	AnalyzeHealth(buf []byte) (*HealthAnalysis, error)
	SegmentLeaf(buf []byte) (*SegmentedLeaf, error)

	// AnalyzeAll decodes once and computes the selected artifacts concurrently.
	AnalyzeAll(ctx context.Context, buf []byte, artifacts Artifacts) (*Report, error)

	Options() Options
}

// MetricsCalculator handles capture-quality measurements
type MetricsCalculator interface {
	CalculateLaplacianVariance(gray *image.Gray) float64
	CalculateBrightness(gray *image.Gray) float64
}
