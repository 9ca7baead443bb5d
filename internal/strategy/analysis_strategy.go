package strategy

import (
	"fmt"
	"strings"

	"github.com/plantcare-ai/leaf-inspector-go/internal/analyzer"
)

// Profile names accepted in PIPELINE_PROFILE
const (
	ProfileStandard = "standard"
	ProfileFast     = "fast"
	ProfileMasked   = "masked"
)

// AnalysisStrategy adjusts pipeline options for a deployment profile
type AnalysisStrategy interface {
	Apply(opts analyzer.Options) analyzer.Options
	GetStrategyName() string
}

// StandardAnalysisStrategy keeps the reference parameters
type StandardAnalysisStrategy struct{}

// Apply returns opts unchanged
func (StandardAnalysisStrategy) Apply(opts analyzer.Options) analyzer.Options { return opts }

// GetStrategyName returns the strategy name
func (StandardAnalysisStrategy) GetStrategyName() string { return ProfileStandard }

// FastAnalysisStrategy skips non-local means, the dominant cost of the
// model-input path. Tensors differ slightly from the reference.
type FastAnalysisStrategy struct{}

// Apply disables denoising
func (FastAnalysisStrategy) Apply(opts analyzer.Options) analyzer.Options {
	return opts.WithoutDenoise()
}

// GetStrategyName returns the strategy name
func (FastAnalysisStrategy) GetStrategyName() string { return ProfileFast }

// MaskedAnalysisStrategy scores health on leaf pixels only, so background
// soil or sky does not dilute the green share.
type MaskedAnalysisStrategy struct{}

// Apply switches to the masked hue histogram
func (MaskedAnalysisStrategy) Apply(opts analyzer.Options) analyzer.Options {
	return opts.WithMaskedHistogram()
}

// GetStrategyName returns the strategy name
func (MaskedAnalysisStrategy) GetStrategyName() string { return ProfileMasked }

// ByName returns the strategy for a profile name. Empty selects standard.
func ByName(name string) (AnalysisStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ProfileStandard:
		return StandardAnalysisStrategy{}, nil
	case ProfileFast:
		return FastAnalysisStrategy{}, nil
	case ProfileMasked:
		return MaskedAnalysisStrategy{}, nil
	default:
		return nil, fmt.Errorf("unsupported pipeline profile: %s", name)
	}
}
