package validation

// Advisory types reported for a leaf photo
const (
	AdvisoryLowResolution = "low_resolution"
	AdvisoryTooDark       = "too_dark"
	AdvisoryTooBright     = "too_bright"
	AdvisoryBlurry        = "blurry"
	AdvisoryNoLeaf        = "no_leaf"
)

// QualityThresholds defines configurable thresholds for capture advisories
type QualityThresholds struct {
	// Smallest acceptable width or height in pixels
	MinSide int

	// Mean gray level bounds
	MinBrightness float64
	MaxBrightness float64

	// Below this Laplacian variance the photo is reported as blurry
	MinLaplacianVariance float64

	// Fraction of the frame the leaf mask must cover. Zero disables the check.
	MinLeafCoverage float64
}

// DefaultQualityThresholds returns the default capture thresholds
func DefaultQualityThresholds() QualityThresholds {
	return QualityThresholds{
		MinSide:              64,
		MinBrightness:        40,
		MaxBrightness:        230,
		MinLaplacianVariance: 50,
		MinLeafCoverage:      0.05,
	}
}

// QualityValidator turns capture measurements into advisories. Advisories
// are informational and never stop an analysis.
type QualityValidator struct {
	thresholds QualityThresholds
}

// NewQualityValidator creates a quality validator with default thresholds
func NewQualityValidator() *QualityValidator {
	return NewQualityValidatorWithThresholds(DefaultQualityThresholds())
}

// NewQualityValidatorWithThresholds creates a quality validator with custom thresholds
func NewQualityValidatorWithThresholds(thresholds QualityThresholds) *QualityValidator {
	return &QualityValidator{thresholds: thresholds}
}

// QualityIssue represents one capture advisory
type QualityIssue struct {
	Type        string  `json:"type"`
	Message     string  `json:"message"`
	ActualValue float64 `json:"actual_value,omitempty"`
	Threshold   float64 `json:"threshold,omitempty"`
}

// CaptureMetrics are the measurements a leaf photo is judged on
type CaptureMetrics struct {
	Width        int
	Height       int
	Brightness   float64
	LaplacianVar float64

	// LeafCoverage is nil when segmentation was not run
	LeafCoverage *float64
}

// Validate returns the advisories for a photo, in a fixed order.
func (qv *QualityValidator) Validate(m CaptureMetrics) []QualityIssue {
	var issues []QualityIssue
	t := qv.thresholds

	if side := min(m.Width, m.Height); side < t.MinSide {
		issues = append(issues, QualityIssue{
			Type:        AdvisoryLowResolution,
			Message:     "Photo is very small. Move closer to the leaf or use a higher resolution.",
			ActualValue: float64(side),
			Threshold:   float64(t.MinSide),
		})
	}

	if m.Brightness < t.MinBrightness {
		issues = append(issues, QualityIssue{
			Type:        AdvisoryTooDark,
			Message:     "Photo is too dark. Take it in daylight or better lighting.",
			ActualValue: m.Brightness,
			Threshold:   t.MinBrightness,
		})
	} else if m.Brightness > t.MaxBrightness {
		issues = append(issues, QualityIssue{
			Type:        AdvisoryTooBright,
			Message:     "Photo is overexposed. Avoid direct sunlight or flash.",
			ActualValue: m.Brightness,
			Threshold:   t.MaxBrightness,
		})
	}

	if m.LaplacianVar < t.MinLaplacianVariance {
		issues = append(issues, QualityIssue{
			Type:        AdvisoryBlurry,
			Message:     "Photo looks blurry. Hold the camera steady and focus on the leaf.",
			ActualValue: m.LaplacianVar,
			Threshold:   t.MinLaplacianVariance,
		})
	}

	if m.LeafCoverage != nil && t.MinLeafCoverage > 0 && *m.LeafCoverage < t.MinLeafCoverage {
		issues = append(issues, QualityIssue{
			Type:        AdvisoryNoLeaf,
			Message:     "No leaf found in the frame. Fill the photo with a single leaf.",
			ActualValue: *m.LeafCoverage,
			Threshold:   t.MinLeafCoverage,
		})
	}

	return issues
}

// Advisories returns just the issue types
func Advisories(issues []QualityIssue) []string {
	if len(issues) == 0 {
		return nil
	}
	types := make([]string, len(issues))
	for i, issue := range issues {
		types[i] = issue.Type
	}
	return types
}

// ConvertIssuesToMessages converts issues to user-facing messages
func ConvertIssuesToMessages(issues []QualityIssue) []string {
	var messages []string
	for _, issue := range issues {
		messages = append(messages, issue.Message)
	}
	return messages
}
