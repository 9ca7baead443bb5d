package analyzer

import "fmt"

// PreprocessOptions configures the model-input path
type PreprocessOptions struct {
	TargetWidth  int
	TargetHeight int

	// Non-local means parameters
	DenoiseStrength      float64
	DenoiseColorStrength float64
	TemplateWindow       int
	SearchWindow         int
	SkipDenoise          bool
}

// EnhanceOptions configures the display path
type EnhanceOptions struct {
	ClipLimit   float64
	TileGridX   int
	TileGridY   int
	SkipSharpen bool
}

// HealthOptions configures segmentation and hue-histogram scoring.
// Hue values use the 8-bit convention (degrees/2).
type HealthOptions struct {
	MaskLower       [3]uint8
	MaskUpper       [3]uint8
	MorphKernelSize int

	GreenHueMin, GreenHueMax   int // [min, max)
	YellowHueMin, YellowHueMax int // [min, max)
	IssueThreshold             float64

	// MaskedHistogram scores only pixels inside the leaf mask instead of
	// the whole frame.
	MaskedHistogram bool
}

// EdgeOptions configures the Canny path
type EdgeOptions struct {
	LowThreshold  float64
	HighThreshold float64
}

// Options provides configuration for every pipeline path
type Options struct {
	Preprocess PreprocessOptions
	Enhance    EnhanceOptions
	Health     HealthOptions
	Edge       EdgeOptions
	Confidence ConfidenceGate
}

// DefaultOptions returns the reference parameters of the pipeline
func DefaultOptions() Options {
	return Options{
		Preprocess: PreprocessOptions{
			TargetWidth:          224,
			TargetHeight:         224,
			DenoiseStrength:      10,
			DenoiseColorStrength: 10,
			TemplateWindow:       7,
			SearchWindow:         21,
		},
		Enhance: EnhanceOptions{
			ClipLimit: 2.0,
			TileGridX: 8,
			TileGridY: 8,
		},
		Health: HealthOptions{
			MaskLower:       [3]uint8{25, 40, 40},
			MaskUpper:       [3]uint8{85, 255, 255},
			MorphKernelSize: 5,
			GreenHueMin:     35,
			GreenHueMax:     85,
			YellowHueMin:    15,
			YellowHueMax:    35,
			IssueThreshold:  0.30,
		},
		Edge: EdgeOptions{
			LowThreshold:  50,
			HighThreshold: 150,
		},
		Confidence: DefaultConfidenceGate(),
	}
}

// FastOptions returns options for quick previews: denoising is skipped
func FastOptions() Options {
	return DefaultOptions().WithoutDenoise()
}

// WithTargetSize sets the tensor dimensions
func (opts Options) WithTargetSize(width, height int) Options {
	opts.Preprocess.TargetWidth = width
	opts.Preprocess.TargetHeight = height
	return opts
}

// WithoutDenoise disables non-local means in the preprocessing path
func (opts Options) WithoutDenoise() Options {
	opts.Preprocess.SkipDenoise = true
	return opts
}

// WithCLAHE sets the clip limit and a square tile grid
func (opts Options) WithCLAHE(clipLimit float64, grid int) Options {
	opts.Enhance.ClipLimit = clipLimit
	opts.Enhance.TileGridX = grid
	opts.Enhance.TileGridY = grid
	return opts
}

// WithCannyThresholds sets the hysteresis thresholds
func (opts Options) WithCannyThresholds(low, high float64) Options {
	opts.Edge.LowThreshold = low
	opts.Edge.HighThreshold = high
	return opts
}

// WithMaskedHistogram switches health scoring to the leaf-mask histogram
func (opts Options) WithMaskedHistogram() Options {
	opts.Health.MaskedHistogram = true
	return opts
}

// WithConfidenceThresholds sets both gates independently
func (opts Options) WithConfidenceThresholds(trust, unknown float64) Options {
	opts.Confidence.TrustThreshold = trust
	opts.Confidence.UnknownThreshold = unknown
	return opts
}

// Validate reports the first out-of-range parameter
func (opts Options) Validate() error {
	p := opts.Preprocess
	if p.TargetWidth <= 0 || p.TargetHeight <= 0 {
		return fmt.Errorf("target size must be positive, got %dx%d", p.TargetWidth, p.TargetHeight)
	}
	if p.TemplateWindow <= 0 || p.TemplateWindow%2 == 0 || p.SearchWindow <= 0 || p.SearchWindow%2 == 0 {
		return fmt.Errorf("denoise windows must be odd and positive, got template=%d search=%d",
			p.TemplateWindow, p.SearchWindow)
	}
	if opts.Enhance.TileGridX <= 0 || opts.Enhance.TileGridY <= 0 {
		return fmt.Errorf("tile grid must be positive, got %dx%d", opts.Enhance.TileGridX, opts.Enhance.TileGridY)
	}
	if opts.Enhance.ClipLimit < 0 {
		return fmt.Errorf("clip limit must not be negative, got %g", opts.Enhance.ClipLimit)
	}
	h := opts.Health
	if h.MorphKernelSize <= 0 {
		return fmt.Errorf("morphology kernel must be positive, got %d", h.MorphKernelSize)
	}
	if h.GreenHueMin < 0 || h.GreenHueMax > hueBins || h.GreenHueMin > h.GreenHueMax ||
		h.YellowHueMin < 0 || h.YellowHueMax > hueBins || h.YellowHueMin > h.YellowHueMax {
		return fmt.Errorf("hue bands must lie within [0,%d)", hueBins)
	}
	if opts.Edge.LowThreshold < 0 || opts.Edge.HighThreshold < opts.Edge.LowThreshold {
		return fmt.Errorf("invalid Canny thresholds low=%g high=%g", opts.Edge.LowThreshold, opts.Edge.HighThreshold)
	}
	return nil
}
