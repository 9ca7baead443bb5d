package analyzer

import (
	"context"
	"image"

	"golang.org/x/sync/errgroup"
)

// pipeline implements Pipeline. It holds only immutable configuration, so a
// single instance is safe for concurrent use.
type pipeline struct {
	opts              Options
	metricsCalculator MetricsCalculator
}

// NewPipeline creates a pipeline with validated options
func NewPipeline(opts Options) (Pipeline, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &pipeline{
		opts:              opts,
		metricsCalculator: NewMetricsCalculator(),
	}, nil
}

func (p *pipeline) Options() Options {
	return p.opts
}

// Preprocess returns the model-input tensor for buf
func (p *pipeline) Preprocess(buf []byte) (*Tensor, error) {
	img, err := Decode(buf)
	if err != nil {
		return nil, err
	}
	return preprocess(img, p.opts.Preprocess), nil
}

// Enhance returns the contrast-equalised, sharpened display image
func (p *pipeline) Enhance(buf []byte) (*image.NRGBA, error) {
	img, err := Decode(buf)
	if err != nil {
		return nil, err
	}
	return enhance(img, p.opts.Enhance), nil
}

// DetectEdges returns a binary edge map the size of the input
func (p *pipeline) DetectEdges(buf []byte) (*image.Gray, error) {
	img, err := Decode(buf)
	if err != nil {
		return nil, err
	}
	return detectEdges(img, p.opts.Edge), nil
}

// AnalyzeHealth scores the leaf from its hue distribution
func (p *pipeline) AnalyzeHealth(buf []byte) (*HealthAnalysis, error) {
	img, err := Decode(buf)
	if err != nil {
		return nil, err
	}
	return analyzeHealth(img, p.opts.Health), nil
}

// SegmentLeaf isolates leaf pixels with the green HSV mask
func (p *pipeline) SegmentLeaf(buf []byte) (*SegmentedLeaf, error) {
	img, err := Decode(buf)
	if err != nil {
		return nil, err
	}
	return segmentLeaf(img, p.opts.Health), nil
}

// AnalyzeAll decodes buf once and runs the selected paths concurrently.
// The paths share the decoded image read-only and each writes its own
// Report field. Photo metrics are always filled in.
func (p *pipeline) AnalyzeAll(ctx context.Context, buf []byte, artifacts Artifacts) (*Report, error) {
	img, err := Decode(buf)
	if err != nil {
		return nil, err
	}

	report := &Report{Width: img.Rect.Dx(), Height: img.Rect.Dy()}
	g, gctx := errgroup.WithContext(ctx)

	run := func(enabled bool, fn func()) {
		if !enabled {
			return
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fn()
			return nil
		})
	}

	run(true, func() { report.Metrics = photoMetrics(p.metricsCalculator, img) })
	run(artifacts.Health, func() { report.Health = analyzeHealth(img, p.opts.Health) })
	run(artifacts.Enhanced, func() { report.Enhanced = enhance(img, p.opts.Enhance) })
	run(artifacts.Edges, func() { report.Edges = detectEdges(img, p.opts.Edge) })
	run(artifacts.Segmented, func() { report.Segmented = segmentLeaf(img, p.opts.Health) })
	run(artifacts.Tensor, func() { report.Tensor = preprocess(img, p.opts.Preprocess) })

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}
