//go:build opencv

// Package opencv implements analyzer.Pipeline on top of OpenCV through gocv.
// It is selected with the opencv build tag and serves as the reference the
// pure-Go pipeline is checked against.
package opencv

import (
	"context"
	"image"

	"gocv.io/x/gocv"

	"github.com/plantcare-ai/leaf-inspector-go/internal/analyzer"
)

var _ analyzer.Pipeline = (*Pipeline)(nil)

// Pipeline runs every path with OpenCV primitives. Mats are created and
// closed per call, so a Pipeline is safe for concurrent use.
type Pipeline struct {
	opts analyzer.Options
}

// NewPipeline creates an OpenCV-backed pipeline with validated options
func NewPipeline(opts analyzer.Options) (*Pipeline, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{opts: opts}, nil
}

func (p *Pipeline) Options() analyzer.Options {
	return p.opts
}

// decode returns a BGR Mat. The caller closes it.
func decode(buf []byte) (gocv.Mat, error) {
	if len(buf) == 0 {
		return gocv.NewMat(), analyzer.ErrDecode
	}
	mat, err := gocv.IMDecode(buf, gocv.IMReadColor)
	if err != nil {
		return gocv.NewMat(), analyzer.ErrDecode
	}
	if mat.Empty() {
		return mat, analyzer.ErrDecode
	}
	return mat, nil
}

func (p *Pipeline) Preprocess(buf []byte) (*analyzer.Tensor, error) {
	bgr, err := decode(buf)
	defer bgr.Close()
	if err != nil {
		return nil, err
	}
	return p.preprocess(bgr), nil
}

func (p *Pipeline) preprocess(bgr gocv.Mat) *analyzer.Tensor {
	o := p.opts.Preprocess

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(bgr, &rgb, gocv.ColorBGRToRGB)

	denoised := gocv.NewMat()
	defer denoised.Close()
	if o.SkipDenoise {
		rgb.CopyTo(&denoised)
	} else {
		gocv.FastNlMeansDenoisingColoredWithParams(rgb, &denoised,
			float32(o.DenoiseStrength), float32(o.DenoiseColorStrength), o.TemplateWindow, o.SearchWindow)
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(denoised, &resized, image.Pt(o.TargetWidth, o.TargetHeight), 0, 0, gocv.InterpolationLinear)

	raw := resized.ToBytes()
	t := &analyzer.Tensor{Width: o.TargetWidth, Height: o.TargetHeight, Data: make([]float32, len(raw))}
	for i, v := range raw {
		t.Data[i] = float32(v) / 255
	}
	return t
}

func (p *Pipeline) Enhance(buf []byte) (*image.NRGBA, error) {
	bgr, err := decode(buf)
	defer bgr.Close()
	if err != nil {
		return nil, err
	}
	return p.enhance(bgr), nil
}

func (p *Pipeline) enhance(bgr gocv.Mat) *image.NRGBA {
	o := p.opts.Enhance

	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(bgr, &lab, gocv.ColorBGRToLab)

	channels := gocv.Split(lab)
	defer func() {
		for _, c := range channels {
			c.Close()
		}
	}()

	clahe := gocv.NewCLAHEWithParams(o.ClipLimit, image.Pt(o.TileGridX, o.TileGridY))
	defer clahe.Close()
	clahe.Apply(channels[0], &channels[0])

	gocv.Merge(channels, &lab)
	out := gocv.NewMat()
	defer out.Close()
	gocv.CvtColor(lab, &out, gocv.ColorLabToBGR)

	if !o.SkipSharpen {
		kernel := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV32F)
		defer kernel.Close()
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				kernel.SetFloatAt(r, c, -1)
			}
		}
		kernel.SetFloatAt(1, 1, 9)
		gocv.Filter2D(out, &out, gocv.MatTypeCV8U, kernel, image.Pt(-1, -1), 0, gocv.BorderDefault)
	}
	return bgrToNRGBA(out)
}

func (p *Pipeline) DetectEdges(buf []byte) (*image.Gray, error) {
	bgr, err := decode(buf)
	defer bgr.Close()
	if err != nil {
		return nil, err
	}
	return p.detectEdges(bgr), nil
}

func (p *Pipeline) detectEdges(bgr gocv.Mat) *image.Gray {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blurred, &edges, float32(p.opts.Edge.LowThreshold), float32(p.opts.Edge.HighThreshold))
	return grayImage(edges)
}

func (p *Pipeline) AnalyzeHealth(buf []byte) (*analyzer.HealthAnalysis, error) {
	bgr, err := decode(buf)
	defer bgr.Close()
	if err != nil {
		return nil, err
	}
	return p.analyzeHealth(bgr), nil
}

func (p *Pipeline) analyzeHealth(bgr gocv.Mat) *analyzer.HealthAnalysis {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(bgr, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	defer mask.Close()
	if p.opts.Health.MaskedHistogram {
		p.leafMask(hsv, &mask)
	}

	hist := gocv.NewMat()
	defer hist.Close()
	gocv.CalcHist([]gocv.Mat{hsv}, []int{0}, mask, &hist, []int{180}, []float64{0, 180}, false)

	bins := make([]float64, 180)
	for i := range bins {
		bins[i] = float64(hist.GetFloatAt(i, 0))
	}
	return analyzer.ScoreHueHistogram(bins, p.opts.Health)
}

func (p *Pipeline) leafMask(hsv gocv.Mat, mask *gocv.Mat) {
	o := p.opts.Health
	lo := gocv.NewScalar(float64(o.MaskLower[0]), float64(o.MaskLower[1]), float64(o.MaskLower[2]), 0)
	hi := gocv.NewScalar(float64(o.MaskUpper[0]), float64(o.MaskUpper[1]), float64(o.MaskUpper[2]), 0)
	gocv.InRangeWithScalar(hsv, lo, hi, mask)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(o.MorphKernelSize, o.MorphKernelSize))
	defer kernel.Close()
	gocv.MorphologyEx(*mask, mask, gocv.MorphClose, kernel)
	gocv.MorphologyEx(*mask, mask, gocv.MorphOpen, kernel)
}

func (p *Pipeline) SegmentLeaf(buf []byte) (*analyzer.SegmentedLeaf, error) {
	bgr, err := decode(buf)
	defer bgr.Close()
	if err != nil {
		return nil, err
	}
	return p.segmentLeaf(bgr), nil
}

func (p *Pipeline) segmentLeaf(bgr gocv.Mat) *analyzer.SegmentedLeaf {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(bgr, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	defer mask.Close()
	p.leafMask(hsv, &mask)

	out := gocv.NewMatWithSize(bgr.Rows(), bgr.Cols(), bgr.Type())
	defer out.Close()
	gocv.BitwiseAndWithMask(bgr, bgr, &out, mask)

	return &analyzer.SegmentedLeaf{
		Image:    bgrToNRGBA(out),
		Mask:     grayImage(mask),
		Coverage: float64(gocv.CountNonZero(mask)) / float64(bgr.Rows()*bgr.Cols()),
	}
}

// AnalyzeAll runs the selected paths one after another on a single decode.
// OpenCV parallelises inside each call.
func (p *Pipeline) AnalyzeAll(ctx context.Context, buf []byte, artifacts analyzer.Artifacts) (*analyzer.Report, error) {
	bgr, err := decode(buf)
	defer bgr.Close()
	if err != nil {
		return nil, err
	}

	report := &analyzer.Report{Width: bgr.Cols(), Height: bgr.Rows()}
	steps := []struct {
		enabled bool
		run     func()
	}{
		{true, func() { report.Metrics = p.photoMetrics(bgr) }},
		{artifacts.Health, func() { report.Health = p.analyzeHealth(bgr) }},
		{artifacts.Enhanced, func() { report.Enhanced = p.enhance(bgr) }},
		{artifacts.Edges, func() { report.Edges = p.detectEdges(bgr) }},
		{artifacts.Segmented, func() { report.Segmented = p.segmentLeaf(bgr) }},
		{artifacts.Tensor, func() { report.Tensor = p.preprocess(bgr) }},
	}
	for _, s := range steps {
		if !s.enabled {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.run()
	}
	return report, nil
}

func (p *Pipeline) photoMetrics(bgr gocv.Mat) analyzer.PhotoMetrics {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(bgr, &gray, gocv.ColorBGRToGray)

	calc := analyzer.NewMetricsCalculator()
	img := grayImage(gray)
	return analyzer.PhotoMetrics{
		Brightness:   calc.CalculateBrightness(img),
		LaplacianVar: calc.CalculateLaplacianVariance(img),
	}
}

func bgrToNRGBA(m gocv.Mat) *image.NRGBA {
	w, h := m.Cols(), m.Rows()
	raw := m.ToBytes()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i, j := 0, 0; i < len(raw); i, j = i+3, j+4 {
		out.Pix[j], out.Pix[j+1], out.Pix[j+2], out.Pix[j+3] = raw[i+2], raw[i+1], raw[i], 0xff
	}
	return out
}

func grayImage(m gocv.Mat) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, m.Cols(), m.Rows()))
	copy(out.Pix, m.ToBytes())
	return out
}
