package analyzer

import (
	"fmt"
	"image"
	"strings"

	"github.com/plantcare-ai/leaf-inspector-go/pkg/models"
)

// HealthAnalysis is an alias to the shared models.HealthAnalysis so the
// transport layer can serialise it directly.
type HealthAnalysis = models.HealthAnalysis

// Tensor is a model-ready image: Height rows of Width pixels, three float32
// channels each in RGB order, values in [0,1].
type Tensor struct {
	Width  int
	Height int
	Data   []float32
}

// At returns channel c of the pixel at (x, y).
func (t *Tensor) At(x, y, c int) float32 {
	return t.Data[(y*t.Width+x)*3+c]
}

// Summary reports shape and value range.
func (t *Tensor) Summary() models.TensorSummary {
	s := models.TensorSummary{Width: t.Width, Height: t.Height, Channels: 3}
	if len(t.Data) == 0 {
		return s
	}
	s.Min, s.Max = t.Data[0], t.Data[0]
	var sum float64
	for _, v := range t.Data {
		s.Min = min(s.Min, v)
		s.Max = max(s.Max, v)
		sum += float64(v)
	}
	s.Mean = sum / float64(len(t.Data))
	return s
}

// SegmentedLeaf is the input with everything outside the leaf mask blacked out.
type SegmentedLeaf struct {
	Image *image.NRGBA
	Mask  *image.Gray
	// Coverage is the fraction of pixels inside the mask, in [0,1].
	Coverage float64
}

// PhotoMetrics are cheap capture-quality measurements on the grayscale image.
type PhotoMetrics struct {
	Brightness   float64
	LaplacianVar float64
}

// Artifact names one output of AnalyzeAll.
type Artifact string

const (
	ArtifactHealth    Artifact = "health"
	ArtifactEnhanced  Artifact = "enhanced"
	ArtifactEdges     Artifact = "edges"
	ArtifactSegmented Artifact = "segmented"
	ArtifactTensor    Artifact = "tensor"
)

// Artifacts selects which outputs AnalyzeAll computes.
type Artifacts struct {
	Health    bool
	Enhanced  bool
	Edges     bool
	Segmented bool
	Tensor    bool
}

// AllArtifacts selects every output.
func AllArtifacts() Artifacts {
	return Artifacts{Health: true, Enhanced: true, Edges: true, Segmented: true, Tensor: true}
}

// ParseArtifacts reads names such as "health,edges". Empty input selects
// health only.
func ParseArtifacts(names []string) (Artifacts, error) {
	var a Artifacts
	for _, raw := range names {
		for _, name := range strings.Split(raw, ",") {
			switch Artifact(strings.ToLower(strings.TrimSpace(name))) {
			case "":
			case ArtifactHealth:
				a.Health = true
			case ArtifactEnhanced:
				a.Enhanced = true
			case ArtifactEdges:
				a.Edges = true
			case ArtifactSegmented:
				a.Segmented = true
			case ArtifactTensor:
				a.Tensor = true
			case "all":
				a = AllArtifacts()
			default:
				return Artifacts{}, fmt.Errorf("unknown artifact %q", name)
			}
		}
	}
	if a == (Artifacts{}) {
		a.Health = true
	}
	return a, nil
}

// Report holds whichever artifacts were requested from AnalyzeAll.
type Report struct {
	Width, Height int
	Metrics       PhotoMetrics

	Health    *HealthAnalysis
	Enhanced  *image.NRGBA
	Edges     *image.Gray
	Segmented *SegmentedLeaf
	Tensor    *Tensor
}
