// Package diagnosis turns a leaf photo into a plant/disease verdict with a
// treatment record. Inference is delegated to a local classifier or to a
// hosted multimodal model; the pipeline's health analysis is attached to
// every result.
package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/plantcare-ai/leaf-inspector-go/internal/analyzer"
	"github.com/plantcare-ai/leaf-inspector-go/internal/logger"
	"github.com/plantcare-ai/leaf-inspector-go/pkg/models"
)

var (
	// ErrNotReady is returned while the selected back-end cannot serve.
	ErrNotReady = errors.New("diagnosis back-end not ready")
	// ErrNoBackend is returned when no back-end is configured.
	ErrNoBackend = errors.New("no diagnosis back-end configured")
)

// Back-end names reported in results.
const (
	BackendLocal  = "local"
	BackendGemini = "gemini"
	BackendNone   = "none"
)

// Classifier produces a class probability vector for a model-input tensor.
type Classifier interface {
	Ready() bool
	Predict(ctx context.Context, t *analyzer.Tensor) ([]float64, error)
	ClassName(idx int) (string, bool)
}

// Generator answers a prompt about one image with JSON text.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

// PlantChecker reports whether an image shows a plant at all.
type PlantChecker interface {
	IsPlant(ctx context.Context, image []byte) (bool, error)
}

// Backends selects the inference path. Classifier wins over Generator when
// both are set; PlantChecker is optional for either.
type Backends struct {
	Classifier   Classifier
	Generator    Generator
	PlantChecker PlantChecker
}

// Usecase runs a diagnosis against the configured back-end.
type Usecase struct {
	pipeline analyzer.Pipeline
	catalog  *Catalog
	gate     analyzer.ConfidenceGate
	backends Backends
	now      func() time.Time
}

// NewUsecase creates a diagnosis usecase. A nil catalog selects the
// built-in one.
func NewUsecase(pipeline analyzer.Pipeline, catalog *Catalog, backends Backends) *Usecase {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Usecase{
		pipeline: pipeline,
		catalog:  catalog,
		gate:     pipeline.Options().Confidence,
		backends: backends,
		now:      time.Now,
	}
}

// Backend names the active inference path.
func (u *Usecase) Backend() string {
	switch {
	case u.backends.Classifier != nil:
		return BackendLocal
	case u.backends.Generator != nil:
		return BackendGemini
	default:
		return BackendNone
	}
}

// Ready reports whether Diagnose can currently succeed.
func (u *Usecase) Ready() bool {
	switch u.Backend() {
	case BackendLocal:
		return u.backends.Classifier.Ready()
	case BackendGemini:
		return true
	default:
		return false
	}
}

// Diagnose analyses buf and returns the verdict. Decode failures surface as
// analyzer.ErrDecode.
func (u *Usecase) Diagnose(ctx context.Context, buf []byte) (*models.Diagnosis, error) {
	backend := u.Backend()
	if backend == BackendNone {
		return nil, ErrNoBackend
	}
	if backend == BackendLocal && !u.backends.Classifier.Ready() {
		return nil, ErrNotReady
	}

	report, err := u.pipeline.AnalyzeAll(ctx, buf, analyzer.Artifacts{
		Health: true,
		Tensor: backend == BackendLocal,
	})
	if err != nil {
		return nil, err
	}

	d := &models.Diagnosis{
		Health:    report.Health,
		Backend:   backend,
		Timestamp: u.now().UTC(),
	}

	if u.backends.PlantChecker != nil {
		isPlant, err := u.backends.PlantChecker.IsPlant(ctx, buf)
		switch {
		case err != nil:
			logger.WithError(err).Warn("Plant check failed, continuing with inference")
		case !isPlant:
			markUnknown(d, 0)
			return d, nil
		}
	}

	switch backend {
	case BackendLocal:
		err = u.diagnoseLocal(ctx, report.Tensor, d)
	case BackendGemini:
		err = u.diagnoseGemini(ctx, buf, d)
	}
	if err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"backend":    backend,
		"plant":      d.PlantName,
		"disease":    d.Disease,
		"confidence": d.Confidence,
		"unknown":    d.IsUnknown,
	}).Info("Diagnosis complete")
	return d, nil
}

func (u *Usecase) diagnoseLocal(ctx context.Context, tensor *analyzer.Tensor, d *models.Diagnosis) error {
	probs, err := u.backends.Classifier.Predict(ctx, tensor)
	if err != nil {
		return err
	}

	if unknown, p := u.gate.Unknown(probs); unknown {
		markUnknown(d, p)
		return nil
	}

	idx := analyzer.Argmax(probs)
	name, ok := u.backends.Classifier.ClassName(idx)
	if !ok {
		return fmt.Errorf("prediction index %d has no class name", idx)
	}

	trusted, p := u.gate.Trusted(probs)
	d.Confidence = p
	d.LowConfidence = !trusted
	u.applyLabel(d, ParseClassLabel(name))
	return nil
}

func (u *Usecase) applyLabel(d *models.Diagnosis, label ClassLabel) {
	d.PlantName = label.Plant
	d.Disease = label.Disease
	d.ClassLabel = label.Raw
	d.IsHealthy = label.Healthy
	if label.Healthy {
		d.CareTip = healthyCareTip
		return
	}
	t, _ := u.catalog.Lookup(label.Raw)
	d.Treatment = &t
}

func (u *Usecase) diagnoseGemini(ctx context.Context, buf []byte, d *models.Diagnosis) error {
	img, err := analyzer.Decode(buf)
	if err != nil {
		return err
	}
	png, err := analyzer.EncodePNG(analyzer.Thumbnail(img, geminiMaxSide))
	if err != nil {
		return fmt.Errorf("failed to encode upload: %w", err)
	}

	text, err := u.backends.Generator.GenerateJSON(ctx, geminiPrompt, png, "image/png")
	if err != nil {
		return err
	}
	v, err := parseGeminiVerdict(text)
	if err != nil {
		return err
	}

	conf, ok := v.confidence()
	if v.IsUnknown {
		markUnknown(d, conf)
		return nil
	}
	if ok {
		if unknown, _ := u.gate.Unknown([]float64{conf}); unknown {
			markUnknown(d, conf)
			return nil
		}
	}

	trusted, _ := u.gate.Trusted([]float64{conf})
	d.Confidence = conf
	d.ModelHealthScore = v.healthScore()
	d.LowConfidence = !ok || !trusted
	d.PlantName = strings.TrimSpace(v.PlantName)
	d.Disease = strings.TrimSpace(v.Disease)
	d.IsHealthy = strings.EqualFold(d.Disease, healthyDisease)
	d.CareTip = strings.TrimSpace(v.Treatment)

	if d.IsHealthy {
		if d.CareTip == "" {
			d.CareTip = healthyCareTip
		}
		return nil
	}
	t, _ := u.catalog.Lookup(d.PlantName + "_" + d.Disease)
	d.Treatment = &t
	return nil
}

func markUnknown(d *models.Diagnosis, confidence float64) {
	d.PlantName = unknownPlant
	d.Disease = unknownDisease
	d.Confidence = confidence
	d.IsUnknown = true
	d.LowConfidence = true
	d.CareTip = unknownCareTip
}
