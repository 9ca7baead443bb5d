package service

import (
	"context"
	"errors"
	"image"
	"time"

	"github.com/google/uuid"

	"github.com/plantcare-ai/leaf-inspector-go/internal/analyzer"
	"github.com/plantcare-ai/leaf-inspector-go/internal/diagnosis"
	apperrors "github.com/plantcare-ai/leaf-inspector-go/internal/errors"
	"github.com/plantcare-ai/leaf-inspector-go/internal/observer"
	"github.com/plantcare-ai/leaf-inspector-go/internal/repository"
	"github.com/plantcare-ai/leaf-inspector-go/internal/storage"
	"github.com/plantcare-ai/leaf-inspector-go/pkg/models"
	"github.com/plantcare-ai/leaf-inspector-go/pkg/validation"
)

// SourceUpload marks images that arrived in the request body
const SourceUpload = "upload"

// LeafAnalysisService runs the leaf pipeline and the diagnosis back-end for
// the transport layer. All errors it returns are *apperrors.AppError.
type LeafAnalysisService interface {
	// AnalyzeImage computes the selected artifacts for uploaded bytes
	AnalyzeImage(ctx context.Context, buf []byte, artifacts analyzer.Artifacts) (*models.LeafAnalysisResult, error)
	// AnalyzeURL fetches the image first
	AnalyzeURL(ctx context.Context, imageURL string, artifacts analyzer.Artifacts) (*models.LeafAnalysisResult, error)

	// Enhance and DetectEdges return PNG bytes
	Enhance(ctx context.Context, buf []byte) ([]byte, error)
	DetectEdges(ctx context.Context, buf []byte) ([]byte, error)

	Diagnose(ctx context.Context, buf []byte) (*models.Diagnosis, error)
	DiagnosisStatus() (backend string, ready bool)

	ValidateImageURL(imageURL string) error
}

// Diagnoser is the diagnosis usecase as seen by the service
type Diagnoser interface {
	Backend() string
	Ready() bool
	Diagnose(ctx context.Context, buf []byte) (*models.Diagnosis, error)
}

var _ Diagnoser = (*diagnosis.Usecase)(nil)

type leafAnalysisService struct {
	imageRepo repository.ImageRepository
	pipeline  analyzer.Pipeline
	diagnoser Diagnoser
	pool      *analyzer.WorkerPool
	quality   *validation.QualityValidator
	events    observer.Subject
	timeout   time.Duration
	now       func() time.Time
}

// NewLeafAnalysisService creates the service. pool and events may be nil;
// without a pool the pipeline runs on the calling goroutine.
func NewLeafAnalysisService(
	imageRepository repository.ImageRepository,
	pipeline analyzer.Pipeline,
	diagnoser Diagnoser,
	pool *analyzer.WorkerPool,
	events observer.Subject,
	timeout time.Duration,
) LeafAnalysisService {
	return &leafAnalysisService{
		imageRepo: imageRepository,
		pipeline:  pipeline,
		diagnoser: diagnoser,
		pool:      pool,
		quality:   validation.NewQualityValidator(),
		events:    events,
		timeout:   timeout,
		now:       time.Now,
	}
}

// AnalyzeImage computes the selected artifacts for uploaded bytes
func (s *leafAnalysisService) AnalyzeImage(ctx context.Context, buf []byte, artifacts analyzer.Artifacts) (*models.LeafAnalysisResult, error) {
	return s.analyze(ctx, buf, SourceUpload, artifacts)
}

// AnalyzeURL validates and fetches imageURL, then analyses it
func (s *leafAnalysisService) AnalyzeURL(ctx context.Context, imageURL string, artifacts analyzer.Artifacts) (*models.LeafAnalysisResult, error) {
	if err := s.ValidateImageURL(imageURL); err != nil {
		return nil, err
	}

	buf, err := s.fetch(ctx, imageURL)
	if err != nil {
		return nil, err
	}

	result, err := s.analyze(ctx, buf, imageURL, artifacts)
	if err != nil {
		return nil, err
	}
	result.ImageURL = imageURL
	return result, nil
}

func (s *leafAnalysisService) fetch(ctx context.Context, imageURL string) ([]byte, error) {
	start := s.now()
	buf, meta, err := s.imageRepo.FetchImage(ctx, imageURL)
	event := observer.LeafEvent{
		Operation:      observer.OpAnalyze,
		Source:         imageURL,
		ProcessingTime: s.now().Sub(start),
	}
	if err != nil {
		event.EventType = observer.ImageFetchFailed
		event.ErrorMessage = err.Error()
		s.notify(ctx, event)
		return nil, mapFetchError(err)
	}

	event.EventType = observer.ImageFetched
	event.Success = true
	if meta != nil {
		event.Metadata = map[string]interface{}{
			"content_type": meta.ContentType,
			"bytes":        len(buf),
		}
	}
	s.notify(ctx, event)
	return buf, nil
}

func (s *leafAnalysisService) analyze(ctx context.Context, buf []byte, source string, artifacts analyzer.Artifacts) (*models.LeafAnalysisResult, error) {
	start := s.now()
	s.notify(ctx, observer.LeafEvent{EventType: observer.AnalysisStarted, Operation: observer.OpAnalyze, Source: source})

	var report *analyzer.Report
	err := s.run(ctx, func(ctx context.Context) error {
		r, err := s.pipeline.AnalyzeAll(ctx, buf, artifacts)
		report = r
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, observer.OpAnalyze, source, start, mapPipelineError(err))
	}

	result := &models.LeafAnalysisResult{
		ID:        uuid.NewString(),
		Timestamp: start.UTC(),
		Width:     report.Width,
		Height:    report.Height,
		Health:    report.Health,
	}
	if report.Tensor != nil {
		summary := report.Tensor.Summary()
		result.Tensor = &summary
	}
	if report.Enhanced != nil {
		result.EnhancedImage = s.dataURI(result, "enhanced", report.Enhanced)
	}
	if report.Edges != nil {
		result.EdgeMap = s.dataURI(result, "edges", report.Edges)
	}
	if report.Segmented != nil {
		coverage := report.Segmented.Coverage
		result.LeafCoverage = &coverage
		result.SegmentedImage = s.dataURI(result, "segmented", report.Segmented.Image)
	}

	issues := s.quality.Validate(validation.CaptureMetrics{
		Width:        report.Width,
		Height:       report.Height,
		Brightness:   report.Metrics.Brightness,
		LaplacianVar: report.Metrics.LaplacianVar,
		LeafCoverage: result.LeafCoverage,
	})
	result.Quality = models.PhotoQuality{
		Brightness:   report.Metrics.Brightness,
		LaplacianVar: report.Metrics.LaplacianVar,
		Advisories:   validation.Advisories(issues),
	}
	result.ProcessingTimeSec = s.now().Sub(start).Seconds()

	s.notify(ctx, observer.LeafEvent{
		EventType:      observer.AnalysisCompleted,
		Operation:      observer.OpAnalyze,
		Source:         source,
		ProcessingTime: s.now().Sub(start),
		Success:        true,
		Metadata:       map[string]interface{}{observer.MetaAdvisories: result.Quality.Advisories},
	})
	return result, nil
}

// dataURI encodes an artifact, recording a failure on the result instead of
// failing the whole analysis.
func (s *leafAnalysisService) dataURI(result *models.LeafAnalysisResult, name string, img image.Image) string {
	uri, err := analyzer.EncodeDataURI(img)
	if err != nil {
		result.Errors = append(result.Errors, name+": "+err.Error())
		return ""
	}
	return uri
}

// Enhance returns the display-enhanced image as PNG
func (s *leafAnalysisService) Enhance(ctx context.Context, buf []byte) ([]byte, error) {
	return s.render(ctx, observer.OpEnhance, buf, func() (image.Image, error) {
		img, err := s.pipeline.Enhance(buf)
		if err != nil {
			return nil, err
		}
		return img, nil
	})
}

// DetectEdges returns the binary edge map as PNG
func (s *leafAnalysisService) DetectEdges(ctx context.Context, buf []byte) ([]byte, error) {
	return s.render(ctx, observer.OpEdges, buf, func() (image.Image, error) {
		img, err := s.pipeline.DetectEdges(buf)
		if err != nil {
			return nil, err
		}
		return img, nil
	})
}

func (s *leafAnalysisService) render(ctx context.Context, op observer.Operation, buf []byte, fn func() (image.Image, error)) ([]byte, error) {
	start := s.now()
	s.notify(ctx, observer.LeafEvent{EventType: observer.AnalysisStarted, Operation: op, Source: SourceUpload})

	var out []byte
	err := s.run(ctx, func(context.Context) error {
		img, err := fn()
		if err != nil {
			return err
		}
		out, err = analyzer.EncodePNG(img)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, op, SourceUpload, start, mapPipelineError(err))
	}

	s.notify(ctx, observer.LeafEvent{
		EventType:      observer.AnalysisCompleted,
		Operation:      op,
		Source:         SourceUpload,
		ProcessingTime: s.now().Sub(start),
		Success:        true,
	})
	return out, nil
}

// Diagnose runs the configured back-end. Inference is I/O bound and runs
// outside the worker pool.
func (s *leafAnalysisService) Diagnose(ctx context.Context, buf []byte) (*models.Diagnosis, error) {
	start := s.now()
	s.notify(ctx, observer.LeafEvent{EventType: observer.AnalysisStarted, Operation: observer.OpDiagnose, Source: SourceUpload})

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	d, err := s.diagnoser.Diagnose(ctx, buf)
	if err != nil {
		return nil, s.fail(ctx, observer.OpDiagnose, SourceUpload, start, mapDiagnosisError(err))
	}

	elapsed := s.now().Sub(start)
	s.notify(ctx, observer.LeafEvent{
		EventType:      observer.AnalysisCompleted,
		Operation:      observer.OpDiagnose,
		Source:         SourceUpload,
		ProcessingTime: elapsed,
		Success:        true,
	})
	s.notify(ctx, observer.LeafEvent{
		EventType:      observer.DiagnosisMade,
		Operation:      observer.OpDiagnose,
		Source:         SourceUpload,
		ProcessingTime: elapsed,
		Success:        true,
		Metadata: map[string]interface{}{
			observer.MetaBackend:       d.Backend,
			observer.MetaUnknown:       d.IsUnknown,
			observer.MetaLowConfidence: d.LowConfidence,
			observer.MetaHealthy:       d.IsHealthy,
			"plant":                    d.PlantName,
			"disease":                  d.Disease,
			"confidence":               d.Confidence,
		},
	})
	return d, nil
}

// DiagnosisStatus reports the configured back-end and whether it can serve
func (s *leafAnalysisService) DiagnosisStatus() (string, bool) {
	return s.diagnoser.Backend(), s.diagnoser.Ready()
}

// ValidateImageURL validates the image URL
func (s *leafAnalysisService) ValidateImageURL(imageURL string) error {
	err := s.imageRepo.ValidateImageURL(imageURL)
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.NewValidationError("invalid image URL", err)
}

// run executes fn on the worker pool under the analysis timeout.
func (s *leafAnalysisService) run(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if s.pool == nil {
		return fn(ctx)
	}
	return s.pool.SubmitWait(ctx, func() error { return fn(ctx) })
}

func (s *leafAnalysisService) fail(ctx context.Context, op observer.Operation, source string, start time.Time, err *apperrors.AppError) error {
	s.notify(ctx, observer.LeafEvent{
		EventType:      observer.AnalysisFailed,
		Operation:      op,
		Source:         source,
		ProcessingTime: s.now().Sub(start),
		ErrorMessage:   err.Error(),
		Metadata:       map[string]interface{}{"error_type": string(err.Type)},
	})
	return err
}

func (s *leafAnalysisService) notify(ctx context.Context, event observer.LeafEvent) {
	if s.events == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	s.events.NotifyObservers(ctx, event)
}

func mapPipelineError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, analyzer.ErrDecode):
		return apperrors.NewDecodeError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("analysis timed out", err)
	case errors.Is(err, context.Canceled):
		return apperrors.NewTimeoutError("analysis cancelled", err)
	case errors.Is(err, analyzer.ErrPoolClosed):
		return apperrors.NewUnavailableError("service is shutting down", err)
	default:
		return apperrors.NewProcessingError("analysis failed", err)
	}
}

func mapDiagnosisError(err error) *apperrors.AppError {
	switch {
	case errors.Is(err, diagnosis.ErrNoBackend):
		return apperrors.NewUnavailableError("diagnosis is not configured", err)
	case errors.Is(err, diagnosis.ErrNotReady):
		return apperrors.NewUnavailableError("diagnosis model is not ready", err)
	case errors.Is(err, analyzer.ErrDecode), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return mapPipelineError(err)
	default:
		return apperrors.NewNetworkError("diagnosis back-end failed", err)
	}
}

func mapFetchError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, storage.ErrTooLarge):
		return apperrors.NewValidationError("image exceeds size limit", err)
	case errors.Is(err, repository.ErrInvalidImageURL):
		return apperrors.NewValidationError("invalid image URL", err)
	case errors.Is(err, repository.ErrBlobStorageDisabled):
		return apperrors.NewUnavailableError("blob storage is not configured", err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewTimeoutError("image fetch timed out", err)
	default:
		return apperrors.NewNetworkError("failed to fetch image", err)
	}
}
