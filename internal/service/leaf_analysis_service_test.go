package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plantcare-ai/leaf-inspector-go/internal/analyzer"
	"github.com/plantcare-ai/leaf-inspector-go/internal/diagnosis"
	apperrors "github.com/plantcare-ai/leaf-inspector-go/internal/errors"
	"github.com/plantcare-ai/leaf-inspector-go/internal/observer"
	"github.com/plantcare-ai/leaf-inspector-go/internal/storage"
	"github.com/plantcare-ai/leaf-inspector-go/pkg/models"
)

type fakeRepo struct {
	body        []byte
	fetchErr    error
	validateErr error
}

func (r *fakeRepo) FetchImage(context.Context, string) ([]byte, *models.ImageMetadata, error) {
	if r.fetchErr != nil {
		return nil, nil, r.fetchErr
	}
	return r.body, &models.ImageMetadata{ContentType: "image/png"}, nil
}

func (r *fakeRepo) ValidateImageURL(string) error { return r.validateErr }

type fakeDiagnoser struct {
	backend string
	ready   bool
	result  *models.Diagnosis
	err     error
}

func (d *fakeDiagnoser) Backend() string { return d.backend }
func (d *fakeDiagnoser) Ready() bool     { return d.ready }
func (d *fakeDiagnoser) Diagnose(context.Context, []byte) (*models.Diagnosis, error) {
	return d.result, d.err
}

// recorder is a synchronous Subject
type recorder struct {
	mu     sync.Mutex
	events []observer.LeafEvent
}

func (r *recorder) Subscribe(observer.Observer)   {}
func (r *recorder) Unsubscribe(observer.Observer) {}
func (r *recorder) Flush()                        {}
func (r *recorder) NotifyObservers(_ context.Context, e observer.LeafEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []observer.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]observer.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType
	}
	return out
}

func (r *recorder) last() observer.LeafEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

// slowPipeline blocks AnalyzeAll until its context ends
type slowPipeline struct {
	analyzer.Pipeline
}

func (slowPipeline) AnalyzeAll(ctx context.Context, _ []byte, _ analyzer.Artifacts) (*analyzer.Report, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func leafPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 30, G: 180, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestService(t *testing.T, repo *fakeRepo, diag *fakeDiagnoser) (LeafAnalysisService, *recorder) {
	t.Helper()
	pipeline, err := analyzer.NewPipeline(analyzer.FastOptions())
	require.NoError(t, err)

	pool := analyzer.NewWorkerPool(2)
	pool.Start()
	t.Cleanup(pool.Close)

	if repo == nil {
		repo = &fakeRepo{}
	}
	if diag == nil {
		diag = &fakeDiagnoser{backend: diagnosis.BackendNone}
	}
	rec := &recorder{}
	return NewLeafAnalysisService(repo, pipeline, diag, pool, rec, 5*time.Second), rec
}

func assertAppError(t *testing.T, err error, want apperrors.ErrorType) {
	t.Helper()
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, want, appErr.Type)
}

func TestAnalyzeImage_AllArtifacts(t *testing.T) {
	svc, rec := newTestService(t, nil, nil)

	result, err := svc.AnalyzeImage(context.Background(), leafPNG(t, 80, 80), analyzer.AllArtifacts())
	require.NoError(t, err)

	assert.NotEmpty(t, result.ID)
	assert.Equal(t, 80, result.Width)
	assert.Equal(t, 80, result.Height)
	require.NotNil(t, result.Health)
	assert.Equal(t, 100.0, result.Health.GreenPercentage)
	assert.True(t, strings.HasPrefix(result.EnhancedImage, "data:image/png;base64,"))
	assert.True(t, strings.HasPrefix(result.EdgeMap, "data:image/png;base64,"))
	assert.True(t, strings.HasPrefix(result.SegmentedImage, "data:image/png;base64,"))
	require.NotNil(t, result.LeafCoverage)
	assert.InDelta(t, 1.0, *result.LeafCoverage, 1e-9)
	require.NotNil(t, result.Tensor)
	assert.Equal(t, 224, result.Tensor.Width)
	assert.Equal(t, 3, result.Tensor.Channels)
	assert.Empty(t, result.Errors)

	// a flat frame has no texture at all
	assert.Equal(t, []string{"blurry"}, result.Quality.Advisories)
	assert.InDelta(t, 119, result.Quality.Brightness, 1)

	assert.Equal(t, []observer.EventType{observer.AnalysisStarted, observer.AnalysisCompleted}, rec.types())
	assert.Equal(t, []string{"blurry"}, rec.last().Metadata[observer.MetaAdvisories])
}

func TestAnalyzeImage_HealthOnly(t *testing.T) {
	svc, _ := newTestService(t, nil, nil)

	artifacts, err := analyzer.ParseArtifacts(nil)
	require.NoError(t, err)
	result, err := svc.AnalyzeImage(context.Background(), leafPNG(t, 64, 64), artifacts)
	require.NoError(t, err)

	assert.NotNil(t, result.Health)
	assert.Empty(t, result.EnhancedImage)
	assert.Empty(t, result.EdgeMap)
	assert.Nil(t, result.Tensor)
	assert.Nil(t, result.LeafCoverage)
}

func TestAnalyzeImage_DecodeError(t *testing.T) {
	svc, rec := newTestService(t, nil, nil)

	_, err := svc.AnalyzeImage(context.Background(), []byte("not an image"), analyzer.AllArtifacts())
	assertAppError(t, err, apperrors.ErrorTypeDecode)
	assert.Equal(t, observer.AnalysisFailed, rec.last().EventType)
	assert.Equal(t, "decode", rec.last().Metadata["error_type"])
}

func TestAnalyzeImage_Timeout(t *testing.T) {
	pool := analyzer.NewWorkerPool(1)
	pool.Start()
	defer pool.Close()

	svc := NewLeafAnalysisService(&fakeRepo{}, slowPipeline{}, &fakeDiagnoser{}, pool, nil, 20*time.Millisecond)
	_, err := svc.AnalyzeImage(context.Background(), []byte{1}, analyzer.AllArtifacts())
	assertAppError(t, err, apperrors.ErrorTypeTimeout)
}

func TestAnalyzeImage_PoolClosed(t *testing.T) {
	pipeline, err := analyzer.NewPipeline(analyzer.FastOptions())
	require.NoError(t, err)
	pool := analyzer.NewWorkerPool(1)
	pool.Start()
	pool.Close()

	svc := NewLeafAnalysisService(&fakeRepo{}, pipeline, &fakeDiagnoser{}, pool, nil, time.Second)
	_, err = svc.AnalyzeImage(context.Background(), leafPNG(t, 8, 8), analyzer.AllArtifacts())
	assertAppError(t, err, apperrors.ErrorTypeUnavailable)
}

func TestAnalyzeURL(t *testing.T) {
	tests := []struct {
		name     string
		repo     *fakeRepo
		wantType apperrors.ErrorType
	}{
		{
			name:     "validation error passes through",
			repo:     &fakeRepo{validateErr: apperrors.NewValidationError("URL scheme not allowed", nil)},
			wantType: apperrors.ErrorTypeValidation,
		},
		{
			name:     "plain validation error is wrapped",
			repo:     &fakeRepo{validateErr: errors.New("bad")},
			wantType: apperrors.ErrorTypeValidation,
		},
		{
			name:     "too large",
			repo:     &fakeRepo{fetchErr: storage.ErrTooLarge},
			wantType: apperrors.ErrorTypeValidation,
		},
		{
			name:     "network failure",
			repo:     &fakeRepo{fetchErr: errors.New("connection refused")},
			wantType: apperrors.ErrorTypeNetwork,
		},
		{
			name:     "not an image",
			repo:     &fakeRepo{body: []byte("<html>")},
			wantType: apperrors.ErrorTypeDecode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, tt.repo, nil)
			_, err := svc.AnalyzeURL(context.Background(), "https://example.com/leaf.png", analyzer.Artifacts{Health: true})
			assertAppError(t, err, tt.wantType)
		})
	}
}

func TestAnalyzeURL_Success(t *testing.T) {
	svc, rec := newTestService(t, &fakeRepo{body: leafPNG(t, 70, 70)}, nil)

	result, err := svc.AnalyzeURL(context.Background(), "https://example.com/leaf.png", analyzer.Artifacts{Health: true})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/leaf.png", result.ImageURL)
	assert.Equal(t, []observer.EventType{
		observer.ImageFetched,
		observer.AnalysisStarted,
		observer.AnalysisCompleted,
	}, rec.types())
}

func TestEnhanceAndEdges(t *testing.T) {
	svc, rec := newTestService(t, nil, nil)
	ctx := context.Background()
	buf := leafPNG(t, 40, 30)

	enhanced, err := svc.Enhance(ctx, buf)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(enhanced))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 40, 30), img.Bounds())

	edges, err := svc.DetectEdges(ctx, buf)
	require.NoError(t, err)
	img, err = png.Decode(bytes.NewReader(edges))
	require.NoError(t, err)
	_, isGray := img.(*image.Gray)
	assert.True(t, isGray)

	_, err = svc.DetectEdges(ctx, nil)
	assertAppError(t, err, apperrors.ErrorTypeDecode)
	assert.Equal(t, observer.OpEdges, rec.last().Operation)
}

func TestDiagnose_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType apperrors.ErrorType
	}{
		{"no backend", diagnosis.ErrNoBackend, apperrors.ErrorTypeUnavailable},
		{"not ready", diagnosis.ErrNotReady, apperrors.ErrorTypeUnavailable},
		{"decode", analyzer.ErrDecode, apperrors.ErrorTypeDecode},
		{"deadline", context.DeadlineExceeded, apperrors.ErrorTypeTimeout},
		{"upstream", errors.New("gemini: 500"), apperrors.ErrorTypeNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, rec := newTestService(t, nil, &fakeDiagnoser{backend: diagnosis.BackendLocal, err: tt.err})
			_, err := svc.Diagnose(context.Background(), leafPNG(t, 8, 8))
			assertAppError(t, err, tt.wantType)
			assert.Equal(t, observer.AnalysisFailed, rec.last().EventType)
		})
	}
}

func TestDiagnose_Success(t *testing.T) {
	want := &models.Diagnosis{
		PlantName:  "Tomato",
		Disease:    "Late blight",
		Confidence: 0.91,
		Backend:    diagnosis.BackendGemini,
	}
	svc, rec := newTestService(t, nil, &fakeDiagnoser{backend: diagnosis.BackendGemini, ready: true, result: want})

	got, err := svc.Diagnose(context.Background(), leafPNG(t, 8, 8))
	require.NoError(t, err)
	assert.Same(t, want, got)

	event := rec.last()
	assert.Equal(t, observer.DiagnosisMade, event.EventType)
	assert.Equal(t, diagnosis.BackendGemini, event.Metadata[observer.MetaBackend])
	assert.Equal(t, false, event.Metadata[observer.MetaUnknown])

	backend, ready := svc.DiagnosisStatus()
	assert.Equal(t, diagnosis.BackendGemini, backend)
	assert.True(t, ready)
}
