package container

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/plantcare-ai/leaf-inspector-go/internal/analyzer"
	"github.com/plantcare-ai/leaf-inspector-go/internal/config"
	"github.com/plantcare-ai/leaf-inspector-go/internal/diagnosis"
	"github.com/plantcare-ai/leaf-inspector-go/internal/factory"
	"github.com/plantcare-ai/leaf-inspector-go/internal/logger"
	"github.com/plantcare-ai/leaf-inspector-go/internal/observer"
	"github.com/plantcare-ai/leaf-inspector-go/internal/repository"
	"github.com/plantcare-ai/leaf-inspector-go/internal/service"
	"github.com/plantcare-ai/leaf-inspector-go/internal/transport"
)

// classifierLoadInterval is the pause between attempts to reach the model server
const classifierLoadInterval = 10 * time.Second

// Container holds all application dependencies
type Container struct {
	config          *config.Config
	pipeline        analyzer.Pipeline
	pool            *analyzer.WorkerPool
	imageRepository repository.ImageRepository
	diagnosis       *diagnosis.Usecase
	events          observer.Subject
	metrics         *observer.MetricsObserver
	leafService     service.LeafAnalysisService
	handler         http.Handler

	classifier *diagnosis.LocalClassifier
	cancel     context.CancelFunc
	closers    []func() error
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config) (*Container, error) {
	components := factory.NewComponentFactory()

	pipeline, err := components.PipelineFactory.CreatePipeline(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	imageRepository, err := components.StorageFactory.CreateRepository(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Container{
		config:          cfg,
		pipeline:        pipeline,
		imageRepository: imageRepository,
		cancel:          cancel,
	}

	backends, err := c.buildBackends(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.diagnosis = diagnosis.NewUsecase(pipeline, nil, backends)

	c.events = observer.NewEventPublisher()
	c.metrics = observer.NewMetricsObserver()
	c.events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	c.events.Subscribe(c.metrics)

	c.pool = analyzer.NewWorkerPool(cfg.WorkerCount)
	c.pool.Start()

	c.leafService = service.NewLeafAnalysisService(
		imageRepository, pipeline, c.diagnosis, c.pool, c.events, cfg.AnalysisTimeout)
	c.handler = transport.NewHandler(c.leafService, c.metrics, c.pool, cfg)

	if c.classifier != nil {
		go c.loadClassifier(ctx)
	}

	logger.WithFields(logrus.Fields{
		"engine":            cfg.PipelineEngine,
		"profile":           cfg.PipelineProfile,
		"diagnosis_backend": c.diagnosis.Backend(),
		"azure":             cfg.AzureEnabled(),
		"workers":           c.pool.GetStats().Workers,
	}).Info("Container initialized")

	return c, nil
}

// buildBackends creates the inference clients for the configured back-end
func (c *Container) buildBackends(ctx context.Context) (diagnosis.Backends, error) {
	cfg := c.config
	var backends diagnosis.Backends

	switch cfg.DiagnosisBackend {
	case config.BackendLocal:
		c.classifier = diagnosis.NewLocalClassifier(cfg.ClassifierURL, cfg.ClassifierClassesPath, cfg.AnalysisTimeout)
		backends.Classifier = c.classifier
	case config.BackendGemini:
		gemini, err := diagnosis.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return backends, fmt.Errorf("failed to create gemini client: %w", err)
		}
		backends.Generator = gemini
	}

	if cfg.VisionPlantCheck {
		checker, err := diagnosis.NewVisionPlantChecker(ctx)
		if err != nil {
			return backends, err
		}
		c.closers = append(c.closers, checker.Close)
		backends.PlantChecker = checker
	}
	return backends, nil
}

// loadClassifier retries Load until it succeeds or the container closes.
// Diagnosis reports unavailable in the meantime.
func (c *Container) loadClassifier(ctx context.Context) {
	for {
		err := c.classifier.Load(ctx)
		if err == nil {
			return
		}
		logger.WithError(err).WithField("model_url", c.config.ClassifierURL).
			Warn("Local classifier not ready, retrying")

		select {
		case <-ctx.Done():
			return
		case <-time.After(classifierLoadInterval):
		}
	}
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Close stops background work, drains the worker pool and releases clients
func (c *Container) Close() error {
	c.cancel()
	if c.pool != nil {
		c.pool.Close()
	}
	if c.events != nil {
		c.events.Flush()
	}

	var errs []error
	for _, closeFn := range c.closers {
		errs = append(errs, closeFn())
	}
	return errors.Join(errs...)
}
