package factory

import (
	"fmt"

	"github.com/plantcare-ai/leaf-inspector-go/internal/analyzer"
	"github.com/plantcare-ai/leaf-inspector-go/internal/config"
	"github.com/plantcare-ai/leaf-inspector-go/internal/repository"
	"github.com/plantcare-ai/leaf-inspector-go/internal/storage"
	"github.com/plantcare-ai/leaf-inspector-go/internal/strategy"
)

// PipelineConstructor builds a pipeline for one engine
type PipelineConstructor func(opts analyzer.Options) (analyzer.Pipeline, error)

// engines is extended by build-tagged files
var engines = map[string]PipelineConstructor{
	config.EngineNative: analyzer.NewPipeline,
}

// PipelineFactory creates leaf pipelines
type PipelineFactory interface {
	CreatePipeline(cfg *config.Config) (analyzer.Pipeline, error)
}

// StorageFactory creates image sources
type StorageFactory interface {
	CreateRepository(cfg *config.Config) (repository.ImageRepository, error)
}

// pipelineFactory implements PipelineFactory
type pipelineFactory struct{}

// NewPipelineFactory creates a new pipeline factory
func NewPipelineFactory() PipelineFactory {
	return &pipelineFactory{}
}

// PipelineOptions maps configuration onto pipeline options, then applies
// the profile strategy.
func PipelineOptions(cfg *config.Config) (analyzer.Options, error) {
	opts := analyzer.DefaultOptions().
		WithTargetSize(cfg.TargetWidth, cfg.TargetHeight).
		WithCLAHE(cfg.CLAHEClipLimit, cfg.CLAHETileGrid).
		WithCannyThresholds(cfg.CannyLow, cfg.CannyHigh).
		WithConfidenceThresholds(cfg.TrustThreshold, cfg.UnknownThreshold)
	if cfg.HealthMaskedHistogram {
		opts = opts.WithMaskedHistogram()
	}

	s, err := strategy.ByName(cfg.PipelineProfile)
	if err != nil {
		return analyzer.Options{}, err
	}
	opts = s.Apply(opts)

	if err := opts.Validate(); err != nil {
		return analyzer.Options{}, fmt.Errorf("invalid pipeline options: %w", err)
	}
	return opts, nil
}

// CreatePipeline creates a pipeline for the configured engine and profile
func (f *pipelineFactory) CreatePipeline(cfg *config.Config) (analyzer.Pipeline, error) {
	build, ok := engines[cfg.PipelineEngine]
	if !ok {
		return nil, fmt.Errorf("pipeline engine %q is not available in this build", cfg.PipelineEngine)
	}

	opts, err := PipelineOptions(cfg)
	if err != nil {
		return nil, err
	}
	return build(opts)
}

// storageFactory implements StorageFactory
type storageFactory struct{}

// NewStorageFactory creates a new storage factory
func NewStorageFactory() StorageFactory {
	return &storageFactory{}
}

// CreateRepository wires the HTTP fetcher and, when credentials are set,
// Azure blob storage behind one repository.
func (f *storageFactory) CreateRepository(cfg *config.Config) (repository.ImageRepository, error) {
	fetcher := storage.NewHTTPImageFetcher(cfg.ImageFetchTimeout, cfg.MaxRequestBodySize)

	var blobs storage.BlobStorage
	if cfg.AzureEnabled() {
		var err error
		blobs, err = storage.NewAzureStorage(cfg.AzureStorageAccount, cfg.AzureStorageKey, cfg.MaxRequestBodySize)
		if err != nil {
			return nil, fmt.Errorf("failed to create azure storage: %w", err)
		}
	}
	return repository.NewSourceRepository(fetcher, blobs), nil
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	PipelineFactory PipelineFactory
	StorageFactory  StorageFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory() *ComponentFactory {
	return &ComponentFactory{
		PipelineFactory: NewPipelineFactory(),
		StorageFactory:  NewStorageFactory(),
	}
}
