//go:build opencv

package factory

import (
	"github.com/plantcare-ai/leaf-inspector-go/internal/analyzer"
	"github.com/plantcare-ai/leaf-inspector-go/internal/analyzer/opencv"
	"github.com/plantcare-ai/leaf-inspector-go/internal/config"
)

func init() {
	engines[config.EngineOpenCV] = func(opts analyzer.Options) (analyzer.Pipeline, error) {
		p, err := opencv.NewPipeline(opts)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}
