package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Diagnosis back-end names accepted in DIAGNOSIS_BACKEND.
const (
	BackendGemini = "gemini"
	BackendLocal  = "local"
	BackendNone   = "none"
)

// Pipeline engines accepted in PIPELINE_ENGINE. The opencv engine is only
// available in binaries built with the opencv tag.
const (
	EngineNative = "native"
	EngineOpenCV = "opencv"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	ImageFetchTimeout  time.Duration
	AnalysisTimeout    time.Duration
	MaxRequestBodySize int64
	WorkerCount        int

	// Pipeline
	PipelineEngine        string
	PipelineProfile       string
	TargetWidth           int
	TargetHeight          int
	CLAHEClipLimit        float64
	CLAHETileGrid         int
	CannyLow              float64
	CannyHigh             float64
	TrustThreshold        float64
	UnknownThreshold      float64
	HealthMaskedHistogram bool

	// Diagnosis
	DiagnosisBackend      string
	GeminiAPIKey          string
	GeminiModel           string
	ClassifierURL         string
	ClassifierClassesPath string
	VisionPlantCheck      bool

	// Azure blob image source
	AzureStorageAccount string
	AzureStorageKey     string
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// AzureEnabled reports whether Azure blob credentials were supplied.
func (c *Config) AzureEnabled() bool {
	return c.AzureStorageAccount != "" && c.AzureStorageKey != ""
}

// LoadFromEnv reads configuration from the environment. A .env file in the
// working directory is loaded first when present; real env vars win.
func LoadFromEnv() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		ImageFetchTimeout:  parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", 15*time.Second),
		AnalysisTimeout:    parseDurationOrDefault("ANALYSIS_TIMEOUT", 20*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 10*1024*1024), // 10MB
		WorkerCount:        int(parseIntOrDefault("WORKER_COUNT", 0)),

		PipelineEngine:        strings.ToLower(getEnvOrDefault("PIPELINE_ENGINE", EngineNative)),
		PipelineProfile:       strings.ToLower(getEnvOrDefault("PIPELINE_PROFILE", "standard")),
		TargetWidth:           int(parseIntOrDefault("TARGET_WIDTH", 224)),
		TargetHeight:          int(parseIntOrDefault("TARGET_HEIGHT", 224)),
		CLAHEClipLimit:        parseFloatOrDefault("CLAHE_CLIP_LIMIT", 2.0),
		CLAHETileGrid:         int(parseIntOrDefault("CLAHE_TILE_GRID", 8)),
		CannyLow:              parseFloatOrDefault("CANNY_LOW", 50),
		CannyHigh:             parseFloatOrDefault("CANNY_HIGH", 150),
		TrustThreshold:        parseFloatOrDefault("TRUST_THRESHOLD", 0.60),
		UnknownThreshold:      parseFloatOrDefault("UNKNOWN_THRESHOLD", 0.50),
		HealthMaskedHistogram: parseBoolOrDefault("HEALTH_MASKED_HISTOGRAM", false),

		DiagnosisBackend:      strings.ToLower(getEnvOrDefault("DIAGNOSIS_BACKEND", BackendNone)),
		GeminiAPIKey:          os.Getenv("GEMINI_API_KEY"),
		GeminiModel:           getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
		ClassifierURL:         os.Getenv("CLASSIFIER_URL"),
		ClassifierClassesPath: getEnvOrDefault("CLASSIFIER_CLASSES_PATH", "classes.json"),
		VisionPlantCheck:      parseBoolOrDefault("VISION_PLANT_CHECK", false),

		AzureStorageAccount: os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureStorageKey:     os.Getenv("AZURE_STORAGE_KEY"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and cross-field requirements.
func (c *Config) Validate() error {
	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 || c.AnalysisTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, analysis=%s)",
			c.RequestTimeout, c.ImageFetchTimeout, c.AnalysisTimeout)
	}
	if c.WorkerCount < 0 {
		return fmt.Errorf("WORKER_COUNT must be >= 0 (got %d)", c.WorkerCount)
	}
	if c.PipelineEngine != EngineNative && c.PipelineEngine != EngineOpenCV {
		return fmt.Errorf("unknown PIPELINE_ENGINE: %q", c.PipelineEngine)
	}
	if c.TargetWidth <= 0 || c.TargetHeight <= 0 {
		return fmt.Errorf("target size must be positive (got %dx%d)", c.TargetWidth, c.TargetHeight)
	}
	if c.CLAHEClipLimit < 0 || c.CLAHETileGrid <= 0 {
		return fmt.Errorf("invalid CLAHE settings (clip=%g, grid=%d)", c.CLAHEClipLimit, c.CLAHETileGrid)
	}
	if c.CannyLow < 0 || c.CannyHigh < c.CannyLow {
		return fmt.Errorf("invalid Canny thresholds (low=%g, high=%g)", c.CannyLow, c.CannyHigh)
	}
	if !inUnitRange(c.TrustThreshold) || !inUnitRange(c.UnknownThreshold) {
		return fmt.Errorf("confidence thresholds must be within [0,1] (trust=%g, unknown=%g)",
			c.TrustThreshold, c.UnknownThreshold)
	}

	switch c.DiagnosisBackend {
	case BackendNone:
	case BackendGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when DIAGNOSIS_BACKEND=%s", BackendGemini)
		}
	case BackendLocal:
		if c.ClassifierURL == "" {
			return fmt.Errorf("CLASSIFIER_URL is required when DIAGNOSIS_BACKEND=%s", BackendLocal)
		}
	default:
		return fmt.Errorf("unknown DIAGNOSIS_BACKEND: %q", c.DiagnosisBackend)
	}
	return nil
}

func inUnitRange(v float64) bool {
	return v >= 0 && v <= 1
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}
