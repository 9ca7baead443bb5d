package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/plantcare-ai/leaf-inspector-go/internal/analyzer"
	"github.com/plantcare-ai/leaf-inspector-go/internal/config"
	apperrors "github.com/plantcare-ai/leaf-inspector-go/internal/errors"
	"github.com/plantcare-ai/leaf-inspector-go/internal/logger"
	"github.com/plantcare-ai/leaf-inspector-go/internal/observer"
	"github.com/plantcare-ai/leaf-inspector-go/internal/service"
	"github.com/plantcare-ai/leaf-inspector-go/pkg/models"
)

// imageField is the multipart form field carrying the leaf photo
const imageField = "image"

// MetricsResponse is served on /metrics
type MetricsResponse struct {
	Events observer.MetricsSnapshot `json:"events"`
	Pool   *analyzer.PoolStats      `json:"pool,omitempty"`
}

// NewHandler builds the HTTP router. metrics and pool may be nil.
func NewHandler(svc service.LeafAnalysisService, metrics *observer.MetricsObserver, pool *analyzer.WorkerPool, cfg *config.Config) http.Handler {
	r := gin.New()

	r.Use(
		gin.Recovery(),
		requestLogger(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	r.GET("/health", healthCheck(svc))
	r.GET("/metrics", metricsHandler(metrics, pool))

	v1 := r.Group("/v1/leaf")
	v1.POST("/analyze", analyzeLeaf(svc, cfg))
	v1.POST("/enhance", renderLeaf(svc.Enhance, cfg))
	v1.POST("/edges", renderLeaf(svc.DetectEdges, cfg))
	v1.POST("/diagnose", diagnoseLeaf(svc, cfg))

	return r
}

func analyzeLeaf(svc service.LeafAnalysisService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		names := c.QueryArray("artifacts")

		var (
			result *models.LeafAnalysisResult
			err    error
		)
		if isMultipart(c) {
			buf, readErr := readImage(c)
			if readErr != nil {
				respondAppError(c, readErr)
				return
			}
			artifacts, parseErr := analyzer.ParseArtifacts(names)
			if parseErr != nil {
				respondAppError(c, apperrors.NewValidationError("invalid artifacts", parseErr))
				return
			}
			result, err = svc.AnalyzeImage(ctx, buf, artifacts)
		} else {
			var req models.AnalysisRequest
			if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
				respondAppError(c, bodyError("invalid request format", bindErr))
				return
			}
			artifacts, parseErr := analyzer.ParseArtifacts(append(names, req.Artifacts...))
			if parseErr != nil {
				respondAppError(c, apperrors.NewValidationError("invalid artifacts", parseErr))
				return
			}

			logger.WithFields(logrus.Fields{
				"url":       req.URL,
				"artifacts": artifacts,
			}).Debug("Analyzing leaf image by URL")
			result, err = svc.AnalyzeURL(ctx, req.URL, artifacts)
		}
		if err != nil {
			respondAppError(c, err)
			return
		}

		logger.WithFields(logrus.Fields{
			"id":                 result.ID,
			"processing_time_ms": int64(result.ProcessingTimeSec * 1000),
			"advisories":         result.Quality.Advisories,
		}).Info("Leaf analysis completed successfully")

		c.JSON(http.StatusOK, result)
	}
}

// renderLeaf serves an image-producing operation as an image/png body.
func renderLeaf(render func(context.Context, []byte) ([]byte, error), cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		buf, err := readImage(c)
		if err != nil {
			respondAppError(c, err)
			return
		}

		out, err := render(ctx, buf)
		if err != nil {
			respondAppError(c, err)
			return
		}
		c.Data(http.StatusOK, "image/png", out)
	}
}

func diagnoseLeaf(svc service.LeafAnalysisService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		buf, err := readImage(c)
		if err != nil {
			respondAppError(c, err)
			return
		}

		d, err := svc.Diagnose(ctx, buf)
		if err != nil {
			respondAppError(c, err)
			return
		}

		logger.WithFields(logrus.Fields{
			"backend":    d.Backend,
			"plant":      d.PlantName,
			"disease":    d.Disease,
			"confidence": d.Confidence,
			"is_unknown": d.IsUnknown,
		}).Info("Diagnosis completed successfully")

		c.JSON(http.StatusOK, d)
	}
}

func healthCheck(svc service.LeafAnalysisService) gin.HandlerFunc {
	return func(c *gin.Context) {
		backend, ready := svc.DiagnosisStatus()
		c.JSON(http.StatusOK, models.HealthCheckResponse{
			Status:           "available",
			DiagnosisBackend: backend,
			DiagnosisReady:   ready,
		})
	}
}

func metricsHandler(metrics *observer.MetricsObserver, pool *analyzer.WorkerPool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var resp MetricsResponse
		if metrics != nil {
			resp.Events = metrics.GetMetrics()
		}
		if pool != nil {
			stats := pool.GetStats()
			resp.Pool = &stats
		}
		c.JSON(http.StatusOK, resp)
	}
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/")
}

// readImage returns the bytes of the uploaded image field.
func readImage(c *gin.Context) ([]byte, error) {
	fh, err := c.FormFile(imageField)
	if err != nil {
		return nil, bodyError("image file is required", err)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, apperrors.NewInternalError("could not open upload", err)
	}
	defer f.Close()

	buf, err := io.ReadAll(f)
	if err != nil {
		return nil, bodyError("could not read upload", err)
	}
	return buf, nil
}

// bodyError maps request-body failures, reporting oversized bodies as 413.
func bodyError(message string, err error) *apperrors.AppError {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		appErr := apperrors.NewValidationError("request body too large", err)
		appErr.StatusCode = http.StatusRequestEntityTooLarge
		return appErr
	}
	return apperrors.NewValidationError(message, err)
}

// Middleware and helper functions
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status_code": c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}).Info("Request handled")
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err.Err)
		}
	}
}

func determineStatusCode(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondAppError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		respondError(c, appErr.StatusCode, appErr.Message, appErr.Cause)
		return
	}
	respondError(c, determineStatusCode(err), "request processing failed", err)
}

func respondError(c *gin.Context, code int, message string, err error) {
	entry := logger.WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	})
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error("Request failed")

	resp := models.ErrorResponse{Error: http.StatusText(code), Message: message}
	if err != nil && code < http.StatusInternalServerError {
		resp.Message = fmt.Sprintf("%s: %v", message, err)
	}
	c.AbortWithStatusJSON(code, resp)
}
