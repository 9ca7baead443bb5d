package diagnosis

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/sirupsen/logrus"

	"github.com/plantcare-ai/leaf-inspector-go/internal/analyzer"
	"github.com/plantcare-ai/leaf-inspector-go/internal/logger"
)

var _ Classifier = (*LocalClassifier)(nil)

// maxErrorDetail caps how much of a failed reply ends up in the error.
const maxErrorDetail = 200

// LocalClassifier calls a TensorFlow-Serving style REST model. It must be
// loaded explicitly before use; until then Ready reports false.
//
// modelURL is the model resource, e.g. http://localhost:8501/v1/models/plant.
// Predictions are posted to modelURL + ":predict".
type LocalClassifier struct {
	modelURL    string
	classesPath string
	httpClient  *http.Client

	mu      sync.RWMutex
	classes map[int]string
	ready   bool
}

// NewLocalClassifier creates an unloaded classifier
func NewLocalClassifier(modelURL, classesPath string, timeout time.Duration) *LocalClassifier {
	return &LocalClassifier{
		modelURL:    modelURL,
		classesPath: classesPath,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// Load reads the index->class map and probes the model endpoint.
func (c *LocalClassifier) Load(ctx context.Context) error {
	raw, err := os.ReadFile(c.classesPath)
	if err != nil {
		return fmt.Errorf("failed to read class names: %w", err)
	}
	classes, err := parseClasses(raw)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.modelURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create probe request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("model server unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model server probe returned HTTP %d", resp.StatusCode)
	}

	c.mu.Lock()
	c.classes = classes
	c.ready = true
	c.mu.Unlock()

	logger.WithFields(logrus.Fields{
		"model_url": c.modelURL,
		"classes":   len(classes),
	}).Info("Local classifier ready")
	return nil
}

// parseClasses reads a {"0": "Pepper__bell___Bacterial_spot", ...} document.
func parseClasses(raw []byte) (map[int]string, error) {
	var byKey map[string]string
	if err := sonic.Unmarshal(raw, &byKey); err != nil {
		return nil, fmt.Errorf("failed to parse class names: %w", err)
	}
	if len(byKey) == 0 {
		return nil, fmt.Errorf("class names file is empty")
	}

	classes := make(map[int]string, len(byKey))
	for k, name := range byKey {
		idx, err := strconv.Atoi(k)
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("invalid class index %q", k)
		}
		classes[idx] = name
	}
	return classes, nil
}

// Ready reports whether Load succeeded.
func (c *LocalClassifier) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// ClassName maps a prediction index to its class name.
func (c *LocalClassifier) ClassName(idx int) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.classes[idx]
	return name, ok
}

type predictRequest struct {
	Instances [][][][3]float32 `json:"instances"`
}

type predictResponse struct {
	Predictions [][]float64 `json:"predictions"`
	Error       string      `json:"error,omitempty"`
}

// Predict returns the class probability vector for one tensor.
func (c *LocalClassifier) Predict(ctx context.Context, t *analyzer.Tensor) ([]float64, error) {
	if !c.Ready() {
		return nil, ErrNotReady
	}

	body, err := sonic.Marshal(predictRequest{Instances: [][][][3]float32{tensorRows(t)}})
	if err != nil {
		return nil, fmt.Errorf("failed to encode tensor: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.modelURL+":predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("predict request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read predict response: %w", err)
	}

	var out predictResponse
	if resp.StatusCode != http.StatusOK {
		detail := strings.TrimSpace(string(raw))
		if err := sonic.Unmarshal(raw, &out); err == nil && out.Error != "" {
			detail = out.Error
		}
		if len(detail) > maxErrorDetail {
			detail = detail[:maxErrorDetail]
		}
		return nil, fmt.Errorf("predict returned HTTP %d: %s", resp.StatusCode, detail)
	}
	if err := sonic.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to parse predict response: %w", err)
	}
	if len(out.Predictions) != 1 || len(out.Predictions[0]) == 0 {
		return nil, fmt.Errorf("expected one prediction vector, got %d", len(out.Predictions))
	}
	return out.Predictions[0], nil
}

// tensorRows reshapes the flat tensor to height x width x 3.
func tensorRows(t *analyzer.Tensor) [][][3]float32 {
	rows := make([][][3]float32, t.Height)
	for y := range rows {
		rows[y] = make([][3]float32, t.Width)
		for x := range rows[y] {
			i := (y*t.Width + x) * 3
			rows[y][x] = [3]float32{t.Data[i], t.Data[i+1], t.Data[i+2]}
		}
	}
	return rows
}
