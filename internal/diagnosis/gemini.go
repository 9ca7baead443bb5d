package diagnosis

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"google.golang.org/genai"
)

// geminiPrompt asks for a single JSON object describing the leaf.
const geminiPrompt = `Analyze this image of a plant leaf. Return a JSON object with the following fields:
1. plantName: the name of the plant.
2. disease: the name of the disease, or "Healthy" if no disease is found.
3. confidence: a percentage string (e.g. "95%") indicating confidence in the diagnosis.
4. treatment: a brief treatment recommendation if diseased, or a care tip if healthy.
5. health_score: a number from 0 to 100 representing the plant's health (100 is perfectly healthy).
6. isUnknown: boolean, true ONLY if the image is clearly NOT a plant.

Output only the raw JSON object.`

// geminiMaxSide bounds the uploaded image.
const geminiMaxSide = 1024

var _ Generator = (*GeminiClient)(nil)

// GeminiClient sends a prompt plus one image to a Gemini model and returns
// the text of the response.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a client for the Gemini Developer API
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

// GenerateJSON requests a JSON response for prompt and image.
func (g *GeminiClient) GenerateJSON(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(image, mimeType),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.2),
	})
	if err != nil {
		return "", fmt.Errorf("gemini API request failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned no text")
	}
	return text, nil
}

// geminiVerdict is the structured answer requested by geminiPrompt.
type geminiVerdict struct {
	PlantName   string      `json:"plantName"`
	Disease     string      `json:"disease"`
	Confidence  interface{} `json:"confidence"`
	Treatment   string      `json:"treatment"`
	HealthScore *float64    `json:"health_score"`
	IsUnknown   bool        `json:"isUnknown"`
}

// parseGeminiVerdict strips an optional ```json fence and decodes the object.
func parseGeminiVerdict(text string) (*geminiVerdict, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var v geminiVerdict
	if err := sonic.UnmarshalString(text, &v); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}
	return &v, nil
}

// healthScore returns the model's health estimate clamped to [0,100], or nil.
func (v *geminiVerdict) healthScore() *float64 {
	if v.HealthScore == nil {
		return nil
	}
	score := math.Min(100, math.Max(0, *v.HealthScore))
	return &score
}

// confidence returns the verdict's confidence as a fraction in [0,1].
// "95%", "95", 95 and 0.95 all read as 0.95. A percent sign always means
// percent, so "1%" is 0.01; bare numbers above 1 are taken as percent.
func (v *geminiVerdict) confidence() (float64, bool) {
	var f float64
	percent := false
	switch c := v.Confidence.(type) {
	case float64:
		f = c
	case string:
		s := strings.TrimSpace(c)
		if trimmed, ok := strings.CutSuffix(s, "%"); ok {
			percent = true
			s = strings.TrimSpace(trimmed)
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if percent || f > 1 {
		f /= 100
	}
	if f < 0 || f > 1 {
		return 0, false
	}
	return f, true
}
