package diagnosis

import (
	"context"
	"fmt"
	"strings"

	gvision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
)

// plantLabelScore is the minimum label score counted as evidence of a plant.
const plantLabelScore = 0.5

// plantTerms are matched as substrings of lower-cased label descriptions.
var plantTerms = []string{"plant", "leaf", "flora", "vegetation", "botany", "herb", "shrub", "foliage", "tree", "crop"}

var _ PlantChecker = (*VisionPlantChecker)(nil)

// VisionPlantChecker uses Cloud Vision label detection to reject photos
// that do not show a plant before any classifier runs.
type VisionPlantChecker struct {
	client *gvision.ImageAnnotatorClient
}

// NewVisionPlantChecker creates a checker using application default credentials
func NewVisionPlantChecker(ctx context.Context) (*VisionPlantChecker, error) {
	client, err := gvision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	return &VisionPlantChecker{client: client}, nil
}

// Close releases the Vision client.
func (v *VisionPlantChecker) Close() error {
	return v.client.Close()
}

// IsPlant reports whether any confident label names a plant.
func (v *VisionPlantChecker) IsPlant(ctx context.Context, image []byte) (bool, error) {
	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: image},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_LABEL_DETECTION, MaxResults: 15},
				},
			},
		},
	}

	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return false, fmt.Errorf("vision API request failed: %w", err)
	}
	if len(resp.Responses) == 0 {
		return false, nil
	}
	if resp.Responses[0].Error != nil {
		return false, fmt.Errorf("vision API error: %s", resp.Responses[0].Error.Message)
	}

	labels := make([]Label, 0, len(resp.Responses[0].LabelAnnotations))
	for _, l := range resp.Responses[0].LabelAnnotations {
		labels = append(labels, Label{Description: l.Description, Score: l.Score})
	}
	return containsPlant(labels), nil
}

// Label is one image label with its score in [0,1].
type Label struct {
	Description string
	Score       float32
}

func containsPlant(labels []Label) bool {
	for _, l := range labels {
		if l.Score < plantLabelScore {
			continue
		}
		desc := strings.ToLower(l.Description)
		for _, term := range plantTerms {
			if strings.Contains(desc, term) {
				return true
			}
		}
	}
	return false
}
