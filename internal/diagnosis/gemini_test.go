package diagnosis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGeminiVerdict(t *testing.T) {
	text := "```json\n{\"plantName\":\"Tomato\",\"disease\":\"Early Blight\",\"confidence\":\"92%\"," +
		"\"treatment\":\"Remove affected leaves\",\"health_score\":40,\"isUnknown\":false}\n```"

	v, err := parseGeminiVerdict(text)
	require.NoError(t, err)
	assert.Equal(t, "Tomato", v.PlantName)
	assert.Equal(t, "Early Blight", v.Disease)
	require.NotNil(t, v.HealthScore)
	assert.Equal(t, 40.0, *v.HealthScore)

	conf, ok := v.confidence()
	assert.True(t, ok)
	assert.InDelta(t, 0.92, conf, 1e-9)
}

func TestParseGeminiVerdict_Invalid(t *testing.T) {
	_, err := parseGeminiVerdict("I think this is a tomato leaf.")
	assert.Error(t, err)
}

func TestGeminiVerdictConfidence(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  float64
		ok    bool
	}{
		{"percent string", "95%", 0.95, true},
		{"spaced percent", " 87.5 % ", 0.875, true},
		{"bare percent number", 60.0, 0.60, true},
		{"fraction", 0.4, 0.4, true},
		{"text", "high", 0, false},
		{"missing", nil, 0, false},
		{"out of range", "250%", 0, false},
		{"one percent", "1%", 0.01, true},
		{"fractional percent", "0.5%", 0.005, true},
		{"bare string number", "95", 0.95, true},
		{"bare one", 1.0, 1.0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &geminiVerdict{Confidence: tt.value}
			got, ok := v.confidence()
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestContainsPlant(t *testing.T) {
	assert.True(t, containsPlant([]Label{{"Dog", 0.99}, {"Plant pathology", 0.8}}))
	assert.True(t, containsPlant([]Label{{"Leaf", 0.5}}))
	assert.False(t, containsPlant([]Label{{"Leaf", 0.3}}))
	assert.False(t, containsPlant([]Label{{"Car", 0.9}, {"Wheel", 0.8}}))
	assert.False(t, containsPlant(nil))
}
