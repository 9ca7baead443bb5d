package diagnosis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	assert.Equal(t, 12, c.Len())

	for _, e := range c.entries {
		assert.NotEmpty(t, e.Precautions, e.Class)
		assert.NotEmpty(t, e.OrganicRemedies, e.Class)
		assert.NotEmpty(t, e.InorganicRemedies, e.Class)
	}
	assert.NotEmpty(t, c.fallback.Precautions)
}

func TestCatalogLookup(t *testing.T) {
	c := DefaultCatalog()

	tests := []struct {
		name      string
		className string
		first     string
		matched   bool
	}{
		{"exact class", "Tomato_Early_blight", "Remove and destroy affected leaves immediately", true},
		{"extra underscores", "Tomato___Early_blight", "Remove and destroy affected leaves immediately", true},
		{"spaces and case", "tomato late blight", "Remove and destroy infected plants immediately", true},
		{"potato not tomato", "Potato___Late_blight", "Act immediately - this disease spreads fast!", true},
		{"pepper", "Pepper__bell___Bacterial_spot", "Remove infected plant parts immediately", true},
		{"typo within distance", "Tomato_Leaf_Mould", "Improve greenhouse/field ventilation", true},
		{"unknown", "Rose_Black_spot", "Consult a local agricultural expert", false},
		{"empty", "", "Consult a local agricultural expert", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, matched := c.Lookup(tt.className)
			assert.Equal(t, tt.matched, matched)
			require.NotEmpty(t, got.Precautions)
			assert.Equal(t, tt.first, got.Precautions[0])
		})
	}
}

func TestParseCatalog_Invalid(t *testing.T) {
	_, err := ParseCatalog([]byte("{"))
	assert.Error(t, err)

	_, err = ParseCatalog([]byte(`{"treatments":[{"class":"  "}]}`))
	assert.Error(t, err)
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "tomato_early_blight", normalizeKey(" Tomato___Early blight "))
	assert.Equal(t, "pepper_bell_bacterial_spot", normalizeKey("Pepper__bell___Bacterial_spot"))
	assert.Equal(t, "", normalizeKey("___"))
}
