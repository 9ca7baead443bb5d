package diagnosis

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/arbovm/levenshtein"
	"github.com/bytedance/sonic"

	"github.com/plantcare-ai/leaf-inspector-go/pkg/models"
)

// maxKeyDistance is the largest edit distance accepted when no catalog key
// is contained in the class name.
const maxKeyDistance = 3

//go:embed treatments.json
var defaultCatalogJSON []byte

type catalogEntry struct {
	Class string `json:"class"`
	models.Treatment
	key string
}

// Catalog maps classifier class names to structured treatments.
type Catalog struct {
	entries  []catalogEntry
	fallback models.Treatment
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalogJSON)
	if err != nil {
		panic(fmt.Sprintf("embedded treatment catalog: %v", err))
	}
	return c
}

// ParseCatalog reads a catalog document with a "treatments" list and a
// "fallback" record.
func ParseCatalog(data []byte) (*Catalog, error) {
	var doc struct {
		Treatments []catalogEntry `json:"treatments"`
		Fallback   catalogEntry   `json:"fallback"`
	}
	if err := sonic.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse treatment catalog: %w", err)
	}

	c := &Catalog{fallback: doc.Fallback.Treatment}
	for _, e := range doc.Treatments {
		e.key = normalizeKey(e.Class)
		if e.key == "" {
			return nil, fmt.Errorf("treatment entry with empty class")
		}
		c.entries = append(c.entries, e)
	}
	return c, nil
}

// Len returns the number of specific treatments.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Lookup returns the treatment for className. Keys are compared after
// normalisation: first as substrings of the class name in catalog order,
// then by nearest edit distance. When nothing matches the generic fallback
// is returned with matched=false.
func (c *Catalog) Lookup(className string) (t models.Treatment, matched bool) {
	name := normalizeKey(className)
	if name == "" {
		return c.fallback, false
	}

	for _, e := range c.entries {
		if strings.Contains(name, e.key) {
			return e.Treatment, true
		}
	}

	best, bestDist := -1, maxKeyDistance+1
	for i, e := range c.entries {
		if d := levenshtein.Distance(name, e.key); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best >= 0 {
		return c.entries[best].Treatment, true
	}
	return c.fallback, false
}

// normalizeKey lower-cases s, turns spaces into underscores and collapses
// underscore runs, so "Tomato___Early blight" and "tomato_early_blight"
// compare equal.
func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	var b strings.Builder
	prev := byte(0)
	for i := 0; i < len(s); i++ {
		if s[i] == '_' && prev == '_' {
			continue
		}
		b.WriteByte(s[i])
		prev = s[i]
	}
	return strings.Trim(b.String(), "_")
}
