package achievement

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed data/catalog.yaml
var catalogYAML []byte

// Catalog is the versioned, static list of definitions. It is loaded once.
type Catalog struct {
	Version      int          `json:"version"`
	Achievements []Definition `json:"achievements"`
}

type rawCatalog struct {
	Version      int `yaml:"version"`
	Achievements []struct {
		ID          string   `yaml:"id"`
		Name        string   `yaml:"name"`
		Description string   `yaml:"description"`
		Icon        string   `yaml:"icon"`
		Category    Category `yaml:"category"`
		Rarity      Rarity   `yaml:"rarity"`
		Points      int      `yaml:"points"`
		Requirement struct {
			Type     RequirementType `yaml:"type"`
			Target   float64         `yaml:"target"`
			Criteria struct {
				Field Stat `yaml:"field"`
			} `yaml:"criteria"`
		} `yaml:"requirement"`
	} `yaml:"achievements"`
}

// ParseCatalog decodes a catalog. Structural problems (duplicate ids,
// unknown category) fail the load; requirement problems do not, they
// surface as zero progress at evaluation time.
func ParseCatalog(b []byte) (Catalog, error) {
	var raw rawCatalog
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return Catalog{}, fmt.Errorf("decode achievement catalog: %w", err)
	}

	c := Catalog{Version: raw.Version, Achievements: make([]Definition, 0, len(raw.Achievements))}
	seen := map[string]struct{}{}
	for _, a := range raw.Achievements {
		if a.ID == "" {
			return Catalog{}, errors.New("achievement catalog: entry without id")
		}
		if _, dup := seen[a.ID]; dup {
			return Catalog{}, fmt.Errorf("achievement catalog: duplicate id %q", a.ID)
		}
		seen[a.ID] = struct{}{}
		if !a.Category.Valid() {
			return Catalog{}, fmt.Errorf("achievement %s: unknown category %q", a.ID, a.Category)
		}

		c.Achievements = append(c.Achievements, Definition{
			ID:          a.ID,
			Name:        a.Name,
			Description: a.Description,
			Icon:        a.Icon,
			Category:    a.Category,
			Rarity:      a.Rarity,
			Points:      a.Points,
			Requirement: Requirement{
				Type:   a.Requirement.Type,
				Target: a.Requirement.Target,
				Field:  a.Requirement.Criteria.Field,
			},
		})
	}
	return c, nil
}

var defaultCatalog = sync.OnceValues(func() (Catalog, error) {
	return ParseCatalog(catalogYAML)
})

// Default returns the embedded catalog.
func Default() (Catalog, error) {
	return defaultCatalog()
}

// Find returns the definition with the given id.
func (c Catalog) Find(id string) (Definition, bool) {
	for _, d := range c.Achievements {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}
