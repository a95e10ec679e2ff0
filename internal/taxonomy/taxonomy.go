// Package taxonomy holds the flavor wheel and sensory-expression catalogs
// and the selection rules shared by both.
package taxonomy

import (
	"embed"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var dataFS embed.FS

var ErrUnknownDescriptor = errors.New("unknown descriptor")

// Taxonomy is a three-level catalog: category > group > descriptor.
// Groups without descriptors can only be selected as a whole.
type Taxonomy struct {
	Name string `yaml:"name" json:"name"`
	// MaxPerLevel1 caps selections under one category; 0 means unlimited.
	MaxPerLevel1 int        `yaml:"max_per_level1" json:"maxPerLevel1"`
	Categories   []Category `yaml:"categories" json:"categories"`

	index map[string]map[string]map[string]struct{}
	// every label Flatten can produce: group names and descriptors
	labels map[string]struct{}
}

type Category struct {
	Name   string  `yaml:"name" json:"name"`
	Groups []Group `yaml:"groups" json:"groups"`
}

type Group struct {
	Name        string   `yaml:"name" json:"name"`
	Descriptors []string `yaml:"descriptors,omitempty" json:"descriptors,omitempty"`
}

func Parse(b []byte) (*Taxonomy, error) {
	var t Taxonomy
	if err := yaml.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("decode taxonomy: %w", err)
	}
	if t.Name == "" {
		return nil, errors.New("taxonomy: missing name")
	}
	if t.MaxPerLevel1 < 0 {
		return nil, fmt.Errorf("taxonomy %s: negative max_per_level1", t.Name)
	}

	t.index = make(map[string]map[string]map[string]struct{}, len(t.Categories))
	t.labels = map[string]struct{}{}
	for _, c := range t.Categories {
		if _, dup := t.index[c.Name]; dup {
			return nil, fmt.Errorf("taxonomy %s: duplicate category %q", t.Name, c.Name)
		}
		groups := make(map[string]map[string]struct{}, len(c.Groups))
		for _, g := range c.Groups {
			if _, dup := groups[g.Name]; dup {
				return nil, fmt.Errorf("taxonomy %s: duplicate group %q in %q", t.Name, g.Name, c.Name)
			}
			ds := make(map[string]struct{}, len(g.Descriptors))
			for _, d := range g.Descriptors {
				ds[d] = struct{}{}
				t.labels[d] = struct{}{}
			}
			t.labels[g.Name] = struct{}{}
			groups[g.Name] = ds
		}
		t.index[c.Name] = groups
	}
	return &t, nil
}

// Size counts every selectable entry: descriptors, plus groups that have none.
func (t *Taxonomy) Size() int {
	n := 0
	for _, c := range t.Categories {
		for _, g := range c.Groups {
			if len(g.Descriptors) == 0 {
				n++
				continue
			}
			n += len(g.Descriptors)
		}
	}
	return n
}

// CheckLabels rejects flattened labels that name neither a group nor a
// descriptor of this taxonomy.
func (t *Taxonomy) CheckLabels(labels []string) error {
	for _, l := range labels {
		if _, ok := t.labels[l]; !ok {
			return fmt.Errorf("%w: %s %q", ErrUnknownDescriptor, t.Name, l)
		}
	}
	return nil
}

func (t *Taxonomy) hasGroup(level1, level2 string) bool {
	_, ok := t.index[level1][level2]
	return ok
}

func (t *Taxonomy) hasDescriptor(level1, level2, level3 string) bool {
	_, ok := t.index[level1][level2][level3]
	return ok
}

var (
	flavorsOnce = sync.OnceValue(func() *Taxonomy { return mustLoad("data/flavor_wheel.yaml") })
	sensoryOnce = sync.OnceValue(func() *Taxonomy { return mustLoad("data/sensory.yaml") })
)

// Flavors is the SCA flavor wheel.
func Flavors() *Taxonomy { return flavorsOnce() }

// Sensory is the Korean sensory-expression set.
func Sensory() *Taxonomy { return sensoryOnce() }

// ByName resolves "flavor" or "sensory".
func ByName(name string) (*Taxonomy, bool) {
	switch name {
	case "flavor", "flavors":
		return Flavors(), true
	case "sensory":
		return Sensory(), true
	}
	return nil, false
}

func mustLoad(path string) *Taxonomy {
	b, err := dataFS.ReadFile(path)
	if err != nil {
		panic(err)
	}
	t, err := Parse(b)
	if err != nil {
		panic(err)
	}
	return t
}
