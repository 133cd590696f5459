// Package theme supplies immutable per-theme configuration: attribute
// baselines, dashboard and indicator schema, trait and equipment tables, and
// prompt instruction fragments. Themes are loaded once from embedded YAML and
// never mutated afterwards.
package theme

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed themes/*.yaml
var themeFS embed.FS

// Attributes holds the per-theme attribute baselines. Effective maxima are
// derived by adding the player's progression bonuses on top.
type Attributes struct {
	BaseIntegrity int `yaml:"base_integrity"`
	BaseWillpower int `yaml:"base_willpower"`
	Aptitude      int `yaml:"aptitude"`
	Resilience    int `yaml:"resilience"`
}

// DashboardField describes one field the model must report each turn.
type DashboardField struct {
	ID        string `yaml:"id"`
	Label     string `yaml:"label"`
	Kind      string `yaml:"kind"` // "number", "string" or "list"
	Default   string `yaml:"default"`
	Translate bool   `yaml:"translate"`
}

// Indicator describes a model-reported state flag. Indicators with a higher
// Priority win prompt-type resolution; Panel marks indicators that gate a UI
// panel.
type Indicator struct {
	ID        string `yaml:"id"`
	Label     string `yaml:"label"`
	Priority  int    `yaml:"priority"`
	Panel     bool   `yaml:"panel"`
	PromptKey string `yaml:"prompt_key"`
}

// Trait is a permanent character perk selectable at creation or on level-up.
type Trait struct {
	Key         string `yaml:"key"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Equipment is a starting-gear entry surfaced to the model in prompts.
type Equipment struct {
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
	Slot string `yaml:"slot"`
}

// Theme is one complete theme definition.
type Theme struct {
	ID                string            `yaml:"id"`
	Name              string            `yaml:"name"`
	Tagline           string            `yaml:"tagline"`
	OpeningAction     string            `yaml:"opening_action"`
	NarrativeLanguage string            `yaml:"narrative_language"`
	Attributes        Attributes        `yaml:"attributes"`
	Dashboard         []DashboardField  `yaml:"dashboard"`
	Indicators        []Indicator       `yaml:"indicators"`
	Traits            []Trait           `yaml:"traits"`
	Equipment         []Equipment       `yaml:"equipment"`
	Instructions      map[string]string `yaml:"instructions"`
}

// Registry holds all loaded themes keyed by id.
type Registry struct {
	themes map[string]*Theme
}

// Load parses every embedded theme file and validates its schema.
func Load() (*Registry, error) {
	reg := &Registry{themes: make(map[string]*Theme)}
	err := fs.WalkDir(themeFS, "themes", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := themeFS.ReadFile(path)
		if err != nil {
			return err
		}
		var t Theme
		if err := yaml.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("parse theme %s: %w", path, err)
		}
		if err := validate(&t); err != nil {
			return fmt.Errorf("theme %s: %w", path, err)
		}
		reg.themes[t.ID] = &t
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(reg.themes) == 0 {
		return nil, fmt.Errorf("no themes embedded")
	}
	return reg, nil
}

func validate(t *Theme) error {
	if t.ID == "" {
		return fmt.Errorf("missing id")
	}
	if t.Attributes.BaseIntegrity <= 0 || t.Attributes.BaseWillpower <= 0 {
		return fmt.Errorf("attribute baselines must be positive")
	}
	seen := make(map[string]bool)
	for _, f := range t.Dashboard {
		if f.ID == "" {
			return fmt.Errorf("dashboard field with empty id")
		}
		if seen[f.ID] {
			return fmt.Errorf("duplicate dashboard field %q", f.ID)
		}
		seen[f.ID] = true
	}
	keys := make(map[string]bool)
	for _, in := range t.Indicators {
		if in.ID == "" {
			return fmt.Errorf("indicator with empty id")
		}
		if keys[in.ID] {
			return fmt.Errorf("duplicate indicator %q", in.ID)
		}
		keys[in.ID] = true
	}
	traits := make(map[string]bool)
	for _, tr := range t.Traits {
		if tr.Key == "" {
			return fmt.Errorf("trait with empty key")
		}
		if traits[tr.Key] {
			return fmt.Errorf("duplicate trait %q", tr.Key)
		}
		traits[tr.Key] = true
	}
	return nil
}

// NewRegistry builds a registry from in-memory theme definitions, validating
// each one. Embedded themes should use Load instead.
func NewRegistry(themes ...*Theme) (*Registry, error) {
	reg := &Registry{themes: make(map[string]*Theme, len(themes))}
	for _, t := range themes {
		if err := validate(t); err != nil {
			return nil, fmt.Errorf("theme %q: %w", t.ID, err)
		}
		reg.themes[t.ID] = t
	}
	return reg, nil
}

// Get returns the theme with the given id.
func (r *Registry) Get(id string) (*Theme, error) {
	t, ok := r.themes[id]
	if !ok {
		return nil, fmt.Errorf("unknown theme %q", id)
	}
	return t, nil
}

// IDs returns all theme ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.themes))
	for id := range r.themes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Indicator looks up an indicator by id, validating against the schema.
func (t *Theme) Indicator(id string) (Indicator, bool) {
	for _, in := range t.Indicators {
		if in.ID == id {
			return in, true
		}
	}
	return Indicator{}, false
}

// Trait looks up a trait by key.
func (t *Theme) Trait(key string) (Trait, bool) {
	for _, tr := range t.Traits {
		if tr.Key == key {
			return tr, true
		}
	}
	return Trait{}, false
}

// Instruction returns the free-text instruction fragment for a prompt key.
// Missing entries are represented by an error-prefixed sentinel string rather
// than an error value, matching how absent template text is reported.
func (t *Theme) Instruction(key string) string {
	if s, ok := t.Instructions[key]; ok && strings.TrimSpace(s) != "" {
		return s
	}
	if s, ok := t.Instructions["default"]; ok && strings.TrimSpace(s) != "" {
		return s
	}
	return "ERROR: no instructions for prompt key " + key
}

// IndicatorsByPriority returns the indicator schema sorted by descending
// priority, ties broken by id for stable resolution.
func (t *Theme) IndicatorsByPriority() []Indicator {
	out := make([]Indicator, len(t.Indicators))
	copy(out, t.Indicators)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}
