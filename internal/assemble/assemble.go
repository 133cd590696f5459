// Package assemble builds the system instruction text sent to the model for
// one turn. Given the same inputs the output is deterministic in structure;
// the two helper-sampling points (random flavor lines and start ideas) are
// deliberately unseeded.
package assemble

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"text/template"

	"riftwalker/internal/progress"
	"riftwalker/internal/prompts"
	"riftwalker/internal/theme"
)

// ErrPromptConfig marks a terminal configuration failure: neither the
// requested template nor the default fallback could be rendered. The string
// returned alongside it is an ErrorPrompt, shaped like a model reply so the
// UI can surface it in-narrative.
var ErrPromptConfig = errors.New("prompt configuration invalid")

// TemplateSource resolves raw template text and helper line pools.
// *prompts.Store is the production implementation.
type TemplateSource interface {
	Template(themeID, key string) string
	HelperLines(themeID, key string) []string
}

// Shard is an unlocked lore fragment injected into the initial prompt.
type Shard struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Input carries everything the assembler needs for one turn.
type Input struct {
	Theme        *theme.Theme
	Store        TemplateSource
	PromptType   string
	InitialLoad  bool
	PlayerName   string
	Lore         string
	Progress     *progress.UserThemeProgress
	Run          *progress.RunStats
	Shards       []Shard
	RecentWindow int
}

var helperToken = regexp.MustCompile(`\{\{HELPER_RANDOM_LINE:([A-Za-z0-9_-]+)\}\}`)

// templateData is the named-placeholder set available to every template.
type templateData struct {
	ThemeName         string
	Tagline           string
	PlayerName        string
	NarrativeLanguage string
	Instructions      string
	DashboardContract string
	IndicatorContract string
	Level             int
	XP                int
	XPForNext         int
	TraitsJSON        string
	ConditionsJSON    string
	EquipmentJSON     string
	WorldShardsJSON   string
	Lore              string
	RecentWindow      int
	StartIdeaOne      string
	StartIdeaTwo      string
	StartIdeaThree    string
}

// Assemble produces the system instruction for the current turn. On
// configuration failure it returns an ErrorPrompt string together with
// ErrPromptConfig; the caller must not send anything to the model in that
// case.
func Assemble(in Input) (string, error) {
	key := in.PromptType
	if in.InitialLoad {
		key = "initial"
	}
	if key == "" {
		key = "default"
	}

	data := buildData(in, key)

	if out, err := render(in, key, data); err == nil {
		return out, nil
	}
	if key != "default" {
		if out, err := render(in, "default", data); err == nil {
			return out, nil
		}
	}
	return errorPrompt(in.Theme.ID, key), ErrPromptConfig
}

func render(in Input, key string, data templateData) (string, error) {
	raw := in.Store.Template(in.Theme.ID, key)
	if prompts.IsError(raw) {
		return "", fmt.Errorf("template %q: %s", key, raw)
	}
	raw = substituteHelpers(raw, in)
	tmpl, err := template.New(key).Option("missingkey=error").Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse template %q: %w", key, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template %q: %w", key, err)
	}
	return buf.String(), nil
}

func buildData(in Input, key string) templateData {
	t := in.Theme
	data := templateData{
		ThemeName:         t.Name,
		Tagline:           t.Tagline,
		PlayerName:        in.PlayerName,
		NarrativeLanguage: t.NarrativeLanguage,
		Instructions:      substituteHelpers(t.Instruction(key), in),
		DashboardContract: dashboardContract(t),
		IndicatorContract: indicatorContract(t),
		Level:             in.Progress.Level,
		XP:                in.Progress.CurrentXP,
		XPForNext:         in.Progress.XPForNext(),
		TraitsJSON:        traitsJSON(t, in.Progress),
		ConditionsJSON:    mustJSON(nonNil(in.Run.Conditions)),
		EquipmentJSON:     mustJSON(t.Equipment),
		WorldShardsJSON:   "[]",
		Lore:              in.Lore,
		RecentWindow:      in.RecentWindow,
	}
	if in.InitialLoad {
		data.WorldShardsJSON = mustJSON(nonNilShards(in.Shards))
		ideas := startIdeas(in)
		data.StartIdeaOne, data.StartIdeaTwo, data.StartIdeaThree = ideas[0], ideas[1], ideas[2]
	}
	return data
}

// substituteHelpers replaces {{HELPER_RANDOM_LINE:key}} tokens with one
// uniformly sampled line from the named helper asset. Unresolved helpers
// degrade to a visible placeholder instead of failing the whole prompt.
func substituteHelpers(text string, in Input) string {
	return helperToken.ReplaceAllStringFunc(text, func(match string) string {
		key := helperToken.FindStringSubmatch(match)[1]
		lines := in.Store.HelperLines(in.Theme.ID, key)
		if len(lines) == 0 {
			return "[missing helper text: " + key + "]"
		}
		return lines[rand.IntN(len(lines))]
	})
}

// startIdeas samples exactly 3 distinct lines without replacement from the
// start_ideas helper. Missing slots receive a generic fallback unique per
// ordinal.
func startIdeas(in Input) [3]string {
	lines := in.Store.HelperLines(in.Theme.ID, "start_ideas")
	perm := rand.Perm(len(lines))
	var out [3]string
	for i := 0; i < 3; i++ {
		if i < len(perm) {
			out[i] = lines[perm[i]]
		} else {
			out[i] = fmt.Sprintf("Strike out on your own and see what the world of %s makes of you (path %d).", in.Theme.Name, i+1)
		}
	}
	return out
}

// dashboardContract documents every dashboard field the model must report:
// id, translation requirement and default value, one line per field.
func dashboardContract(t *theme.Theme) string {
	var b strings.Builder
	for _, f := range t.Dashboard {
		translate := "no"
		if f.Translate {
			translate = "yes, into the narrative language"
		}
		fmt.Fprintf(&b, "   - %q (%s): %s; translate: %s; default: %q\n", f.ID, f.Kind, f.Label, translate, f.Default)
	}
	return strings.TrimRight(b.String(), "\n")
}

// indicatorContract documents every indicator flag the model must report.
func indicatorContract(t *theme.Theme) string {
	var b strings.Builder
	for _, in := range t.Indicators {
		fmt.Fprintf(&b, "   - %q: true while the scene is %s, otherwise false\n", in.ID, in.Label)
	}
	return strings.TrimRight(b.String(), "\n")
}

func traitsJSON(t *theme.Theme, p *progress.UserThemeProgress) string {
	acquired := make([]theme.Trait, 0, len(p.AcquiredTraits))
	for _, key := range p.AcquiredTraits {
		if tr, ok := t.Trait(key); ok {
			acquired = append(acquired, tr)
		}
	}
	return mustJSON(acquired)
}

// errorPrompt is a terminal, user-visible failure shaped like a model reply:
// a narrative error, empty updates and no suggested actions.
func errorPrompt(themeID, key string) string {
	payload := map[string]any{
		"narrative":         fmt.Sprintf("The story falters: no usable prompt template could be found for theme %q (key %q). This run cannot continue until the theme configuration is repaired.", themeID, key),
		"dashboard_updates": map[string]any{},
		"suggested_actions": []string{},
	}
	return mustJSON(payload)
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilShards(s []Shard) []Shard {
	if s == nil {
		return []Shard{}
	}
	return s
}
