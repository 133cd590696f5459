package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"riftwalker/internal/prompts"
	"riftwalker/internal/theme"
)

// stubTemplates serves templates by key alone; test themes do not exercise
// theme-scoped shadowing.
type stubTemplates struct {
	templates map[string]string
	helpers   map[string][]string
}

func (s *stubTemplates) Template(themeID, key string) string {
	if raw, ok := s.templates[key]; ok {
		return raw
	}
	return prompts.ErrorPrefix + " template not found: " + key
}

func (s *stubTemplates) HelperLines(themeID, key string) []string {
	return s.helpers[key]
}

func (s *stubTemplates) HasTemplate(themeID, key string) bool {
	return !prompts.IsError(s.Template(themeID, key))
}

func TestIndicatorTrue(t *testing.T) {
	assert.True(t, indicatorTrue(true))
	assert.True(t, indicatorTrue("true"))
	assert.True(t, indicatorTrue(" TRUE "))
	assert.False(t, indicatorTrue(false))
	assert.False(t, indicatorTrue("false"))
	assert.False(t, indicatorTrue("yes"))
	assert.False(t, indicatorTrue(1))
	assert.False(t, indicatorTrue(nil))
}

func TestResolvePromptTypePriority(t *testing.T) {
	th := &theme.Theme{
		ID: "t",
		Indicators: []theme.Indicator{
			{ID: "a", Priority: 1},
			{ID: "b", Priority: 5},
		},
	}
	store := &stubTemplates{templates: map[string]string{"a": "A", "b": "B", "default": "D"}}

	got := resolvePromptType(th, map[string]any{"a": true, "b": true}, store)
	assert.Equal(t, "b", got, "highest priority among true indicators wins")

	got = resolvePromptType(th, map[string]any{"a": true, "b": false}, store)
	assert.Equal(t, "a", got)

	got = resolvePromptType(th, map[string]any{}, store)
	assert.Equal(t, "default", got)
}

func TestResolvePromptTypeSkipsMissingTemplate(t *testing.T) {
	th := &theme.Theme{
		ID: "t",
		Indicators: []theme.Indicator{
			{ID: "low", Priority: 1},
			{ID: "high", Priority: 10},
		},
	}
	// Only the low-priority indicator has a template; the high one cannot win.
	store := &stubTemplates{templates: map[string]string{"low": "L", "default": "D"}}

	got := resolvePromptType(th, map[string]any{"low": true, "high": true}, store)
	assert.Equal(t, "low", got)

	got = resolvePromptType(th, map[string]any{"high": true}, store)
	assert.Equal(t, "default", got)
}

func TestResolvePromptTypeUsesPromptKey(t *testing.T) {
	th := &theme.Theme{
		ID: "t",
		Indicators: []theme.Indicator{
			{ID: "netdive", Priority: 10, PromptKey: "dive"},
		},
	}
	store := &stubTemplates{templates: map[string]string{"dive": "D"}}

	got := resolvePromptType(th, map[string]any{"netdive": true}, store)
	assert.Equal(t, "dive", got)
}

func TestPanelState(t *testing.T) {
	th := &theme.Theme{
		Indicators: []theme.Indicator{
			{ID: "combat", Panel: true},
			{ID: "veilfall", Panel: true},
			{ID: "parley", Panel: false},
		},
	}
	state := panelState(th, map[string]any{"combat": true, "parley": true})
	assert.Equal(t, map[string]bool{"combat": true, "veilfall": false}, state)
}
