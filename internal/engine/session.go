package engine

import (
	"strings"

	"riftwalker/internal/history"
	"riftwalker/internal/theme"
)

// Session is the state of one active theme-play. It exclusively owns the
// history ledger and the derived indicator/dashboard snapshots.
type Session struct {
	ThemeID           string
	SaveID            string
	NarrativeLanguage string

	Ledger      *history.Ledger
	PromptType  string
	InitialLoad bool

	LastIndicators   map[string]any
	LastDashboard    map[string]any
	SuggestedActions []string
}

func newSession(t *theme.Theme) *Session {
	return &Session{
		ThemeID:           t.ID,
		NarrativeLanguage: t.NarrativeLanguage,
		Ledger:            history.New(),
		PromptType:        "default",
		InitialLoad:       true,
		LastIndicators:    map[string]any{},
		LastDashboard:     map[string]any{},
	}
}

// indicatorTrue interprets a model-reported flag value. Indicators arrive as
// booleans or strings depending on the model's mood.
func indicatorTrue(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return strings.EqualFold(strings.TrimSpace(val), "true")
	default:
		return false
	}
}

// resolvePromptType recomputes the template selector from the current
// indicator snapshot. Among all true indicators whose prompt template exists
// and is valid, the one with the highest priority wins; with none qualifying
// the selector is "default". The selector never regresses below a
// still-true higher-priority indicator because it is recomputed from the full
// snapshot every time.
func resolvePromptType(t *theme.Theme, indicators map[string]any, store TemplateStore) string {
	winner := "default"
	best := 0
	found := false
	for _, in := range t.Indicators {
		if !indicatorTrue(indicators[in.ID]) {
			continue
		}
		key := in.PromptKey
		if key == "" {
			key = in.ID
		}
		if !store.HasTemplate(t.ID, key) {
			continue
		}
		if !found || in.Priority > best {
			winner, best, found = key, in.Priority, true
		}
	}
	return winner
}

// panelState derives the "should be visible" signal for every panel-gated
// indicator. The engine only exposes the booleans; animation belongs to the
// UI layer.
func panelState(t *theme.Theme, indicators map[string]any) map[string]bool {
	state := make(map[string]bool)
	for _, in := range t.Indicators {
		if in.Panel {
			state[in.ID] = indicatorTrue(indicators[in.ID])
		}
	}
	return state
}
