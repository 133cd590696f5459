// Package persist is the save/load boundary: SQLite-backed storage for
// leveling records, full game-state saves and unlocked world shards.
package persist

import (
	"riftwalker/internal/history"
)

// Boon payload kinds accepted by ApplyBoon.
const (
	BoonMaxAttributeIncrease = "MAX_ATTRIBUTE_INCREASE"
	BoonAttributeEnhancement = "ATTRIBUTE_ENHANCEMENT"
	BoonNewTrait             = "NEW_TRAIT"
)

// BoonPayload is the typed request applied when a level-up choice resolves.
type BoonPayload struct {
	Kind     string `json:"kind"`
	Field    string `json:"field,omitempty"` // "integrity"/"willpower" or "aptitude"/"resilience"
	Value    int    `json:"value,omitempty"`
	TraitKey string `json:"trait_key,omitempty"`
}

// SaveState is the full persisted snapshot of one session.
type SaveState struct {
	SaveID            string          `json:"save_id"`
	PlayerID          string          `json:"player_id"`
	ThemeID           string          `json:"theme_id"`
	ModelName         string          `json:"model_name"`
	PromptType        string          `json:"prompt_type"`
	NarrativeLanguage string          `json:"narrative_language"`
	Turns             []history.Turn  `json:"turns"`
	LastDashboard     map[string]any  `json:"last_dashboard"`
	LastIndicators    map[string]any  `json:"last_indicators"`
	SuggestedActions  []string        `json:"suggested_actions"`
	PanelState        map[string]bool `json:"panel_state"`
}

// Shard is a persisted lore fragment unlocked during play.
type Shard struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}
