// Package progress holds the per-user-per-theme leveling record and the
// per-run ephemeral stats derived from it.
package progress

import (
	"strconv"

	"riftwalker/internal/theme"
)

// MaxLevel caps character advancement. XP keeps accumulating past it but no
// further Boon offers are made.
const MaxLevel = 10

// UserThemeProgress is the persistent leveling record for one (player, theme)
// pair. Level is monotonically non-decreasing within a run; XP is cumulative
// and never reset by a level-up.
type UserThemeProgress struct {
	Level           int      `json:"level"`
	CurrentXP       int      `json:"current_xp"`
	IntegrityBonus  int      `json:"integrity_bonus"`
	WillpowerBonus  int      `json:"willpower_bonus"`
	AptitudeBonus   int      `json:"aptitude_bonus"`
	ResilienceBonus int      `json:"resilience_bonus"`
	AcquiredTraits  []string `json:"acquired_traits"`
	BoonPending     bool     `json:"boon_pending"`
}

// NewProgress returns a fresh level-1 record for a new character.
func NewProgress() *UserThemeProgress {
	return &UserThemeProgress{Level: 1}
}

// IsFresh reports whether this record belongs to a brand new character that
// has not yet passed the initial trait gate.
func (p *UserThemeProgress) IsFresh() bool {
	return p.Level == 1 && p.CurrentXP == 0 && len(p.AcquiredTraits) == 0
}

// HasTrait reports whether the trait key is already acquired.
func (p *UserThemeProgress) HasTrait(key string) bool {
	for _, k := range p.AcquiredTraits {
		if k == key {
			return true
		}
	}
	return false
}

// XPForLevel returns the cumulative XP required to reach the given level.
// Level 1 costs nothing; each step costs 100 more than the last, so level 2
// needs 100 total, level 3 needs 300, level 4 needs 600.
func XPForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	n := level - 1
	return 100 * n * (n + 1) / 2
}

// XPForNext returns the cumulative XP threshold for the next level, or the
// current XP when already at MaxLevel.
func (p *UserThemeProgress) XPForNext() int {
	if p.Level >= MaxLevel {
		return p.CurrentXP
	}
	return XPForLevel(p.Level + 1)
}

// ReadyToLevel reports whether accumulated XP meets the next threshold and
// the level cap has not been reached.
func (p *UserThemeProgress) ReadyToLevel() bool {
	return p.Level < MaxLevel && p.CurrentXP >= XPForLevel(p.Level+1)
}

// MaxIntegrity returns the effective integrity maximum for a theme.
func (p *UserThemeProgress) MaxIntegrity(t *theme.Theme) int {
	return t.Attributes.BaseIntegrity + p.IntegrityBonus
}

// MaxWillpower returns the effective willpower maximum for a theme.
func (p *UserThemeProgress) MaxWillpower(t *theme.Theme) int {
	return t.Attributes.BaseWillpower + p.WillpowerBonus
}

// Aptitude returns the effective aptitude score for a theme.
func (p *UserThemeProgress) Aptitude(t *theme.Theme) int {
	return t.Attributes.Aptitude + p.AptitudeBonus
}

// Resilience returns the effective resilience score for a theme.
func (p *UserThemeProgress) Resilience(t *theme.Theme) int {
	return t.Attributes.Resilience + p.ResilienceBonus
}

// RunStats are the ephemeral per-run vitals. They are reset whenever a fresh
// run starts and reconstructed from dashboard snapshots on resume; they are
// never persisted on their own.
type RunStats struct {
	CurrentIntegrity int
	CurrentWillpower int
	StrainLevel      int
	Conditions       []string
}

// NewRunStats returns run stats at the effective maxima for the progress
// record and theme.
func NewRunStats(t *theme.Theme, p *UserThemeProgress) *RunStats {
	return &RunStats{
		CurrentIntegrity: p.MaxIntegrity(t),
		CurrentWillpower: p.MaxWillpower(t),
		StrainLevel:      1,
	}
}

// Clamp forces vitals into their valid ranges for the theme and record.
func (r *RunStats) Clamp(t *theme.Theme, p *UserThemeProgress) {
	r.CurrentIntegrity = clamp(r.CurrentIntegrity, 0, p.MaxIntegrity(t))
	r.CurrentWillpower = clamp(r.CurrentWillpower, 0, p.MaxWillpower(t))
	if r.StrainLevel < 1 {
		r.StrainLevel = 1
	}
}

// ApplyDashboard reconstructs vitals from a dashboard snapshot of absolute
// values. Unknown or malformed values leave the current vitals untouched.
func (r *RunStats) ApplyDashboard(updates map[string]any, t *theme.Theme, p *UserThemeProgress) {
	if v, ok := asInt(updates["integrity"]); ok {
		r.CurrentIntegrity = v
	}
	if v, ok := asInt(updates["willpower"]); ok {
		r.CurrentWillpower = v
	}
	if v, ok := asInt(updates["strain_level"]); ok {
		r.StrainLevel = v
	}
	if list, ok := updates["conditions"].([]any); ok {
		conds := make([]string, 0, len(list))
		for _, c := range list {
			if s, ok := c.(string); ok {
				conds = append(conds, s)
			}
		}
		r.Conditions = conds
	}
	r.Clamp(t, p)
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case string:
		if parsed, err := strconv.Atoi(n); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
