package engine

import (
	"maps"

	"riftwalker/internal/history"
	"riftwalker/internal/progress"
	"riftwalker/internal/theme"
)

// The UI layer consumes engine state exclusively through these read-only
// projections; it never mutates session, progress or run stats directly.

// Active reports whether a session is in progress.
func (e *Engine) Active() bool {
	return e.session != nil
}

// Theme returns the active theme configuration.
func (e *Engine) Theme() *theme.Theme {
	return e.theme
}

// PromptType returns the current template selector.
func (e *Engine) PromptType() string {
	if e.session == nil {
		return ""
	}
	return e.session.PromptType
}

// Dashboard returns a copy of the latest model-reported display values.
func (e *Engine) Dashboard() map[string]any {
	if e.session == nil {
		return nil
	}
	return maps.Clone(e.session.LastDashboard)
}

// Indicators returns a copy of the latest model-reported state flags.
func (e *Engine) Indicators() map[string]any {
	if e.session == nil {
		return nil
	}
	return maps.Clone(e.session.LastIndicators)
}

// PanelState returns the visibility signal for every panel-gated indicator.
func (e *Engine) PanelState() map[string]bool {
	if e.session == nil {
		return nil
	}
	return panelState(e.theme, e.session.LastIndicators)
}

// Suggested returns the current suggested actions in order.
func (e *Engine) Suggested() []string {
	if e.session == nil {
		return nil
	}
	return append([]string(nil), e.session.SuggestedActions...)
}

// Turns returns the full ledger in order.
func (e *Engine) Turns() []history.Turn {
	if e.session == nil {
		return nil
	}
	return e.session.Ledger.Turns()
}

// Progress returns a copy of the leveling record.
func (e *Engine) Progress() progress.UserThemeProgress {
	if e.progress == nil {
		return *progress.NewProgress()
	}
	p := *e.progress
	p.AcquiredTraits = append([]string(nil), e.progress.AcquiredTraits...)
	return p
}

// Run returns a copy of the current run vitals.
func (e *Engine) Run() progress.RunStats {
	if e.run == nil {
		return progress.RunStats{}
	}
	r := *e.run
	r.Conditions = append([]string(nil), e.run.Conditions...)
	return r
}

// Pending returns the offer currently gating input, or nil when free-text
// turns are accepted.
func (e *Engine) Pending() *Offer {
	if e.session == nil {
		return nil
	}
	return e.pendingOffer()
}
