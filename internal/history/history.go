// Package history holds the append-only ledger of turns for one run.
package history

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleModel     Role = "model"
	RoleSystemLog Role = "system_log"
)

// Turn is a single ledger entry. Model turns carry the verbatim re-serialized
// JSON reply; system_log turns carry tags for the UI layer.
type Turn struct {
	Role Role     `json:"role"`
	Text string   `json:"text"`
	Tags []string `json:"tags,omitempty"`
}

// Ledger is an append-only ordered sequence of turns plus a delta tail of
// turns appended since the last explicit replacement. Turns are never edited
// or reordered. The delta is cleared only by SetTurns or Clear, giving
// at-least-once save semantics between successful saves.
type Ledger struct {
	turns []Turn
	delta []Turn
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// Append adds a turn to the ledger and the unsaved delta.
func (l *Ledger) Append(t Turn) {
	l.turns = append(l.turns, t)
	l.delta = append(l.delta, t)
}

// AppendUser appends a player turn.
func (l *Ledger) AppendUser(text string) {
	l.Append(Turn{Role: RoleUser, Text: text})
}

// AppendModel appends a model turn.
func (l *Ledger) AppendModel(text string) {
	l.Append(Turn{Role: RoleModel, Text: text})
}

// AppendSystem appends a system_log turn.
func (l *Ledger) AppendSystem(text string, tags ...string) {
	l.Append(Turn{Role: RoleSystemLog, Text: text, Tags: tags})
}

// SetTurns replaces the entire ledger (load boundary) and resets the delta.
func (l *Ledger) SetTurns(turns []Turn) {
	l.turns = append([]Turn(nil), turns...)
	l.delta = nil
}

// Clear empties the ledger and the delta.
func (l *Ledger) Clear() {
	l.turns = nil
	l.delta = nil
}

// Turns returns a copy of all turns in order.
func (l *Ledger) Turns() []Turn {
	return append([]Turn(nil), l.turns...)
}

// Delta returns a copy of the turns appended since the last SetTurns/Clear.
func (l *Ledger) Delta() []Turn {
	return append([]Turn(nil), l.delta...)
}

// Len returns the number of turns in the ledger.
func (l *Ledger) Len() int {
	return len(l.turns)
}

// Recent returns up to n of the most recent turns filtered to user and model
// roles, preserving order.
func (l *Ledger) Recent(n int) []Turn {
	var filtered []Turn
	for _, t := range l.turns {
		if t.Role == RoleUser || t.Role == RoleModel {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) > n {
		filtered = filtered[len(filtered)-n:]
	}
	return filtered
}
