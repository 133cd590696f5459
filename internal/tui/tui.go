// Package tui is the terminal front end. It renders engine projections and
// translates key presses into SubmitAction/ResolveChoice calls; all game
// logic lives in the engine.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"riftwalker/internal/engine"
	"riftwalker/internal/history"
)

type sessionState int

const (
	stateThemeSelect sessionState = iota
	stateLoading
	statePlaying
	stateChoice
	stateError
)

type model struct {
	state     sessionState
	engine    *engine.Engine
	themeIDs  []string
	textInput textinput.Model
	viewport  viewport.Model
	err       error
	gameLog   string
	offer     *engine.Offer
	width     int
	height    int
}

var (
	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EEEEEE")).
			Background(lipgloss.Color("#5F5F87")).
			Bold(true).
			PaddingLeft(1)

	gameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	systemStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9E9E5F")).
			Italic(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("#3C3C3C")).
			PaddingLeft(2).
			Foreground(lipgloss.Color("#AAAAAA"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true).
			Underline(true)

	choiceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87D7FF"))
)

// NewModel builds the initial TUI model around an engine.
func NewModel(eng *engine.Engine, themeIDs []string) model {
	ti := textinput.New()
	ti.Placeholder = "Theme number to begin, r<number> to resume..."
	ti.Focus()
	ti.CharLimit = 200
	ti.Width = 50

	return model{
		state:     stateThemeSelect,
		engine:    eng,
		themeIDs:  themeIDs,
		textInput: ti,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

type outcomeMsg struct {
	outcome *engine.Outcome
	err     error
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyEnter:
			return m.handleEnter()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = int(float64(msg.Width) * 0.72)
		m.viewport.Height = msg.Height - 7
		if m.state == statePlaying || m.state == stateChoice {
			m.viewport.SetContent(m.gameLog)
		}

	case outcomeMsg:
		return m.handleOutcome(msg)
	}

	if m.state != stateLoading {
		m.textInput, cmd = m.textInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) handleEnter() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textInput.Value())

	switch m.state {
	case stateThemeSelect:
		resume := false
		if rest, ok := strings.CutPrefix(input, "r"); ok {
			resume = true
			input = rest
		}
		idx, err := strconv.Atoi(input)
		if err != nil || idx < 1 || idx > len(m.themeIDs) {
			return m, nil
		}
		m.textInput.Reset()
		m.state = stateLoading
		return m, m.startGame(m.themeIDs[idx-1], resume)

	case statePlaying, stateChoice:
		if input == "" {
			return m, nil
		}
		m.textInput.Reset()
		switch input {
		case "/quit":
			return m, tea.Quit
		case "/restart":
			m.state = stateThemeSelect
			m.gameLog = ""
			m.offer = nil
			m.textInput.Placeholder = "Theme number to begin, r<number> to resume..."
			return m, nil
		}

		// A bare number while choices are pending picks that choice.
		if m.state == stateChoice && m.offer != nil {
			if idx, err := strconv.Atoi(input); err == nil && idx >= 1 && idx <= len(m.offer.Choices) {
				choice := m.offer.Choices[idx-1]
				m.state = stateLoading
				return m, m.resolveChoice(choice.ID)
			}
		}

		m.appendLog(userStyle.Width(m.logWidth()).Render("> " + input))
		m.state = stateLoading
		return m, m.submitAction(input)
	}
	return m, nil
}

func (m model) handleOutcome(msg outcomeMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if !m.engine.Active() {
			m.err = msg.err
			m.state = stateError
			return m, nil
		}
		// Failures are local to the turn: report and re-enable input.
		m.appendLog(systemStyle.Render("The narrator falters: " + msg.err.Error()))
		m.state = statePlaying
		return m, nil
	}

	out := msg.outcome
	if out.Response != nil {
		m.appendLog(gameStyle.Width(m.logWidth()).Render(out.Response.Narrative))
	}
	if out.Note != "" {
		m.appendLog(systemStyle.Render(out.Note))
	}
	if out.Offer != nil {
		m.offer = out.Offer
		m.appendLog(m.renderOffer(out.Offer))
		m.state = stateChoice
	} else {
		m.offer = nil
		m.state = statePlaying
		if actions := m.engine.Suggested(); len(actions) > 0 {
			m.appendLog(helpStyle.Render("Perhaps: " + strings.Join(actions, " | ")))
		}
	}
	m.textInput.Placeholder = "What do you do?"
	return m, nil
}

func (m *model) appendLog(block string) {
	if m.gameLog != "" {
		m.gameLog += "\n\n"
	}
	m.gameLog += block
	if m.viewport.Width == 0 {
		height := m.height - 7
		if height < 10 {
			height = 10
		}
		m.viewport = viewport.New(m.logWidth(), height)
	}
	m.viewport.SetContent(m.gameLog)
	m.viewport.GotoBottom()
}

func (m model) logWidth() int {
	w := int(float64(m.width) * 0.72)
	if w < 40 {
		w = 40
	}
	return w
}

func (m model) renderOffer(offer *engine.Offer) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(offer.Prompt))
	for i, c := range offer.Choices {
		b.WriteString("\n" + choiceStyle.Render(fmt.Sprintf("  %d. %s", i+1, c.Text)))
	}
	b.WriteString("\n" + helpStyle.Render("Enter a number to choose."))
	return b.String()
}

func (m model) View() string {
	var s string

	switch m.state {
	case stateThemeSelect:
		var list strings.Builder
		list.WriteString(titleStyle.Render("RIFTWALKER") + "\n\nChoose your world:\n\n")
		for i, id := range m.themeIDs {
			list.WriteString(fmt.Sprintf("  %d. %s\n", i+1, id))
		}
		s = fmt.Sprintf("%s\n%s", list.String(), m.textInput.View())

	case stateLoading:
		s = "\n  The story is being written... please wait.\n"

	case statePlaying, stateChoice:
		mainView := lipgloss.JoinHorizontal(lipgloss.Top,
			m.viewport.View(),
			m.renderPanel(),
		)
		help := helpStyle.Render("Commands: /restart, /quit, or just type what you want to do.")
		s = lipgloss.JoinVertical(lipgloss.Left,
			mainView,
			"\n"+m.textInput.View(),
			"\n"+help,
		)

	case stateError:
		s = fmt.Sprintf("\n  Error: %v\n\nPress Esc to quit.", m.err)
	}

	return "\n" + s + "\n"
}

func (m model) renderPanel() string {
	if !m.engine.Active() {
		return ""
	}
	t := m.engine.Theme()
	dash := m.engine.Dashboard()
	prog := m.engine.Progress()
	run := m.engine.Run()

	var b strings.Builder
	b.WriteString(titleStyle.Render(t.Name) + "\n\n")
	b.WriteString(fmt.Sprintf("Level %d — %d XP\n", prog.Level, prog.CurrentXP))
	b.WriteString(fmt.Sprintf("Next level at %d XP\n\n", prog.XPForNext()))

	b.WriteString(titleStyle.Render("VITALS") + "\n")
	b.WriteString(fmt.Sprintf("Integrity: %d/%d\n", run.CurrentIntegrity, prog.MaxIntegrity(t)))
	b.WriteString(fmt.Sprintf("Willpower: %d/%d\n", run.CurrentWillpower, prog.MaxWillpower(t)))
	b.WriteString(fmt.Sprintf("Strain: %d\n\n", run.StrainLevel))

	b.WriteString(titleStyle.Render("DASHBOARD") + "\n")
	for _, f := range t.Dashboard {
		if v, ok := dash[f.ID]; ok {
			b.WriteString(fmt.Sprintf("%s: %v\n", f.Label, v))
		}
	}

	if panels := m.engine.PanelState(); len(panels) > 0 {
		b.WriteString("\n" + titleStyle.Render("SCENE") + "\n")
		for _, in := range t.Indicators {
			if visible, ok := panels[in.ID]; ok && visible {
				b.WriteString(in.Label + "\n")
			}
		}
	}

	panelWidth := int(float64(m.width) * 0.24)
	return panelStyle.Width(panelWidth).Height(m.viewport.Height).Render(b.String())
}

func (m model) startGame(themeID string, resume bool) tea.Cmd {
	return func() tea.Msg {
		var (
			out *engine.Outcome
			err error
		)
		if resume {
			out, err = m.engine.Resume(context.Background(), themeID)
			if err == nil && out.Response == nil && out.Offer == nil {
				out = &engine.Outcome{Note: "Resumed. " + lastNarrative(m.engine)}
			}
		} else {
			out, err = m.engine.NewGame(context.Background(), themeID, "")
		}
		return outcomeMsg{out, err}
	}
}

func (m model) submitAction(text string) tea.Cmd {
	return func() tea.Msg {
		out, err := m.engine.SubmitAction(context.Background(), text)
		return outcomeMsg{out, err}
	}
}

func (m model) resolveChoice(id string) tea.Cmd {
	return func() tea.Msg {
		out, err := m.engine.ResolveChoice(context.Background(), id)
		return outcomeMsg{out, err}
	}
}

// lastNarrative digs the most recent model narrative out of the ledger so a
// resumed session has something on screen.
func lastNarrative(eng *engine.Engine) string {
	turns := eng.Turns()
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == history.RoleModel {
			if resp, err := engine.ParseModelResponse(turns[i].Text); err == nil {
				return resp.Narrative
			}
		}
	}
	return ""
}

// Run starts the TUI.
func Run(eng *engine.Engine, themeIDs []string) error {
	p := tea.NewProgram(NewModel(eng, themeIDs), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
