// Package engine is the narrative turn engine: it decides which prompt to
// send for the current turn, validates and applies the model's structured
// reply, and drives the level-up and trait-selection sub-flows that gate
// normal turn processing.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"riftwalker/internal/assemble"
	"riftwalker/internal/history"
	"riftwalker/internal/model"
	"riftwalker/internal/persist"
	"riftwalker/internal/progress"
	"riftwalker/internal/theme"
)

// RecentWindow is how many user/model turns of history are sent per request.
const RecentWindow = 20

// TemplateStore resolves templates and helper assets for the assembler and
// for prompt-type validation.
type TemplateStore interface {
	assemble.TemplateSource
	HasTemplate(themeID, key string) bool
}

// Store is the persistence collaborator consumed by the engine.
type Store interface {
	FetchProgress(ctx context.Context, playerID, themeID string) (*progress.UserThemeProgress, error)
	SaveProgress(ctx context.Context, playerID, themeID string, p *progress.UserThemeProgress) error
	ApplyBoon(ctx context.Context, playerID, themeID string, payload persist.BoonPayload) (*progress.UserThemeProgress, error)
	SaveGameState(ctx context.Context, state persist.SaveState) error
	LoadGameState(ctx context.Context, playerID, themeID string) (*persist.SaveState, error)
	UnlockShard(ctx context.Context, playerID, themeID string, shard persist.Shard) error
	ActiveShards(ctx context.Context, playerID, themeID string) ([]persist.Shard, error)
}

// Options configures a new engine.
type Options struct {
	Themes    *theme.Registry
	Templates TemplateStore
	Store     Store
	Generator model.Generator
	Logger    *zap.Logger
	PlayerID  string
	ModelName string
}

// Engine owns one active session at a time. Entry points are not safe for
// concurrent use; the caller must await completion before the next call,
// which is the UI layer's input-disable discipline.
type Engine struct {
	themes    *theme.Registry
	templates TemplateStore
	store     Store
	gen       model.Generator
	log       *zap.Logger
	playerID  string
	modelName string

	theme    *theme.Theme
	session  *Session
	progress *progress.UserThemeProgress
	run      *progress.RunStats

	boon           boonContext
	gateOffers     []theme.Trait
	deferredAction string
}

// New validates the options and returns an engine with no active session.
func New(opts Options) (*Engine, error) {
	if opts.Themes == nil || opts.Templates == nil || opts.Store == nil || opts.Generator == nil {
		return nil, fmt.Errorf("themes, templates, store and generator are all required")
	}
	if opts.PlayerID == "" {
		return nil, fmt.Errorf("player id is required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		themes:    opts.Themes,
		templates: opts.Templates,
		store:     opts.Store,
		gen:       opts.Generator,
		log:       log,
		playerID:  opts.PlayerID,
		modelName: opts.ModelName,
	}, nil
}

// NewGame starts a fresh run of the theme. An empty opening uses the theme's
// default opening action. The returned outcome is either the opening
// narrative, the initial trait gate, or a resumed pending Boon offer.
func (e *Engine) NewGame(ctx context.Context, themeID, opening string) (*Outcome, error) {
	t, err := e.themes.Get(themeID)
	if err != nil {
		return nil, err
	}

	p, err := e.store.FetchProgress(ctx, e.playerID, themeID)
	if errors.Is(err, persist.ErrNotFound) {
		p = progress.NewProgress()
	} else if err != nil {
		return nil, fmt.Errorf("fetch progress: %w", err)
	}

	e.theme = t
	e.session = newSession(t)
	e.progress = p
	e.run = progress.NewRunStats(t, p)
	e.boon = boonContext{}
	e.gateOffers = nil
	if opening == "" {
		opening = t.OpeningAction
	}
	e.deferredAction = opening

	// A crash between XP persistence and Boon presentation must not eat the
	// level-up: the pending flag is persisted, so re-offer before anything else.
	if p.BoonPending {
		e.log.Info("resuming pending boon offer", zap.String("theme", themeID))
		return e.enterPrimaryBoon("An unclaimed Boon awaits from your last level-up."), nil
	}

	if p.IsFresh() && len(t.Traits) > 0 {
		e.gateOffers = sampleTraits(t.Traits, nil, 3)
		return &Outcome{Offer: e.gateOffer()}, nil
	}

	return e.startDeferred(ctx)
}

// Resume restores a saved session for the theme. The prompt type and run
// vitals are reconstructed from the persisted snapshots.
func (e *Engine) Resume(ctx context.Context, themeID string) (*Outcome, error) {
	t, err := e.themes.Get(themeID)
	if err != nil {
		return nil, err
	}
	state, err := e.store.LoadGameState(ctx, e.playerID, themeID)
	if err != nil {
		return nil, fmt.Errorf("load game state: %w", err)
	}
	p, err := e.store.FetchProgress(ctx, e.playerID, themeID)
	if errors.Is(err, persist.ErrNotFound) {
		p = progress.NewProgress()
	} else if err != nil {
		return nil, fmt.Errorf("fetch progress: %w", err)
	}

	e.theme = t
	e.progress = p
	e.boon = boonContext{}
	e.gateOffers = nil
	e.deferredAction = ""

	s := newSession(t)
	s.SaveID = state.SaveID
	s.Ledger.SetTurns(state.Turns)
	s.InitialLoad = s.Ledger.Len() == 0
	if state.NarrativeLanguage != "" {
		s.NarrativeLanguage = state.NarrativeLanguage
	}
	if state.LastIndicators != nil {
		s.LastIndicators = state.LastIndicators
	}
	if state.LastDashboard != nil {
		s.LastDashboard = state.LastDashboard
	}
	s.SuggestedActions = state.SuggestedActions
	s.PromptType = resolvePromptType(t, s.LastIndicators, e.templates)
	e.session = s

	e.run = progress.NewRunStats(t, p)
	e.run.ApplyDashboard(s.LastDashboard, t, p)

	if p.BoonPending {
		return e.enterPrimaryBoon("An unclaimed Boon awaits from your last level-up."), nil
	}
	return &Outcome{Note: "resumed"}, nil
}

// SubmitAction is the single entry point for player input. While a trait gate
// or Boon offer is pending, only text exactly matching an offered choice is
// accepted; anything else re-presents the offer without consuming the action.
func (e *Engine) SubmitAction(ctx context.Context, text string) (*Outcome, error) {
	if e.session == nil {
		return nil, fmt.Errorf("no active session")
	}
	text = strings.TrimSpace(text)

	if offer := e.pendingOffer(); offer != nil {
		for _, c := range offer.Choices {
			if c.Text == text {
				return e.ResolveChoice(ctx, c.ID)
			}
		}
		return &Outcome{Offer: offer, Note: "Choose one of the offered options to continue."}, nil
	}

	if text == "" {
		return nil, fmt.Errorf("action text is empty")
	}

	// Append-before-send: the player turn is recorded even if the call fails.
	e.session.Ledger.AppendUser(text)
	resp, err := e.processTurn(ctx, text, false)
	if err != nil {
		return nil, err
	}
	return e.afterTurn(ctx, resp), nil
}

// startDeferred submits the deferred opening action as the game-starting turn.
func (e *Engine) startDeferred(ctx context.Context) (*Outcome, error) {
	action := e.deferredAction
	e.deferredAction = ""
	e.session.Ledger.AppendUser(action)
	resp, err := e.processTurn(ctx, action, true)
	if err != nil {
		return nil, err
	}
	return e.afterTurn(ctx, resp), nil
}

// processTurn runs one request/response cycle with the model. On any failure
// the snapshots are untouched and no model turn is appended; the player turn
// already in the ledger stays.
func (e *Engine) processTurn(ctx context.Context, actionText string, isGameStarting bool) (*ModelResponse, error) {
	system, err := e.assemblePrompt(ctx, isGameStarting)
	if err != nil {
		e.session.Ledger.AppendSystem("The narrator has gone silent: "+err.Error(), "error", "config")
		return nil, err
	}

	req := model.Request{System: system, Latest: actionText}
	if !isGameStarting {
		recent := e.session.Ledger.Recent(RecentWindow)
		// The last entry is the player turn appended by the caller.
		for _, turn := range recent[:len(recent)-1] {
			req.History = append(req.History, model.Message{Role: string(turn.Role), Text: turn.Text})
		}
	}

	raw, err := e.gen.Generate(ctx, req)
	if err != nil {
		e.log.Warn("model call failed", zap.Error(err))
		return nil, fmt.Errorf("model call: %w", err)
	}

	resp, err := ParseModelResponse(raw)
	if err != nil {
		e.log.Warn("model reply rejected", zap.Error(err))
		return nil, err
	}

	s := e.session
	s.Ledger.AppendModel(resp.Raw)
	s.LastDashboard = resp.DashboardUpdates
	s.LastIndicators = resp.Indicators
	s.SuggestedActions = resp.SuggestedActions
	s.InitialLoad = false
	s.PromptType = resolvePromptType(e.theme, s.LastIndicators, e.templates)
	e.run.ApplyDashboard(resp.DashboardUpdates, e.theme, e.progress)

	if resp.UnlockedShardID != "" {
		e.unlockShard(ctx, resp)
	}
	return resp, nil
}

func (e *Engine) assemblePrompt(ctx context.Context, isGameStarting bool) (string, error) {
	var shards []assemble.Shard
	if isGameStarting {
		stored, err := e.store.ActiveShards(ctx, e.playerID, e.theme.ID)
		if err != nil {
			e.log.Warn("loading shards failed", zap.Error(err))
		}
		for _, sh := range stored {
			shards = append(shards, assemble.Shard{ID: sh.ID, Title: sh.Title, Body: sh.Body})
		}
	}
	return assemble.Assemble(assemble.Input{
		Theme:        e.theme,
		Store:        e.templates,
		PromptType:   e.session.PromptType,
		InitialLoad:  isGameStarting,
		PlayerName:   e.playerID,
		Lore:         e.loreSummary(),
		Progress:     e.progress,
		Run:          e.run,
		Shards:       shards,
		RecentWindow: RecentWindow,
	})
}

// loreSummary keeps the opening scene alive once it scrolls out of the recent
// window sent to the model.
func (e *Engine) loreSummary() string {
	var first string
	count := 0
	for _, t := range e.session.Ledger.Turns() {
		if t.Role != history.RoleUser && t.Role != history.RoleModel {
			continue
		}
		count++
		if first == "" && t.Role == history.RoleModel {
			if resp, err := ParseModelResponse(t.Text); err == nil {
				first = resp.Narrative
			}
		}
	}
	if count <= RecentWindow {
		return ""
	}
	return first
}

// afterTurn applies XP from a successful turn and persists the session. A
// threshold crossing suspends normal processing with a primary Boon offer.
func (e *Engine) afterTurn(ctx context.Context, resp *ModelResponse) *Outcome {
	out := &Outcome{Response: resp}

	if resp.XPAwarded > 0 {
		e.progress.CurrentXP += resp.XPAwarded
		if e.progress.ReadyToLevel() {
			e.progress.BoonPending = true
		}
		if err := e.store.SaveProgress(ctx, e.playerID, e.theme.ID, e.progress); err != nil {
			e.log.Warn("saving progress failed", zap.Error(err))
			e.session.Ledger.AppendSystem("Your progress could not be saved: "+err.Error(), "error", "persistence")
		}
		if e.progress.BoonPending {
			e.session.Ledger.AppendSystem(
				fmt.Sprintf("You have reached the threshold of level %d. Choose your Boon.", e.progress.Level+1),
				"level_up")
			boonOut := e.enterPrimaryBoon("")
			out.Offer = boonOut.Offer
		}
	}

	e.saveGame(ctx)
	return out
}

func (e *Engine) unlockShard(ctx context.Context, resp *ModelResponse) {
	body := resp.Narrative
	if len(body) > 280 {
		body = body[:280]
	}
	shard := persist.Shard{
		ID:    resp.UnlockedShardID,
		Title: strings.NewReplacer("_", " ", "-", " ").Replace(resp.UnlockedShardID),
		Body:  body,
	}
	if err := e.store.UnlockShard(ctx, e.playerID, e.theme.ID, shard); err != nil {
		e.log.Warn("unlocking shard failed", zap.String("shard", shard.ID), zap.Error(err))
		return
	}
	e.session.Ledger.AppendSystem("World shard unlocked: "+shard.Title, "shard")
}

// saveGame persists the full session snapshot. Failures are reported in the
// ledger but never fail the turn; the unsaved delta keeps accumulating.
func (e *Engine) saveGame(ctx context.Context) {
	s := e.session
	state := persist.SaveState{
		SaveID:            s.SaveID,
		PlayerID:          e.playerID,
		ThemeID:           s.ThemeID,
		ModelName:         e.modelName,
		PromptType:        s.PromptType,
		NarrativeLanguage: s.NarrativeLanguage,
		Turns:             s.Ledger.Turns(),
		LastDashboard:     s.LastDashboard,
		LastIndicators:    s.LastIndicators,
		SuggestedActions:  s.SuggestedActions,
		PanelState:        panelState(e.theme, s.LastIndicators),
	}
	if err := e.store.SaveGameState(ctx, state); err != nil {
		e.log.Warn("saving game state failed", zap.Error(err))
		s.Ledger.AppendSystem("The game could not be saved: "+err.Error(), "error", "persistence")
	}
}
