package engine

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"go.uber.org/zap"

	"riftwalker/internal/persist"
	"riftwalker/internal/progress"
	"riftwalker/internal/theme"
)

// Boon magnitudes.
const (
	boonFlatBonus     = 10 // flat max integrity/willpower increase
	boonAttributeStep = 1  // aptitude/resilience enhancement
)

// Choice ids for the Boon and trait sub-flows.
const (
	choiceBoonIntegrity  = "boon:max_integrity"
	choiceBoonWillpower  = "boon:max_willpower"
	choiceBoonAttribute  = "boon:attribute"
	choiceBoonTrait      = "boon:trait"
	choiceAttrAptitude   = "attr:aptitude"
	choiceAttrResilience = "attr:resilience"
	traitChoicePrefix    = "trait:"
)

type boonStep int

const (
	boonNone boonStep = iota
	boonPrimary
	boonSecondaryAttribute
	boonSecondaryTrait
)

// boonContext is the transient state of the level-up sub-flow. It exists only
// while a Boon is being resolved and is discarded once one is applied.
type boonContext struct {
	step         boonStep
	savedActions []string
	traitOffers  []theme.Trait
}

// pendingOffer returns the offer currently gating input, or nil.
func (e *Engine) pendingOffer() *Offer {
	if len(e.gateOffers) > 0 {
		return e.gateOffer()
	}
	switch e.boon.step {
	case boonPrimary:
		return e.primaryBoonOffer()
	case boonSecondaryAttribute:
		return e.attributeBoonOffer()
	case boonSecondaryTrait:
		return e.traitBoonOffer()
	}
	return nil
}

// enterPrimaryBoon suspends normal processing with the fixed 4-choice primary
// offer, snapshotting the suggested actions so they can be restored after
// resolution.
func (e *Engine) enterPrimaryBoon(note string) *Outcome {
	if e.boon.step == boonNone {
		e.boon.savedActions = append([]string(nil), e.session.SuggestedActions...)
	}
	e.boon.step = boonPrimary
	e.boon.traitOffers = nil
	return &Outcome{Offer: e.primaryBoonOffer(), Note: note}
}

func (e *Engine) primaryBoonOffer() *Offer {
	return &Offer{
		Kind:   OfferBoonPrimary,
		Prompt: fmt.Sprintf("Level %d awaits. Choose your Boon.", e.progress.Level+1),
		Choices: []Choice{
			{ID: choiceBoonIntegrity, Text: fmt.Sprintf("Fortify the body (+%d max integrity)", boonFlatBonus)},
			{ID: choiceBoonWillpower, Text: fmt.Sprintf("Steel the mind (+%d max willpower)", boonFlatBonus)},
			{ID: choiceBoonAttribute, Text: "Enhance an attribute"},
			{ID: choiceBoonTrait, Text: "Learn a new trait"},
		},
	}
}

func (e *Engine) attributeBoonOffer() *Offer {
	return &Offer{
		Kind:   OfferBoonAttribute,
		Prompt: "Which attribute do you enhance?",
		Choices: []Choice{
			{ID: choiceAttrAptitude, Text: fmt.Sprintf("Aptitude +%d", boonAttributeStep)},
			{ID: choiceAttrResilience, Text: fmt.Sprintf("Resilience +%d", boonAttributeStep)},
		},
	}
}

func (e *Engine) traitBoonOffer() *Offer {
	offer := &Offer{
		Kind:   OfferBoonTrait,
		Prompt: "Which trait calls to you?",
	}
	for _, tr := range e.boon.traitOffers {
		offer.Choices = append(offer.Choices, Choice{
			ID:   traitChoicePrefix + tr.Key,
			Text: fmt.Sprintf("%s — %s", tr.Name, tr.Description),
		})
	}
	return offer
}

func (e *Engine) gateOffer() *Offer {
	offer := &Offer{
		Kind:   OfferTraitGate,
		Prompt: "Before your story begins, choose the trait that shaped you.",
	}
	for _, tr := range e.gateOffers {
		offer.Choices = append(offer.Choices, Choice{
			ID:   traitChoicePrefix + tr.Key,
			Text: fmt.Sprintf("%s — %s", tr.Name, tr.Description),
		})
	}
	return offer
}

// ResolveChoice resolves one choice of the pending offer by id. An id that
// does not belong to the current step re-presents the offer unchanged and
// does not consume the action.
func (e *Engine) ResolveChoice(ctx context.Context, choiceID string) (*Outcome, error) {
	if e.session == nil {
		return nil, fmt.Errorf("no active session")
	}

	if len(e.gateOffers) > 0 {
		return e.resolveGateChoice(ctx, choiceID)
	}

	switch e.boon.step {
	case boonPrimary:
		return e.resolvePrimaryChoice(ctx, choiceID)
	case boonSecondaryAttribute:
		return e.resolveAttributeChoice(ctx, choiceID)
	case boonSecondaryTrait:
		return e.resolveTraitChoice(ctx, choiceID)
	}
	return nil, fmt.Errorf("no pending choice to resolve")
}

func (e *Engine) resolveGateChoice(ctx context.Context, choiceID string) (*Outcome, error) {
	var chosen *theme.Trait
	if key, ok := strings.CutPrefix(choiceID, traitChoicePrefix); ok {
		for i := range e.gateOffers {
			if e.gateOffers[i].Key == key {
				chosen = &e.gateOffers[i]
				break
			}
		}
	}
	if chosen == nil {
		return &Outcome{Offer: e.gateOffer(), Note: "Choose one of the offered traits to continue."}, nil
	}

	e.progress.AcquiredTraits = []string{chosen.Key}
	if err := e.store.SaveProgress(ctx, e.playerID, e.theme.ID, e.progress); err != nil {
		e.log.Warn("saving trait choice failed", zap.Error(err))
		e.progress.AcquiredTraits = nil
		return &Outcome{Offer: e.gateOffer(), Note: "Your choice could not be saved: " + err.Error()}, nil
	}
	e.gateOffers = nil
	e.session.Ledger.AppendSystem("Trait acquired: "+chosen.Name, "trait")
	return e.startDeferred(ctx)
}

func (e *Engine) resolvePrimaryChoice(ctx context.Context, choiceID string) (*Outcome, error) {
	switch choiceID {
	case choiceBoonIntegrity:
		return e.applyBoon(ctx, persist.BoonPayload{
			Kind: persist.BoonMaxAttributeIncrease, Field: "integrity", Value: boonFlatBonus,
		}, "fortified body")
	case choiceBoonWillpower:
		return e.applyBoon(ctx, persist.BoonPayload{
			Kind: persist.BoonMaxAttributeIncrease, Field: "willpower", Value: boonFlatBonus,
		}, "steeled mind")
	case choiceBoonAttribute:
		e.boon.step = boonSecondaryAttribute
		return &Outcome{Offer: e.attributeBoonOffer()}, nil
	case choiceBoonTrait:
		eligible := eligibleTraits(e.theme.Traits, e.progress)
		if len(eligible) == 0 {
			return &Outcome{
				Offer: e.primaryBoonOffer(),
				Note:  "No new traits remain to learn; choose another Boon.",
			}, nil
		}
		e.boon.traitOffers = sampleTraits(eligible, nil, 3)
		e.boon.step = boonSecondaryTrait
		return &Outcome{Offer: e.traitBoonOffer()}, nil
	}
	return &Outcome{Offer: e.primaryBoonOffer(), Note: "Choose one of the offered Boons."}, nil
}

func (e *Engine) resolveAttributeChoice(ctx context.Context, choiceID string) (*Outcome, error) {
	switch choiceID {
	case choiceAttrAptitude:
		return e.applyBoon(ctx, persist.BoonPayload{
			Kind: persist.BoonAttributeEnhancement, Field: "aptitude", Value: boonAttributeStep,
		}, "sharpened aptitude")
	case choiceAttrResilience:
		return e.applyBoon(ctx, persist.BoonPayload{
			Kind: persist.BoonAttributeEnhancement, Field: "resilience", Value: boonAttributeStep,
		}, "hardened resilience")
	}
	return &Outcome{Offer: e.attributeBoonOffer(), Note: "Choose one of the offered attributes."}, nil
}

func (e *Engine) resolveTraitChoice(ctx context.Context, choiceID string) (*Outcome, error) {
	if key, ok := strings.CutPrefix(choiceID, traitChoicePrefix); ok {
		for _, tr := range e.boon.traitOffers {
			if tr.Key == key {
				return e.applyBoon(ctx, persist.BoonPayload{
					Kind: persist.BoonNewTrait, TraitKey: tr.Key,
				}, "trait: "+tr.Name)
			}
		}
	}
	return &Outcome{Offer: e.traitBoonOffer(), Note: "Choose one of the offered traits."}, nil
}

// applyBoon is the terminal action of every branch. The persistence
// collaborator's response replaces the leveling record wholesale; on failure
// nothing mutates and the primary offer is re-presented.
func (e *Engine) applyBoon(ctx context.Context, payload persist.BoonPayload, description string) (*Outcome, error) {
	applied, err := e.store.ApplyBoon(ctx, e.playerID, e.theme.ID, payload)
	if err != nil {
		e.log.Warn("applying boon failed", zap.Error(err))
		e.boon.step = boonPrimary
		e.boon.traitOffers = nil
		return &Outcome{
			Offer: e.primaryBoonOffer(),
			Note:  "The Boon could not be applied: " + err.Error(),
		}, nil
	}

	e.progress = applied
	e.run = progress.NewRunStats(e.theme, e.progress)
	e.session.SuggestedActions = append([]string(nil), e.boon.savedActions...)
	e.boon = boonContext{}
	e.session.Ledger.AppendSystem(
		fmt.Sprintf("Level %d reached. Boon chosen: %s.", e.progress.Level, description), "boon")

	// Banked XP can cross the next threshold immediately.
	if e.progress.ReadyToLevel() {
		e.progress.BoonPending = true
		if err := e.store.SaveProgress(ctx, e.playerID, e.theme.ID, e.progress); err != nil {
			e.log.Warn("saving progress failed", zap.Error(err))
		}
		out := e.enterPrimaryBoon("Your banked experience carries you further still.")
		e.saveGame(ctx)
		return out, nil
	}

	e.saveGame(ctx)

	// A Boon re-offered at session start holds the opening action back until
	// the whole flow resolves.
	if e.deferredAction != "" {
		out, err := e.startDeferred(ctx)
		if err != nil {
			return nil, err
		}
		if out.Note == "" {
			out.Note = "Boon applied: " + description
		}
		return out, nil
	}
	return &Outcome{Note: "Boon applied: " + description}, nil
}

func eligibleTraits(all []theme.Trait, p *progress.UserThemeProgress) []theme.Trait {
	var out []theme.Trait
	for _, tr := range all {
		if !p.HasTrait(tr.Key) {
			out = append(out, tr)
		}
	}
	return out
}

// sampleTraits picks up to n traits uniformly without replacement, skipping
// excluded keys.
func sampleTraits(pool []theme.Trait, exclude []string, n int) []theme.Trait {
	excluded := make(map[string]bool, len(exclude))
	for _, k := range exclude {
		excluded[k] = true
	}
	var eligible []theme.Trait
	for _, tr := range pool {
		if !excluded[tr.Key] {
			eligible = append(eligible, tr)
		}
	}
	perm := rand.Perm(len(eligible))
	if n > len(perm) {
		n = len(perm)
	}
	out := make([]theme.Trait, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, eligible[perm[i]])
	}
	return out
}
