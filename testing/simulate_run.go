package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"riftwalker/internal/config"
	"riftwalker/internal/engine"
	"riftwalker/internal/model"
	"riftwalker/internal/persist"
	"riftwalker/internal/prompts"
	"riftwalker/internal/theme"
)

const maxTurns = 12

// A headless run: a second Gemini model plays the game, picking from the
// suggested actions each turn and choosing Boons when prompted.
func main() {
	ctx := context.Background()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	reg, err := theme.Load()
	if err != nil {
		log.Fatalf("Failed to load themes: %v", err)
	}
	themeID := reg.IDs()[0]

	store, err := persist.Open(":memory:")
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	gen, err := model.NewGemini(ctx, cfg.GeminiAPIKey, cfg.ModelName)
	if err != nil {
		log.Fatalf("Failed to create narrator client: %v", err)
	}
	defer gen.Close()

	eng, err := engine.New(engine.Options{
		Themes:    reg,
		Templates: prompts.NewStore(),
		Store:     store,
		Generator: gen,
		PlayerID:  "simulator",
		ModelName: cfg.ModelName,
	})
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}

	playerClient, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		log.Fatalf("Failed to create player client: %v", err)
	}
	defer playerClient.Close()
	playerModel := playerClient.GenerativeModel(cfg.ModelName)

	fmt.Printf("--- Starting %s ---\n", themeID)
	out, err := eng.NewGame(ctx, themeID, "")
	if err != nil {
		log.Fatalf("Failed to start game: %v", err)
	}
	out = settleOffers(ctx, eng, out)
	printOutcome(out)

	for turn := 1; turn <= maxTurns; turn++ {
		fmt.Printf("--- Turn %d ---\n", turn)

		action := pickAction(ctx, playerModel, eng, out)
		fmt.Printf("Player Action: %s\n", action)

		out, err = eng.SubmitAction(ctx, action)
		if err != nil {
			fmt.Printf("Error processing turn: %v\n", err)
			continue
		}
		out = settleOffers(ctx, eng, out)
		printOutcome(out)

		prog := eng.Progress()
		run := eng.Run()
		fmt.Printf("Stats: Level=%d XP=%d Integrity=%d Willpower=%d Strain=%d\n\n",
			prog.Level, prog.CurrentXP, run.CurrentIntegrity, run.CurrentWillpower, run.StrainLevel)
	}
}

// settleOffers resolves pending trait-gate and Boon offers by always taking
// the first choice, so the simulation never stalls on a menu.
func settleOffers(ctx context.Context, eng *engine.Engine, out *engine.Outcome) *engine.Outcome {
	for out != nil && out.Offer != nil && len(out.Offer.Choices) > 0 {
		choice := out.Offer.Choices[0]
		fmt.Printf("Choice: %s\n", choice.Text)
		next, err := eng.ResolveChoice(ctx, choice.ID)
		if err != nil {
			fmt.Printf("Error resolving choice: %v\n", err)
			return out
		}
		out = next
	}
	return out
}

func printOutcome(out *engine.Outcome) {
	if out == nil {
		return
	}
	if out.Response != nil {
		fmt.Printf("Narrator: %s\n", out.Response.Narrative)
	}
	if out.Note != "" {
		fmt.Printf("Note: %s\n", out.Note)
	}
}

func pickAction(ctx context.Context, playerModel *genai.GenerativeModel, eng *engine.Engine, out *engine.Outcome) string {
	narrative := ""
	if out != nil && out.Response != nil {
		narrative = out.Response.Narrative
	}
	suggested := eng.Suggested()

	prompt := fmt.Sprintf(`You are playing a text-based adventure game.

Latest scene:
%s

Suggested actions: %v

What is your next action? Pick one of the suggested actions or invent a short
one of your own. Return ONLY the action string, no extra commentary.`,
		narrative, suggested)

	resp, err := playerModel.GenerateContent(ctx, genai.Text(prompt))
	if err != nil || len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		if len(suggested) > 0 {
			return suggested[0]
		}
		return "look around"
	}
	return strings.TrimSpace(fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0]))
}
