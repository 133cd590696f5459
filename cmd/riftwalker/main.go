package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"riftwalker/internal/config"
	"riftwalker/internal/engine"
	"riftwalker/internal/model"
	"riftwalker/internal/persist"
	"riftwalker/internal/prompts"
	"riftwalker/internal/theme"
	"riftwalker/internal/tui"
)

var (
	verbose bool
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "riftwalker",
	Short: "Riftwalker - AI-narrated turn-based adventure",
	Long: `Riftwalker is a turn-based adventure narrated by a generative model.

Pick a world theme, type what you want to do, and the narrator answers with
prose plus a structured state update: vitals, conditions, scene indicators
and experience. Level-ups pause the story for a Boon choice.

Run without arguments to start the interactive interface.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		zcfg.OutputPaths = []string{"stderr"}
		if verbose || os.Getenv("RIFTWALKER_VERBOSE") == "true" {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		} else {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGame(cmd.Context())
	},
}

var themesCmd = &cobra.Command{
	Use:   "themes",
	Short: "List the available world themes",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := theme.Load()
		if err != nil {
			return fmt.Errorf("loading themes: %w", err)
		}
		for _, id := range reg.IDs() {
			t, err := reg.Get(id)
			if err != nil {
				return err
			}
			fmt.Printf("%s\t%s — %s\n", t.ID, t.Name, t.Tagline)
		}
		return nil
	},
}

var savesCmd = &cobra.Command{
	Use:   "saves",
	Short: "List themes with a saved session for the current player",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		store, err := persist.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer store.Close()

		themeIDs, err := store.ListSaves(cmd.Context(), cfg.PlayerID)
		if err != nil {
			return fmt.Errorf("listing saves: %w", err)
		}
		if len(themeIDs) == 0 {
			fmt.Println("No saved sessions.")
			return nil
		}
		for _, id := range themeIDs {
			fmt.Println(id)
		}
		return nil
	},
}

func runGame(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	reg, err := theme.Load()
	if err != nil {
		return fmt.Errorf("loading themes: %w", err)
	}

	store, err := persist.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer store.Close()

	gen, err := model.NewGemini(ctx, cfg.GeminiAPIKey, cfg.ModelName)
	if err != nil {
		return fmt.Errorf("creating model client: %w", err)
	}
	defer gen.Close()

	eng, err := engine.New(engine.Options{
		Themes:    reg,
		Templates: prompts.NewStore(),
		Store:     store,
		Generator: gen,
		Logger:    logger,
		PlayerID:  cfg.PlayerID,
		ModelName: cfg.ModelName,
	})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	return tui.Run(eng, reg.IDs())
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(themesCmd, savesCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
