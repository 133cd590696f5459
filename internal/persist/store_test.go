package persist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riftwalker/internal/history"
	"riftwalker/internal/progress"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestFetchProgressNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.FetchProgress(context.Background(), "p1", "t1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProgressRoundtrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := &progress.UserThemeProgress{
		Level:           3,
		CurrentXP:       450,
		IntegrityBonus:  20,
		WillpowerBonus:  10,
		AptitudeBonus:   1,
		ResilienceBonus: 2,
		AcquiredTraits:  []string{"veilborn", "ash_warden"},
		BoonPending:     true,
	}
	require.NoError(t, s.SaveProgress(ctx, "p1", "t1", p))

	got, err := s.FetchProgress(ctx, "p1", "t1")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	// Upsert replaces rather than duplicates.
	p.CurrentXP = 500
	p.BoonPending = false
	require.NoError(t, s.SaveProgress(ctx, "p1", "t1", p))
	got, err = s.FetchProgress(ctx, "p1", "t1")
	require.NoError(t, err)
	assert.Equal(t, 500, got.CurrentXP)
	assert.False(t, got.BoonPending)
}

func TestProgressIsolatedPerTheme(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := progress.NewProgress()
	p.CurrentXP = 50
	p.AcquiredTraits = []string{}
	require.NoError(t, s.SaveProgress(ctx, "p1", "theme-a", p))

	_, err := s.FetchProgress(ctx, "p1", "theme-b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyBoonFlatBonus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := progress.NewProgress()
	p.CurrentXP = 100
	p.BoonPending = true
	p.AcquiredTraits = []string{}
	require.NoError(t, s.SaveProgress(ctx, "p1", "t1", p))

	applied, err := s.ApplyBoon(ctx, "p1", "t1", BoonPayload{
		Kind: BoonMaxAttributeIncrease, Field: "integrity", Value: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, applied.Level)
	assert.Equal(t, 10, applied.IntegrityBonus)
	assert.Equal(t, 100, applied.CurrentXP, "XP is never reset by a level-up")
	assert.False(t, applied.BoonPending)

	// The returned record is what was persisted.
	stored, err := s.FetchProgress(ctx, "p1", "t1")
	require.NoError(t, err)
	assert.Equal(t, applied, stored)
}

func TestApplyBoonAttributeAndTrait(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := progress.NewProgress()
	p.AcquiredTraits = []string{"veilborn"}
	require.NoError(t, s.SaveProgress(ctx, "p1", "t1", p))

	applied, err := s.ApplyBoon(ctx, "p1", "t1", BoonPayload{
		Kind: BoonAttributeEnhancement, Field: "aptitude", Value: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, applied.AptitudeBonus)
	assert.Equal(t, 2, applied.Level)

	applied, err = s.ApplyBoon(ctx, "p1", "t1", BoonPayload{
		Kind: BoonNewTrait, TraitKey: "thread_seer",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, applied.Level)
	assert.Equal(t, []string{"veilborn", "thread_seer"}, applied.AcquiredTraits)
}

func TestApplyBoonInvalidPayloadLeavesRecord(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := progress.NewProgress()
	p.AcquiredTraits = []string{}
	require.NoError(t, s.SaveProgress(ctx, "p1", "t1", p))

	_, err := s.ApplyBoon(ctx, "p1", "t1", BoonPayload{
		Kind: BoonMaxAttributeIncrease, Field: "luck", Value: 10,
	})
	assert.Error(t, err)

	_, err = s.ApplyBoon(ctx, "p1", "t1", BoonPayload{Kind: "NO_SUCH_KIND"})
	assert.Error(t, err)

	_, err = s.ApplyBoon(ctx, "p1", "t1", BoonPayload{Kind: BoonNewTrait})
	assert.Error(t, err)

	stored, err := s.FetchProgress(ctx, "p1", "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Level, "failed boons must not mutate the record")
}

func TestApplyBoonWithoutProgress(t *testing.T) {
	s := openTestStore(t)
	_, err := s.ApplyBoon(context.Background(), "p1", "t1", BoonPayload{
		Kind: BoonMaxAttributeIncrease, Field: "integrity", Value: 10,
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGameStateRoundtrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	state := SaveState{
		PlayerID:          "p1",
		ThemeID:           "t1",
		ModelName:         "gemini-2.5-flash",
		PromptType:        "combat",
		NarrativeLanguage: "English",
		Turns: []history.Turn{
			{Role: history.RoleUser, Text: "go north"},
			{Role: history.RoleModel, Text: `{"narrative":"You go."}`},
		},
		LastDashboard:    map[string]any{"integrity": float64(90)},
		LastIndicators:   map[string]any{"combat": true},
		SuggestedActions: []string{"fight", "flee"},
		PanelState:       map[string]bool{"combat": true},
	}
	require.NoError(t, s.SaveGameState(ctx, state))

	got, err := s.LoadGameState(ctx, "p1", "t1")
	require.NoError(t, err)
	assert.NotEmpty(t, got.SaveID, "a save id is assigned on first save")
	assert.Equal(t, state.PromptType, got.PromptType)
	assert.Equal(t, state.Turns, got.Turns)
	assert.Equal(t, state.LastDashboard, got.LastDashboard)
	assert.Equal(t, state.SuggestedActions, got.SuggestedActions)
	assert.Equal(t, state.PanelState, got.PanelState)
}

func TestSaveGameStateRequiresIDs(t *testing.T) {
	s := openTestStore(t)
	err := s.SaveGameState(context.Background(), SaveState{PlayerID: "p1"})
	assert.Error(t, err)
}

func TestLoadGameStateNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.LoadGameState(context.Background(), "p1", "t1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSaves(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveGameState(ctx, SaveState{PlayerID: "p1", ThemeID: "theme-a"}))
	require.NoError(t, s.SaveGameState(ctx, SaveState{PlayerID: "p1", ThemeID: "theme-b"}))
	require.NoError(t, s.SaveGameState(ctx, SaveState{PlayerID: "p2", ThemeID: "theme-c"}))

	themes, err := s.ListSaves(ctx, "p1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"theme-a", "theme-b"}, themes)
}

func TestUnlockShardIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sh := Shard{ID: "old_king", Title: "old king", Body: "He never died."}
	require.NoError(t, s.UnlockShard(ctx, "p1", "t1", sh))
	require.NoError(t, s.UnlockShard(ctx, "p1", "t1", sh))

	shards, err := s.ActiveShards(ctx, "p1", "t1")
	require.NoError(t, err)
	require.Len(t, shards, 1)
	assert.Equal(t, sh, shards[0])
}

func TestUnlockShardRequiresID(t *testing.T) {
	s := openTestStore(t)
	err := s.UnlockShard(context.Background(), "p1", "t1", Shard{Title: "no id"})
	assert.Error(t, err)
}

func TestActiveShardsEmpty(t *testing.T) {
	s := openTestStore(t)
	shards, err := s.ActiveShards(context.Background(), "p1", "t1")
	require.NoError(t, err)
	assert.Empty(t, shards)
}
