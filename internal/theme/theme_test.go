package theme

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedThemes(t *testing.T) {
	reg, err := Load()
	require.NoError(t, err)

	ids := reg.IDs()
	assert.Contains(t, ids, "shattered-veil")
	assert.Contains(t, ids, "neon-abyss")

	for _, id := range ids {
		th, err := reg.Get(id)
		require.NoError(t, err)
		assert.NotEmpty(t, th.Name)
		assert.Positive(t, th.Attributes.BaseIntegrity)
		assert.Positive(t, th.Attributes.BaseWillpower)
		assert.NotEmpty(t, th.Indicators)
		assert.NotEmpty(t, th.Traits)
	}
}

func TestGetUnknownTheme(t *testing.T) {
	reg, err := Load()
	require.NoError(t, err)
	_, err = reg.Get("no-such-theme")
	assert.Error(t, err)
}

func TestNewRegistryRejectsDuplicateTraits(t *testing.T) {
	_, err := NewRegistry(&Theme{
		ID:         "bad",
		Attributes: Attributes{BaseIntegrity: 10, BaseWillpower: 10},
		Traits: []Trait{
			{Key: "dup", Name: "First"},
			{Key: "dup", Name: "Second"},
		},
	})
	assert.ErrorContains(t, err, "duplicate trait")
}

func TestNewRegistryRejectsMissingBaselines(t *testing.T) {
	_, err := NewRegistry(&Theme{ID: "bad"})
	assert.ErrorContains(t, err, "baselines")
}

func TestInstructionFallback(t *testing.T) {
	th := &Theme{
		ID: "t",
		Instructions: map[string]string{
			"default": "default text",
			"combat":  "combat text",
		},
	}
	assert.Equal(t, "combat text", th.Instruction("combat"))
	assert.Equal(t, "default text", th.Instruction("veilfall"))

	bare := &Theme{ID: "bare"}
	assert.Contains(t, bare.Instruction("combat"), "ERROR:")
}

func TestIndicatorsByPriority(t *testing.T) {
	th := &Theme{
		Indicators: []Indicator{
			{ID: "low", Priority: 5},
			{ID: "high", Priority: 20},
			{ID: "mid", Priority: 10},
			{ID: "also-mid", Priority: 10},
		},
	}
	got := th.IndicatorsByPriority()
	require.Len(t, got, 4)
	assert.Equal(t, "high", got[0].ID)
	assert.Equal(t, "also-mid", got[1].ID, "ties break by id")
	assert.Equal(t, "mid", got[2].ID)
	assert.Equal(t, "low", got[3].ID)
}

func TestTraitLookup(t *testing.T) {
	reg, err := Load()
	require.NoError(t, err)
	th, err := reg.Get("shattered-veil")
	require.NoError(t, err)

	tr, ok := th.Trait("veilborn")
	assert.True(t, ok)
	assert.NotEmpty(t, tr.Name)

	_, ok = th.Trait("nonexistent")
	assert.False(t, ok)
}
