package groups

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateTiers(t *testing.T) {
	tiers := []Tier{
		{MinParticipants: 10, PercentOff: 15},
		{MinParticipants: 3, PercentOff: 5},
		{MinParticipants: 6, PercentOff: 10},
	}

	tests := []struct {
		name          string
		joined        int
		wantPercent   int
		wantNextMin   int
		wantNeeded    int
		wantNoNext    bool
		wantNoCurrent bool
	}{
		{name: "no members", joined: 0, wantPercent: 0, wantNextMin: 3, wantNeeded: 3, wantNoCurrent: true},
		{name: "just below first tier", joined: 2, wantPercent: 0, wantNextMin: 3, wantNeeded: 1, wantNoCurrent: true},
		{name: "exactly first tier", joined: 3, wantPercent: 5, wantNextMin: 6, wantNeeded: 3},
		{name: "between tiers", joined: 7, wantPercent: 10, wantNextMin: 10, wantNeeded: 3},
		{name: "top tier", joined: 10, wantPercent: 15, wantNoNext: true},
		{name: "beyond top tier", joined: 25, wantPercent: 15, wantNoNext: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := EvaluateTiers(tiers, tt.joined)

			assert.Equal(t, tt.joined, state.JoinedCount)
			assert.Equal(t, tt.wantPercent, state.PercentOff)
			if tt.wantNoCurrent {
				assert.Nil(t, state.CurrentTier)
			} else {
				require.NotNil(t, state.CurrentTier)
				assert.Equal(t, tt.wantPercent, state.CurrentTier.PercentOff)
			}
			if tt.wantNoNext {
				assert.Nil(t, state.NextTier)
				assert.Zero(t, state.MembersNeeded)
				return
			}
			require.NotNil(t, state.NextTier)
			assert.Equal(t, tt.wantNextMin, state.NextTier.MinParticipants)
			assert.Equal(t, tt.wantNeeded, state.MembersNeeded)
		})
	}
}

func TestEvaluateTiers_IgnoresInvalidTiers(t *testing.T) {
	tiers := []Tier{
		{MinParticipants: 0, PercentOff: 50},
		{MinParticipants: -2, PercentOff: 10},
		{MinParticipants: 4, PercentOff: 0},
		{MinParticipants: 4, PercentOff: 120},
		{MinParticipants: 5, PercentOff: 20},
	}

	state := EvaluateTiers(tiers, 4)

	assert.Nil(t, state.CurrentTier)
	assert.Zero(t, state.PercentOff)
	require.NotNil(t, state.NextTier)
	assert.Equal(t, Tier{MinParticipants: 5, PercentOff: 20}, *state.NextTier)
}

func TestEvaluateTiers_DuplicateMinimumUsesLargestDiscount(t *testing.T) {
	tiers := []Tier{
		{MinParticipants: 4, PercentOff: 8},
		{MinParticipants: 4, PercentOff: 12},
	}

	below := EvaluateTiers(tiers, 1)
	require.NotNil(t, below.NextTier)
	assert.Equal(t, 12, below.NextTier.PercentOff)

	met := EvaluateTiers(tiers, 4)
	assert.Equal(t, 12, met.PercentOff)
}

func TestEvaluateTiers_DoesNotMutateInput(t *testing.T) {
	tiers := []Tier{{MinParticipants: 9, PercentOff: 10}, {MinParticipants: 2, PercentOff: 5}}
	_ = EvaluateTiers(tiers, 3)
	assert.Equal(t, 9, tiers[0].MinParticipants)
}

func TestEvaluateTiers_Empty(t *testing.T) {
	state := EvaluateTiers(nil, 3)
	assert.Zero(t, state.PercentOff)
	assert.Nil(t, state.CurrentTier)
	assert.Nil(t, state.NextTier)
}
