package reputation

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/dotsetgreg/loreweaver/pkg/errors"
	"github.com/dotsetgreg/loreweaver/pkg/store"
)

func TestLevelOf_Thresholds(t *testing.T) {
	testcases := []struct {
		value int
		want  Level
	}{
		{1000, LevelRevered},
		{800, LevelRevered},
		{799, LevelExalted},
		{600, LevelExalted},
		{400, LevelHonored},
		{200, LevelFriendly},
		{199, LevelNeutral},
		{-199, LevelNeutral},
		{-200, LevelUnfriendly},
		{-400, LevelHostile},
		{-600, LevelHated},
		{-800, LevelNemesis},
		{-1000, LevelNemesis},
	}
	for _, tc := range testcases {
		assert.Equal(t, tc.want, LevelOf(tc.value), "value %d", tc.value)
	}
}

func TestLevelOf_Monotonic(t *testing.T) {
	prev := LevelOf(MinReputation)
	for v := MinReputation + 1; v <= MaxReputation; v++ {
		cur := LevelOf(v)
		assert.True(t, cur.AtLeast(prev), "level dropped between %d and %d", v-1, v)
		prev = cur
	}
}

func TestUpdateReputation_ClampsAndDerives(t *testing.T) {
	ctx := context.Background()
	svc := NewService(store.NewMemoryStore())

	st, err := svc.UpdateReputation(ctx, UpdateInput{
		CharacterID: "c1",
		FactionID:   "guild",
		FactionName: "Merchants Guild",
		EventType:   "trade",
		Delta:       250,
	})
	require.NoError(t, err)
	assert.Equal(t, 250, st.Reputation)
	assert.Equal(t, LevelFriendly, st.ReputationLevel)
	assert.Equal(t, []string{"할인 25%", "기본 정보 접근"}, st.Benefits)
	assert.Empty(t, st.Penalties)
	assert.True(t, st.IsKnown)

	st, err = svc.UpdateReputation(ctx, UpdateInput{CharacterID: "c1", FactionID: "guild", Delta: -5000})
	require.NoError(t, err)
	assert.Equal(t, MinReputation, st.Reputation)
	assert.Equal(t, LevelNemesis, st.ReputationLevel)
	assert.Empty(t, st.Benefits, "derived lists are replaced, not merged")
	assert.Equal(t, "Merchants Guild", st.FactionName)
	require.Len(t, st.History, 2)
	assert.Equal(t, PublicityLocal, st.History[1].Publicity)
}

func TestUpdateReputation_PublicityScalesDelta(t *testing.T) {
	ctx := context.Background()
	svc := NewService(store.NewMemoryStore())

	st, err := svc.UpdateReputation(ctx, UpdateInput{CharacterID: "c1", FactionID: "crown", Delta: -250, Publicity: PublicityGlobal})
	require.NoError(t, err)
	assert.Equal(t, -500, st.Reputation)
	assert.Equal(t, LevelHostile, st.ReputationLevel)
	assert.Equal(t, []string{"가격 할증 50%", "서비스 거부", "감시"}, st.Penalties)

	st, err = svc.UpdateReputation(ctx, UpdateInput{CharacterID: "c1", FactionID: "crown", Delta: 100, Publicity: PublicityPrivate})
	require.NoError(t, err)
	assert.Equal(t, -450, st.Reputation)
	assert.Equal(t, 50, st.History[1].ReputationChange)
}

func TestUpdateReputation_ExtremeDeltasSaturate(t *testing.T) {
	ctx := context.Background()
	svc := NewService(store.NewMemoryStore())

	st, err := svc.UpdateReputation(ctx, UpdateInput{CharacterID: "c1", FactionID: "crown", Delta: math.MaxInt, Publicity: PublicityGlobal})
	require.NoError(t, err)
	assert.Equal(t, MaxReputation, st.Reputation)
	assert.Equal(t, LevelRevered, st.ReputationLevel)
	assert.Equal(t, MaxReputation-MinReputation, st.History[0].ReputationChange)

	st, err = svc.UpdateReputation(ctx, UpdateInput{CharacterID: "c1", FactionID: "crown", Delta: math.MinInt, Publicity: PublicityPrivate})
	require.NoError(t, err)
	assert.Equal(t, MinReputation, st.Reputation)
	assert.Equal(t, LevelNemesis, st.ReputationLevel)
}

func TestUpdateReputation_Validation(t *testing.T) {
	svc := NewService(store.NewMemoryStore())
	_, err := svc.UpdateReputation(context.Background(), UpdateInput{CharacterID: "c1"})
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.Get(context.Background(), "c1", "nobody")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestTrendOf(t *testing.T) {
	ev := func(deltas ...int) []Event {
		out := make([]Event, 0, len(deltas))
		for _, d := range deltas {
			out = append(out, Event{ReputationChange: d})
		}
		return out
	}
	assert.Equal(t, TrendStable, TrendOf(ev(500)))
	assert.Equal(t, TrendRising, TrendOf(ev(30, 30)))
	assert.Equal(t, TrendFalling, TrendOf(ev(100, -20, -20, -20)))
	assert.Equal(t, TrendStable, TrendOf(ev(-300, 20, 10, 10)), "only the last three count")
}

func TestSummarize_OpportunitiesAndWarnings(t *testing.T) {
	ctx := context.Background()
	svc := NewService(store.NewMemoryStore())

	for _, in := range []UpdateInput{
		{CharacterID: "c1", FactionID: "a", FactionName: "Alpha", Delta: 450},
		{CharacterID: "c1", FactionID: "b", FactionName: "Beta", Delta: -450},
		{CharacterID: "c1", FactionID: "c", FactionName: "Gamma", Delta: 10},
	} {
		_, err := svc.UpdateReputation(ctx, in)
		require.NoError(t, err)
	}

	sum, err := svc.Summarize(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, sum.Standings, 3)
	require.Len(t, sum.Opportunities, 1)
	assert.Contains(t, sum.Opportunities[0], "Alpha")
	require.Len(t, sum.Warnings, 1)
	assert.Contains(t, sum.Warnings[0], "Beta")
}
