package rewards_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/goal-engine/rewards"
)

func TestPoints_PartialCreditEveryTenPercent(t *testing.T) {
	assert.Equal(t, 0, rewards.Points(0))
	assert.Equal(t, 0, rewards.Points(9.99))
	assert.Equal(t, 5, rewards.Points(10))
	assert.Equal(t, 20, rewards.Points(47))
	assert.Equal(t, 45, rewards.Points(99.9))
}

func TestPoints_CompletionBonus(t *testing.T) {
	// 10 tenths * 5 + 100 bonus
	assert.Equal(t, 150, rewards.Points(100))
}

func TestPoints_NegativeIgnored(t *testing.T) {
	assert.Equal(t, 0, rewards.Points(-20))
}

func TestScore_SumsAcrossGoals(t *testing.T) {
	states := []rewards.State{
		{ID: "orders", Name: "orders", Progress: 100},
		{ID: "sales", Name: "sales", Progress: 47},
	}
	assert.Equal(t, 170, rewards.Score(states))
}

func TestLeaderboard_SortedDescendingWithDenseRanks(t *testing.T) {
	board := rewards.Leaderboard([]rewards.State{
		{ID: "a", Name: "alpha", Progress: 30},
		{ID: "b", Name: "bravo", Progress: 100},
		{ID: "c", Name: "charlie", Progress: 35},
		{ID: "d", Name: "delta", Progress: 61},
	})

	require.Len(t, board, 4)
	assert.Equal(t, "bravo", board[0].Name)
	assert.Equal(t, 1, board[0].Rank)
	assert.True(t, board[0].Completed)
	assert.Equal(t, "delta", board[1].Name)
	assert.Equal(t, 2, board[1].Rank)

	// alpha (30%) and charlie (35%) both score 15 and share a rank.
	assert.Equal(t, "alpha", board[2].Name)
	assert.Equal(t, "charlie", board[3].Name)
	assert.Equal(t, 3, board[2].Rank)
	assert.Equal(t, 3, board[3].Rank)
}

func TestBadges(t *testing.T) {
	assert.Empty(t, rewards.Badges(rewards.State{Progress: 10}))
	assert.Equal(t, []string{rewards.BadgeFirstMilestone, rewards.BadgeHalfway},
		rewards.Badges(rewards.State{Progress: 60}))
	assert.Contains(t, rewards.Badges(rewards.State{Progress: 100}), rewards.BadgeGoalCrusher)
}
