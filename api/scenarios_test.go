/*
scenarios_test.go - Tests for demo scenarios

PURPOSE:

	Tests that each scenario sets up the expected state through the HTTP
	surface, so scenarios double as integration tests:
	- Goals are created with the right periods
	- Orders land inside the goal intervals
	- The first cycle produces the advertised notifications
*/
package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/goal-engine/goal"
)

type loadScenarioResponse struct {
	ScenarioID string        `json:"scenario_id"`
	Cycle      CycleResponse `json:"cycle"`
}

func (ts *testServer) loadScenario(t *testing.T, id string) loadScenarioResponse {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: id})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[loadScenarioResponse](t, rec)
}

func notificationKinds(ns []goal.Notification) map[goal.NotificationKind]int {
	out := make(map[goal.NotificationKind]int)
	for _, n := range ns {
		out[n.Kind]++
	}
	return out
}

func TestListScenarios(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	list := decode[[]ScenarioDTO](t, rec)
	require.Len(t, list, len(scenarioLoaders))
	for _, s := range list {
		_, ok := scenarioLoaders[s.ID]
		assert.True(t, ok, "scenario %s has no loader", s.ID)
	}
}

func TestScenario_OnTrack(t *testing.T) {
	// GIVEN: On-track scenario
	// WHEN: Loading the scenario
	// THEN: Both goals are ahead of linear pace
	ts := setupTestServer(t)

	res := ts.loadScenario(t, "on-track")

	assert.Equal(t, 2, res.Cycle.Goals)
	assert.Equal(t, 2, res.Cycle.Snapshots)

	rec := ts.do(t, http.MethodGet, "/api/goals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	goals := decode[[]GoalDTO](t, rec)
	require.Len(t, goals, 2)
	for _, g := range goals {
		require.NotNil(t, g.Forecast, g.Metric)
		assert.True(t, g.Forecast.OnTrack, "%s should be on track", g.Metric)
		assert.Less(t, g.Progress.Percentage, 100.0)
	}
	assert.Zero(t, notificationKinds(res.Cycle.Notifications)[goal.KindOffTrack])
}

func TestScenario_BehindPace(t *testing.T) {
	// GIVEN: Behind-pace scenario, three days left at 30%
	// WHEN: Loading the scenario
	// THEN: Deadline, off-track, daily and the 25% milestone all fire
	ts := setupTestServer(t)

	res := ts.loadScenario(t, "behind-pace")

	kinds := notificationKinds(res.Cycle.Notifications)
	assert.Equal(t, 1, kinds[goal.KindMilestone])
	assert.Equal(t, 1, kinds[goal.KindDeadline])
	assert.Equal(t, 1, kinds[goal.KindOffTrack])
	assert.Equal(t, 1, kinds[goal.KindDaily])

	rec := ts.do(t, http.MethodGet, "/api/goals/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	g := decode[GoalDTO](t, rec)
	assert.InDelta(t, 30.0, g.Progress.Percentage, 0.001)
	assert.Equal(t, 3, g.Forecast.DaysRemaining)
	assert.False(t, g.Forecast.OnTrack)
}

func TestScenario_GoalCrushed(t *testing.T) {
	// GIVEN: Goal-crushed scenario
	// WHEN: Loading the scenario
	// THEN: Both goals complete and the score includes both bonuses
	ts := setupTestServer(t)

	res := ts.loadScenario(t, "goal-crushed")

	assert.Equal(t, 300, res.Cycle.Score)
	assert.Equal(t, 8, notificationKinds(res.Cycle.Notifications)[goal.KindMilestone])

	rec := ts.do(t, http.MethodGet, "/api/leaderboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	board := decode[LeaderboardResponse](t, rec)
	require.Len(t, board.Entries, 2)
	for _, e := range board.Entries {
		assert.True(t, e.Completed)
		assert.Equal(t, 1, e.Rank)
	}
}

func TestScenario_LegacyImport(t *testing.T) {
	// GIVEN: Legacy-import scenario
	// WHEN: Loading the scenario
	// THEN: The bare number becomes a monthly goal and the v1 record keeps its week
	ts := setupTestServer(t)

	ts.loadScenario(t, "legacy-import")

	rec := ts.do(t, http.MethodGet, "/api/goals/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	orders := decode[GoalDTO](t, rec)
	assert.Equal(t, goal.PeriodMonthly, orders.Period)
	assert.Equal(t, "2025-01-01", orders.StartDate)
	assert.Equal(t, "150", orders.Target.String())
	assert.Equal(t, "40", orders.Progress.Value.String())

	rec = ts.do(t, http.MethodGet, "/api/goals/sales", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sales := decode[GoalDTO](t, rec)
	assert.Equal(t, goal.PeriodWeekly, sales.Period)
	assert.Equal(t, "2025-01-12", sales.StartDate)
	assert.Equal(t, "2025-01-18", sales.EndDate)
	assert.Equal(t, goal.DefaultMilestones, sales.Notifications.Milestones)
}

func TestScenario_Unknown(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScenario_ReplacesPreviousData(t *testing.T) {
	ts := setupTestServer(t)
	ts.loadScenario(t, "goal-crushed")

	// WHEN: Another scenario is loaded
	ts.loadScenario(t, "behind-pace")

	// THEN: Only its goal remains and it is the current scenario
	goals, err := ts.handler.Engine.ListGoals(context.Background())
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, goal.MetricOrders, goals[0].Metric)

	rec := ts.do(t, http.MethodGet, "/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "behind-pace", decode[map[string]string](t, rec)["scenario_id"])
}

func TestResetDatabase(t *testing.T) {
	ts := setupTestServer(t)
	ts.loadScenario(t, "on-track")

	rec := ts.do(t, http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/goals", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]GoalDTO](t, rec))

	rec = ts.do(t, http.MethodGet, "/api/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]OrderDTO](t, rec))

	rec = ts.do(t, http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "", decode[map[string]string](t, rec)["scenario_id"])
}
