/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with goals and
	orders positioned relative to the current time, so every scenario shows
	the same behavior whatever day it is loaded.

AVAILABLE SCENARIOS:

	on-track:       orders and sales goals paced ahead of schedule
	behind-pace:    a goal three days from its deadline at 30%
	goal-crushed:   both goals past 100%, leaderboard full of badges
	legacy-import:  goals loaded from old record formats (bare number, v1)

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create goals through the engine (or ImportRaw for legacy records)
 3. Add orders spread evenly between the goal start and now
 4. Run one evaluation cycle so notifications and a snapshot exist

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "behind-pace"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Goal and order handlers
  - factory/goal.go: Legacy record formats
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/goal-engine/goal"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "on-track",
		Name:        "On Track",
		Description: "Monthly orders and sales goals running ahead of pace",
	},
	{
		ID:          "behind-pace",
		Name:        "Behind Pace",
		Description: "Three days left at 30%: deadline and off-track warnings",
	},
	{
		ID:          "goal-crushed",
		Name:        "Goal Crushed",
		Description: "Both goals past their target",
	},
	{
		ID:          "legacy-import",
		Name:        "Legacy Import",
		Description: "Goals migrated from a bare number and a v1 record",
	},
}

type scenarioLoader func(ctx context.Context, h *Handler, now time.Time) error

var scenarioLoaders = map[string]scenarioLoader{
	"on-track":      loadOnTrackScenario,
	"behind-pace":   loadBehindPaceScenario,
	"goal-crushed":  loadGoalCrushedScenario,
	"legacy-import": loadLegacyImportScenario,
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available demo scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the last loaded scenario.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"scenario_id": current})
}

// LoadScenario resets the database and loads a scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	load, ok := scenarioLoaders[req.ScenarioID]
	if !ok {
		notFound(w, fmt.Sprintf("Scenario %q", req.ScenarioID))
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	if err := load(ctx, h, h.Engine.Now()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	res, err := h.Engine.RunCycle(ctx)
	if err != nil {
		writeGoalError(w, err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	h.Logger.WithField("scenario", req.ScenarioID).Info("Scenario loaded")
	writeJSON(w, http.StatusOK, map[string]any{
		"scenario_id": req.ScenarioID,
		"cycle":       toCycleResponse(res),
	})
}

// ResetDatabase clears all data.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// LOADERS
// =============================================================================

func loadOnTrackScenario(ctx context.Context, h *Handler, now time.Time) error {
	if err := setMonthlyGoal(ctx, h, goal.MetricOrders, 200, goal.LevelCompany); err != nil {
		return err
	}
	if err := setMonthlyGoal(ctx, h, goal.MetricSales, 10000, goal.LevelDepartment); err != nil {
		return err
	}
	month := goal.PeriodFor(goal.PeriodMonthly, now)
	// Expected share of the month plus a 20% lead, capped below completion.
	share := elapsedShare(month, now)*1.2 + 0.05
	if share > 0.95 {
		share = 0.95
	}
	n := int(200 * share)
	return addSpreadOrders(ctx, h, month.Start, now, n, decimal.NewFromInt(10000).Div(decimal.NewFromInt(200)))
}

func loadBehindPaceScenario(ctx context.Context, h *Handler, now time.Time) error {
	start := goal.StartOfDay(now).AddDate(0, 0, -25)
	end := goal.StartOfDay(now).AddDate(0, 0, 3)
	policy := goal.DefaultNotificationPolicy()
	policy.DailyUpdate = true

	_, err := h.Engine.SetGoal(ctx, goal.GoalInput{
		Metric:        goal.MetricOrders,
		Target:        decimal.NewFromInt(100),
		Period:        goal.PeriodMonthly,
		Level:         goal.LevelTeam,
		Start:         &start,
		End:           &end,
		Notifications: &policy,
	})
	if err != nil {
		return err
	}
	return addSpreadOrders(ctx, h, start, now, 30, decimal.RequireFromString("42.50"))
}

func loadGoalCrushedScenario(ctx context.Context, h *Handler, now time.Time) error {
	if err := setMonthlyGoal(ctx, h, goal.MetricOrders, 50, goal.LevelIndividual); err != nil {
		return err
	}
	if err := setMonthlyGoal(ctx, h, goal.MetricSales, 2000, goal.LevelTeam); err != nil {
		return err
	}
	month := goal.PeriodFor(goal.PeriodMonthly, now)
	return addSpreadOrders(ctx, h, month.Start, now, 60, decimal.NewFromInt(45))
}

func loadLegacyImportScenario(ctx context.Context, h *Handler, now time.Time) error {
	if _, err := h.Store.ImportRaw(ctx, goal.MetricOrders, []byte("150")); err != nil {
		return fmt.Errorf("import legacy orders goal: %w", err)
	}

	week := goal.PeriodFor(goal.PeriodWeekly, now)
	v1 := fmt.Sprintf(`{"target": 1200, "period": "weekly", "startDate": %q, "endDate": %q}`,
		goal.DateKey(week.Start), goal.DateKey(week.End))
	if _, err := h.Store.ImportRaw(ctx, goal.MetricSales, []byte(v1)); err != nil {
		return fmt.Errorf("import v1 sales goal: %w", err)
	}

	month := goal.PeriodFor(goal.PeriodMonthly, now)
	from := month.Start
	if week.Start.Before(from) {
		from = week.Start
	}
	return addSpreadOrders(ctx, h, from, now, 40, decimal.RequireFromString("19.99"))
}

// =============================================================================
// HELPERS
// =============================================================================

func setMonthlyGoal(ctx context.Context, h *Handler, metric goal.MetricKind, target int64, level goal.Level) error {
	_, err := h.Engine.SetGoal(ctx, goal.GoalInput{
		Metric: metric,
		Target: decimal.NewFromInt(target),
		Period: goal.PeriodMonthly,
		Level:  level,
	})
	return err
}

// addSpreadOrders adds n orders evenly spaced inside (from, to].
func addSpreadOrders(ctx context.Context, h *Handler, from, to time.Time, n int, amount decimal.Decimal) error {
	if n <= 0 {
		return nil
	}
	step := to.Sub(from) / time.Duration(n)
	orders := make([]goal.Order, n)
	for i := range orders {
		orders[i] = goal.Order{
			ID:        uuid.NewString(),
			CreatedAt: from.Add(step * time.Duration(i+1)),
			Total:     amount.StringFixed(2),
		}
	}
	return h.Store.AddOrders(ctx, orders...)
}

func elapsedShare(iv goal.Interval, now time.Time) float64 {
	total := iv.End.Sub(iv.Start)
	if total <= 0 {
		return 1
	}
	return float64(now.Sub(iv.Start)) / float64(total)
}
