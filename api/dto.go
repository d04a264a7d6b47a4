/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the goal package's model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Goals:         GoalDTO, CreateGoalRequest, UpdateGoalRequest, HistoryResponse
  Suggestions:   goal.Suggestion is returned as-is
  Gamification:  LeaderboardResponse
  Orders:        OrderDTO, CreateOrdersRequest
  Cycle:         CycleResponse
  Scenarios:     ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done in handlers and goal.Engine, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/goal-engine/goal"
	"github.com/warp/goal-engine/rewards"
)

// =============================================================================
// GOALS
// =============================================================================

// GoalDTO represents a goal with its live status.
type GoalDTO struct {
	Metric        goal.MetricKind         `json:"metric"`
	Target        decimal.Decimal         `json:"target"`
	Period        goal.PeriodKind         `json:"period"`
	StartDate     string                  `json:"startDate"`
	EndDate       string                  `json:"endDate"`
	Level         goal.Level              `json:"level"`
	CreatedAt     time.Time               `json:"createdAt"`
	Notifications goal.NotificationPolicy `json:"notifications"`
	Progress      *goal.Progress          `json:"progress,omitempty"`
	Forecast      *goal.ForecastResult    `json:"forecast,omitempty"`
	HistoryDays   int                     `json:"historyDays"`
}

// CreateGoalRequest is the body of POST /api/goals.
type CreateGoalRequest struct {
	Metric        string                   `json:"metric"`
	Target        decimal.Decimal          `json:"target"`
	Period        string                   `json:"period"`
	Level         string                   `json:"level,omitempty"`
	StartDate     string                   `json:"startDate,omitempty"`
	EndDate       string                   `json:"endDate,omitempty"`
	Notifications *goal.NotificationPolicy `json:"notifications,omitempty"`
}

// UpdateGoalRequest is the body of PUT /api/goals/{metric}.
type UpdateGoalRequest struct {
	Target        *decimal.Decimal         `json:"target,omitempty"`
	Level         *string                  `json:"level,omitempty"`
	Notifications *goal.NotificationPolicy `json:"notifications,omitempty"`
}

// HistoryResponse is the body of GET /api/goals/{metric}/history.
type HistoryResponse struct {
	Metric  goal.MetricKind         `json:"metric"`
	History []goal.ProgressSnapshot `json:"history"`
	Summary goal.HistorySummary     `json:"summary"`
}

// =============================================================================
// GAMIFICATION / CYCLE
// =============================================================================

// LeaderboardResponse is the body of GET /api/leaderboard.
type LeaderboardResponse struct {
	Score       int             `json:"score"`
	Entries     []rewards.Entry `json:"entries"`
	EvaluatedAt *time.Time      `json:"evaluatedAt,omitempty"`
}

// CycleResponse summarises one evaluation cycle.
type CycleResponse struct {
	StartedAt     time.Time           `json:"startedAt"`
	Goals         int                 `json:"goals"`
	Notifications []goal.Notification `json:"notifications"`
	Snapshots     int                 `json:"snapshots"`
	Score         int                 `json:"score"`
}

// =============================================================================
// ORDERS
// =============================================================================

// OrderDTO represents an order. Total may be a number, a numeric string or null.
type OrderDTO struct {
	ID        string     `json:"id,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	Total     any        `json:"total"`
}

// CreateOrdersRequest is the body of POST /api/orders.
type CreateOrdersRequest struct {
	Orders []OrderDTO `json:"orders"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
