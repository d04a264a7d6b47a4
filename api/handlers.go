/*
handlers.go - HTTP API handlers for the goal engine

PURPOSE:
  Exposes goal.Engine via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to the engine.

ENDPOINTS:
  Goals:
    GET    /api/goals                    List goals with live status
    POST   /api/goals                    Set (create or replace) a goal
    GET    /api/goals/{metric}           Goal with progress and forecast
    PUT    /api/goals/{metric}           Edit target, level or notifications
    DELETE /api/goals/{metric}           Clear a goal
    POST   /api/goals/{metric}/reset     Move a goal to the current period
    GET    /api/goals/{metric}/history   Daily snapshots and summary

  Planning:
    GET    /api/suggestions?metric=&period=   Suggested target + templates
    GET    /api/templates                     Template catalog

  Evaluation:
    POST   /api/cycle                    Run an evaluation cycle now
    GET    /api/leaderboard              Score and ranking of the last cycle
    GET    /api/notifications            Notification feed

  Orders:
    GET    /api/orders                   Recent orders
    POST   /api/orders                   Ingest orders

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, unknown metric/period/level
  - 404: Goal not found
  - 409: Evaluation cycle already running
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/warp/goal-engine/goal"
	"github.com/warp/goal-engine/rewards"
	"github.com/warp/goal-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Engine   *goal.Engine
	Logger   logrus.FieldLogger
	Location *time.Location

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler.
func NewHandler(store *sqlite.Store, engine *goal.Engine, logger logrus.FieldLogger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		Store:    store,
		Engine:   engine,
		Logger:   logger,
		Location: time.Local,
	}
}

// =============================================================================
// GOAL HANDLERS
// =============================================================================

// ListGoals returns every goal with its live status.
// GET /api/goals
func (h *Handler) ListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := h.Engine.ListGoals(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list goals", err)
		return
	}

	dtos := make([]GoalDTO, 0, len(goals))
	for _, g := range goals {
		st, err := h.Engine.Status(r.Context(), g.Metric)
		if err != nil {
			writeGoalError(w, err)
			return
		}
		dtos = append(dtos, toGoalDTO(st.Goal, &st.Progress, &st.Forecast))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateGoal sets the goal for a metric, replacing any existing one.
// POST /api/goals
func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	var req CreateGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	in, err := h.toGoalInput(req)
	if err != nil {
		writeGoalError(w, err)
		return
	}

	g, err := h.Engine.SetGoal(r.Context(), in)
	if err != nil {
		writeGoalError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGoalDTO(*g, nil, nil))
}

func (h *Handler) toGoalInput(req CreateGoalRequest) (goal.GoalInput, error) {
	metric, err := goal.ParseMetricKind(req.Metric)
	if err != nil {
		return goal.GoalInput{}, err
	}
	period := goal.PeriodMonthly
	if req.Period != "" {
		if period, err = goal.ParsePeriodKind(req.Period); err != nil {
			return goal.GoalInput{}, err
		}
	}
	level, err := goal.ParseLevel(req.Level)
	if err != nil {
		return goal.GoalInput{}, err
	}

	in := goal.GoalInput{
		Metric:        metric,
		Target:        req.Target,
		Period:        period,
		Level:         level,
		Notifications: req.Notifications,
	}
	if req.StartDate != "" {
		start, err := goal.ParseDate(req.StartDate, h.Location)
		if err != nil {
			return goal.GoalInput{}, &goal.ValidationError{Field: "startDate", Message: err.Error()}
		}
		in.Start = &start
	}
	if req.EndDate != "" {
		end, err := goal.ParseDate(req.EndDate, h.Location)
		if err != nil {
			return goal.GoalInput{}, &goal.ValidationError{Field: "endDate", Message: err.Error()}
		}
		in.End = &end
	}
	return in, nil
}

// GetGoal returns a goal with progress and forecast.
// GET /api/goals/{metric}
func (h *Handler) GetGoal(w http.ResponseWriter, r *http.Request) {
	metric, ok := metricParam(w, r)
	if !ok {
		return
	}
	st, err := h.Engine.Status(r.Context(), metric)
	if err != nil {
		writeGoalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalDTO(st.Goal, &st.Progress, &st.Forecast))
}

// UpdateGoal edits target, level or notification policy.
// PUT /api/goals/{metric}
func (h *Handler) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	metric, ok := metricParam(w, r)
	if !ok {
		return
	}
	var req UpdateGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}

	edit := goal.GoalEdit{Target: req.Target, Notifications: req.Notifications}
	if req.Level != nil {
		level, err := goal.ParseLevel(*req.Level)
		if err != nil {
			writeGoalError(w, err)
			return
		}
		edit.Level = &level
	}

	g, err := h.Engine.EditGoal(r.Context(), metric, edit)
	if err != nil {
		writeGoalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalDTO(*g, nil, nil))
}

// DeleteGoal clears a goal with its history.
// DELETE /api/goals/{metric}
func (h *Handler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	metric, ok := metricParam(w, r)
	if !ok {
		return
	}
	if err := h.Engine.ClearGoal(r.Context(), metric); err != nil {
		writeGoalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResetGoal moves a goal to the current period with the same target.
// POST /api/goals/{metric}/reset
func (h *Handler) ResetGoal(w http.ResponseWriter, r *http.Request) {
	metric, ok := metricParam(w, r)
	if !ok {
		return
	}
	g, err := h.Engine.ResetGoal(r.Context(), metric)
	if err != nil {
		writeGoalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalDTO(*g, nil, nil))
}

// GetHistory returns the snapshot series with a summary.
// GET /api/goals/{metric}/history
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	metric, ok := metricParam(w, r)
	if !ok {
		return
	}
	g, err := h.Engine.GetGoal(r.Context(), metric)
	if err != nil {
		writeGoalError(w, err)
		return
	}
	history := g.History
	if history == nil {
		history = []goal.ProgressSnapshot{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{
		Metric:  metric,
		History: history,
		Summary: goal.Summarize(history),
	})
}

// =============================================================================
// PLANNING HANDLERS
// =============================================================================

// GetSuggestion proposes a target for a metric and period.
// GET /api/suggestions?metric=sales&period=monthly
func (h *Handler) GetSuggestion(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	metric, err := goal.ParseMetricKind(q.Get("metric"))
	if err != nil {
		writeGoalError(w, err)
		return
	}
	period := goal.PeriodMonthly
	if p := q.Get("period"); p != "" {
		if period, err = goal.ParsePeriodKind(p); err != nil {
			writeGoalError(w, err)
			return
		}
	}

	s, err := h.Engine.Suggest(r.Context(), metric, period)
	if err != nil {
		writeGoalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// ListTemplates returns the template catalog.
// GET /api/templates
func (h *Handler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("grouped") == "true" {
		writeJSON(w, http.StatusOK, goal.TemplatesByCategory())
		return
	}
	writeJSON(w, http.StatusOK, goal.Templates())
}

// =============================================================================
// EVALUATION HANDLERS
// =============================================================================

// RunCycle runs an evaluation cycle immediately.
// POST /api/cycle
func (h *Handler) RunCycle(w http.ResponseWriter, r *http.Request) {
	res, err := h.Engine.RunCycle(r.Context())
	if err != nil {
		writeGoalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCycleResponse(res))
}

// GetLeaderboard returns score and ranking from the last cycle.
// GET /api/leaderboard
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	last := h.Engine.LastCycle()
	if last == nil {
		writeJSON(w, http.StatusOK, LeaderboardResponse{Entries: []rewards.Entry{}})
		return
	}
	at := last.StartedAt
	writeJSON(w, http.StatusOK, LeaderboardResponse{
		Score:       last.Score,
		Entries:     last.Leaderboard,
		EvaluatedAt: &at,
	})
}

// ListNotifications returns the notification feed, newest first.
// GET /api/notifications?metric=orders&limit=20
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var metric goal.MetricKind
	if m := q.Get("metric"); m != "" {
		parsed, err := goal.ParseMetricKind(m)
		if err != nil {
			writeGoalError(w, err)
			return
		}
		metric = parsed
	}

	items, err := h.Store.Notifications(r.Context(), metric, queryInt(q.Get("limit"), 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load notifications", err)
		return
	}
	if items == nil {
		items = []goal.Notification{}
	}
	writeJSON(w, http.StatusOK, items)
}

// =============================================================================
// ORDER HANDLERS
// =============================================================================

// ListOrders returns the most recent orders.
// GET /api/orders?limit=100
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Store.RecentOrders(r.Context(), queryInt(r.URL.Query().Get("limit"), 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list orders", err)
		return
	}
	dtos := make([]OrderDTO, len(orders))
	for i, o := range orders {
		at := o.CreatedAt
		dtos[i] = OrderDTO{ID: o.ID, CreatedAt: &at, Total: o.Total}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateOrders ingests orders. Missing IDs and timestamps are filled in.
// POST /api/orders
func (h *Handler) CreateOrders(w http.ResponseWriter, r *http.Request) {
	var req CreateOrdersRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON", err)
		return
	}
	if len(req.Orders) == 0 {
		writeError(w, http.StatusBadRequest, "No orders given", nil)
		return
	}

	now := h.Engine.Now()
	orders := make([]goal.Order, len(req.Orders))
	for i, o := range req.Orders {
		order := goal.Order{ID: o.ID, CreatedAt: now, Total: o.Total}
		if order.ID == "" {
			order.ID = uuid.NewString()
		}
		if o.CreatedAt != nil {
			order.CreatedAt = *o.CreatedAt
		}
		orders[i] = order
	}

	if err := h.Store.AddOrders(r.Context(), orders...); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to store orders", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"created": len(orders)})
}

// =============================================================================
// HELPERS
// =============================================================================

func metricParam(w http.ResponseWriter, r *http.Request) (goal.MetricKind, bool) {
	metric, err := goal.ParseMetricKind(chi.URLParam(r, "metric"))
	if err != nil {
		writeGoalError(w, err)
		return "", false
	}
	return metric, true
}

func toGoalDTO(g goal.GoalDefinition, p *goal.Progress, f *goal.ForecastResult) GoalDTO {
	return GoalDTO{
		Metric:        g.Metric,
		Target:        g.Target,
		Period:        g.Period,
		StartDate:     goal.DateKey(g.Interval.Start),
		EndDate:       goal.DateKey(g.Interval.End),
		Level:         g.Level,
		CreatedAt:     g.CreatedAt,
		Notifications: g.Notifications,
		Progress:      p,
		Forecast:      f,
		HistoryDays:   len(g.History),
	}
}

func toCycleResponse(res *goal.CycleResult) CycleResponse {
	out := CycleResponse{
		StartedAt:     res.StartedAt,
		Goals:         len(res.Statuses),
		Notifications: []goal.Notification{},
		Score:         res.Score,
	}
	for _, st := range res.Statuses {
		out.Notifications = append(out.Notifications, st.Notifications...)
		if st.SnapshotRecorded {
			out.Snapshots++
		}
	}
	return out
}

func queryInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// writeGoalError maps goal errors to HTTP status codes.
func writeGoalError(w http.ResponseWriter, err error) {
	switch {
	case goal.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Goal not found", err)
	case goal.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	case errors.Is(err, goal.ErrCycleInProgress):
		writeError(w, http.StatusConflict, "Evaluation cycle already running", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func notFound(w http.ResponseWriter, what string) {
	writeError(w, http.StatusNotFound, fmt.Sprintf("%s not found", what), nil)
}
