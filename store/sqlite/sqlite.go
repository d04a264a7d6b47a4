/*
Package sqlite provides a SQLite-backed implementation of the goal interfaces.

PURPOSE:
  Durable storage for everything the engine persists: goal definitions,
  the daily snapshot history, notification dedup markers, the order table
  the evaluator reads from, and a notification feed for the API.

INTERFACES IMPLEMENTED:
  goal.GoalStore:       Goal definitions + snapshot history
  goal.MarkerStore:     Notification dedup markers
  goal.OrderRepository: Date-range order queries
  goal.Notifier:        Appends to the notification feed

KEY TABLES:
  goals:                One row per metric; data_json is a versioned record
                        written by factory.GoalFactory
  goal_snapshots:       Append-only history, UNIQUE(metric, date)
  notification_markers: marker_key ("orders:50") -> fired_at
  orders:               Transactional orders, indexed by created_at
  notifications:        Emitted notifications, newest first

FIRST-WRITE-WINS:
  Snapshots are inserted with INSERT OR IGNORE against the
  (metric, date) unique index, so a second engine writing the same day
  cannot overwrite the first value.

TIMESTAMPS:
  Stored as fixed-width UTC text (tsLayout) so range predicates on
  created_at compare correctly as strings.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety plus a single open connection, which
  also keeps ":memory:" databases alive across calls.

USAGE:
  store, err := sqlite.New("./data/goals.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := goal.NewEngine(goal.EngineConfig{Store: store, Orders: store, Sink: store})

SEE ALSO:
  - goal/store.go: Interface definitions
  - goal/store/memory.go: In-memory implementation for testing
  - factory/goal.go: Goal record schema versions
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/warp/goal-engine/factory"
	"github.com/warp/goal-engine/goal"
)

const tsLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements all goal storage interfaces using SQLite.
type Store struct {
	db      *sql.DB
	mu      sync.RWMutex
	factory *factory.GoalFactory

	// Logger receives feed write failures. Defaults to the standard logger.
	Logger logrus.FieldLogger
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, factory: factory.NewGoalFactory(), Logger: logrus.StandardLogger()}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// SetLocation sets the zone used to interpret stored goal dates.
func (s *Store) SetLocation(loc *time.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factory.Location = loc
}

// SetClock sets the clock that anchors legacy goal records to a period.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factory.Now = now
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Goal definitions, one per metric
	CREATE TABLE IF NOT EXISTS goals (
		metric TEXT PRIMARY KEY,
		data_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Daily progress history (append-only, first write wins)
	CREATE TABLE IF NOT EXISTS goal_snapshots (
		metric TEXT NOT NULL,
		date TEXT NOT NULL,
		progress REAL NOT NULL,
		value TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_snapshots_metric_date
		ON goal_snapshots(metric, date);

	-- Notification dedup markers
	CREATE TABLE IF NOT EXISTS notification_markers (
		marker_key TEXT PRIMARY KEY,
		metric TEXT NOT NULL,
		kind TEXT NOT NULL,
		threshold INTEGER NOT NULL DEFAULT 0,
		fired_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_markers_metric
		ON notification_markers(metric);

	-- Orders (read by the progress evaluator)
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		total TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_orders_created_at
		ON orders(created_at);

	-- Notification feed
	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		metric TEXT NOT NULL,
		message TEXT NOT NULL,
		severity TEXT NOT NULL,
		milestone INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_created_at
		ON notifications(created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// GOAL STORE (goal.GoalStore interface)
// =============================================================================

// SaveGoal upserts the definition. History lives in goal_snapshots and is
// not touched.
const upsertGoalQuery = `
	INSERT INTO goals (metric, data_json, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(metric) DO UPDATE SET
		data_json = excluded.data_json,
		updated_at = excluded.updated_at
`

func (s *Store) SaveGoal(ctx context.Context, g goal.GoalDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g.History = nil
	data, err := s.factory.Encode(g)
	if err != nil {
		return fmt.Errorf("failed to encode goal: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, upsertGoalQuery, g.Metric, string(data), formatTime(time.Now())); err != nil {
		return fmt.Errorf("failed to save goal: %w", err)
	}
	return nil
}

// ImportRaw stores a goal record of any supported schema version under
// metric, after migrating it to the current one.
func (s *Store) ImportRaw(ctx context.Context, metric goal.MetricKind, raw []byte) (*goal.GoalDefinition, error) {
	g, err := s.factory.Migrate(metric, raw)
	if err != nil {
		return nil, err
	}
	if err := s.SaveGoal(ctx, *g); err != nil {
		return nil, err
	}
	return g, nil
}

// GetGoal retrieves a goal with its history.
func (s *Store) GetGoal(ctx context.Context, metric goal.MetricKind) (*goal.GoalDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data string
	err := s.db.QueryRowContext(ctx, "SELECT data_json FROM goals WHERE metric = ?", metric).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goal.ErrGoalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load goal: %w", err)
	}
	return s.hydrate(ctx, metric, data)
}

// ListGoals returns all goals ordered by metric.
func (s *Store) ListGoals(ctx context.Context) ([]goal.GoalDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT metric, data_json FROM goals ORDER BY metric")
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}

	type record struct {
		metric goal.MetricKind
		data   string
	}
	var records []record
	for rows.Next() {
		var r record
		if err := rows.Scan(&r.metric, &r.data); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	goals := make([]goal.GoalDefinition, 0, len(records))
	for _, r := range records {
		g, err := s.hydrate(ctx, r.metric, r.data)
		if err != nil {
			return nil, err
		}
		goals = append(goals, *g)
	}
	return goals, nil
}

func (s *Store) hydrate(ctx context.Context, metric goal.MetricKind, data string) (*goal.GoalDefinition, error) {
	g, err := s.factory.Migrate(metric, []byte(data))
	if err != nil {
		return nil, fmt.Errorf("goal %s: %w", metric, err)
	}
	history, err := s.loadSnapshots(ctx, metric)
	if err != nil {
		return nil, err
	}
	if len(history) > 0 {
		g.History = history
	}
	return g, nil
}

func (s *Store) loadSnapshots(ctx context.Context, metric goal.MetricKind) ([]goal.ProgressSnapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT date, progress, value FROM goal_snapshots WHERE metric = ? ORDER BY date",
		metric,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var history []goal.ProgressSnapshot
	for rows.Next() {
		var snap goal.ProgressSnapshot
		var value string
		if err := rows.Scan(&snap.Date, &snap.Progress, &value); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		if snap.Value, err = decimal.NewFromString(value); err != nil {
			return nil, fmt.Errorf("failed to parse snapshot value %q for %s: %w", value, snap.Date, err)
		}
		history = append(history, snap)
	}
	return history, rows.Err()
}

// DeleteGoal removes the goal and its history.
func (s *Store) DeleteGoal(ctx context.Context, metric goal.MetricKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM goal_snapshots WHERE metric = ?", metric); err != nil {
		return fmt.Errorf("failed to delete snapshots: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM goals WHERE metric = ?", metric); err != nil {
		return fmt.Errorf("failed to delete goal: %w", err)
	}
	return tx.Commit()
}

// ReplaceGoal swaps in g within one transaction: the old snapshots and
// markers go, the goal row is upserted.
func (s *Store) ReplaceGoal(ctx context.Context, g goal.GoalDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g.History = nil
	data, err := s.factory.Encode(g)
	if err != nil {
		return fmt.Errorf("failed to encode goal: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM goal_snapshots WHERE metric = ?", g.Metric); err != nil {
		return fmt.Errorf("failed to delete snapshots: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM notification_markers WHERE metric = ?", g.Metric); err != nil {
		return fmt.Errorf("failed to clear markers: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsertGoalQuery, g.Metric, string(data), formatTime(time.Now())); err != nil {
		return fmt.Errorf("failed to save goal: %w", err)
	}
	return tx.Commit()
}

// AppendSnapshot inserts a history row unless one exists for that date.
func (s *Store) AppendSnapshot(ctx context.Context, metric goal.MetricKind, snap goal.ProgressSnapshot) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM goals WHERE metric = ?", metric).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check goal: %w", err)
	}
	if exists == 0 {
		return false, goal.ErrGoalNotFound
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO goal_snapshots (metric, date, progress, value, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, metric, snap.Date, snap.Progress, snap.Value.String(), formatTime(time.Now()))
	if err != nil {
		return false, fmt.Errorf("failed to append snapshot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// =============================================================================
// MARKER STORE (goal.MarkerStore interface)
// =============================================================================

func (s *Store) LastFired(ctx context.Context, key goal.MarkerKey) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var firedAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT fired_at FROM notification_markers WHERE marker_key = ?", key.String(),
	).Scan(&firedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read marker: %w", err)
	}
	t, err := parseTime(firedAt)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("marker %s: %w", key, err)
	}
	return t, true, nil
}

func (s *Store) RecordFired(ctx context.Context, key goal.MarkerKey, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_markers (marker_key, metric, kind, threshold, fired_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(marker_key) DO UPDATE SET fired_at = excluded.fired_at
	`, key.String(), key.Metric, key.Kind, key.Threshold, formatTime(at))
	if err != nil {
		return fmt.Errorf("failed to record marker: %w", err)
	}
	return nil
}

func (s *Store) ClearMarkers(ctx context.Context, metric goal.MetricKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM notification_markers WHERE metric = ?", metric)
	return err
}

// =============================================================================
// ORDERS (goal.OrderRepository interface)
// =============================================================================

// AddOrders inserts orders. Existing IDs are replaced.
func (s *Store) AddOrders(ctx context.Context, orders ...goal.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, "INSERT OR REPLACE INTO orders (id, created_at, total) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, o := range orders {
		if _, err := stmt.ExecContext(ctx, o.ID, formatTime(o.CreatedAt), totalText(o.Total)); err != nil {
			return fmt.Errorf("failed to insert order %s: %w", o.ID, err)
		}
	}
	return tx.Commit()
}

// QueryOrders returns orders with from <= created_at <= to.
func (s *Store) QueryOrders(ctx context.Context, from, to time.Time) ([]goal.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryOrders(ctx, `
		SELECT id, created_at, total FROM orders
		WHERE created_at >= ? AND created_at <= ?
		ORDER BY created_at ASC
	`, formatTime(from), formatTime(to))
}

// RecentOrders returns the newest orders first.
func (s *Store) RecentOrders(ctx context.Context, limit int) ([]goal.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	return s.queryOrders(ctx, "SELECT id, created_at, total FROM orders ORDER BY created_at DESC LIMIT ?", limit)
}

func (s *Store) queryOrders(ctx context.Context, query string, args ...any) ([]goal.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []goal.Order
	for rows.Next() {
		var (
			o         goal.Order
			createdAt string
			total     sql.NullString
		)
		if err := rows.Scan(&o.ID, &createdAt, &total); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		if o.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at of order %s: %w", o.ID, err)
		}
		if total.Valid {
			o.Total = total.String
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// =============================================================================
// NOTIFICATION FEED (goal.Notifier interface)
// =============================================================================

// Emit appends n to the feed. Failures are logged; Notifier has no
// acknowledgment contract.
func (s *Store) Emit(ctx context.Context, n goal.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO notifications (id, kind, metric, message, severity, milestone, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.Kind, n.Metric, n.Message, n.Severity, n.Milestone, formatTime(n.CreatedAt))
	if err != nil {
		s.Logger.WithError(err).WithFields(logrus.Fields{
			"notification": n.ID,
			"kind":         n.Kind,
		}).Error("Failed to store notification")
	}
}

// Notifications returns the newest notifications first, optionally
// filtered by metric.
func (s *Store) Notifications(ctx context.Context, metric goal.MetricKind, limit int) ([]goal.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	query := "SELECT id, kind, metric, message, severity, milestone, created_at FROM notifications"
	args := []any{}
	if metric != "" {
		query += " WHERE metric = ?"
		args = append(args, metric)
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var out []goal.Notification
	for rows.Next() {
		var n goal.Notification
		var createdAt string
		if err := rows.Scan(&n.ID, &n.Kind, &n.Metric, &n.Message, &n.Severity, &n.Milestone, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		if n.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at of notification %s: %w", n.ID, err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"goal_snapshots", "goals", "notification_markers", "orders", "notifications"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(tsLayout, s)
}

// totalText keeps numeric strings verbatim so unparseable totals survive a
// round trip and are coerced by goal.AmountOf at read time.
func totalText(v any) sql.NullString {
	switch t := v.(type) {
	case nil:
		return sql.NullString{}
	case string:
		return sql.NullString{String: strings.TrimSpace(t), Valid: true}
	}
	return sql.NullString{String: goal.AmountOf(v).String(), Valid: true}
}
