package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver, registers as "sqlite".

	"github.com/ringsync/ringsync/internal/provider"
)

const walJournalSizeLimit = 67108864 // 64 MiB WAL journal size limit

// Documented defaults for state rows that don't exist yet. A partial
// or empty database never crashes the engine; loads fall back to
// these.
const (
	DefaultMoveGoal        = 500.0
	DefaultExerciseMinutes = 30
	DefaultStandHours      = 12
	DefaultStepsGoal       = 10000
)

// Store persists all engine-owned state in an embedded SQLite database
// with WAL mode: provider connections, sync cursors, reconciled daily
// metrics, goals, personal records, streak, pending milestones, body
// state, and the last-sync-error surface.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	// defaults is the goal set returned before any goals row exists.
	// Starts at the documented constants; SetDefaultGoals overrides it
	// with configured values.
	defaults GoalSet

	// Prepared statements for repeated queries, grouped by domain.
	connStmts      connectionStatements
	cursorStmts    cursorStatements
	metricStmts    metricStatements
	goalStmts      goalStatements
	recordStmts    recordStatements
	streakStmts    streakStatements
	milestoneStmts milestoneStatements
	bodyStmts      bodyStatements
	statusStmts    statusStatements
}

type connectionStatements struct {
	get, upsert *sql.Stmt
}

type cursorStatements struct {
	get, upsert *sql.Stmt
}

type metricStatements struct {
	get, upsert *sql.Stmt
}

type goalStatements struct {
	get, upsert *sql.Stmt
}

type recordStatements struct {
	get, upsert *sql.Stmt
}

type streakStatements struct {
	get, upsert *sql.Stmt
}

type milestoneStatements struct {
	add, list, clear *sql.Stmt
}

type bodyStatements struct {
	get, saveWeight, saveWeightGoal, saveBMI *sql.Stmt
}

type statusStatements struct {
	get, set *sql.Stmt
}

// NewStore opens the database at dbPath, applies migrations, and
// prepares all repeated statements. Use ":memory:" for tests.
func NewStore(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("opening engine state database", slog.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("engine: open sqlite: %w", err)
	}

	if err := setPragmas(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(context.Background(), db, logger); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{
		db:     db,
		logger: logger,
		defaults: GoalSet{
			MoveCalories:    DefaultMoveGoal,
			ExerciseMinutes: DefaultExerciseMinutes,
			StandHours:      DefaultStandHours,
			Steps:           DefaultStepsGoal,
		},
	}

	if err := s.prepareAllStatements(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("engine: prepare statements: %w", err)
	}

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// setPragmas configures SQLite for WAL mode and safety.
func setPragmas(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	pragmas := []struct {
		sql  string
		desc string
	}{
		{"PRAGMA journal_mode = WAL", "WAL mode"},
		{"PRAGMA synchronous = FULL", "synchronous FULL"},
		{"PRAGMA foreign_keys = ON", "foreign keys"},
		{fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit), "journal size limit"},
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p.sql); err != nil {
			return fmt.Errorf("engine: set pragma %s: %w", p.desc, err)
		}

		logger.Debug("pragma set", slog.String("pragma", p.desc))
	}

	return nil
}

// --- SQL query constants, grouped by domain ---

const (
	sqlGetConnection = `SELECT connected, last_sync_at
		FROM provider_connections WHERE provider_id = ?`

	sqlUpsertConnection = `INSERT INTO provider_connections
		(provider_id, connected, last_sync_at) VALUES (?, ?, ?)
		ON CONFLICT(provider_id) DO UPDATE SET
			connected = excluded.connected,
			last_sync_at = excluded.last_sync_at`

	sqlGetCursor = `SELECT last_sync_at, initial_backfill_done
		FROM sync_cursors WHERE provider_id = ?`

	sqlUpsertCursor = `INSERT INTO sync_cursors
		(provider_id, last_sync_at, initial_backfill_done) VALUES (?, ?, ?)
		ON CONFLICT(provider_id) DO UPDATE SET
			last_sync_at = excluded.last_sync_at,
			initial_backfill_done = excluded.initial_backfill_done`
)

const (
	sqlMetricColumns = `active_calories, exercise_minutes, stand_hours, steps,
		distance_meters, heart_rate_avg, workouts_completed, last_updated`

	sqlGetMetrics = `SELECT ` + sqlMetricColumns +
		` FROM daily_metrics WHERE provider_id = ? AND date = ?`

	sqlUpsertMetrics = `INSERT INTO daily_metrics
		(provider_id, date, ` + sqlMetricColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider_id, date) DO UPDATE SET
			active_calories    = excluded.active_calories,
			exercise_minutes   = excluded.exercise_minutes,
			stand_hours        = excluded.stand_hours,
			steps              = excluded.steps,
			distance_meters    = excluded.distance_meters,
			heart_rate_avg     = excluded.heart_rate_avg,
			workouts_completed = excluded.workouts_completed,
			last_updated       = excluded.last_updated`
)

const (
	sqlGetGoals = `SELECT move_calories, exercise_minutes, stand_hours, steps
		FROM goals WHERE id = 1`

	sqlUpsertGoals = `INSERT INTO goals
		(id, move_calories, exercise_minutes, stand_hours, steps, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			move_calories    = excluded.move_calories,
			exercise_minutes = excluded.exercise_minutes,
			stand_hours      = excluded.stand_hours,
			steps            = excluded.steps,
			updated_at       = excluded.updated_at`

	sqlGetRecords = `SELECT max_daily_calories, max_daily_steps, max_weekly_workouts
		FROM personal_records WHERE id = 1`

	sqlUpsertRecords = `INSERT INTO personal_records
		(id, max_daily_calories, max_daily_steps, max_weekly_workouts)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			max_daily_calories  = excluded.max_daily_calories,
			max_daily_steps     = excluded.max_daily_steps,
			max_weekly_workouts = excluded.max_weekly_workouts`

	sqlGetStreak = `SELECT current_days FROM streak WHERE id = 1`

	sqlUpsertStreak = `INSERT INTO streak (id, current_days) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET current_days = excluded.current_days`
)

const (
	sqlAddMilestone = `INSERT INTO pending_milestones
		(id, milestone_id, days, reward, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(milestone_id) DO NOTHING`

	sqlListMilestones = `SELECT id, milestone_id, days, reward, created_at
		FROM pending_milestones ORDER BY created_at`

	sqlClearMilestones = `DELETE FROM pending_milestones`
)

const (
	sqlGetBody = `SELECT weight_kg, weight_goal_kg, bmi, updated_at
		FROM body_state WHERE id = 1`

	sqlSaveWeight = `INSERT INTO body_state (id, weight_kg, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			weight_kg = excluded.weight_kg, updated_at = excluded.updated_at`

	sqlSaveWeightGoal = `INSERT INTO body_state (id, weight_goal_kg, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			weight_goal_kg = excluded.weight_goal_kg, updated_at = excluded.updated_at`

	sqlSaveBMI = `INSERT INTO body_state (id, bmi, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			bmi = excluded.bmi, updated_at = excluded.updated_at`

	sqlGetStatus = `SELECT last_error, last_attempt_at FROM sync_status WHERE id = 1`

	sqlSetStatus = `INSERT INTO sync_status (id, last_error, last_attempt_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_error = excluded.last_error,
			last_attempt_at = excluded.last_attempt_at`
)

// prepareAllStatements prepares every repeated statement up front so a
// schema mismatch fails at startup, not mid-sync.
func (s *Store) prepareAllStatements(ctx context.Context) error {
	prep := func(query string) (*sql.Stmt, error) {
		return s.db.PrepareContext(ctx, query)
	}

	var err error

	if s.connStmts.get, err = prep(sqlGetConnection); err != nil {
		return err
	}

	if s.connStmts.upsert, err = prep(sqlUpsertConnection); err != nil {
		return err
	}

	if s.cursorStmts.get, err = prep(sqlGetCursor); err != nil {
		return err
	}

	if s.cursorStmts.upsert, err = prep(sqlUpsertCursor); err != nil {
		return err
	}

	if s.metricStmts.get, err = prep(sqlGetMetrics); err != nil {
		return err
	}

	if s.metricStmts.upsert, err = prep(sqlUpsertMetrics); err != nil {
		return err
	}

	if s.goalStmts.get, err = prep(sqlGetGoals); err != nil {
		return err
	}

	if s.goalStmts.upsert, err = prep(sqlUpsertGoals); err != nil {
		return err
	}

	if s.recordStmts.get, err = prep(sqlGetRecords); err != nil {
		return err
	}

	if s.recordStmts.upsert, err = prep(sqlUpsertRecords); err != nil {
		return err
	}

	if s.streakStmts.get, err = prep(sqlGetStreak); err != nil {
		return err
	}

	if s.streakStmts.upsert, err = prep(sqlUpsertStreak); err != nil {
		return err
	}

	if s.milestoneStmts.add, err = prep(sqlAddMilestone); err != nil {
		return err
	}

	if s.milestoneStmts.list, err = prep(sqlListMilestones); err != nil {
		return err
	}

	if s.milestoneStmts.clear, err = prep(sqlClearMilestones); err != nil {
		return err
	}

	if s.bodyStmts.get, err = prep(sqlGetBody); err != nil {
		return err
	}

	if s.bodyStmts.saveWeight, err = prep(sqlSaveWeight); err != nil {
		return err
	}

	if s.bodyStmts.saveWeightGoal, err = prep(sqlSaveWeightGoal); err != nil {
		return err
	}

	if s.bodyStmts.saveBMI, err = prep(sqlSaveBMI); err != nil {
		return err
	}

	if s.statusStmts.get, err = prep(sqlGetStatus); err != nil {
		return err
	}

	if s.statusStmts.set, err = prep(sqlSetStatus); err != nil {
		return err
	}

	return nil
}

// --- Connections ---

// Connection loads the connection record for a provider. A provider
// never seen before yields the default disconnected record.
func (s *Store) Connection(ctx context.Context, id provider.ID) (ProviderConnection, error) {
	conn := ProviderConnection{Provider: id}

	var (
		connected int
		lastSync  int64
	)

	err := s.connStmts.get.QueryRowContext(ctx, string(id)).Scan(&connected, &lastSync)
	if errors.Is(err, sql.ErrNoRows) {
		return conn, nil
	}

	if err != nil {
		return conn, fmt.Errorf("engine: load connection %s: %w", id, err)
	}

	conn.Connected = connected != 0
	conn.LastSyncAt = unixTime(lastSync)

	return conn, nil
}

// SaveConnection upserts a connection record.
func (s *Store) SaveConnection(ctx context.Context, conn ProviderConnection) error {
	_, err := s.connStmts.upsert.ExecContext(ctx,
		string(conn.Provider), boolInt(conn.Connected), conn.LastSyncAt.Unix())
	if err != nil {
		return fmt.Errorf("engine: save connection %s: %w", conn.Provider, err)
	}

	return nil
}

// --- Cursors ---

// Cursor loads the sync cursor for a provider, defaulting to the
// zero cursor (no sync yet, bootstrap pending) when missing.
func (s *Store) Cursor(ctx context.Context, id provider.ID) (SyncCursor, error) {
	cur := SyncCursor{Provider: id}

	var (
		lastSync int64
		done     int
	)

	err := s.cursorStmts.get.QueryRowContext(ctx, string(id)).Scan(&lastSync, &done)
	if errors.Is(err, sql.ErrNoRows) {
		return cur, nil
	}

	if err != nil {
		return cur, fmt.Errorf("engine: load cursor %s: %w", id, err)
	}

	cur.LastSyncAt = unixTime(lastSync)
	cur.InitialBackfillDone = done != 0

	return cur, nil
}

// SaveCursor upserts a sync cursor.
func (s *Store) SaveCursor(ctx context.Context, cur SyncCursor) error {
	_, err := s.cursorStmts.upsert.ExecContext(ctx,
		string(cur.Provider), cur.LastSyncAt.Unix(), boolInt(cur.InitialBackfillDone))
	if err != nil {
		return fmt.Errorf("engine: save cursor %s: %w", cur.Provider, err)
	}

	return nil
}

// --- Daily metrics ---

// DailyMetrics loads the cached reconciled snapshot for a provider-day,
// or nil when none is cached.
func (s *Store) DailyMetrics(ctx context.Context, id provider.ID, date string) (*DailyMetrics, error) {
	m := DailyMetrics{Provider: id, Date: date}

	var lastUpdated int64

	err := s.metricStmts.get.QueryRowContext(ctx, string(id), date).Scan(
		&m.ActiveCalories, &m.ExerciseMinutes, &m.StandHours, &m.Steps,
		&m.DistanceMeters, &m.HeartRateAvg, &m.WorkoutsCompleted, &lastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("engine: load metrics %s/%s: %w", id, date, err)
	}

	m.LastUpdated = unixTime(lastUpdated)

	return &m, nil
}

// SaveDailyMetrics replaces the cached snapshot for the record's
// provider-day wholesale.
func (s *Store) SaveDailyMetrics(ctx context.Context, m *DailyMetrics) error {
	_, err := s.metricStmts.upsert.ExecContext(ctx,
		string(m.Provider), m.Date,
		m.ActiveCalories, m.ExerciseMinutes, m.StandHours, m.Steps,
		m.DistanceMeters, m.HeartRateAvg, m.WorkoutsCompleted, m.LastUpdated.Unix())
	if err != nil {
		return fmt.Errorf("engine: save metrics %s/%s: %w", m.Provider, m.Date, err)
	}

	return nil
}

// --- Goals ---

// SetDefaultGoals replaces the fallback goal set returned while no
// goals row exists. Invalid sets are ignored so a corrupt config can
// never disable the documented defaults. Once the provider reports
// goals or the user sets them, the stored row wins.
func (s *Store) SetDefaultGoals(g GoalSet) {
	if !g.Valid() {
		return
	}

	s.defaults = g
}

// Goals loads the stored goal set, falling back to the configured (or
// documented) defaults when no row exists.
func (s *Store) Goals(ctx context.Context) (GoalSet, error) {
	g := s.defaults

	err := s.goalStmts.get.QueryRowContext(ctx).Scan(
		&g.MoveCalories, &g.ExerciseMinutes, &g.StandHours, &g.Steps)
	if errors.Is(err, sql.ErrNoRows) {
		return g, nil
	}

	if err != nil {
		return g, fmt.Errorf("engine: load goals: %w", err)
	}

	return g, nil
}

// SaveGoals replaces the stored goal set.
func (s *Store) SaveGoals(ctx context.Context, g GoalSet, now time.Time) error {
	_, err := s.goalStmts.upsert.ExecContext(ctx,
		g.MoveCalories, g.ExerciseMinutes, g.StandHours, g.Steps, now.Unix())
	if err != nil {
		return fmt.Errorf("engine: save goals: %w", err)
	}

	return nil
}

// --- Personal records ---

// Records loads the stored personal-record maxima (zero when missing).
func (s *Store) Records(ctx context.Context) (PersonalRecords, error) {
	var r PersonalRecords

	err := s.recordStmts.get.QueryRowContext(ctx).Scan(
		&r.MaxDailyCalories, &r.MaxDailySteps, &r.MaxWeeklyWorkouts)
	if errors.Is(err, sql.ErrNoRows) {
		return r, nil
	}

	if err != nil {
		return r, fmt.Errorf("engine: load records: %w", err)
	}

	return r, nil
}

// SaveRecords replaces the stored maxima. Monotonicity is the
// detector's responsibility; the store persists what it is given.
func (s *Store) SaveRecords(ctx context.Context, r PersonalRecords) error {
	_, err := s.recordStmts.upsert.ExecContext(ctx,
		r.MaxDailyCalories, r.MaxDailySteps, r.MaxWeeklyWorkouts)
	if err != nil {
		return fmt.Errorf("engine: save records: %w", err)
	}

	return nil
}

// --- Streak ---

// Streak loads the stored streak day count (zero when missing).
func (s *Store) Streak(ctx context.Context) (int, error) {
	var days int

	err := s.streakStmts.get.QueryRowContext(ctx).Scan(&days)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("engine: load streak: %w", err)
	}

	return days, nil
}

// SaveStreak replaces the stored streak day count.
func (s *Store) SaveStreak(ctx context.Context, days int) error {
	if _, err := s.streakStmts.upsert.ExecContext(ctx, days); err != nil {
		return fmt.Errorf("engine: save streak: %w", err)
	}

	return nil
}

// --- Pending milestones ---

// AddPendingMilestone queues a milestone event for one-time
// presentation. Duplicate milestone IDs are ignored, so repeated
// detection of the same crossing cannot double-queue.
func (s *Store) AddPendingMilestone(ctx context.Context, ev MilestoneEvent) error {
	_, err := s.milestoneStmts.add.ExecContext(ctx,
		ev.ID, ev.MilestoneID, ev.Days, ev.Reward, ev.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("engine: add milestone %s: %w", ev.MilestoneID, err)
	}

	return nil
}

// PendingMilestones lists queued milestone events, oldest first.
func (s *Store) PendingMilestones(ctx context.Context) ([]MilestoneEvent, error) {
	rows, err := s.milestoneStmts.list.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: list milestones: %w", err)
	}
	defer rows.Close()

	var out []MilestoneEvent

	for rows.Next() {
		var (
			ev      MilestoneEvent
			created int64
		)

		if err := rows.Scan(&ev.ID, &ev.MilestoneID, &ev.Days, &ev.Reward, &created); err != nil {
			return nil, fmt.Errorf("engine: scan milestone: %w", err)
		}

		ev.CreatedAt = unixTime(created)
		out = append(out, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("engine: iterate milestones: %w", err)
	}

	return out, nil
}

// ClearPendingMilestones removes all queued milestone events after the
// presentation layer has shown them.
func (s *Store) ClearPendingMilestones(ctx context.Context) error {
	if _, err := s.milestoneStmts.clear.ExecContext(ctx); err != nil {
		return fmt.Errorf("engine: clear milestones: %w", err)
	}

	return nil
}

// --- Body state ---

// BodyState is the persisted weight/BMI snapshot. Pointer fields are
// nil when never recorded.
type BodyState struct {
	WeightKg     *float64
	WeightGoalKg *float64
	BMI          *float64
	UpdatedAt    time.Time
}

// Body loads the persisted body state (empty when missing).
func (s *Store) Body(ctx context.Context) (BodyState, error) {
	var (
		b       BodyState
		updated int64
	)

	err := s.bodyStmts.get.QueryRowContext(ctx).Scan(&b.WeightKg, &b.WeightGoalKg, &b.BMI, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return b, nil
	}

	if err != nil {
		return b, fmt.Errorf("engine: load body state: %w", err)
	}

	b.UpdatedAt = unixTime(updated)

	return b, nil
}

// SaveWeight records the latest normalized weight.
func (s *Store) SaveWeight(ctx context.Context, kg float64, now time.Time) error {
	if _, err := s.bodyStmts.saveWeight.ExecContext(ctx, kg, now.Unix()); err != nil {
		return fmt.Errorf("engine: save weight: %w", err)
	}

	return nil
}

// SaveWeightGoal records the user's target weight.
func (s *Store) SaveWeightGoal(ctx context.Context, kg float64, now time.Time) error {
	if _, err := s.bodyStmts.saveWeightGoal.ExecContext(ctx, kg, now.Unix()); err != nil {
		return fmt.Errorf("engine: save weight goal: %w", err)
	}

	return nil
}

// SaveBMI records the latest BMI reading.
func (s *Store) SaveBMI(ctx context.Context, bmi float64, now time.Time) error {
	if _, err := s.bodyStmts.saveBMI.ExecContext(ctx, bmi, now.Unix()); err != nil {
		return fmt.Errorf("engine: save bmi: %w", err)
	}

	return nil
}

// --- Sync status ---

// SyncStatus is the externally observable outcome of the last sync:
// an error string (empty on success) and the attempt time.
type SyncStatus struct {
	LastError     string
	LastAttemptAt time.Time
}

// Status loads the last sync outcome (empty when no sync has run).
func (s *Store) Status(ctx context.Context) (SyncStatus, error) {
	var (
		st      SyncStatus
		attempt int64
	)

	err := s.statusStmts.get.QueryRowContext(ctx).Scan(&st.LastError, &attempt)
	if errors.Is(err, sql.ErrNoRows) {
		return st, nil
	}

	if err != nil {
		return st, fmt.Errorf("engine: load sync status: %w", err)
	}

	st.LastAttemptAt = unixTime(attempt)

	return st, nil
}

// SetStatus records the outcome of a sync attempt.
func (s *Store) SetStatus(ctx context.Context, lastError string, at time.Time) error {
	if _, err := s.statusStmts.set.ExecContext(ctx, lastError, at.Unix()); err != nil {
		return fmt.Errorf("engine: save sync status: %w", err)
	}

	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}

	return 0
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}

	return time.Unix(sec, 0)
}
