// Package store is the sqlite persistence layer: reminder instances, user
// profiles, medication schedules and the sleep/hydration logs the chat flows
// write. One database file, WAL mode, single writer.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"vitabot/internal/plan"
	"vitabot/internal/profile"
	"vitabot/internal/reminder"
	logx "vitabot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means driver default
}

type Store struct {
	db  *sql.DB
	log logx.Logger
}

func Open(cfg Config, log logx.Logger) (*Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("store: path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if dir := filepath.Dir(cfg.Path); dir != "." && !strings.HasPrefix(cfg.Path, ":") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	s := &Store{db: db, log: log}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- reminder.Store ----

func (s *Store) MaterializeIfAbsent(ctx context.Context, userID int64, kind reminder.Kind, targetUTC time.Time, payload reminder.Payload) (bool, error) {
	target := targetUTC.UnixMilli()
	pl := payload.Encode()

	var from, to int64
	var query string
	var args []any
	if kind == reminder.KindMedication {
		// Medication de-dup must survive the scheduler computing tomorrow's
		// slot before today's fires: match any pending row with the same
		// payload inside [midnight of the target day, +2d).
		dayStart := targetUTC.Truncate(24 * time.Hour)
		from = dayStart.UnixMilli()
		to = dayStart.Add(reminder.MedicationDedupWindow).UnixMilli()
		query = `SELECT COUNT(1) FROM reminders
		         WHERE user_id = ? AND kind = ? AND completed = 0
		           AND scheduled_for >= ? AND scheduled_for < ? AND payload = ?`
		args = []any{userID, string(kind), from, to, pl}
	} else {
		from = targetUTC.Add(-reminder.DedupWindow).UnixMilli()
		to = targetUTC.Add(reminder.DedupWindow).UnixMilli()
		query = `SELECT COUNT(1) FROM reminders
		         WHERE user_id = ? AND kind = ? AND completed = 0
		           AND scheduled_for >= ? AND scheduled_for <= ?`
		args = []any{userID, string(kind), from, to}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO reminders(user_id, kind, payload, scheduled_for, completed, attempt, created_at)
		 VALUES(?,?,?,?,0,0,?)`,
		userID, string(kind), pl, target, time.Now().UnixMilli(),
	); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (s *Store) SelectDue(ctx context.Context, nowUTC time.Time, lookahead, lookbehind time.Duration) ([]reminder.Instance, error) {
	from := nowUTC.Add(-lookbehind).UnixMilli()
	to := nowUTC.Add(lookahead).UnixMilli()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, kind, payload, scheduled_for, completed, attempt, created_at
		 FROM reminders
		 WHERE completed = 0 AND scheduled_for >= ? AND scheduled_for <= ?
		 ORDER BY scheduled_for`,
		from, to,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reminder.Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func scanInstance(rows *sql.Rows) (reminder.Instance, error) {
	var (
		inst      reminder.Instance
		kind, pl  string
		completed int
		schedMS   int64
		createdMS int64
	)
	if err := rows.Scan(&inst.ID, &inst.UserID, &kind, &pl, &schedMS, &completed, &inst.Attempt, &createdMS); err != nil {
		return reminder.Instance{}, err
	}
	inst.Kind = reminder.Kind(kind)
	inst.Completed = completed != 0
	inst.ScheduledFor = time.UnixMilli(schedMS).UTC()
	inst.CreatedAt = time.UnixMilli(createdMS).UTC()
	payload, err := reminder.DecodePayload(pl)
	if err != nil {
		// A malformed payload should not sink the whole selection.
		payload = reminder.Payload{}
	}
	inst.Payload = payload
	return inst, nil
}

// completeWhere flips completed on pending rows only, which makes every mark
// operation an idempotent no-op on rows already completed.
func (s *Store) MarkDispatched(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET completed = 1 WHERE id = ? AND completed = 0`, id)
	return err
}

func (s *Store) MarkRescheduled(ctx context.Context, id int64, newUTC time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET scheduled_for = ?, attempt = attempt + 1
		 WHERE id = ? AND completed = 0`,
		newUTC.UnixMilli(), id)
	return err
}

func (s *Store) MarkTerminallyFailed(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET completed = 1 WHERE id = ? AND completed = 0`, id)
	return err
}

func (s *Store) CompleteByID(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET completed = 1 WHERE id = ? AND completed = 0`, id)
	return err
}

func (s *Store) CreateAdhoc(ctx context.Context, userID int64, kind reminder.Kind, at time.Time, payload reminder.Payload) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders(user_id, kind, payload, scheduled_for, completed, attempt, created_at)
		 VALUES(?,?,?,?,0,0,?)`,
		userID, string(kind), payload.Encode(), at.UnixMilli(), time.Now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetReminder loads one instance by id (used by callback handlers).
func (s *Store) GetReminder(ctx context.Context, id int64) (reminder.Instance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, kind, payload, scheduled_for, completed, attempt, created_at
		 FROM reminders WHERE id = ?`, id)
	if err != nil {
		return reminder.Instance{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return reminder.Instance{}, err
		}
		return reminder.Instance{}, reminder.ErrNotFound
	}
	return scanInstance(rows)
}

// ---- users ----

var ErrUserNotFound = errors.New("user not found")

func (s *Store) GetUser(ctx context.Context, telegramID int64) (profile.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT telegram_id, timezone, wake_minutes, sleep_goal_minutes, sleep_goal_cycles,
		       sleep_debt_minutes, current_bedtime, average_bedtime,
		       hydration_goal_ml, hydration_start, hydration_end,
		       height_cm, weight_kg, age, sex, modules, created_at, updated_at
		FROM users WHERE telegram_id = ?`, telegramID)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return profile.User{}, ErrUserNotFound
	}
	return u, err
}

func (s *Store) ListUsers(ctx context.Context) ([]profile.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT telegram_id, timezone, wake_minutes, sleep_goal_minutes, sleep_goal_cycles,
		       sleep_debt_minutes, current_bedtime, average_bedtime,
		       hydration_goal_ml, hydration_start, hydration_end,
		       height_cm, weight_kg, age, sex, modules, created_at, updated_at
		FROM users ORDER BY telegram_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []profile.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanUser(r rowScanner) (profile.User, error) {
	var (
		u                          profile.User
		wake                       int
		curBed, avgBed, hydS, hydE sql.NullInt64
		modulesJSON                string
		createdMS, updatedMS       int64
	)
	err := r.Scan(&u.TelegramID, &u.Timezone, &wake, &u.SleepGoalMinutes, &u.SleepGoalCycles,
		&u.SleepDebtMinutes, &curBed, &avgBed,
		&u.HydrationGoalML, &hydS, &hydE,
		&u.HeightCM, &u.WeightKG, &u.Age, &u.Sex, &modulesJSON, &createdMS, &updatedMS)
	if err != nil {
		return profile.User{}, err
	}
	u.WakeTime = plan.FromMinutes(wake)
	u.CurrentBedtime = nullTime(curBed)
	u.AverageBedtime = nullTime(avgBed)
	u.HydrationStart = nullTime(hydS)
	u.HydrationEnd = nullTime(hydE)
	u.CreatedAt = time.UnixMilli(createdMS).UTC()
	u.UpdatedAt = time.UnixMilli(updatedMS).UTC()

	var mods []profile.Module
	if err := json.Unmarshal([]byte(modulesJSON), &mods); err != nil {
		mods = nil
	}
	u.Modules = mods
	return u, nil
}

func nullTime(v sql.NullInt64) *plan.TimeOfDay {
	if !v.Valid {
		return nil
	}
	t := plan.FromMinutes(int(v.Int64))
	return &t
}

// CreateUserIfAbsent inserts a fresh profile with defaults; reports whether a
// row was created.
func (s *Store) CreateUserIfAbsent(ctx context.Context, telegramID int64, timezone string) (bool, error) {
	now := time.Now().UnixMilli()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users(telegram_id, timezone, created_at, updated_at)
		VALUES(?,?,?,?)
		ON CONFLICT(telegram_id) DO NOTHING`,
		telegramID, timezone, now, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Store) SaveUser(ctx context.Context, u *profile.User) error {
	mods, err := json.Marshal(profile.NormalizeModules(u.Modules))
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE users SET timezone=?, wake_minutes=?, sleep_goal_minutes=?, sleep_goal_cycles=?,
		       sleep_debt_minutes=?, current_bedtime=?, average_bedtime=?,
		       hydration_goal_ml=?, hydration_start=?, hydration_end=?,
		       height_cm=?, weight_kg=?, age=?, sex=?, modules=?, updated_at=?
		WHERE telegram_id=?`,
		u.Timezone, u.WakeTime.Minutes(), u.SleepGoalMinutes, u.SleepGoalCycles,
		u.SleepDebtMinutes, minutesOrNil(u.CurrentBedtime), minutesOrNil(u.AverageBedtime),
		u.HydrationGoalML, minutesOrNil(u.HydrationStart), minutesOrNil(u.HydrationEnd),
		u.HeightCM, u.WeightKG, u.Age, u.Sex, string(mods), time.Now().UnixMilli(),
		u.TelegramID)
	return err
}

// UpdateSleepDebt adds delta to the stored debt, clamped at zero.
func (s *Store) UpdateSleepDebt(ctx context.Context, telegramID int64, delta int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET sleep_debt_minutes = MAX(0, sleep_debt_minutes + ?), updated_at = ?
		WHERE telegram_id = ?`,
		delta, time.Now().UnixMilli(), telegramID)
	return err
}

func minutesOrNil(t *plan.TimeOfDay) any {
	if t == nil {
		return nil
	}
	return t.Minutes()
}

// ---- medication schedules ----

func (s *Store) ListMedications(ctx context.Context, userID int64) ([]profile.MedicationSchedule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, dosage, intake_minutes, notes, created_at
		FROM medication_schedules WHERE user_id = ? ORDER BY intake_minutes`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []profile.MedicationSchedule
	for rows.Next() {
		var (
			m         profile.MedicationSchedule
			intake    int
			createdMS int64
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.Name, &m.Dosage, &intake, &m.Notes, &createdMS); err != nil {
			return nil, err
		}
		m.IntakeTime = plan.FromMinutes(intake)
		m.CreatedAt = time.UnixMilli(createdMS).UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

// AddMedication inserts one intake row. The scheduler only ever reads
// schedules; this is the write seam for the medication-management side
// (admin tooling, future conversation flows) and for seeding in tests.
func (s *Store) AddMedication(ctx context.Context, m *profile.MedicationSchedule) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO medication_schedules(user_id, name, dosage, intake_minutes, notes, created_at)
		VALUES(?,?,?,?,?,?)`,
		m.UserID, m.Name, m.Dosage, m.IntakeTime.Minutes(), m.Notes, time.Now().UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ---- sleep logs ----

type SleepLog struct {
	ID              int64
	UserID          int64
	LogDate         string // YYYY-MM-DD in the user's local day
	Bedtime         *plan.TimeOfDay
	WakeTime        *plan.TimeOfDay
	DurationMinutes int
	Rating          *int
	DebtDelta       int
	CreatedAt       time.Time
}

func (s *Store) AppendSleepLog(ctx context.Context, l *SleepLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sleep_logs(user_id, log_date, bedtime_minutes, wake_minutes, duration_minutes, rating, debt_delta, created_at)
		VALUES(?,?,?,?,?,?,?,?)`,
		l.UserID, l.LogDate, minutesOrNil(l.Bedtime), minutesOrNil(l.WakeTime),
		l.DurationMinutes, intOrNil(l.Rating), l.DebtDelta, time.Now().UnixMilli())
	return err
}

func intOrNil(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

// ---- hydration events ----

func (s *Store) AddHydrationEvent(ctx context.Context, userID int64, planDate string, volumeML int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hydration_events(user_id, plan_date, volume_ml, created_at)
		VALUES(?,?,?,?)`,
		userID, planDate, volumeML, time.Now().UnixMilli())
	return err
}

// HydrationTotal sums the water logged for one local day.
func (s *Store) HydrationTotal(ctx context.Context, userID int64, planDate string) (int, error) {
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT SUM(volume_ml) FROM hydration_events WHERE user_id = ? AND plan_date = ?`,
		userID, planDate).Scan(&total)
	if err != nil {
		return 0, err
	}
	return int(total.Int64), nil
}
