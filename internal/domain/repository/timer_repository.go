package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"timetrack/internal/common"
	"timetrack/internal/domain/model"
)

type TimerRepository interface {
	Create(ctx context.Context, timer *model.Timer) error
	FindByID(ctx context.Context, id string) (*model.Timer, error)
	ListByUser(ctx context.Context, userID string) ([]model.Timer, error)
	ListAll(ctx context.Context) ([]model.Timer, error)
	// Stop flips an active timer to stopped. It reports false, without
	// writing anything, when the timer was not active any more.
	Stop(ctx context.Context, id string, end time.Time, durationSeconds int64) (bool, error)
}

type pgTimerRepository struct {
	db *sql.DB
}

func NewPgTimerRepository(db *sql.DB) TimerRepository {
	return &pgTimerRepository{db: db}
}

const timerColumns = `id, user_id, description, start_at, end_at, duration_seconds, is_active`

func (r *pgTimerRepository) Create(ctx context.Context, t *model.Timer) error {
	query := `INSERT INTO timers (id, user_id, description, start_at, end_at, duration_seconds, is_active)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query, t.ID, t.UserID, t.Description, t.Start, t.End, t.DurationInSeconds, t.IsActive)
	if err != nil {
		return fmt.Errorf("pgTimerRepository.Create: %w", err)
	}
	return nil
}

func (r *pgTimerRepository) FindByID(ctx context.Context, id string) (*model.Timer, error) {
	query := `SELECT ` + timerColumns + ` FROM timers WHERE id = $1`
	t, err := scanTimer(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgTimerRepository.FindByID: %w", err)
	}
	return t, nil
}

func (r *pgTimerRepository) ListByUser(ctx context.Context, userID string) ([]model.Timer, error) {
	query := `SELECT ` + timerColumns + ` FROM timers WHERE user_id = $1 ORDER BY start_at, id`
	return r.list(ctx, "ListByUser", query, userID)
}

func (r *pgTimerRepository) ListAll(ctx context.Context) ([]model.Timer, error) {
	query := `SELECT ` + timerColumns + ` FROM timers ORDER BY start_at, id`
	return r.list(ctx, "ListAll", query)
}

func (r *pgTimerRepository) Stop(ctx context.Context, id string, end time.Time, durationSeconds int64) (bool, error) {
	query := `UPDATE timers SET is_active = FALSE, end_at = $2, duration_seconds = $3
	          WHERE id = $1 AND is_active = TRUE`
	res, err := r.db.ExecContext(ctx, query, id, end, durationSeconds)
	if err != nil {
		return false, fmt.Errorf("pgTimerRepository.Stop: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("pgTimerRepository.Stop rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *pgTimerRepository) list(ctx context.Context, op, query string, args ...any) ([]model.Timer, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgTimerRepository.%s: %w", op, err)
	}
	defer rows.Close()

	timers := []model.Timer{}
	for rows.Next() {
		t, err := scanTimer(rows)
		if err != nil {
			return nil, fmt.Errorf("pgTimerRepository.%s scan: %w", op, err)
		}
		timers = append(timers, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgTimerRepository.%s rows: %w", op, err)
	}
	return timers, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTimer(row rowScanner) (*model.Timer, error) {
	t := &model.Timer{}
	var end sql.NullTime
	if err := row.Scan(&t.ID, &t.UserID, &t.Description, &t.Start, &end, &t.DurationInSeconds, &t.IsActive); err != nil {
		return nil, err
	}
	if end.Valid {
		e := end.Time
		t.End = &e
	}
	return t, nil
}
