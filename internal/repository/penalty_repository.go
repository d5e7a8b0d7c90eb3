package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"librarian/internal/domain"
	"librarian/pkg/logger"
)

type PenaltyRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewPenaltyRepository(db *sql.DB, logger logger.Logger) domain.PenaltyRepository {
	return &PenaltyRepository{
		db:     db,
		logger: logger,
	}
}

func (r *PenaltyRepository) FindByID(ctx context.Context, id int64) (*domain.Penalty, error) {
	query := `SELECT id, user_id, start_date, end_date, created_at FROM penalties WHERE id = ?`

	var p domain.Penalty
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.UserID, &p.StartDate, &p.EndDate, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "Penalty could not be loaded", map[string]interface{}{"id": id, "error": err.Error()})
		return nil, fmt.Errorf("penalty could not be loaded: %w", err)
	}

	return &p, nil
}

// CountActiveByUser counts penalties whose window has not ended at now.
func (r *PenaltyRepository) CountActiveByUser(ctx context.Context, userID int64, now time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM penalties WHERE user_id = ? AND end_date >= ?`, userID, now.UTC(),
	).Scan(&count)
	if err != nil {
		r.logger.ErrorContext(ctx, "Active penalties could not be counted", map[string]interface{}{"user_id": userID, "error": err.Error()})
		return 0, fmt.Errorf("active penalties could not be counted: %w", err)
	}
	return count, nil
}

const penaltyDetailQuery = `
	SELECT p.id, p.start_date, p.end_date, p.created_at, u.id, u.code, u.name, u.email
	FROM penalties p
	JOIN users u ON u.id = p.user_id
`

func (r *PenaltyRepository) ListDetails(ctx context.Context, username string, userID *int64) ([]*domain.PenaltyDetail, error) {
	var (
		where []string
		args  []interface{}
	)

	if name := strings.TrimSpace(username); name != "" {
		where = append(where, "instr(lower(u.name), lower(?)) > 0")
		args = append(args, name)
	}
	if userID != nil {
		where = append(where, "p.user_id = ?")
		args = append(args, *userID)
	}

	query := penaltyDetailQuery
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY p.id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Penalties could not be listed", map[string]interface{}{"error": err.Error()})
		return nil, fmt.Errorf("penalties could not be listed: %w", err)
	}
	defer rows.Close()

	details := make([]*domain.PenaltyDetail, 0)
	for rows.Next() {
		d, err := scanPenaltyDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("penalty row could not be read: %w", err)
		}
		details = append(details, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("penalty rows could not be read: %w", err)
	}

	return details, nil
}

func (r *PenaltyRepository) FindDetail(ctx context.Context, id int64) (*domain.PenaltyDetail, error) {
	d, err := scanPenaltyDetail(r.db.QueryRowContext(ctx, penaltyDetailQuery+` WHERE p.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "Penalty could not be loaded", map[string]interface{}{"id": id, "error": err.Error()})
		return nil, fmt.Errorf("penalty could not be loaded: %w", err)
	}
	return d, nil
}

func scanPenaltyDetail(row interface{ Scan(...any) error }) (*domain.PenaltyDetail, error) {
	var d domain.PenaltyDetail
	err := row.Scan(&d.ID, &d.StartDate, &d.EndDate, &d.CreatedAt, &d.User.ID, &d.User.Code, &d.User.Name, &d.User.Email)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *PenaltyRepository) UpdateWindow(ctx context.Context, id int64, start, end time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE penalties SET start_date = ?, end_date = ? WHERE id = ?`, start.UTC(), end.UTC(), id,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Penalty could not be updated", map[string]interface{}{"id": id, "error": err.Error()})
		return fmt.Errorf("penalty could not be updated: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrRecordNotFound
	}

	return nil
}

func (r *PenaltyRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM penalties WHERE id = ?`, id)
	if err != nil {
		r.logger.ErrorContext(ctx, "Penalty could not be deleted", map[string]interface{}{"id": id, "error": err.Error()})
		return fmt.Errorf("penalty could not be deleted: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrRecordNotFound
	}

	return nil
}
