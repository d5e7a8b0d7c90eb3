package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"librarian/internal/database"
	"librarian/internal/domain"
	"librarian/pkg/logger"
	"librarian/pkg/tracing"
)

type BorrowRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewBorrowRepository(db *sql.DB, logger logger.Logger) domain.BorrowRepository {
	return &BorrowRepository{
		db:     db,
		logger: logger,
	}
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *BorrowRepository) FindByID(ctx context.Context, id int64) (*domain.Borrow, error) {
	return r.find(ctx, r.db, `SELECT id, user_id, borrow_date, return_date, penalty_applied, created_at FROM borrows WHERE id = ?`, id)
}

func (r *BorrowRepository) FindOpenByID(ctx context.Context, id int64) (*domain.Borrow, error) {
	return r.find(ctx, r.db, `SELECT id, user_id, borrow_date, return_date, penalty_applied, created_at FROM borrows WHERE id = ? AND return_date IS NULL`, id)
}

func (r *BorrowRepository) find(ctx context.Context, q queryer, query string, id int64) (*domain.Borrow, error) {
	var borrow domain.Borrow
	var returnDate sql.NullTime

	err := q.QueryRowContext(ctx, query, id).Scan(
		&borrow.ID,
		&borrow.UserID,
		&borrow.BorrowDate,
		&returnDate,
		&borrow.PenaltyApplied,
		&borrow.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "Borrow could not be loaded", map[string]interface{}{"id": id, "error": err.Error()})
		return nil, fmt.Errorf("borrow could not be loaded: %w", err)
	}

	if returnDate.Valid {
		t := returnDate.Time
		borrow.ReturnDate = &t
	}

	borrow.Lines, err = r.lines(ctx, q, id, false)
	if err != nil {
		return nil, err
	}

	return &borrow, nil
}

func (r *BorrowRepository) lines(ctx context.Context, q queryer, borrowID int64, activeOnly bool) ([]domain.BorrowLine, error) {
	query := `SELECT book_id, quantity FROM borrow_books WHERE borrow_id = ?`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY id ASC`

	rows, err := q.QueryContext(ctx, query, borrowID)
	if err != nil {
		return nil, fmt.Errorf("borrow lines could not be loaded: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.BorrowLine, 0, domain.MaxBooksPerBorrow)
	for rows.Next() {
		var line domain.BorrowLine
		if err := rows.Scan(&line.BookID, &line.Quantity); err != nil {
			return nil, fmt.Errorf("borrow line could not be read: %w", err)
		}
		lines = append(lines, line)
	}

	return lines, rows.Err()
}

func (r *BorrowRepository) CountOpenByUser(ctx context.Context, userID int64) (int, error) {
	return countOpenBorrows(ctx, r.db, userID)
}

func countOpenBorrows(ctx context.Context, q queryer, userID int64) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM borrows WHERE user_id = ? AND return_date IS NULL`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("open borrows could not be counted: %w", err)
	}
	return count, nil
}

func (r *BorrowRepository) BooksInOpenBorrows(ctx context.Context, bookIDs []int64) ([]int64, error) {
	return booksInOpenBorrows(ctx, r.db, bookIDs)
}

func booksInOpenBorrows(ctx context.Context, q queryer, bookIDs []int64) ([]int64, error) {
	if len(bookIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(bookIDs)), ",")
	args := make([]interface{}, len(bookIDs))
	for i, id := range bookIDs {
		args[i] = id
	}

	rows, err := q.QueryContext(ctx,
		`SELECT DISTINCT book_id FROM borrow_books WHERE active = 1 AND book_id IN (`+placeholders+`) ORDER BY book_id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("open borrow lines could not be checked: %w", err)
	}
	defer rows.Close()

	taken := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("open borrow line could not be read: %w", err)
		}
		taken = append(taken, id)
	}

	return taken, rows.Err()
}

const borrowDetailQuery = `
	SELECT b.id, b.borrow_date, b.return_date, b.penalty_applied, b.created_at,
	       u.id, u.code, u.name, u.email,
	       bk.id, bk.code, bk.title, bk.author
	FROM borrows b
	JOIN users u ON u.id = b.user_id
	LEFT JOIN borrow_books bb ON bb.borrow_id = b.id
	LEFT JOIN books bk ON bk.id = bb.book_id
`

func (r *BorrowRepository) ListDetails(ctx context.Context, userID *int64) ([]*domain.BorrowDetail, error) {
	query := borrowDetailQuery
	var args []interface{}
	if userID != nil {
		query += ` WHERE b.user_id = ?`
		args = append(args, *userID)
	}
	query += ` ORDER BY b.id ASC, bb.id ASC`

	return r.details(ctx, query, args...)
}

func (r *BorrowRepository) FindDetail(ctx context.Context, id int64) (*domain.BorrowDetail, error) {
	details, err := r.details(ctx, borrowDetailQuery+` WHERE b.id = ? ORDER BY bb.id ASC`, id)
	if err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return nil, nil
	}
	return details[0], nil
}

// details folds the one-row-per-line join back into one detail per borrow.
func (r *BorrowRepository) details(ctx context.Context, query string, args ...interface{}) ([]*domain.BorrowDetail, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Borrows could not be listed", map[string]interface{}{"error": err.Error()})
		return nil, fmt.Errorf("borrows could not be listed: %w", err)
	}
	defer rows.Close()

	details := make([]*domain.BorrowDetail, 0)
	var current *domain.BorrowDetail

	for rows.Next() {
		var (
			d          domain.BorrowDetail
			returnDate sql.NullTime
			bookID     sql.NullInt64
			bookCode   sql.NullString
			bookTitle  sql.NullString
			bookAuthor sql.NullString
		)

		err := rows.Scan(
			&d.ID, &d.BorrowDate, &returnDate, &d.PenaltyApplied, &d.CreatedAt,
			&d.User.ID, &d.User.Code, &d.User.Name, &d.User.Email,
			&bookID, &bookCode, &bookTitle, &bookAuthor,
		)
		if err != nil {
			return nil, fmt.Errorf("borrow row could not be read: %w", err)
		}

		if current == nil || current.ID != d.ID {
			if returnDate.Valid {
				t := returnDate.Time
				d.ReturnDate = &t
			}
			d.BorrowedBooks = make([]domain.BookSummary, 0, domain.MaxBooksPerBorrow)
			current = &d
			details = append(details, current)
		}

		if bookID.Valid {
			current.BorrowedBooks = append(current.BorrowedBooks, domain.BookSummary{
				ID:     bookID.Int64,
				Code:   bookCode.String,
				Title:  bookTitle.String,
				Author: bookAuthor.String,
			})
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("borrow rows could not be read: %w", err)
	}

	return details, nil
}

// Open writes a new borrow with its lines and takes one copy of every book
// off the shelf. Eligibility is re-checked inside the transaction; the
// partial unique indexes on borrows and borrow_books back it up at write time.
func (r *BorrowRepository) Open(ctx context.Context, borrow *domain.Borrow, now time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "BorrowRepository.Open",
		attribute.Int64("user_id", borrow.UserID),
		attribute.Int("books", len(borrow.Lines)),
	)
	err := r.openBorrow(ctx, borrow, now)
	if err == nil {
		span.SetAttributes(attribute.Int64("borrow_id", borrow.ID))
	}
	tracing.EndSpan(span, err)
	return err
}

func (r *BorrowRepository) openBorrow(ctx context.Context, borrow *domain.Borrow, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("transaction could not be started: %w", err)
	}
	defer tx.Rollback()

	var penalties int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM penalties WHERE user_id = ? AND end_date >= ?`, borrow.UserID, now.UTC(),
	).Scan(&penalties); err != nil {
		return fmt.Errorf("penalties could not be counted: %w", err)
	}
	if penalties > 0 {
		return domain.ErrUserHasActivePenalty
	}

	open, err := countOpenBorrows(ctx, tx, borrow.UserID)
	if err != nil {
		return err
	}
	if open > 0 {
		return domain.ErrUserHasOpenBorrow
	}

	taken, err := booksInOpenBorrows(ctx, tx, borrow.BookIDs())
	if err != nil {
		return err
	}
	if len(taken) > 0 {
		return domain.ErrBookInOpenBorrow
	}

	borrow.BorrowDate = borrow.BorrowDate.UTC()
	borrow.CreatedAt = now.UTC()
	borrow.ReturnDate = nil
	borrow.PenaltyApplied = false

	res, err := tx.ExecContext(ctx,
		`INSERT INTO borrows (user_id, borrow_date, return_date, penalty_applied, created_at) VALUES (?, ?, NULL, 0, ?)`,
		borrow.UserID, borrow.BorrowDate, borrow.CreatedAt,
	)
	if err != nil {
		if database.UniqueViolationOn(err, "borrows.user_id") {
			return domain.ErrUserHasOpenBorrow
		}
		r.logger.ErrorContext(ctx, "Borrow could not be created", map[string]interface{}{"user_id": borrow.UserID, "error": err.Error()})
		return fmt.Errorf("borrow could not be created: %w", err)
	}

	if borrow.ID, err = res.LastInsertId(); err != nil {
		return err
	}

	for _, line := range borrow.Lines {
		res, err := tx.ExecContext(ctx, `
			UPDATE books
			SET stock = stock - ?, is_available = (stock - ? > 0), updated_at = ?
			WHERE id = ? AND status = 'ACTIVE' AND stock >= ? AND stock > 0
		`, line.Quantity, line.Quantity, borrow.CreatedAt, line.BookID, line.Quantity)
		if err != nil {
			return fmt.Errorf("book stock could not be reserved: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrBookUnavailable
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO borrow_books (borrow_id, book_id, quantity, active) VALUES (?, ?, ?, 1)`,
			borrow.ID, line.BookID, line.Quantity,
		); err != nil {
			if database.UniqueViolationOn(err, "borrow_books.book_id") {
				return domain.ErrBookInOpenBorrow
			}
			return fmt.Errorf("borrow line could not be created: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		r.logger.ErrorContext(ctx, "Borrow could not be committed", map[string]interface{}{"user_id": borrow.UserID, "error": err.Error()})
		return fmt.Errorf("borrow could not be committed: %w", err)
	}

	r.logger.InfoContext(ctx, "Borrow opened", map[string]interface{}{"borrow_id": borrow.ID, "user_id": borrow.UserID, "books": borrow.BookIDs()})
	return nil
}

// Close marks an open borrow returned, records the penalty if one is given
// and puts the books back on the shelf. A borrow that is already closed
// reports ErrRecordNotFound and nothing is written.
func (r *BorrowRepository) Close(ctx context.Context, req domain.CloseBorrow) error {
	ctx, span := tracing.StartSpan(ctx, "BorrowRepository.Close",
		attribute.Int64("borrow_id", req.BorrowID),
		attribute.Bool("penalty", req.Penalty != nil),
	)
	err := r.closeBorrow(ctx, req)
	tracing.EndSpan(span, err)
	return err
}

func (r *BorrowRepository) closeBorrow(ctx context.Context, req domain.CloseBorrow) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("transaction could not be started: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE borrows SET return_date = ?, penalty_applied = ? WHERE id = ? AND return_date IS NULL`,
		req.ReturnDate.UTC(), req.Penalty != nil, req.BorrowID,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Borrow could not be closed", map[string]interface{}{"borrow_id": req.BorrowID, "error": err.Error()})
		return fmt.Errorf("borrow could not be closed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrRecordNotFound
	}

	if p := req.Penalty; p != nil {
		p.StartDate = p.StartDate.UTC()
		p.EndDate = p.EndDate.UTC()
		p.CreatedAt = p.StartDate

		res, err := tx.ExecContext(ctx,
			`INSERT INTO penalties (user_id, start_date, end_date, created_at) VALUES (?, ?, ?, ?)`,
			p.UserID, p.StartDate, p.EndDate, p.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("penalty could not be created: %w", err)
		}
		if p.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}

	if err := r.restoreStock(ctx, tx, req.BorrowID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		r.logger.ErrorContext(ctx, "Borrow return could not be committed", map[string]interface{}{"borrow_id": req.BorrowID, "error": err.Error()})
		return fmt.Errorf("borrow return could not be committed: %w", err)
	}

	return nil
}

// Delete removes a borrow in any state. An open borrow gives its books back
// first; whether it was open is decided inside the transaction.
func (r *BorrowRepository) Delete(ctx context.Context, id int64) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "BorrowRepository.Delete", attribute.Int64("borrow_id", id))
	wasOpen, err := r.deleteBorrow(ctx, id)
	span.SetAttributes(attribute.Bool("was_open", wasOpen))
	tracing.EndSpan(span, err)
	return wasOpen, err
}

func (r *BorrowRepository) deleteBorrow(ctx context.Context, id int64) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("transaction could not be started: %w", err)
	}
	defer tx.Rollback()

	var open bool
	err = tx.QueryRowContext(ctx, `SELECT return_date IS NULL FROM borrows WHERE id = ?`, id).Scan(&open)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, domain.ErrRecordNotFound
		}
		return false, fmt.Errorf("borrow could not be loaded: %w", err)
	}

	if open {
		if err := r.restoreStock(ctx, tx, id); err != nil {
			return false, err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM borrow_books WHERE borrow_id = ?`, id); err != nil {
		return false, fmt.Errorf("borrow lines could not be deleted: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM borrows WHERE id = ?`, id); err != nil {
		return false, fmt.Errorf("borrow could not be deleted: %w", err)
	}

	if err := tx.Commit(); err != nil {
		r.logger.ErrorContext(ctx, "Borrow deletion could not be committed", map[string]interface{}{"borrow_id": id, "error": err.Error()})
		return false, fmt.Errorf("borrow deletion could not be committed: %w", err)
	}

	return open, nil
}

// restoreStock gives back every active line of the borrow and deactivates
// the lines, releasing the per-book open index.
func (r *BorrowRepository) restoreStock(ctx context.Context, tx *sql.Tx, borrowID int64) error {
	lines, err := r.lines(ctx, tx, borrowID, true)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, line := range lines {
		if _, err := tx.ExecContext(ctx,
			`UPDATE books SET stock = stock + ?, is_available = 1, updated_at = ? WHERE id = ?`,
			line.Quantity, now, line.BookID,
		); err != nil {
			return fmt.Errorf("book stock could not be restored: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE borrow_books SET active = 0 WHERE borrow_id = ?`, borrowID); err != nil {
		return fmt.Errorf("borrow lines could not be released: %w", err)
	}

	return nil
}
