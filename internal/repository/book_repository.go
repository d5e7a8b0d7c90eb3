package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"librarian/internal/database"
	"librarian/internal/domain"
	"librarian/pkg/logger"
)

type BookRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewBookRepository(db *sql.DB, logger logger.Logger) domain.BookRepository {
	return &BookRepository{
		db:     db,
		logger: logger,
	}
}

const bookColumns = `id, code, title, author, stock, is_available, status, deleted_at, created_at`

func scanBook(row interface{ Scan(...any) error }) (*domain.Book, error) {
	var book domain.Book
	var status string
	var deletedAt sql.NullTime

	err := row.Scan(
		&book.ID,
		&book.Code,
		&book.Title,
		&book.Author,
		&book.Stock,
		&book.IsAvailable,
		&status,
		&deletedAt,
		&book.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	book.State = domain.RecordState(status)
	if deletedAt.Valid {
		t := deletedAt.Time
		book.DeletedAt = &t
	}

	return &book, nil
}

func (r *BookRepository) FindByID(ctx context.Context, id int64, includeDeleted bool) (*domain.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE id = ?`
	if !includeDeleted {
		query += ` AND status = 'ACTIVE'`
	}

	book, err := scanBook(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "Book could not be loaded", map[string]interface{}{"id": id, "error": err.Error()})
		return nil, fmt.Errorf("book could not be loaded: %w", err)
	}

	return book, nil
}

func (r *BookRepository) FindActiveByCode(ctx context.Context, code string) (*domain.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE code = ? AND status = 'ACTIVE'`

	book, err := scanBook(r.db.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "Book could not be loaded by code", map[string]interface{}{"code": code, "error": err.Error()})
		return nil, fmt.Errorf("book could not be loaded: %w", err)
	}

	return book, nil
}

func (r *BookRepository) List(ctx context.Context, filter domain.BookFilter) ([]*domain.Book, error) {
	var (
		where []string
		args  []interface{}
	)

	if !filter.IncludeDeleted {
		where = append(where, "status = 'ACTIVE'")
	}
	if title := strings.TrimSpace(filter.Title); title != "" {
		where = append(where, "instr(lower(title), lower(?)) > 0")
		args = append(args, title)
	}

	query := `SELECT ` + bookColumns + ` FROM books`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY title COLLATE NOCASE ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Books could not be listed", map[string]interface{}{"error": err.Error()})
		return nil, fmt.Errorf("books could not be listed: %w", err)
	}
	defer rows.Close()

	books := make([]*domain.Book, 0)
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("book row could not be read: %w", err)
		}
		books = append(books, book)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("book rows could not be read: %w", err)
	}

	return books, nil
}

func (r *BookRepository) CountAvailable(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books WHERE is_available = 1 AND status = 'ACTIVE'`).Scan(&count)
	if err != nil {
		r.logger.ErrorContext(ctx, "Available books could not be counted", map[string]interface{}{"error": err.Error()})
		return 0, fmt.Errorf("available books could not be counted: %w", err)
	}
	return count, nil
}

func (r *BookRepository) Create(ctx context.Context, book *domain.Book) error {
	query := `
		INSERT INTO books (code, title, author, stock, is_available, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 'ACTIVE', ?, ?)
	`

	now := time.Now().UTC()
	book.CreatedAt = now
	book.State = domain.StateActive
	book.IsAvailable = book.Stock > 0

	res, err := r.db.ExecContext(ctx, query, book.Code, book.Title, book.Author, book.Stock, book.IsAvailable, now, now)
	if err != nil {
		if database.UniqueViolationOn(err, "books.code") {
			return domain.ErrDuplicateCode
		}
		r.logger.ErrorContext(ctx, "Book could not be created", map[string]interface{}{"code": book.Code, "error": err.Error()})
		return fmt.Errorf("book could not be created: %w", err)
	}

	book.ID, err = res.LastInsertId()
	return err
}

// Update writes only the columns present in changes and returns the stored
// row. Stock and availability are left alone unless a stock is supplied, so
// borrows committed since the caller last read the book are kept. Deleted
// books may be edited but stay unavailable.
func (r *BookRepository) Update(ctx context.Context, id int64, changes domain.UpdateBookRequest) (*domain.Book, error) {
	var (
		set  []string
		args []interface{}
	)
	if changes.Code != nil {
		set = append(set, "code = ?")
		args = append(args, *changes.Code)
	}
	if changes.Title != nil {
		set = append(set, "title = ?")
		args = append(args, *changes.Title)
	}
	if changes.Author != nil {
		set = append(set, "author = ?")
		args = append(args, *changes.Author)
	}
	if changes.Stock != nil {
		set = append(set, "stock = ?", "is_available = (? > 0 AND status = 'ACTIVE')")
		args = append(args, *changes.Stock, *changes.Stock)
	}
	set = append(set, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("transaction could not be started: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE books SET `+strings.Join(set, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		if database.UniqueViolationOn(err, "books.code") {
			return nil, domain.ErrDuplicateCode
		}
		r.logger.ErrorContext(ctx, "Book could not be updated", map[string]interface{}{"id": id, "error": err.Error()})
		return nil, fmt.Errorf("book could not be updated: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return nil, domain.ErrRecordNotFound
	}

	book, err := scanBook(tx.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("book could not be loaded: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("book update could not be committed: %w", err)
	}

	return book, nil
}

// SoftDelete hides a live book unless an open borrow still references it.
// The open-borrow check is part of the UPDATE so it cannot race a borrow.
func (r *BookRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("transaction could not be started: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE books
		SET status = 'DELETED', deleted_at = ?, is_available = 0, updated_at = ?
		WHERE id = ? AND status = 'ACTIVE'
		  AND NOT EXISTS (SELECT 1 FROM borrow_books bb WHERE bb.book_id = books.id AND bb.active = 1)
	`, at, at, id)
	if err != nil {
		r.logger.ErrorContext(ctx, "Book could not be deleted", map[string]interface{}{"id": id, "error": err.Error()})
		return fmt.Errorf("book could not be deleted: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM books WHERE id = ?`, id).Scan(&status)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return domain.ErrRecordNotFound
		case err != nil:
			return fmt.Errorf("book could not be loaded: %w", err)
		case status != string(domain.StateActive):
			return domain.ErrRecordNotFound
		default:
			return domain.ErrBookInOpenBorrow
		}
	}

	return tx.Commit()
}

// Recover brings a deleted book back as available. A book without stock is
// refused so a live book is never unavailable with stock on the shelf or
// available with none.
func (r *BookRepository) Recover(ctx context.Context, id int64) (*domain.Book, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("transaction could not be started: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE books
		SET status = 'ACTIVE', deleted_at = NULL, is_available = 1, updated_at = ?
		WHERE id = ? AND status = 'DELETED' AND stock > 0
	`, time.Now().UTC(), id)
	if err != nil {
		if database.UniqueViolationOn(err, "books.code") {
			return nil, domain.ErrDuplicateCode
		}
		r.logger.ErrorContext(ctx, "Book could not be recovered", map[string]interface{}{"id": id, "error": err.Error()})
		return nil, fmt.Errorf("book could not be recovered: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		var status string
		var stock int
		err := tx.QueryRowContext(ctx, `SELECT status, stock FROM books WHERE id = ?`, id).Scan(&status, &stock)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, domain.ErrRecordNotFound
		case err != nil:
			return nil, fmt.Errorf("book could not be loaded: %w", err)
		case status != string(domain.StateDeleted):
			return nil, domain.ErrRecordNotFound
		default:
			return nil, domain.ErrBookOutOfStock
		}
	}

	book, err := scanBook(tx.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("book could not be loaded: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("book recovery could not be committed: %w", err)
	}

	return book, nil
}
