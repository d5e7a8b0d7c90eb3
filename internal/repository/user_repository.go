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

type UserRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewUserRepository(db *sql.DB, logger logger.Logger) domain.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

const userColumns = `id, code, name, email, role, password_hash, token, status, deleted_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var user domain.User
	var role, status string
	var token sql.NullString
	var deletedAt sql.NullTime

	err := row.Scan(
		&user.ID,
		&user.Code,
		&user.Name,
		&user.Email,
		&role,
		&user.PasswordHash,
		&token,
		&status,
		&deletedAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.Role = domain.Role(role)
	user.State = domain.RecordState(status)
	if token.Valid {
		t := token.String
		user.Token = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		user.DeletedAt = &t
	}

	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64, includeDeleted bool) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	if !includeDeleted {
		query += ` AND status = 'ACTIVE'`
	}

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "User could not be loaded", map[string]interface{}{"id": id, "error": err.Error()})
		return nil, fmt.Errorf("user could not be loaded: %w", err)
	}

	return user, nil
}

// FindByEmail returns the user with the given email whatever its state, so
// registration can reactivate a soft-deleted account.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = ?`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.ErrorContext(ctx, "User could not be loaded by email", map[string]interface{}{"email": email, "error": err.Error()})
		return nil, fmt.Errorf("user could not be loaded: %w", err)
	}

	return user, nil
}

func (r *UserRepository) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE email = ? AND id <> ?`, email, excludeID).Scan(&count)
	if err != nil {
		r.logger.ErrorContext(ctx, "Email could not be checked", map[string]interface{}{"email": email, "error": err.Error()})
		return false, fmt.Errorf("email could not be checked: %w", err)
	}
	return count > 0, nil
}

func (r *UserRepository) ListProfiles(ctx context.Context, filter domain.UserFilter) ([]*domain.UserProfile, error) {
	var (
		where []string
		args  []interface{}
	)

	if filter.Role != "" {
		where = append(where, "u.role = ?")
		args = append(args, string(filter.Role))
	}
	if name := strings.TrimSpace(filter.Name); name != "" {
		where = append(where, "instr(lower(u.name), lower(?)) > 0")
		args = append(args, name)
	}

	query := `
		SELECT u.id, u.code, u.name, u.email, u.role, u.status, u.created_at,
		       (SELECT COUNT(*) FROM borrow_books bb JOIN borrows b ON b.id = bb.borrow_id WHERE b.user_id = u.id)
		FROM users u`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY u.created_at DESC, u.id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Users could not be listed", map[string]interface{}{"error": err.Error()})
		return nil, fmt.Errorf("users could not be listed: %w", err)
	}
	defer rows.Close()

	profiles := make([]*domain.UserProfile, 0)
	for rows.Next() {
		var p domain.UserProfile
		var role, status string
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Email, &role, &status, &p.CreatedAt, &p.BorrowedBooksCount); err != nil {
			return nil, fmt.Errorf("user row could not be read: %w", err)
		}
		p.Role = domain.Role(role)
		p.IsDeleted = status == string(domain.StateDeleted)
		profiles = append(profiles, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("user rows could not be read: %w", err)
	}

	return profiles, nil
}

// BorrowedBooks lists every book the user has ever borrowed, oldest borrow first.
func (r *UserRepository) BorrowedBooks(ctx context.Context, userID int64) ([]domain.BookSummary, error) {
	query := `
		SELECT bk.id, bk.code, bk.title, bk.author
		FROM borrow_books bb
		JOIN borrows b ON b.id = bb.borrow_id
		JOIN books bk ON bk.id = bb.book_id
		WHERE b.user_id = ?
		ORDER BY b.id ASC, bb.id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Borrowed books could not be listed", map[string]interface{}{"user_id": userID, "error": err.Error()})
		return nil, fmt.Errorf("borrowed books could not be listed: %w", err)
	}
	defer rows.Close()

	books := make([]domain.BookSummary, 0)
	for rows.Next() {
		var b domain.BookSummary
		if err := rows.Scan(&b.ID, &b.Code, &b.Title, &b.Author); err != nil {
			return nil, fmt.Errorf("borrowed book row could not be read: %w", err)
		}
		books = append(books, b)
	}

	return books, rows.Err()
}

// Create inserts the user and assigns its member code from the next id in the
// same transaction.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("transaction could not be started: %w", err)
	}
	defer tx.Rollback()

	var maxID int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM users`).Scan(&maxID); err != nil {
		return fmt.Errorf("user sequence could not be read: %w", err)
	}

	now := time.Now().UTC()
	user.Code = fmt.Sprintf("%s%03d", domain.UserCodePrefix, maxID+1)
	user.State = domain.StateActive
	user.CreatedAt = now
	user.UpdatedAt = now

	res, err := tx.ExecContext(ctx, `
		INSERT INTO users (code, name, email, role, password_hash, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 'ACTIVE', ?, ?)
	`, user.Code, user.Name, user.Email, string(user.Role), user.PasswordHash, now, now)
	if err != nil {
		if database.UniqueViolationOn(err, "users.email") {
			return domain.ErrDuplicateEmail
		}
		r.logger.ErrorContext(ctx, "User could not be created", map[string]interface{}{"email": user.Email, "error": err.Error()})
		return fmt.Errorf("user could not be created: %w", err)
	}

	if user.ID, err = res.LastInsertId(); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("user creation could not be committed: %w", err)
	}

	return nil
}

func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET name = ?, email = ?, password_hash = ?, updated_at = ?
		WHERE id = ? AND status = 'ACTIVE'
	`

	user.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, query, user.Name, user.Email, user.PasswordHash, user.UpdatedAt, user.ID)
	if err != nil {
		if database.UniqueViolationOn(err, "users.email") {
			return domain.ErrDuplicateEmail
		}
		r.logger.ErrorContext(ctx, "User could not be updated", map[string]interface{}{"id": user.ID, "error": err.Error()})
		return fmt.Errorf("user could not be updated: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrRecordNotFound
	}

	return nil
}

// Reactivate brings a soft-deleted account back with new registration data.
func (r *UserRepository) Reactivate(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET name = ?, role = ?, password_hash = ?, token = NULL, status = 'ACTIVE', deleted_at = NULL, updated_at = ?
		WHERE id = ? AND status = 'DELETED'
	`

	user.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, query, user.Name, string(user.Role), user.PasswordHash, user.UpdatedAt, user.ID)
	if err != nil {
		r.logger.ErrorContext(ctx, "User could not be reactivated", map[string]interface{}{"id": user.ID, "error": err.Error()})
		return fmt.Errorf("user could not be reactivated: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrRecordNotFound
	}

	user.State = domain.StateActive
	user.DeletedAt = nil
	user.Token = nil
	return nil
}

func (r *UserRepository) SetToken(ctx context.Context, id int64, token *string) error {
	var value sql.NullString
	if token != nil {
		value = sql.NullString{String: *token, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `UPDATE users SET token = ?, updated_at = ? WHERE id = ?`, value, time.Now().UTC(), id)
	if err != nil {
		r.logger.ErrorContext(ctx, "User token could not be stored", map[string]interface{}{"id": id, "error": err.Error()})
		return fmt.Errorf("user token could not be stored: %w", err)
	}

	return nil
}

func (r *UserRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET status = 'DELETED', deleted_at = ?, token = NULL, updated_at = ?
		WHERE id = ? AND status = 'ACTIVE'
	`, at, at, id)
	if err != nil {
		r.logger.ErrorContext(ctx, "User could not be deleted", map[string]interface{}{"id": id, "error": err.Error()})
		return fmt.Errorf("user could not be deleted: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrRecordNotFound
	}

	return nil
}

func (r *UserRepository) Recover(ctx context.Context, id int64) (*domain.User, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET status = 'ACTIVE', deleted_at = NULL, updated_at = ?
		WHERE id = ? AND status = 'DELETED'
	`, time.Now().UTC(), id)
	if err != nil {
		r.logger.ErrorContext(ctx, "User could not be recovered", map[string]interface{}{"id": id, "error": err.Error()})
		return nil, fmt.Errorf("user could not be recovered: %w", err)
	}

	if n, _ := res.RowsAffected(); n == 0 {
		return nil, domain.ErrRecordNotFound
	}

	return r.FindByID(ctx, id, false)
}
