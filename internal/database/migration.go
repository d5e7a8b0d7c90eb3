package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"librarian/pkg/logger"
)

type Migration struct {
	Name string
	Func func(ctx context.Context, tx *sql.Tx) error
}

type MigrationService struct {
	db     *sql.DB
	logger logger.Logger
}

func NewMigrationService(db *sql.DB, logger logger.Logger) *MigrationService {
	return &MigrationService{
		db:     db,
		logger: logger,
	}
}

func (m *MigrationService) InitMigrationTable(ctx context.Context) error {
	query := `
    CREATE TABLE IF NOT EXISTS migrations (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        name TEXT NOT NULL UNIQUE,
        applied_at DATETIME NOT NULL
    )
    `

	if _, err := m.db.ExecContext(ctx, query); err != nil {
		m.logger.Error("Migration table could not be created", map[string]interface{}{"error": err.Error()})
		return err
	}

	return nil
}

func (m *MigrationService) IsMigrationApplied(ctx context.Context, name string) (bool, error) {
	var count int
	err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM migrations WHERE name = ?", name).Scan(&count)
	if err != nil {
		m.logger.Error("Migration state could not be checked", map[string]interface{}{"name": name, "error": err.Error()})
		return false, err
	}

	return count > 0, nil
}

// ApplyMigration runs one migration and records it in the same transaction.
func (m *MigrationService) ApplyMigration(ctx context.Context, migration Migration) error {
	applied, err := m.IsMigrationApplied(ctx, migration.Name)
	if err != nil {
		return err
	}

	if applied {
		m.logger.Debug("Migration already applied", map[string]interface{}{"name": migration.Name})
		return nil
	}

	m.logger.Info("Applying migration", map[string]interface{}{"name": migration.Name})

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		m.logger.Error("Transaction could not be started", map[string]interface{}{"error": err.Error()})
		return err
	}
	defer tx.Rollback()

	if err := migration.Func(ctx, tx); err != nil {
		m.logger.Error("Migration failed, rolled back", map[string]interface{}{"name": migration.Name, "error": err.Error()})
		return err
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO migrations (name, applied_at) VALUES (?, ?)", migration.Name, time.Now().UTC()); err != nil {
		m.logger.Error("Migration could not be recorded", map[string]interface{}{"name": migration.Name, "error": err.Error()})
		return err
	}

	if err := tx.Commit(); err != nil {
		m.logger.Error("Transaction could not be committed", map[string]interface{}{"error": err.Error()})
		return err
	}

	m.logger.Info("Migration applied", map[string]interface{}{"name": migration.Name})
	return nil
}

func (m *MigrationService) RunMigrations(ctx context.Context) error {
	m.logger.Info("Running migrations", map[string]interface{}{})

	if err := m.InitMigrationTable(ctx); err != nil {
		return fmt.Errorf("migration table could not be created: %w", err)
	}

	for _, migration := range Migrations() {
		if err := m.ApplyMigration(ctx, migration); err != nil {
			return fmt.Errorf("migration %s could not be applied: %w", migration.Name, err)
		}
	}

	return nil
}

func Migrations() []Migration {
	return []Migration{
		{"create_users_table", execAll(createUsersTable)},
		{"create_books_table", execAll(createBooksTable)},
		{"create_borrows_table", execAll(createBorrowsTable, createBorrowBooksTable)},
		{"create_penalties_table", execAll(createPenaltiesTable)},
		{"create_audit_logs_table", execAll(createAuditLogsTable)},
	}
}

func execAll(statements ...string) func(ctx context.Context, tx *sql.Tx) error {
	return func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	}
}

const createUsersTable = `
    CREATE TABLE IF NOT EXISTS users (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        code TEXT NOT NULL UNIQUE,
        name TEXT NOT NULL,
        email TEXT NOT NULL UNIQUE,
        role TEXT NOT NULL CHECK (role IN ('ADMIN', 'MEMBER')),
        password_hash TEXT NOT NULL,
        token TEXT,
        status TEXT NOT NULL DEFAULT 'ACTIVE' CHECK (status IN ('ACTIVE', 'DELETED')),
        deleted_at DATETIME,
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL
    );
    `

// Book codes are unique among live books only, so a soft-deleted code can be reused.
const createBooksTable = `
    CREATE TABLE IF NOT EXISTS books (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        code TEXT NOT NULL,
        title TEXT NOT NULL,
        author TEXT NOT NULL,
        stock INTEGER NOT NULL DEFAULT 1 CHECK (stock >= 0),
        is_available BOOLEAN NOT NULL DEFAULT 1,
        status TEXT NOT NULL DEFAULT 'ACTIVE' CHECK (status IN ('ACTIVE', 'DELETED')),
        deleted_at DATETIME,
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL
    );

    CREATE UNIQUE INDEX IF NOT EXISTS ux_books_code_active ON books (code) WHERE status = 'ACTIVE';
    CREATE INDEX IF NOT EXISTS ix_books_title ON books (title);
    `

// One open borrow per user.
const createBorrowsTable = `
    CREATE TABLE IF NOT EXISTS borrows (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        user_id INTEGER NOT NULL,
        borrow_date DATETIME NOT NULL,
        return_date DATETIME,
        penalty_applied BOOLEAN NOT NULL DEFAULT 0,
        created_at DATETIME NOT NULL,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );

    CREATE UNIQUE INDEX IF NOT EXISTS ux_borrows_open_user ON borrows (user_id) WHERE return_date IS NULL;
    `

// One open borrow per book: a line is active while its borrow is open.
const createBorrowBooksTable = `
    CREATE TABLE IF NOT EXISTS borrow_books (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        borrow_id INTEGER NOT NULL,
        book_id INTEGER NOT NULL,
        quantity INTEGER NOT NULL DEFAULT 1 CHECK (quantity > 0),
        active BOOLEAN NOT NULL DEFAULT 1,
        FOREIGN KEY (borrow_id) REFERENCES borrows (id) ON DELETE CASCADE,
        FOREIGN KEY (book_id) REFERENCES books (id),
        UNIQUE (borrow_id, book_id)
    );

    CREATE UNIQUE INDEX IF NOT EXISTS ux_borrow_books_open_book ON borrow_books (book_id) WHERE active = 1;
    `

const createPenaltiesTable = `
    CREATE TABLE IF NOT EXISTS penalties (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        user_id INTEGER NOT NULL,
        start_date DATETIME NOT NULL,
        end_date DATETIME NOT NULL,
        created_at DATETIME NOT NULL,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );

    CREATE INDEX IF NOT EXISTS ix_penalties_user_end ON penalties (user_id, end_date);
    `

const createAuditLogsTable = `
    CREATE TABLE IF NOT EXISTS audit_logs (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        entity_type TEXT NOT NULL,
        entity_id INTEGER NOT NULL,
        action TEXT NOT NULL,
        actor_id INTEGER,
        details TEXT,
        created_at DATETIME NOT NULL
    );

    CREATE INDEX IF NOT EXISTS ix_audit_logs_entity ON audit_logs (entity_type, entity_id);
    `
