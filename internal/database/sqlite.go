package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"librarian/internal/config"
)

// Open connects to the SQLite file at cfg.Path. Transactions begin with
// BEGIN IMMEDIATE so concurrent writers serialize on the database lock
// before reading the rows they are about to change.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("database directory could not be created: %w", err)
		}
	}

	busy := cfg.BusyTimeoutMS
	if busy <= 0 {
		busy = 5000
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=1&_journal_mode=WAL&_txlock=immediate", cfg.Path, busy)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("database could not be opened: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database connection could not be verified: %w", err)
	}

	return db, nil
}

// IsUniqueViolation reports whether err comes from a UNIQUE or PRIMARY KEY
// constraint.
func IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// UniqueViolationOn reports whether err is a unique violation on the given
// "table.column", as SQLite names it in the error message.
func UniqueViolationOn(err error, column string) bool {
	return IsUniqueViolation(err) && strings.Contains(err.Error(), column)
}
