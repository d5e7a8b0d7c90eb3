package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarian/internal/database"
	"librarian/internal/database/dbtest"
	"librarian/pkg/logger"
)

func TestRunMigrationsIsIdempotent(t *testing.T) {
	db := dbtest.New(t)
	ctx := context.Background()

	require.NoError(t, database.NewMigrationService(db, logger.Nop()).RunMigrations(ctx))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM migrations").Scan(&count))
	assert.Equal(t, len(database.Migrations()), count)
}

func TestOpenBorrowIndexes(t *testing.T) {
	db := dbtest.New(t)
	now := time.Now().UTC()

	_, err := db.Exec(`INSERT INTO users (code, name, email, role, password_hash, created_at, updated_at)
		VALUES ('M001', 'Ana', 'ana@example.com', 'MEMBER', 'x', ?, ?)`, now, now)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO borrows (user_id, borrow_date, created_at) VALUES (1, ?, ?)`, now, now)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO borrows (user_id, borrow_date, created_at) VALUES (1, ?, ?)`, now, now)
	require.Error(t, err)
	assert.True(t, database.UniqueViolationOn(err, "borrows.user_id"))

	_, err = db.Exec(`UPDATE borrows SET return_date = ? WHERE id = 1`, now)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO borrows (user_id, borrow_date, created_at) VALUES (1, ?, ?)`, now, now)
	assert.NoError(t, err)
}

func TestBookCodeUniqueAmongActiveBooks(t *testing.T) {
	db := dbtest.New(t)
	now := time.Now().UTC()
	insert := `INSERT INTO books (code, title, author, created_at, updated_at) VALUES ('B-1', 'T', 'A', ?, ?)`

	_, err := db.Exec(insert, now, now)
	require.NoError(t, err)

	_, err = db.Exec(insert, now, now)
	require.Error(t, err)
	assert.True(t, database.UniqueViolationOn(err, "books.code"))

	_, err = db.Exec(`UPDATE books SET status = 'DELETED', deleted_at = ? WHERE id = 1`, now)
	require.NoError(t, err)

	_, err = db.Exec(insert, now, now)
	assert.NoError(t, err)
}
