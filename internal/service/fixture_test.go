package service_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"librarian/internal/auth"
	"librarian/internal/database/dbtest"
	"librarian/internal/domain"
	"librarian/internal/repository"
	"librarian/internal/service"
	"librarian/pkg/logger"
)

type fixture struct {
	db  *sql.DB
	now time.Time

	bookRepo    domain.BookRepository
	borrowRepo  domain.BorrowRepository
	penaltyRepo domain.PenaltyRepository
	auditRepo   domain.AuditLogRepository
	userRepo    domain.UserRepository

	books     domain.BookService
	users     domain.UserService
	borrows   domain.BorrowService
	penalties domain.PenaltyService
	audit     domain.AuditLogService

	admin domain.Caller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := dbtest.New(t)
	log := logger.Nop()
	f := &fixture{
		db:  db,
		now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }

	f.bookRepo = repository.NewBookRepository(db, log)
	f.borrowRepo = repository.NewBorrowRepository(db, log)
	f.penaltyRepo = repository.NewPenaltyRepository(db, log)
	f.auditRepo = repository.NewAuditLogRepository(db, log)
	f.userRepo = repository.NewUserRepository(db, log)

	f.audit = service.NewAuditLogService(f.auditRepo, log)
	f.books = service.NewBookService(f.bookRepo, f.audit, log, clock)
	f.users = service.NewUserService(f.userRepo, auth.NewBcryptHasher(bcrypt.MinCost), auth.NewJWTIssuer("test-secret", time.Hour), f.audit, log, clock)
	f.borrows = service.NewBorrowService(f.borrowRepo, f.bookRepo, f.userRepo, f.penaltyRepo, f.audit, log, service.DefaultBorrowPolicy(), clock)
	f.penalties = service.NewPenaltyService(f.penaltyRepo, f.userRepo, f.audit, log)

	f.admin = f.register(t, "Admin", "admin@example.com", domain.RoleAdmin)
	return f
}

func (f *fixture) register(t *testing.T, name, email string, role domain.Role) domain.Caller {
	t.Helper()
	u, err := f.users.Register(context.Background(), domain.RegisterRequest{Name: name, Email: email, Role: role, Password: "secret"})
	require.NoError(t, err)
	return domain.Caller{UserID: u.ID, Role: u.Role}
}

func (f *fixture) member(t *testing.T, name string) domain.Caller {
	t.Helper()
	return f.register(t, name, fmt.Sprintf("%s@example.com", name), domain.RoleMember)
}

func (f *fixture) addBook(t *testing.T, code string, stock int) *domain.Book {
	t.Helper()
	ctx := context.Background()

	b, err := f.books.Create(ctx, f.admin, domain.CreateBookRequest{Title: "Title " + code, Author: "Author", Code: code})
	require.NoError(t, err)

	if stock != b.Stock {
		b, err = f.books.Update(ctx, f.admin, b.ID, domain.UpdateBookRequest{Stock: &stock})
		require.NoError(t, err)
	}
	return b
}

func (f *fixture) stock(t *testing.T, id int64) int {
	t.Helper()
	b, err := f.bookRepo.FindByID(context.Background(), id, true)
	require.NoError(t, err)
	require.NotNil(t, b)
	return b.Stock
}

// requireAvailabilityConsistent checks is_available == (stock > 0) for every live book.
func (f *fixture) requireAvailabilityConsistent(t *testing.T) {
	t.Helper()
	var broken int
	err := f.db.QueryRow(`SELECT COUNT(*) FROM books WHERE status = 'ACTIVE' AND is_available <> (stock > 0)`).Scan(&broken)
	require.NoError(t, err)
	require.Zero(t, broken, "books with inconsistent availability")
}

func borrowReq(at time.Time, bookIDs ...int64) domain.CreateBorrowRequest {
	req := domain.CreateBorrowRequest{BorrowDate: &at}
	for _, id := range bookIDs {
		req.Books = append(req.Books, domain.BorrowBookItem{BookID: id})
	}
	return req
}

func returnReq(at time.Time) domain.ReturnBorrowRequest {
	return domain.ReturnBorrowRequest{ReturnDate: &at}
}

func requireKind(t *testing.T, err error, kind error, contains string) {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, kind)
	if contains != "" {
		require.Contains(t, err.Error(), contains)
	}
}
