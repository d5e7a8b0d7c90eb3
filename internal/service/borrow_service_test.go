package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarian/internal/domain"
	"librarian/internal/service"
	"librarian/pkg/logger"
)

const day = 24 * time.Hour

func TestCreateBorrowDecrementsStockAndReturnsDetail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.member(t, "ana")
	b1 := f.addBook(t, "B1", 1)
	b2 := f.addBook(t, "B2", 3)

	detail, err := f.borrows.CreateBorrow(ctx, ana, borrowReq(f.now, b1.ID, b2.ID))
	require.NoError(t, err)

	assert.Equal(t, ana.UserID, detail.User.ID)
	assert.Nil(t, detail.ReturnDate)
	assert.False(t, detail.PenaltyApplied)
	require.Len(t, detail.BorrowedBooks, 2)
	assert.Equal(t, b1.ID, detail.BorrowedBooks[0].ID)

	assert.Equal(t, 0, f.stock(t, b1.ID))
	assert.Equal(t, 2, f.stock(t, b2.ID))
	f.requireAvailabilityConsistent(t)
}

func TestCreateBorrowValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.member(t, "ana")
	b1 := f.addBook(t, "B1", 1)
	b2 := f.addBook(t, "B2", 1)
	b3 := f.addBook(t, "B3", 1)
	empty := f.addBook(t, "B4", 0)

	cases := []struct {
		name     string
		caller   domain.Caller
		req      domain.CreateBorrowRequest
		kind     error
		contains string
	}{
		{"admin cannot borrow", f.admin, borrowReq(f.now, b1.ID), domain.ErrForbidden, ""},
		{"anonymous cannot borrow", domain.Caller{}, borrowReq(f.now, b1.ID), domain.ErrForbidden, ""},
		{"missing borrow date", ana, domain.CreateBorrowRequest{Books: []domain.BorrowBookItem{{BookID: b1.ID}}}, domain.ErrBadRequest, "Borrow date is required"},
		{"no books", ana, borrowReq(f.now), domain.ErrBadRequest, "must not empty"},
		{"three books", ana, borrowReq(f.now, b1.ID, b2.ID, b3.ID), domain.ErrBadRequest, "not more than 2"},
		{"missing book id", ana, borrowReq(f.now, 0), domain.ErrBadRequest, "Book ID is required"},
		{"duplicate book", ana, borrowReq(f.now, b1.ID, b1.ID), domain.ErrBadRequest, "distinct"},
		{"unknown book", ana, borrowReq(f.now, 999), domain.ErrBadRequest, "not found or out of stock"},
		{"out of stock", ana, borrowReq(f.now, empty.ID), domain.ErrBadRequest, "not found or out of stock"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.borrows.CreateBorrow(ctx, tc.caller, tc.req)
			requireKind(t, err, tc.kind, tc.contains)
		})
	}

	for _, b := range []*domain.Book{b1, b2, b3} {
		assert.Equal(t, 1, f.stock(t, b.ID), "rejected requests must not touch stock")
	}
}

func TestCreateBorrowDeletedUserNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.member(t, "ana")
	b := f.addBook(t, "B1", 1)

	require.NoError(t, f.users.Delete(ctx, f.admin, ana.UserID))

	_, err := f.borrows.CreateBorrow(ctx, ana, borrowReq(f.now, b.ID))
	requireKind(t, err, domain.ErrNotFound, "User Not Found")
}

func TestBookAlreadyBorrowedByOtherUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.member(t, "ana")
	budi := f.member(t, "budi")
	b := f.addBook(t, "B1", 1)

	_, err := f.borrows.CreateBorrow(ctx, ana, borrowReq(f.now, b.ID))
	require.NoError(t, err)

	_, err = f.borrows.CreateBorrow(ctx, budi, borrowReq(f.now, b.ID))
	requireKind(t, err, domain.ErrBadRequest, "already borrowed by other user")
}

func TestOneOpenBorrowPerUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.member(t, "ana")
	b1 := f.addBook(t, "B1", 1)
	b2 := f.addBook(t, "B2", 1)

	_, err := f.borrows.CreateBorrow(ctx, ana, borrowReq(f.now, b1.ID))
	require.NoError(t, err)

	_, err = f.borrows.CreateBorrow(ctx, ana, borrowReq(f.now, b2.ID))
	requireKind(t, err, domain.ErrBadRequest, "still have borrowed book")
	assert.Equal(t, 1, f.stock(t, b2.ID))
}

func TestReturnRestoresStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.member(t, "ana")
	b1 := f.addBook(t, "B1", 1)
	b2 := f.addBook(t, "B2", 4)

	created, err := f.borrows.CreateBorrow(ctx, ana, borrowReq(f.now, b1.ID, b2.ID))
	require.NoError(t, err)

	returned, err := f.borrows.ReturnBorrow(ctx, ana, created.ID, returnReq(f.now.Add(2*day)))
	require.NoError(t, err)
	require.NotNil(t, returned.ReturnDate)
	assert.False(t, returned.PenaltyApplied)

	assert.Equal(t, 1, f.stock(t, b1.ID))
	assert.Equal(t, 4, f.stock(t, b2.ID))
	f.requireAvailabilityConsistent(t)

	active, err := f.penaltyRepo.CountActiveByUser(ctx, ana.UserID, f.now)
	require.NoError(t, err)
	assert.Zero(t, active)
}

func TestReturnTwiceFailsWithoutTouchingStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.member(t, "ana")
	b := f.addBook(t, "B1", 1)

	created, err := f.borrows.CreateBorrow(ctx, ana, borrowReq(f.now, b.ID))
	require.NoError(t, err)

	_, err = f.borrows.ReturnBorrow(ctx, ana, created.ID, returnReq(f.now.Add(day)))
	require.NoError(t, err)

	_, err = f.borrows.ReturnBorrow(ctx, ana, created.ID, returnReq(f.now.Add(day)))
	requireKind(t, err, domain.ErrNotFound, "already returned")
	assert.Equal(t, 1, f.stock(t, b.ID))

	_, err = f.borrows.ReturnBorrow(ctx, ana, 999, returnReq(f.now))
	requireKind(t, err, domain.ErrNotFound, "")
}

func TestReturnValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.member(t, "ana")
	b := f.addBook(t, "B1", 1)

	created, err := f.borrows.CreateBorrow(ctx, ana, borrowReq(f.now, b.ID))
	require.NoError(t, err)

	_, err = f.borrows.ReturnBorrow(ctx, f.admin, created.ID, returnReq(f.now))
	requireKind(t, err, domain.ErrForbidden, "")

	_, err = f.borrows.ReturnBorrow(ctx, ana, created.ID, domain.ReturnBorrowRequest{})
	requireKind(t, err, domain.ErrBadRequest, "Return date is required")

	_, err = f.borrows.ReturnBorrow(ctx, ana, created.ID, returnReq(f.now.Add(-time.Hour)))
	requireKind(t, err, domain.ErrBadRequest, "before borrow date")

	assert.Equal(t, 0, f.stock(t, b.ID))
}

func TestLateReturnCreatesPenalty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.member(t, "ana")
	b := f.addBook(t, "B1", 1)

	borrowDate := f.now
	created, err := f.borrows.CreateBorrow(ctx, ana, borrowReq(borrowDate, b.ID))
	require.NoError(t, err)

	returnDate := borrowDate.Add(14 * day)
	f.now = returnDate

	returned, err := f.borrows.ReturnBorrow(ctx, ana, created.ID, returnReq(returnDate))
	require.NoError(t, err)
	assert.True(t, returned.PenaltyApplied)

	penalties, err := f.penalties.GetByUser(ctx, ana, ana.UserID)
	require.NoError(t, err)
	require.Len(t, penalties, 1)
	assert.True(t, penalties[0].StartDate.Equal(returnDate))
	assert.True(t, penalties[0].EndDate.Equal(returnDate.Add(3*day)))

	f.now = returnDate.Add(day)
	_, err = f.borrows.CreateBorrow(ctx, ana, borrowReq(f.now, b.ID))
	requireKind(t, err, domain.ErrBadRequest, "still have penalty")

	f.now = returnDate.Add(3*day + time.Second)
	_, err = f.borrows.CreateBorrow(ctx, ana, borrowReq(f.now, b.ID))
	assert.NoError(t, err)
}

func TestLateThresholdBoundary(t *testing.T) {
	cases := []struct {
		name    string
		held    time.Duration
		penalty bool
		elapsed int64
	}{
		{"exactly seven days", 7 * day, false, 7},
		{"seven days and a minute rounds up", 7*day + time.Minute, true, 8},
		{"eight days", 8 * day, true, 8},
		{"same day", time.Hour, false, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			ana := f.member(t, "ana")
			b := f.addBook(t, "B1", 1)

			created, err := f.borrows.CreateBorrow(ctx, ana, borrowReq(f.now, b.ID))
			require.NoError(t, err)

			returnDate := f.now.Add(tc.held)
			assert.Equal(t, tc.elapsed, service.ElapsedDays(f.now, returnDate))

			returned, err := f.borrows.ReturnBorrow(ctx, ana, created.ID, returnReq(returnDate))
			require.NoError(t, err)
			assert.Equal(t, tc.penalty, returned.PenaltyApplied)
		})
	}
}

func TestConfigurablePolicy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ana := f.member(t, "ana")
	b := f.addBook(t, "B1", 1)

	policy := service.BorrowPolicy{LateThreshold: day, PenaltyDuration: 7 * day}
	borrows := service.NewBorrowService(f.borrowRepo, f.bookRepo, f.userRepo, f.penaltyRepo, f.audit, logger.Nop(), policy, func() time.Time { return f.now })

	created, err := borrows.CreateBorrow(ctx, ana, borrowReq(f.now, b.ID))
	require.NoError(t, err)

	returned, err := borrows.ReturnBorrow(ctx, ana, created.ID, returnReq(f.now.Add(2*day)))
	require.NoError(t, err)
	assert.True(t, returned.PenaltyApplied)

	penalties, err := f.penalties.GetByUser(ctx, f.admin, ana.UserID)
	require.NoError(t, err)
	require.Len(t, penalties, 1)
	assert.True(t, penalties[0].EndDate.Equal(f.now.Add(7*day)))
}

func TestDeleteBorrow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.member(t, "ana")
	b := f.addBook(t, "B1", 2)

	open, err := f.borrows.CreateBorrow(ctx, ana, borrowReq(f.now, b.ID))
	require.NoError(t, err)
	assert.Equal(t, 1, f.stock(t, b.ID))

	requireKind(t, f.borrows.DeleteBorrow(ctx, ana, open.ID), domain.ErrForbidden, "")

	require.NoError(t, f.borrows.DeleteBorrow(ctx, f.admin, open.ID))
	assert.Equal(t, 2, f.stock(t, b.ID))

	closed, err := f.borrows.CreateBorrow(ctx, ana, borrowReq(f.now, b.ID))
	require.NoError(t, err)
	_, err = f.borrows.ReturnBorrow(ctx, ana, closed.ID, returnReq(f.now))
	require.NoError(t, err)

	require.NoError(t, f.borrows.DeleteBorrow(ctx, f.admin, closed.ID))
	assert.Equal(t, 2, f.stock(t, b.ID), "deleting a closed borrow leaves stock alone")

	requireKind(t, f.borrows.DeleteBorrow(ctx, f.admin, closed.ID), domain.ErrNotFound, "")
	f.requireAvailabilityConsistent(t)
}

func TestGetUserBorrowByID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.member(t, "ana")
	budi := f.member(t, "budi")
	b1 := f.addBook(t, "B1", 1)
	b2 := f.addBook(t, "B2", 1)

	first, err := f.borrows.CreateBorrow(ctx, ana, borrowReq(f.now, b1.ID))
	require.NoError(t, err)
	_, err = f.borrows.ReturnBorrow(ctx, ana, first.ID, returnReq(f.now))
	require.NoError(t, err)
	second, err := f.borrows.CreateBorrow(ctx, ana, borrowReq(f.now, b2.ID))
	require.NoError(t, err)

	mine, err := f.borrows.GetUserBorrowByID(ctx, ana, ana.UserID, false)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, first.ID, mine[0].ID)
	assert.Equal(t, second.ID, mine[1].ID)

	_, err = f.borrows.GetUserBorrowByID(ctx, budi, ana.UserID, false)
	requireKind(t, err, domain.ErrForbidden, "")

	_, err = f.borrows.GetUserBorrowByID(ctx, ana, ana.UserID, true)
	requireKind(t, err, domain.ErrForbidden, "")

	_, err = f.borrows.GetUserBorrowByID(ctx, f.admin, ana.UserID, false)
	requireKind(t, err, domain.ErrForbidden, "")

	theirs, err := f.borrows.GetUserBorrowByID(ctx, f.admin, ana.UserID, true)
	require.NoError(t, err)
	assert.Len(t, theirs, 2)

	all, err := f.borrows.GetAll(ctx, f.admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.borrows.GetAll(ctx, ana)
	requireKind(t, err, domain.ErrForbidden, "")
}

func TestConcurrentBorrowsOfSameBook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.addBook(t, "B1", 5)

	const members = 8
	callers := make([]domain.Caller, members)
	for i := range callers {
		callers[i] = f.member(t, string(rune('a'+i))+"member")
	}

	errs := make([]error, members)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, caller := range callers {
		wg.Add(1)
		go func(i int, caller domain.Caller) {
			defer wg.Done()
			<-start
			_, errs[i] = f.borrows.CreateBorrow(ctx, caller, borrowReq(f.now, b.ID))
		}(i, caller)
	}
	close(start)
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrBadRequest)
	}

	assert.Equal(t, 1, succeeded, "only one open borrow may reference a book")
	assert.Equal(t, 4, f.stock(t, b.ID))
	f.requireAvailabilityConsistent(t)
}

func TestConcurrentBorrowsBySameMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.member(t, "ana")

	books := make([]*domain.Book, 4)
	for i := range books {
		books[i] = f.addBook(t, string(rune('A'+i)), 1)
	}

	errs := make([]error, len(books))
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, b := range books {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			<-start
			_, errs[i] = f.borrows.CreateBorrow(ctx, ana, borrowReq(f.now, id))
		}(i, b.ID)
	}
	close(start)
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)

	open, err := f.borrowRepo.CountOpenByUser(ctx, ana.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, open)

	var onLoan int
	for _, b := range books {
		onLoan += 1 - f.stock(t, b.ID)
	}
	assert.Equal(t, 1, onLoan)
}

func TestConcurrentReturnsOfSameBorrow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.member(t, "ana")
	b := f.addBook(t, "B1", 1)

	created, err := f.borrows.CreateBorrow(ctx, ana, borrowReq(f.now, b.ID))
	require.NoError(t, err)

	const attempts = 6
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.borrows.ReturnBorrow(ctx, ana, created.ID, returnReq(f.now.Add(10*day)))
		}(i)
	}
	close(start)
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, domain.ErrNotFound), "unexpected error: %v", err)
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, f.stock(t, b.ID))

	var penalties int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM penalties WHERE user_id = ?`, ana.UserID).Scan(&penalties))
	assert.Equal(t, 1, penalties, "a single return issues a single penalty")
}

func TestConcurrentReturnAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ana := f.member(t, "ana")
	b := f.addBook(t, "B1", 1)

	created, err := f.borrows.CreateBorrow(ctx, ana, borrowReq(f.now, b.ID))
	require.NoError(t, err)

	var wg sync.WaitGroup
	start := make(chan struct{})
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-start
		_, _ = f.borrows.ReturnBorrow(ctx, ana, created.ID, returnReq(f.now))
	}()
	go func() {
		defer wg.Done()
		<-start
		_ = f.borrows.DeleteBorrow(ctx, f.admin, created.ID)
	}()
	close(start)
	wg.Wait()

	assert.Equal(t, 1, f.stock(t, b.ID), "stock is restored exactly once")
	f.requireAvailabilityConsistent(t)
}
