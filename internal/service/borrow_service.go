package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"librarian/internal/auth"
	"librarian/internal/domain"
	"librarian/pkg/logger"
	"librarian/pkg/metrics"
)

const (
	msgBorrowNotFound      = "Borrow Not Found!"
	msgBorrowNotOpen       = "Borrow book record Not Found or already returned!"
	msgStillHavePenalty    = "User still have penalty, cant rent a book!"
	msgStillHaveBorrow     = "User still have borrowed book, cant rent a book!"
	msgBooksUnavailable    = "Books not found or out of stock!"
	msgAlreadyBorrowedBook = "Books already borrowed by other user"
)

// BorrowPolicy holds the lending rules applied on return.
type BorrowPolicy struct {
	// A return later than this after the borrow date is late.
	LateThreshold time.Duration
	// Length of the penalty window opened by a late return.
	PenaltyDuration time.Duration
}

func DefaultBorrowPolicy() BorrowPolicy {
	return BorrowPolicy{
		LateThreshold:   7 * 24 * time.Hour,
		PenaltyDuration: 3 * 24 * time.Hour,
	}
}

type BorrowService struct {
	borrows   domain.BorrowRepository
	books     domain.BookRepository
	users     domain.UserRepository
	penalties domain.PenaltyRepository
	audit     domain.AuditLogService
	logger    logger.Logger
	policy    BorrowPolicy
	clock     Clock
}

func NewBorrowService(
	borrows domain.BorrowRepository,
	books domain.BookRepository,
	users domain.UserRepository,
	penalties domain.PenaltyRepository,
	audit domain.AuditLogService,
	logger logger.Logger,
	policy BorrowPolicy,
	clock Clock,
) domain.BorrowService {
	if clock == nil {
		clock = SystemClock
	}
	return &BorrowService{
		borrows:   borrows,
		books:     books,
		users:     users,
		penalties: penalties,
		audit:     audit,
		logger:    logger,
		policy:    policy,
		clock:     clock,
	}
}

// CreateBorrow opens a borrow for the calling member. The checks here give
// precise messages; the repository repeats them inside the write transaction.
func (s *BorrowService) CreateBorrow(ctx context.Context, caller domain.Caller, req domain.CreateBorrowRequest) (*domain.BorrowDetail, error) {
	if err := auth.Authorize(auth.MemberOnly, caller.Role); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	bookIDs, err := s.validateBorrowBook(ctx, caller.UserID, req.Books)
	if err != nil {
		return nil, err
	}

	borrow := &domain.Borrow{
		UserID:     caller.UserID,
		BorrowDate: *req.BorrowDate,
	}
	for _, id := range bookIDs {
		borrow.Lines = append(borrow.Lines, domain.BorrowLine{BookID: id, Quantity: domain.BorrowLineQty})
	}

	err = s.borrows.Open(ctx, borrow, s.clock())
	metrics.RecordBorrowOperation("create", err)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUserHasActivePenalty):
			return nil, domain.BadRequest(msgStillHavePenalty)
		case errors.Is(err, domain.ErrUserHasOpenBorrow):
			return nil, domain.BadRequest(msgStillHaveBorrow)
		case errors.Is(err, domain.ErrBookInOpenBorrow):
			return nil, domain.BadRequest("%s!", msgAlreadyBorrowedBook)
		case errors.Is(err, domain.ErrBookUnavailable):
			return nil, domain.BadRequest(msgBooksUnavailable)
		}
		return nil, fmt.Errorf("borrow could not be created: %w", err)
	}

	s.audit.LogAction(ctx, caller, domain.EntityTypeBorrow, borrow.ID, domain.ActionTypeCreate, formatIDs(bookIDs))

	return s.detail(ctx, borrow.ID)
}

// validateBorrowBook checks the request against the member's standing and
// returns the requested book ids in request order.
func (s *BorrowService) validateBorrowBook(ctx context.Context, userID int64, items []domain.BorrowBookItem) ([]int64, error) {
	if len(items) == 0 {
		return nil, domain.BadRequest("Books must not empty to borrow!")
	}
	if len(items) > domain.MaxBooksPerBorrow {
		return nil, domain.BadRequest("Books must not more than %d!", domain.MaxBooksPerBorrow)
	}

	bookIDs := make([]int64, 0, len(items))
	seen := make(map[int64]struct{}, len(items))
	for _, item := range items {
		if item.BookID <= 0 {
			return nil, domain.BadRequest("Book ID is required")
		}
		if _, dup := seen[item.BookID]; dup {
			return nil, domain.BadRequest("Books must be distinct!")
		}
		seen[item.BookID] = struct{}{}
		bookIDs = append(bookIDs, item.BookID)
	}

	user, err := s.users.FindByID(ctx, userID, false)
	if err != nil {
		return nil, fmt.Errorf("user could not be loaded: %w", err)
	}
	if user == nil {
		return nil, domain.NotFound(msgUserNotFound)
	}

	active, err := s.penalties.CountActiveByUser(ctx, userID, s.clock())
	if err != nil {
		return nil, fmt.Errorf("penalties could not be checked: %w", err)
	}
	if active > 0 {
		return nil, domain.BadRequest(msgStillHavePenalty)
	}

	open, err := s.borrows.CountOpenByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("open borrows could not be checked: %w", err)
	}
	if open > 0 {
		return nil, domain.BadRequest(msgStillHaveBorrow)
	}

	taken, err := s.borrows.BooksInOpenBorrows(ctx, bookIDs)
	if err != nil {
		return nil, fmt.Errorf("open borrow lines could not be checked: %w", err)
	}
	if len(taken) > 0 {
		return nil, domain.BadRequest("%s (ID: %s)!", msgAlreadyBorrowedBook, formatIDs(taken))
	}

	for _, id := range bookIDs {
		book, err := s.books.FindByID(ctx, id, false)
		if err != nil {
			return nil, fmt.Errorf("book could not be loaded: %w", err)
		}
		if book == nil || book.Stock < domain.BorrowLineQty {
			return nil, domain.BadRequest(msgBooksUnavailable)
		}
	}

	return bookIDs, nil
}

// ReturnBorrow closes an open borrow. A return more than the late threshold
// after the borrow date opens a penalty window starting now.
func (s *BorrowService) ReturnBorrow(ctx context.Context, caller domain.Caller, borrowID int64, req domain.ReturnBorrowRequest) (*domain.BorrowDetail, error) {
	if err := auth.Authorize(auth.MemberOnly, caller.Role); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	borrow, err := s.borrows.FindOpenByID(ctx, borrowID)
	if err != nil {
		return nil, fmt.Errorf("borrow could not be loaded: %w", err)
	}
	if borrow == nil {
		return nil, domain.NotFound(msgBorrowNotOpen)
	}

	returnDate := *req.ReturnDate
	if returnDate.Before(borrow.BorrowDate) {
		return nil, domain.BadRequest("Return date must not be before borrow date!")
	}

	closing := domain.CloseBorrow{BorrowID: borrow.ID, ReturnDate: returnDate}
	if s.isLate(borrow.BorrowDate, returnDate) {
		now := s.clock()
		closing.Penalty = &domain.Penalty{
			UserID:    borrow.UserID,
			StartDate: now,
			EndDate:   now.Add(s.policy.PenaltyDuration),
		}
	}

	err = s.borrows.Close(ctx, closing)
	metrics.RecordBorrowOperation("return", err)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, domain.NotFound(msgBorrowNotOpen)
		}
		return nil, fmt.Errorf("borrow could not be returned: %w", err)
	}

	if closing.Penalty != nil {
		metrics.RecordPenaltyIssued()
		s.logger.InfoContext(ctx, "Late return penalised", map[string]interface{}{
			"borrow_id":  borrow.ID,
			"user_id":    borrow.UserID,
			"penalty_id": closing.Penalty.ID,
			"end_date":   closing.Penalty.EndDate,
		})
		s.audit.LogAction(ctx, caller, domain.EntityTypePenalty, closing.Penalty.ID, domain.ActionTypeCreate, fmt.Sprintf("borrow %d", borrow.ID))
	}
	s.audit.LogAction(ctx, caller, domain.EntityTypeBorrow, borrow.ID, domain.ActionTypeReturn, "")

	return s.detail(ctx, borrow.ID)
}

// isLate compares the borrow length, rounded up to whole days, with the
// late threshold.
func (s *BorrowService) isLate(borrowDate, returnDate time.Time) bool {
	return time.Duration(ElapsedDays(borrowDate, returnDate))*24*time.Hour > s.policy.LateThreshold
}

// ElapsedDays is the number of started days between from and to.
func ElapsedDays(from, to time.Time) int64 {
	d := to.Sub(from)
	if d <= 0 {
		return 0
	}
	days := int64(d / (24 * time.Hour))
	if d%(24*time.Hour) != 0 {
		days++
	}
	return days
}

func (s *BorrowService) DeleteBorrow(ctx context.Context, caller domain.Caller, borrowID int64) error {
	if err := auth.Authorize(auth.AdminOnly, caller.Role); err != nil {
		return err
	}

	wasOpen, err := s.borrows.Delete(ctx, borrowID)
	metrics.RecordBorrowOperation("delete", err)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return domain.NotFound(msgBorrowNotFound)
		}
		return fmt.Errorf("borrow could not be deleted: %w", err)
	}

	state := domain.BorrowClosed
	if wasOpen {
		state = domain.BorrowOpen
	}
	s.logger.InfoContext(ctx, "Borrow deleted", map[string]interface{}{"borrow_id": borrowID, "state": state})
	s.audit.LogAction(ctx, caller, domain.EntityTypeBorrow, borrowID, domain.ActionTypeDelete, string(state))
	return nil
}

// GetUserBorrowByID lists one user's borrows. Administrators may ask for
// anyone; members only for themselves.
func (s *BorrowService) GetUserBorrowByID(ctx context.Context, caller domain.Caller, userID int64, isAdmin bool) ([]*domain.BorrowDetail, error) {
	if isAdmin {
		if err := auth.Authorize(auth.AdminOnly, caller.Role); err != nil {
			return nil, err
		}
	} else {
		if err := auth.Authorize(auth.MemberOnly, caller.Role); err != nil {
			return nil, err
		}
		if userID != caller.UserID {
			return nil, domain.Forbidden("You are not allowed to view this user's borrows")
		}
	}

	details, err := s.borrows.ListDetails(ctx, &userID)
	if err != nil {
		return nil, fmt.Errorf("borrows could not be listed: %w", err)
	}
	return details, nil
}

func (s *BorrowService) GetAll(ctx context.Context, caller domain.Caller) ([]*domain.BorrowDetail, error) {
	if err := auth.Authorize(auth.AdminOnly, caller.Role); err != nil {
		return nil, err
	}

	details, err := s.borrows.ListDetails(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("borrows could not be listed: %w", err)
	}
	return details, nil
}

func (s *BorrowService) detail(ctx context.Context, id int64) (*domain.BorrowDetail, error) {
	detail, err := s.borrows.FindDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("borrow could not be loaded: %w", err)
	}
	if detail == nil {
		return nil, domain.NotFound(msgBorrowNotFound)
	}
	return detail, nil
}

func formatIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ", ")
}
