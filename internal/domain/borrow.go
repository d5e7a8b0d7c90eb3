package domain

import (
	"context"
	"time"
)

const (
	MaxBooksPerBorrow = 2
	BorrowLineQty     = 1
)

type BorrowState string

const (
	BorrowOpen   BorrowState = "OPEN"
	BorrowClosed BorrowState = "CLOSED"
)

type BorrowLine struct {
	BookID   int64 `json:"book_id"`
	Quantity int   `json:"quantity"`
}

type Borrow struct {
	ID             int64        `json:"id"`
	UserID         int64        `json:"user_id"`
	BorrowDate     time.Time    `json:"borrow_date"`
	ReturnDate     *time.Time   `json:"return_date"`
	PenaltyApplied bool         `json:"penalty_applied"`
	CreatedAt      time.Time    `json:"created_at"`
	Lines          []BorrowLine `json:"-"`
}

func (b *Borrow) State() BorrowState {
	if b.ReturnDate == nil {
		return BorrowOpen
	}
	return BorrowClosed
}

func (b *Borrow) BookIDs() []int64 {
	ids := make([]int64, 0, len(b.Lines))
	for _, l := range b.Lines {
		ids = append(ids, l.BookID)
	}
	return ids
}

// BorrowDetail is a borrow with the owner and the borrowed books embedded.
type BorrowDetail struct {
	ID             int64         `json:"id"`
	BorrowDate     time.Time     `json:"borrow_date"`
	ReturnDate     *time.Time    `json:"return_date"`
	PenaltyApplied bool          `json:"penalty_applied"`
	CreatedAt      time.Time     `json:"created_at"`
	User           UserSummary   `json:"user"`
	BorrowedBooks  []BookSummary `json:"borrowed_book"`
}

type BorrowBookItem struct {
	BookID int64 `json:"book_id"`
}

type CreateBorrowRequest struct {
	BorrowDate *time.Time       `json:"borrow_date"`
	Books      []BorrowBookItem `json:"request_borrow_book"`
}

func (r CreateBorrowRequest) Validate() error {
	if r.BorrowDate == nil || r.BorrowDate.IsZero() {
		return BadRequest("Borrow date is required!")
	}
	return nil
}

type ReturnBorrowRequest struct {
	ReturnDate *time.Time `json:"return_date"`
}

func (r ReturnBorrowRequest) Validate() error {
	if r.ReturnDate == nil || r.ReturnDate.IsZero() {
		return BadRequest("Return date is required!")
	}
	return nil
}

// CloseBorrow carries everything the return transaction writes.
type CloseBorrow struct {
	BorrowID   int64
	ReturnDate time.Time
	Penalty    *Penalty
}

type BorrowRepository interface {
	FindByID(ctx context.Context, id int64) (*Borrow, error)
	FindOpenByID(ctx context.Context, id int64) (*Borrow, error)
	CountOpenByUser(ctx context.Context, userID int64) (int, error)
	BooksInOpenBorrows(ctx context.Context, bookIDs []int64) ([]int64, error)
	ListDetails(ctx context.Context, userID *int64) ([]*BorrowDetail, error)
	FindDetail(ctx context.Context, id int64) (*BorrowDetail, error)

	Open(ctx context.Context, borrow *Borrow, now time.Time) error
	Close(ctx context.Context, req CloseBorrow) error
	Delete(ctx context.Context, id int64) (wasOpen bool, err error)
}

type BorrowService interface {
	CreateBorrow(ctx context.Context, caller Caller, req CreateBorrowRequest) (*BorrowDetail, error)
	ReturnBorrow(ctx context.Context, caller Caller, borrowID int64, req ReturnBorrowRequest) (*BorrowDetail, error)
	DeleteBorrow(ctx context.Context, caller Caller, borrowID int64) error
	GetUserBorrowByID(ctx context.Context, caller Caller, userID int64, isAdmin bool) ([]*BorrowDetail, error)
	GetAll(ctx context.Context, caller Caller) ([]*BorrowDetail, error)
}
