package domain

import (
	"context"
	"strings"
	"time"
)

type Book struct {
	ID          int64       `json:"id"`
	Code        string      `json:"code"`
	Title       string      `json:"title"`
	Author      string      `json:"author"`
	Stock       int         `json:"stock"`
	IsAvailable bool        `json:"is_available"`
	State       RecordState `json:"state,omitempty"`
	DeletedAt   *time.Time  `json:"deleted_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

func (b *Book) IsDeleted() bool {
	return b.State == StateDeleted
}

// Public strips the fields only administrators may see.
func (b *Book) Public() *Book {
	out := *b
	out.State = ""
	out.DeletedAt = nil
	return &out
}

type BookSummary struct {
	ID     int64  `json:"id"`
	Code   string `json:"code"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

type BookList struct {
	AvailableBooks int     `json:"available_book"`
	Books          []*Book `json:"books"`
}

type CreateBookRequest struct {
	Title  string `json:"title"`
	Author string `json:"author"`
	Code   string `json:"code"`
}

func (r CreateBookRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" || strings.TrimSpace(r.Author) == "" || strings.TrimSpace(r.Code) == "" {
		return BadRequest("Title, Author, and Code are required!")
	}
	return nil
}

// UpdateBookRequest is a partial update: nil fields keep their stored value.
type UpdateBookRequest struct {
	Title  *string `json:"title"`
	Author *string `json:"author"`
	Code   *string `json:"code"`
	Stock  *int    `json:"stock"`
}

func (r UpdateBookRequest) Validate() error {
	if r.Stock != nil && *r.Stock < 0 {
		return BadRequest("Stock must not be negative!")
	}
	for _, f := range []*string{r.Title, r.Author, r.Code} {
		if f != nil && strings.TrimSpace(*f) == "" {
			return BadRequest("Title, Author, and Code must not be empty!")
		}
	}
	return nil
}

type BookFilter struct {
	Title          string
	IncludeDeleted bool
}

type BookRepository interface {
	FindByID(ctx context.Context, id int64, includeDeleted bool) (*Book, error)
	FindActiveByCode(ctx context.Context, code string) (*Book, error)
	List(ctx context.Context, filter BookFilter) ([]*Book, error)
	CountAvailable(ctx context.Context) (int, error)
	Create(ctx context.Context, book *Book) error
	Update(ctx context.Context, id int64, changes UpdateBookRequest) (*Book, error)
	SoftDelete(ctx context.Context, id int64, at time.Time) error
	Recover(ctx context.Context, id int64) (*Book, error)
}

type BookService interface {
	GetAll(ctx context.Context, caller Caller, title string) (*BookList, error)
	GetByID(ctx context.Context, caller Caller, id int64) (*Book, error)
	Create(ctx context.Context, caller Caller, req CreateBookRequest) (*Book, error)
	Update(ctx context.Context, caller Caller, id int64, req UpdateBookRequest) (*Book, error)
	Delete(ctx context.Context, caller Caller, id int64) error
	Recover(ctx context.Context, caller Caller, id int64) (*Book, error)
}
