package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"librarian/internal/auth"
	"librarian/internal/domain"
	"librarian/pkg/logger"
)

const (
	msgBookNotFound   = "Book Not Found!"
	msgBookCodeExists = "Code of Book already exists!"
)

type BookService struct {
	repo   domain.BookRepository
	audit  domain.AuditLogService
	logger logger.Logger
	clock  Clock
}

func NewBookService(repo domain.BookRepository, audit domain.AuditLogService, logger logger.Logger, clock Clock) domain.BookService {
	if clock == nil {
		clock = SystemClock
	}
	return &BookService{
		repo:   repo,
		audit:  audit,
		logger: logger,
		clock:  clock,
	}
}

// GetAll lists live books for everyone; administrators also see deleted ones.
func (s *BookService) GetAll(ctx context.Context, caller domain.Caller, title string) (*domain.BookList, error) {
	if err := auth.Authorize(auth.AllRoles, caller.Role); err != nil {
		return nil, err
	}

	books, err := s.repo.List(ctx, domain.BookFilter{Title: title, IncludeDeleted: caller.IsAdmin()})
	if err != nil {
		return nil, fmt.Errorf("books could not be listed: %w", err)
	}

	available, err := s.repo.CountAvailable(ctx)
	if err != nil {
		return nil, fmt.Errorf("available books could not be counted: %w", err)
	}

	if !caller.IsAdmin() {
		for i, b := range books {
			books[i] = b.Public()
		}
	}

	return &domain.BookList{AvailableBooks: available, Books: books}, nil
}

func (s *BookService) GetByID(ctx context.Context, caller domain.Caller, id int64) (*domain.Book, error) {
	if err := auth.Authorize(auth.AllRoles, caller.Role); err != nil {
		return nil, err
	}

	book, err := s.repo.FindByID(ctx, id, caller.IsAdmin())
	if err != nil {
		return nil, fmt.Errorf("book could not be loaded: %w", err)
	}
	if book == nil {
		return nil, domain.NotFound(msgBookNotFound)
	}

	if !caller.IsAdmin() {
		return book.Public(), nil
	}
	return book, nil
}

func (s *BookService) Create(ctx context.Context, caller domain.Caller, req domain.CreateBookRequest) (*domain.Book, error) {
	if err := auth.Authorize(auth.AdminOnly, caller.Role); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	book := &domain.Book{
		Code:   strings.TrimSpace(req.Code),
		Title:  strings.TrimSpace(req.Title),
		Author: strings.TrimSpace(req.Author),
		Stock:  1,
	}

	existing, err := s.repo.FindActiveByCode(ctx, book.Code)
	if err != nil {
		return nil, fmt.Errorf("book code could not be checked: %w", err)
	}
	if existing != nil {
		return nil, domain.BadRequest(msgBookCodeExists)
	}

	if err := s.repo.Create(ctx, book); err != nil {
		if errors.Is(err, domain.ErrDuplicateCode) {
			return nil, domain.BadRequest(msgBookCodeExists)
		}
		return nil, fmt.Errorf("book could not be created: %w", err)
	}

	s.logger.InfoContext(ctx, "Book created", map[string]interface{}{"book_id": book.ID, "code": book.Code})
	s.audit.LogAction(ctx, caller, domain.EntityTypeBook, book.ID, domain.ActionTypeCreate, book.Code)

	return book, nil
}

// Update applies a partial edit. Administrators may also edit a deleted book,
// for instance to restock it before recovering it.
func (s *BookService) Update(ctx context.Context, caller domain.Caller, id int64, req domain.UpdateBookRequest) (*domain.Book, error) {
	if err := auth.Authorize(auth.AdminOnly, caller.Role); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	current, err := s.repo.FindByID(ctx, id, true)
	if err != nil {
		return nil, fmt.Errorf("book could not be loaded: %w", err)
	}
	if current == nil {
		return nil, domain.NotFound(msgBookNotFound)
	}

	changes := domain.UpdateBookRequest{Stock: req.Stock}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		changes.Title = &title
	}
	if req.Author != nil {
		author := strings.TrimSpace(*req.Author)
		changes.Author = &author
	}
	if req.Code != nil {
		code := strings.TrimSpace(*req.Code)
		if code != current.Code {
			other, err := s.repo.FindActiveByCode(ctx, code)
			if err != nil {
				return nil, fmt.Errorf("book code could not be checked: %w", err)
			}
			if other != nil && other.ID != id {
				return nil, domain.BadRequest(msgBookCodeExists)
			}
		}
		changes.Code = &code
	}

	book, err := s.repo.Update(ctx, id, changes)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicateCode):
			return nil, domain.BadRequest(msgBookCodeExists)
		case errors.Is(err, domain.ErrRecordNotFound):
			return nil, domain.NotFound(msgBookNotFound)
		}
		return nil, fmt.Errorf("book could not be updated: %w", err)
	}

	s.audit.LogAction(ctx, caller, domain.EntityTypeBook, book.ID, domain.ActionTypeUpdate, "")
	return book, nil
}

func (s *BookService) Delete(ctx context.Context, caller domain.Caller, id int64) error {
	if err := auth.Authorize(auth.AdminOnly, caller.Role); err != nil {
		return err
	}

	if err := s.repo.SoftDelete(ctx, id, s.clock().UTC()); err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			return domain.NotFound(msgBookNotFound)
		case errors.Is(err, domain.ErrBookInOpenBorrow):
			return domain.BadRequest("Book is still borrowed, cant delete the book!")
		}
		return fmt.Errorf("book could not be deleted: %w", err)
	}

	s.logger.InfoContext(ctx, "Book deleted", map[string]interface{}{"book_id": id})
	s.audit.LogAction(ctx, caller, domain.EntityTypeBook, id, domain.ActionTypeDelete, "")
	return nil
}

func (s *BookService) Recover(ctx context.Context, caller domain.Caller, id int64) (*domain.Book, error) {
	if err := auth.Authorize(auth.AdminOnly, caller.Role); err != nil {
		return nil, err
	}

	book, err := s.repo.Recover(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			return nil, domain.NotFound("Book Not Found or still activated!")
		case errors.Is(err, domain.ErrDuplicateCode):
			return nil, domain.BadRequest(msgBookCodeExists)
		case errors.Is(err, domain.ErrBookOutOfStock):
			return nil, domain.BadRequest("Book is out of stock, update the stock before recovering!")
		}
		return nil, fmt.Errorf("book could not be recovered: %w", err)
	}

	s.audit.LogAction(ctx, caller, domain.EntityTypeBook, id, domain.ActionTypeRecover, "")
	return book, nil
}
