package service

import (
	"context"
	"strings"

	"librarian/internal/domain"
	"librarian/pkg/cache"
	"librarian/pkg/logger"
)

// CachedBookService wraps BookService with a read-through cache for the
// public catalog. Administrator reads always go to the database because they
// include deleted books.
type CachedBookService struct {
	bookService  domain.BookService
	cacheManager cache.CacheStrategy
	logger       logger.Logger
}

func NewCachedBookService(bookService domain.BookService, cacheManager cache.CacheStrategy, logger logger.Logger) domain.BookService {
	return &CachedBookService{
		bookService:  bookService,
		cacheManager: cacheManager,
		logger:       logger,
	}
}

func (s *CachedBookService) GetAll(ctx context.Context, caller domain.Caller, title string) (*domain.BookList, error) {
	if caller.IsAdmin() {
		return s.bookService.GetAll(ctx, caller, title)
	}

	key := cache.BookListCacheKey(strings.ToLower(strings.TrimSpace(title)))

	var list domain.BookList
	err := s.cacheManager.ReadThrough(ctx, key, &list, func() (interface{}, error) {
		return s.bookService.GetAll(ctx, caller, title)
	}, cache.ShortExpiration)
	if err != nil {
		return nil, err
	}

	return &list, nil
}

func (s *CachedBookService) GetByID(ctx context.Context, caller domain.Caller, id int64) (*domain.Book, error) {
	if caller.IsAdmin() {
		return s.bookService.GetByID(ctx, caller, id)
	}

	var book domain.Book
	err := s.cacheManager.ReadThrough(ctx, cache.BookCacheKey(id), &book, func() (interface{}, error) {
		return s.bookService.GetByID(ctx, caller, id)
	}, cache.MediumExpiration)
	if err != nil {
		return nil, err
	}

	return &book, nil
}

func (s *CachedBookService) Create(ctx context.Context, caller domain.Caller, req domain.CreateBookRequest) (*domain.Book, error) {
	book, err := s.bookService.Create(ctx, caller, req)
	if err == nil {
		s.cacheManager.Invalidate(ctx, cache.BookPrefixPattern)
	}
	return book, err
}

func (s *CachedBookService) Update(ctx context.Context, caller domain.Caller, id int64, req domain.UpdateBookRequest) (*domain.Book, error) {
	book, err := s.bookService.Update(ctx, caller, id, req)
	if err == nil {
		s.cacheManager.Invalidate(ctx, cache.BookPrefixPattern)
	}
	return book, err
}

func (s *CachedBookService) Delete(ctx context.Context, caller domain.Caller, id int64) error {
	err := s.bookService.Delete(ctx, caller, id)
	if err == nil {
		s.cacheManager.Invalidate(ctx, cache.BookPrefixPattern)
	}
	return err
}

func (s *CachedBookService) Recover(ctx context.Context, caller domain.Caller, id int64) (*domain.Book, error) {
	book, err := s.bookService.Recover(ctx, caller, id)
	if err == nil {
		s.cacheManager.Invalidate(ctx, cache.BookPrefixPattern)
	}
	return book, err
}

// CachedBorrowService drops cached catalog entries whenever a ledger write
// changes stock.
type CachedBorrowService struct {
	domain.BorrowService
	cacheManager cache.CacheStrategy
}

func NewCachedBorrowService(borrowService domain.BorrowService, cacheManager cache.CacheStrategy) domain.BorrowService {
	return &CachedBorrowService{
		BorrowService: borrowService,
		cacheManager:  cacheManager,
	}
}

func (s *CachedBorrowService) CreateBorrow(ctx context.Context, caller domain.Caller, req domain.CreateBorrowRequest) (*domain.BorrowDetail, error) {
	detail, err := s.BorrowService.CreateBorrow(ctx, caller, req)
	if err == nil {
		s.cacheManager.Invalidate(ctx, cache.BookPrefixPattern)
	}
	return detail, err
}

func (s *CachedBorrowService) ReturnBorrow(ctx context.Context, caller domain.Caller, borrowID int64, req domain.ReturnBorrowRequest) (*domain.BorrowDetail, error) {
	detail, err := s.BorrowService.ReturnBorrow(ctx, caller, borrowID, req)
	if err == nil {
		s.cacheManager.Invalidate(ctx, cache.BookPrefixPattern)
	}
	return detail, err
}

func (s *CachedBorrowService) DeleteBorrow(ctx context.Context, caller domain.Caller, borrowID int64) error {
	err := s.BorrowService.DeleteBorrow(ctx, caller, borrowID)
	if err == nil {
		s.cacheManager.Invalidate(ctx, cache.BookPrefixPattern)
	}
	return err
}
