package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shelfsyncapp/shelfsync-server/internal/domain"
	apperrors "github.com/shelfsyncapp/shelfsync-server/internal/errors"
	"github.com/shelfsyncapp/shelfsync-server/internal/logger"
	"github.com/shelfsyncapp/shelfsync-server/internal/search"
	"github.com/shelfsyncapp/shelfsync-server/internal/store"
)

// BookService exposes library browsing and search.
type BookService struct {
	store  *store.Store
	index  *search.Index
	logger *logger.Logger
}

// NewBookService creates a book service.
func NewBookService(st *store.Store, index *search.Index, log *logger.Logger) *BookService {
	return &BookService{store: st, index: index, logger: log}
}

// GetBook returns one book by normalized ISBN.
func (s *BookService) GetBook(ctx context.Context, isbn string) (*domain.Book, error) {
	book, err := s.store.GetBook(ctx, isbn)
	if err != nil {
		if errors.Is(err, store.ErrBookNotFound) {
			return nil, apperrors.NotFoundf("book %s not found", isbn)
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

// ListBooks returns the whole library ordered by ISBN.
func (s *BookService) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	return s.store.ListBooks(ctx)
}

// CountBooks reports the library size.
func (s *BookService) CountBooks(ctx context.Context) (int, error) {
	return s.store.CountBooks(ctx)
}

// Search runs a full-text query and loads the matching books.
func (s *BookService) Search(ctx context.Context, query string, limit int) ([]*domain.Book, error) {
	isbns, err := s.index.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	books := make([]*domain.Book, 0, len(isbns))
	for _, isbn := range isbns {
		book, err := s.store.GetBook(ctx, isbn)
		if err != nil {
			// Index may lag the store briefly after a delete.
			continue
		}
		books = append(books, book)
	}
	return books, nil
}

// RebuildSearchIndex reindexes the whole library. Used at startup so the
// index always reflects the store.
func (s *BookService) RebuildSearchIndex(ctx context.Context) error {
	books, err := s.store.ListBooks(ctx)
	if err != nil {
		return fmt.Errorf("list books for reindex: %w", err)
	}
	return s.index.Rebuild(ctx, books)
}
