package store

import (
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/shelfsyncapp/shelfsync-server/internal/domain"
	"github.com/shelfsyncapp/shelfsync-server/internal/ingest"
)

const bookPrefix = "book:"

var (
	ErrBookNotFound = errors.New("book not found")
	ErrEmptyISBN    = errors.New("book has no isbn")
)

// Book Operations

// PutBook creates or replaces a book. The ISBN is the primary key, so
// writing an existing ISBN updates the record in place.
func (s *Store) PutBook(ctx context.Context, book *domain.Book) error {
	if book.ISBN == "" {
		return ErrEmptyISBN
	}
	key := []byte(bookPrefix + book.ISBN)
	updated, err := s.exists(key)
	if err != nil {
		return fmt.Errorf("put book: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(book)
		if err != nil {
			return fmt.Errorf("marshal book: %w", err)
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("put book: %w", err)
	}

	if s.logger != nil {
		s.logger.LogAttrs(ctx, slog.LevelDebug, "book written",
			slog.String("isbn", book.ISBN),
			slog.String("title", book.Title),
			slog.Bool("updated", updated),
		)
	}
	return nil
}

// GetBook retrieves a book by normalized ISBN.
func (s *Store) GetBook(ctx context.Context, isbn string) (*domain.Book, error) {
	key := []byte(bookPrefix + isbn)

	var book domain.Book
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &book)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return &book, nil
}

// DeleteBook removes a book by ISBN. Deleting a missing book is not an error.
func (s *Store) DeleteBook(ctx context.Context, isbn string) error {
	key := []byte(bookPrefix + isbn)
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	return nil
}

// ListBooks returns all books ordered by ISBN.
func (s *Store) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	var books []*domain.Book
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(bookPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var book domain.Book
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &book)
			})
			if err != nil {
				return err
			}
			books = append(books, &book)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ISBN < books[j].ISBN })
	return books, nil
}

// CountBooks reports the number of stored books using key-only iteration.
func (s *Store) CountBooks(ctx context.Context) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(bookPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return count, nil
}

// ExistingISBNs snapshots the set of stored ISBNs for import dedup.
// Key-only iteration, values are never loaded.
func (s *Store) ExistingISBNs(ctx context.Context) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(bookPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			isbn := strings.TrimPrefix(string(it.Item().Key()), bookPrefix)
			out[isbn] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot isbns: %w", err)
	}
	return out, nil
}

// WriteBooks persists an import batch using Badger's WriteBatch. A failure
// on one book is reported per-row; the remaining books still commit.
func (s *Store) WriteBooks(ctx context.Context, books []*domain.Book) ([]ingest.WriteFailure, error) {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	var failures []ingest.WriteFailure
	written := 0
	for _, book := range books {
		if book.ISBN == "" {
			failures = append(failures, ingest.WriteFailure{ISBN: book.ISBN, Err: ErrEmptyISBN})
			continue
		}
		data, err := json.Marshal(book)
		if err != nil {
			failures = append(failures, ingest.WriteFailure{ISBN: book.ISBN, Err: fmt.Errorf("marshal book: %w", err)})
			continue
		}
		if err := wb.Set([]byte(bookPrefix+book.ISBN), data); err != nil {
			failures = append(failures, ingest.WriteFailure{ISBN: book.ISBN, Err: fmt.Errorf("batch set: %w", err)})
			continue
		}
		written++
	}

	if err := wb.Flush(); err != nil {
		return nil, fmt.Errorf("flush batch: %w", err)
	}

	if s.logger != nil {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "book batch written",
			slog.Int("written", written),
			slog.Int("failed", len(failures)),
		)
	}
	return failures, nil
}
