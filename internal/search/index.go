// Package search maintains a Bleve index over the library for candidate
// lookup during import reconciliation and for general title search.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/shelfsyncapp/shelfsync-server/internal/domain"
)

// Index wraps a Bleve index with domain-specific operations.
//
// Thread safety: all public methods are safe for concurrent use.
type Index struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex
}

// Options configures the search index.
type Options struct {
	DataPath string       // Directory for index storage
	Logger   *slog.Logger // Logger for operations (uses stderr if nil)
}

// mappingVersion is incremented whenever the index mapping changes.
// A mismatch on startup triggers an automatic rebuild.
const mappingVersion = "1"

// NewIndex creates or opens the search index. A corrupted index or one with
// an outdated mapping version is removed and recreated.
func NewIndex(opts Options) (*Index, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	indexPath := filepath.Join(opts.DataPath, "search.bleve")
	versionPath := filepath.Join(opts.DataPath, "search.version")

	var index bleve.Index
	var err error
	needsRebuild := false

	indexExists := false
	if _, statErr := os.Stat(indexPath); statErr == nil {
		indexExists = true
	}

	if indexExists {
		existingVersion, readErr := os.ReadFile(versionPath)
		if readErr != nil {
			logger.Info("search index has no version file, will rebuild",
				"new_version", mappingVersion)
			needsRebuild = true
		} else if string(existingVersion) != mappingVersion {
			logger.Info("search index mapping version changed, will rebuild",
				"old_version", string(existingVersion),
				"new_version", mappingVersion)
			needsRebuild = true
		}
	}

	if !needsRebuild && indexExists {
		index, err = bleve.Open(indexPath)
		if err != nil {
			logger.Warn("failed to open existing index, will recreate",
				"path", indexPath, "error", err)
			needsRebuild = true
		}
	}

	if needsRebuild {
		if removeErr := os.RemoveAll(indexPath); removeErr != nil {
			return nil, fmt.Errorf("remove old index: %w", removeErr)
		}
		index = nil
	}

	if index == nil {
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		if writeErr := os.WriteFile(versionPath, []byte(mappingVersion), 0644); writeErr != nil {
			logger.Warn("failed to write search version file", "error", writeErr)
		}
		logger.Info("created new search index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		logger.Info("opened existing search index", "path", indexPath)
	}

	return &Index{index: index, path: indexPath, logger: logger}, nil
}

// IndexBook adds or updates one book. The document id is the ISBN.
func (s *Index) IndexBook(ctx context.Context, book *domain.Book) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if book.ISBN == "" {
		return fmt.Errorf("cannot index book without isbn")
	}
	if err := s.index.Index(book.ISBN, newBookDocument(book)); err != nil {
		return fmt.Errorf("index book %s: %w", book.ISBN, err)
	}
	return nil
}

// IndexBatch indexes many books in one Bleve batch.
func (s *Index) IndexBatch(ctx context.Context, books []*domain.Book) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batch := s.index.NewBatch()
	for _, book := range books {
		if book.ISBN == "" {
			continue
		}
		if err := batch.Index(book.ISBN, newBookDocument(book)); err != nil {
			return fmt.Errorf("batch index book %s: %w", book.ISBN, err)
		}
	}
	if err := s.index.Batch(batch); err != nil {
		return fmt.Errorf("apply index batch: %w", err)
	}
	s.logger.Debug("indexed book batch", "count", len(books))
	return nil
}

// DeleteBook removes a book from the index.
func (s *Index) DeleteBook(ctx context.Context, isbn string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.index.Delete(isbn); err != nil {
		return fmt.Errorf("delete book %s from index: %w", isbn, err)
	}
	return nil
}

// Count reports the number of indexed documents.
func (s *Index) Count() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild reindexes the whole library from scratch.
func (s *Index) Rebuild(ctx context.Context, books []*domain.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.index.NewBatch()
	for _, book := range books {
		if book.ISBN == "" {
			continue
		}
		if err := batch.Index(book.ISBN, newBookDocument(book)); err != nil {
			return fmt.Errorf("rebuild index book %s: %w", book.ISBN, err)
		}
	}
	if err := s.index.Batch(batch); err != nil {
		return fmt.Errorf("apply rebuild batch: %w", err)
	}
	s.logger.Info("search index rebuilt", "books", len(books))
	return nil
}

// Close closes the underlying index.
func (s *Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}
