// Package service contains the application services that sit between the
// HTTP API and the storage, search, and import layers.
package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/shelfsyncapp/shelfsync-server/internal/domain"
	apperrors "github.com/shelfsyncapp/shelfsync-server/internal/errors"
	"github.com/shelfsyncapp/shelfsync-server/internal/ingest"
	"github.com/shelfsyncapp/shelfsync-server/internal/logger"
	"github.com/shelfsyncapp/shelfsync-server/internal/search"
	"github.com/shelfsyncapp/shelfsync-server/internal/sse"
	"github.com/shelfsyncapp/shelfsync-server/internal/store"
)

// ImportService orchestrates import runs: it owns batch ids, keeps finished
// reports for later retrieval, streams progress over SSE, and keeps the
// search index in sync with imported books.
type ImportService struct {
	store  *store.Store
	index  *search.Index
	engine *ingest.Engine
	sse    *sse.Manager
	logger *logger.Logger

	mu      sync.RWMutex
	reports map[string]*domain.ImportBatchReport
}

// candidateFinder adapts the search index to the import engine: the index
// returns ISBNs, the engine wants full book records.
type candidateFinder struct {
	store *store.Store
	index *search.Index
}

func (f *candidateFinder) FindCandidates(ctx context.Context, title string, authors []string, limit int) ([]*domain.Book, error) {
	isbns, err := f.index.FindCandidates(ctx, title, authors, limit)
	if err != nil {
		return nil, err
	}
	books := make([]*domain.Book, 0, len(isbns))
	for _, isbn := range isbns {
		book, err := f.store.GetBook(ctx, isbn)
		if err != nil {
			// The index can briefly lag behind the store. Skip, don't fail.
			continue
		}
		books = append(books, book)
	}
	return books, nil
}

// NewImportService creates an import service and its engine.
func NewImportService(st *store.Store, index *search.Index, queue *ingest.Queue, sseManager *sse.Manager, log *logger.Logger, opts ingest.Options) *ImportService {
	finder := &candidateFinder{store: st, index: index}
	return &ImportService{
		store:   st,
		index:   index,
		engine:  ingest.NewEngine(st, finder, queue, log, opts),
		sse:     sseManager,
		logger:  log,
		reports: make(map[string]*domain.ImportBatchReport),
	}
}

// Preview runs a dry-run classification of an uploaded file.
func (s *ImportService) Preview(ctx context.Context, data []byte, filename, declaredFormat string, overrides ingest.FieldMapping, sampleSize int) (*ingest.PreviewResult, error) {
	format, err := ingest.DetectFormat(filename, declaredFormat)
	if err != nil {
		return nil, err
	}
	return s.engine.Preview(ctx, data, format, overrides, sampleSize)
}

// Commit runs a full import. The report is retained in memory so clients
// can fetch per-row outcomes after the run.
func (s *ImportService) Commit(ctx context.Context, data []byte, filename, declaredFormat string, overrides ingest.FieldMapping) (*domain.ImportBatchReport, error) {
	format, err := ingest.DetectFormat(filename, declaredFormat)
	if err != nil {
		return nil, err
	}

	batchID := "imp-" + uuid.NewString()
	if s.sse != nil {
		s.sse.Emit(sse.NewImportStartedEvent(batchID))
	}

	progress := func(processed, total int) {
		if s.sse != nil {
			s.sse.Emit(sse.NewImportProgressEvent(batchID, processed, total))
		}
	}

	report, err := s.engine.Commit(ctx, batchID, filename, data, format, overrides, progress)
	if report != nil {
		s.mu.Lock()
		s.reports[batchID] = report
		s.mu.Unlock()
	}
	if err != nil {
		if s.sse != nil {
			s.sse.Emit(sse.NewImportFailedEvent(batchID, err.Error()))
		}
		return report, err
	}

	s.indexImported(ctx, report)

	if s.sse != nil {
		s.sse.Emit(sse.NewImportCompletedEvent(batchID, sse.ImportCompletedData{
			TotalRows:    report.TotalRows,
			Imported:     report.Imported,
			Skipped:      report.Skipped,
			Failed:       report.Failed,
			NotProcessed: report.NotProcessed,
			Queued:       report.Queued,
			Cancelled:    report.Cancelled,
		}))
	}
	return report, nil
}

// indexImported pushes this run's imported books into the search index.
// Indexing is best-effort: the books are already persisted.
func (s *ImportService) indexImported(ctx context.Context, report *domain.ImportBatchReport) {
	var books []*domain.Book
	for i := range report.Outcomes {
		if report.Outcomes[i].Kind == domain.OutcomeImported && report.Outcomes[i].Book != nil {
			books = append(books, report.Outcomes[i].Book)
		}
	}
	if len(books) == 0 || s.index == nil {
		return
	}
	if err := s.index.IndexBatch(ctx, books); err != nil {
		s.logger.WithError(err).Warn("indexing imported books failed",
			slog.String("batch_id", report.BatchID))
	}
}

// GetReport returns a finished batch report by id.
func (s *ImportService) GetReport(batchID string) (*domain.ImportBatchReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	report, ok := s.reports[batchID]
	if !ok {
		return nil, apperrors.NotFoundf("import batch %s not found", batchID)
	}
	return report, nil
}

// ListReports returns all retained batch reports, most recent first.
func (s *ImportService) ListReports() []*domain.ImportBatchReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.ImportBatchReport, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// ListManualMatches returns the unresolved manual match entries.
func (s *ImportService) ListManualMatches() []*domain.ManualMatchEntry {
	return s.engine.Queue().List()
}

// ResolveManualMatches applies user decisions to queued entries and keeps
// the search index in step with any books the decisions created.
func (s *ImportService) ResolveManualMatches(ctx context.Context, decisions []domain.MatchDecision) ([]domain.RowOutcome, error) {
	outcomes, err := s.engine.ResolveMatches(ctx, decisions)
	if err != nil {
		return nil, err
	}

	for i := range outcomes {
		if outcomes[i].Kind != domain.OutcomeImported || outcomes[i].Book == nil {
			continue
		}
		if s.index != nil {
			if ierr := s.index.IndexBook(ctx, outcomes[i].Book); ierr != nil {
				s.logger.WithError(ierr).Warn("indexing resolved book failed",
					slog.String("isbn", outcomes[i].Book.ISBN))
			}
		}
		if s.sse != nil {
			s.sse.Emit(sse.NewBookCreatedEvent(outcomes[i].Book.ISBN))
		}
	}
	return outcomes, nil
}
