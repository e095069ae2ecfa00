package ingest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shelfsyncapp/shelfsync-server/internal/domain"
	apperrors "github.com/shelfsyncapp/shelfsync-server/internal/errors"
	"github.com/shelfsyncapp/shelfsync-server/internal/id"
	"github.com/shelfsyncapp/shelfsync-server/internal/logger"
)

// Engine runs the import pipeline: decode, map, normalize, dedup, and either
// preview the classification or commit it against the library. One Engine is
// safe to share; each run keeps its own indexes.
type Engine struct {
	lib    Library
	finder CandidateFinder
	queue  *Queue
	log    *logger.Logger
	opts   Options
}

// NewEngine wires an engine to its storage and lookup collaborators.
// finder may be nil, in which case manual match entries carry no candidates.
func NewEngine(lib Library, finder CandidateFinder, queue *Queue, log *logger.Logger, opts Options) *Engine {
	return &Engine{
		lib:    lib,
		finder: finder,
		queue:  queue,
		log:    log,
		opts:   opts.withDefaults(),
	}
}

// Queue exposes the manual match queue for listing.
func (e *Engine) Queue() *Queue { return e.queue }

// PreviewResult is a dry-run classification of an import file.
type PreviewResult struct {
	Headers   []string            `json:"headers"`
	Mapping   FieldMapping        `json:"mapping"`
	TotalRows int                 `json:"total_rows"`
	Sample    []domain.RowOutcome `json:"sample"`
}

// Preview classifies up to sampleSize rows without writing anything or
// touching the manual match queue. Safe to run concurrently with any other
// read, including a running commit.
func (e *Engine) Preview(ctx context.Context, data []byte, format FormatID, overrides FieldMapping, sampleSize int) (*PreviewResult, error) {
	if sampleSize <= 0 {
		sampleSize = 20
	}

	headers, rows, err := Decode(data, format)
	if err != nil {
		return nil, err
	}
	mapping, err := ResolveMapping(headers, format, overrides)
	if err != nil {
		return nil, err
	}

	existing, err := e.lib.ExistingISBNs(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStorage, "loading library index")
	}

	norm := NewNormalizer(e.opts.Strict, e.log)
	batchSeen := make(map[string]struct{})
	sample := make([]domain.RowOutcome, 0, min(sampleSize, len(rows)))
	for _, row := range rows {
		if len(sample) >= sampleSize {
			break
		}
		book, failure := norm.Normalize(row, mapping, format)
		if failure != nil {
			sample = append(sample, domain.RowOutcome{
				RowNumber:  row.Number,
				Kind:       domain.OutcomeFailed,
				FailCode:   string(failure.Err.Code),
				FailDetail: failure.Err.Message,
				Raw:        failure.Raw,
			})
			continue
		}
		outcome, _ := e.classifyOutcome(row, book, existing, batchSeen)
		sample = append(sample, outcome)
	}

	return &PreviewResult{
		Headers:   headers,
		Mapping:   mapping,
		TotalRows: len(rows),
		Sample:    sample,
	}, nil
}

// pendingWrite is a row classified new, waiting for its storage batch.
type pendingWrite struct {
	index int // position in the outcome slice
	book  *domain.Book
}

// Commit runs the full pipeline and writes rows classified new to the
// library. A row-level failure never aborts the run; only a decode or
// mapping error does. Cancellation is honored between storage batches: rows
// already written stay written, unwritten rows are reported not_processed.
func (e *Engine) Commit(ctx context.Context, batchID, filename string, data []byte, format FormatID, overrides FieldMapping, progress ProgressFunc) (*domain.ImportBatchReport, error) {
	start := time.Now()
	report := &domain.ImportBatchReport{
		BatchID:   batchID,
		Filename:  filename,
		Format:    string(format),
		Phase:     domain.PhaseDecoding,
		StartedAt: start,
	}

	headers, rows, err := Decode(data, format)
	if err != nil {
		report.Phase = domain.PhaseFailed
		report.Duration = time.Since(start)
		return report, err
	}

	report.Phase = domain.PhaseMapping
	mapping, err := ResolveMapping(headers, format, overrides)
	if err != nil {
		report.Phase = domain.PhaseFailed
		report.Duration = time.Since(start)
		return report, err
	}

	existing, err := e.lib.ExistingISBNs(ctx)
	if err != nil {
		report.Phase = domain.PhaseFailed
		report.Duration = time.Since(start)
		return report, apperrors.Wrap(err, apperrors.CodeStorage, "loading library index")
	}

	report.TotalRows = len(rows)
	outcomes := make([]domain.RowOutcome, len(rows))
	norm := NewNormalizer(e.opts.Strict, e.log)
	batchSeen := make(map[string]struct{})

	// Normalization and dedup classification share one pass over the rows,
	// so the report moves through both phases around it. Classification is
	// sequential: batchSeen has a single writer, which is what keeps
	// first-wins dedup deterministic.
	report.Phase = domain.PhaseNormalizing
	var pending []pendingWrite
	queued := 0
	for i, row := range rows {
		book, failure := norm.Normalize(row, mapping, format)
		if failure != nil {
			outcomes[i] = domain.RowOutcome{
				RowNumber:  row.Number,
				Kind:       domain.OutcomeFailed,
				FailCode:   string(failure.Err.Code),
				FailDetail: failure.Err.Message,
				Raw:        failure.Raw,
			}
			if failure.Recoverable && e.queue != nil {
				e.enqueueMatch(ctx, batchID, failure)
				queued++
			}
			continue
		}

		outcome, toWrite := e.classifyOutcome(row, book, existing, batchSeen)
		outcomes[i] = outcome
		if toWrite != nil {
			pending = append(pending, pendingWrite{index: i, book: toWrite})
		}
	}
	report.Phase = domain.PhaseDeduplicating
	report.Queued = queued

	report.Phase = domain.PhaseCommitting
	total := len(rows)
	tracker := newProgressTracker(total, progress)
	tracker.add(total - len(pending)) // classified rows settle immediately

	cancelled := e.writePending(ctx, pending, outcomes, format, tracker)

	report.Cancelled = cancelled
	report.Phase = domain.PhaseCompleted
	report.Outcomes = outcomes
	report.Duration = time.Since(start)
	report.Tally()

	e.log.Info("import commit finished",
		"batch_id", batchID,
		"total", report.TotalRows,
		"imported", report.Imported,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"not_processed", report.NotProcessed,
		"queued", report.Queued,
		"cancelled", report.Cancelled,
	)
	return report, nil
}

func (e *Engine) classifyOutcome(row RawRow, book *domain.Book, existing, batchSeen map[string]struct{}) (domain.RowOutcome, *domain.Book) {
	switch Classify(book.ISBN, existing, batchSeen) {
	case ClassDuplicateInBatch:
		return domain.RowOutcome{RowNumber: row.Number, Kind: domain.OutcomeSkipped, SkipReason: domain.SkipDuplicateInBatch}, nil
	case ClassDuplicateExisting:
		return domain.RowOutcome{RowNumber: row.Number, Kind: domain.OutcomeSkipped, SkipReason: domain.SkipDuplicateExisting}, nil
	default:
		return domain.RowOutcome{RowNumber: row.Number, Kind: domain.OutcomeImported, Book: book}, book
	}
}

// writePending flushes new rows to storage in concurrent batches. Returns
// true if the run was cancelled before every batch was dispatched. Each
// goroutine writes only its own disjoint slice of the outcome array.
func (e *Engine) writePending(ctx context.Context, pending []pendingWrite, outcomes []domain.RowOutcome, format FormatID, tracker *progressTracker) bool {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.WriteConcurrency)

	cancelled := false
	now := time.Now()
	for len(pending) > 0 {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		n := min(e.opts.BatchSize, len(pending))
		batch := pending[:n]
		pending = pending[n:]

		g.Go(func() error {
			e.writeBatch(gctx, batch, outcomes, now, format)
			tracker.add(len(batch))
			return nil
		})
	}
	_ = g.Wait()

	// Rows whose batch was never dispatched stay committed-looking in the
	// outcome slice; restamp them so the report separates them from failures.
	for _, p := range pending {
		outcomes[p.index] = domain.RowOutcome{
			RowNumber: outcomes[p.index].RowNumber,
			Kind:      domain.OutcomeNotProcessed,
		}
	}
	return cancelled
}

// writeBatch persists one storage batch. A batch-level error fails every row
// in the batch; per-row failures fail only their row.
func (e *Engine) writeBatch(ctx context.Context, batch []pendingWrite, outcomes []domain.RowOutcome, addedAt time.Time, format FormatID) {
	books := make([]*domain.Book, len(batch))
	for i, p := range batch {
		p.book.AddedAt = addedAt
		p.book.Source = string(format)
		books[i] = p.book
	}

	failures, err := e.lib.WriteBooks(ctx, books)
	if err != nil {
		e.log.WithError(err).Error("storage batch failed", "rows", len(batch))
		for _, p := range batch {
			outcomes[p.index] = domain.RowOutcome{
				RowNumber:  outcomes[p.index].RowNumber,
				Kind:       domain.OutcomeFailed,
				FailCode:   string(apperrors.CodeStorage),
				FailDetail: err.Error(),
			}
		}
		return
	}

	failed := make(map[string]error, len(failures))
	for _, f := range failures {
		failed[f.ISBN] = f.Err
	}
	for _, p := range batch {
		if ferr, ok := failed[p.book.ISBN]; ok {
			outcomes[p.index] = domain.RowOutcome{
				RowNumber:  outcomes[p.index].RowNumber,
				Kind:       domain.OutcomeFailed,
				FailCode:   string(apperrors.CodeStorage),
				FailDetail: ferr.Error(),
			}
		}
	}
}

// enqueueMatch promotes a recoverable failure to the manual match queue,
// attaching same-title/same-author candidates when a finder is wired.
func (e *Engine) enqueueMatch(ctx context.Context, batchID string, failure *Failure) {
	entry := &domain.ManualMatchEntry{
		BatchID:    batchID,
		RowNumber:  failure.RowNumber,
		Raw:        failure.Raw,
		FailCode:   string(failure.Err.Code),
		FailDetail: failure.Err.Message,
		Draft:      failure.Draft,
	}
	if e.finder != nil && failure.Draft != nil {
		candidates, err := e.finder.FindCandidates(ctx, failure.Draft.Title, failure.Draft.Authors, e.opts.CandidateLimit)
		if err != nil {
			e.log.WithError(err).Warn("candidate lookup failed", "row", failure.RowNumber)
		} else {
			entry.Candidates = candidates
		}
	}
	e.queue.Add(entry)
}

// ResolveMatches applies user decisions to queued entries. All decisions are
// validated before any is applied, so a single already-resolved or unknown
// entry fails the whole call without side effects.
func (e *Engine) ResolveMatches(ctx context.Context, decisions []domain.MatchDecision) ([]domain.RowOutcome, error) {
	if e.queue == nil {
		return nil, apperrors.Internal("manual match queue is not configured")
	}

	entries := make([]*domain.ManualMatchEntry, len(decisions))
	seen := make(map[string]struct{}, len(decisions))
	for i, d := range decisions {
		// A repeated id inside one call would pass per-entry validation
		// twice and only trip AlreadyResolved after the first write.
		if _, dup := seen[d.EntryID]; dup {
			return nil, apperrors.Validationf("duplicate decision for entry %s", d.EntryID)
		}
		seen[d.EntryID] = struct{}{}

		entry, err := e.queue.Get(d.EntryID)
		if err != nil {
			return nil, err
		}
		if entry.IsResolved() {
			return nil, apperrors.AlreadyResolved(d.EntryID)
		}
		switch d.Action {
		case domain.MatchImportAsNew, domain.MatchSkip:
		case domain.MatchMergeIntoExisting:
			if findCandidate(entry, d.MergeISBN) == nil {
				return nil, apperrors.Validationf("entry %s has no candidate with isbn %q", d.EntryID, d.MergeISBN)
			}
		default:
			return nil, apperrors.Validationf("unknown match action %q", d.Action)
		}
		entries[i] = entry
	}

	outcomes := make([]domain.RowOutcome, 0, len(decisions))
	for i, d := range decisions {
		outcome := e.applyDecision(ctx, entries[i], d)
		if err := e.queue.MarkResolved(d.EntryID); err != nil {
			return outcomes, err
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

func (e *Engine) applyDecision(ctx context.Context, entry *domain.ManualMatchEntry, d domain.MatchDecision) domain.RowOutcome {
	switch d.Action {
	case domain.MatchSkip:
		return domain.RowOutcome{
			RowNumber:  entry.RowNumber,
			Kind:       domain.OutcomeSkipped,
			SkipReason: domain.SkipUserDeclined,
		}

	case domain.MatchMergeIntoExisting:
		merged := mergeBooks(findCandidate(entry, d.MergeISBN), entry.Draft)
		return e.writeResolved(ctx, entry, merged)

	default: // MatchImportAsNew
		book := entry.Draft
		if book == nil {
			book = &domain.Book{}
		}
		if book.ISBN == "" {
			// The one path where a synthetic key is allowed.
			book.ISBN = id.MustGenerate(id.PrefixSynthetic)
		}
		return e.writeResolved(ctx, entry, book)
	}
}

func (e *Engine) writeResolved(ctx context.Context, entry *domain.ManualMatchEntry, book *domain.Book) domain.RowOutcome {
	if book.AddedAt.IsZero() {
		book.AddedAt = time.Now()
	}
	failures, err := e.lib.WriteBooks(ctx, []*domain.Book{book})
	if err == nil && len(failures) > 0 {
		err = failures[0].Err
	}
	if err != nil {
		return domain.RowOutcome{
			RowNumber:  entry.RowNumber,
			Kind:       domain.OutcomeFailed,
			FailCode:   string(apperrors.CodeStorage),
			FailDetail: err.Error(),
			Raw:        entry.Raw,
		}
	}
	return domain.RowOutcome{
		RowNumber: entry.RowNumber,
		Kind:      domain.OutcomeImported,
		Book:      book,
	}
}

func findCandidate(entry *domain.ManualMatchEntry, isbn string) *domain.Book {
	for _, c := range entry.Candidates {
		if c.ISBN == isbn {
			return c
		}
	}
	return nil
}

// mergeBooks keeps the candidate's identity and fills its gaps from the
// draft. The candidate's ISBN and title always win.
func mergeBooks(candidate, draft *domain.Book) *domain.Book {
	merged := *candidate
	if draft == nil {
		return &merged
	}
	if len(merged.Authors) == 0 {
		merged.Authors = draft.Authors
	}
	if merged.Series == "" {
		merged.Series = draft.Series
	}
	if merged.SeriesPosition == nil {
		merged.SeriesPosition = draft.SeriesPosition
	}
	if merged.Description == "" {
		merged.Description = draft.Description
	}
	if merged.PublishedDate == "" {
		merged.PublishedDate = draft.PublishedDate
	}
	if merged.PageCount == nil {
		merged.PageCount = draft.PageCount
	}
	if len(merged.Categories) == 0 {
		merged.Categories = draft.Categories
	}
	if merged.Rating == nil {
		merged.Rating = draft.Rating
	}
	return &merged
}

// progressTracker emits monotonically increasing progress even when batches
// complete out of order.
type progressTracker struct {
	total     int64
	processed atomic.Int64
	mu        sync.Mutex
	reported  int
	emit      ProgressFunc
}

func newProgressTracker(total int, emit ProgressFunc) *progressTracker {
	return &progressTracker{total: int64(total), emit: emit}
}

func (t *progressTracker) add(n int) {
	cur := int(t.processed.Add(int64(n)))
	if t.emit == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur > t.reported {
		t.reported = cur
		t.emit(cur, int(t.total))
	}
}
