package ingest

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsyncapp/shelfsync-server/internal/domain"
	apperrors "github.com/shelfsyncapp/shelfsync-server/internal/errors"
)

// memLibrary is an in-memory Library for engine tests.
type memLibrary struct {
	mu     sync.Mutex
	books  map[string]*domain.Book
	writes int
	// failISBNs simulates per-row storage failures.
	failISBNs map[string]bool
}

func newMemLibrary(seed ...*domain.Book) *memLibrary {
	lib := &memLibrary{books: make(map[string]*domain.Book)}
	for _, b := range seed {
		lib.books[b.ISBN] = b
	}
	return lib
}

func (l *memLibrary) ExistingISBNs(_ context.Context) (map[string]struct{}, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]struct{}, len(l.books))
	for isbn := range l.books {
		out[isbn] = struct{}{}
	}
	return out, nil
}

func (l *memLibrary) WriteBooks(_ context.Context, books []*domain.Book) ([]WriteFailure, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.writes++
	var failures []WriteFailure
	for _, b := range books {
		if l.failISBNs[b.ISBN] {
			failures = append(failures, WriteFailure{ISBN: b.ISBN, Err: apperrors.Storage("disk full")})
			continue
		}
		l.books[b.ISBN] = b
	}
	return failures, nil
}

func (l *memLibrary) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.books)
}

type stubFinder struct {
	candidates []*domain.Book
}

func (f *stubFinder) FindCandidates(_ context.Context, _ string, _ []string, _ int) ([]*domain.Book, error) {
	return f.candidates, nil
}

func newTestEngine(lib *memLibrary, finder CandidateFinder, opts Options) *Engine {
	return NewEngine(lib, finder, NewQueue(time.Hour), testLogger(), opts)
}

func TestCommitThreeRowScenario(t *testing.T) {
	data := []byte("Book Title,ISBN,Author Name\n" +
		"Dune,9780441172719,Frank Herbert\n" +
		",123,Nobody\n" +
		"Dune,9780441172719,Frank Herbert\n")

	lib := newMemLibrary()
	e := newTestEngine(lib, nil, Options{})

	report, err := e.Commit(context.Background(), "imp-1", "books.csv", data, FormatCSV, nil, nil)
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 3)

	assert.Equal(t, domain.OutcomeImported, report.Outcomes[0].Kind)
	assert.Equal(t, domain.OutcomeFailed, report.Outcomes[1].Kind)
	assert.Equal(t, string(apperrors.CodeMissingField), report.Outcomes[1].FailCode)
	assert.Equal(t, domain.OutcomeSkipped, report.Outcomes[2].Kind)
	assert.Equal(t, domain.SkipDuplicateInBatch, report.Outcomes[2].SkipReason)

	assert.Equal(t, 1, report.Imported)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, domain.PhaseCompleted, report.Phase)
	assert.Equal(t, 1, lib.count())
}

func TestCommitIdempotence(t *testing.T) {
	data := []byte("Title,ISBN\nDune,9780441172719\nHyperion,9780553283686\n")
	lib := newMemLibrary()
	e := newTestEngine(lib, nil, Options{})

	first, err := e.Commit(context.Background(), "imp-1", "", data, FormatCSV, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Imported)

	second, err := e.Commit(context.Background(), "imp-2", "", data, FormatCSV, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Imported)
	assert.Equal(t, 2, second.Skipped)
	for _, o := range second.Outcomes {
		assert.Equal(t, domain.SkipDuplicateExisting, o.SkipReason)
	}
	assert.Equal(t, 2, lib.count())
}

func TestCommitDedupPrecedence(t *testing.T) {
	// Same ISBN against a library that already has it: the first row is the
	// existing-duplicate, the second is the in-batch duplicate.
	data := []byte("Title,ISBN\nDune,9780441172719\nDune Again,9780441172719\n")
	lib := newMemLibrary(&domain.Book{ISBN: "9780441172719", Title: "Dune"})
	e := newTestEngine(lib, nil, Options{})

	report, err := e.Commit(context.Background(), "imp-1", "", data, FormatCSV, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.SkipDuplicateExisting, report.Outcomes[0].SkipReason)
	assert.Equal(t, domain.SkipDuplicateInBatch, report.Outcomes[1].SkipReason)
}

func TestCommitQueuesRecoverableFailures(t *testing.T) {
	data := []byte("Title,ISBN,Author\n" +
		"Dune,,Frank Herbert\n" + // missing isbn, has title: queued
		",9780441172719,Nobody\n") // missing title: plain failure

	candidate := &domain.Book{ISBN: "9780441172719", Title: "Dune", Authors: []string{"Frank Herbert"}}
	lib := newMemLibrary(candidate)
	e := newTestEngine(lib, &stubFinder{candidates: []*domain.Book{candidate}}, Options{})

	report, err := e.Commit(context.Background(), "imp-1", "", data, FormatCSV, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 1, report.Queued)

	entries := e.Queue().List()
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].RowNumber)
	assert.Equal(t, "Dune", entries[0].Draft.Title)
	require.Len(t, entries[0].Candidates, 1)
	assert.Equal(t, "9780441172719", entries[0].Candidates[0].ISBN)
	assert.Equal(t, "imp-1", entries[0].BatchID)
}

func TestCommitPerRowStorageFailure(t *testing.T) {
	data := []byte("Title,ISBN\nDune,9780441172719\nHyperion,9780553283686\n")
	lib := newMemLibrary()
	lib.failISBNs = map[string]bool{"9780553283686": true}
	e := newTestEngine(lib, nil, Options{})

	report, err := e.Commit(context.Background(), "imp-1", "", data, FormatCSV, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Imported)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, string(apperrors.CodeStorage), report.Outcomes[1].FailCode)
	assert.Equal(t, domain.PhaseCompleted, report.Phase, "per-row storage failure never fails the run")
}

func TestCommitDecodeErrorFatal(t *testing.T) {
	lib := newMemLibrary()
	e := newTestEngine(lib, nil, Options{})

	report, err := e.Commit(context.Background(), "imp-1", "", []byte("\xff\xfe"), FormatCSV, nil, nil)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrDecode))
	assert.Equal(t, domain.PhaseFailed, report.Phase)
	assert.Equal(t, 0, lib.count())
}

func TestCommitInvalidOverrideFatal(t *testing.T) {
	lib := newMemLibrary()
	e := newTestEngine(lib, nil, Options{})

	data := []byte("Title,ISBN\nDune,9780441172719\n")
	report, err := e.Commit(context.Background(), "imp-1", "", data, FormatCSV, FieldMapping{FieldISBN: "Nope"}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidMapping))
	assert.Equal(t, domain.PhaseFailed, report.Phase)
	assert.Equal(t, 0, lib.count(), "fatal before any row is processed")
}

func TestCommitProgressMonotonic(t *testing.T) {
	var rows []string
	for i := 0; i < 50; i++ {
		rows = append(rows, "Book "+strings.Repeat("x", i%5)+","+testISBN13(i))
	}
	data := []byte("Title,ISBN\n" + strings.Join(rows, "\n") + "\n")

	lib := newMemLibrary()
	e := newTestEngine(lib, nil, Options{BatchSize: 7, WriteConcurrency: 3})

	var mu sync.Mutex
	var seen []int
	progress := func(processed, total int) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, processed)
		assert.Equal(t, 50, total)
	}

	report, err := e.Commit(context.Background(), "imp-1", "", data, FormatCSV, nil, progress)
	require.NoError(t, err)
	assert.Equal(t, 50, report.Imported)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	for i := 1; i < len(seen); i++ {
		assert.Greater(t, seen[i], seen[i-1], "progress must only increase")
	}
	assert.Equal(t, 50, seen[len(seen)-1])
}

func TestCommitCancellation(t *testing.T) {
	var rows []string
	for i := 0; i < 30; i++ {
		rows = append(rows, "Book,"+testISBN13(i))
	}
	data := []byte("Title,ISBN\n" + strings.Join(rows, "\n") + "\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancelled before the first batch dispatch

	lib := newMemLibrary()
	e := newTestEngine(lib, nil, Options{BatchSize: 10})

	report, err := e.Commit(ctx, "imp-1", "", data, FormatCSV, nil, nil)
	require.NoError(t, err)
	assert.True(t, report.Cancelled)
	assert.Equal(t, 30, report.NotProcessed)
	assert.Equal(t, 0, report.Imported)
	for _, o := range report.Outcomes {
		assert.Equal(t, domain.OutcomeNotProcessed, o.Kind)
		assert.NotZero(t, o.RowNumber)
	}
	assert.Equal(t, 0, lib.count(), "no writes after cancellation, no rollback needed")
}

func TestPreviewPerformsZeroWrites(t *testing.T) {
	var rows []string
	for i := 0; i < 100; i++ {
		rows = append(rows, "Book,"+testISBN13(i))
	}
	data := []byte("Title,ISBN\n" + strings.Join(rows, "\n") + "\n")

	lib := newMemLibrary()
	e := newTestEngine(lib, nil, Options{})

	result, err := e.Preview(context.Background(), data, FormatCSV, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, 100, result.TotalRows)
	require.Len(t, result.Sample, 1)
	assert.Equal(t, domain.OutcomeImported, result.Sample[0].Kind)

	assert.Equal(t, 0, lib.writes)
	assert.Equal(t, 0, lib.count())
	assert.Equal(t, 0, e.Queue().Len(), "preview never touches the queue")
}

func TestPreviewReportsMappingAndHeaders(t *testing.T) {
	data := []byte("Book Title,ISBN,Author Name\nDune,9780441172719,Frank Herbert\n")
	e := newTestEngine(newMemLibrary(), nil, Options{})

	result, err := e.Preview(context.Background(), data, FormatCSV, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"Book Title", "ISBN", "Author Name"}, result.Headers)
	assert.Equal(t, "Book Title", result.Mapping[FieldTitle])
	assert.Equal(t, "ISBN", result.Mapping[FieldISBN])
}

func TestResolveMatchesImportAsNew(t *testing.T) {
	lib := newMemLibrary()
	e := newTestEngine(lib, nil, Options{})
	entryID := e.Queue().Add(&domain.ManualMatchEntry{
		BatchID:   "imp-1",
		RowNumber: 3,
		Draft:     &domain.Book{Title: "Dune", Authors: []string{"Frank Herbert"}},
	})

	outcomes, err := e.ResolveMatches(context.Background(), []domain.MatchDecision{
		{EntryID: entryID, Action: domain.MatchImportAsNew},
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, domain.OutcomeImported, outcomes[0].Kind)
	require.NotNil(t, outcomes[0].Book)
	assert.True(t, outcomes[0].Book.HasSyntheticISBN(), "empty isbn gets a synthetic key")
	assert.Equal(t, 1, lib.count())
}

func TestResolveMatchesSkip(t *testing.T) {
	lib := newMemLibrary()
	e := newTestEngine(lib, nil, Options{})
	entryID := e.Queue().Add(&domain.ManualMatchEntry{BatchID: "imp-1", RowNumber: 3})

	outcomes, err := e.ResolveMatches(context.Background(), []domain.MatchDecision{
		{EntryID: entryID, Action: domain.MatchSkip},
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, domain.OutcomeSkipped, outcomes[0].Kind)
	assert.Equal(t, domain.SkipUserDeclined, outcomes[0].SkipReason)
	assert.Equal(t, 0, lib.count())
}

func TestResolveMatchesMergeIntoExisting(t *testing.T) {
	candidate := &domain.Book{ISBN: "9780441172719", Title: "Dune", Authors: []string{"Frank Herbert"}}
	lib := newMemLibrary(candidate)
	e := newTestEngine(lib, nil, Options{})

	pages := 412
	entryID := e.Queue().Add(&domain.ManualMatchEntry{
		BatchID:    "imp-1",
		RowNumber:  3,
		Draft:      &domain.Book{Title: "Dune (Mass Market)", Description: "A desert planet.", PageCount: &pages},
		Candidates: []*domain.Book{candidate},
	})

	outcomes, err := e.ResolveMatches(context.Background(), []domain.MatchDecision{
		{EntryID: entryID, Action: domain.MatchMergeIntoExisting, MergeISBN: "9780441172719"},
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	book := outcomes[0].Book
	require.NotNil(t, book)
	assert.Equal(t, "9780441172719", book.ISBN, "candidate identity wins")
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, "A desert planet.", book.Description, "draft fills the gaps")
	require.NotNil(t, book.PageCount)
	assert.Equal(t, 412, *book.PageCount)
}

func TestResolveMatchesDoubleResolve(t *testing.T) {
	e := newTestEngine(newMemLibrary(), nil, Options{})
	entryID := e.Queue().Add(&domain.ManualMatchEntry{BatchID: "imp-1", RowNumber: 3})

	first, err := e.ResolveMatches(context.Background(), []domain.MatchDecision{
		{EntryID: entryID, Action: domain.MatchSkip},
	})
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := e.ResolveMatches(context.Background(), []domain.MatchDecision{
		{EntryID: entryID, Action: domain.MatchSkip},
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrAlreadyResolved))
	assert.Empty(t, second, "no duplicate outcome")
}

func TestResolveMatchesValidatesBeforeApplying(t *testing.T) {
	lib := newMemLibrary()
	e := newTestEngine(lib, nil, Options{})
	okID := e.Queue().Add(&domain.ManualMatchEntry{
		BatchID:   "imp-1",
		RowNumber: 1,
		Draft:     &domain.Book{Title: "Dune"},
	})

	_, err := e.ResolveMatches(context.Background(), []domain.MatchDecision{
		{EntryID: okID, Action: domain.MatchImportAsNew},
		{EntryID: "mme-missing", Action: domain.MatchSkip},
	})
	require.Error(t, err)
	assert.Equal(t, 0, lib.count(), "nothing applied when any decision is invalid")

	entry, gerr := e.Queue().Get(okID)
	require.NoError(t, gerr)
	assert.False(t, entry.IsResolved())
}

func TestResolveMatchesRejectsRepeatedEntryID(t *testing.T) {
	lib := newMemLibrary()
	e := newTestEngine(lib, nil, Options{})
	entryID := e.Queue().Add(&domain.ManualMatchEntry{
		BatchID:   "imp-1",
		RowNumber: 1,
		Draft:     &domain.Book{Title: "Dune"},
	})

	_, err := e.ResolveMatches(context.Background(), []domain.MatchDecision{
		{EntryID: entryID, Action: domain.MatchImportAsNew},
		{EntryID: entryID, Action: domain.MatchSkip},
	})
	require.Error(t, err)
	assert.Equal(t, 0, lib.count(), "no write before the duplicate is caught")

	entry, gerr := e.Queue().Get(entryID)
	require.NoError(t, gerr)
	assert.False(t, entry.IsResolved())
}

func TestResolveMatchesMergeRequiresKnownCandidate(t *testing.T) {
	e := newTestEngine(newMemLibrary(), nil, Options{})
	entryID := e.Queue().Add(&domain.ManualMatchEntry{BatchID: "imp-1", RowNumber: 1})

	_, err := e.ResolveMatches(context.Background(), []domain.MatchDecision{
		{EntryID: entryID, Action: domain.MatchMergeIntoExisting, MergeISBN: "0000000000"},
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

// testISBN13 builds a unique 13-digit key per index. Checksums are not
// enforced by default, so these pass normalization.
func testISBN13(i int) string {
	return "97800000" + padInt(i, 5)
}

func padInt(i, width int) string {
	s := ""
	for v := i; v > 0; v /= 10 {
		s = string(rune('0'+v%10)) + s
	}
	for len(s) < width {
		s = "0" + s
	}
	return s
}
