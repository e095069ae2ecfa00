// Package ingest implements the import pipeline: decoding heterogeneous
// library export files, mapping their columns onto canonical book fields,
// normalizing rows, deduplicating against the existing library, and
// reconciling the results into per-row outcomes.
package ingest

import (
	"context"
	"strings"

	"github.com/shelfsyncapp/shelfsync-server/internal/domain"
)

// FormatID identifies an input format dialect.
type FormatID string

const (
	FormatGoodreads FormatID = "goodreads" // CSV with ="value" formula-escaped cells
	FormatHandyLib  FormatID = "handylib"  // tab-delimited export
	FormatHardcover FormatID = "hardcover" // JSON export
	FormatCSV       FormatID = "csv"       // generic CSV, heuristic column mapping
	FormatTSV       FormatID = "tsv"       // generic tab-delimited
	FormatJSON      FormatID = "json"      // generic JSON array of objects
)

// Valid reports whether f is a known format.
func (f FormatID) Valid() bool {
	switch f {
	case FormatGoodreads, FormatHandyLib, FormatHardcover, FormatCSV, FormatTSV, FormatJSON:
		return true
	}
	return false
}

// Canonical field names. Every input format maps onto these.
const (
	FieldTitle          = "title"
	FieldISBN           = "isbn"
	FieldAuthor         = "author"
	FieldSeries         = "series"
	FieldSeriesPosition = "series_position"
	FieldDescription    = "description"
	FieldPublishedDate  = "published_date"
	FieldPageCount      = "page_count"
	FieldCategories     = "categories"
	FieldRating         = "rating"
)

// RawRow is one decoded input row: an ordered mapping of column name to raw
// value. Values are strings for delimited formats; JSON rows may carry lists
// and numbers through untouched. Immutable once decoded.
type RawRow struct {
	// Number is 1-based and excludes the header line.
	Number  int
	Headers []string
	Values  map[string]any
}

// String returns the value of a column rendered as a trimmed string.
// Missing columns and nulls yield "".
func (r RawRow) String(col string) string {
	v, ok := r.Values[col]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	default:
		return strings.TrimSpace(stringify(v))
	}
}

// List returns the value of a column as a list, if the decoder produced one
// (JSON arrays). Returns nil for scalar or missing values.
func (r RawRow) List(col string) []string {
	v, ok := r.Values[col]
	if !ok {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s := strings.TrimSpace(stringify(item))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Strings flattens the row to a string map for error reporting.
func (r RawRow) Strings() map[string]string {
	out := make(map[string]string, len(r.Values))
	for _, h := range r.Headers {
		if v, ok := r.Values[h]; ok {
			out[h] = stringify(v)
		}
	}
	return out
}

// FieldMapping maps canonical field names to source column names.
type FieldMapping map[string]string

// Library is the storage collaborator consumed by the engine. Implementations
// must report per-row write failures rather than failing a whole batch.
type Library interface {
	// ExistingISBNs returns a snapshot of the normalized ISBNs already in the
	// library. Taken once at the start of a run.
	ExistingISBNs(ctx context.Context) (map[string]struct{}, error)
	// WriteBooks persists a batch. Row-level failures come back in the slice;
	// a non-nil error means the whole batch failed.
	WriteBooks(ctx context.Context, books []*domain.Book) ([]WriteFailure, error)
}

// WriteFailure identifies one failed row inside a storage batch.
type WriteFailure struct {
	ISBN string
	Err  error
}

// CandidateFinder looks up plausible library matches for a row that could not
// be normalized confidently. Used to populate manual match entries.
type CandidateFinder interface {
	FindCandidates(ctx context.Context, title string, authors []string, limit int) ([]*domain.Book, error)
}

// ProgressFunc receives cumulative progress during a commit run. Processed is
// monotonically increasing and reaches total unless the run is cancelled.
type ProgressFunc func(processed, total int)

// Options tunes the engine. Zero values fall back to sensible defaults.
type Options struct {
	BatchSize        int  // rows per storage write batch (default 100)
	WriteConcurrency int  // concurrent storage batches (default 2)
	Strict           bool // hard-fail rows on bad numerics and ISBN checksums
	CandidateLimit   int  // candidates per manual match entry (default 5)
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.WriteConcurrency <= 0 {
		o.WriteConcurrency = 2
	}
	if o.CandidateLimit <= 0 {
		o.CandidateLimit = 5
	}
	return o
}
