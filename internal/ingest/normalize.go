package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/shelfsyncapp/shelfsync-server/internal/domain"
	apperrors "github.com/shelfsyncapp/shelfsync-server/internal/errors"
	"github.com/shelfsyncapp/shelfsync-server/internal/logger"
)

// Failure is the normalization outcome for a row that could not become a
// Book. Recoverable failures (the row has a title but no usable ISBN) carry a
// Draft so a manual match entry can be built from them.
type Failure struct {
	RowNumber   int
	Err         *apperrors.Error
	Recoverable bool
	Draft       *domain.Book
	Raw         map[string]string
}

// Normalizer converts mapped rows into canonical Book records. In strict mode
// bad numeric fields and ISBN checksum failures fail the row; by default they
// are logged and coerced to absent, favoring import completeness.
type Normalizer struct {
	strict bool
	log    *logger.Logger
}

func NewNormalizer(strict bool, log *logger.Logger) *Normalizer {
	return &Normalizer{strict: strict, log: log}
}

// Normalize produces either a Book or a Failure, never both. Row-level
// problems stay inside the returned Failure; nothing escapes as a plain error.
func (n *Normalizer) Normalize(row RawRow, mapping FieldMapping, format FormatID) (*domain.Book, *Failure) {
	title := row.String(mapping[FieldTitle])
	if title == "" {
		return nil, &Failure{
			RowNumber: row.Number,
			Err:       apperrors.MissingField(FieldTitle, row.Number),
			Raw:       row.Strings(),
		}
	}

	draft := &domain.Book{
		Title:          title,
		Authors:        n.listField(row, mapping, FieldAuthor, format),
		Series:         row.String(mapping[FieldSeries]),
		SeriesPosition: parsePosition(row.String(mapping[FieldSeriesPosition])),
		Description:    row.String(mapping[FieldDescription]),
		PublishedDate:  normalizeDate(row.String(mapping[FieldPublishedDate])),
		Categories:     n.listField(row, mapping, FieldCategories, format),
		Source:         string(format),
	}

	var softErr *apperrors.Error
	draft.PageCount, softErr = n.parsePageCount(row, mapping)
	if softErr != nil {
		return nil, n.recoverableFailure(row, draft, softErr)
	}
	draft.Rating, softErr = n.parseRating(row, mapping)
	if softErr != nil {
		return nil, n.recoverableFailure(row, draft, softErr)
	}

	rawISBN := row.String(mapping[FieldISBN])
	if rawISBN == "" {
		return nil, n.recoverableFailure(row, draft, apperrors.MissingField(FieldISBN, row.Number))
	}

	isbn, ok := NormalizeISBN(rawISBN)
	if !ok {
		return nil, n.recoverableFailure(row, draft, apperrors.BadISBN(rawISBN, row.Number))
	}
	if !isbnChecksumValid(isbn) {
		if n.strict {
			return nil, n.recoverableFailure(row, draft, apperrors.BadISBN(rawISBN, row.Number))
		}
		// Real-world exports are full of malformed ISBNs; keep the row.
		n.log.Warn("isbn checksum mismatch, keeping row",
			"row", row.Number, "isbn", isbn)
	}

	draft.ISBN = isbn
	return draft, nil
}

func (n *Normalizer) recoverableFailure(row RawRow, draft *domain.Book, err *apperrors.Error) *Failure {
	return &Failure{
		RowNumber:   row.Number,
		Err:         err,
		Recoverable: true,
		Draft:       draft,
		Raw:         row.Strings(),
	}
}

// listField reads a column as an ordered list of trimmed non-empty strings.
// JSON rows may already carry a list; delimited rows are split on the
// format's list separator. Absent columns yield an empty list, never nil.
func (n *Normalizer) listField(row RawRow, mapping FieldMapping, field string, format FormatID) []string {
	col := mapping[field]
	if col == "" {
		return []string{}
	}
	if items := row.List(col); items != nil {
		return items
	}
	raw := row.String(col)
	if raw == "" {
		return []string{}
	}
	out := []string{}
	for _, part := range strings.Split(raw, listSeparatorFor(format)) {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parsePageCount parses the page count leniently: a bad value becomes absent
// with a warning. In strict mode it fails the row instead.
func (n *Normalizer) parsePageCount(row RawRow, mapping FieldMapping) (*int, *apperrors.Error) {
	raw := row.String(mapping[FieldPageCount])
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		// Some exports write page counts as floats.
		if f, ferr := strconv.ParseFloat(raw, 64); ferr == nil && f == float64(int(f)) {
			v = int(f)
		} else {
			if n.strict {
				return nil, apperrors.Validationf("row %d: unparseable page count %q", row.Number, raw)
			}
			n.log.Warn("dropping unparseable page count", "row", row.Number, "value", raw)
			return nil, nil
		}
	}
	if v <= 0 {
		return nil, nil
	}
	return &v, nil
}

// parseRating parses the rating leniently, same policy as page count.
func (n *Normalizer) parseRating(row RawRow, mapping FieldMapping) (*float64, *apperrors.Error) {
	raw := row.String(mapping[FieldRating])
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		if n.strict {
			return nil, apperrors.Validationf("row %d: unparseable rating %q", row.Number, raw)
		}
		n.log.Warn("dropping unparseable rating", "row", row.Number, "value", raw)
		return nil, nil
	}
	if v < 0 {
		return nil, nil
	}
	return &v, nil
}

// parsePosition parses a series position as a positive number. Unparseable or
// non-positive values are stored as absent, never zero.
func parsePosition(raw string) *float64 {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v <= 0 {
		return nil
	}
	return &v
}

// NormalizeISBN strips every non-alphanumeric character and accepts 10- or
// 13-character results, uppercased so an ISBN-10 check digit "x" compares
// equal. Returns false when the stripped value has the wrong length.
func NormalizeISBN(raw string) (string, bool) {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == 'x' || r == 'X':
			b.WriteRune('X')
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			// Other letters survive stripping but make the ISBN invalid
			// unless the overall length still checks out.
			b.WriteRune(r)
		}
	}
	s := b.String()
	if len(s) != 10 && len(s) != 13 {
		return "", false
	}
	return s, true
}

// isbnChecksumValid verifies the ISBN-10 or ISBN-13 check digit. Non-digit
// characters outside the ISBN-10 final "X" fail the check.
func isbnChecksumValid(isbn string) bool {
	switch len(isbn) {
	case 10:
		sum := 0
		for i, r := range isbn {
			var v int
			switch {
			case r >= '0' && r <= '9':
				v = int(r - '0')
			case r == 'X' && i == 9:
				v = 10
			default:
				return false
			}
			sum += (10 - i) * v
		}
		return sum%11 == 0
	case 13:
		sum := 0
		for i, r := range isbn {
			if r < '0' || r > '9' {
				return false
			}
			v := int(r - '0')
			if i%2 == 1 {
				v *= 3
			}
			sum += v
		}
		return sum%10 == 0
	default:
		return false
	}
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2006",
}

// normalizeDate renders a parseable date as ISO 8601 and a bare year as-is.
// Unparseable values pass through untouched; dates are informational and
// never gate an import.
func normalizeDate(raw string) string {
	if raw == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			if layout == "2006" {
				return raw
			}
			return t.Format("2006-01-02")
		}
	}
	return raw
}
