package ingest

import (
	"strings"

	apperrors "github.com/shelfsyncapp/shelfsync-server/internal/errors"
)

// vendorColumns fixes canonical-field → known column names per vendor export.
// Candidates are tried in order; the first one present in the headers wins.
// A known column that is absent simply leaves that field unmapped.
var vendorColumns = map[FormatID]map[string][]string{
	FormatGoodreads: {
		FieldTitle:         {"Title"},
		FieldISBN:          {"ISBN13", "ISBN"},
		FieldAuthor:        {"Author", "Additional Authors"},
		FieldRating:        {"My Rating"},
		FieldPageCount:     {"Number of Pages"},
		FieldPublishedDate: {"Year Published", "Original Publication Year"},
		FieldCategories:    {"Bookshelves"},
	},
	FormatHandyLib: {
		FieldTitle:          {"Title"},
		FieldISBN:           {"ISBN"},
		FieldAuthor:         {"Author"},
		FieldSeries:         {"Series"},
		FieldSeriesPosition: {"Volume"},
		FieldDescription:    {"Summary"},
		FieldPublishedDate:  {"Published Date"},
		FieldPageCount:      {"Pages"},
		FieldCategories:     {"Genres"},
		FieldRating:         {"Rating"},
	},
	FormatHardcover: {
		FieldTitle:          {"title"},
		FieldISBN:           {"isbn_13", "isbn_10", "isbn"},
		FieldAuthor:         {"author_names", "contributions"},
		FieldSeries:         {"series"},
		FieldSeriesPosition: {"series_position"},
		FieldDescription:    {"description"},
		FieldPublishedDate:  {"release_date"},
		FieldPageCount:      {"pages"},
		FieldCategories:     {"genres"},
		FieldRating:         {"rating"},
	},
}

// heuristicRules drives auto-detection for the generic formats. Fields are
// claimed in a fixed priority order so a header like "Series Number" is taken
// by series_position before series can claim it. For each field the first
// header (in header order) containing any keyword, case-insensitively, wins;
// a header already claimed by an earlier field is skipped.
var heuristicRules = []struct {
	field    string
	keywords []string
}{
	{FieldISBN, []string{"isbn", "ean", "upc"}},
	{FieldTitle, []string{"title", "book name"}},
	{FieldSeriesPosition, []string{"series position", "series number", "series #", "volume", "book number"}},
	{FieldSeries, []string{"series"}},
	{FieldAuthor, []string{"author", "writer", "creator"}},
	{FieldPublishedDate, []string{"publish", "release", "date", "year"}},
	{FieldPageCount, []string{"page"}},
	{FieldCategories, []string{"categor", "genre", "shel", "tag"}},
	{FieldRating, []string{"rating", "stars"}},
	{FieldDescription, []string{"desc", "summary", "synopsis", "overview"}},
}

// ResolveMapping computes the canonical-field → column mapping for a header
// set. Vendor formats use the fixed tables; generic formats use the keyword
// heuristics. Caller overrides always win and must name existing headers.
// Pure and deterministic: preview and commit share the result byte for byte.
func ResolveMapping(headers []string, format FormatID, overrides FieldMapping) (FieldMapping, error) {
	mapping := FieldMapping{}

	if table, ok := vendorColumns[format]; ok {
		for field, candidates := range table {
			for _, col := range candidates {
				if hasHeader(headers, col) {
					mapping[field] = col
					break
				}
			}
		}
	} else {
		claimed := make(map[string]bool, len(headers))
		for _, rule := range heuristicRules {
			if col, ok := matchHeader(headers, claimed, rule.keywords); ok {
				mapping[rule.field] = col
				claimed[col] = true
			}
		}
	}

	for field, col := range overrides {
		if col == "" {
			delete(mapping, field) // explicit unmap
			continue
		}
		if !hasHeader(headers, col) {
			return nil, apperrors.InvalidMappingf("override for %q references unknown column %q", field, col)
		}
		mapping[field] = col
	}

	return mapping, nil
}

func hasHeader(headers []string, col string) bool {
	for _, h := range headers {
		if h == col {
			return true
		}
	}
	return false
}

func matchHeader(headers []string, claimed map[string]bool, keywords []string) (string, bool) {
	for _, h := range headers {
		if claimed[h] {
			continue
		}
		lower := strings.ToLower(h)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return h, true
			}
		}
	}
	return "", false
}
