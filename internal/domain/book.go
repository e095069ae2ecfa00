// Package domain contains the core business entities and domain logic for the ShelfSync library.
package domain

import (
	"strings"
	"time"
)

// Book is a canonical library record. All import formats are normalized onto
// this shape before they touch storage.
type Book struct {
	// ISBN is the normalized dedup key: non-alphanumerics stripped, may be a
	// 10- or 13-character form. Synthetic keys (prefix "syn-") exist only for
	// books imported through an explicit manual-match decision.
	ISBN           string    `json:"isbn"`
	Title          string    `json:"title"`
	Authors        []string  `json:"authors"`
	Series         string    `json:"series,omitempty"`
	SeriesPosition *float64  `json:"series_position,omitempty"`
	Description    string    `json:"description,omitempty"`
	PublishedDate  string    `json:"published_date,omitempty"`
	PageCount      *int      `json:"page_count,omitempty"`
	Categories     []string  `json:"categories,omitempty"`
	Rating         *float64  `json:"rating,omitempty"`
	AddedAt        time.Time `json:"added_at"`
	Source         string    `json:"source,omitempty"` // format the record was imported from
}

// HasSyntheticISBN reports whether the book was keyed by a generated
// identifier rather than a real ISBN.
func (b *Book) HasSyntheticISBN() bool {
	return strings.HasPrefix(b.ISBN, "syn-")
}

// PrimaryAuthor returns the first author, or empty string.
func (b *Book) PrimaryAuthor() string {
	if len(b.Authors) == 0 {
		return ""
	}
	return b.Authors[0]
}
