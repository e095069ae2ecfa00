package search

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/shelfsyncapp/shelfsync-server/internal/domain"
)

// bookDocument is the indexed shape of a book. The *_key fields carry
// case-folded, NFKC-normalized values analyzed as keywords, so "DUNE" and
// "Dune" produce the same exact-match key while the plain fields stay
// available for stemmed full-text search.
type bookDocument struct {
	ISBN        string   `json:"isbn"`
	Title       string   `json:"title"`
	TitleKey    string   `json:"title_key"`
	Authors     []string `json:"authors"`
	AuthorKeys  []string `json:"author_keys"`
	Series      string   `json:"series"`
	Description string   `json:"description"`
	Categories  []string `json:"categories"`
}

func newBookDocument(book *domain.Book) bookDocument {
	authorKeys := make([]string, 0, len(book.Authors))
	for _, a := range book.Authors {
		authorKeys = append(authorKeys, MatchKey(a))
	}
	return bookDocument{
		ISBN:        book.ISBN,
		Title:       book.Title,
		TitleKey:    MatchKey(book.Title),
		Authors:     book.Authors,
		AuthorKeys:  authorKeys,
		Series:      book.Series,
		Description: book.Description,
		Categories:  book.Categories,
	}
}

var keyFolder = cases.Fold()

// MatchKey normalizes a string for exact matching: Unicode compatibility
// normalization, case folding, collapsed whitespace.
func MatchKey(s string) string {
	folded := keyFolder.String(norm.NFKC.String(s))
	return strings.Join(strings.Fields(folded), " ")
}
