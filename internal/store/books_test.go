package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfsyncapp/shelfsync-server/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	book := &domain.Book{ISBN: "9780441172719", Title: "Dune", Authors: []string{"Frank Herbert"}}
	require.NoError(t, s.PutBook(ctx, book))

	got, err := s.GetBook(ctx, "9780441172719")
	require.NoError(t, err)
	assert.Equal(t, "Dune", got.Title)
	assert.Equal(t, []string{"Frank Herbert"}, got.Authors)
}

func TestPutBookUpsertsByISBN(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutBook(ctx, &domain.Book{ISBN: "9780441172719", Title: "Dune"}))
	require.NoError(t, s.PutBook(ctx, &domain.Book{ISBN: "9780441172719", Title: "Dune (Updated)"}))

	got, err := s.GetBook(ctx, "9780441172719")
	require.NoError(t, err)
	assert.Equal(t, "Dune (Updated)", got.Title)

	count, err := s.CountBooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	key := []byte(bookPrefix + "9780441172719")
	found, err := s.exists(key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.PutBook(ctx, &domain.Book{ISBN: "9780441172719", Title: "Dune"}))

	found, err = s.exists(key)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestPutBookRejectsEmptyISBN(t *testing.T) {
	s := newTestStore(t)
	err := s.PutBook(context.Background(), &domain.Book{Title: "No Key"})
	assert.ErrorIs(t, err, ErrEmptyISBN)
}

func TestGetBookNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetBook(context.Background(), "0000000000")
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestDeleteBook(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutBook(ctx, &domain.Book{ISBN: "9780441172719", Title: "Dune"}))
	require.NoError(t, s.DeleteBook(ctx, "9780441172719"))

	_, err := s.GetBook(ctx, "9780441172719")
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestListBooksOrderedByISBN(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutBook(ctx, &domain.Book{ISBN: "9780553283686", Title: "Hyperion"}))
	require.NoError(t, s.PutBook(ctx, &domain.Book{ISBN: "9780441172719", Title: "Dune"}))

	books, err := s.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "9780441172719", books[0].ISBN)
	assert.Equal(t, "9780553283686", books[1].ISBN)
}

func TestExistingISBNs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutBook(ctx, &domain.Book{ISBN: "9780441172719", Title: "Dune"}))
	require.NoError(t, s.PutBook(ctx, &domain.Book{ISBN: "9780553283686", Title: "Hyperion"}))

	isbns, err := s.ExistingISBNs(ctx)
	require.NoError(t, err)
	assert.Len(t, isbns, 2)
	_, ok := isbns["9780441172719"]
	assert.True(t, ok)
}

func TestWriteBooksBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	books := []*domain.Book{
		{ISBN: "9780441172719", Title: "Dune"},
		{Title: "No ISBN"},
		{ISBN: "9780553283686", Title: "Hyperion"},
	}

	failures, err := s.WriteBooks(ctx, books)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.ErrorIs(t, failures[0].Err, ErrEmptyISBN)

	count, err := s.CountBooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "failed row does not block the rest of the batch")
}
