package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/shelfsyncapp/shelfsync-server/internal/domain"
)

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books",
		Summary:     "List books",
		Description: "Lists the library ordered by ISBN",
		Tags:        []string{"Books"},
	}, s.handleListBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBook",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{isbn}",
		Summary:     "Get a book",
		Description: "Returns one book by normalized ISBN",
		Tags:        []string{"Books"},
	}, s.handleGetBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Search books",
		Description: "Full-text search over titles, authors, and series",
		Tags:        []string{"Books"},
	}, s.handleSearchBooks)
}

type ListBooksOutput struct {
	Body struct {
		Books []*domain.Book `json:"books"`
		Total int            `json:"total"`
	}
}

func (s *Server) handleListBooks(ctx context.Context, _ *struct{}) (*ListBooksOutput, error) {
	books, err := s.services.Book.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	out := &ListBooksOutput{}
	out.Body.Books = books
	out.Body.Total = len(books)
	return out, nil
}

type GetBookInput struct {
	ISBN string `path:"isbn" doc:"Normalized ISBN"`
}

type GetBookOutput struct {
	Body domain.Book
}

func (s *Server) handleGetBook(ctx context.Context, input *GetBookInput) (*GetBookOutput, error) {
	book, err := s.services.Book.GetBook(ctx, input.ISBN)
	if err != nil {
		return nil, err
	}
	return &GetBookOutput{Body: *book}, nil
}

type SearchBooksInput struct {
	Query string `query:"q" doc:"Search query"`
	Limit int    `query:"limit" doc:"Maximum results" minimum:"0" maximum:"100"`
}

type SearchBooksOutput struct {
	Body struct {
		Books []*domain.Book `json:"books"`
	}
}

func (s *Server) handleSearchBooks(ctx context.Context, input *SearchBooksInput) (*SearchBooksOutput, error) {
	books, err := s.services.Book.Search(ctx, input.Query, input.Limit)
	if err != nil {
		return nil, err
	}
	out := &SearchBooksOutput{}
	out.Body.Books = books
	return out, nil
}
