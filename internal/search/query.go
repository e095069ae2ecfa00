package search

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// FindCandidates returns the ISBNs of library books plausibly matching a
// title and author set, best match first. Used to attach candidates to
// manual match entries: an exact folded-title hit ranks above a fuzzy
// full-text one, and author agreement boosts the score.
func (s *Index) FindCandidates(ctx context.Context, title string, authors []string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if title == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	var queries []query.Query

	exactTitle := bleve.NewTermQuery(MatchKey(title))
	exactTitle.SetField("title_key")
	exactTitle.SetBoost(3.0)
	queries = append(queries, exactTitle)

	titleMatch := bleve.NewMatchQuery(title)
	titleMatch.SetField("title")
	queries = append(queries, titleMatch)

	for _, author := range authors {
		exactAuthor := bleve.NewTermQuery(MatchKey(author))
		exactAuthor.SetField("author_keys")
		exactAuthor.SetBoost(2.0)
		queries = append(queries, exactAuthor)
	}

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(queries...), limit, 0, false)
	result, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("candidate search: %w", err)
	}

	isbns := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		isbns = append(isbns, hit.ID)
	}
	return isbns, nil
}

// Search runs a general full-text query over titles, authors, and series
// and returns matching ISBNs.
func (s *Index) Search(ctx context.Context, q string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	var searchQuery query.Query
	if q == "" {
		searchQuery = bleve.NewMatchAllQuery()
	} else {
		titleMatch := bleve.NewMatchQuery(q)
		titleMatch.SetField("title")
		titleMatch.SetBoost(2.0)

		authorMatch := bleve.NewMatchQuery(q)
		authorMatch.SetField("authors")

		seriesMatch := bleve.NewMatchQuery(q)
		seriesMatch.SetField("series")

		descMatch := bleve.NewMatchQuery(q)
		descMatch.SetField("description")

		searchQuery = bleve.NewDisjunctionQuery(titleMatch, authorMatch, seriesMatch, descMatch)
	}

	req := bleve.NewSearchRequestOptions(searchQuery, limit, 0, false)
	result, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	isbns := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		isbns = append(isbns, hit.ID)
	}
	return isbns, nil
}
