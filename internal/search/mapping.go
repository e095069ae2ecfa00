package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for book documents.
//
// Titles and descriptions get English stemming for full-text search; the
// *_key fields use the keyword analyzer so candidate lookup can do exact
// matches on folded values.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	titleField := bleve.NewTextFieldMapping()
	titleField.Analyzer = en.AnalyzerName
	titleField.Store = true
	docMapping.AddFieldMappingsAt("title", titleField)

	titleKeyField := bleve.NewTextFieldMapping()
	titleKeyField.Analyzer = keyword.Name
	titleKeyField.Store = false
	docMapping.AddFieldMappingsAt("title_key", titleKeyField)

	authorField := bleve.NewTextFieldMapping()
	authorField.Analyzer = en.AnalyzerName
	authorField.Store = true
	docMapping.AddFieldMappingsAt("authors", authorField)

	authorKeyField := bleve.NewTextFieldMapping()
	authorKeyField.Analyzer = keyword.Name
	authorKeyField.Store = false
	docMapping.AddFieldMappingsAt("author_keys", authorKeyField)

	seriesField := bleve.NewTextFieldMapping()
	seriesField.Analyzer = en.AnalyzerName
	seriesField.Store = true
	docMapping.AddFieldMappingsAt("series", seriesField)

	// Searchable but not stored, descriptions can be large.
	descField := bleve.NewTextFieldMapping()
	descField.Analyzer = en.AnalyzerName
	descField.Store = false
	docMapping.AddFieldMappingsAt("description", descField)

	categoryField := bleve.NewTextFieldMapping()
	categoryField.Analyzer = keyword.Name
	categoryField.Store = true
	docMapping.AddFieldMappingsAt("categories", categoryField)

	isbnField := bleve.NewTextFieldMapping()
	isbnField.Analyzer = keyword.Name
	isbnField.Store = true
	docMapping.AddFieldMappingsAt("isbn", isbnField)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}
