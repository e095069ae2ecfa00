package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/shelfsyncapp/shelfsync-server/internal/errors"
)

func TestDecodeCSVRowCount(t *testing.T) {
	data := []byte("Title,ISBN,Author\nDune,9780441172719,Frank Herbert\nHyperion,9780553283686,Dan Simmons\n")

	headers, rows, err := Decode(data, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, []string{"Title", "ISBN", "Author"}, headers)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Number)
	assert.Equal(t, 2, rows[1].Number)
	assert.Equal(t, "Dune", rows[0].String("Title"))
}

func TestDecodeQuotedFieldWithDelimiterAndNewline(t *testing.T) {
	data := []byte("Title,Description\n\"Dune, Book One\",\"A desert planet.\nSpice.\"\n")

	_, rows, err := Decode(data, FormatCSV)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Dune, Book One", rows[0].String("Title"))
	assert.Equal(t, "A desert planet.\nSpice.", rows[0].String("Description"))
}

func TestDecodeGoodreadsFormulaEscaping(t *testing.T) {
	data := []byte("Title,ISBN\nDune,=\"0441172717\"\n")

	_, rows, err := Decode(data, FormatGoodreads)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "0441172717", rows[0].String("ISBN"))
}

func TestDecodeShortRowPadsEmpty(t *testing.T) {
	data := []byte("Title,ISBN,Author\nDune,9780441172719\n")

	_, rows, err := Decode(data, FormatCSV)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "", rows[0].String("Author"))
}

func TestDecodeTSV(t *testing.T) {
	data := []byte("Title\tISBN\nDune\t9780441172719\n")

	headers, rows, err := Decode(data, FormatTSV)
	require.NoError(t, err)
	assert.Equal(t, []string{"Title", "ISBN"}, headers)
	require.Len(t, rows, 1)
	assert.Equal(t, "9780441172719", rows[0].String("ISBN"))
}

func TestDecodeStripsBOM(t *testing.T) {
	data := append([]byte("\xef\xbb\xbf"), []byte("Title,ISBN\nDune,9780441172719\n")...)

	headers, _, err := Decode(data, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "Title", headers[0])
}

func TestDecodeEmptyFile(t *testing.T) {
	_, _, err := Decode([]byte("  \n"), FormatCSV)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrDecode))
}

func TestDecodeInvalidUTF8(t *testing.T) {
	_, _, err := Decode([]byte("Title\n\xff\xfe\n"), FormatCSV)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrDecode))
}

func TestDecodeJSONArray(t *testing.T) {
	data := []byte(`[{"title":"Dune","isbn_13":"9780441172719","author_names":["Frank Herbert"]},{"title":"Hyperion","isbn_13":"9780553283686"}]`)

	headers, rows, err := Decode(data, FormatHardcover)
	require.NoError(t, err)
	assert.Equal(t, []string{"author_names", "isbn_13", "title"}, headers)
	require.Len(t, rows, 2)
	assert.Equal(t, "Dune", rows[0].String("title"))
	assert.Equal(t, []string{"Frank Herbert"}, rows[0].List("author_names"))
	assert.Equal(t, 2, rows[1].Number)
}

func TestDecodeJSONSingleObject(t *testing.T) {
	data := []byte(`{"title":"Dune","isbn_13":"9780441172719"}`)

	_, rows, err := Decode(data, FormatJSON)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Dune", rows[0].String("title"))
}

func TestDecodeJSONRejectsScalars(t *testing.T) {
	_, _, err := Decode([]byte(`["just","strings"]`), FormatJSON)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrDecode))

	_, _, err = Decode([]byte(`42`), FormatJSON)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrDecode))
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		declared string
		want     FormatID
		wantErr  bool
	}{
		{"declared wins", "export.csv", "goodreads", FormatGoodreads, false},
		{"csv extension", "library.csv", "", FormatCSV, false},
		{"tsv extension", "library.tsv", "", FormatTSV, false},
		{"tab extension", "library.tab", "", FormatTSV, false},
		{"json extension", "library.json", "", FormatJSON, false},
		{"unknown", "library.xlsx", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat(tt.filename, tt.declared)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
