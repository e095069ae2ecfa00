package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"encoding/json/v2"

	apperrors "github.com/shelfsyncapp/shelfsync-server/internal/errors"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// Decode turns raw file bytes into an ordered sequence of rows plus the
// header set. Fails with a DECODE error if the payload is not valid UTF-8,
// not valid JSON (for JSON formats), or the header line cannot be split.
// Decoding is one-shot: re-decoding requires the source bytes again.
func Decode(data []byte, format FormatID) (headers []string, rows []RawRow, err error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil, apperrors.Decode("empty import file")
	}

	switch format {
	case FormatHardcover, FormatJSON:
		return decodeJSON(data)
	default:
		return decodeDelimited(data, format)
	}
}

// decodeDelimited handles the CSV dialects and tab-delimited formats.
// Quoted fields may contain delimiters and newlines (RFC 4180); short rows
// pad missing trailing columns with empty strings.
func decodeDelimited(data []byte, format FormatID) ([]string, []RawRow, error) {
	if !utf8.Valid(data) {
		return nil, nil, apperrors.Decode("import file is not valid UTF-8")
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delimiterFor(format)
	r.FieldsPerRecord = -1 // tolerate short and long rows
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, nil, apperrors.Decode("cannot read header line").WithCause(err)
	}

	headers := make([]string, len(header))
	for i, h := range header {
		headers[i] = strings.TrimSpace(unescapeCell(h, format))
	}
	if len(headers) == 0 || (len(headers) == 1 && headers[0] == "") {
		return nil, nil, apperrors.Decode("header line is empty")
	}

	var rows []RawRow
	for n := 1; ; n++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, apperrors.Decodef("malformed row %d", n).WithCause(err)
		}

		values := make(map[string]any, len(headers))
		for i, h := range headers {
			if i < len(record) {
				values[h] = unescapeCell(record[i], format)
			} else {
				values[h] = "" // short row: missing trailing columns are empty
			}
		}
		rows = append(rows, RawRow{Number: n, Headers: headers, Values: values})
	}

	return headers, rows, nil
}

// unescapeCell strips the spreadsheet-formula wrapper some vendors use to
// keep leading zeros intact: `="0441172717"` becomes `0441172717`. Only the
// goodreads dialect encodes cells this way.
func unescapeCell(cell string, format FormatID) string {
	if format != FormatGoodreads {
		return cell
	}
	if strings.HasPrefix(cell, `="`) && strings.HasSuffix(cell, `"`) && len(cell) >= 3 {
		return cell[2 : len(cell)-1]
	}
	return cell
}

// decodeJSON accepts either a JSON array of objects or a single object,
// which is wrapped into a one-element sequence.
func decodeJSON(data []byte) ([]string, []RawRow, error) {
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, nil, apperrors.Decode("invalid JSON payload").WithCause(err)
	}

	var objects []map[string]any
	switch v := payload.(type) {
	case []any:
		objects = make([]map[string]any, 0, len(v))
		for i, item := range v {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, nil, apperrors.Decodef("JSON array element %d is not an object", i)
			}
			objects = append(objects, obj)
		}
	case map[string]any:
		objects = []map[string]any{v}
	default:
		return nil, nil, apperrors.Decode("JSON payload must be an object or an array of objects")
	}

	// Headers are the sorted union of keys, so mapping is deterministic.
	keySet := make(map[string]struct{})
	for _, obj := range objects {
		for k := range obj {
			keySet[k] = struct{}{}
		}
	}
	headers := make([]string, 0, len(keySet))
	for k := range keySet {
		headers = append(headers, k)
	}
	slices.Sort(headers)

	rows := make([]RawRow, 0, len(objects))
	for i, obj := range objects {
		rows = append(rows, RawRow{Number: i + 1, Headers: headers, Values: obj})
	}

	return headers, rows, nil
}

// stringify renders a decoded value for display and matching.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, stringify(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(v)
	}
}
