package ingest

import (
	"path/filepath"
	"strings"

	apperrors "github.com/shelfsyncapp/shelfsync-server/internal/errors"
)

// DetectFormat selects a format from a declared identifier and a filename.
// A valid declared format always wins; otherwise the file extension decides.
func DetectFormat(filename, declared string) (FormatID, error) {
	if declared != "" {
		f := FormatID(strings.ToLower(strings.TrimSpace(declared)))
		if !f.Valid() {
			return "", apperrors.Validationf("unknown import format %q", declared)
		}
		return f, nil
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV, nil
	case ".tsv", ".tab":
		return FormatTSV, nil
	case ".json":
		return FormatJSON, nil
	}
	return "", apperrors.Validationf("cannot detect import format for %q", filename)
}

// delimiterFor returns the field delimiter for a delimited format.
func delimiterFor(format FormatID) rune {
	switch format {
	case FormatHandyLib, FormatTSV:
		return '\t'
	default:
		return ','
	}
}

// listSeparatorFor returns the separator used to split multi-value cells.
func listSeparatorFor(format FormatID) string {
	if format == FormatHandyLib {
		return ";"
	}
	return ","
}
