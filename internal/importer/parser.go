package importer

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/jwalitptl/queue-api/pkg/errors"
)

// RowReader yields the data rows of an import file one at a time. Next returns
// io.EOF once the source is exhausted. A reader is single pass.
type RowReader interface {
	Next() (Row, error)
	Close() error
}

const (
	ExtCSV  = ".csv"
	ExtXLSX = ".xlsx"
	ExtXLS  = ".xls"
)

// Supported reports whether ext (with leading dot, any case) can be imported.
func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ExtCSV, ExtXLSX, ExtXLS:
		return true
	}
	return false
}

// Open picks a reader from the file extension. Unsupported extensions are
// rejected before the file is touched.
func Open(path string) (RowReader, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !Supported(ext) {
		return nil, apperrors.UnsupportedFormat(ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Read(filepath.Base(path), err)
	}

	var rr RowReader
	switch ext {
	case ExtCSV:
		rr, err = newCSVReader(f, f)
	case ExtXLSX:
		rr, err = newXLSXReader(f, f)
	case ExtXLS:
		rr, err = newXLSReader(f, f)
	}
	if err != nil {
		f.Close()
		return nil, apperrors.Read(filepath.Base(path), err)
	}
	return rr, nil
}

// OpenReader is Open for an in-memory or streamed source with a declared extension.
func OpenReader(r io.Reader, ext string) (RowReader, error) {
	ext = strings.ToLower(ext)
	if !Supported(ext) {
		return nil, apperrors.UnsupportedFormat(ext)
	}

	var (
		rr  RowReader
		err error
	)
	switch ext {
	case ExtCSV:
		rr, err = newCSVReader(r, nil)
	case ExtXLSX:
		rr, err = newXLSXReader(r, nil)
	case ExtXLS:
		rs, ok := r.(io.ReadSeeker)
		if !ok {
			var data []byte
			data, err = io.ReadAll(r)
			if err != nil {
				return nil, apperrors.Read("upload"+ext, err)
			}
			rs = bytes.NewReader(data)
		}
		rr, err = newXLSReader(rs, nil)
	}
	if err != nil {
		return nil, apperrors.Read("upload"+ext, err)
	}
	return rr, nil
}

// ReadAll drains a reader. Used by callers that need the whole batch to report counts.
func ReadAll(rr RowReader) ([]Row, error) {
	var rows []Row
	for {
		row, err := rr.Next()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
}

// zip pairs header names with the values at the same position. Missing
// positions become empty strings; values past the last header are ignored.
func zip(headers, values []string) Row {
	row := make(Row, len(headers))
	for i, h := range headers {
		if h == "" {
			continue
		}
		if _, seen := row[h]; seen {
			continue
		}
		if i < len(values) {
			row[h] = values[i]
		} else {
			row[h] = ""
		}
	}
	return row
}

func blank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func cleanHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	for i, h := range raw {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	return headers
}
