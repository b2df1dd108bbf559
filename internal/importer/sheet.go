package importer

import (
	"errors"
	"fmt"
	"io"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// xlsxReader streams the first sheet of a workbook. The first non-blank row is the header.
type xlsxReader struct {
	file    *excelize.File
	rows    *excelize.Rows
	closer  io.Closer
	headers []string
}

func newXLSXReader(src io.Reader, closer io.Closer) (*xlsxReader, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.Rows(sheets[0])
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}

	xr := &xlsxReader{file: f, rows: rows, closer: closer}
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			xr.Close()
			return nil, fmt.Errorf("failed to read header: %w", err)
		}
		if blank(cols) {
			continue
		}
		xr.headers = cleanHeaders(cols)
		break
	}
	return xr, nil
}

func (x *xlsxReader) Next() (Row, error) {
	if x.headers == nil {
		return nil, io.EOF
	}
	for x.rows.Next() {
		cols, err := x.rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		if blank(cols) {
			continue
		}
		return zip(x.headers, cols), nil
	}
	if err := x.rows.Error(); err != nil {
		return nil, fmt.Errorf("failed to stream sheet: %w", err)
	}
	return nil, io.EOF
}

func (x *xlsxReader) Close() error {
	err := x.rows.Close()
	if cerr := x.file.Close(); err == nil {
		err = cerr
	}
	if x.closer != nil {
		if cerr := x.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// xlsReader walks the first sheet of a legacy BIFF workbook row by row.
type xlsReader struct {
	sheet   *xls.WorkSheet
	closer  io.Closer
	headers []string
	next    int
}

func newXLSReader(src io.ReadSeeker, closer io.Closer) (*xlsReader, error) {
	wb, err := xls.OpenReader(src, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	if wb.NumSheets() == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, errors.New("failed to read first sheet")
	}

	xr := &xlsReader{sheet: sheet, closer: closer}
	for xr.next <= int(sheet.MaxRow) {
		cols := xr.values(xr.next)
		xr.next++
		if blank(cols) {
			continue
		}
		xr.headers = cleanHeaders(cols)
		break
	}
	return xr, nil
}

// values reads row i as strings. Rows absent from the sheet come back nil.
func (x *xlsReader) values(i int) (cols []string) {
	// xls.WorkSheet.Row dereferences the missing map entry for absent rows.
	defer func() {
		if recover() != nil {
			cols = nil
		}
	}()

	row := x.sheet.Row(i)
	// Cells written without a ROW record report LastCol 0; fall back to the header width.
	width := row.LastCol()
	if n := len(x.headers); n > width {
		width = n
	}
	cols = make([]string, 0, width)
	for c := 0; c < width; c++ {
		cols = append(cols, row.Col(c))
	}
	return cols
}

func (x *xlsReader) Next() (Row, error) {
	if x.headers == nil {
		return nil, io.EOF
	}
	for x.next <= int(x.sheet.MaxRow) {
		cols := x.values(x.next)
		x.next++
		if blank(cols) {
			continue
		}
		return zip(x.headers, cols), nil
	}
	return nil, io.EOF
}

func (x *xlsReader) Close() error {
	if x.closer == nil {
		return nil
	}
	return x.closer.Close()
}
