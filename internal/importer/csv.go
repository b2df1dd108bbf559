package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

type csvReader struct {
	r       *csv.Reader
	closer  io.Closer
	headers []string
	// line is where the last record read started.
	line int
}

func newCSVReader(src io.Reader, closer io.Closer) (*csvReader, error) {
	r := csv.NewReader(src)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true

	cr := &csvReader{r: r, closer: closer}
	header, err := r.Read()
	switch {
	case errors.Is(err, io.EOF):
		return cr, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	cr.headers = cleanHeaders(header)
	cr.line, _ = r.FieldPos(0)
	return cr, nil
}

func (c *csvReader) Next() (Row, error) {
	if c.headers == nil {
		return nil, io.EOF
	}
	for {
		record, err := c.r.Read()
		var perr *csv.ParseError
		switch {
		case errors.Is(err, io.EOF):
			return nil, io.EOF
		case errors.As(err, &perr):
			// a malformed line is dropped like any other unusable row
			continue
		case err != nil:
			return nil, fmt.Errorf("read failed after record at line %d: %w", c.line, err)
		}
		c.line, _ = c.r.FieldPos(0)
		if blank(record) {
			continue
		}
		return zip(c.headers, record), nil
	}
}

func (c *csvReader) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}
