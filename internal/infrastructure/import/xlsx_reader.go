package csvimport

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// XLSXReader reads rows from the first sheet of a workbook
type XLSXReader struct {
	headers []string
	rows    [][]string
	next    int
}

// NewXLSXReader loads the first sheet of the workbook in r. Row 1 is the header.
func NewXLSXReader(r io.Reader) (*XLSXReader, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	x := &XLSXReader{headers: normalizeHeaders(rows[0]), rows: rows[1:]}
	hasHeader := false
	for _, h := range x.headers {
		if h != "" {
			hasHeader = true
			break
		}
	}
	if !hasHeader {
		return nil, ErrMissingHeader
	}
	return x, nil
}

// Headers returns the normalized header names
func (x *XLSXReader) Headers() []string {
	return x.headers
}

// ReadRow returns the next row; io.EOF marks the end
func (x *XLSXReader) ReadRow() (*Row, error) {
	if x.next >= len(x.rows) {
		return nil, io.EOF
	}
	fields := x.rows[x.next]
	x.next++
	// Sheet rows are 1-indexed and the header occupies row 1
	return newRow(x.next+1, x.headers, fields), nil
}
