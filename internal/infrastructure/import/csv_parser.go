// Package csvimport reads tabular uploads (CSV or XLSX) row by row,
// validates their fields and loads payment ledger entries from them.
package csvimport

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// RowReader yields header-keyed rows from an upload
type RowReader interface {
	Headers() []string
	ReadRow() (*Row, error)
}

// CSVParser parses CSV uploads. A UTF-8 BOM is stripped and headers are
// normalized to lower snake case.
type CSVParser struct {
	delimiter  rune
	lazyQuotes bool
	headerMap  map[string]int
	headers    []string
	currentRow int
	reader     *csv.Reader
}

// ParserOption is a functional option for CSVParser configuration
type ParserOption func(*CSVParser)

// WithDelimiter sets the field delimiter (default is comma)
func WithDelimiter(d rune) ParserOption {
	return func(p *CSVParser) {
		p.delimiter = d
	}
}

// WithLazyQuotes toggles lenient quote handling (default on)
func WithLazyQuotes(lazy bool) ParserOption {
	return func(p *CSVParser) {
		p.lazyQuotes = lazy
	}
}

// NewCSVParser creates a parser and reads the header row
func NewCSVParser(r io.Reader, opts ...ParserOption) (*CSVParser, error) {
	p := &CSVParser{
		delimiter:  ',',
		lazyQuotes: true,
		headerMap:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(p)
	}

	br := bufio.NewReader(r)
	head, err := br.Peek(3)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(head) >= 3 && head[0] == 0xEF && head[1] == 0xBB && head[2] == 0xBF {
		_, _ = br.Discard(3)
	}
	if err := validateUTF8(br); err != nil {
		return nil, err
	}

	p.reader = csv.NewReader(br)
	p.reader.Comma = p.delimiter
	p.reader.LazyQuotes = p.lazyQuotes
	p.reader.TrimLeadingSpace = true
	p.reader.FieldsPerRecord = -1

	if err := p.parseHeader(); err != nil {
		return nil, err
	}
	return p, nil
}

func validateUTF8(r *bufio.Reader) error {
	const checkSize = 4096
	content, err := r.Peek(checkSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return fmt.Errorf("failed to read file for encoding validation: %w", err)
	}
	if len(content) == 0 {
		return ErrEmptyFile
	}
	// A multi-byte rune may straddle the peek window
	if len(content) == checkSize {
		for i := 1; i < utf8.UTFMax; i++ {
			tail := content[len(content)-i:]
			if utf8.RuneStart(tail[0]) {
				if !utf8.FullRune(tail) {
					content = content[:len(content)-i]
				}
				break
			}
		}
	}
	if !utf8.Valid(content) {
		return ErrInvalidEncoding
	}
	return nil
}

func (p *CSVParser) parseHeader() error {
	record, err := p.reader.Read()
	if err == io.EOF {
		return ErrMissingHeader
	}
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	p.headers = normalizeHeaders(record)
	for i, h := range p.headers {
		if h != "" {
			p.headerMap[h] = i
		}
	}
	if len(p.headerMap) == 0 {
		return ErrMissingHeader
	}
	p.currentRow = 1
	return nil
}

// normalizeHeader turns "Payment Ref" or "payment-ref" into "payment_ref"
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Join(strings.FieldsFunc(h, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	}), "_")
}

func normalizeHeaders(record []string) []string {
	headers := make([]string, len(record))
	for i, h := range record {
		headers[i] = normalizeHeader(h)
	}
	return headers
}

// Headers returns the normalized header names
func (p *CSVParser) Headers() []string {
	return p.headers
}

// Row is a parsed row keyed by normalized header
type Row struct {
	LineNumber int
	Data       map[string]string
}

// Get returns the value for a column by header name
func (r *Row) Get(header string) string {
	return r.Data[header]
}

// IsEmpty returns true if the row has no non-empty values
func (r *Row) IsEmpty() bool {
	for _, v := range r.Data {
		if v != "" {
			return false
		}
	}
	return true
}

func newRow(line int, headers, fields []string) *Row {
	row := &Row{LineNumber: line, Data: make(map[string]string, len(headers))}
	for i, h := range headers {
		if h == "" {
			continue
		}
		value := ""
		if i < len(fields) {
			value = strings.TrimSpace(fields[i])
		}
		row.Data[h] = value
	}
	return row
}

// ReadRow reads the next row; io.EOF marks the end
func (p *CSVParser) ReadRow() (*Row, error) {
	record, err := p.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	p.currentRow++
	if err != nil {
		return nil, fmt.Errorf("error reading row %d: %w", p.currentRow, err)
	}
	return newRow(p.currentRow, p.headers, record), nil
}

// ReadAllRows drains r, skipping blank rows
func ReadAllRows(r RowReader) ([]*Row, error) {
	var rows []*Row
	for {
		row, err := r.ReadRow()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		if row.IsEmpty() {
			continue
		}
		rows = append(rows, row)
	}
}

// MissingHeaders returns the required headers r does not carry
func MissingHeaders(r RowReader, required []string) []string {
	present := make(map[string]bool)
	for _, h := range r.Headers() {
		present[h] = true
	}
	var missing []string
	for _, h := range required {
		if !present[h] {
			missing = append(missing, h)
		}
	}
	return missing
}
