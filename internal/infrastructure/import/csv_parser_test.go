package csvimport

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestNewCSVParser(t *testing.T) {
	t.Run("headers are normalized", func(t *testing.T) {
		parser, err := NewCSVParser(strings.NewReader("Payment Ref, Vendor-Code ,amount\nPAY-1,V-1,10"))
		require.NoError(t, err)
		assert.Equal(t, []string{"payment_ref", "vendor_code", "amount"}, parser.Headers())
	})

	t.Run("UTF-8 BOM is stripped", func(t *testing.T) {
		parser, err := NewCSVParser(strings.NewReader("\xEF\xBB\xBFpayment_ref,amount\nPAY-1,10"))
		require.NoError(t, err)
		assert.Equal(t, "payment_ref", parser.Headers()[0])
	})

	t.Run("empty file", func(t *testing.T) {
		_, err := NewCSVParser(strings.NewReader(""))
		assert.ErrorIs(t, err, ErrEmptyFile)
	})

	t.Run("invalid encoding", func(t *testing.T) {
		_, err := NewCSVParser(strings.NewReader("name\n\xff\xfe\xfd"))
		assert.ErrorIs(t, err, ErrInvalidEncoding)
	})

	t.Run("custom delimiter", func(t *testing.T) {
		parser, err := NewCSVParser(strings.NewReader("payment_ref;amount\nPAY-1;10"), WithDelimiter(';'))
		require.NoError(t, err)
		row, err := parser.ReadRow()
		require.NoError(t, err)
		assert.Equal(t, "10", row.Get("amount"))
	})
}

func TestCSVParser_ReadRow(t *testing.T) {
	parser, err := NewCSVParser(strings.NewReader("payment_ref,amount,note\nPAY-1, 10 \nPAY-2,20,late,extra\n"))
	require.NoError(t, err)

	row, err := parser.ReadRow()
	require.NoError(t, err)
	assert.Equal(t, 2, row.LineNumber)
	assert.Equal(t, "10", row.Get("amount"))
	assert.Equal(t, "", row.Get("note"))

	row, err = parser.ReadRow()
	require.NoError(t, err)
	assert.Equal(t, 3, row.LineNumber)
	assert.Equal(t, "late", row.Get("note"))

	_, err = parser.ReadRow()
	assert.Equal(t, io.EOF, err)
}

func TestReadAllRows_SkipsBlankRows(t *testing.T) {
	parser, err := NewCSVParser(strings.NewReader("payment_ref,amount\nPAY-1,10\n,\nPAY-2,20\n"))
	require.NoError(t, err)

	rows, err := ReadAllRows(parser)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "PAY-2", rows[1].Get("payment_ref"))
	assert.Equal(t, 4, rows[1].LineNumber)
}

func TestMissingHeaders(t *testing.T) {
	parser, err := NewCSVParser(strings.NewReader("payment_ref,amount\n"))
	require.NoError(t, err)

	assert.Equal(t, []string{"vendor_code"}, MissingHeaders(parser, []string{"payment_ref", "vendor_code", "amount"}))
	assert.Empty(t, MissingHeaders(parser, []string{"amount"}))
}

func workbook(t *testing.T, rows [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellStr("Sheet1", cell, v))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestXLSXReader(t *testing.T) {
	data := workbook(t, [][]string{
		{"Payment Ref", "Amount"},
		{"PAY-1", "10.50"},
		{"PAY-2", "20"},
	})

	reader, err := NewXLSXReader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []string{"payment_ref", "amount"}, reader.Headers())

	rows, err := ReadAllRows(reader)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 2, rows[0].LineNumber)
	assert.Equal(t, "10.50", rows[0].Get("amount"))
	assert.Equal(t, 3, rows[1].LineNumber)
}

func TestXLSXReader_Invalid(t *testing.T) {
	_, err := NewXLSXReader(strings.NewReader("not a workbook"))
	assert.ErrorIs(t, err, ErrInvalidWorkbook)

	_, err = NewXLSXReader(bytes.NewReader(workbook(t, nil)))
	assert.ErrorIs(t, err, ErrEmptyFile)
}
