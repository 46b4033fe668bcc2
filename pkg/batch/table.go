package batch

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	apperrors "github.com/dasmlab/polyglot/pkg/errors"
)

// Table is a header plus rows of string cells. Every row has len(Header) cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// ColumnIndex returns the index of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Column returns the cells of the named column.
func (t *Table) Column(name string) ([]string, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrColumnNotFound, name)
	}
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[idx]
	}
	return out, nil
}

// SetColumn overwrites the named column, or appends it when absent.
// len(values) must equal the number of rows.
func (t *Table) SetColumn(name string, values []string) error {
	if len(values) != len(t.Rows) {
		return fmt.Errorf("column %q has %d values for %d rows", name, len(values), len(t.Rows))
	}
	idx := t.ColumnIndex(name)
	if idx < 0 {
		t.Header = append(t.Header, name)
		for i := range t.Rows {
			t.Rows[i] = append(t.Rows[i], values[i])
		}
		return nil
	}
	for i := range t.Rows {
		t.Rows[i][idx] = values[i]
	}
	return nil
}

// Fill sets every cell of the named column to value.
func (t *Table) Fill(name, value string) {
	values := make([]string, len(t.Rows))
	for i := range values {
		values[i] = value
	}
	_ = t.SetColumn(name, values)
}

// Clone returns a deep copy of t.
func (t *Table) Clone() *Table {
	out := &Table{Header: append([]string(nil), t.Header...), Rows: make([][]string, len(t.Rows))}
	for i, row := range t.Rows {
		out.Rows[i] = append(make([]string, 0, len(row)+3), row...)
	}
	return out
}

// ReadCSV parses a CSV document whose first record is the header. A leading
// UTF-8 byte order mark is dropped. Short rows are padded with empty cells
// and long rows are cut to the header width.
func ReadCSV(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.Wrap("batch.read_csv", err)
	}
	data = stripBOM(data)

	cr := csv.NewReader(bufio.NewReader(bytes.NewReader(data)))
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, apperrors.Wrapf("batch.read_csv", "empty CSV document")
	}
	if err != nil {
		return nil, apperrors.Wrap("batch.read_csv", err)
	}

	t := &Table{Header: header}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.Wrap("batch.read_csv", err)
		}
		row := make([]string, len(header))
		copy(row, rec)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// WriteCSV writes t as CSV, header first.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return apperrors.Wrap("batch.write_csv", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return apperrors.Wrap("batch.write_csv", err)
	}
	return nil
}

func stripBOM(b []byte) []byte {
	bom := []byte{0xEF, 0xBB, 0xBF}
	if len(b) >= 3 && bytes.Equal(b[:3], bom) {
		return b[3:]
	}
	return b
}
