// Package csvfile reads the semicolon-delimited trip files into raw text
// tables. Every cell is kept as text; null markers are flagged rather than
// converted, so the validator and the loader can apply their own rules.
package csvfile

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pkordes/tripfeed/internal/domain"
)

// ErrNoHeader is returned when the input contains no records at all.
var ErrNoHeader = errors.New("no header row")

// ErrMalformed is returned when the input cannot be tokenised as delimited
// text or its shape disagrees with the header.
var ErrMalformed = errors.New("malformed csv")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Cell is one field of a data row.
// Null is true when the raw text is one of domain.NullMarkers or the row was
// shorter than the header.
type Cell struct {
	Text string
	Null bool
}

// Row is one data record. Line is the 1-indexed line in the source file where
// the record starts.
type Row struct {
	Line  int
	Cells []Cell
}

// Texts returns the raw text of every cell, with nulls as "".
func (r Row) Texts() []string {
	out := make([]string, len(r.Cells))
	for i, c := range r.Cells {
		out[i] = c.Text
	}
	return out
}

// Table is a parsed file: the header and all data rows.
type Table struct {
	Header []string
	Rows   []Row

	index map[string]int
}

// Column returns the position of the named header column.
func (t *Table) Column(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

// Value returns the cell of row r under the named column.
// It reports false when the column is not in the header.
func (t *Table) Value(r Row, name string) (Cell, bool) {
	i, ok := t.index[name]
	if !ok {
		return Cell{}, false
	}
	return r.Cells[i], true
}

// ReadFile opens path and parses it with Read.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csvfile.ReadFile: %w", err)
	}
	defer f.Close()

	t, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("csvfile.ReadFile: %s: %w", path, err)
	}
	return t, nil
}

// Read parses delimited text from r. The first record is the header.
// Empty lines are skipped, but a line holding only spaces is a row whose first
// cell is that text and whose other cells are null. A data row longer than the
// header is malformed; a shorter row is padded with null cells.
// A '"' inside an unquoted field is kept as text.
// A repeated header name gets a ".N" suffix ("status", "status.1"), so only
// its first occurrence is found by Column.
func Read(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = domain.Delimiter
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrMalformed, err)
	}

	header[0] = string(bytes.TrimPrefix([]byte(header[0]), utf8BOM))

	t := &Table{
		Header: header,
		index:  make(map[string]int, len(header)),
	}
	for i, name := range header {
		if _, dup := t.index[name]; dup {
			name = dedupe(t.index, name)
			header[i] = name
		}
		t.index[name] = i
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		line, _ := cr.FieldPos(0)
		if len(rec) > len(header) {
			return nil, fmt.Errorf("%w: line %d: expected %d fields, saw %d",
				ErrMalformed, line, len(header), len(rec))
		}

		cells := make([]Cell, len(header))
		for i := range cells {
			if i >= len(rec) {
				cells[i] = Cell{Null: true}
				continue
			}
			cells[i] = Cell{Text: rec[i], Null: domain.IsNullMarker(rec[i])}
		}
		t.Rows = append(t.Rows, Row{Line: line, Cells: cells})
	}

	return t, nil
}

// dedupe returns the first of name.1, name.2, ... not yet in index.
func dedupe(index map[string]int, name string) string {
	for n := 1; ; n++ {
		candidate := name + "." + strconv.Itoa(n)
		if _, taken := index[candidate]; !taken {
			return candidate
		}
	}
}
