// Package table projects tabular UI data. Row 0 of Data holds the headers.
// Row indexes passed to these methods exclude the header row unless noted.
package table

import (
	"sort"
	"strings"
)

// Data is a table as read from the UI: headers followed by rows of cells.
type Data [][]string

// Match selects how a cell is compared to an expected value.
type Match int

const (
	Exact Match = iota
	Contains
)

func (m Match) matches(cell, want string) bool {
	if m == Contains {
		return strings.Contains(cell, want)
	}
	return cell == want
}

// Hit is one Search result.
type Hit struct {
	Row   int
	Col   int
	Value string
}

// Headers returns the header row.
func (d Data) Headers() []string {
	if len(d) == 0 {
		return nil
	}
	return d[0]
}

// Rows returns every row after the headers.
func (d Data) Rows() [][]string {
	if len(d) <= 1 {
		return nil
	}
	return d[1:]
}

// Cell returns the value at row, col.
func (d Data) Cell(row, col int) (string, bool) {
	r, ok := d.Row(row, false)
	if !ok || col < 0 || col >= len(r) {
		return "", false
	}
	return r[col], true
}

// Row returns row i. With includeHeaders, index 0 is the header row.
func (d Data) Row(i int, includeHeaders bool) ([]string, bool) {
	if !includeHeaders {
		i++
	}
	if i < 0 || i >= len(d) {
		return nil, false
	}
	return d[i], true
}

// ColumnIndex returns the position of the named header.
func (d Data) ColumnIndex(name string) (int, bool) {
	for i, h := range d.Headers() {
		if h == name {
			return i, true
		}
	}
	return -1, false
}

// Column returns the values of the named column.
func (d Data) Column(name string) []string {
	i, ok := d.ColumnIndex(name)
	if !ok {
		return nil
	}
	return d.ColumnAt(i)
}

// ColumnAt returns the values of column i, skipping short rows.
func (d Data) ColumnAt(i int) []string {
	if i < 0 {
		return nil
	}
	var out []string
	for _, row := range d.Rows() {
		if i < len(row) {
			out = append(out, row[i])
		}
	}
	return out
}

// Dimensions returns the row count (without headers) and column count.
func (d Data) Dimensions() (rows, cols int) {
	if len(d) == 0 {
		return 0, 0
	}
	return len(d) - 1, len(d[0])
}

// FindRowByValue returns the first row whose column matches value.
func (d Data) FindRowByValue(col, value string, m Match) ([]string, bool) {
	rows := d.findRows(col, value, m, true)
	if len(rows) == 0 {
		return nil, false
	}
	return rows[0], true
}

// FindRowsByValue returns every row whose column matches value.
func (d Data) FindRowsByValue(col, value string, m Match) [][]string {
	return d.findRows(col, value, m, false)
}

func (d Data) findRows(col, value string, m Match, firstOnly bool) [][]string {
	idx, ok := d.ColumnIndex(col)
	if !ok {
		return nil
	}
	var out [][]string
	for _, row := range d.Rows() {
		if idx < len(row) && m.matches(row[idx], value) {
			out = append(out, row)
			if firstOnly {
				break
			}
		}
	}
	return out
}

// FindRowsByValues matches several columns at once. With all every
// criterion must hold (AND), otherwise any one is enough (OR). An unknown
// column fails every row under AND and is ignored under OR.
func (d Data) FindRowsByValues(criteria map[string]string, m Match, all bool) [][]string {
	if len(d) <= 1 {
		return nil
	}
	indices := make(map[string]int, len(criteria))
	for name := range criteria {
		i, ok := d.ColumnIndex(name)
		if !ok {
			if all {
				return nil
			}
			continue
		}
		indices[name] = i
	}

	var out [][]string
	for _, row := range d.Rows() {
		hits := 0
		for name, want := range criteria {
			i, ok := indices[name]
			if ok && i < len(row) && m.matches(row[i], want) {
				hits++
			}
		}
		if (all && hits == len(criteria)) || (!all && hits > 0) {
			out = append(out, row)
		}
	}
	return out
}

// Search finds cells containing term.
func (d Data) Search(term string, caseSensitive bool) []Hit {
	if !caseSensitive {
		term = strings.ToLower(term)
	}
	var hits []Hit
	for r, row := range d.Rows() {
		for c, cell := range row {
			v := cell
			if !caseSensitive {
				v = strings.ToLower(cell)
			}
			if strings.Contains(v, term) {
				hits = append(hits, Hit{Row: r, Col: c, Value: cell})
			}
		}
	}
	return hits
}

// VerifyCell reports whether the cell at row, col matches expected.
func (d Data) VerifyCell(row, col int, expected string, m Match) bool {
	v, ok := d.Cell(row, col)
	return ok && m.matches(v, expected)
}

// VerifyRowExists reports whether any row's column matches value.
func (d Data) VerifyRowExists(col, value string, m Match) bool {
	_, ok := d.FindRowByValue(col, value, m)
	return ok
}

// VerifyColumnValues checks the named column against expected. ordered
// requires the same values in the same order; otherwise every expected
// value must be present.
func (d Data) VerifyColumnValues(col string, expected []string, m Match, ordered bool) bool {
	actual := d.Column(col)
	if ordered {
		if len(actual) != len(expected) {
			return false
		}
		for i := range actual {
			if !m.matches(actual[i], expected[i]) {
				return false
			}
		}
		return true
	}
	for _, want := range expected {
		found := false
		for _, got := range actual {
			if m.matches(got, want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// VerifySortOrder reports whether the named column is sorted.
func (d Data) VerifySortOrder(col string, desc, caseSensitive bool) bool {
	values := d.Column(col)
	sorted := append([]string(nil), values...)
	key := func(s string) string {
		if caseSensitive {
			return s
		}
		return strings.ToLower(s)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return key(sorted[i]) < key(sorted[j]) })
	if desc {
		for i, j := 0, len(sorted)-1; i < j; i, j = i+1, j-1 {
			sorted[i], sorted[j] = sorted[j], sorted[i]
		}
	}
	for i := range values {
		if values[i] != sorted[i] {
			return false
		}
	}
	return true
}

// ToMaps converts rows to header-keyed maps. Missing cells are "".
func (d Data) ToMaps() []map[string]string {
	headers := d.Headers()
	var out []map[string]string
	for _, row := range d.Rows() {
		m := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(row) {
				m[h] = row[i]
			} else {
				m[h] = ""
			}
		}
		out = append(out, m)
	}
	return out
}

// ValueFromRow finds the first row whose baseCol matches baseValue and
// returns its targetCol value.
func (d Data) ValueFromRow(baseCol, baseValue, targetCol string, m Match) (string, bool) {
	bi, ok := d.ColumnIndex(baseCol)
	if !ok {
		return "", false
	}
	ti, ok := d.ColumnIndex(targetCol)
	if !ok {
		return "", false
	}
	for _, row := range d.Rows() {
		if bi < len(row) && m.matches(row[bi], baseValue) {
			if ti < len(row) {
				return row[ti], true
			}
			return "", false
		}
	}
	return "", false
}
