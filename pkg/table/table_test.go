package table

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

var files = Data{
	{"Name", "Size", "Type"},
	{"alpha.txt", "10 KB", "Text"},
	{"Beta.png", "2 MB", "Image"},
	{"gamma.txt", "1 KB", "Text"},
	{"short"},
}

func TestHeadersRowsDimensions(t *testing.T) {
	assert.Equal(t, []string{"Name", "Size", "Type"}, files.Headers())
	assert.Len(t, files.Rows(), 4)

	rows, cols := files.Dimensions()
	assert.Equal(t, 4, rows)
	assert.Equal(t, 3, cols)

	rows, cols = Data{}.Dimensions()
	assert.Zero(t, rows)
	assert.Zero(t, cols)
	assert.Nil(t, Data{{"h"}}.Rows())
}

func TestCellAndRow(t *testing.T) {
	v, ok := files.Cell(1, 2)
	assert.True(t, ok)
	assert.Equal(t, "Image", v)

	_, ok = files.Cell(3, 1)
	assert.False(t, ok, "short row")
	_, ok = files.Cell(9, 0)
	assert.False(t, ok)
	_, ok = files.Cell(-2, 0)
	assert.False(t, ok)

	row, ok := files.Row(0, true)
	assert.True(t, ok)
	assert.Equal(t, files.Headers(), row)

	row, ok = files.Row(0, false)
	assert.True(t, ok)
	assert.Equal(t, "alpha.txt", row[0])
}

func TestColumn(t *testing.T) {
	assert.Equal(t, []string{"10 KB", "2 MB", "1 KB"}, files.Column("Size"))
	assert.Equal(t, []string{"alpha.txt", "Beta.png", "gamma.txt", "short"}, files.ColumnAt(0))
	assert.Nil(t, files.Column("Missing"))
	assert.Nil(t, files.ColumnAt(-1))
}

func TestFindRows(t *testing.T) {
	row, ok := files.FindRowByValue("Type", "Text", Exact)
	assert.True(t, ok)
	assert.Equal(t, "alpha.txt", row[0])

	_, ok = files.FindRowByValue("Type", "Tex", Exact)
	assert.False(t, ok)

	rows := files.FindRowsByValue("Name", ".txt", Contains)
	assert.Len(t, rows, 2)

	assert.Nil(t, files.FindRowsByValue("Nope", "x", Exact))
	assert.True(t, files.VerifyRowExists("Size", "2 MB", Exact))
}

func TestFindRowsByValues(t *testing.T) {
	and := files.FindRowsByValues(map[string]string{"Type": "Text", "Size": "1 KB"}, Exact, true)
	if diff := cmp.Diff([][]string{{"gamma.txt", "1 KB", "Text"}}, and); diff != "" {
		t.Errorf("AND mismatch (-want +got):\n%s", diff)
	}

	or := files.FindRowsByValues(map[string]string{"Type": "Image", "Size": "1 KB"}, Exact, false)
	assert.Len(t, or, 2)

	assert.Nil(t, files.FindRowsByValues(map[string]string{"Type": "Text", "Owner": "me"}, Exact, true))
	assert.Len(t, files.FindRowsByValues(map[string]string{"Type": "Text", "Owner": "me"}, Exact, false), 2)
}

func TestSearch(t *testing.T) {
	hits := files.Search("BETA", false)
	assert.Equal(t, []Hit{{Row: 1, Col: 0, Value: "Beta.png"}}, hits)
	assert.Empty(t, files.Search("BETA", true))
	assert.Len(t, files.Search("kb", false), 2)
}

func TestVerify(t *testing.T) {
	assert.True(t, files.VerifyCell(0, 0, "alpha.txt", Exact))
	assert.True(t, files.VerifyCell(0, 0, "alpha", Contains))
	assert.False(t, files.VerifyCell(0, 0, "alpha", Exact))
	assert.False(t, files.VerifyCell(7, 0, "", Exact))

	assert.True(t, files.VerifyColumnValues("Type", []string{"Image", "Text"}, Exact, false))
	assert.False(t, files.VerifyColumnValues("Type", []string{"Image", "Text"}, Exact, true))
	assert.True(t, files.VerifyColumnValues("Type", []string{"Text", "Image", "Text"}, Exact, true))
	assert.True(t, files.VerifyColumnValues("Size", []string{"MB"}, Contains, false))
}

func TestVerifySortOrder(t *testing.T) {
	assert.True(t, files.VerifySortOrder("Name", false, false), "case-insensitive ascending")
	assert.False(t, files.VerifySortOrder("Name", false, true), "B sorts before a when case matters")

	desc := Data{{"N"}, {"c"}, {"b"}, {"a"}}
	assert.True(t, desc.VerifySortOrder("N", true, false))
	assert.False(t, desc.VerifySortOrder("N", false, false))
	assert.True(t, Data{{"N"}}.VerifySortOrder("N", false, false))
}

func TestToMaps(t *testing.T) {
	maps := files.ToMaps()
	assert.Len(t, maps, 4)
	assert.Equal(t, map[string]string{"Name": "short", "Size": "", "Type": ""}, maps[3])
}

func TestValueFromRow(t *testing.T) {
	v, ok := files.ValueFromRow("Name", "Beta.png", "Size", Exact)
	assert.True(t, ok)
	assert.Equal(t, "2 MB", v)

	_, ok = files.ValueFromRow("Name", "short", "Size", Exact)
	assert.False(t, ok)
	_, ok = files.ValueFromRow("Name", "x", "Missing", Exact)
	assert.False(t, ok)
}
