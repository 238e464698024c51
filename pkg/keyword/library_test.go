package keyword

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devicelab-dev/uiscope/pkg/core"
	"github.com/devicelab-dev/uiscope/pkg/driver/mock"
	"github.com/devicelab-dev/uiscope/pkg/locator"
	"github.com/devicelab-dev/uiscope/pkg/report"
	"github.com/devicelab-dev/uiscope/pkg/scope"
	"github.com/devicelab-dev/uiscope/pkg/table"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.now = c.now.Add(d)
	return ctx.Err()
}

func newLibrary(root core.SearchContext) (*Library, *hookRecorder) {
	l := NewLibrary(root,
		WithClock(&fakeClock{now: time.Unix(0, 0)}),
		WithTimeout(time.Second),
		WithPollInterval(100*time.Millisecond),
		WithReferenceTimeout(200*time.Millisecond))
	rec := &hookRecorder{}
	l.SetRunOnFailure(rec.hook)
	return l, rec
}

func attrs(kv ...string) map[string]string {
	m := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i]] = kv[i+1]
	}
	return m
}

func TestElementExists(t *testing.T) {
	d := mock.New(mock.Config{}, mock.N("button", attrs("id", "ok")))
	l, rec := newLibrary(d)
	ctx := context.Background()

	ok, err := l.ElementExists(ctx, "id=ok", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.ElementExists(ctx, "id=missing", 0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, d.Calls(), 1+10)
	assert.Empty(t, rec.keywords)
}

func TestElementsExist(t *testing.T) {
	d := mock.New(mock.Config{},
		mock.N("cell", attrs("id", "c", "Name", "one")),
		mock.N("cell", attrs("id", "c", "Name", "two")))
	l, _ := newLibrary(d)

	els, err := l.ElementsExist(context.Background(), "id=c | Name=t*", 0)
	require.NoError(t, err)
	require.Len(t, els, 1)
	v, _, _ := els[0].Attribute(context.Background(), "Name")
	assert.Equal(t, "two", v)

	els, err = l.ElementsExist(context.Background(), "id=nothing", 0)
	require.NoError(t, err)
	assert.Nil(t, els)
}

func TestInvalidLocatorFiresHook(t *testing.T) {
	d := mock.New(mock.Config{})
	l, rec := newLibrary(d)

	_, err := l.ElementExists(context.Background(), "bogus=x", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUnsupportedStrategy)
	assert.True(t, IsHandled(err))
	assert.Equal(t, []string{"element_exists"}, rec.keywords)
}

func TestWaitUntilVisible(t *testing.T) {
	shown := mock.N("label", attrs("id", "shown"))
	hidden := mock.N("label", attrs("id", "hidden"))
	hidden.Hidden = true
	d := mock.New(mock.Config{}, shown, hidden)
	l, _ := newLibrary(d)

	el, err := l.WaitUntilVisible(context.Background(), "id=shown", 0)
	require.NoError(t, err)
	require.NotNil(t, el)
	assert.Equal(t, shown.ID, el.ID())

	el, err = l.WaitUntilVisible(context.Background(), "id=hidden", 0)
	require.NoError(t, err)
	assert.Nil(t, el)
}

func TestWaitUntilVisible_AppearsLater(t *testing.T) {
	spinner := mock.N("label", attrs("id", "done"))
	spinner.Hidden = true
	var d *mock.Driver
	d = mock.New(mock.Config{BeforeFind: func(call int) error {
		if call == 3 {
			d.SetHidden(spinner, false)
		}
		return nil
	}}, spinner)
	l, _ := newLibrary(d)

	el, err := l.WaitUntilVisible(context.Background(), "done", 0)
	require.NoError(t, err)
	require.NotNil(t, el)
	assert.Len(t, d.Calls(), 3)
}

func TestWaitUntilNotVisible_NeedsTwoObservations(t *testing.T) {
	n := mock.N("dialog", attrs("id", "dlg"))
	var d *mock.Driver
	d = mock.New(mock.Config{BeforeFind: func(call int) error {
		d.SetHidden(n, call != 2)
		return nil
	}}, n)
	l, _ := newLibrary(d)

	gone, err := l.WaitUntilNotVisible(context.Background(), "id=dlg", 0)
	require.NoError(t, err)
	assert.True(t, gone)
	assert.Len(t, d.Calls(), 4)
}

func TestWaitUntilNotVisible_StaysVisible(t *testing.T) {
	d := mock.New(mock.Config{}, mock.N("dialog", attrs("id", "dlg")))
	l, rec := newLibrary(d)

	gone, err := l.WaitUntilNotVisible(context.Background(), "id=dlg", 0)
	require.NoError(t, err)
	assert.False(t, gone)
	assert.Empty(t, rec.keywords)
}

func TestWaitUntilNotVisible_Absent(t *testing.T) {
	d := mock.New(mock.Config{})
	l, _ := newLibrary(d)

	gone, err := l.WaitUntilNotVisible(context.Background(), "id=dlg", 0)
	require.NoError(t, err)
	assert.True(t, gone)
	assert.Len(t, d.Calls(), 2)
}

func TestElementShouldBeVisible(t *testing.T) {
	hidden := mock.N("label", attrs("id", "h"))
	hidden.Hidden = true
	d := mock.New(mock.Config{}, mock.N("label", attrs("id", "v")), hidden)
	l, rec := newLibrary(d)
	ctx := context.Background()

	require.NoError(t, l.ElementShouldBeVisible(ctx, "id=v", 0))

	err := l.ElementShouldBeVisible(ctx, "id=h", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrElementNotVisible)
	assert.ErrorIs(t, err, core.ErrTimeout)
	assert.Equal(t, []string{"element_should_be_visible"}, rec.keywords)
}

func TestElementShouldNotBeVisible(t *testing.T) {
	hidden := mock.N("label", attrs("id", "h"))
	hidden.Hidden = true
	d := mock.New(mock.Config{}, mock.N("label", attrs("id", "v")), hidden)
	l, rec := newLibrary(d)
	ctx := context.Background()

	require.NoError(t, l.ElementShouldNotBeVisible(ctx, "id=h", 0))
	require.NoError(t, l.ElementShouldNotBeVisible(ctx, "id=gone", 0))

	err := l.ElementShouldNotBeVisible(ctx, "id=v", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrElementVisible)
	assert.Equal(t, []string{"element_should_not_be_visible"}, rec.keywords)
}

func TestFirstFoundElement(t *testing.T) {
	b := mock.N("button", attrs("id", "b"))
	d := mock.New(mock.Config{}, b)
	l, _ := newLibrary(d)
	ctx := context.Background()

	i, el, err := l.FirstFoundElement(ctx, 0, "id=a", "id=b")
	require.NoError(t, err)
	assert.Equal(t, 1, i)
	assert.Equal(t, b.ID, el.ID())

	i, el, err = l.FirstFoundElement(ctx, 0, "id=x", "id=y")
	require.NoError(t, err)
	assert.Equal(t, -1, i)
	assert.Nil(t, el)
}

func TestFirstFoundElement_KeywordTimeout(t *testing.T) {
	tests := []struct {
		name  string
		args  []interface{}
		calls int
	}{
		{"default", []interface{}{"id=x"}, 10},
		{"named", []interface{}{"id=x", "timeout=0.3"}, 3},
		{"trailing duration", []interface{}{"id=x", 300 * time.Millisecond}, 3},
		{"trailing seconds", []interface{}{"id=x", 0.5}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := mock.New(mock.Config{})
			l, _ := newLibrary(d)

			v, err := l.Group().Call(context.Background(), "first_found_element", tt.args...)
			require.NoError(t, err)
			assert.Equal(t, -1, v)
			assert.Len(t, d.Calls(), tt.calls)
		})
	}

	l, _ := newLibrary(mock.New(mock.Config{}))
	_, err := l.Group().Call(context.Background(), "first_found_element", "id=x", "timeout=-1")
	assert.ErrorIs(t, err, core.ErrInvalidTimeout)
}

func TestTimeoutBoundary(t *testing.T) {
	d := mock.New(mock.Config{}, mock.N("button", attrs("id", "ok")))
	l, rec := newLibrary(d)
	ctx := context.Background()

	ok, err := l.ElementExists(ctx, "id=ok", -5*time.Second)
	assert.ErrorIs(t, err, core.ErrInvalidTimeout)
	assert.False(t, ok)
	assert.Empty(t, d.Calls(), "a negative timeout must fail before any lookup")

	_, err = l.GetElements(ctx, "id=ok", -time.Millisecond)
	assert.ErrorIs(t, err, core.ErrInvalidTimeout)

	_, err = l.SetContext(ctx, "id=ok", nil, -time.Second)
	assert.ErrorIs(t, err, core.ErrInvalidTimeout)
	assert.Equal(t, 0, l.Scope().Depth())

	// Zero means the default on both the method and the keyword path.
	ok, err = l.ElementExists(ctx, "id=ok", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	for _, zero := range []interface{}{0, "0", time.Duration(0), 0.0} {
		v, err := l.Group().Call(ctx, "element_exists", "id=ok", zero)
		require.NoError(t, err, "%#v", zero)
		assert.Equal(t, true, v)
	}

	_, err = l.Group().Call(ctx, "element_exists", "id=ok", -2)
	assert.ErrorIs(t, err, core.ErrInvalidTimeout)
	assert.Equal(t, []string{"element_exists", "get_elements", "set_context", "element_exists"}, rec.keywords)
}

func TestGetElement(t *testing.T) {
	d := mock.New(mock.Config{}, mock.N("button", attrs("id", "b")))
	l, rec := newLibrary(d)
	ctx := context.Background()

	el, err := l.GetElement(ctx, "id=b", 0, true)
	require.NoError(t, err)
	assert.NotNil(t, el)

	el, err = l.GetElement(ctx, "id=x", 0, false)
	require.NoError(t, err)
	assert.Nil(t, el)
	assert.Empty(t, rec.keywords)

	_, err = l.GetElement(ctx, "id=x", 0, true)
	assert.ErrorIs(t, err, core.ErrElementNotFound)
	assert.ErrorIs(t, err, core.ErrTimeout)
	assert.Equal(t, []string{"get_element"}, rec.keywords)
}

func TestFindElements_Tag(t *testing.T) {
	d := mock.New(mock.Config{},
		mock.N("a", attrs("id", "x")),
		mock.N("input", attrs("id", "x", "type", "checkbox")),
		mock.N("input", attrs("id", "x", "type", "text")))
	l, _ := newLibrary(d)
	ctx := context.Background()

	els, err := l.FindElements(ctx, "id=x", "", 0)
	require.NoError(t, err)
	assert.Len(t, els, 3)

	els, err = l.FindElements(ctx, "id=x", "link", 0)
	require.NoError(t, err)
	assert.Len(t, els, 1)

	els, err = l.FindElements(ctx, "id=x", "checkbox", 0)
	require.NoError(t, err)
	assert.Len(t, els, 1)

	els, err = l.FindElements(ctx, "id=x", "button", 0)
	require.NoError(t, err)
	assert.NotNil(t, els)
	assert.Empty(t, els)
}

func TestGetElements_EmptyNotNil(t *testing.T) {
	d := mock.New(mock.Config{})
	l, _ := newLibrary(d)

	els, err := l.GetElements(context.Background(), "id=x", 0)
	require.NoError(t, err)
	assert.NotNil(t, els)
	assert.Empty(t, els)
}

func TestElementAttributes(t *testing.T) {
	list := mock.N("list", attrs("id", "list"),
		mock.N("item", attrs("class", "Item", "Name", "a")),
		mock.N("item", attrs("class", "Item")),
		mock.N("item", attrs("class", "Item", "Name", "c")))
	d := mock.New(mock.Config{}, list, mock.N("item", attrs("class", "Item", "Name", "outside")))
	l, _ := newLibrary(d)
	ctx := context.Background()

	v, ok, err := l.GetElementAttribute(ctx, "id=list", "id", 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "list", v)

	_, ok, err = l.GetElementAttribute(ctx, "id=list", "Name", 0)
	require.NoError(t, err)
	assert.False(t, ok)

	parent := d.Element(list)
	els, err := l.GetElementsInElement(ctx, parent, "class=Item", 0)
	require.NoError(t, err)
	assert.Len(t, els, 3)

	values, err := l.GetElementAttributesInElement(ctx, parent, "class=Item", "Name", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "", "c"}, values)

	_, err = l.GetElementsInElement(ctx, nil, "class=Item", 0)
	assert.ErrorIs(t, err, core.ErrElementNotFound)
}

func TestContextScopesLookups(t *testing.T) {
	first := mock.N("row", attrs("id", "row"), mock.N("cell", attrs("id", "cell", "Name", "first")))
	second := mock.N("row", attrs("id", "row"), mock.N("cell", attrs("id", "cell", "Name", "second")))
	d := mock.New(mock.Config{}, first, second)
	l, rec := newLibrary(d)
	ctx := context.Background()

	prev, err := l.SetContext(ctx, "id=row", 1, 0)
	require.NoError(t, err)
	assert.True(t, prev.IsEmpty())
	assert.Equal(t, second.ID, l.GetContext(ctx, scope.ElementOnly).(core.Element).ID())

	v, _, err := l.GetElementAttribute(ctx, "id=cell", "Name", 0)
	require.NoError(t, err)
	assert.Equal(t, "second", v)

	_, err = l.PushContext(ctx, "id=cell", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, l.Scope().Depth())

	f, ok := l.PopContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "id=cell", f.Locator.Text)

	saved := l.ClearContext(ctx)
	assert.Equal(t, 0, l.Scope().Depth())
	l.RestoreContext(ctx, saved)
	assert.Equal(t, 1, l.Scope().Depth())

	_, err = l.SetContext(ctx, "id=row", 5, 0)
	assert.ErrorIs(t, err, core.ErrIndexOutOfRange)
	assert.Equal(t, 0, l.Scope().Depth())
	assert.Equal(t, []string{"set_context"}, rec.keywords)

	_, err = l.SetContext(ctx, "id=row", 3.5, 0)
	assert.ErrorIs(t, err, core.ErrInvalidReference)

	_, err = l.SetContext(ctx, 3.5, nil, 0)
	assert.ErrorIs(t, err, core.ErrInvalidLocator)
}

func tableTree() *mock.Driver {
	row := func(a, b string) *mock.Node {
		return mock.N("row", attrs("class", "ListItem"),
			mock.N("text", attrs("class", "Text", "Name", a)),
			mock.N("text", attrs("class", "Text", "Name", b)))
	}
	return mock.New(mock.Config{},
		mock.N("table", attrs("id", "grid"),
			mock.N("header", attrs("class", "HeaderItem", "Name", "File")),
			mock.N("header", attrs("class", "HeaderItem", "Name", "Size")),
			row("a.txt", "1"),
			row("b.txt", "2")))
}

var gridSpec = TableSpec{
	Table:           "id=grid",
	Header:          "class=HeaderItem",
	HeaderAttribute: "Name",
	Row:             "class=ListItem",
	Cell:            "class=Text",
	CellAttribute:   "Name",
}

func TestTableKeywords(t *testing.T) {
	l, _ := newLibrary(tableTree())
	ctx := context.Background()

	data, err := l.GetTableData(ctx, gridSpec, 0)
	require.NoError(t, err)
	assert.Equal(t, table.Data{{"File", "Size"}, {"a.txt", "1"}, {"b.txt", "2"}}, data)
	row, ok := data.FindRowByValue("File", "b.txt", table.Exact)
	require.True(t, ok)
	assert.Equal(t, []string{"b.txt", "2"}, row)

	headers, err := l.GetTableHeaders(ctx, gridSpec, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"File", "Size"}, headers)

	rows, err := l.GetTableRows(ctx, gridSpec, 0)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a.txt", "1"}, {"b.txt", "2"}}, rows)

	missing := gridSpec
	missing.Table = "id=nope"
	data, err = l.GetTableData(ctx, missing, 0)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestKeywordTable(t *testing.T) {
	d := mock.New(mock.Config{}, mock.N("button", attrs("id", "b", "text", "Go")))
	l, rec := newLibrary(d)
	g := l.Group()
	ctx := context.Background()

	for _, name := range []string{
		"get_context", "set_context", "push_context", "pop_context", "clear_context", "restore_context",
		"element_exists", "elements_exist", "wait_until_visible", "wait_until_not_visible",
		"element_should_be_visible", "element_should_not_be_visible", "first_found_element",
		"get_element", "get_elements", "find_elements", "get_elements_in_element", "get_element_attribute",
		"get_element_attributes_in_element", "get_table_data", "get_table_headers", "get_table_rows",
	} {
		assert.True(t, g.Has(name), name)
	}
	assert.True(t, g.IsExempt("get_context"))
	assert.False(t, g.IsExempt("set_context"))

	v, err := g.Call(ctx, "element_exists", "id=b", "2 seconds")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = g.Call(ctx, "get_element_attribute", "id=b", "text")
	require.NoError(t, err)
	assert.Equal(t, "Go", v)

	v, err = g.Call(ctx, "first_found_element", "id=x", "id=b")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = g.Call(ctx, "get_element", "id=x", nil, "false")
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = g.Call(ctx, "set_context", "id=b")
	require.NoError(t, err)
	v, err = g.Call(ctx, "get_context", "locator")
	require.NoError(t, err)
	assert.Equal(t, "id=b", v.(locator.Locator).Text)

	_, err = g.Call(ctx, "element_exists", "id=b", "-1")
	assert.ErrorIs(t, err, core.ErrInvalidTimeout)
	assert.Equal(t, []string{"element_exists"}, rec.keywords)

	_, err = g.Call(ctx, "get_context", 42)
	assert.Error(t, err)
	assert.Len(t, rec.keywords, 1)

	v, err = g.Call(ctx, "get_table_headers", map[string]interface{}{"table": "id=none"}, "0.3")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestCaptureOnFailure(t *testing.T) {
	d := mock.New(mock.Config{})
	l, _ := newLibrary(d)
	dir := filepath.Join(t.TempDir(), "failures")
	l.UseDefaultDiagnostics(dir)

	_, err := l.GetElement(context.Background(), "id=x", 0, true)
	require.Error(t, err)
	var h *HandledError
	require.True(t, errors.As(err, &h))

	records, err := report.Read(dir)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, h.ID.String(), records[0].ID)
	assert.Equal(t, "get_element", records[0].Keyword)
	assert.Equal(t, core.ErrElementNotFound.Code, records[0].Code)
	assert.Len(t, records[0].Attachments, 2)
	assert.Empty(t, records[0].Problems)
}

type brokenDiagnoser struct{}

func (brokenDiagnoser) Screenshot(ctx context.Context) ([]byte, error) {
	return nil, errors.New("no display")
}

func (brokenDiagnoser) Source(ctx context.Context) (string, error) { return "<a/>", nil }

func TestCaptureOnFailure_NotesProblems(t *testing.T) {
	dir := t.TempDir()
	hook := CaptureOnFailure(brokenDiagnoser{}, dir)
	hook(context.Background(), "get_element", errors.New("plain"))

	records, err := report.Read(dir)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"screenshot: no display"}, records[0].Problems)
	assert.Len(t, records[0].Attachments, 1)
	assert.Equal(t, "Unknown", records[0].Category)
}
