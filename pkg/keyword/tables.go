package keyword

import (
	"context"
	"time"

	"github.com/devicelab-dev/uiscope/pkg/table"
)

// TableSpec describes how a table is laid out in the element tree.
// Header, Row and Cell locators are resolved relative to the table and
// row elements respectively.
type TableSpec struct {
	Table           string `yaml:"table"`
	Header          string `yaml:"header"`
	HeaderAttribute string `yaml:"headerAttribute"`
	Row             string `yaml:"row"`
	Cell            string `yaml:"cell"`
	CellAttribute   string `yaml:"cellAttribute"`
}

// GetTableData reads headers and rows. Row 0 holds the headers. The
// result is empty when the table or its headers are not found.
func (l *Library) GetTableData(ctx context.Context, spec TableSpec, timeout time.Duration) (table.Data, error) {
	return Run(ctx, l.group, "get_table_data", func() (table.Data, error) {
		return l.tableData(ctx, spec, timeout)
	})
}

func (l *Library) tableData(ctx context.Context, spec TableSpec, timeout time.Duration) (table.Data, error) {
	headers, err := l.tableHeaders(ctx, spec, timeout)
	if err != nil || len(headers) == 0 {
		return table.Data{}, err
	}
	rows, err := l.tableRows(ctx, spec, timeout)
	if err != nil {
		return table.Data{}, err
	}
	return append(table.Data{headers}, rows...), nil
}

// GetTableHeaders reads the header values only.
func (l *Library) GetTableHeaders(ctx context.Context, spec TableSpec, timeout time.Duration) ([]string, error) {
	return Run(ctx, l.group, "get_table_headers", func() ([]string, error) {
		return l.tableHeaders(ctx, spec, timeout)
	})
}

// GetTableRows reads the data rows only.
func (l *Library) GetTableRows(ctx context.Context, spec TableSpec, timeout time.Duration) ([][]string, error) {
	return Run(ctx, l.group, "get_table_rows", func() ([][]string, error) {
		return l.tableRows(ctx, spec, timeout)
	})
}

func (l *Library) tableHeaders(ctx context.Context, spec TableSpec, timeout time.Duration) ([]string, error) {
	el, err := l.getElement(ctx, spec.Table, timeout, false)
	if err != nil || el == nil {
		return []string{}, err
	}
	return l.attributesIn(ctx, el, spec.Header, spec.HeaderAttribute, timeout)
}

func (l *Library) tableRows(ctx context.Context, spec TableSpec, timeout time.Duration) ([][]string, error) {
	el, err := l.getElement(ctx, spec.Table, timeout, false)
	if err != nil || el == nil {
		return [][]string{}, err
	}
	rowEls, err := l.elementsIn(ctx, el, spec.Row, timeout)
	if err != nil {
		return nil, err
	}
	rows := make([][]string, 0, len(rowEls))
	for _, r := range rowEls {
		cells, err := l.attributesIn(ctx, r, spec.Cell, spec.CellAttribute, timeout)
		if err != nil {
			return nil, err
		}
		rows = append(rows, cells)
	}
	return rows, nil
}
