package storage

import (
	"database/sql"
	"fmt"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/models"
)

// ScanRows appends every row of rows to table, converting each value to its
// column's type. Used by the database/sql backends.
func ScanRows(rows *sql.Rows, table *models.Table) error {
	n := len(table.Columns)
	values := make([]any, n)
	ptrs := make([]any, n)
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("failed to scan row %d: %w", table.RowCount()+1, err)
		}
		cells := make([]models.Cell, n)
		for i, col := range table.Columns {
			cells[i] = CellFromValue(values[i], col.Type)
		}
		table.AppendRow(cells)
	}
	return rows.Err()
}

// ColumnInfo is a column as reported by a backend's catalog.
type ColumnInfo struct {
	Name string
	Type models.ColumnType
}

// NewTableFromColumns builds an empty typed table.
func NewTableFromColumns(name string, cols []ColumnInfo) *models.Table {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	table := models.NewTable(name, names)
	for i, c := range cols {
		table.Columns[i].Type = c.Type
	}
	return table
}

// ColumnNames returns the names of cols in order.
func ColumnNames(cols []ColumnInfo) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}
