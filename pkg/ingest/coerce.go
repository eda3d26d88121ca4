package ingest

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/models"
)

// CoerceTable converts the raw Text cells of every column to the column's
// type, in place. Null tokens and values that fail to parse become Null;
// coercion never fails. Cells that are already typed are left untouched,
// so running it twice is harmless.
func CoerceTable(table *models.Table) {
	for _, col := range table.Columns {
		CoerceColumn(col)
	}
}

// CoerceColumn converts one column in place.
func CoerceColumn(col *models.Column) {
	for i, cell := range col.Cells {
		raw, ok := cell.Text()
		if !ok {
			continue
		}
		col.Cells[i] = CoerceValue(raw, col.Type)
	}
}

// CoerceValue converts a single raw value to typ.
//
// Text values pass through unchanged; only blank text becomes Null.
// Integer literals too large for int64 in an integer column are kept as
// exact decimals so the width pass can promote the column instead of
// losing the value.
func CoerceValue(raw string, typ models.ColumnType) models.Cell {
	if typ.IsText() {
		// Blank text is stored as Null, so the profiler's null count for a
		// text column includes blank cells. Null tokens such as "NA" stay text.
		if strings.TrimSpace(raw) == "" {
			return models.NullCell()
		}
		return models.TextCell(raw)
	}
	if IsNullToken(raw) {
		return models.NullCell()
	}

	switch typ.Kind {
	case models.KindInteger32, models.KindInteger64:
		if n, ok := ParseInteger(raw); ok {
			return models.IntegerCell(n)
		}
		v := strings.TrimSpace(raw)
		if integerPattern.MatchString(v) {
			if d, err := decimal.NewFromString(v); err == nil {
				return models.DecimalCell(d)
			}
		}
		return models.NullCell()
	case models.KindDecimal:
		if d, ok := ParseDecimal(raw); ok {
			return models.DecimalCell(d)
		}
		return models.NullCell()
	case models.KindTimestamp:
		if t, ok := ParseTimestamp(raw); ok {
			return models.TimestampCell(t)
		}
		return models.NullCell()
	default:
		return models.NullCell()
	}
}
