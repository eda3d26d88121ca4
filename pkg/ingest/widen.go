package ingest

import (
	"strconv"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/models"
)

// AdjustWidths runs after coercion over every row of every column.
// Text columns are sized to the widest value seen or the declared field
// length, whichever is larger. Integer columns are promoted, never narrowed,
// when a value has more digits than the current type holds. Decimal columns
// grow to the widest integer part and the longest fraction seen.
func AdjustWidths(table *models.Table) {
	for _, col := range table.Columns {
		AdjustColumnWidth(col)
	}
}

// AdjustColumnWidth applies the width pass to a single column.
func AdjustColumnWidth(col *models.Column) {
	switch {
	case col.Type.IsText():
		col.Type = widenText(col)
	case col.Type.IsInteger():
		col.Type = widenInteger(col)
	case col.Type.Kind == models.KindDecimal:
		col.Type = widenDecimal(col)
	}
}

func widenText(col *models.Column) models.ColumnType {
	width := col.DeclaredLength
	for _, c := range col.Cells {
		if s, ok := c.Text(); ok {
			if n := utf8.RuneCountInString(s); n > width {
				width = n
			}
		}
	}
	return models.TextType(width)
}

func widenInteger(col *models.Column) models.ColumnType {
	maxDigits := 0
	for _, c := range col.Cells {
		var d int
		if n, ok := c.Integer(); ok {
			d = digitCount(strconv.FormatInt(n, 10))
		} else if dec, ok := c.Decimal(); ok && dec.IsInteger() {
			// Out-of-range literal kept by the coercer.
			d = digitCount(dec.String())
		} else {
			continue
		}
		if d > maxDigits {
			maxDigits = d
		}
	}

	widened := integerTypeForDigits(maxDigits)
	if widerType(widened, col.Type) {
		return widened
	}
	return col.Type
}

func widenDecimal(col *models.Column) models.ColumnType {
	intDigits := col.Type.Precision - col.Type.Scale
	scale := col.Type.Scale
	for _, c := range col.Cells {
		var d decimal.Decimal
		if dec, ok := c.Decimal(); ok {
			d = dec
		} else if n, ok := c.Integer(); ok {
			d = decimal.NewFromInt(n)
		} else {
			continue
		}
		if exp := d.Exponent(); exp < 0 && int(-exp) > scale {
			scale = int(-exp)
		}
		if whole := d.Abs().Truncate(0); !whole.IsZero() {
			if n := len(whole.String()); n > intDigits {
				intDigits = n
			}
		}
	}

	widened := models.DecimalType(intDigits+scale, scale)
	if widened.Precision > col.Type.Precision || widened.Scale > col.Type.Scale {
		return widened
	}
	return col.Type
}

// widerType reports whether a holds strictly more integer digits than b.
func widerType(a, b models.ColumnType) bool {
	return integerRank(a) > integerRank(b)
}

func integerRank(t models.ColumnType) int {
	switch t.Kind {
	case models.KindInteger32:
		return maxInteger32Digits
	case models.KindInteger64:
		return maxInteger64Digits
	case models.KindDecimal:
		return t.Precision - t.Scale
	default:
		return 0
	}
}
