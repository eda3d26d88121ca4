package storage

import (
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/ingest"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/models"
)

// ValueEncoder converts decimals and timestamps to the parameter form a
// driver expects. Nil funcs keep the default (decimal string, time.Time).
type ValueEncoder struct {
	Decimal   func(decimal.Decimal) any
	Timestamp func(time.Time) any
}

// Value converts a cell to a driver parameter for a column of typ.
func (e ValueEncoder) Value(typ models.ColumnType, c models.Cell) any {
	if c.IsNull() {
		return nil
	}

	switch typ.Kind {
	case models.KindInteger32, models.KindInteger64:
		n, ok := c.Integer()
		if !ok {
			d, isDec := c.Decimal()
			if !isDec {
				return nil
			}
			n = d.IntPart()
		}
		if typ.Kind == models.KindInteger32 {
			return int32(n)
		}
		return n

	case models.KindDecimal:
		d, ok := c.Decimal()
		if !ok {
			n, isInt := c.Integer()
			if !isInt {
				return nil
			}
			d = decimal.NewFromInt(n)
		}
		if e.Decimal != nil {
			return e.Decimal(d)
		}
		return d.String()

	case models.KindTimestamp:
		t, ok := c.Timestamp()
		if !ok {
			return nil
		}
		if e.Timestamp != nil {
			return e.Timestamp(t)
		}
		return t
	}

	return c.String()
}

// Row returns the driver parameters of row i.
func (e ValueEncoder) Row(table *models.Table, i int) []any {
	out := make([]any, len(table.Columns))
	for j, col := range table.Columns {
		out[j] = e.Value(col.Type, col.Cells[i])
	}
	return out
}

// CellFromValue maps a value scanned from a database back to a cell of typ.
func CellFromValue(v any, typ models.ColumnType) models.Cell {
	switch x := v.(type) {
	case nil:
		return models.NullCell()
	case int64:
		return integerCell(x, typ)
	case int32:
		return integerCell(int64(x), typ)
	case int:
		return integerCell(int64(x), typ)
	case int16:
		return integerCell(int64(x), typ)
	case float64:
		if typ.IsInteger() {
			return models.IntegerCell(int64(x))
		}
		if typ.Kind == models.KindDecimal {
			return models.DecimalCell(decimal.NewFromFloat(x).Round(int32(typ.Scale)))
		}
		return models.TextCell(strconv.FormatFloat(x, 'f', -1, 64))
	case decimal.Decimal:
		return models.DecimalCell(x)
	case time.Time:
		return models.TimestampCell(x.UTC())
	case []byte:
		return cellFromString(string(x), typ)
	case string:
		return cellFromString(x, typ)
	case bool:
		return models.TextCell(strconv.FormatBool(x))
	}
	return models.TextCell(fmt.Sprint(v))
}

func integerCell(n int64, typ models.ColumnType) models.Cell {
	if typ.Kind == models.KindDecimal {
		return models.DecimalCell(decimal.NewFromInt(n))
	}
	return models.IntegerCell(n)
}

func cellFromString(s string, typ models.ColumnType) models.Cell {
	if typ.IsText() {
		return models.TextCell(s)
	}
	return ingest.CoerceValue(s, typ)
}

// ColumnTypeFromSchema maps a catalog data type to a ColumnType. Unknown
// types read back as unbounded text.
func ColumnTypeFromSchema(dataType string, length, precision, scale sql.NullInt64) models.ColumnType {
	switch strings.ToLower(strings.TrimSpace(dataType)) {
	case "int", "integer", "int4", "smallint", "int2", "tinyint", "mediumint":
		return models.Integer32Type
	case "bigint", "int8":
		return models.Integer64Type
	case "numeric", "decimal", "money", "smallmoney":
		p := int(precision.Int64)
		if !precision.Valid || p == 0 {
			p = maxSQLServerPrecision
		}
		return models.DecimalType(p, int(scale.Int64))
	case "real", "float", "float4", "float8", "double", "double precision":
		return models.DecimalType(maxSQLServerPrecision, 10)
	case "timestamp", "timestamp without time zone", "timestamp with time zone", "timestamptz",
		"datetime", "datetime2", "smalldatetime", "datetimeoffset", "date":
		return models.TimestampType
	}
	if length.Valid && length.Int64 > 0 {
		return models.TextType(int(length.Int64))
	}
	return models.UnboundedText
}

var declaredTypePattern = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z ]*?)\s*(?:\(\s*(\d+)\s*(?:,\s*(\d+)\s*)?\))?\s*$`)

// ParseDeclaredType parses a declared column type such as "DECIMAL(12,2)"
// or "VARCHAR(40)", as reported by SQLite.
func ParseDeclaredType(decl string) models.ColumnType {
	m := declaredTypePattern.FindStringSubmatch(decl)
	if m == nil {
		return models.UnboundedText
	}

	var first, second sql.NullInt64
	if m[2] != "" {
		n, _ := strconv.ParseInt(m[2], 10, 64)
		first = sql.NullInt64{Int64: n, Valid: true}
	}
	if m[3] != "" {
		n, _ := strconv.ParseInt(m[3], 10, 64)
		second = sql.NullInt64{Int64: n, Valid: true}
	}
	return ColumnTypeFromSchema(m[1], first, first, second)
}
