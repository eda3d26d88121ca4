package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MaxBoundedTextLength is the widest text column declared with an explicit
// length. Anything wider is stored as unbounded text.
const MaxBoundedTextLength = 4000

// ColumnKind is the physical storage class of a column.
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindInteger32
	KindInteger64
	KindDecimal
	KindTimestamp
)

// ColumnType is the inferred physical type of a column.
// Precision and Scale apply to KindDecimal; Length applies to KindText,
// where 0 means unbounded.
type ColumnType struct {
	Kind      ColumnKind
	Precision int
	Scale     int
	Length    int
}

var (
	Integer32Type = ColumnType{Kind: KindInteger32}
	Integer64Type = ColumnType{Kind: KindInteger64}
	TimestampType = ColumnType{Kind: KindTimestamp}
	UnboundedText = ColumnType{Kind: KindText}
)

// TextType returns a text type of the given length. Lengths outside
// [1, MaxBoundedTextLength] yield unbounded text.
func TextType(length int) ColumnType {
	if length < 1 || length > MaxBoundedTextLength {
		return UnboundedText
	}
	return ColumnType{Kind: KindText, Length: length}
}

// DecimalType returns an exact numeric type. Precision is raised to at least
// 1 and never below scale.
func DecimalType(precision, scale int) ColumnType {
	if scale < 0 {
		scale = 0
	}
	if precision < scale {
		precision = scale
	}
	if precision < 1 {
		precision = 1
	}
	return ColumnType{Kind: KindDecimal, Precision: precision, Scale: scale}
}

func (t ColumnType) IsText() bool { return t.Kind == KindText }

func (t ColumnType) IsInteger() bool {
	return t.Kind == KindInteger32 || t.Kind == KindInteger64
}

// IsNumeric reports whether mean and percentile statistics apply.
func (t ColumnType) IsNumeric() bool {
	return t.IsInteger() || t.Kind == KindDecimal
}

// String renders the stable type tag persisted with column metrics.
func (t ColumnType) String() string {
	switch t.Kind {
	case KindInteger32:
		return "Integer32"
	case KindInteger64:
		return "Integer64"
	case KindDecimal:
		return fmt.Sprintf("Decimal(%d,%d)", t.Precision, t.Scale)
	case KindTimestamp:
		return "Timestamp"
	default:
		if t.Length == 0 {
			return "Text(unbounded)"
		}
		return fmt.Sprintf("Text(%d)", t.Length)
	}
}

var (
	decimalTagPattern = regexp.MustCompile(`^Decimal\((\d+),(\d+)\)$`)
	textTagPattern    = regexp.MustCompile(`^Text\((\d+|unbounded)\)$`)
)

// ParseColumnType parses a tag produced by ColumnType.String.
func ParseColumnType(tag string) (ColumnType, error) {
	tag = strings.TrimSpace(tag)
	switch tag {
	case "Integer32":
		return Integer32Type, nil
	case "Integer64":
		return Integer64Type, nil
	case "Timestamp":
		return TimestampType, nil
	}
	if m := decimalTagPattern.FindStringSubmatch(tag); m != nil {
		p, _ := strconv.Atoi(m[1])
		s, _ := strconv.Atoi(m[2])
		return DecimalType(p, s), nil
	}
	if m := textTagPattern.FindStringSubmatch(tag); m != nil {
		if m[1] == "unbounded" {
			return UnboundedText, nil
		}
		n, _ := strconv.Atoi(m[1])
		return TextType(n), nil
	}
	return ColumnType{}, fmt.Errorf("unknown column type tag %q", tag)
}

// CellKind discriminates the Cell union.
type CellKind uint8

const (
	CellNull CellKind = iota
	CellInteger
	CellDecimal
	CellTimestamp
	CellText
)

// Cell is a single table value. The zero value is Null.
type Cell struct {
	kind CellKind
	i    int64
	d    decimal.Decimal
	t    time.Time
	s    string
}

func NullCell() Cell                            { return Cell{} }
func IntegerCell(v int64) Cell                  { return Cell{kind: CellInteger, i: v} }
func DecimalCell(v decimal.Decimal) Cell        { return Cell{kind: CellDecimal, d: v} }
func TimestampCell(v time.Time) Cell            { return Cell{kind: CellTimestamp, t: v} }
func TextCell(v string) Cell                    { return Cell{kind: CellText, s: v} }
func (c Cell) Kind() CellKind                   { return c.kind }
func (c Cell) IsNull() bool                     { return c.kind == CellNull }
func (c Cell) Integer() (int64, bool)           { return c.i, c.kind == CellInteger }
func (c Cell) Decimal() (decimal.Decimal, bool) { return c.d, c.kind == CellDecimal }
func (c Cell) Timestamp() (time.Time, bool)     { return c.t, c.kind == CellTimestamp }
func (c Cell) Text() (string, bool)             { return c.s, c.kind == CellText }

// Float64 returns the numeric value of integer and decimal cells.
func (c Cell) Float64() (float64, bool) {
	switch c.kind {
	case CellInteger:
		return float64(c.i), true
	case CellDecimal:
		f, _ := c.d.Float64()
		return f, true
	default:
		return 0, false
	}
}

// String returns the canonical text form used for distinct counting and
// combination keys. Null renders as the empty string.
func (c Cell) String() string {
	switch c.kind {
	case CellInteger:
		return strconv.FormatInt(c.i, 10)
	case CellDecimal:
		return c.d.String()
	case CellTimestamp:
		return c.t.Format(time.RFC3339Nano)
	case CellText:
		return c.s
	default:
		return ""
	}
}

// Column is one named, typed column of a Table.
type Column struct {
	Name string
	Type ColumnType
	// DeclaredLength is the field width from the file schema, 0 if none.
	DeclaredLength int
	Cells          []Cell
}

// NullCount returns the number of null cells.
func (c *Column) NullCount() int {
	n := 0
	for _, cell := range c.Cells {
		if cell.IsNull() {
			n++
		}
	}
	return n
}

// Table is a column-oriented in-memory table. All columns hold the same
// number of cells.
type Table struct {
	Name    string
	Columns []*Column
}

// NewTable creates an empty table with untyped text columns.
func NewTable(name string, columnNames []string) *Table {
	t := &Table{Name: name}
	for _, n := range columnNames {
		t.Columns = append(t.Columns, &Column{Name: n, Type: UnboundedText})
	}
	return t
}

// RowCount returns the number of rows.
func (t *Table) RowCount() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Cells)
}

// Column returns the column with the given name, matched case-insensitively.
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// ColumnIndex returns the position of the named column or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// AppendRow appends one row. Missing trailing values are filled with Null.
func (t *Table) AppendRow(cells []Cell) {
	for i, c := range t.Columns {
		if i < len(cells) {
			c.Cells = append(c.Cells, cells[i])
		} else {
			c.Cells = append(c.Cells, NullCell())
		}
	}
}

// Row returns the cells of row i in column order.
func (t *Table) Row(i int) []Cell {
	row := make([]Cell, len(t.Columns))
	for j, c := range t.Columns {
		row[j] = c.Cells[i]
	}
	return row
}
