package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/models"
)

func TestInferColumnType(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   models.ColumnType
	}{
		{"empty sample", nil, models.UnboundedText},
		{"small integers", []string{"1", "22", "-333", "+4"}, models.Integer32Type},
		{"nine digits stay 32-bit", []string{"123456789"}, models.Integer32Type},
		{"ten digits", []string{"1", "1234567890"}, models.Integer64Type},
		{"sign not counted", []string{"-123456789"}, models.Integer32Type},
		{"eighteen digits", []string{"123456789012345678"}, models.Integer64Type},
		{"nineteen digits", []string{"1234567890123456789"}, models.DecimalType(19, 0)},
		{"decimals", []string{"1.5", "22.25", "-3"}, models.DecimalType(4, 2)},
		{"grouped decimals", []string{"1,234.5", "12.75"}, models.DecimalType(6, 2)},
		{"grouped integer is decimal", []string{"1,234"}, models.DecimalType(4, 0)},
		{"leading point", []string{".5"}, models.DecimalType(1, 1)},
		{"iso dates", []string{"2024-01-02", "2023-12-31"}, models.TimestampType},
		{"mixed timestamp layouts", []string{"2024-01-02T10:00:00Z", "2024-01-02 10:00:00", "01/31/2024"}, models.TimestampType},
		{"text", []string{"abc", "héllo"}, models.TextType(5)},
		{"mixed numbers and text", []string{"1", "x"}, models.TextType(1)},
		{"bad grouping is text", []string{"1,23"}, models.TextType(4)},
		{"long text unbounded", []string{strings.Repeat("a", 4001)}, models.UnboundedText},
		{"text at limit", []string{strings.Repeat("a", 4000)}, models.TextType(4000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InferColumnType(tt.values))
		})
	}
}

func TestSampleColumn_SkipsNullTokensAndLimitsRows(t *testing.T) {
	col := &models.Column{Name: "c"}
	for _, v := range []string{"", "NA", " 1 ", "null", "n/a", "2", "3"} {
		col.Cells = append(col.Cells, models.TextCell(v))
	}
	col.Cells = append(col.Cells, models.NullCell())

	assert.Equal(t, []string{"1", "2"}, SampleColumn(col, 6))
	assert.Equal(t, []string{"1", "2", "3"}, SampleColumn(col, 0))
}

func TestInferTypes_OnlyUsesSample(t *testing.T) {
	tbl := models.NewTable("raw_t", []string{"n"})
	for i := 0; i < 100; i++ {
		tbl.AppendRow([]models.Cell{models.TextCell("7")})
	}
	tbl.AppendRow([]models.Cell{models.TextCell("not a number")})

	InferTypes(tbl, 100)

	assert.Equal(t, models.Integer32Type, tbl.Columns[0].Type)
}

func TestIsNullToken(t *testing.T) {
	for _, v := range []string{"", "   ", "NA", "na", " N/A ", "NULL", "Null"} {
		assert.True(t, IsNullToken(v), v)
	}
	for _, v := range []string{"0", "NAN", "none", "-"} {
		assert.False(t, IsNullToken(v), v)
	}
}

func TestParseTimestamp(t *testing.T) {
	ts, ok := ParseTimestamp("2024-03-01 08:15:30")
	assert.True(t, ok)
	assert.Equal(t, 2024, ts.Year())
	assert.Equal(t, 30, ts.Second())

	_, ok = ParseTimestamp("31/01/2024")
	assert.False(t, ok)
}
