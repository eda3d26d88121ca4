package ingest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/models"
)

func TestCoerceValue_NullTokens(t *testing.T) {
	typed := []models.ColumnType{
		models.Integer32Type,
		models.Integer64Type,
		models.DecimalType(10, 2),
		models.TimestampType,
	}
	for _, typ := range typed {
		for _, raw := range []string{"", "  ", "NA", "n/a", "Null"} {
			assert.True(t, CoerceValue(raw, typ).IsNull(), "%q as %s", raw, typ)
		}
	}
}

func TestCoerceValue_ParseFailureIsNull(t *testing.T) {
	assert.True(t, CoerceValue("abc", models.Integer32Type).IsNull())
	assert.True(t, CoerceValue("1.2.3", models.DecimalType(5, 2)).IsNull())
	assert.True(t, CoerceValue("yesterday", models.TimestampType).IsNull())
}

func TestCoerceValue_Typed(t *testing.T) {
	n, ok := CoerceValue(" -42 ", models.Integer32Type).Integer()
	require.True(t, ok)
	assert.Equal(t, int64(-42), n)

	d, ok := CoerceValue("1,234.50", models.DecimalType(6, 2)).Decimal()
	require.True(t, ok)
	assert.True(t, d.Equal(decimal.RequireFromString("1234.5")))

	ts, ok := CoerceValue("2024-02-29", models.TimestampType).Timestamp()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), ts)
}

func TestCoerceValue_IntegerOverflowKeptAsDecimal(t *testing.T) {
	cell := CoerceValue("99999999999999999999", models.Integer64Type)

	d, ok := cell.Decimal()
	require.True(t, ok)
	assert.Equal(t, "99999999999999999999", d.String())
}

func TestCoerceValue_TextPassthrough(t *testing.T) {
	s, ok := CoerceValue("NA", models.TextType(2)).Text()
	require.True(t, ok)
	assert.Equal(t, "NA", s)

	assert.True(t, CoerceValue("   ", models.UnboundedText).IsNull())
}

func TestCoerceTable_Idempotent(t *testing.T) {
	tbl := models.NewTable("raw_t", []string{"n", "s"})
	tbl.Columns[0].Type = models.Integer32Type
	tbl.Columns[1].Type = models.TextType(3)
	tbl.AppendRow([]models.Cell{models.TextCell("1"), models.TextCell("abc")})
	tbl.AppendRow([]models.Cell{models.TextCell("NA"), models.TextCell("")})
	tbl.AppendRow([]models.Cell{models.NullCell(), models.TextCell("x")})

	CoerceTable(tbl)
	first := [][]models.Cell{tbl.Row(0), tbl.Row(1), tbl.Row(2)}

	CoerceTable(tbl)
	second := [][]models.Cell{tbl.Row(0), tbl.Row(1), tbl.Row(2)}

	assert.Equal(t, first, second)
	n, _ := tbl.Columns[0].Cells[0].Integer()
	assert.Equal(t, int64(1), n)
	assert.True(t, tbl.Columns[0].Cells[1].IsNull())
	assert.True(t, tbl.Columns[1].Cells[1].IsNull())
}
