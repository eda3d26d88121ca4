package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/models"
)

func TestTableNameForFile(t *testing.T) {
	assert.Equal(t, "raw_clientes", TableNameForFile("/data/clientes.txt"))
	assert.Equal(t, "raw_ventas_2024_01", TableNameForFile("ventas 2024-01.csv"))
	assert.Equal(t, "raw_año", TableNameForFile("año.dat"))
	assert.Equal(t, "raw_archive_tar", TableNameForFile("archive.tar.gz"))
}

func TestPipeline_Run(t *testing.T) {
	data := "id,amount,created,name\n" +
		"1,10.50,2024-01-02,alpha\n" +
		"2,NA,2024-01-03,beta\n" +
		"3,7,not a date,\n"
	dataPath := writeFile(t, "ledger.csv", []byte(data))
	schemaPath := writeFile(t, "ledger.json", []byte(`{
		"type": "csv", "header": true,
		"sections": [{"name": "rows", "fields": [
			{"fName": "id"}, {"fName": "amount"}, {"fName": "created"}, {"fName": "name", "fLength": 30}
		]}]
	}`))

	p := NewPipeline(NewReader("utf-8", zap.NewNop()), 2, zap.NewNop())
	tbl, err := p.Run(context.Background(), dataPath, schemaPath)
	require.NoError(t, err)

	assert.Equal(t, "raw_ledger", tbl.Name)
	assert.Equal(t, models.Integer32Type, tbl.Column("id").Type)
	assert.Equal(t, models.DecimalType(4, 2), tbl.Column("amount").Type)
	assert.Equal(t, models.TimestampType, tbl.Column("created").Type)
	assert.Equal(t, models.TextType(30), tbl.Column("name").Type)

	// Values outside the sample that fail to parse become Null
	assert.True(t, tbl.Column("created").Cells[2].IsNull())
	assert.True(t, tbl.Column("amount").Cells[1].IsNull())
	assert.True(t, tbl.Column("name").Cells[2].IsNull())

	amount, ok := tbl.Column("amount").Cells[2].Decimal()
	require.True(t, ok)
	assert.Equal(t, "7", amount.String())
}
