package storage

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/models"
	sqlpkg "github.com/ekaya-inc/ekaya-keyscout/pkg/sql"
)

// maxSQLServerPrecision is the largest decimal precision SQL Server accepts.
const maxSQLServerPrecision = 38

// SQLType returns the column type used to store typ in dialect d.
func SQLType(d sqlpkg.Dialect, typ models.ColumnType) string {
	switch d {
	case sqlpkg.DialectSQLServer:
		switch typ.Kind {
		case models.KindInteger32:
			return "int"
		case models.KindInteger64:
			return "bigint"
		case models.KindDecimal:
			if typ.Precision > maxSQLServerPrecision {
				return "nvarchar(max)"
			}
			return fmt.Sprintf("decimal(%d,%d)", typ.Precision, typ.Scale)
		case models.KindTimestamp:
			return "datetime2"
		}
		if typ.Length > 0 {
			return fmt.Sprintf("nvarchar(%d)", typ.Length)
		}
		return "nvarchar(max)"

	case sqlpkg.DialectSQLite:
		switch typ.Kind {
		case models.KindInteger32:
			return "INT"
		case models.KindInteger64:
			return "BIGINT"
		case models.KindDecimal:
			return fmt.Sprintf("DECIMAL(%d,%d)", typ.Precision, typ.Scale)
		case models.KindTimestamp:
			return "TIMESTAMP"
		}
		if typ.Length > 0 {
			return fmt.Sprintf("VARCHAR(%d)", typ.Length)
		}
		return "TEXT"

	default:
		switch typ.Kind {
		case models.KindInteger32:
			return "integer"
		case models.KindInteger64:
			return "bigint"
		case models.KindDecimal:
			return fmt.Sprintf("numeric(%d,%d)", typ.Precision, typ.Scale)
		case models.KindTimestamp:
			return "timestamp"
		}
		if typ.Length > 0 {
			return fmt.Sprintf("varchar(%d)", typ.Length)
		}
		return "text"
	}
}

func surrogateKeyDDL(d sqlpkg.Dialect) string {
	col := sqlpkg.MustQuote(d, SurrogateKeyColumn)
	switch d {
	case sqlpkg.DialectSQLServer:
		return col + " bigint IDENTITY(1,1) PRIMARY KEY"
	case sqlpkg.DialectSQLite:
		return col + " INTEGER PRIMARY KEY AUTOINCREMENT"
	default:
		return col + " bigint GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY"
	}
}

// HasDataColumn reports whether the table carries its own column named like
// the surrogate key, in which case no surrogate is added.
func HasDataColumn(table *models.Table, name string) bool {
	return table.Column(name) != nil
}

// ReplaceTableStatements validates the table's identifiers and returns the
// DROP and CREATE statements that replace it.
func ReplaceTableStatements(d sqlpkg.Dialect, table *models.Table) ([]string, error) {
	names := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		names[i] = c.Name
	}
	if err := sqlpkg.ValidateTable(table.Name, names); err != nil {
		return nil, err
	}
	if len(table.Columns) == 0 {
		return nil, fmt.Errorf("table %s has no columns", table.Name)
	}

	quoted, err := sqlpkg.QuoteIdentifier(d, table.Name)
	if err != nil {
		return nil, err
	}

	defs := make([]string, 0, len(table.Columns)+1)
	if !HasDataColumn(table, SurrogateKeyColumn) {
		defs = append(defs, surrogateKeyDDL(d))
	}
	for _, c := range table.Columns {
		defs = append(defs, sqlpkg.MustQuote(d, c.Name)+" "+SQLType(d, c.Type)+" NULL")
	}

	return []string{
		"DROP TABLE IF EXISTS " + quoted,
		"CREATE TABLE " + quoted + " (\n\t" + strings.Join(defs, ",\n\t") + "\n)",
	}, nil
}

// SelectStatement builds the read query for ReadTable.
func SelectStatement(d sqlpkg.Dialect, table string, columns []string, maxRows int) (string, error) {
	quoted, err := sqlpkg.QuoteIdentifier(d, table)
	if err != nil {
		return "", err
	}
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = sqlpkg.MustQuote(d, c)
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	if d == sqlpkg.DialectSQLServer && maxRows > 0 {
		fmt.Fprintf(&b, "TOP (%d) ", maxRows)
	}
	b.WriteString(strings.Join(cols, ", "))
	b.WriteString(" FROM ")
	b.WriteString(quoted)
	for _, c := range columns {
		if strings.EqualFold(c, SurrogateKeyColumn) {
			b.WriteString(" ORDER BY " + sqlpkg.MustQuote(d, c))
			break
		}
	}
	if d != sqlpkg.DialectSQLServer && maxRows > 0 {
		fmt.Fprintf(&b, " LIMIT %d", maxRows)
	}
	return b.String(), nil
}
