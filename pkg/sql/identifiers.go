package sql

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/apperrors"
)

// Dialect selects identifier quoting rules.
type Dialect string

const (
	DialectPostgres  Dialect = "postgres"
	DialectSQLServer Dialect = "sqlserver"
	DialectSQLite    Dialect = "sqlite"
)

// maxIdentifierLength is the shortest identifier limit of the supported
// dialects (PostgreSQL truncates at 63 bytes).
const maxIdentifierLength = 63

var (
	// ErrInvalidIdentifier indicates a table or column name that cannot be used safely.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	identifierPattern = regexp.MustCompile(`^[\p{L}_][\p{L}\p{N}_]*$`)
)

// ValidateIdentifier checks a single (unqualified) table or column name.
// Names must start with a letter or underscore, contain only letters, digits
// and underscores, and must not look like an injection attempt.
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidIdentifier)
	}
	if len(name) > maxIdentifierLength {
		return fmt.Errorf("%w: %q exceeds %d bytes", ErrInvalidIdentifier, name, maxIdentifierLength)
	}
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	if res := CheckForInjection(name); res != nil {
		return fmt.Errorf("%w: %q matches injection pattern %s", ErrInvalidIdentifier, name, res.Fingerprint)
	}
	return nil
}

// SplitQualified splits "schema.table" into its parts. An unqualified name
// returns an empty schema.
func SplitQualified(name string) (schema, table string) {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// QuoteIdentifier validates and quotes a possibly schema-qualified name for
// the dialect.
func QuoteIdentifier(d Dialect, name string) (string, error) {
	schema, table := SplitQualified(strings.TrimSpace(name))
	parts := []string{table}
	if schema != "" {
		parts = []string{schema, table}
	}

	quoted := make([]string, len(parts))
	for i, p := range parts {
		if err := ValidateIdentifier(p); err != nil {
			return "", fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
		}
		quoted[i] = quote(d, p)
	}
	return strings.Join(quoted, "."), nil
}

// MustQuote quotes a name already known to be valid, such as a column of a
// table that passed ValidateTable.
func MustQuote(d Dialect, name string) string {
	return quote(d, name)
}

// ValidateTable checks a table name and all of its column names.
func ValidateTable(tableName string, columns []string) error {
	if _, err := QuoteIdentifier(DialectPostgres, tableName); err != nil {
		return err
	}
	for _, c := range columns {
		if err := ValidateIdentifier(c); err != nil {
			return fmt.Errorf("%w: column: %v", apperrors.ErrInvalidInput, err)
		}
	}
	return nil
}

func quote(d Dialect, name string) string {
	switch d {
	case DialectSQLServer:
		return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}
