// Package fingerprint derives stable identifiers for column sets and
// column-set pairs. Inputs are normalized first, so casing, surrounding
// whitespace, ordering and duplicates never change the result.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// NormalizeTable trims and upper-cases a table name.
func NormalizeTable(table string) string {
	return strings.ToUpper(strings.TrimSpace(table))
}

// NormalizeColumns trims and upper-cases each column, drops blanks and
// duplicates, and returns the result sorted ordinally.
func NormalizeColumns(columns []string) []string {
	seen := make(map[string]struct{}, len(columns))
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		n := strings.ToUpper(strings.TrimSpace(c))
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// JoinColumns renders normalized columns as a comma-separated list.
func JoinColumns(columns []string) string {
	return strings.Join(NormalizeColumns(columns), ",")
}

// Pair returns the fingerprint of a (tableA, colsA) => (tableB, colsB)
// decision as 64 lowercase hex characters.
func Pair(tableA string, colsA []string, tableB string, colsB []string) string {
	return hash(NormalizeTable(tableA) + "|" + JoinColumns(colsA) +
		"=>" + NormalizeTable(tableB) + "|" + JoinColumns(colsB))
}

// Set returns the fingerprint of a column set within one table.
func Set(table string, cols []string) string {
	return hash(NormalizeTable(table) + "|" + JoinColumns(cols))
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
