package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/models"
)

// DefaultSampleRows is how many leading rows feed type inference.
const DefaultSampleRows = 100

// Digit limits of the integer types. A value with more digits is promoted.
const (
	maxInteger32Digits = 9
	maxInteger64Digits = 18
)

var (
	integerPattern = regexp.MustCompile(`^[+-]?\d+$`)
	decimalPattern = regexp.MustCompile(`^[+-]?(\d{1,3}(,\d{3})+|\d+)?(\.\d+)?$`)
)

// timestampLayouts are tried in order; all parse in UTC unless the value
// carries a zone.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05Z07:00",
	"01/02/2006",
	"01/02/2006 15:04",
	"01/02/2006 15:04:05",
	"2006/01/02",
	"2006/01/02 15:04:05",
	"02-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// IsNullToken reports whether a raw value stands for a missing value:
// empty, whitespace only, NA, N/A or NULL in any case.
func IsNullToken(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return true
	}
	switch strings.ToUpper(v) {
	case "NA", "N/A", "NULL":
		return true
	}
	return false
}

// digitCount returns the number of digits in an integer literal, sign excluded.
func digitCount(v string) int {
	v = strings.TrimLeft(v, "+-")
	return len(v)
}

// ParseInteger parses a base-10 integer with an optional sign.
func ParseInteger(v string) (int64, bool) {
	v = strings.TrimSpace(v)
	if !integerPattern.MatchString(v) {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// splitDecimal validates v as a decimal literal and returns its integer and
// fraction digits with grouping separators removed.
func splitDecimal(v string) (intPart, fracPart string, ok bool) {
	v = strings.TrimSpace(v)
	if !decimalPattern.MatchString(v) {
		return "", "", false
	}
	unsigned := strings.TrimLeft(v, "+-")
	intPart, fracPart, _ = strings.Cut(unsigned, ".")
	intPart = strings.ReplaceAll(intPart, ",", "")
	if intPart == "" && fracPart == "" {
		return "", "", false
	}
	return intPart, fracPart, true
}

// ParseDecimal parses a decimal literal with an optional sign, point and
// comma thousands grouping.
func ParseDecimal(v string) (decimal.Decimal, bool) {
	if _, _, ok := splitDecimal(v); !ok {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(v), ",", ""))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// ParseTimestamp parses v against the supported invariant layouts.
func ParseTimestamp(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// InferColumnType classifies a column from its sampled non-empty values.
// Each rule must hold for every value; the first rule that does wins.
func InferColumnType(values []string) models.ColumnType {
	if len(values) == 0 {
		return models.UnboundedText
	}

	if t, ok := inferInteger(values); ok {
		return t
	}
	if t, ok := inferDecimal(values); ok {
		return t
	}
	if allTimestamps(values) {
		return models.TimestampType
	}

	maxLen := 0
	for _, v := range values {
		if n := utf8.RuneCountInString(v); n > maxLen {
			maxLen = n
		}
	}
	return models.TextType(maxLen)
}

func inferInteger(values []string) (models.ColumnType, bool) {
	maxDigits := 0
	for _, v := range values {
		v = strings.TrimSpace(v)
		if !integerPattern.MatchString(v) {
			return models.ColumnType{}, false
		}
		if d := digitCount(v); d > maxDigits {
			maxDigits = d
		}
	}
	return integerTypeForDigits(maxDigits), true
}

// integerTypeForDigits picks the narrowest exact type holding maxDigits.
func integerTypeForDigits(maxDigits int) models.ColumnType {
	switch {
	case maxDigits <= maxInteger32Digits:
		return models.Integer32Type
	case maxDigits <= maxInteger64Digits:
		return models.Integer64Type
	default:
		return models.DecimalType(maxDigits, 0)
	}
}

func inferDecimal(values []string) (models.ColumnType, bool) {
	maxInt, maxFrac := 0, 0
	for _, v := range values {
		intPart, fracPart, ok := splitDecimal(v)
		if !ok {
			return models.ColumnType{}, false
		}
		if len(intPart) > maxInt {
			maxInt = len(intPart)
		}
		if len(fracPart) > maxFrac {
			maxFrac = len(fracPart)
		}
	}
	return models.DecimalType(maxInt+maxFrac, maxFrac), true
}

func allTimestamps(values []string) bool {
	for _, v := range values {
		if _, ok := ParseTimestamp(v); !ok {
			return false
		}
	}
	return true
}

// SampleColumn returns the non-null raw values of the first sampleRows rows.
func SampleColumn(col *models.Column, sampleRows int) []string {
	n := len(col.Cells)
	if sampleRows > 0 && sampleRows < n {
		n = sampleRows
	}
	values := make([]string, 0, n)
	for _, c := range col.Cells[:n] {
		s, ok := c.Text()
		if !ok || IsNullToken(s) {
			continue
		}
		values = append(values, strings.TrimSpace(s))
	}
	return values
}

// InferTypes assigns an inferred type to every column of a raw text table.
func InferTypes(table *models.Table, sampleRows int) {
	if sampleRows < 1 {
		sampleRows = DefaultSampleRows
	}
	for _, col := range table.Columns {
		col.Type = InferColumnType(SampleColumn(col, sampleRows))
	}
}
