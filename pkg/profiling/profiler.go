// Package profiling computes per-column statistics and discovers column
// combinations that are unique enough to act as candidate keys.
package profiling

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/models"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/workerpool"
)

// ColumnProfiler computes ColumnMetrics for every column of a table.
// Columns are independent, so they are profiled concurrently on the worker
// pool against the read-only table.
type ColumnProfiler struct {
	pool   *workerpool.Pool
	logger *zap.Logger
}

// NewColumnProfiler creates a profiler that runs on pool.
func NewColumnProfiler(pool *workerpool.Pool, logger *zap.Logger) *ColumnProfiler {
	return &ColumnProfiler{
		pool:   pool,
		logger: logger.Named("column-profiler"),
	}
}

// Profile returns one metric per profiled column, in table column order.
// Columns named in exclude (case-insensitive) are skipped.
func (p *ColumnProfiler) Profile(ctx context.Context, table *models.Table, exclude []string) ([]models.ColumnMetric, error) {
	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		skip[strings.ToLower(strings.TrimSpace(e))] = true
	}

	var items []workerpool.WorkItem[models.ColumnMetric]
	for _, col := range table.Columns {
		if skip[strings.ToLower(col.Name)] {
			continue
		}
		items = append(items, workerpool.WorkItem[models.ColumnMetric]{
			ID: col.Name,
			Execute: func(ctx context.Context) (models.ColumnMetric, error) {
				if err := ctx.Err(); err != nil {
					return models.ColumnMetric{}, err
				}
				return ProfileColumn(table.Name, col), nil
			},
		})
	}

	results := workerpool.Process(ctx, p.pool, items, nil)

	metrics := make([]models.ColumnMetric, len(results))
	for i, r := range results {
		if r.Err != nil {
			return nil, fmt.Errorf("failed to profile column %s: %w", r.ID, r.Err)
		}
		metrics[i] = r.Result
	}

	p.logger.Debug("Profiled columns",
		zap.String("table", table.Name),
		zap.Int("columns", len(metrics)),
		zap.Int("rows", table.RowCount()))

	return metrics, nil
}

// ProfileColumn computes the metric of a single column.
func ProfileColumn(tableName string, col *models.Column) models.ColumnMetric {
	total := len(col.Cells)
	m := models.ColumnMetric{
		TableName:  tableName,
		ColumnName: col.Name,
		DataType:   col.Type.String(),
		TotalRows:  int64(total),
	}

	distinct := make(map[string]struct{})
	var numbers []float64
	var texts []string

	for _, c := range col.Cells {
		if c.IsNull() {
			m.NullCount++
			continue
		}
		distinct[c.String()] = struct{}{}

		if col.Type.IsNumeric() {
			if f, ok := c.Float64(); ok {
				numbers = append(numbers, f)
			}
		}
		if col.Type.IsText() {
			texts = append(texts, c.String())
		}
	}

	m.Cardinality = int64(len(distinct))
	m.Uniqueness = Uniqueness(m.Cardinality, m.TotalRows)

	if col.Type.IsText() {
		m.MaxLength, m.MinLength = lengthRange(texts)
		m.Pattern = DominantPattern(texts)
	}

	if col.Type.IsNumeric() && len(numbers) > 0 {
		mean := Mean(numbers)
		sort.Float64s(numbers)
		p95 := Percentile(numbers, 0.95)
		m.Mean = &mean
		m.P95 = &p95
	}

	return m
}

// Uniqueness returns cardinality as a percentage of total rows, rounded to
// two decimals. Zero rows yield 0.
func Uniqueness(cardinality, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return round2(float64(cardinality) * 100 / float64(total))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Mean returns the arithmetic mean of values, 0 for none.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Percentile returns the q-th quantile of sorted values by linear
// interpolation between the elements around position (n-1)*q.
func Percentile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	pos := float64(n-1) * q
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (pos-float64(lo))*(sorted[hi]-sorted[lo])
}

func lengthRange(values []string) (maxLen, minLen int) {
	if len(values) == 0 {
		return 0, 0
	}
	minLen = math.MaxInt
	for _, v := range values {
		n := utf8.RuneCountInString(v)
		if n > maxLen {
			maxLen = n
		}
		if n < minLen {
			minLen = n
		}
	}
	return maxLen, minLen
}

// DominantPattern tags a set of text values as all digits, all letters or
// mixed. An empty set is mixed.
func DominantPattern(values []string) string {
	if len(values) == 0 {
		return models.PatternMixed
	}
	if allRunes(values, unicode.IsDigit) {
		return models.PatternDigits
	}
	if allRunes(values, unicode.IsLetter) {
		return models.PatternLetters
	}
	return models.PatternMixed
}

func allRunes(values []string, pred func(rune) bool) bool {
	for _, v := range values {
		if v == "" {
			return false
		}
		for _, r := range v {
			if !pred(r) {
				return false
			}
		}
	}
	return true
}
