package profiling

import (
	"github.com/ekaya-inc/ekaya-keyscout/pkg/models"
)

// Config holds discovery thresholds. Ratios are in [0,1]; percentages in
// [0,100].
type Config struct {
	// Column prefilter
	UniquenessThreshold float64 // Minimum uniqueness ratio of a candidate column
	NullThreshold       float64 // Maximum null ratio of a candidate column

	// Combination discovery
	StrongColumnThreshold float64 // Uniqueness % that makes a column "strong"
	CombinationThreshold  float64 // Minimum combined uniqueness % to accept a subset
	MaxCombinationSize    int
	MaxCombinations       int // Circuit breaker on accepted subsets
}

// DefaultConfig returns the standard discovery thresholds.
func DefaultConfig() Config {
	return Config{
		UniquenessThreshold:   0.2,
		NullThreshold:         0.5,
		StrongColumnThreshold: 50,
		CombinationThreshold:  30,
		MaxCombinationSize:    3,
		MaxCombinations:       5000,
	}
}

// SelectCandidates returns the names of columns worth combining, in the
// order given: unique enough, not too sparse, and not constant.
func SelectCandidates(metrics []models.ColumnMetric, cfg Config) []string {
	var out []string
	for _, m := range metrics {
		if IsCandidate(m, cfg) {
			out = append(out, m.ColumnName)
		}
	}
	return out
}

// IsCandidate applies the column prefilter to one metric.
func IsCandidate(m models.ColumnMetric, cfg Config) bool {
	if m.Cardinality <= 1 {
		return false
	}
	if m.Uniqueness < cfg.UniquenessThreshold*100 {
		return false
	}
	return float64(m.NullCount) <= cfg.NullThreshold*float64(m.TotalRows)
}
