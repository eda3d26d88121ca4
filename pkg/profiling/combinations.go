package profiling

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/fingerprint"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/models"
)

// scanCheckEvery is how many rows are hashed between cancellation checks.
const scanCheckEvery = 4096

// keySeparator joins member values into a combined row key.
const keySeparator = "|"

// DiscoveryResult is the outcome of one discovery pass.
type DiscoveryResult struct {
	Combinations []models.CombinationMetric
	Scanned      int // Subsets whose rows were hashed
	Pruned       int // Subsets skipped by the strong column rule
	Accepted     int
	// Truncated reports that the circuit breaker stopped enumeration with
	// subsets left untested.
	Truncated bool
}

// CombinationDiscoverer enumerates column subsets of a table and keeps those
// whose combined values are unique enough to be a key.
//
// Enumeration is sequential so the accepted count can never overshoot
// MaxCombinations.
type CombinationDiscoverer struct {
	cfg    Config
	logger *zap.Logger
}

// NewCombinationDiscoverer creates a discoverer.
func NewCombinationDiscoverer(cfg Config, logger *zap.Logger) *CombinationDiscoverer {
	if cfg.MaxCombinationSize < 1 {
		cfg.MaxCombinationSize = 1
	}
	return &CombinationDiscoverer{
		cfg:    cfg,
		logger: logger.Named("combination-discoverer"),
	}
}

// Discover scores subsets of candidates (sizes 1..MaxCombinationSize, in
// lexicographic index order). metrics supplies each candidate's standalone
// uniqueness for the strong column rule.
func (d *CombinationDiscoverer) Discover(
	ctx context.Context,
	table *models.Table,
	candidates []string,
	metrics []models.ColumnMetric,
) (*DiscoveryResult, error) {
	result := &DiscoveryResult{}
	if len(candidates) == 0 {
		return result, nil
	}

	uniqueness := make(map[string]float64, len(metrics))
	for _, m := range metrics {
		uniqueness[strings.ToLower(m.ColumnName)] = m.Uniqueness
	}

	// Stringify every candidate once; scans only touch these slices.
	values := make([][]string, len(candidates))
	strong := make([]bool, len(candidates))
	for i, name := range candidates {
		col := table.Column(name)
		if col == nil {
			return nil, fmt.Errorf("candidate column %s not found in table %s", name, table.Name)
		}
		vs := make([]string, len(col.Cells))
		for r, c := range col.Cells {
			vs[r] = c.String()
		}
		values[i] = vs
		strong[i] = uniqueness[strings.ToLower(name)] >= d.cfg.StrongColumnThreshold
	}

	total := int64(table.RowCount())
	maxK := d.cfg.MaxCombinationSize
	if maxK > len(candidates) {
		maxK = len(candidates)
	}

	for k := 1; k <= maxK; k++ {
		idx := firstCombination(k)
		for {
			if !anyStrong(idx, strong) {
				result.Pruned++
			} else {
				card, err := d.scan(ctx, values, idx, int(total))
				if err != nil {
					return nil, err
				}
				result.Scanned++

				u := Uniqueness(card, total)
				if u >= d.cfg.CombinationThreshold {
					cols := make([]string, k)
					for j, i := range idx {
						cols[j] = candidates[i]
					}
					result.Combinations = append(result.Combinations, models.CombinationMetric{
						TableName:   table.Name,
						Columns:     cols,
						Cardinality: card,
						Uniqueness:  u,
						Fingerprint: fingerprint.Set(table.Name, cols),
					})
					result.Accepted++

					if d.cfg.MaxCombinations > 0 && result.Accepted >= d.cfg.MaxCombinations {
						result.Truncated = hasMoreSubsets(idx, len(candidates), k, maxK)
						if result.Truncated {
							d.logger.Warn("Combination cap reached, discovery truncated",
								zap.String("table", table.Name),
								zap.Int("max_combinations", d.cfg.MaxCombinations),
								zap.Int("scanned", result.Scanned),
								zap.Int("pruned", result.Pruned))
						}
						return result, nil
					}
				}
			}

			if !nextCombination(idx, len(candidates)) {
				break
			}
		}
	}

	return result, nil
}

// scan counts distinct combined row keys for the columns at idx. A null
// member contributes an empty string.
func (d *CombinationDiscoverer) scan(ctx context.Context, values [][]string, idx []int, rows int) (int64, error) {
	seen := make(map[string]struct{})
	var b strings.Builder
	for r := 0; r < rows; r++ {
		if r%scanCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
		if len(idx) == 1 {
			seen[values[idx[0]][r]] = struct{}{}
			continue
		}
		b.Reset()
		for j, i := range idx {
			if j > 0 {
				b.WriteString(keySeparator)
			}
			b.WriteString(values[i][r])
		}
		seen[b.String()] = struct{}{}
	}
	return int64(len(seen)), nil
}

func anyStrong(idx []int, strong []bool) bool {
	for _, i := range idx {
		if strong[i] {
			return true
		}
	}
	return false
}

// firstCombination returns [0, 1, ..., k-1].
func firstCombination(k int) []int {
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// nextCombination advances idx to the next k-subset of [0,n) in
// lexicographic order. It returns false once idx was the last subset.
func nextCombination(idx []int, n int) bool {
	k := len(idx)
	i := k - 1
	for i >= 0 && idx[i] == n-k+i {
		i--
	}
	if i < 0 {
		return false
	}
	idx[i]++
	for j := i + 1; j < k; j++ {
		idx[j] = idx[j-1] + 1
	}
	return true
}

// hasMoreSubsets reports whether any subset follows idx within sizes up to maxK.
func hasMoreSubsets(idx []int, n, k, maxK int) bool {
	if k < maxK {
		return true
	}
	probe := append([]int(nil), idx...)
	return nextCombination(probe, n)
}
