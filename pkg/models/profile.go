package models

import (
	"time"

	"github.com/google/uuid"
)

// PatternMixed is the pattern tag for text columns that are neither all
// digits nor all letters.
const PatternMixed = "MIXED"

// Pattern tags for homogeneous text columns.
const (
	PatternDigits  = `^\d+$`
	PatternLetters = `^[A-Za-z]+$`
)

// ColumnMetric holds the profile of one column.
// Stored in engine_column_profiles, append-only.
type ColumnMetric struct {
	TableName   string   `json:"table_name"`
	ColumnName  string   `json:"column_name"`
	DataType    string   `json:"data_type"`
	TotalRows   int64    `json:"total_rows"`
	NullCount   int64    `json:"null_count"`
	Cardinality int64    `json:"cardinality"`
	Uniqueness  float64  `json:"uniqueness_pct"`
	MaxLength   int      `json:"max_length"`
	MinLength   int      `json:"min_length"`
	Pattern     string   `json:"pattern,omitempty"` // Text columns only
	Mean        *float64 `json:"mean,omitempty"`    // Numeric columns only
	P95         *float64 `json:"p95,omitempty"`     // Numeric columns only
}

// CombinationMetric holds the combined uniqueness of a column subset that
// survived pruning and passed the acceptance threshold.
// Stored in engine_key_candidates, append-only.
type CombinationMetric struct {
	TableName   string   `json:"table_name"`
	Columns     []string `json:"columns"`
	Cardinality int64    `json:"cardinality"`
	Uniqueness  float64  `json:"uniqueness_pct"`
	Fingerprint string   `json:"fingerprint"`
}

// ProfileRun is one profiling pass over a table.
type ProfileRun struct {
	ID               uuid.UUID           `json:"id"`
	TableName        string              `json:"table_name"`
	TotalRows        int64               `json:"total_rows"`
	CandidateColumns []string            `json:"candidate_columns"`
	Scanned          int                 `json:"scanned"`
	Pruned           int                 `json:"pruned"`
	Accepted         int                 `json:"accepted"`
	Truncated        bool                `json:"truncated"`
	StartedAt        time.Time           `json:"started_at"`
	FinishedAt       time.Time           `json:"finished_at"`
	Columns          []ColumnMetric      `json:"columns"`
	Combinations     []CombinationMetric `json:"combinations"`
}

// Elapsed returns the wall time of the run.
func (r *ProfileRun) Elapsed() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
