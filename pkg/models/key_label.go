package models

import (
	"time"

	"github.com/google/uuid"
)

// KeyLabel is a human decision on whether a column set of TableA joins a
// column set of TableB as a key. Tables and columns are stored normalized.
// Stored in engine_key_labels, unique per Fingerprint.
type KeyLabel struct {
	ID            uuid.UUID `json:"id"`
	Fingerprint   string    `json:"fingerprint"`
	TableA        string    `json:"tableA"`
	ColumnsA      []string  `json:"columnsA"`
	TableB        string    `json:"tableB"`
	ColumnsB      []string  `json:"columnsB"`
	IsKey         bool      `json:"isKey"`
	Justification string    `json:"justification,omitempty"`
	Author        string    `json:"author,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// KeyLabelFilter narrows a listing. Empty fields match everything.
type KeyLabelFilter struct {
	TableA string
	TableB string
}
