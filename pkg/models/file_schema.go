package models

// File kinds understood by the ingest reader.
const (
	FileKindFixed      = "fixed"
	FileKindFixedExact = "fixedexact" // Alias of fixed
	FileKindCSV        = "csv"
)

// FileSchema describes how to extract rows from a raw data file.
// Loaded once per ingest run and never mutated afterwards.
type FileSchema struct {
	Type   string `json:"type"`
	Header bool   `json:"header"`
	// Separator is the CSV delimiter. Escaped forms \t, \| and \& are accepted.
	Separator string `json:"separator,omitempty"`
	// Encoding of the data file: utf-8 (default), latin1, iso-8859-1, windows-1252.
	Encoding string `json:"encoding,omitempty"`

	// Record-level hints carried by fixed-width schemas. Informational only.
	Length       *int   `json:"length,omitempty"`
	Decimals     *int   `json:"decimals,omitempty"`
	DecimalPoint string `json:"decimalPoint,omitempty"`

	Sections []FileSection `json:"sections"`
}

// FileSection is a group of fields applied to lines matching Filter.
// An empty Filter matches every line.
type FileSection struct {
	Name   string      `json:"name"`
	Filter string      `json:"filter,omitempty"`
	Fields []FileField `json:"fields"`
}

// FileField is one extracted value. Offset and Length are character
// positions for fixed-width files. CSV files locate the field by Name when
// the file has a header, otherwise by its position in the section.
type FileField struct {
	Name      string `json:"fName"`
	Offset    int    `json:"fOffset"`
	Length    int    `json:"fLength"`
	Caption   string `json:"caption,omitempty"`
	Format    string `json:"fFormat,omitempty"`
	Redefines bool   `json:"redefines,omitempty"`
}

// ColumnNames returns the distinct field names across all sections in
// first-seen order.
func (s *FileSchema) ColumnNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, sec := range s.Sections {
		for _, f := range sec.Fields {
			if seen[f.Name] {
				continue
			}
			seen[f.Name] = true
			names = append(names, f.Name)
		}
	}
	return names
}

// DeclaredLengths returns the widest declared field length per column name.
func (s *FileSchema) DeclaredLengths() map[string]int {
	out := make(map[string]int)
	for _, sec := range s.Sections {
		for _, f := range sec.Fields {
			if f.Length > out[f.Name] {
				out[f.Name] = f.Length
			}
		}
	}
	return out
}
