package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/models"
)

// rawSchema mirrors models.FileSchema with lenient scalar fields. Schema files
// are hand-written and often quote numbers.
type rawSchema struct {
	Type         string          `json:"type"`
	Header       json.RawMessage `json:"header"`
	Separator    json.RawMessage `json:"separator"`
	Encoding     string          `json:"encoding"`
	Length       json.RawMessage `json:"length"`
	Decimals     json.RawMessage `json:"decimals"`
	DecimalPoint string          `json:"decimalPoint"`
	Sections     []rawSection    `json:"sections"`
}

type rawSection struct {
	Name   string     `json:"name"`
	Filter string     `json:"filter"`
	Fields []rawField `json:"fields"`
}

type rawField struct {
	Name      string          `json:"fName"`
	Offset    json.RawMessage `json:"fOffset"`
	Length    json.RawMessage `json:"fLength"`
	Caption   string          `json:"caption"`
	Format    string          `json:"fFormat"`
	Redefines json.RawMessage `json:"redefines"`
}

// LoadSchema reads a schema file. Files ending in .yaml or .yml are parsed as
// YAML, everything else as JSON.
func LoadSchema(path string) (*models.FileSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseSchemaYAML(data)
	default:
		return ParseSchemaJSON(data)
	}
}

// ParseSchemaYAML decodes a YAML schema by converting it to JSON first, so
// both formats share one set of field rules.
func ParseSchemaYAML(data []byte) (*models.FileSchema, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse schema YAML: %w", err)
	}
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert schema YAML: %w", err)
	}
	return ParseSchemaJSON(asJSON)
}

// ParseSchemaJSON decodes and validates a JSON schema.
func ParseSchemaJSON(data []byte) (*models.FileSchema, error) {
	var raw rawSchema
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse schema JSON: %w", err)
	}

	schema, err := raw.toModel()
	if err != nil {
		return nil, err
	}
	if err := ValidateSchema(schema); err != nil {
		return nil, err
	}
	return schema, nil
}

func (r *rawSchema) toModel() (*models.FileSchema, error) {
	header, err := jsonutil.FlexibleBool(r.Header)
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", apperrors.ErrUnsupportedSchema, err)
	}

	s := &models.FileSchema{
		Type:         strings.ToLower(strings.TrimSpace(r.Type)),
		Header:       header,
		Separator:    jsonutil.FlexibleStringValue(r.Separator),
		Encoding:     strings.ToLower(strings.TrimSpace(r.Encoding)),
		DecimalPoint: r.DecimalPoint,
	}
	if s.Length, err = optionalInt(r.Length); err != nil {
		return nil, fmt.Errorf("%w: length: %v", apperrors.ErrUnsupportedSchema, err)
	}
	if s.Decimals, err = optionalInt(r.Decimals); err != nil {
		return nil, fmt.Errorf("%w: decimals: %v", apperrors.ErrUnsupportedSchema, err)
	}

	for _, rs := range r.Sections {
		sec := models.FileSection{Name: rs.Name, Filter: rs.Filter}
		for _, rf := range rs.Fields {
			f := models.FileField{
				Name:    strings.TrimSpace(rf.Name),
				Caption: rf.Caption,
				Format:  rf.Format,
			}
			if f.Offset, err = jsonutil.FlexibleInt(rf.Offset); err != nil {
				return nil, fmt.Errorf("%w: field %q fOffset: %v", apperrors.ErrUnsupportedSchema, rf.Name, err)
			}
			if f.Length, err = jsonutil.FlexibleInt(rf.Length); err != nil {
				return nil, fmt.Errorf("%w: field %q fLength: %v", apperrors.ErrUnsupportedSchema, rf.Name, err)
			}
			if f.Redefines, err = jsonutil.FlexibleBool(rf.Redefines); err != nil {
				return nil, fmt.Errorf("%w: field %q redefines: %v", apperrors.ErrUnsupportedSchema, rf.Name, err)
			}
			sec.Fields = append(sec.Fields, f)
		}
		s.Sections = append(s.Sections, sec)
	}
	return s, nil
}

func optionalInt(raw json.RawMessage) (*int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	v, err := jsonutil.FlexibleInt(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ValidateSchema checks that a schema can drive the reader.
func ValidateSchema(s *models.FileSchema) error {
	switch s.Type {
	case models.FileKindFixed, models.FileKindFixedExact, models.FileKindCSV:
	default:
		return fmt.Errorf("%w: type %q", apperrors.ErrUnsupportedSchema, s.Type)
	}
	if len(s.Sections) == 0 {
		return fmt.Errorf("%w: no sections", apperrors.ErrUnsupportedSchema)
	}
	if _, err := lookupEncoding(s.Encoding); err != nil {
		return err
	}

	for _, sec := range s.Sections {
		if len(sec.Fields) == 0 {
			return fmt.Errorf("%w: section %q has no fields", apperrors.ErrUnsupportedSchema, sec.Name)
		}
		if sec.Filter != "" {
			if _, err := regexp.Compile(sec.Filter); err != nil {
				return fmt.Errorf("%w: section %q filter: %v", apperrors.ErrUnsupportedSchema, sec.Name, err)
			}
		}
		for _, f := range sec.Fields {
			if f.Name == "" {
				return fmt.Errorf("%w: section %q has a field without fName", apperrors.ErrUnsupportedSchema, sec.Name)
			}
			if f.Offset < 0 || f.Length < 0 {
				return fmt.Errorf("%w: field %q has a negative offset or length", apperrors.ErrUnsupportedSchema, f.Name)
			}
		}
	}
	return nil
}

// UnescapeSeparator turns the escaped separators accepted in schema files
// into their literal characters.
func UnescapeSeparator(raw string) string {
	switch raw {
	case "":
		return ","
	case `\t`:
		return "\t"
	case `\|`:
		return "|"
	case `\&`:
		return "&"
	default:
		return raw
	}
}
