package ingest

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ekaya-inc/ekaya-keyscout/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-keyscout/pkg/models"
)

// ctxCheckEvery is how many input lines are read between cancellation checks.
const ctxCheckEvery = 4096

// Reader extracts raw text rows from fixed-width and delimited files.
// Every produced cell is Text; cells of columns that belong to a different
// section than the one that matched are Null.
type Reader struct {
	defaultEncoding string
	logger          *zap.Logger
}

// NewReader creates a reader. defaultEncoding applies when a schema names none.
func NewReader(defaultEncoding string, logger *zap.Logger) *Reader {
	return &Reader{
		defaultEncoding: defaultEncoding,
		logger:          logger.Named("reader"),
	}
}

// compiledSection is a FileSection with its filter compiled and its fields
// resolved to table column positions.
type compiledSection struct {
	name    string
	filter  *regexp.Regexp
	fields  []models.FileField
	columns []int
}

// Read parses path according to schema into a table named after the file.
func (r *Reader) Read(ctx context.Context, path string, schema *models.FileSchema) (*models.Table, error) {
	if err := ValidateSchema(schema); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	defer f.Close()

	encName := schema.Encoding
	if encName == "" {
		encName = r.defaultEncoding
	}
	src, err := decodeReader(f, encName)
	if err != nil {
		return nil, err
	}

	table := models.NewTable(TableNameForFile(path), schema.ColumnNames())
	declared := schema.DeclaredLengths()
	for _, c := range table.Columns {
		c.DeclaredLength = declared[c.Name]
	}

	sections, err := compileSections(schema, table)
	if err != nil {
		return nil, err
	}

	switch schema.Type {
	case models.FileKindFixed, models.FileKindFixedExact:
		err = r.readFixed(ctx, src, sections, table)
	case models.FileKindCSV:
		err = r.readCSV(ctx, src, schema, sections, table)
	default:
		err = fmt.Errorf("%w: type %q", apperrors.ErrUnsupportedSchema, schema.Type)
	}
	if err != nil {
		return nil, err
	}

	r.logger.Info("Read data file",
		zap.String("path", path),
		zap.String("table", table.Name),
		zap.String("type", schema.Type),
		zap.Int("columns", len(table.Columns)),
		zap.Int("rows", table.RowCount()))

	return table, nil
}

func compileSections(schema *models.FileSchema, table *models.Table) ([]compiledSection, error) {
	out := make([]compiledSection, 0, len(schema.Sections))
	for _, sec := range schema.Sections {
		cs := compiledSection{name: sec.Name, fields: sec.Fields}
		if sec.Filter != "" {
			re, err := regexp.Compile(sec.Filter)
			if err != nil {
				return nil, fmt.Errorf("%w: section %q filter: %v", apperrors.ErrUnsupportedSchema, sec.Name, err)
			}
			cs.filter = re
		}
		for _, f := range sec.Fields {
			cs.columns = append(cs.columns, table.ColumnIndex(f.Name))
		}
		out = append(out, cs)
	}
	return out, nil
}

func (s *compiledSection) matches(line string) bool {
	return s.filter == nil || s.filter.MatchString(line)
}

// emptyRow returns a row of Null cells; only the matching section's fields
// are filled in.
func emptyRow(width int) []models.Cell {
	return make([]models.Cell, width)
}

func (r *Reader) readFixed(ctx context.Context, src io.Reader, sections []compiledSection, table *models.Table) error {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		line := strings.TrimRight(scanner.Text(), "\r")
		for i := range sections {
			sec := &sections[i]
			if !sec.matches(line) {
				continue
			}
			row := emptyRow(len(table.Columns))
			for j, f := range sec.fields {
				row[sec.columns[j]] = models.TextCell(strings.TrimSpace(SafeSubstring(line, f.Offset, f.Length)))
			}
			table.AppendRow(row)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read fixed-width file at line %d: %w", lineNo, err)
	}
	return nil
}

func (r *Reader) readCSV(ctx context.Context, src io.Reader, schema *models.FileSchema, sections []compiledSection, table *models.Table) error {
	sep := UnescapeSeparator(schema.Separator)
	sepRunes := []rune(sep)
	if len(sepRunes) != 1 {
		return fmt.Errorf("%w: separator %q must be a single character", apperrors.ErrUnsupportedSchema, sep)
	}

	cr := csv.NewReader(src)
	cr.Comma = sepRunes[0]
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var headerIdx map[string]int
	if schema.Header {
		hdr, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to read CSV header: %w", err)
		}
		headerIdx = make(map[string]int, len(hdr))
		for i, h := range hdr {
			h = strings.TrimSpace(h)
			if i == 0 {
				h = strings.TrimPrefix(h, "\uFEFF")
			}
			if _, dup := headerIdx[h]; !dup {
				headerIdx[h] = i
			}
		}
	}

	recNo := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		recNo++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				r.logger.Warn("Skipping malformed CSV record",
					zap.Int("record", recNo),
					zap.Error(err))
				continue
			}
			return fmt.Errorf("failed to read CSV record %d: %w", recNo, err)
		}
		if recNo%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		joined := strings.Join(rec, sep)
		for i := range sections {
			sec := &sections[i]
			if !sec.matches(joined) {
				continue
			}
			row := emptyRow(len(table.Columns))
			for j, f := range sec.fields {
				idx := j
				if headerIdx != nil {
					if hi, ok := headerIdx[f.Name]; ok {
						idx = hi
					}
				}
				value := ""
				if idx < len(rec) {
					value = strings.TrimSpace(rec[idx])
				}
				row[sec.columns[j]] = models.TextCell(value)
			}
			table.AppendRow(row)
		}
	}
	return nil
}

// SafeSubstring returns up to length characters starting at character
// offset. An offset past the end yields the empty string; the length is
// clipped to what remains.
func SafeSubstring(s string, offset, length int) string {
	if offset < 0 || length <= 0 {
		return ""
	}
	runes := []rune(s)
	if offset >= len(runes) {
		return ""
	}
	end := offset + length
	if end > len(runes) {
		end = len(runes)
	}
	return string(runes[offset:end])
}

// decodeReader wraps src so it yields UTF-8 regardless of the file encoding.
func decodeReader(src io.Reader, name string) (io.Reader, error) {
	t, err := lookupEncoding(name)
	if err != nil {
		return nil, err
	}
	return transform.NewReader(src, t), nil
}

// lookupEncoding maps a schema encoding name to a decoding transformer.
// UTF-8 input honours a byte-order mark and drops it.
func lookupEncoding(name string) (transform.Transformer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.BOMOverride(unicode.UTF8.NewDecoder()), nil
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return charmap.ISO8859_1.NewDecoder(), nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252.NewDecoder(), nil
	default:
		return nil, fmt.Errorf("%w: encoding %q", apperrors.ErrUnsupportedSchema, name)
	}
}
