// Package loader provides the CSV table source adapter.
// Clean Architecture: Adapter implementing ports.TableSource.
package loader

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/finrag/finrag-go/internal/domain/entities"
)

var dateRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{2,4})$`)

// CSVSource loads a fixed set of CSV files into typed tables. Column
// types are discovered from the data, not hardcoded: a column is numeric
// when at least half of its non-empty values coerce to numbers, date
// when at least half look like dates, string otherwise.
type CSVSource struct {
	paths []string
}

// NewCSVSource creates a source over the given file paths.
func NewCSVSource(paths ...string) *CSVSource {
	return &CSVSource{paths: paths}
}

// Paths returns the configured file paths.
func (s *CSVSource) Paths() []string {
	return append([]string(nil), s.paths...)
}

// Load reads every configured CSV. A missing or malformed file is an
// error - fatal at startup, recoverable by reload.
func (s *CSVSource) Load(ctx context.Context) ([]*entities.Table, error) {
	tables := make([]*entities.Table, 0, len(s.paths))
	for _, path := range s.paths {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		table, err := loadOne(path)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return tables, nil
}

func loadOne(path string) (*entities.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1 // tolerate ragged rows
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parsing %s: empty file", path)
	}

	header := records[0]
	sourceFile := filepath.Base(path)
	types := inferTypes(header, records[1:])

	table := &entities.Table{
		SourceFile: sourceFile,
		Columns:    append([]string(nil), header...),
		Types:      types,
	}

	for i, record := range records[1:] {
		row := entities.Row{SourceFile: sourceFile, RowIndex: i}
		for c, column := range header {
			raw := ""
			if c < len(record) {
				raw = record[c]
			}
			field := entities.Field{Column: column, Raw: raw}
			if types[c] == entities.ColumnNumber {
				// An unparseable cell keeps its raw form; the row is
				// never dropped, only excluded from arithmetic.
				if v, ok := entities.ParseNumber(raw); ok {
					field.Num = v
					field.IsNum = true
				}
			}
			row.Fields = append(row.Fields, field)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func inferTypes(header []string, records [][]string) []entities.ColumnType {
	types := make([]entities.ColumnType, len(header))
	for c := range header {
		var nonEmpty, numeric, dates int
		for _, record := range records {
			if c >= len(record) || record[c] == "" {
				continue
			}
			nonEmpty++
			if _, ok := entities.ParseNumber(record[c]); ok {
				numeric++
			} else if dateRe.MatchString(record[c]) {
				dates++
			}
		}
		switch {
		case nonEmpty > 0 && numeric*2 >= nonEmpty:
			types[c] = entities.ColumnNumber
		case nonEmpty > 0 && dates*2 >= nonEmpty:
			types[c] = entities.ColumnDate
		default:
			types[c] = entities.ColumnString
		}
	}
	return types
}
