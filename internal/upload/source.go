// Package upload turns uploaded tabular data into lead batches.
package upload

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
)

var (
	// ErrNoHeader fails an upload whose first record is missing or blank.
	ErrNoHeader = errors.New("upload has no header row")
	// ErrMalformedRow marks a row that could not be shaped into a field mapping.
	ErrMalformedRow = errors.New("malformed row")
)

// Row is one raw field mapping. Line is the 1-based data row number. A row
// carrying Err could not be parsed and has no Fields.
type Row struct {
	Line   int
	Fields map[string]any
	Err    error
}

// Source is a lazy sequence of rows in upload order.
type Source = iter.Seq[Row]

// CSV reads the header eagerly and returns the data rows lazily. Records
// whose field count differs from the header are malformed rows.
func CSV(r io.Reader) (Source, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}

	columns := make([]string, len(header))
	blank := true
	for i, h := range header {
		columns[i] = NormalizeColumn(h)
		if columns[i] != "" {
			blank = false
		}
	}
	if blank {
		return nil, ErrNoHeader
	}

	return func(yield func(Row) bool) {
		for line := 1; ; line++ {
			record, err := reader.Read()
			if errors.Is(err, io.EOF) {
				return
			}

			var parseErr *csv.ParseError
			switch {
			case errors.As(err, &parseErr):
				if !yield(Row{Line: line, Err: fmt.Errorf("%w: %v", ErrMalformedRow, parseErr.Err)}) {
					return
				}
				continue
			case err != nil:
				yield(Row{Line: line, Err: fmt.Errorf("reading csv: %w", err)})
				return
			}

			if len(record) != len(columns) {
				row := Row{Line: line, Err: fmt.Errorf("%w: expected %d fields, got %d", ErrMalformedRow, len(columns), len(record))}
				if !yield(row) {
					return
				}
				continue
			}

			fields := make(map[string]any, len(columns))
			for i, col := range columns {
				if col == "" {
					continue
				}
				fields[col] = record[i]
			}
			if !yield(Row{Line: line, Fields: fields}) {
				return
			}
		}
	}, nil
}

// JSON yields one row per element of raw. Elements that are not objects are
// malformed rows.
func JSON(raw []any) Source {
	return func(yield func(Row) bool) {
		for i, item := range raw {
			row := Row{Line: i + 1}

			obj, ok := item.(map[string]any)
			if ok {
				row.Fields = make(map[string]any, len(obj))
				for k, v := range obj {
					if col := NormalizeColumn(k); col != "" {
						row.Fields[col] = v
					}
				}
			} else {
				row.Err = fmt.Errorf("%w: expected an object, got %s", ErrMalformedRow, describe(item))
			}

			if !yield(row) {
				return
			}
		}
	}
}

// NormalizeColumn maps a header such as " LinkedIn Bio" to "linkedin_bio".
func NormalizeColumn(name string) string {
	name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
	return strings.Join(strings.FieldsFunc(name, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '\t'
	}), "_")
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case []any:
		return "an array"
	case string:
		return "a string"
	case float64, int, int64:
		return "a number"
	case bool:
		return "a boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}
