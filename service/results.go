package service

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/pkg/errors"

	"vizinsight/models"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

// ResultFile is the JSON export of a stored query.
type ResultFile struct {
	ID        string          `json:"id"`
	Query     string          `json:"query"`
	SQL       string          `json:"sql"`
	Answer    string          `json:"answer"`
	Timestamp string          `json:"timestamp"`
	Columns   []string        `json:"columns"`
	Rows      [][]interface{} `json:"rows"`
	RowCount  int             `json:"row_count"`
}

// Table flattens raw rows into columns and rows. Array rows get positional
// column names; object rows use the union of their keys.
func Table(data []any) ([]string, [][]interface{}) {
	if len(data) == 0 {
		return []string{}, [][]interface{}{}
	}

	var (
		width   int
		keySet  = map[string]struct{}{}
		objects bool
	)
	for _, row := range data {
		switch r := row.(type) {
		case []any:
			if len(r) > width {
				width = len(r)
			}
		case map[string]any:
			objects = true
			for k := range r {
				keySet[k] = struct{}{}
			}
		default:
			if width < 1 {
				width = 1
			}
		}
	}

	var columns []string
	if objects {
		for k := range keySet {
			columns = append(columns, k)
		}
		sort.Strings(columns)
	} else {
		for i := 0; i < width; i++ {
			columns = append(columns, fmt.Sprintf("column_%d", i+1))
		}
	}

	rows := make([][]interface{}, 0, len(data))
	for _, row := range data {
		out := make([]interface{}, len(columns))
		switch r := row.(type) {
		case []any:
			copy(out, r)
		case map[string]any:
			for i, k := range columns {
				out[i] = r[k]
			}
		default:
			if len(out) > 0 {
				out[0] = r
			}
		}
		rows = append(rows, out)
	}
	return columns, rows
}

// WriteResultJSON writes record as an indented ResultFile.
func WriteResultJSON(w io.Writer, record *models.QueryRecord) error {
	columns, rows := Table(record.RawData)
	resultData := ResultFile{
		ID:        record.ID,
		Query:     record.Prompt,
		SQL:       record.SQL,
		Answer:    record.Answer,
		Timestamp: record.CreatedAt,
		Columns:   columns,
		Rows:      rows,
		RowCount:  len(rows),
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resultData); err != nil {
		return errors.Wrap(err, "failed to marshal JSON")
	}
	return nil
}

// WriteResultCSV writes the raw rows of record with a header line.
func WriteResultCSV(w io.Writer, record *models.QueryRecord) error {
	columns, rows := Table(record.RawData)

	writer := csv.NewWriter(w)
	if err := writer.Write(columns); err != nil {
		return errors.Wrap(err, "failed to write CSV header")
	}
	for _, row := range rows {
		rec := make([]string, len(row))
		for i, val := range row {
			if val != nil {
				rec[i] = fmt.Sprintf("%v", val)
			}
		}
		if err := writer.Write(rec); err != nil {
			return errors.Wrap(err, "failed to write CSV row")
		}
	}
	writer.Flush()
	return errors.Wrap(writer.Error(), "failed to flush CSV")
}

// WriteResult dispatches on format ("csv" or "json") and returns the
// content type to serve.
func WriteResult(w io.Writer, record *models.QueryRecord, format string) (string, error) {
	switch format {
	case "", "json":
		return "application/json", WriteResultJSON(w, record)
	case "csv":
		return "text/csv", WriteResultCSV(w, record)
	}
	return "", errors.Wrap(ErrUnsupportedFormat, format)
}
