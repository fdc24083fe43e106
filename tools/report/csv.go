package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/nexus/tools"
)

// JSONToCSVRequest is the input of report_json_to_csv
type JSONToCSVRequest struct {
	Records  []map[string]any `json:"records" jsonschema:"title=Records,description=List of JSON objects; nested values are written as JSON." validate:"required,min=1"`
	Columns  []string         `json:"columns,omitempty" jsonschema:"title=Columns,description=Column order; defaults to the sorted union of keys."`
	Filename string           `json:"filename,omitempty" jsonschema:"title=Filename,description=Relative file name; when empty the CSV is returned."`
}

// JSONToCSVResult is the output of report_json_to_csv
type JSONToCSVResult struct {
	Columns []string `json:"columns"`
	Rows    int      `json:"rows"`
	Path    string   `json:"path,omitempty"`
	Bytes   int      `json:"bytes"`
	CSV     string   `json:"csv,omitempty"`
}

// JSONToCSV converts the records
func (p *Provider) JSONToCSV(_ context.Context, req *JSONToCSVRequest) (*JSONToCSVResult, error) {
	columns := req.Columns
	if len(columns) == 0 {
		columns = Columns(req.Records)
	}
	if len(columns) == 0 {
		return nil, tools.InvalidInput("records have no keys")
	}

	var b bytes.Buffer
	w := csv.NewWriter(&b)
	_ = w.Write(columns)
	row := make([]string, len(columns))
	for _, rec := range req.Records {
		for i, c := range columns {
			row[i] = CellText(rec[c])
		}
		_ = w.Write(row)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.Wrap(err, "failed to write csv")
	}

	res := &JSONToCSVResult{
		Columns: columns,
		Rows:    len(req.Records),
		Bytes:   b.Len(),
	}
	if req.Filename == "" {
		res.CSV = b.String()
		return res, nil
	}

	path, err := p.write(req.Filename, b.Bytes(), false)
	if err != nil {
		return nil, err
	}
	res.Path = path
	return res, nil
}

// Columns returns the sorted union of the record keys
func Columns(records []map[string]any) []string {
	seen := map[string]bool{}
	var cols []string
	for _, rec := range records {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	slices.Sort(cols)
	return cols
}
