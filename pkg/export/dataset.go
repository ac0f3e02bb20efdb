package export

import "errors"

// ErrNoHeaders is returned when a dataset defines no columns.
var ErrNoHeaders = errors.New("dataset requires at least one header")

// Dataset defines tabular export content. Rows are keyed by header; missing keys render empty.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

func (d Dataset) record(row map[string]string) []string {
	out := make([]string, len(d.Headers))
	for i, header := range d.Headers {
		out[i] = row[header]
	}
	return out
}
