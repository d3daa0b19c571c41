package output

import (
	"fmt"
	"io"
	"strconv"
)

// Sink receives a table: the ordered column names once, then one call per row.
// Sinks must not retain the values slice after WriteRow returns.
type Sink interface {
	// WriteHeader writes the column names. It is called exactly once,
	// before any row.
	WriteHeader(columns []string) error

	// WriteRow writes one row, values in header column order
	WriteRow(values []any) error

	// Flush pushes buffered output to the underlying writer
	Flush() error

	// Name returns the sink format name
	Name() string
}

// Format identifies a sink implementation
type Format string

const (
	FormatCSV   Format = "csv"
	FormatTSV   Format = "tsv"
	FormatJSONL Format = "jsonl"
)

// New creates a sink of the given format writing to w
func New(format Format, w io.Writer) (Sink, error) {
	if w == nil {
		return nil, fmt.Errorf("output writer is nil")
	}

	switch format {
	case FormatCSV:
		return NewCSVSink(w), nil
	case FormatTSV:
		return NewTSVSink(w), nil
	case FormatJSONL:
		return NewJSONLSink(w), nil
	default:
		return nil, fmt.Errorf("unknown output format: %s", format)
	}
}

// Formats lists the supported sink formats
func Formats() []Format {
	return []Format{FormatCSV, FormatTSV, FormatJSONL}
}

// FormatValue renders a cell for text sinks. Floats use the shortest exact
// decimal form without an exponent.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}

func checkArity(columns []string, values []any) error {
	if columns == nil {
		return fmt.Errorf("row written before header")
	}
	if len(values) != len(columns) {
		return fmt.Errorf("row has %d values, header has %d columns", len(values), len(columns))
	}
	return nil
}
