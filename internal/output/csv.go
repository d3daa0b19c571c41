package output

import (
	"encoding/csv"
	"fmt"
	"io"
)

// CSVSink writes comma-separated values with minimal quoting. Each row is
// flushed as soon as it is written.
type CSVSink struct {
	w       *csv.Writer
	columns []string
	record  []string
}

// NewCSVSink creates a CSV sink writing to w
func NewCSVSink(w io.Writer) *CSVSink {
	return &CSVSink{w: csv.NewWriter(w)}
}

func (s *CSVSink) WriteHeader(columns []string) error {
	if s.columns != nil {
		return fmt.Errorf("csv header already written")
	}
	s.columns = append([]string(nil), columns...)
	s.record = make([]string, len(columns))
	return s.write(s.columns)
}

func (s *CSVSink) WriteRow(values []any) error {
	if err := checkArity(s.columns, values); err != nil {
		return err
	}
	for i, v := range values {
		s.record[i] = FormatValue(v)
	}
	return s.write(s.record)
}

func (s *CSVSink) write(record []string) error {
	if err := s.w.Write(record); err != nil {
		return fmt.Errorf("csv write failed: %w", err)
	}
	return s.Flush()
}

func (s *CSVSink) Flush() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("csv flush failed: %w", err)
	}
	return nil
}

func (s *CSVSink) Name() string {
	return string(FormatCSV)
}
