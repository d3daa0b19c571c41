package output

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// tsvEscaper flattens characters that would break the row structure
var tsvEscaper = strings.NewReplacer("\t", " ", "\r\n", " ", "\n", " ", "\r", " ")

// TSVSink writes tab-separated rows without quoting
type TSVSink struct {
	w       *bufio.Writer
	columns []string
}

// NewTSVSink creates a TSV sink writing to w
func NewTSVSink(w io.Writer) *TSVSink {
	return &TSVSink{w: bufio.NewWriter(w)}
}

func (s *TSVSink) WriteHeader(columns []string) error {
	if s.columns != nil {
		return fmt.Errorf("tsv header already written")
	}
	s.columns = append([]string(nil), columns...)

	cells := make([]any, len(columns))
	for i, c := range columns {
		cells[i] = c
	}
	return s.writeLine(cells)
}

func (s *TSVSink) WriteRow(values []any) error {
	if err := checkArity(s.columns, values); err != nil {
		return err
	}
	return s.writeLine(values)
}

func (s *TSVSink) writeLine(values []any) error {
	for i, v := range values {
		if i > 0 {
			s.w.WriteByte('\t')
		}
		s.w.WriteString(tsvEscaper.Replace(FormatValue(v)))
	}
	s.w.WriteByte('\n')
	return s.Flush()
}

func (s *TSVSink) Flush() error {
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("tsv flush failed: %w", err)
	}
	return nil
}

func (s *TSVSink) Name() string {
	return string(FormatTSV)
}
