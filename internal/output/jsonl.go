package output

import (
	"fmt"
	"io"

	"github.com/valyala/fastjson"
)

// JSONLSink writes one JSON object per row, keyed by the header columns
type JSONLSink struct {
	w       io.Writer
	columns []string
	arena   fastjson.Arena
	buf     []byte
}

// NewJSONLSink creates a JSON-lines sink writing to w
func NewJSONLSink(w io.Writer) *JSONLSink {
	return &JSONLSink{w: w}
}

// WriteHeader records the keys; JSON lines carry no header row.
func (s *JSONLSink) WriteHeader(columns []string) error {
	if s.columns != nil {
		return fmt.Errorf("jsonl header already written")
	}
	s.columns = append([]string(nil), columns...)
	return nil
}

func (s *JSONLSink) WriteRow(values []any) error {
	if err := checkArity(s.columns, values); err != nil {
		return err
	}

	s.arena.Reset()
	obj := s.arena.NewObject()
	for i, col := range s.columns {
		obj.Set(col, s.value(values[i]))
	}

	s.buf = obj.MarshalTo(s.buf[:0])
	s.buf = append(s.buf, '\n')
	if _, err := s.w.Write(s.buf); err != nil {
		return fmt.Errorf("jsonl write failed: %w", err)
	}
	return nil
}

func (s *JSONLSink) value(v any) *fastjson.Value {
	switch val := v.(type) {
	case nil:
		return s.arena.NewNull()
	case string:
		return s.arena.NewString(val)
	case int:
		return s.arena.NewNumberInt(val)
	case int64:
		return s.arena.NewNumberString(FormatValue(val))
	case float64:
		return s.arena.NewNumberFloat64(val)
	case bool:
		if val {
			return s.arena.NewTrue()
		}
		return s.arena.NewFalse()
	default:
		return s.arena.NewString(FormatValue(val))
	}
}

// Flush is a no-op; rows are written through immediately.
func (s *JSONLSink) Flush() error {
	return nil
}

func (s *JSONLSink) Name() string {
	return string(FormatJSONL)
}
