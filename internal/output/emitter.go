package output

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrSchemaViolation is returned when a record lacks a column the emitter
// committed to on its first record. It indicates a caller bug, not bad data.
var ErrSchemaViolation = errors.New("record does not match emitter schema")

// Row is a record the emitter can project onto its columns
type Row interface {
	Keys() []string
	Lookup(key string) (any, bool)
}

// SchemaError reports the column a record was missing
type SchemaError struct {
	Column string
	Schema []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%v: missing column %q (schema: %s)", ErrSchemaViolation, e.Column, strings.Join(e.Schema, ","))
}

func (e *SchemaError) Is(target error) bool {
	return target == ErrSchemaViolation
}

// Emitter streams records into a Sink. The column list is the sorted key
// set of the first record and is frozen from then on.
type Emitter struct {
	sink    Sink
	schema  []string
	values  []any
	started bool
	rows    int64
}

// NewEmitter creates an emitter writing to sink
func NewEmitter(sink Sink) *Emitter {
	return &Emitter{sink: sink}
}

// Emit writes rec as one row, writing the header first on the initial call.
func (e *Emitter) Emit(rec Row) error {
	if !e.started {
		columns := slices.Clone(rec.Keys())
		slices.Sort(columns)
		if err := e.sink.WriteHeader(columns); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		e.schema = columns
		e.values = make([]any, len(columns))
		e.started = true
	}

	for i, col := range e.schema {
		v, ok := rec.Lookup(col)
		if !ok {
			return &SchemaError{Column: col, Schema: e.Schema()}
		}
		e.values[i] = v
	}

	if err := e.sink.WriteRow(e.values); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	e.rows++
	return nil
}

// Schema returns a copy of the frozen column list, nil before the first Emit
func (e *Emitter) Schema() []string {
	return slices.Clone(e.schema)
}

// Rows returns the number of rows written
func (e *Emitter) Rows() int64 {
	return e.rows
}

// Flush flushes the underlying sink
func (e *Emitter) Flush() error {
	return e.sink.Flush()
}

// SinkName returns the format name of the underlying sink
func (e *Emitter) SinkName() string {
	return e.sink.Name()
}
