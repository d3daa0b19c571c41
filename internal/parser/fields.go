package parser

import (
	"strconv"

	"github.com/therealutkarshpriyadarshi/vcslog/pkg/types"
)

// Line prefixes written by vcslog-wrapper
const (
	prefixStart = "start:"
	prefixCmd   = "cmd:"
	prefixEnd   = "end:"
)

// extraField binds a short end-line code to a typed optional record field
type extraField struct {
	Prefix string
	Field  string
	set    func(rec *types.LogRecord, value string) error
	format func(rec *types.LogRecord) (string, bool)
}

// extraFields is the wire contract with the wrapper's end line, in the
// order the wrapper writes them.
var extraFields = []extraField{
	{
		Prefix: "s",
		Field:  types.FieldExitStatus,
		set: func(rec *types.LogRecord, value string) error {
			v, err := strconv.Atoi(value)
			if err != nil {
				return err
			}
			rec.ExitStatus = &v
			return nil
		},
		format: func(rec *types.LogRecord) (string, bool) {
			if rec.ExitStatus == nil {
				return "", false
			}
			return strconv.Itoa(*rec.ExitStatus), true
		},
	},
	{
		Prefix: "ut",
		Field:  types.FieldUserTime,
		set: func(rec *types.LogRecord, value string) error {
			v, err := parseFloat(value)
			if err != nil {
				return err
			}
			rec.UserTime = &v
			return nil
		},
		format: func(rec *types.LogRecord) (string, bool) {
			if rec.UserTime == nil {
				return "", false
			}
			return formatFloat(*rec.UserTime), true
		},
	},
	{
		Prefix: "st",
		Field:  types.FieldSystemTime,
		set: func(rec *types.LogRecord, value string) error {
			v, err := parseFloat(value)
			if err != nil {
				return err
			}
			rec.SystemTime = &v
			return nil
		},
		format: func(rec *types.LogRecord) (string, bool) {
			if rec.SystemTime == nil {
				return "", false
			}
			return formatFloat(*rec.SystemTime), true
		},
	},
}

var extraFieldsByPrefix = func() map[string]*extraField {
	m := make(map[string]*extraField, len(extraFields))
	for i := range extraFields {
		m[extraFields[i].Prefix] = &extraFields[i]
	}
	return m
}()

// ExtraFieldName resolves an end-line prefix code to its record field name
func ExtraFieldName(prefix string) (string, bool) {
	f, ok := extraFieldsByPrefix[prefix]
	if !ok {
		return "", false
	}
	return f.Field, true
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
