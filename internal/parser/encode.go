package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/therealutkarshpriyadarshi/vcslog/pkg/types"
)

// Encode writes rec as one start/cmd/end block in the wrapper's line format.
// Optional fields are written in wrapper order from the same table the
// Scanner reads them with.
func Encode(w io.Writer, rec *types.LogRecord) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s %s\n", prefixStart, rec.Version, formatFloat(rec.StartTime))
	fmt.Fprintf(&b, "%s %s\n", prefixCmd, rec.Cmd)
	fmt.Fprintf(&b, "%s %s", prefixEnd, formatFloat(rec.EndTime))
	for _, f := range extraFields {
		if value, ok := f.format(rec); ok {
			fmt.Fprintf(&b, " %s:%s", f.Prefix, value)
		}
	}
	b.WriteByte('\n')

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// QuoteArg quotes one argv element the way the wrapper does for the cmd
// line: '"', '\' and newline are backslash-escaped (newline as \n) and the
// result is wrapped in double quotes if it contained whitespace or any of
// those characters.
func QuoteArg(arg string) string {
	var b strings.Builder
	needsQuotes := false

	for _, r := range arg {
		switch r {
		case '\n':
			b.WriteString(`\n`)
			needsQuotes = true
			continue
		case '"', '\\':
			b.WriteByte('\\')
			needsQuotes = true
		case ' ', '\t':
			needsQuotes = true
		}
		b.WriteRune(r)
	}

	if needsQuotes {
		return `"` + b.String() + `"`
	}
	return b.String()
}

// FormatCommand renders argv as the wrapper's cmd line text
func FormatCommand(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		quoted[i] = QuoteArg(arg)
	}
	return strings.Join(quoted, " ")
}
