package parser

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"strings"

	"github.com/therealutkarshpriyadarshi/vcslog/internal/logging"
	"github.com/therealutkarshpriyadarshi/vcslog/pkg/types"
)

// maxLineSize bounds a single log line; cmd lines carry the full quoted argv.
const maxLineSize = 1024 * 1024

var (
	// errEndOfInput marks a clean end of file between blocks
	errEndOfInput = errors.New("end of input")

	// errPartialLine marks a final line whose newline has not been written yet
	errPartialLine = errors.New("line not terminated")
)

// Option configures a Scanner
type Option func(*Scanner)

// WithLogger sets the logger used for unknown-field warnings
func WithLogger(logger *logging.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// WithUnknownFieldHook registers a callback run once per dropped end-line token
func WithUnknownFieldHook(fn func(token string)) Option {
	return func(s *Scanner) {
		s.onUnknown = fn
	}
}

// WithRequireNewline treats a final line without its newline as still being
// written, failing the block as truncated instead of parsing the fragment.
// Used when reading files the wrapper may be appending to.
func WithRequireNewline() Option {
	return func(s *Scanner) {
		s.requireNewline = true
	}
}

// Scanner reads start/cmd/end blocks from one log file and yields them as
// records, one block per call to Next. It stops at the first malformed
// block; records already returned stay valid.
type Scanner struct {
	filename       string
	lines          *bufio.Scanner
	line           int
	record         *types.LogRecord
	err            error
	done           bool
	logger         *logging.Logger
	onUnknown      func(token string)
	requireNewline bool
}

// New creates a Scanner over r. filename is used for diagnostics and is
// copied into every record.
func New(r io.Reader, filename string, opts ...Option) *Scanner {
	lines := bufio.NewScanner(r)
	lines.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	s := &Scanner{
		filename: filename,
		lines:    lines,
		line:     -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.requireNewline {
		lines.Split(scanTerminatedLines)
	}
	if s.logger == nil {
		s.logger = logging.Global().WithComponent("parser")
	}
	s.logger = s.logger.WithFile(filename)

	return s
}

// Next advances to the next record. It returns false at end of input or
// after a failure; Err distinguishes the two.
func (s *Scanner) Next() bool {
	if s.done {
		return false
	}

	rec, err := s.scanBlock()
	if err != nil {
		s.done = true
		s.record = nil
		if !errors.Is(err, errEndOfInput) {
			s.err = err
		}
		return false
	}

	s.record = rec
	return true
}

// Record returns the record produced by the last successful Next
func (s *Scanner) Record() *types.LogRecord {
	return s.record
}

// Err returns the failure that stopped the scanner, nil on clean end of input
func (s *Scanner) Err() error {
	return s.err
}

// Line returns the 0-based index of the last line consumed
func (s *Scanner) Line() int {
	return s.line
}

// All returns the remaining records as a sequence. A failure is yielded
// last, paired with a nil record.
func (s *Scanner) All() iter.Seq2[*types.LogRecord, error] {
	return func(yield func(*types.LogRecord, error) bool) {
		for s.Next() {
			if !yield(s.Record(), nil) {
				return
			}
		}
		if err := s.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// ParseFile parses the file at path. It returns every record read before
// the first failure together with that failure.
func ParseFile(path string, opts ...Option) ([]*types.LogRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	var records []*types.LogRecord
	s := New(file, path, opts...)
	for s.Next() {
		records = append(records, s.Record())
	}
	return records, s.Err()
}

func (s *Scanner) scanBlock() (*types.LogRecord, error) {
	// expect start
	text, ok, err := s.readLine()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errEndOfInput
	}
	rest, found := strings.CutPrefix(text, prefixStart)
	if !found {
		return nil, s.unexpected(prefixStart, text)
	}
	fields := strings.Fields(rest)
	if len(fields) != 2 {
		return nil, s.fail(KindUnexpectedLine, fmt.Errorf("start line wants version and timestamp, got %q", text))
	}
	rec := &types.LogRecord{
		Filename: s.filename,
		Version:  fields[0],
	}
	if rec.StartTime, err = parseFloat(fields[1]); err != nil {
		return nil, s.fail(KindNumberFormat, fmt.Errorf("start timestamp: %w", err))
	}

	// expect cmd
	if text, err = s.requireLine(prefixCmd); err != nil {
		return nil, err
	}
	rest, found = strings.CutPrefix(text, prefixCmd)
	if !found {
		return nil, s.unexpected(prefixCmd, text)
	}
	rec.Cmd = strings.TrimSpace(rest)

	// expect end
	if text, err = s.requireLine(prefixEnd); err != nil {
		return nil, err
	}
	rest, found = strings.CutPrefix(text, prefixEnd)
	if !found {
		return nil, s.unexpected(prefixEnd, text)
	}
	fields = strings.Fields(rest)
	if len(fields) == 0 {
		return nil, s.fail(KindUnexpectedLine, fmt.Errorf("end line has no timestamp: %q", text))
	}
	if rec.EndTime, err = parseFloat(fields[0]); err != nil {
		return nil, s.fail(KindNumberFormat, fmt.Errorf("end timestamp: %w", err))
	}
	for _, token := range fields[1:] {
		if err := s.applyExtra(rec, token); err != nil {
			return nil, err
		}
	}

	rec.Duration = rec.EndTime - rec.StartTime
	return rec, nil
}

func (s *Scanner) applyExtra(rec *types.LogRecord, token string) error {
	prefix, value, found := strings.Cut(token, ":")
	field, known := extraFieldsByPrefix[prefix]
	if !found || !known {
		s.logger.Warn().
			Int("line", s.line).
			Str("token", token).
			Msg("Unknown field prefix, dropping token")
		if s.onUnknown != nil {
			s.onUnknown(token)
		}
		return nil
	}

	if err := field.set(rec, value); err != nil {
		return s.fail(KindNumberFormat, fmt.Errorf("field %s: %w", field.Field, err))
	}
	return nil
}

// readLine consumes one line. ok is false at end of input.
func (s *Scanner) readLine() (text string, ok bool, err error) {
	if !s.lines.Scan() {
		err := s.lines.Err()
		switch {
		case err == nil:
			return "", false, nil
		case errors.Is(err, errPartialLine):
			s.line++
			return "", false, s.fail(KindTruncated, err)
		case errors.Is(err, bufio.ErrTooLong):
			s.line++
			return "", false, s.fail(KindUnexpectedLine, fmt.Errorf("line longer than %d bytes", maxLineSize))
		default:
			return "", false, fmt.Errorf("failed to read %s: %w", s.filename, err)
		}
	}
	s.line++
	return s.lines.Text(), true, nil
}

// scanTerminatedLines is bufio.ScanLines except that an unterminated final
// line is an error instead of a token.
func scanTerminatedLines(data []byte, atEOF bool) (int, []byte, error) {
	advance, token, err := bufio.ScanLines(data, atEOF)
	if err == nil && atEOF && token != nil && bytes.IndexByte(data[:advance], '\n') < 0 {
		return 0, nil, errPartialLine
	}
	return advance, token, err
}

// requireLine consumes a line that must exist inside a block
func (s *Scanner) requireLine(prefix string) (string, error) {
	text, ok, err := s.readLine()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", s.fail(KindTruncated, fmt.Errorf("input ended while expecting %q", prefix))
	}
	return text, nil
}

func (s *Scanner) unexpected(prefix, text string) error {
	return s.fail(KindUnexpectedLine, fmt.Errorf("expected %q, got %q", prefix, text))
}

func (s *Scanner) fail(kind Kind, err error) error {
	return &ParseError{
		Filename: s.filename,
		Line:     s.line,
		Kind:     kind,
		Err:      err,
	}
}
