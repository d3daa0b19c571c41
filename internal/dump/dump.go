package dump

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/therealutkarshpriyadarshi/vcslog/internal/logging"
	"github.com/therealutkarshpriyadarshi/vcslog/internal/metrics"
	"github.com/therealutkarshpriyadarshi/vcslog/internal/output"
	"github.com/therealutkarshpriyadarshi/vcslog/internal/parser"
	"github.com/therealutkarshpriyadarshi/vcslog/pkg/types"
)

// Option configures a Dumper
type Option func(*Dumper)

// WithLogger sets the logger for diagnostics
func WithLogger(logger *logging.Logger) Option {
	return func(d *Dumper) {
		d.base = logger
	}
}

// WithMetrics attaches a metrics collector
func WithMetrics(collector *metrics.Collector) Option {
	return func(d *Dumper) {
		d.metrics = collector
	}
}

// Dumper feeds log files through the parser into an emitter, one file at a time
type Dumper struct {
	emitter *output.Emitter
	base    *logging.Logger
	logger  *logging.Logger
	metrics *metrics.Collector
}

// FileResult describes one pass over a log file
type FileResult struct {
	// Parsed counts every complete block read, including skipped ones
	Parsed int
	// Emitted counts records handed to the emitter
	Emitted int
	// UnknownFields counts dropped end-line tokens in emitted or failed blocks
	UnknownFields int
	// Err is the file-level failure that ended the pass, nil on clean EOF
	Err error
}

// New creates a Dumper writing to emitter
func New(emitter *output.Emitter, opts ...Option) *Dumper {
	d := &Dumper{emitter: emitter}
	for _, opt := range opts {
		opt(d)
	}
	if d.base == nil {
		d.base = logging.Global()
	}
	d.logger = d.base.WithComponent("dump")
	return d
}

// Run dumps every file in order. File-level failures are logged and
// skipped; emitter failures stop the run and are returned.
func (d *Dumper) Run(ctx context.Context, paths []string) (types.DumpStats, error) {
	var stats types.DumpStats

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		res, err := d.DumpFile(path, 0)
		stats.Files++
		stats.Records += int64(res.Emitted)
		stats.UnknownFields += int64(res.UnknownFields)
		if err != nil {
			return stats, err
		}

		if res.Err != nil {
			stats.FilesFailed++
			d.logFailure(path, res)
			d.countFile("failed", FailureReason(res.Err))
			continue
		}
		d.countFile("ok", "")
	}

	if err := d.emitter.Flush(); err != nil {
		return stats, fmt.Errorf("failed to flush output: %w", err)
	}

	if d.metrics != nil {
		d.metrics.LastRunTimestamp.SetToCurrentTime()
	}

	d.logger.Info().
		Int64("files", stats.Files).
		Int64("files_failed", stats.FilesFailed).
		Int64("records", stats.Records).
		Int64("unknown_fields", stats.UnknownFields).
		Msg("Dump complete")

	return stats, nil
}

// DumpFile parses path and emits its records, skipping the first skip
// complete blocks. Extra parser options are applied after the Dumper's own.
// The file is closed before returning. The returned error is non-nil only
// when the emitter fails; parse and open failures are reported in
// FileResult.Err.
func (d *Dumper) DumpFile(path string, skip int, opts ...parser.Option) (FileResult, error) {
	var res FileResult

	start := time.Now()
	defer func() {
		if d.metrics != nil {
			d.metrics.ParseDuration.Observe(time.Since(start).Seconds())
		}
	}()

	file, err := os.Open(path)
	if err != nil {
		res.Err = fmt.Errorf("failed to open log file: %w", err)
		return res, nil
	}
	defer file.Close()

	var pending []string
	parserOpts := append([]parser.Option{
		parser.WithLogger(d.base.WithComponent("parser")),
		parser.WithUnknownFieldHook(func(token string) {
			pending = append(pending, token)
		}),
	}, opts...)
	s := parser.New(file, path, parserOpts...)

	for s.Next() {
		rec := s.Record()
		res.Parsed++
		if res.Parsed <= skip {
			pending = pending[:0]
			continue
		}

		if err := d.emitter.Emit(rec); err != nil {
			return res, fmt.Errorf("failed to emit record from %s: %w", path, err)
		}
		res.Emitted++
		d.countRecord(rec, pending)
		res.UnknownFields += len(pending)
		pending = pending[:0]
	}

	res.Err = s.Err()
	if res.Err != nil {
		d.countUnknown(pending)
		res.UnknownFields += len(pending)
	}
	return res, nil
}

// FailureReason classifies a file-level failure for metrics and logs
func FailureReason(err error) string {
	var perr *parser.ParseError
	switch {
	case errors.As(err, &perr):
		return perr.Kind.String()
	case errors.Is(err, os.ErrNotExist):
		return "not_found"
	case errors.Is(err, os.ErrPermission):
		return "permission"
	default:
		return "io"
	}
}

func (d *Dumper) logFailure(path string, res FileResult) {
	event := d.logger.Warn().
		Err(res.Err).
		Str("file", path).
		Str("reason", FailureReason(res.Err)).
		Int("records_kept", res.Emitted)

	var perr *parser.ParseError
	if errors.As(res.Err, &perr) {
		event = event.Int("line", perr.Line)
	}
	event.Msg("Abandoning rest of log file")
}

func (d *Dumper) countFile(status, reason string) {
	if d.metrics == nil {
		return
	}
	d.metrics.FilesProcessed.WithLabelValues(status).Inc()
	if reason != "" {
		d.metrics.FileFailures.WithLabelValues(reason).Inc()
	}
}

func (d *Dumper) countRecord(rec *types.LogRecord, unknown []string) {
	if d.metrics == nil {
		return
	}
	d.metrics.RecordsEmitted.WithLabelValues(d.emitter.SinkName()).Inc()
	d.metrics.ObserveCommand(rec.Cmd, rec.Duration, rec.ExitStatus)
	d.countUnknown(unknown)
}

func (d *Dumper) countUnknown(tokens []string) {
	if d.metrics == nil {
		return
	}
	for _, token := range tokens {
		prefix, _, _ := strings.Cut(token, ":")
		d.metrics.UnknownFields.WithLabelValues(prefix).Inc()
	}
}
