package dump

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/vcslog/internal/logging"
	"github.com/therealutkarshpriyadarshi/vcslog/internal/metrics"
	"github.com/therealutkarshpriyadarshi/vcslog/internal/output"
	"github.com/therealutkarshpriyadarshi/vcslog/internal/parser"
	"github.com/therealutkarshpriyadarshi/vcslog/pkg/types"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func fullRecord(cmd string, start float64, status int) *types.LogRecord {
	return &types.LogRecord{
		Version:    "vcslog-wrapper-0.02",
		StartTime:  start,
		Cmd:        cmd,
		EndTime:    start + 0.5,
		ExitStatus: intPtr(status),
		UserTime:   floatPtr(0.1),
		SystemTime: floatPtr(0.05),
	}
}

// writeLog writes the encoded records followed by any raw trailing lines
func writeLog(t *testing.T, dir, name string, recs []*types.LogRecord, trailing ...string) string {
	t.Helper()

	var buf bytes.Buffer
	for _, rec := range recs {
		require.NoError(t, parser.Encode(&buf, rec))
	}
	for _, line := range trailing {
		buf.WriteString(line + "\n")
	}

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func newTestDumper(t *testing.T, out *bytes.Buffer, logs *bytes.Buffer, opts ...Option) *Dumper {
	t.Helper()
	logger := logging.New(logging.Config{Level: "debug", Format: "json", Output: logs})
	emitter := output.NewEmitter(output.NewCSVSink(out))
	return New(emitter, append([]Option{WithLogger(logger)}, opts...)...)
}

func TestRun_RecoversPerFile(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeLog(t, dir, "vcslog-git-1", []*types.LogRecord{
			fullRecord("git status", 1000, 0),
			fullRecord("git log", 1010, 0),
		}),
		writeLog(t, dir, "vcslog-git-2", []*types.LogRecord{
			fullRecord("git push", 2000, 1),
		}, "start: 0.02 2010.0", "cmd: git pull", "bogus"),
		writeLog(t, dir, "vcslog-hg-3", nil, "start: 0.02 3000.0", "cmd: hg status"),
		writeLog(t, dir, "vcslog-svn-4", []*types.LogRecord{
			fullRecord("svn up", 4000, 0),
		}),
	}

	var out, logs bytes.Buffer
	d := newTestDumper(t, &out, &logs)

	stats, err := d.Run(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, types.DumpStats{Files: 4, FilesFailed: 2, Records: 4}, stats)

	rows, err := csv.NewReader(&out).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{
		"cmd", "duration", "end_time", "exit_status", "filename",
		"start_time", "system_time", "user_time", "vcslog_version",
	}, rows[0])

	var cmds []string
	for _, row := range rows[1:] {
		cmds = append(cmds, row[0])
		assert.Len(t, row, len(rows[0]))
	}
	assert.Equal(t, []string{"git status", "git log", "git push", "svn up"}, cmds)

	assert.Equal(t, 2, strings.Count(logs.String(), "Abandoning rest of log file"))
	assert.Contains(t, logs.String(), `"reason":"unexpected_line"`)
	assert.Contains(t, logs.String(), `"reason":"truncated"`)
	assert.Contains(t, logs.String(), `"line":5`)
	assert.Contains(t, logs.String(), `"line":1`)
}

func TestRun_MissingFileIsFileLevel(t *testing.T) {
	dir := t.TempDir()
	good := writeLog(t, dir, "vcslog-git-1", []*types.LogRecord{fullRecord("git status", 1, 0)})

	var out, logs bytes.Buffer
	d := newTestDumper(t, &out, &logs)

	stats, err := d.Run(context.Background(), []string{filepath.Join(dir, "vcslog-gone-1"), good})
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Files)
	assert.Equal(t, int64(1), stats.FilesFailed)
	assert.Equal(t, int64(1), stats.Records)
	assert.Contains(t, logs.String(), `"reason":"not_found"`)
}

func TestRun_SchemaViolationStopsRun(t *testing.T) {
	dir := t.TempDir()
	bare := &types.LogRecord{Version: "0.01", StartTime: 5, Cmd: "cvs up", EndTime: 6}
	files := []string{
		writeLog(t, dir, "vcslog-git-1", []*types.LogRecord{fullRecord("git status", 1, 0)}),
		writeLog(t, dir, "vcslog-cvs-2", []*types.LogRecord{bare}),
		writeLog(t, dir, "vcslog-git-3", []*types.LogRecord{fullRecord("git log", 9, 0)}),
	}

	var out, logs bytes.Buffer
	d := newTestDumper(t, &out, &logs)

	stats, err := d.Run(context.Background(), files)
	require.Error(t, err)
	assert.ErrorIs(t, err, output.ErrSchemaViolation)
	assert.Equal(t, int64(2), stats.Files)
	assert.Equal(t, int64(1), stats.Records)
	assert.NotContains(t, out.String(), "git log")
}

func TestRun_ContextCancelled(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "vcslog-git-1", []*types.LogRecord{fullRecord("git status", 1, 0)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out, logs bytes.Buffer
	stats, err := newTestDumper(t, &out, &logs).Run(ctx, []string{path})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, stats.Files)
	assert.Empty(t, out.String())
}

func TestRun_NoFiles(t *testing.T) {
	var out, logs bytes.Buffer
	stats, err := newTestDumper(t, &out, &logs).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, stats)
	assert.Empty(t, out.String())
}

func TestRun_UnknownFieldsCounted(t *testing.T) {
	dir := t.TempDir()
	path := writeLog(t, dir, "vcslog-git-1", nil,
		"start: 0.02 1000.0", "cmd: git status", "end: 1000.5 zz:99 s:0 ut:0.1 st:0.05 qq:1",
	)

	collector := metrics.NewCollector()
	var out, logs bytes.Buffer
	d := newTestDumper(t, &out, &logs, WithMetrics(collector))

	stats, err := d.Run(context.Background(), []string{path})
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.UnknownFields)
	assert.Equal(t, 2, strings.Count(logs.String(), "Unknown field prefix"))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.UnknownFields.WithLabelValues("zz")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.UnknownFields.WithLabelValues("qq")))
	assert.NotContains(t, out.String(), "zz")
}

func TestRun_Metrics(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeLog(t, dir, "vcslog-git-1", []*types.LogRecord{
			fullRecord("git status", 1, 0),
			fullRecord("git push", 2, 128),
		}),
		writeLog(t, dir, "vcslog-hg-2", nil, "start: 0.02 3.0"),
	}

	collector := metrics.NewCollector()
	var out, logs bytes.Buffer
	d := newTestDumper(t, &out, &logs, WithMetrics(collector))

	_, err := d.Run(context.Background(), files)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.FilesProcessed.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.FilesProcessed.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.FileFailures.WithLabelValues("truncated")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.RecordsEmitted.WithLabelValues("csv")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.CommandExits.WithLabelValues("git", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.CommandExits.WithLabelValues("git", "false")))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.ParseDuration))
	assert.NotZero(t, testutil.ToFloat64(collector.LastRunTimestamp))
}

func TestDumpFile_Skip(t *testing.T) {
	dir := t.TempDir()
	var recs []*types.LogRecord
	for i := 0; i < 4; i++ {
		recs = append(recs, fullRecord(fmt.Sprintf("git show HEAD~%d", i), float64(i*10), 0))
	}
	path := writeLog(t, dir, "vcslog-git-1", recs)

	var out, logs bytes.Buffer
	d := newTestDumper(t, &out, &logs)

	res, err := d.DumpFile(path, 3)
	require.NoError(t, err)
	assert.NoError(t, res.Err)
	assert.Equal(t, 4, res.Parsed)
	assert.Equal(t, 1, res.Emitted)
	assert.Contains(t, out.String(), "git show HEAD~3")
	assert.NotContains(t, out.String(), "git show HEAD~0")
}

func TestFailureReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&parser.ParseError{Kind: parser.KindTruncated, Err: errors.New("x")}, "truncated"},
		{fmt.Errorf("wrapped: %w", &parser.ParseError{Kind: parser.KindNumberFormat, Err: errors.New("x")}), "number_format"},
		{fmt.Errorf("open: %w", os.ErrNotExist), "not_found"},
		{fmt.Errorf("open: %w", os.ErrPermission), "permission"},
		{errors.New("short read"), "io"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FailureReason(tt.err))
	}
}
