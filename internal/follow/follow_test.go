package follow

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/vcslog/internal/checkpoint"
	"github.com/therealutkarshpriyadarshi/vcslog/internal/dump"
	"github.com/therealutkarshpriyadarshi/vcslog/internal/logging"
	"github.com/therealutkarshpriyadarshi/vcslog/internal/output"
)

// syncBuffer is written from the Run goroutine and read by the test
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	dir  string
	out  *syncBuffer
	logs *syncBuffer
	ckpt *checkpoint.Manager
	f    *Follower
}

func newFixture(t *testing.T, checkpointFile string) *fixture {
	t.Helper()

	fx := &fixture{
		dir:  t.TempDir(),
		out:  &syncBuffer{},
		logs: &syncBuffer{},
		ckpt: checkpoint.NewManager(checkpointFile),
	}
	require.NoError(t, fx.ckpt.Load())

	logger := logging.New(logging.Config{Level: "debug", Format: "json", Output: fx.logs})
	emitter := output.NewEmitter(output.NewCSVSink(fx.out))
	dumper := dump.New(emitter, dump.WithLogger(logger))

	f, err := New(fx.dir, "", dumper, fx.ckpt, logger)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	fx.f = f
	return fx
}

func (fx *fixture) rows(t *testing.T) [][]string {
	t.Helper()
	rows, err := csv.NewReader(strings.NewReader(fx.out.String())).ReadAll()
	require.NoError(t, err)
	return rows
}

func appendLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	defer file.Close()
	for _, line := range lines {
		_, err := file.WriteString(line + "\n")
		require.NoError(t, err)
	}
}

func TestProcess_WaitsForCompleteBlock(t *testing.T) {
	fx := newFixture(t, "")
	path := filepath.Join(fx.dir, "vcslog-git-100")

	appendLines(t, path, "start: 0.02 1000.0", "cmd: git status")
	require.NoError(t, fx.f.Process(path))
	assert.Empty(t, fx.out.String())
	assert.Contains(t, fx.logs.String(), "Block still in progress")

	appendLines(t, path, "end: 1000.25 s:0 ut:0.01 st:0.02")
	require.NoError(t, fx.f.Process(path))
	rows := fx.rows(t)
	require.Len(t, rows, 2)
	assert.Equal(t, "git status", rows[1][0])
	assert.Equal(t, "0.25", rows[1][1])

	require.NoError(t, fx.f.Process(path))
	assert.Len(t, fx.rows(t), 2, "records are emitted once")

	appendLines(t, path, "start: 0.02 2000.0", "cmd: git log", "end: 2001.0 s:0 ut:0.01 st:0.02")
	require.NoError(t, fx.f.Process(path))
	rows = fx.rows(t)
	require.Len(t, rows, 3)
	assert.Equal(t, "git log", rows[2][0])

	pos, ok := fx.ckpt.GetPosition(path)
	require.True(t, ok)
	assert.Equal(t, 2, pos.Records)
}

func TestProcess_MalformedReportedOnce(t *testing.T) {
	fx := newFixture(t, "")
	path := filepath.Join(fx.dir, "vcslog-git-100")

	appendLines(t, path, "bogus line")
	require.NoError(t, fx.f.Process(path))
	require.NoError(t, fx.f.Process(path))

	assert.Equal(t, 1, strings.Count(fx.logs.String(), "Log file malformed"))
	assert.Contains(t, fx.logs.String(), `"reason":"unexpected_line"`)
	assert.Empty(t, fx.out.String())
}

func TestProcess_MissingFileForgotten(t *testing.T) {
	fx := newFixture(t, "")
	path := filepath.Join(fx.dir, "vcslog-git-100")
	fx.ckpt.Update(path, 3, 1)

	require.NoError(t, fx.f.Process(path))
	_, ok := fx.ckpt.GetPosition(path)
	assert.False(t, ok)
}

func TestCatchUp_PersistsCheckpoint(t *testing.T) {
	ckptFile := filepath.Join(t.TempDir(), "follow.json")
	fx := newFixture(t, ckptFile)

	path := filepath.Join(fx.dir, "vcslog-hg-1")
	appendLines(t, path, "start: 0.02 10.0", "cmd: hg pull", "end: 12.0 s:0 ut:0.1 st:0.1")
	require.NoError(t, fx.f.CatchUp([]string{path}))
	require.Len(t, fx.rows(t), 2)

	// A restarted follower resumes after the records already emitted
	restarted := newFixture(t, ckptFile)
	require.NoError(t, restarted.f.Process(path))
	assert.Empty(t, restarted.out.String())

	appendLines(t, path, "start: 0.02 20.0", "cmd: hg push", "end: 21.0 s:1 ut:0.1 st:0.1")
	require.NoError(t, restarted.f.Process(path))
	rows := restarted.rows(t)
	require.Len(t, rows, 2)
	assert.Equal(t, "hg push", rows[1][0])
}

func TestRun_EmitsAppendedRecords(t *testing.T) {
	fx := newFixture(t, "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fx.f.Run(ctx) }()

	path := filepath.Join(fx.dir, "vcslog-git-7")
	appendLines(t, path, "start: 0.02 1.0", "cmd: git fetch", "end: 3.0 s:0 ut:0.1 st:0.1")
	appendLines(t, filepath.Join(fx.dir, "notes.txt"), "ignored")

	require.Eventually(t, func() bool {
		return strings.Contains(fx.out.String(), "git fetch")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	assert.Equal(t, 1, strings.Count(fx.out.String(), "git fetch"))
	assert.NotContains(t, fx.out.String(), "ignored")
	assert.Contains(t, fx.logs.String(), `"dir":"`+fx.dir+`"`)
}

func TestNew_MissingDir(t *testing.T) {
	emitter := output.NewEmitter(output.NewCSVSink(&bytes.Buffer{}))
	dumper := dump.New(emitter, dump.WithLogger(logging.Nop()))

	_, err := New(filepath.Join(t.TempDir(), "absent"), "", dumper, checkpoint.NewManager(""), logging.Nop())
	assert.Error(t, err)
}

func TestSkipExisting(t *testing.T) {
	fx := newFixture(t, "")
	path := filepath.Join(fx.dir, "vcslog-svn-3")
	appendLines(t, path, "start: 0.02 1.0", "cmd: svn up", "end: 2.0 s:0 ut:0.1 st:0.1", "start: 0.02 3.0")

	require.NoError(t, fx.f.SkipExisting([]string{path}))
	assert.Empty(t, fx.out.String())

	appendLines(t, path, "cmd: svn commit", "end: 4.0 s:0 ut:0.1 st:0.1")
	require.NoError(t, fx.f.Process(path))
	rows := fx.rows(t)
	require.Len(t, rows, 2)
	assert.Equal(t, "svn commit", rows[1][0])
}

func TestProcess_SplitWriteWaitsForNewline(t *testing.T) {
	fx := newFixture(t, "")
	path := filepath.Join(fx.dir, "vcslog-git-100")

	appendLines(t, path, "start: 0.02 1000.0", "cmd: git status")
	appendRaw(t, path, "end: 1000.5 s:0")
	require.NoError(t, fx.f.Process(path))
	assert.Empty(t, fx.out.String())
	assert.Equal(t, 0, fx.ckpt.Records(path, inodeOf(t, path)))

	appendRaw(t, path, " ut:0.1 st:0.05\n")
	require.NoError(t, fx.f.Process(path))
	rows := fx.rows(t)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{
		"cmd", "duration", "end_time", "exit_status", "filename",
		"start_time", "system_time", "user_time", "vcslog_version",
	}, rows[0])
	assert.Equal(t, "git status", rows[1][0])
	assert.Equal(t, "0.05", rows[1][6])
	assert.Equal(t, "0.1", rows[1][7])
}

func appendRaw(t *testing.T, path, text string) {
	t.Helper()
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	defer file.Close()
	_, err = file.WriteString(text)
	require.NoError(t, err)
}

func inodeOf(t *testing.T, path string) uint64 {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return getInode(info)
}
