package follow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"

	"github.com/therealutkarshpriyadarshi/vcslog/internal/checkpoint"
	"github.com/therealutkarshpriyadarshi/vcslog/internal/dump"
	"github.com/therealutkarshpriyadarshi/vcslog/internal/env"
	"github.com/therealutkarshpriyadarshi/vcslog/internal/logging"
	"github.com/therealutkarshpriyadarshi/vcslog/internal/parser"
)

// Follower watches the logs directory and emits each record once its
// block is complete. Events are handled one at a time on the Run loop.
type Follower struct {
	pattern       string
	dumper        *dump.Dumper
	checkpointMgr *checkpoint.Manager
	logger        *logging.Logger
	watcher       *fsnotify.Watcher
	reported      map[string]string
}

// New creates a Follower for the log files in dir matching pattern
func New(dir, pattern string, dumper *dump.Dumper, checkpointMgr *checkpoint.Manager, logger *logging.Logger) (*Follower, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	if pattern == "" {
		pattern = env.DefaultPattern
	}

	return &Follower{
		pattern:       pattern,
		dumper:        dumper,
		checkpointMgr: checkpointMgr,
		logger:        logger.WithComponent("follow").WithField("dir", dir),
		watcher:       watcher,
		reported:      make(map[string]string),
	}, nil
}

// CatchUp processes files that already exist, in the given order
func (f *Follower) CatchUp(paths []string) error {
	for _, path := range paths {
		if err := f.Process(path); err != nil {
			return err
		}
	}
	f.save()
	return nil
}

// SkipExisting marks the complete records already in paths as emitted, so
// only blocks finished from now on are written.
func (f *Follower) SkipExisting(paths []string) error {
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		inode := getInode(info)

		res, err := f.dumper.DumpFile(path, math.MaxInt, parser.WithRequireNewline())
		if err != nil {
			return err
		}
		if res.Parsed > f.checkpointMgr.Records(path, inode) {
			f.checkpointMgr.Update(path, res.Parsed, inode)
		}
	}
	f.save()
	return nil
}

// Run handles watch events until ctx is done or the watcher is closed.
// Only emitter failures end it early.
func (f *Follower) Run(ctx context.Context) error {
	f.logger.Info().Str("pattern", f.pattern).Msg("Following log directory")

	for {
		select {
		case event, ok := <-f.watcher.Events:
			if !ok {
				f.save()
				return nil
			}
			if err := f.handleEvent(event); err != nil {
				return err
			}

		case err, ok := <-f.watcher.Errors:
			if !ok {
				f.save()
				return nil
			}
			f.logger.Error().Err(err).Msg("File watcher error")

		case <-ctx.Done():
			f.save()
			return nil
		}
	}
}

// Close stops the watcher
func (f *Follower) Close() error {
	return f.watcher.Close()
}

// Process emits the records of path not emitted yet. A trailing block that
// is still being written is left for a later event.
func (f *Follower) Process(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		f.forget(path)
		return nil
	}
	inode := getInode(info)

	skip := f.checkpointMgr.Records(path, inode)
	res, err := f.dumper.DumpFile(path, skip, parser.WithRequireNewline())
	if err != nil {
		return err
	}
	if res.Parsed != skip {
		f.checkpointMgr.Update(path, res.Parsed, inode)
	}
	if res.Emitted > 0 {
		f.logger.Debug().Str("file", path).Int("records", res.Emitted).Msg("Emitted records")
	}

	f.report(path, res)
	return nil
}

// handleEvent handles file system events
func (f *Follower) handleEvent(event fsnotify.Event) error {
	path := event.Name
	if !env.MatchLogFile(f.pattern, filepath.Base(path)) {
		return nil
	}

	switch {
	case event.Op&fsnotify.Create == fsnotify.Create,
		event.Op&fsnotify.Write == fsnotify.Write:
		if err := f.Process(path); err != nil {
			return err
		}
		f.save()

	case event.Op&fsnotify.Remove == fsnotify.Remove,
		event.Op&fsnotify.Rename == fsnotify.Rename:
		f.logger.Debug().Str("file", path).Msg("Log file removed")
		f.forget(path)
		f.save()
	}
	return nil
}

// report logs a file-level failure once per distinct failure of a file
func (f *Follower) report(path string, res dump.FileResult) {
	if res.Err == nil {
		delete(f.reported, path)
		return
	}

	msg := res.Err.Error()
	if f.reported[path] == msg {
		return
	}
	f.reported[path] = msg

	if errors.Is(res.Err, parser.ErrTruncated) {
		f.logger.Debug().Str("file", path).Msg("Block still in progress")
		return
	}
	f.logger.Warn().
		Err(res.Err).
		Str("file", path).
		Str("reason", dump.FailureReason(res.Err)).
		Msg("Log file malformed, waiting for it to change")
}

func (f *Follower) forget(path string) {
	f.checkpointMgr.Forget(path)
	delete(f.reported, path)
}

func (f *Follower) save() {
	if err := f.checkpointMgr.Save(); err != nil {
		f.logger.Warn().Err(err).Msg("Failed to save checkpoint")
	}
}

// getInode extracts inode from FileInfo
func getInode(fi os.FileInfo) uint64 {
	if stat, ok := fi.Sys().(*syscall.Stat_t); ok {
		return stat.Ino
	}
	return 0
}
