package env

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const (
	// HomeEnv overrides the vcslog home directory
	HomeEnv = "VCSLOG_HOME"

	// DefaultPattern matches the wrapper's vcslog-<exec>-<pid> log names
	DefaultPattern = "vcslog-*"
)

// Components of the vcslog home directory
const (
	ComponentSrc  = "src"
	ComponentBin  = "bin"
	ComponentLogs = "logs"
)

// Environment locates the directories the wrapper writes into
type Environment struct {
	basedir string
}

// New creates an Environment rooted at basedir
func New(basedir string) *Environment {
	return &Environment{basedir: basedir}
}

// FromEnv resolves the home from $VCSLOG_HOME, falling back to ~/.vcslog
func FromEnv() (*Environment, error) {
	if home := os.Getenv(HomeEnv); home != "" {
		return New(home), nil
	}

	userHome, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return New(filepath.Join(userHome, ".vcslog")), nil
}

// Basedir returns the vcslog home directory
func (e *Environment) Basedir() string {
	return e.basedir
}

// Path joins a home component with the remaining path elements
func (e *Environment) Path(component string, rest ...string) (string, error) {
	switch component {
	case ComponentSrc, ComponentBin, ComponentLogs:
	default:
		return "", fmt.Errorf("unknown component: %s", component)
	}

	elems := append([]string{e.basedir, component}, rest...)
	return filepath.Join(elems...), nil
}

// LogsDir returns the directory holding per-invocation log files
func (e *Environment) LogsDir() string {
	return filepath.Join(e.basedir, ComponentLogs)
}

// LogFiles lists log files in the logs directory matching pattern.
// Directories are skipped. With sorted unset the order is whatever the
// glob returns.
func (e *Environment) LogFiles(pattern string, sorted bool) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}

	logsDir := e.LogsDir()
	if _, err := os.Stat(logsDir); err != nil {
		return nil, fmt.Errorf("log directory unavailable: %w", err)
	}

	matches, err := filepath.Glob(filepath.Join(logsDir, pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid log file pattern %q: %w", pattern, err)
	}

	files := matches[:0]
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, m)
	}

	if sorted {
		sort.Strings(files)
	}
	return files, nil
}

// MatchLogFile reports whether name (a base name) is a log file under pattern
func MatchLogFile(pattern, name string) bool {
	if pattern == "" {
		pattern = DefaultPattern
	}
	ok, err := filepath.Match(pattern, name)
	return err == nil && ok
}
