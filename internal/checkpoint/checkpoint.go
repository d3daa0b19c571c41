package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/therealutkarshpriyadarshi/vcslog/pkg/types"
)

// Manager remembers how many records of each followed log file have
// already been emitted. With an empty file path it is memory only.
type Manager struct {
	mu        sync.RWMutex
	file      string
	positions map[string]*types.FilePosition
}

// NewManager creates a checkpoint manager persisting to file
func NewManager(file string) *Manager {
	return &Manager{
		file:      file,
		positions: make(map[string]*types.FilePosition),
	}
}

// Update records that the first records blocks of path have been emitted
func (m *Manager) Update(path string, records int, inode uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.positions[path] = &types.FilePosition{
		Path:    path,
		Records: records,
		Inode:   inode,
	}
}

// Records returns the emitted record count for path. A different inode
// means the file was replaced and counting starts over.
func (m *Manager) Records(path string, inode uint64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pos, ok := m.positions[path]
	if !ok || pos.Inode != inode {
		return 0
	}
	return pos.Records
}

// GetPosition retrieves the position for a file
func (m *Manager) GetPosition(path string) (*types.FilePosition, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pos, ok := m.positions[path]
	return pos, ok
}

// Forget drops a removed or renamed file
func (m *Manager) Forget(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.positions, path)
}

// Len returns the number of tracked files
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.positions)
}

// Load loads checkpoints from disk
func (m *Manager) Load() error {
	if m.file == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No checkpoint file yet
		}
		return fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var positions map[string]*types.FilePosition
	if err := json.Unmarshal(data, &positions); err != nil {
		return fmt.Errorf("failed to unmarshal checkpoint data: %w", err)
	}
	if positions == nil {
		positions = make(map[string]*types.FilePosition)
	}

	m.positions = positions
	return nil
}

// Save saves checkpoints to disk
func (m *Manager) Save() error {
	if m.file == "" {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	data, err := json.MarshalIndent(m.positions, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint data: %w", err)
	}

	// Write to temporary file first, then rename for atomicity
	tmpFile := m.file + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}

	if err := os.Rename(tmpFile, m.file); err != nil {
		return fmt.Errorf("failed to rename checkpoint file: %w", err)
	}

	return nil
}
