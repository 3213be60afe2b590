package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fluxo/siard-archiver/pkg/logger"
)

// Manager stages export runs in a work directory. An archive is built in
// its run directory and promoted to its destination only on success.
type Manager struct {
	workDir        string
	cleanupEnabled bool
	retention      time.Duration
	logger         *logger.Logger
	mu             sync.RWMutex
	runs           map[string]*RunInfo // runID -> RunInfo
}

// RunInfo describes the staging directory of one run
type RunInfo struct {
	Directory string
	CreatedAt time.Time
}

// NewManager creates a new storage manager and sweeps expired run
// directories left behind by earlier runs
func NewManager(workDir string, cleanupEnabled bool, retention time.Duration, log *logger.Logger) (*Manager, error) {
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}

	m := &Manager{
		workDir:        workDir,
		cleanupEnabled: cleanupEnabled,
		retention:      retention,
		logger:         log,
		runs:           make(map[string]*RunInfo),
	}

	if cleanupEnabled && retention > 0 {
		m.Sweep(time.Now())
	}
	return m, nil
}

// CreateRunDirectory creates the staging directory of a run
func (m *Manager) CreateRunDirectory(ctx context.Context, runID string) (string, error) {
	dir := filepath.Join(m.workDir, filepath.Base(runID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}

	m.mu.Lock()
	m.runs[runID] = &RunInfo{Directory: dir, CreatedAt: time.Now()}
	m.mu.Unlock()

	m.logger.WithContext(ctx).WithTaskID(runID).LogFileCreated(
		"Run directory created",
		logger.Fields{"path": dir},
	)
	return dir, nil
}

// GetRunDirectory returns the staging directory of a run
func (m *Manager) GetRunDirectory(runID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if info, exists := m.runs[runID]; exists {
		return info.Directory, nil
	}
	return "", fmt.Errorf("run directory not found for run: %s", runID)
}

// Promote moves every entry of the run directory into dest and removes
// the run directory. It returns the promoted paths.
func (m *Manager) Promote(ctx context.Context, runID string, dest string) ([]string, error) {
	dir, err := m.GetRunDirectory(runID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dest, 0755); err != nil {
		return nil, fmt.Errorf("failed to create destination: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list run directory: %w", err)
	}

	var promoted []string
	for _, e := range entries {
		from := filepath.Join(dir, e.Name())
		to := filepath.Join(dest, e.Name())
		if _, err := os.Stat(to); err == nil {
			return promoted, fmt.Errorf("destination already exists: %s", to)
		}
		if err := os.Rename(from, to); err != nil {
			return promoted, fmt.Errorf("failed to move %s: %w", e.Name(), err)
		}
		promoted = append(promoted, to)
	}

	m.forget(runID)
	if err := os.RemoveAll(dir); err != nil {
		return promoted, fmt.Errorf("failed to remove run directory: %w", err)
	}

	m.logger.WithContext(ctx).WithTaskID(runID).LogInfo(
		"RunPromoted",
		"Run outputs moved to destination",
		logger.Fields{"destination": dest, "files": len(promoted)},
	)
	return promoted, nil
}

// Discard removes the run directory and everything staged in it. When
// cleanup is disabled the directory is kept for inspection.
func (m *Manager) Discard(ctx context.Context, runID string) error {
	dir, err := m.GetRunDirectory(runID)
	if err != nil {
		return err
	}
	m.forget(runID)

	cl := m.logger.WithContext(ctx).WithTaskID(runID)
	if !m.cleanupEnabled {
		cl.LogWarn("RunKept", "Failed run kept for inspection", logger.Fields{"path": dir})
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete run directory: %w", err)
	}
	cl.LogInfo("RunDiscarded", "Run directory deleted", logger.Fields{"path": dir})
	return nil
}

func (m *Manager) forget(runID string) {
	m.mu.Lock()
	delete(m.runs, runID)
	m.mu.Unlock()
}

// CheckDiskSpace checks that the work directory is writable
func (m *Manager) CheckDiskSpace() error {
	testFile := filepath.Join(m.workDir, ".diskcheck")
	f, err := os.Create(testFile)
	if err != nil {
		return fmt.Errorf("work directory is not writable: %w", err)
	}
	f.Close()
	os.Remove(testFile)
	return nil
}

// Sweep removes run directories older than the retention that no live
// run owns
func (m *Manager) Sweep(now time.Time) {
	entries, err := os.ReadDir(m.workDir)
	if err != nil {
		return
	}

	m.mu.RLock()
	live := make(map[string]bool, len(m.runs))
	for _, info := range m.runs {
		live[info.Directory] = true
	}
	m.mu.RUnlock()

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(m.workDir, e.Name())
		if live[path] {
			continue
		}
		info, err := e.Info()
		if err != nil || now.Sub(info.ModTime()) <= m.retention {
			continue
		}
		if err := os.RemoveAll(path); err == nil {
			m.logger.WithContext(nil).LogInfo(
				"RunDirectoryCleanup",
				"Expired run directory cleaned up",
				logger.Fields{"path": path, "age": now.Sub(info.ModTime()).String()},
			)
		}
	}
}

// Size returns the total size of a file or directory tree
func Size(path string) (int64, error) {
	var total int64
	err := filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
