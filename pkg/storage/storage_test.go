package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fluxo/siard-archiver/pkg/logger"
)

func TestPromoteMovesOutputs(t *testing.T) {
	work := t.TempDir()
	dest := filepath.Join(t.TempDir(), "out")
	m, err := NewManager(work, true, time.Hour, logger.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	dir, err := m.CreateRunDirectory(ctx, "run-1")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "db.siard"), []byte("zip"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "db_lobseg_1", "schema1"), 0755))

	promoted, err := m.Promote(ctx, "run-1", dest)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{
		filepath.Join(dest, "db.siard"),
		filepath.Join(dest, "db_lobseg_1"),
	}, promoted)
	require.NoDirExists(t, dir)

	_, err = m.GetRunDirectory("run-1")
	require.Error(t, err)

	size, err := Size(dest)
	require.NoError(t, err)
	require.EqualValues(t, 3, size)
}

func TestPromoteRefusesToOverwrite(t *testing.T) {
	dest := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dest, "db.siard"), []byte("old"), 0644))

	m, err := NewManager(t.TempDir(), true, 0, nil)
	require.NoError(t, err)
	ctx := context.Background()
	dir, err := m.CreateRunDirectory(ctx, "run-2")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "db.siard"), []byte("new"), 0644))

	_, err = m.Promote(ctx, "run-2", dest)
	require.Error(t, err)

	data, err := os.ReadFile(filepath.Join(dest, "db.siard"))
	require.NoError(t, err)
	require.Equal(t, "old", string(data))
}

func TestDiscard(t *testing.T) {
	ctx := context.Background()

	m, err := NewManager(t.TempDir(), true, 0, nil)
	require.NoError(t, err)
	dir, err := m.CreateRunDirectory(ctx, "run-3")
	require.NoError(t, err)
	require.NoError(t, m.Discard(ctx, "run-3"))
	require.NoDirExists(t, dir)

	keep, err := NewManager(t.TempDir(), false, 0, nil)
	require.NoError(t, err)
	dir, err = keep.CreateRunDirectory(ctx, "run-4")
	require.NoError(t, err)
	require.NoError(t, keep.Discard(ctx, "run-4"))
	require.DirExists(t, dir)

	require.Error(t, keep.Discard(ctx, "unknown"))
}

func TestSweepRemovesExpiredRuns(t *testing.T) {
	work := t.TempDir()
	stale := filepath.Join(work, "stale")
	require.NoError(t, os.MkdirAll(stale, 0755))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	m, err := NewManager(work, true, 24*time.Hour, nil)
	require.NoError(t, err)
	require.NoDirExists(t, stale)

	live, err := m.CreateRunDirectory(context.Background(), "live")
	require.NoError(t, err)
	require.NoError(t, os.Chtimes(live, old, old))
	m.Sweep(time.Now())
	require.DirExists(t, live)

	require.NoError(t, m.CheckDiskSpace())
}
