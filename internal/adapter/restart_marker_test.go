package adapter

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	m "github.com/livngcorpse/jarvis/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCBORRestartMarkerStore_WriteCheckClear(t *testing.T) {
	ctx := context.Background()
	path := m.Path(filepath.Join(t.TempDir(), ".jarvis", "restart.cbor"))

	store, err := NewCBORRestartMarkerStore(path, NewLocalAtomicFileWriter())
	require.NoError(t, err)

	_, ok, err := store.Check(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	marker := m.RestartMarker{
		Reason:      m.ReasonDependencyChanged,
		ExitCode:    m.ExitCodeDependencyChanged,
		Paths:       []string{"requirements.txt"},
		PreviousPID: 1234,
		UnixNano:    time.Now().UnixNano(),
	}
	require.NoError(t, store.Write(ctx, marker))

	got, ok, err := store.Check(ctx, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, marker, got)

	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx))

	_, ok, err = store.Check(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCBORRestartMarkerStore_StaleMarkerIsIgnored(t *testing.T) {
	ctx := context.Background()
	path := m.Path(filepath.Join(t.TempDir(), "restart.cbor"))

	store, err := NewCBORRestartMarkerStore(path, NewLocalAtomicFileWriter())
	require.NoError(t, err)

	require.NoError(t, store.Write(ctx, m.RestartMarker{
		Reason:   m.ReasonCriticalFile,
		ExitCode: m.ExitCodeCriticalFile,
		UnixNano: time.Now().Add(-time.Hour).UnixNano(),
	}))

	_, ok, err := store.Check(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = store.Check(ctx, 0)
	require.NoError(t, err)
	assert.True(t, ok, "zero max age disables the staleness window")
}
