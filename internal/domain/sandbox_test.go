package domain

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	m "github.com/livngcorpse/jarvis/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSandboxGuard_Check(t *testing.T) {
	root := canonicalTempDir(t)
	outside := canonicalTempDir(t)

	writeFile(t, root, "app/util.py", "x = 1\n")
	outsideFile := writeFile(t, outside, "secret.txt", "secret")

	guard, err := NewSandboxGuard(m.Path(root), "", StagingDirName)
	require.NoError(t, err)

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "existing file", path: "app/util.py"},
		{name: "new file in new dir", path: "app/new/mod.py"},
		{name: "root itself", path: "."},
		{name: "absolute inside", path: filepath.Join(root, "app", "util.py")},
		{name: "parent traversal", path: "../escape.py", wantErr: true},
		{name: "nested traversal", path: "app/../../escape.py", wantErr: true},
		{name: "absolute outside", path: outsideFile, wantErr: true},
		{name: "reserved staging dir", path: ".staging/app/util.py", wantErr: true},
		{name: "empty", path: "  ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.Check(tt.path)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, m.ErrSandboxViolation))

			var violation *m.SandboxViolationError
			require.ErrorAs(t, err, &violation)
			assert.Equal(t, tt.path, violation.Path)
		})
	}
}

func TestSandboxGuard_Symlinks(t *testing.T) {
	root := canonicalTempDir(t)
	outside := canonicalTempDir(t)

	writeFile(t, root, "real.py", "x = 1\n")
	outsideFile := writeFile(t, outside, "target.py", "y = 2\n")

	require.NoError(t, os.Symlink(filepath.Join(root, "real.py"), filepath.Join(root, "inside.py")))
	require.NoError(t, os.Symlink(outsideFile, filepath.Join(root, "escape.py")))
	require.NoError(t, os.Symlink(filepath.Join(root, "missing.py"), filepath.Join(root, "dangling.py")))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "outdir")))

	guard, err := NewSandboxGuard(m.Path(root), "")
	require.NoError(t, err)

	assert.NoError(t, guard.Check("inside.py"))
	assert.ErrorIs(t, guard.Check("escape.py"), m.ErrSandboxViolation)
	assert.ErrorIs(t, guard.Check("dangling.py"), m.ErrSandboxViolation)
	assert.ErrorIs(t, guard.Check("outdir/new.py"), m.ErrSandboxViolation)
}

func TestSandboxGuard_FileSizeLimit(t *testing.T) {
	root := canonicalTempDir(t)
	path := writeFile(t, root, "big.bin", "")
	require.NoError(t, os.Truncate(path, MaxFileSize+1))

	writeFile(t, root, "small.txt", "ok")

	guard, err := NewSandboxGuard(m.Path(root), "")
	require.NoError(t, err)

	err = guard.Check("big.bin")
	require.ErrorIs(t, err, m.ErrSandboxViolation)
	assert.Contains(t, err.Error(), "exceeds limit")
	assert.NoError(t, guard.Check("small.txt"))
}

func TestSandboxGuard_AllowedSubdirectory(t *testing.T) {
	root := canonicalTempDir(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "app"), 0o755))

	guard, err := NewSandboxGuard(m.Path(root), "app")
	require.NoError(t, err)

	assert.NoError(t, guard.Check("app"))
	assert.NoError(t, guard.Check("app/util.py"))
	assert.ErrorIs(t, guard.Check("main.py"), m.ErrSandboxViolation)
}

func TestSandboxGuard_EnforceStopsAtFirstViolation(t *testing.T) {
	root := canonicalTempDir(t)

	guard, err := NewSandboxGuard(m.Path(root), "")
	require.NoError(t, err)

	err = guard.Enforce([]string{"ok.py", "../first.py", "../second.py"})

	var violation *m.SandboxViolationError
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "../first.py", violation.Path)

	assert.NoError(t, guard.Enforce([]string{"a.py", "b/c.py"}))
}

func TestSandboxGuard_Resolve(t *testing.T) {
	root := canonicalTempDir(t)

	guard, err := NewSandboxGuard(m.Path(root), "")
	require.NoError(t, err)

	assert.Equal(t, m.Path(filepath.Join(root, "app", "util.py")), guard.Resolve("app/util.py"))
}

func TestNewSandboxGuard_MissingRoot(t *testing.T) {
	_, err := NewSandboxGuard(m.Path(filepath.Join(t.TempDir(), "nope")), "")
	require.Error(t, err)
}

func TestSandboxGuard_Relativize(t *testing.T) {
	root := canonicalTempDir(t)
	writeFile(t, root, "app/util.py", "x = 1\n")

	alias := filepath.Join(canonicalTempDir(t), "alias")
	require.NoError(t, os.Symlink(root, alias))

	guard, err := NewSandboxGuard(m.Path(root), "")
	require.NoError(t, err)

	got, err := guard.Relativize(m.ChangeSet{
		filepath.Join(root, "app", "util.py"): "a",
		filepath.Join(alias, "lib", "new.py"):  "b",
		"./docs//readme.md":                     "c",
	})
	require.NoError(t, err)
	assert.Equal(t, m.ChangeSet{"app/util.py": "a", "lib/new.py": "b", "docs/readme.md": "c"}, got)

	tests := []struct {
		name    string
		changes m.ChangeSet
	}{
		{"absolute outside root", m.ChangeSet{filepath.Join(filepath.Dir(root), "other.py"): "x"}},
		{"relative escape", m.ChangeSet{"app/../../other.py": "x"}},
		{"project root itself", m.ChangeSet{root: "x"}},
		{"same file twice", m.ChangeSet{"app/util.py": "a", filepath.Join(root, "app", "util.py"): "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := guard.Relativize(tt.changes)
			assert.ErrorIs(t, err, m.ErrSandboxViolation)
		})
	}
}
