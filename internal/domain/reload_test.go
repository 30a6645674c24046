package domain

import (
	"context"
	"testing"

	"github.com/livngcorpse/jarvis/internal/adapter"
	m "github.com/livngcorpse/jarvis/internal/model"
	"github.com/stretchr/testify/assert"
)

func defaultReloadConfig() ReloadConfig {
	return ReloadConfig{
		CriticalFiles:       []string{"main.py", "config.py", "main.go"},
		DependencyManifests: []string{"requirements.txt", "pyproject.toml", "go.mod", "go.sum", "package.json"},
		CompiledExtensions:  []string{".go"},
	}
}

func newTestDecider(t *testing.T, root string) *reloadDecider {
	t.Helper()

	d := NewReloadDecider(defaultReloadConfig(), adapter.NewLocalSourceParser(), adapter.NewLocalSourceFSAdapter(), m.Path(root))

	return d.(*reloadDecider)
}

func TestReloadDecider_Decide(t *testing.T) {
	d := newTestDecider(t, canonicalTempDir(t))

	tests := []struct {
		name     string
		paths    []string
		deps     bool
		mode     m.ReloadMode
		reason   m.ReloadReason
		exitCode int
		units    []string
	}{
		{
			name:  "plain module is soft",
			paths: []string{"app/util.py"},
			mode:  m.ReloadSoft, reason: m.ReasonNone, exitCode: 0,
			units: []string{"app.util"},
		},
		{
			name:  "critical entry point",
			paths: []string{"app/util.py", "main.py"},
			mode:  m.ReloadFull, reason: m.ReasonCriticalFile, exitCode: 42,
		},
		{
			name:  "critical basename in subdirectory",
			paths: []string{"pkg/config.py"},
			mode:  m.ReloadFull, reason: m.ReasonCriticalFile, exitCode: 42,
		},
		{
			name:  "dependency manifest",
			paths: []string{"requirements.txt"},
			mode:  m.ReloadFull, reason: m.ReasonDependencyChanged, exitCode: 43,
		},
		{
			name:  "manifest wins over critical file",
			paths: []string{"main.py", "go.mod"},
			mode:  m.ReloadFull, reason: m.ReasonDependencyChanged, exitCode: 43,
		},
		{
			name:  "heuristic dependency flag",
			paths: []string{"app/util.py"},
			deps:  true,
			mode:  m.ReloadFull, reason: m.ReasonDependencyChanged, exitCode: 43,
		},
		{
			name:  "compiled source",
			paths: []string{"internal/app/handler.go"},
			mode:  m.ReloadFull, reason: m.ReasonCriticalFile, exitCode: 42,
		},
		{
			name:  "config data is soft",
			paths: []string{"jarvis.yaml", "data/prompts.json"},
			mode:  m.ReloadSoft, reason: m.ReasonNone, exitCode: 0,
			units: []string{"jarvis", "data.prompts"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Decide(tt.paths, tt.deps)

			assert.Equal(t, tt.mode, got.Mode)
			assert.Equal(t, tt.reason, got.Reason)
			assert.Equal(t, tt.exitCode, got.ExitCode)
			assert.Equal(t, tt.units, got.Units)
		})
	}
}

func TestReloadDecider_DependenciesChanged(t *testing.T) {
	root := canonicalTempDir(t)
	writeFile(t, root, "app/__init__.py", "")
	writeFile(t, root, "helpers.py", "")
	writeFile(t, root, "go.mod", "module example.com/svc\n\ngo 1.22\n")

	d := newTestDecider(t, root)
	ctx := context.Background()

	tests := []struct {
		name    string
		changes m.ChangeSet
		want    bool
	}{
		{name: "manifest touched", changes: m.ChangeSet{"requirements.txt": "requests==2.31.0"}, want: true},
		{name: "stdlib only", changes: m.ChangeSet{"app/util.py": "import os, sys\nfrom collections import deque\n"}},
		{name: "local imports", changes: m.ChangeSet{"app/util.py": "import helpers\nfrom app import models\nfrom . import x\n"}},
		{name: "import of another changed file", changes: m.ChangeSet{
			"app/util.py": "import newmod\n",
			"newmod.py":   "x = 1\n",
		}},
		{name: "third-party python import", changes: m.ChangeSet{"app/util.py": "import requests\n"}, want: true},
		{name: "third-party aliased import", changes: m.ChangeSet{"app/util.py": "import os, numpy as np\n"}, want: true},
		{name: "go stdlib", changes: m.ChangeSet{"cmd/x.go": "package main\n\nimport \"fmt\"\n"}},
		{name: "go same module", changes: m.ChangeSet{"cmd/x.go": "package main\n\nimport \"example.com/svc/internal/app\"\n"}},
		{name: "go third-party", changes: m.ChangeSet{"cmd/x.go": "package main\n\nimport \"github.com/spf13/cobra\"\n"}, want: true},
		{name: "non-source file", changes: m.ChangeSet{"notes.md": "import requests"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.DependenciesChanged(ctx, tt.changes))
		})
	}
}

func TestUnitName(t *testing.T) {
	assert.Equal(t, "app.util", UnitName("app/util.py"))
	assert.Equal(t, "config", UnitName("config.yaml"))
	assert.Equal(t, "a.b.c", UnitName("a/b/c"))
}
