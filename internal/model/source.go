// Package model holds the value types passed between the self-modification
// pipeline stages.
package model

import (
	"path"
	"sort"
	"strings"
)

// Path represents a file system path.
type Path string

// DevRequest is a single development instruction submitted by the front-end.
type DevRequest struct {
	Intent      string   `json:"intent" yaml:"intent"`
	TargetFiles []string `json:"target_files" yaml:"target_files"`
	Goal        string   `json:"goal" yaml:"goal"`
}

// ChangeSet maps a forward-slash relative path to its new full content.
type ChangeSet map[string]string

// Paths returns the change set keys in a stable order.
func (cs ChangeSet) Paths() []string {
	paths := make([]string, 0, len(cs))
	for p := range cs {
		paths = append(paths, p)
	}

	sort.Strings(paths)

	return paths
}

// NormalizePath converts a generator-supplied path into the canonical
// forward-slash form used as a ChangeSet key. It returns "" when nothing
// usable is left. Absolute paths stay absolute until the sandbox guard
// rekeys them against the project root.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.ReplaceAll(p, "\\", "/")

	if p == "" {
		return ""
	}

	cleaned := path.Clean(p)
	cleaned = strings.TrimPrefix(cleaned, "./")

	if cleaned == "." {
		return ""
	}

	return cleaned
}

// FileSnapshot records the state of one path before the live tree is touched.
type FileSnapshot struct {
	Path    string `yaml:"path"`
	Existed bool   `yaml:"existed"`
	Size    int64  `yaml:"size,omitempty"`
	Digest  string `yaml:"digest,omitempty"`
}

// BackupSet describes one timestamped snapshot directory.
type BackupSet struct {
	ID        string         `yaml:"id"`
	Dir       Path           `yaml:"-"`
	CreatedAt string         `yaml:"created_at"`
	Files     []FileSnapshot `yaml:"files"`
}

// StagedChange pairs a relative path with the location of its staged content.
type StagedChange struct {
	Path     string
	Location Path
}
