package domain

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/livngcorpse/jarvis/internal/adapter"
	m "github.com/livngcorpse/jarvis/internal/model"
	"gopkg.in/yaml.v3"
)

// ManifestName is the per-backup metadata file. It is never restored.
const ManifestName = ".manifest.yaml"

const backupIDLayout = "20060102T150405.000000000"

// BackupStore snapshots files before they are mutated and restores them on
// failure.
type BackupStore interface {
	// Snapshot copies every existing path into a new timestamped backup.
	Snapshot(ctx context.Context, paths []string) (m.BackupSet, error)
	// Restore copies the files of backup back under the project root and
	// removes files that did not exist when the snapshot was taken.
	Restore(ctx context.Context, backupID string) error
	// Rotate deletes the oldest backups beyond maxKept and returns how many
	// remain.
	Rotate(ctx context.Context, maxKept int) (int, error)
	// List returns the backups, oldest first.
	List(ctx context.Context) ([]m.BackupSet, error)
	// Latest returns the newest backup.
	Latest(ctx context.Context) (m.BackupSet, error)
}

// ErrNoBackups is returned by Latest when nothing has been captured yet.
var ErrNoBackups = errors.New("no backups available")

type backupStore struct {
	fs          adapter.SourceFSAdapter
	writer      adapter.AtomicFileWriter
	projectRoot m.Path
	backupRoot  m.Path
	now         func() time.Time
}

// NewBackupStore creates a store keeping snapshots of projectRoot files under
// backupRoot.
func NewBackupStore(fsAdapter adapter.SourceFSAdapter, writer adapter.AtomicFileWriter, projectRoot, backupRoot m.Path) BackupStore {
	return &backupStore{
		fs:          fsAdapter,
		writer:      writer,
		projectRoot: projectRoot,
		backupRoot:  backupRoot,
		now:         time.Now,
	}
}

func (b *backupStore) Snapshot(ctx context.Context, paths []string) (m.BackupSet, error) {
	if err := b.fs.MkdirAll(ctx, b.backupRoot); err != nil {
		return m.BackupSet{}, fmt.Errorf("failed to create backup root: %w", err)
	}

	id, dir, err := b.newBackupDir(ctx)
	if err != nil {
		return m.BackupSet{}, err
	}

	set := m.BackupSet{ID: id, Dir: dir, CreatedAt: b.now().UTC().Format(time.RFC3339Nano)}

	for _, rel := range paths {
		if !filepath.IsLocal(filepath.FromSlash(rel)) {
			return set, fmt.Errorf("failed to snapshot %s: path is not relative to the project root", rel)
		}

		snaps, err := b.snapshotPath(ctx, dir, rel)
		if err != nil {
			slog.Error("Failed to snapshot path", "path", rel, "backup", id, "error", err)
			return set, fmt.Errorf("failed to snapshot %s: %w", rel, err)
		}

		set.Files = append(set.Files, snaps...)
	}

	if err := b.writeManifest(ctx, set); err != nil {
		return set, err
	}

	slog.Info("Created backup", "backup", id, "files", len(set.Files))

	return set, nil
}

func (b *backupStore) newBackupDir(ctx context.Context) (string, m.Path, error) {
	stamp := b.now().UTC()

	for i := 0; i < 100; i++ {
		id := stamp.Format(backupIDLayout)
		if i > 0 {
			id = fmt.Sprintf("%s-%02d", id, i)
		}

		dir := b.fs.JoinPath(ctx, string(b.backupRoot), id)

		err := os.Mkdir(string(dir), 0o755)
		if err == nil {
			return id, dir, nil
		}

		if !errors.Is(err, fs.ErrExist) {
			return "", "", fmt.Errorf("failed to create backup dir: %w", err)
		}
	}

	return "", "", fmt.Errorf("failed to allocate backup dir for %s", stamp.Format(backupIDLayout))
}

// snapshotPath mirrors rel, a file or a directory, into dir.
func (b *backupStore) snapshotPath(ctx context.Context, dir m.Path, rel string) ([]m.FileSnapshot, error) {
	live := b.fs.JoinPath(ctx, string(b.projectRoot), filepath.FromSlash(rel))

	info, err := b.fs.FileInfo(ctx, live)
	if errors.Is(err, fs.ErrNotExist) {
		return []m.FileSnapshot{{Path: rel, Existed: false}}, nil
	}

	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		snap, err := b.copyIn(ctx, dir, rel)
		if err != nil {
			return nil, err
		}

		return []m.FileSnapshot{snap}, nil
	}

	var snaps []m.FileSnapshot

	err = b.fs.WalkFiles(ctx, live, func(path m.Path) error {
		sub, err := b.fs.RelPath(ctx, b.projectRoot, path)
		if err != nil {
			return err
		}

		snap, err := b.copyIn(ctx, dir, filepath.ToSlash(string(sub)))
		if err != nil {
			return err
		}

		snaps = append(snaps, snap)

		return nil
	})

	return snaps, err
}

func (b *backupStore) copyIn(ctx context.Context, dir m.Path, rel string) (m.FileSnapshot, error) {
	src := b.fs.JoinPath(ctx, string(b.projectRoot), filepath.FromSlash(rel))
	dst := b.fs.JoinPath(ctx, string(dir), filepath.FromSlash(rel))

	if err := b.fs.CopyFile(ctx, src, dst); err != nil {
		return m.FileSnapshot{}, err
	}

	digest, err := b.fs.HashFile(ctx, dst)
	if err != nil {
		return m.FileSnapshot{}, err
	}

	info, err := b.fs.FileInfo(ctx, dst)
	if err != nil {
		return m.FileSnapshot{}, err
	}

	return m.FileSnapshot{Path: rel, Existed: true, Size: info.Size(), Digest: digest}, nil
}

func (b *backupStore) writeManifest(ctx context.Context, set m.BackupSet) error {
	data, err := yaml.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to encode backup manifest: %w", err)
	}

	path := b.fs.JoinPath(ctx, string(set.Dir), ManifestName)
	if err := b.writer.Write(ctx, path, data); err != nil {
		return fmt.Errorf("failed to write backup manifest: %w", err)
	}

	return nil
}

func (b *backupStore) readManifest(ctx context.Context, dir m.Path) (m.BackupSet, error) {
	data, err := b.fs.ReadFile(ctx, b.fs.JoinPath(ctx, string(dir), ManifestName))
	if err != nil {
		return m.BackupSet{}, err
	}

	var set m.BackupSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return m.BackupSet{}, fmt.Errorf("failed to decode backup manifest: %w", err)
	}

	set.Dir = dir

	return set, nil
}

func (b *backupStore) Restore(ctx context.Context, backupID string) error {
	if backupID == "" || strings.ContainsAny(backupID, `/\`) || backupID == "." || backupID == ".." {
		return fmt.Errorf("%w: invalid backup id %q", m.ErrRollbackFailure, backupID)
	}

	dir := b.fs.JoinPath(ctx, string(b.backupRoot), backupID)

	manifest, manifestErr := b.readManifest(ctx, dir)
	if manifestErr != nil && !errors.Is(manifestErr, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", m.ErrRollbackFailure, manifestErr)
	}

	digests := make(map[string]string, len(manifest.Files))
	for _, f := range manifest.Files {
		if f.Existed {
			digests[f.Path] = f.Digest
		}
	}

	var errs []error

	walkErr := b.fs.WalkFiles(ctx, dir, func(path m.Path) error {
		rel, err := b.fs.RelPath(ctx, dir, path)
		if err != nil {
			return err
		}

		relSlash := filepath.ToSlash(string(rel))
		if relSlash == ManifestName {
			return nil
		}

		if want, ok := digests[relSlash]; ok && want != "" {
			got, err := b.fs.HashFile(ctx, path)
			if err != nil || got != want {
				errs = append(errs, fmt.Errorf("backup copy of %s is corrupt", relSlash))
				return nil
			}
		}

		target := b.fs.JoinPath(ctx, string(b.projectRoot), string(rel))

		content, err := b.fs.ReadFile(ctx, path)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", relSlash, err))
			return nil
		}

		if err := b.writer.Write(ctx, target, content); err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", relSlash, err))
		}

		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}

	for _, f := range manifest.Files {
		if f.Existed {
			continue
		}

		target := b.fs.JoinPath(ctx, string(b.projectRoot), filepath.FromSlash(f.Path))
		if err := b.fs.Remove(ctx, target); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", f.Path, err))
		}
	}

	if len(errs) > 0 {
		err := errors.Join(errs...)
		slog.Error("Failed to restore backup", "backup", backupID, "error", err)

		return fmt.Errorf("%w: %w", m.ErrRollbackFailure, err)
	}

	slog.Info("Restored backup", "backup", backupID)

	return nil
}

type backupDirEntry struct {
	name    string
	modTime time.Time
}

func (b *backupStore) listDirs(ctx context.Context) ([]backupDirEntry, error) {
	entries, err := b.fs.ReadDir(ctx, b.backupRoot)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}

	dirs := make([]backupDirEntry, 0, len(entries))

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		dirs = append(dirs, backupDirEntry{name: entry.Name(), modTime: info.ModTime()})
	}

	sort.Slice(dirs, func(i, j int) bool {
		if !dirs[i].modTime.Equal(dirs[j].modTime) {
			return dirs[i].modTime.Before(dirs[j].modTime)
		}

		return dirs[i].name < dirs[j].name
	})

	return dirs, nil
}

func (b *backupStore) Rotate(ctx context.Context, maxKept int) (int, error) {
	dirs, err := b.listDirs(ctx)
	if err != nil {
		return 0, err
	}

	if maxKept < 0 {
		maxKept = 0
	}

	excess := len(dirs) - maxKept
	if excess <= 0 {
		return len(dirs), nil
	}

	var errs []error

	for _, d := range dirs[:excess] {
		path := b.fs.JoinPath(ctx, string(b.backupRoot), d.name)
		if err := b.fs.RemoveAll(ctx, path); err != nil {
			errs = append(errs, err)
			continue
		}

		slog.Info("Removed old backup", "backup", d.name)
	}

	return len(dirs) - excess + len(errs), errors.Join(errs...)
}

func (b *backupStore) List(ctx context.Context) ([]m.BackupSet, error) {
	dirs, err := b.listDirs(ctx)
	if err != nil {
		return nil, err
	}

	sets := make([]m.BackupSet, 0, len(dirs))

	for _, d := range dirs {
		dir := b.fs.JoinPath(ctx, string(b.backupRoot), d.name)

		set, err := b.readManifest(ctx, dir)
		if err != nil {
			set = m.BackupSet{Dir: dir, CreatedAt: d.modTime.UTC().Format(time.RFC3339Nano)}
		}

		set.ID = d.name
		sets = append(sets, set)
	}

	return sets, nil
}

func (b *backupStore) Latest(ctx context.Context) (m.BackupSet, error) {
	sets, err := b.List(ctx)
	if err != nil {
		return m.BackupSet{}, err
	}

	if len(sets) == 0 {
		return m.BackupSet{}, ErrNoBackups
	}

	return sets[len(sets)-1], nil
}
