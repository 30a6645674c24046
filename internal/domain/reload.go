package domain

import (
	"context"
	"log/slog"
	"path"
	"strings"

	"github.com/livngcorpse/jarvis/internal/adapter"
	m "github.com/livngcorpse/jarvis/internal/model"
	"golang.org/x/mod/modfile"
)

// ReloadConfig lists the file names that force a full restart.
type ReloadConfig struct {
	CriticalFiles       []string
	DependencyManifests []string
	CompiledExtensions  []string
}

// ReloadDecider classifies committed changes as a soft reload or a full
// restart.
type ReloadDecider interface {
	// Decide applies the restart rules to changed paths.
	Decide(changedPaths []string, dependenciesChanged bool) m.ReloadDecision
	// DependenciesChanged reports whether a manifest was touched or changed
	// sources import modules that are neither standard library nor local.
	DependenciesChanged(ctx context.Context, changes m.ChangeSet) bool
}

type reloadDecider struct {
	critical   map[string]struct{}
	manifests  map[string]struct{}
	compiled   map[string]struct{}
	parser     adapter.SourceParser
	fs         adapter.SourceFSAdapter
	root       m.Path
	localNames func(ctx context.Context) map[string]struct{}
}

// NewReloadDecider constructs a ReloadDecider for the project at root.
func NewReloadDecider(cfg ReloadConfig, parser adapter.SourceParser, fsAdapter adapter.SourceFSAdapter, root m.Path) ReloadDecider {
	d := &reloadDecider{
		critical:  toSet(cfg.CriticalFiles),
		manifests: toSet(cfg.DependencyManifests),
		compiled:  toSet(cfg.CompiledExtensions),
		parser:    parser,
		fs:        fsAdapter,
		root:      root,
	}
	d.localNames = d.scanLocalNames

	return d
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			set[item] = struct{}{}
		}
	}

	return set
}

func (d *reloadDecider) Decide(changedPaths []string, dependenciesChanged bool) m.ReloadDecision {
	if dependenciesChanged {
		slog.Info("Dependencies changed, full restart required", "paths", changedPaths)
		return m.ReloadDecision{Mode: m.ReloadFull, Reason: m.ReasonDependencyChanged, ExitCode: m.ExitCodeDependencyChanged}
	}

	for _, p := range changedPaths {
		base := path.Base(p)
		if _, ok := d.manifests[base]; ok {
			slog.Info("Dependency manifest changed, full restart required", "path", p)
			return m.ReloadDecision{Mode: m.ReloadFull, Reason: m.ReasonDependencyChanged, ExitCode: m.ExitCodeDependencyChanged}
		}
	}

	for _, p := range changedPaths {
		if _, ok := d.critical[path.Base(p)]; ok {
			slog.Info("Critical file changed, full restart required", "path", p)
			return m.ReloadDecision{Mode: m.ReloadFull, Reason: m.ReasonCriticalFile, ExitCode: m.ExitCodeCriticalFile}
		}

		if _, ok := d.compiled[path.Ext(p)]; ok {
			slog.Info("Compiled source changed, full restart required", "path", p)
			return m.ReloadDecision{Mode: m.ReloadFull, Reason: m.ReasonCriticalFile, ExitCode: m.ExitCodeCriticalFile}
		}
	}

	units := make([]string, 0, len(changedPaths))
	for _, p := range changedPaths {
		units = append(units, UnitName(p))
	}

	slog.Info("Non-critical files changed, soft reload", "units", units)

	return m.ReloadDecision{Mode: m.ReloadSoft, Reason: m.ReasonNone, ExitCode: m.ExitCodeNormalRestart, Units: units}
}

// UnitName derives the reloadable unit name of a path: the extension is
// dropped and separators become dots, so "app/util.py" is "app.util".
func UnitName(p string) string {
	p = strings.TrimSuffix(p, path.Ext(p))
	return strings.ReplaceAll(p, "/", ".")
}

func (d *reloadDecider) DependenciesChanged(ctx context.Context, changes m.ChangeSet) bool {
	var local map[string]struct{}

	for _, p := range changes.Paths() {
		if _, ok := d.manifests[path.Base(p)]; ok {
			return true
		}

		lang := d.parser.Detect(p)
		if lang != adapter.LangPython && lang != adapter.LangGo {
			continue
		}

		imports, err := d.parser.Imports(ctx, p, []byte(changes[p]))
		if err != nil {
			slog.Debug("Failed to scan imports", "path", p, "error", err)
			continue
		}

		if local == nil {
			local = d.localNames(ctx)
			for changed := range changes {
				local[localName(changed)] = struct{}{}
			}
		}

		for _, imp := range imports {
			if isThirdParty(lang, imp, local) {
				slog.Info("New third-party import detected", "path", p, "import", imp)
				return true
			}
		}
	}

	return false
}

func isThirdParty(lang adapter.Language, imp string, local map[string]struct{}) bool {
	switch lang {
	case adapter.LangPython:
		if _, ok := pythonStdlib[imp]; ok {
			return false
		}

		_, ok := local[imp]

		return !ok
	case adapter.LangGo:
		first := imp
		if i := strings.IndexByte(imp, '/'); i >= 0 {
			first = imp[:i]
		}

		if !strings.Contains(first, ".") {
			return false
		}

		for mod := range local {
			if strings.Contains(mod, ".") && (imp == mod || strings.HasPrefix(imp, mod+"/")) {
				return false
			}
		}

		return true
	default:
		return false
	}
}

func localName(p string) string {
	first := p
	if i := strings.IndexByte(p, '/'); i >= 0 {
		first = p[:i]
	}

	return strings.TrimSuffix(first, path.Ext(first))
}

// scanLocalNames lists the top-level modules of the project: files and
// directories at the root plus the Go module path from go.mod.
func (d *reloadDecider) scanLocalNames(ctx context.Context) map[string]struct{} {
	names := map[string]struct{}{}

	entries, err := d.fs.ReadDir(ctx, d.root)
	if err != nil {
		slog.Debug("Failed to list project root", "root", d.root, "error", err)
		return names
	}

	for _, entry := range entries {
		names[localName(entry.Name())] = struct{}{}
	}

	data, err := d.fs.ReadFile(ctx, d.fs.JoinPath(ctx, string(d.root), "go.mod"))
	if err == nil {
		if modPath := modfile.ModulePath(data); modPath != "" {
			names[modPath] = struct{}{}
		}
	}

	return names
}

var pythonStdlib = toSet(strings.Fields(`
__future__ abc argparse array ast asyncio atexit base64 binascii bisect builtins
bz2 calendar cmath codecs collections colorsys concurrent configparser contextlib
contextvars copy copyreg csv ctypes dataclasses datetime decimal difflib dis
email encodings enum errno faulthandler fcntl filecmp fileinput fnmatch fractions
functools gc getopt getpass gettext glob graphlib grp gzip hashlib heapq hmac html
http imaplib importlib inspect io ipaddress itertools json keyword linecache
locale logging lzma mailbox marshal math mimetypes mmap multiprocessing netrc
numbers operator os pathlib pdb pickle pkgutil platform plistlib poplib posixpath
pprint profile pstats pty pwd py_compile queue quopri random re readline reprlib
resource runpy sched secrets select selectors shelve shlex shutil signal site
smtplib socket socketserver sqlite3 ssl stat statistics string stringprep struct
subprocess symtable sys sysconfig syslog tabnanny tarfile tempfile termios
textwrap threading time timeit token tokenize tomllib trace traceback tracemalloc
tty turtle types typing unicodedata unittest urllib uuid venv warnings wave
weakref webbrowser wsgiref xml xmlrpc zipapp zipfile zipimport zlib zoneinfo
`))
