package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/livngcorpse/jarvis/internal/adapter"
	m "github.com/livngcorpse/jarvis/internal/model"
)

// RestartCodeEnv carries the restart reason code into the relaunched process.
const RestartCodeEnv = "JARVIS_RESTART_CODE"

// Reloadable is a named in-process unit that can be reinitialized in place,
// such as configuration or data tables.
type Reloadable interface {
	Reload(ctx context.Context) error
}

// ReloadFunc adapts a function to Reloadable.
type ReloadFunc func(ctx context.Context) error

// Reload implements Reloadable.
func (f ReloadFunc) Reload(ctx context.Context) error {
	return f(ctx)
}

// HealthProbe runs a known-good smoke path and returns its output.
type HealthProbe interface {
	Probe(ctx context.Context) (string, error)
}

// HealthProbeFunc adapts a function to HealthProbe.
type HealthProbeFunc func(ctx context.Context) (string, error)

// Probe implements HealthProbe.
func (f HealthProbeFunc) Probe(ctx context.Context) (string, error) {
	return f(ctx)
}

// CommandHealthProbe runs argv in dir; its stdout is the probe result.
func CommandHealthProbe(runner adapter.CommandRunner, dir string, argv []string) HealthProbe {
	return HealthProbeFunc(func(ctx context.Context) (string, error) {
		return runner.Run(ctx, dir, argv)
	})
}

// RestartMode selects how a full restart is carried out.
type RestartMode string

// Available RestartMode values.
const (
	// RestartExec replaces the process image with a fresh copy of itself.
	RestartExec RestartMode = "exec"
	// RestartExit exits with the reason code and leaves the relaunch to a
	// supervisor.
	RestartExit RestartMode = "exit"
)

// ProcessController carries out reload decisions.
type ProcessController interface {
	// Register adds a reloadable unit. A unit named "app" also handles
	// "app.util".
	Register(name string, unit Reloadable)
	// Units lists the registered unit names.
	Units() []string
	// SoftReload reinitializes the named units. Unknown names are skipped
	// with a warning; the call fails if any handler failed.
	SoftReload(ctx context.Context, units []string) error
	// Verify runs the health probe and requires a non-empty result.
	Verify(ctx context.Context) error
	// FullRestart replaces the current process. It only returns when the
	// exec or exit primitive was replaced.
	FullRestart(ctx context.Context, decision m.ReloadDecision, paths []string) error
	// RestartMarker returns the reason this process was relaunched, if any,
	// and clears it.
	RestartMarker(ctx context.Context) (m.RestartMarker, bool)
}

// ProcessOption customizes a ProcessController.
type ProcessOption func(*processController)

// WithExecFunc replaces syscall.Exec.
func WithExecFunc(fn func(argv0 string, argv []string, envv []string) error) ProcessOption {
	return func(pc *processController) {
		pc.execFunc = fn
	}
}

// WithExitFunc replaces os.Exit.
func WithExitFunc(fn func(code int)) ProcessOption {
	return func(pc *processController) {
		pc.exitFunc = fn
	}
}

// WithArgs replaces os.Args as the relaunch argument vector.
func WithArgs(args []string) ProcessOption {
	return func(pc *processController) {
		pc.args = args
	}
}

// WithHealthProbe sets the post-reload probe.
func WithHealthProbe(probe HealthProbe) ProcessOption {
	return func(pc *processController) {
		pc.probe = probe
	}
}

// WithReloadTimeout bounds each unit reload and the health probe.
func WithReloadTimeout(d time.Duration) ProcessOption {
	return func(pc *processController) {
		pc.reloadTimeout = d
	}
}

// WithRestartMode sets the full restart strategy.
func WithRestartMode(mode RestartMode) ProcessOption {
	return func(pc *processController) {
		pc.mode = mode
	}
}

const restartMarkerMaxAge = 10 * time.Minute

type processController struct {
	mu            sync.RWMutex
	units         map[string]Reloadable
	probe         HealthProbe
	markers       adapter.RestartMarkerStore
	mode          RestartMode
	reloadTimeout time.Duration
	args          []string
	execFunc      func(argv0 string, argv []string, envv []string) error
	exitFunc      func(code int)
	executable    func() (string, error)
}

// NewProcessController constructs a ProcessController. markers may be nil.
func NewProcessController(markers adapter.RestartMarkerStore, opts ...ProcessOption) ProcessController {
	pc := &processController{
		units:         map[string]Reloadable{},
		markers:       markers,
		mode:          RestartExec,
		reloadTimeout: 10 * time.Second,
		args:          os.Args,
		execFunc:      syscall.Exec,
		exitFunc:      os.Exit,
		executable:    os.Executable,
	}

	for _, opt := range opts {
		opt(pc)
	}

	if pc.probe == nil {
		pc.probe = HealthProbeFunc(pc.registryProbe)
	}

	return pc
}

func (pc *processController) Register(name string, unit Reloadable) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	pc.units[name] = unit
}

func (pc *processController) Units() []string {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	names := make([]string, 0, len(pc.units))
	for name := range pc.units {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (pc *processController) lookup(unit string) (string, Reloadable, bool) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	best := ""

	for name := range pc.units {
		if (unit == name || strings.HasPrefix(unit, name+".")) && len(name) > len(best) {
			best = name
		}
	}

	if best == "" {
		return "", nil, false
	}

	return best, pc.units[best], true
}

func (pc *processController) SoftReload(ctx context.Context, units []string) error {
	var (
		errs []error
		done = map[string]struct{}{}
	)

	for _, unit := range units {
		name, handler, ok := pc.lookup(unit)
		if !ok {
			slog.Warn("No reload handler registered for unit", "unit", unit)
			continue
		}

		if _, seen := done[name]; seen {
			continue
		}

		done[name] = struct{}{}

		if err := pc.reloadOne(ctx, name, handler); err != nil {
			slog.Error("Failed to reload unit", "unit", name, "error", err)
			errs = append(errs, fmt.Errorf("reload %s: %w", name, err))

			continue
		}

		slog.Info("Reloaded unit", "unit", name)
	}

	return errors.Join(errs...)
}

func (pc *processController) reloadOne(ctx context.Context, name string, handler Reloadable) (err error) {
	ctx, cancel := context.WithTimeout(ctx, pc.reloadTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unit %s panicked: %v", name, r)
		}
	}()

	return handler.Reload(ctx)
}

func (pc *processController) Verify(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pc.reloadTimeout)
	defer cancel()

	output, err := pc.probe.Probe(ctx)
	if err != nil {
		slog.Error("Health probe failed", "error", err, "output", output)
		return fmt.Errorf("%w: %w", m.ErrReloadVerification, err)
	}

	if strings.TrimSpace(output) == "" {
		slog.Error("Health probe returned no output")
		return fmt.Errorf("%w: empty probe result", m.ErrReloadVerification)
	}

	slog.Info("Health probe passed")

	return nil
}

func (pc *processController) registryProbe(_ context.Context) (string, error) {
	units := pc.Units()
	return "ok units=" + strconv.Itoa(len(units)) + " " + strings.Join(units, ","), nil
}

func (pc *processController) FullRestart(ctx context.Context, decision m.ReloadDecision, paths []string) error {
	code := decision.ExitCode

	if pc.markers != nil {
		marker := m.RestartMarker{
			Reason:      decision.Reason,
			ExitCode:    code,
			Paths:       paths,
			PreviousPID: os.Getpid(),
			UnixNano:    time.Now().UnixNano(),
		}
		if err := pc.markers.Write(ctx, marker); err != nil {
			slog.Error("Failed to write restart marker", "error", err)
		}
	}

	if pc.mode == RestartExec {
		err := pc.relaunch(code)
		if err == nil {
			return nil
		}

		slog.Error("Failed to relaunch process, exiting instead", "exitCode", code, "error", err)
	}

	slog.Info("Exiting for restart", "exitCode", code, "reason", decision.Reason)
	pc.exitFunc(code)

	return fmt.Errorf("process was not replaced (exit code %d)", code)
}

func (pc *processController) relaunch(code int) error {
	bin, err := pc.executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}

	argv := []string{bin}
	if len(pc.args) > 1 {
		argv = append(argv, pc.args[1:]...)
	}

	env := append(withoutEnv(os.Environ(), RestartCodeEnv), RestartCodeEnv+"="+strconv.Itoa(code))

	slog.Info("Relaunching process", "binary", bin, "args", argv[1:], "exitCode", code)

	return pc.execFunc(bin, argv, env)
}

func withoutEnv(env []string, key string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		if !strings.HasPrefix(kv, key+"=") {
			out = append(out, kv)
		}
	}

	return out
}

func (pc *processController) RestartMarker(ctx context.Context) (m.RestartMarker, bool) {
	if pc.markers == nil {
		return m.RestartMarker{}, false
	}

	marker, ok, err := pc.markers.Check(ctx, restartMarkerMaxAge)
	if err != nil {
		slog.Warn("Failed to read restart marker", "error", err)
	}

	if clearErr := pc.markers.Clear(ctx); clearErr != nil {
		slog.Warn("Failed to clear restart marker", "error", clearErr)
	}

	if ok {
		slog.Info("Process was relaunched", "reason", marker.Reason, "exitCode", marker.ExitCode, "previousPid", marker.PreviousPID, "paths", marker.Paths)
	}

	return marker, ok
}
