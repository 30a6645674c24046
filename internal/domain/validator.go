package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/livngcorpse/jarvis/internal/adapter"
	m "github.com/livngcorpse/jarvis/internal/model"
	"golang.org/x/sync/errgroup"
)

// ValidatorConfig selects the external tools run against staged changes.
// Empty commands disable the corresponding step.
type ValidatorConfig struct {
	ProjectRoot m.Path
	LintCommand []string
	TestCommand []string
	TestDir     string
	Parallel    int
}

// Validator decides whether staged changes may be applied.
type Validator interface {
	// Validate checks staged files. A failed validation is reported through
	// the result; the error is reserved for infrastructure problems.
	Validate(ctx context.Context, staged []m.StagedChange, stagingDir m.Path) (m.ValidationResult, error)
}

type validator struct {
	cfg    ValidatorConfig
	fs     adapter.SourceFSAdapter
	parser adapter.SourceParser
	runner adapter.CommandRunner
}

// NewValidator constructs a Validator.
func NewValidator(cfg ValidatorConfig, fsAdapter adapter.SourceFSAdapter, parser adapter.SourceParser, runner adapter.CommandRunner) Validator {
	if cfg.Parallel <= 0 {
		cfg.Parallel = 4
	}

	return &validator{cfg: cfg, fs: fsAdapter, parser: parser, runner: runner}
}

func (v *validator) Validate(ctx context.Context, staged []m.StagedChange, stagingDir m.Path) (m.ValidationResult, error) {
	result := m.ValidationResult{Passed: true}

	syntaxFailures, err := v.checkSyntax(ctx, staged)
	if err != nil {
		return result, err
	}

	if len(syntaxFailures) > 0 {
		result.Passed = false
		result.Failures = syntaxFailures

		return result, nil
	}

	v.lint(ctx, stagingDir, &result)

	if len(v.cfg.TestCommand) == 0 {
		slog.Debug("No test command configured, skipping tests")
		return result, nil
	}

	if err := v.runTests(ctx, staged, &result); err != nil {
		return result, err
	}

	return result, nil
}

func (v *validator) checkSyntax(ctx context.Context, staged []m.StagedChange) ([]m.ValidationFailure, error) {
	var (
		mu       sync.Mutex
		failures []m.ValidationFailure
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.cfg.Parallel)

	for _, change := range staged {
		if v.parser.Detect(change.Path) == adapter.LangUnknown {
			continue
		}

		g.Go(func() error {
			content, err := v.fs.ReadFile(gctx, change.Location)
			if err != nil {
				return fmt.Errorf("failed to read staged %s: %w", change.Path, err)
			}

			checkErr := v.parser.CheckSyntax(gctx, change.Path, content)
			if checkErr == nil {
				return nil
			}

			var syntaxErr *adapter.SyntaxError
			if !errors.As(checkErr, &syntaxErr) {
				return checkErr
			}

			slog.Warn("Syntax check failed", "path", change.Path, "line", syntaxErr.Line, "detail", syntaxErr.Detail)

			mu.Lock()
			failures = append(failures, m.ValidationFailure{
				Path:   change.Path,
				Stage:  m.StageSyntax,
				Detail: syntaxErr.Error(),
			})
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(failures, func(i, j int) bool {
		return failures[i].Path < failures[j].Path
	})

	return failures, nil
}

func (v *validator) lint(ctx context.Context, stagingDir m.Path, result *m.ValidationResult) {
	if len(v.cfg.LintCommand) == 0 {
		return
	}

	argv := append(append([]string{}, v.cfg.LintCommand...), ".")

	output, err := v.runner.Run(ctx, string(stagingDir), argv)
	if err == nil {
		return
	}

	if errors.Is(err, m.ErrToolUnavailable) {
		slog.Warn("Linter not available, skipping lint", "command", v.cfg.LintCommand[0], "error", err)
		result.Warnings = append(result.Warnings, "linter unavailable: "+v.cfg.LintCommand[0])

		return
	}

	slog.Warn("Lint reported problems", "output", output, "error", err)
	result.Failures = append(result.Failures, m.ValidationFailure{
		Path:   ".",
		Stage:  m.StageLint,
		Detail: strings.TrimSpace(output),
	})
	result.Warnings = append(result.Warnings, "lint reported problems")
}

func (v *validator) runTests(ctx context.Context, staged []m.StagedChange, result *m.ValidationResult) error {
	tmpDir, err := v.prepareWorkspace(ctx, staged)
	if tmpDir != "" {
		defer v.cleanupTempDir(ctx, tmpDir)
	}

	if err != nil {
		return err
	}

	if newTests := v.stagedTests(staged); len(newTests) > 0 {
		argv := append(append([]string{}, v.cfg.TestCommand...), newTests...)
		if done := v.runSuite(ctx, tmpDir, argv, strings.Join(newTests, " "), result); done {
			return nil
		}
	}

	v.runSuite(ctx, tmpDir, v.cfg.TestCommand, "test suite", result)

	return nil
}

// runSuite executes argv in dir and records the outcome. It reports true when
// validation must stop.
func (v *validator) runSuite(ctx context.Context, dir m.Path, argv []string, label string, result *m.ValidationResult) bool {
	output, err := v.runner.Run(ctx, string(dir), argv)
	if err == nil {
		slog.Info("Tests passed", "target", label)
		return false
	}

	if errors.Is(err, m.ErrToolUnavailable) {
		slog.Warn("Test runner not available, skipping tests", "command", argv[0], "error", err)
		result.Warnings = append(result.Warnings, "test runner unavailable: "+argv[0])

		return true
	}

	slog.Error("Tests failed", "target", label, "output", output, "error", err)

	result.Passed = false
	result.Failures = append(result.Failures, m.ValidationFailure{
		Path:   label,
		Stage:  m.StageTest,
		Detail: strings.TrimSpace(err.Error() + "\n" + output),
	})

	return true
}

func (v *validator) stagedTests(staged []m.StagedChange) []string {
	dir := strings.Trim(filepath.ToSlash(v.cfg.TestDir), "/")
	if dir == "" {
		return nil
	}

	var tests []string

	for _, change := range staged {
		if strings.HasPrefix(change.Path, dir+"/") && v.parser.Detect(change.Path) != adapter.LangUnknown {
			tests = append(tests, change.Path)
		}
	}

	return tests
}

func (v *validator) prepareWorkspace(ctx context.Context, staged []m.StagedChange) (m.Path, error) {
	tmpDir, err := v.fs.CreateTempDir(ctx, "jarvis-validate-*")
	if err != nil {
		slog.Error("Failed to create temp dir", "error", err)
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}

	if err := v.fs.CopyDir(ctx, v.cfg.ProjectRoot, tmpDir); err != nil {
		slog.Error("Failed to copy project to temp dir", "projectRoot", v.cfg.ProjectRoot, "tmpDir", tmpDir, "error", err)
		return tmpDir, fmt.Errorf("failed to copy project: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.cfg.Parallel)

	for _, change := range staged {
		g.Go(func() error {
			dst := v.fs.JoinPath(gctx, string(tmpDir), filepath.FromSlash(change.Path))
			return v.fs.CopyFile(gctx, change.Location, dst)
		})
	}

	if err := g.Wait(); err != nil {
		slog.Error("Failed to overlay staged files", "tmpDir", tmpDir, "error", err)
		return tmpDir, fmt.Errorf("failed to overlay staged files: %w", err)
	}

	return tmpDir, nil
}

// cleanupTempDir removes the temporary directory, logging errors if cleanup fails.
func (v *validator) cleanupTempDir(ctx context.Context, tmpDir m.Path) {
	if err := v.fs.RemoveAll(context.WithoutCancel(ctx), tmpDir); err != nil {
		slog.Error("Failed to cleanup temp dir", "tmpDir", tmpDir, "error", err)
	}
}
