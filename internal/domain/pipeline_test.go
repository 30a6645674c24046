package domain

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/livngcorpse/jarvis/internal/adapter"
	adaptermocks "github.com/livngcorpse/jarvis/internal/adapter/mocks"
	m "github.com/livngcorpse/jarvis/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type pipelineFixture struct {
	root     string
	gen      *adaptermocks.MockGenerator
	process  ProcessController
	backups  BackupStore
	reports  *adapter.JournalReportStore
	phases   []m.Phase
	execArgs []string
	modifier SelfModifier
}

func (f *pipelineFixture) DisplayPhase(_ context.Context, phase m.Phase) {
	f.phases = append(f.phases, phase)
}

type pipelineOption func(*SelfModifierDeps)

func newPipelineFixture(t *testing.T, opts ...pipelineOption) *pipelineFixture {
	t.Helper()

	root := canonicalTempDir(t)
	writeFile(t, root, "app/util.py", "def ok(): return 0\n")
	writeFile(t, root, "main.py", "print('hello')\n")

	f := &pipelineFixture{root: root, gen: adaptermocks.NewMockGenerator(t)}

	fsAdapter := adapter.NewLocalSourceFSAdapter(StagingDirName, "backups", ".jarvis", "logs")
	writer := adapter.NewLocalAtomicFileWriter()
	parser := adapter.NewLocalSourceParser()

	guard, err := NewSandboxGuard(m.Path(root), "", StagingDirName, "backups", ".jarvis", "logs")
	require.NoError(t, err)

	f.backups = NewBackupStore(fsAdapter, writer, m.Path(root), m.Path(filepath.Join(root, "backups")))
	f.reports = adapter.NewJournalReportStore(m.Path(filepath.Join(root, ".jarvis", "journal.gob")))
	t.Cleanup(func() { _ = f.reports.Close() })

	markers, err := adapter.NewCBORRestartMarkerStore(m.Path(filepath.Join(root, ".jarvis", "restart.cbor")), writer)
	require.NoError(t, err)

	f.process = NewProcessController(markers,
		WithArgs([]string{"jarvis", "agent"}),
		WithExecFunc(func(_ string, argv []string, _ []string) error {
			f.execArgs = argv
			return nil
		}),
		WithExitFunc(func(int) {}),
	)

	deps := SelfModifierDeps{
		Guard:     guard,
		Extractor: NewChangeExtractor(),
		Backups:   f.backups,
		Staging:   NewStagingArea(guard, fsAdapter, writer, m.Path(filepath.Join(root, StagingDirName))),
		Validator: NewValidator(ValidatorConfig{ProjectRoot: m.Path(root)}, fsAdapter, parser, adapter.NewLocalCommandRunner(time.Minute)),
		Applier:   NewApplier(guard, fsAdapter, writer),
		Decider:   NewReloadDecider(defaultReloadConfig(), parser, fsAdapter, m.Path(root)),
		Process:   f.process,
		Client:    NewGenerationClient(f.gen, GenerationClientConfig{MaxAttempts: 1}, nil),
		Context:   NewProjectContextBuilder(guard, fsAdapter),
		Previewer: NewPreviewer(guard, fsAdapter),
		Reports:   f.reports,
		Metrics:   NewMetrics(),
		Observer:  f,
	}

	for _, opt := range opts {
		opt(&deps)
	}

	f.modifier = NewSelfModifier(deps, SelfModifierConfig{MaxBackups: 10})

	return f
}

func (f *pipelineFixture) backupCount(t *testing.T) int {
	t.Helper()

	sets, err := f.backups.List(context.Background())
	require.NoError(t, err)

	return len(sets)
}

func TestSelfModifier_SoftReloadScenario(t *testing.T) {
	f := newPipelineFixture(t)

	reloaded := []string{}
	f.process.Register("app", ReloadFunc(func(context.Context) error {
		reloaded = append(reloaded, "app")
		return nil
	}))

	outcome := f.modifier.ApplyChangeSet(context.Background(), "return one", m.ChangeSet{"app/util.py": "def ok(): return 1\n"})

	require.Equal(t, m.StatusSuccess, outcome.Status, outcome.Message)
	assert.False(t, outcome.RestartRequired)
	require.NotNil(t, outcome.Decision)
	assert.Equal(t, m.ReloadSoft, outcome.Decision.Mode)
	assert.Equal(t, m.ReasonNone, outcome.Decision.Reason)
	assert.Equal(t, []string{"app.util"}, outcome.Decision.Units)
	assert.Equal(t, []string{"app"}, reloaded)

	assert.Equal(t, "def ok(): return 1\n", readFile(t, f.root, "app/util.py"))
	assert.Equal(t, []string{"app/util.py"}, outcome.Changed)
	assert.NotEmpty(t, outcome.BackupID)
	assert.Equal(t, "def ok(): return 0\n", readFile(t, filepath.Join(f.root, "backups", outcome.BackupID), "app/util.py"))
	assert.NoDirExists(t, filepath.Join(f.root, StagingDirName))

	assert.Equal(t, []m.Phase{m.PhaseBackup, m.PhaseStage, m.PhaseValidate, m.PhaseApply, m.PhaseReload}, f.phases)
	assert.True(t, strings.HasPrefix(outcome.UserMessage(), "Done."))

	records, err := f.modifier.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, outcome.RunID, records[0].RunID)
	assert.Equal(t, m.StatusSuccess, records[0].Status)
	assert.Equal(t, []m.DiffStat{{Path: "app/util.py", Added: 1, Deleted: 1}}, records[0].DiffStats)
}

func TestSelfModifier_SyntaxErrorLeavesTreeUntouched(t *testing.T) {
	f := newPipelineFixture(t)

	outcome := f.modifier.ApplyChangeSet(context.Background(), "break it", m.ChangeSet{
		"app/broken.py": "def f(:",
		"app/util.py":   "def ok(): return 2",
	})

	assert.Equal(t, m.StatusError, outcome.Status)
	assert.Contains(t, outcome.Message, "app/broken.py")
	require.NotNil(t, outcome.Validation)
	assert.False(t, outcome.Validation.Passed)
	assert.Nil(t, outcome.Decision)
	assert.Empty(t, outcome.Changed)

	assert.NoFileExists(t, filepath.Join(f.root, "app", "broken.py"))
	assert.Equal(t, "def ok(): return 0\n", readFile(t, f.root, "app/util.py"))
	assert.NoDirExists(t, filepath.Join(f.root, StagingDirName))
	assert.NotContains(t, f.phases, m.PhaseRollback)
	assert.Contains(t, outcome.UserMessage(), m.DefaultLogPath)
}

func TestSelfModifier_DependencyManifestRequiresRestart(t *testing.T) {
	f := newPipelineFixture(t)

	outcome := f.modifier.ApplyChangeSet(context.Background(), "add requests", m.ChangeSet{"requirements.txt": "requests==2.31.0"})

	require.Equal(t, m.StatusSuccess, outcome.Status, outcome.Message)
	assert.True(t, outcome.RestartRequired)
	require.NotNil(t, outcome.Decision)
	assert.Equal(t, m.ReloadFull, outcome.Decision.Mode)
	assert.Equal(t, m.ReasonDependencyChanged, outcome.Decision.Reason)
	assert.Equal(t, m.ExitCodeDependencyChanged, outcome.Decision.ExitCode)
	assert.NotContains(t, f.phases, m.PhaseReload)
	assert.Contains(t, outcome.UserMessage(), "restart")

	require.NoError(t, f.modifier.Restart(context.Background(), outcome))
	require.NotEmpty(t, f.execArgs)
	assert.Equal(t, []string{"agent"}, f.execArgs[1:])

	marker, ok := f.process.RestartMarker(context.Background())
	require.True(t, ok)
	assert.Equal(t, m.ExitCodeDependencyChanged, marker.ExitCode)
	assert.Equal(t, []string{"requirements.txt"}, marker.Paths)
}

func TestSelfModifier_NewThirdPartyImportRequiresRestart(t *testing.T) {
	f := newPipelineFixture(t)

	outcome := f.modifier.ApplyChangeSet(context.Background(), "use numpy", m.ChangeSet{"app/util.py": "import numpy\n"})

	require.Equal(t, m.StatusSuccess, outcome.Status, outcome.Message)
	assert.True(t, outcome.RestartRequired)
	assert.Equal(t, m.ExitCodeDependencyChanged, outcome.Decision.ExitCode)
}

func TestSelfModifier_EmptyExtractionIsWarning(t *testing.T) {
	f := newPipelineFixture(t)

	outcome := f.modifier.ApplyResponse(context.Background(), "noop", m.GenerationResponse{Text: "I am not sure what to change."})

	assert.Equal(t, m.StatusWarning, outcome.Status)
	assert.Zero(t, f.backupCount(t))
	assert.True(t, strings.HasPrefix(outcome.UserMessage(), "Nothing to do."))
}

func TestSelfModifier_SandboxViolationIsRejected(t *testing.T) {
	f := newPipelineFixture(t)

	outcome := f.modifier.ApplyChangeSet(context.Background(), "escape", m.ChangeSet{
		"app/ok.py":       "x = 1",
		"../../escape.py": "print('owned')",
	})

	assert.Equal(t, m.StatusError, outcome.Status)
	assert.True(t, strings.HasPrefix(outcome.Message, "Rejected:"))
	assert.Zero(t, f.backupCount(t))
	assert.NoFileExists(t, filepath.Join(f.root, "app", "ok.py"))
	assert.NoDirExists(t, filepath.Join(f.root, StagingDirName))
}

func TestSelfModifier_RecordsRunSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	f := newPipelineFixture(t, func(deps *SelfModifierDeps) {
		deps.Tracer = tp
	})

	ok := f.modifier.ApplyChangeSet(context.Background(), "return one", m.ChangeSet{"app/util.py": "def ok(): return 1\n"})
	require.Equal(t, m.StatusSuccess, ok.Status, ok.Message)

	bad := f.modifier.ApplyChangeSet(context.Background(), "break it", m.ChangeSet{"app/broken.py": "def f(:"})
	require.Equal(t, m.StatusError, bad.Status)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "pipeline.ApplyChangeSet", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("jarvis.run_id", ok.RunID))
	assert.Contains(t, spans[0].Attributes(), attribute.StringSlice("jarvis.paths", []string{"app/util.py"}))

	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.NotEmpty(t, spans[1].Events())
}

func TestSelfModifier_AbsolutePathIsBackedUp(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	abs := filepath.Join(f.root, "app", "util.py")

	outcome := f.modifier.ApplyChangeSet(ctx, "absolute", m.ChangeSet{abs: "def ok(): return 99\n"})
	require.Equal(t, m.StatusSuccess, outcome.Status, outcome.Message)
	assert.Equal(t, []string{"app/util.py"}, outcome.Changed)
	require.NotNil(t, outcome.Decision)
	assert.Equal(t, []string{"app.util"}, outcome.Decision.Units)
	assert.Equal(t, "def ok(): return 99\n", readFile(t, f.root, "app/util.py"))

	sets, err := f.backups.List(ctx)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	require.Len(t, sets[0].Files, 1)
	assert.Equal(t, "app/util.py", sets[0].Files[0].Path)
	assert.True(t, sets[0].Files[0].Existed)

	_, err = f.modifier.Undo(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "def ok(): return 0\n", readFile(t, f.root, "app/util.py"))
}

func TestSelfModifier_AbsolutePathOutsideRootIsRejected(t *testing.T) {
	f := newPipelineFixture(t)

	outside := filepath.Join(filepath.Dir(f.root), "elsewhere.py")

	outcome := f.modifier.ApplyChangeSet(context.Background(), "escape", m.ChangeSet{outside: "x = 1"})
	assert.Equal(t, m.StatusError, outcome.Status)
	assert.True(t, strings.HasPrefix(outcome.Message, "Rejected:"))
	assert.Zero(t, f.backupCount(t))
	assert.NoFileExists(t, outside)
}

type partialApplier struct {
	inner Applier
}

func (a partialApplier) Apply(ctx context.Context, staged []m.StagedChange) ([]string, error) {
	written, err := a.inner.Apply(ctx, staged[:1])
	if err != nil {
		return written, err
	}

	return written, errors.Join(m.ErrApplyFailure, errors.New("disk full"))
}

type failingRestoreStore struct {
	BackupStore
}

func (failingRestoreStore) Restore(context.Context, string) error {
	return errors.Join(m.ErrRollbackFailure, errors.New("permission denied"))
}

func TestSelfModifier_ApplyFailureRollsBack(t *testing.T) {
	f := newPipelineFixture(t, func(deps *SelfModifierDeps) {
		deps.Applier = partialApplier{inner: deps.Applier}
	})

	outcome := f.modifier.ApplyChangeSet(context.Background(), "two files", m.ChangeSet{
		"app/a_new.py": "x = 1",
		"app/util.py":  "def ok(): return 1",
	})

	assert.Equal(t, m.StatusError, outcome.Status)
	assert.Contains(t, f.phases, m.PhaseRollback)
	assert.NoFileExists(t, filepath.Join(f.root, "app", "a_new.py"))
	assert.Equal(t, "def ok(): return 0\n", readFile(t, f.root, "app/util.py"))
}

func TestSelfModifier_RollbackFailureIsDegraded(t *testing.T) {
	f := newPipelineFixture(t, func(deps *SelfModifierDeps) {
		deps.Applier = partialApplier{inner: deps.Applier}
		deps.Backups = failingRestoreStore{BackupStore: deps.Backups}
	})

	outcome := f.modifier.ApplyChangeSet(context.Background(), "two files", m.ChangeSet{
		"app/a_new.py": "x = 1",
		"app/util.py":  "def ok(): return 1",
	})

	assert.Equal(t, m.StatusDegraded, outcome.Status)
	assert.Contains(t, outcome.UserMessage(), "may be inconsistent")
}

func TestSelfModifier_ReloadVerificationFailure(t *testing.T) {
	f := newPipelineFixture(t)

	f.process.Register("app", ReloadFunc(func(context.Context) error { return errors.New("import error") }))

	outcome := f.modifier.ApplyChangeSet(context.Background(), "reload", m.ChangeSet{"app/util.py": "def ok(): return 1"})

	assert.Equal(t, m.StatusError, outcome.Status)
	assert.Equal(t, "def ok(): return 1", readFile(t, f.root, "app/util.py"))
	assert.NotContains(t, f.phases, m.PhaseRollback)
}

func TestSelfModifier_ProcessRequest(t *testing.T) {
	f := newPipelineFixture(t)

	f.gen.On("Generate", mock.Anything, mock.MatchedBy(func(projectContext string) bool {
		return strings.Contains(projectContext, "app/util.py:\ndef ok(): return 0")
	}), mock.MatchedBy(func(instruction string) bool {
		return strings.HasPrefix(instruction, "make ok return 1")
	})).Return("```json\n{\"files\": [{\"path\": \"app/util.py\", \"content\": \"def ok(): return 1\"}]}\n```", nil).Once()

	outcome := f.modifier.ProcessRequest(context.Background(), m.DevRequest{
		Intent:      string(m.IntentDevInstruction),
		TargetFiles: []string{"app/util.py"},
		Goal:        "make ok return 1",
	})

	require.Equal(t, m.StatusSuccess, outcome.Status, outcome.Message)
	assert.Equal(t, "def ok(): return 1", readFile(t, f.root, "app/util.py"))
	assert.Equal(t, m.PhaseGenerate, f.phases[0])
	assert.Equal(t, m.PhaseExtract, f.phases[1])
}

func TestSelfModifier_ProcessRequestGenerationFailure(t *testing.T) {
	f := newPipelineFixture(t)

	f.gen.On("Generate", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("503")).Once()

	outcome := f.modifier.ProcessRequest(context.Background(), m.DevRequest{Goal: "anything"})

	assert.Equal(t, m.StatusError, outcome.Status)
	assert.Zero(t, f.backupCount(t))
}

func TestSelfModifier_PreviewCommitsNothing(t *testing.T) {
	f := newPipelineFixture(t)

	previews, result, err := f.modifier.Preview(context.Background(), m.ChangeSet{"app/util.py": "def ok(): return 1\n"})
	require.NoError(t, err)

	assert.True(t, result.Passed)
	require.Len(t, previews, 1)
	assert.Equal(t, 1, previews[0].Added)
	assert.Equal(t, 1, previews[0].Deleted)

	assert.Equal(t, "def ok(): return 0\n", readFile(t, f.root, "app/util.py"))
	assert.Zero(t, f.backupCount(t))
	assert.NoDirExists(t, filepath.Join(f.root, StagingDirName))

	_, _, err = f.modifier.Preview(context.Background(), m.ChangeSet{})
	assert.ErrorIs(t, err, m.ErrExtractionEmpty)
}

func TestSelfModifier_Undo(t *testing.T) {
	f := newPipelineFixture(t)
	ctx := context.Background()

	outcome := f.modifier.ApplyChangeSet(ctx, "change", m.ChangeSet{
		"app/util.py":  "def ok(): return 1",
		"app/extra.py": "y = 1",
	})
	require.Equal(t, m.StatusSuccess, outcome.Status, outcome.Message)

	set, err := f.modifier.Undo(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, outcome.BackupID, set.ID)

	assert.Equal(t, "def ok(): return 0\n", readFile(t, f.root, "app/util.py"))
	assert.NoFileExists(t, filepath.Join(f.root, "app", "extra.py"))

	_, err = f.modifier.Undo(ctx, "19990101T000000.000000000")
	assert.Error(t, err)

	sets, err := f.modifier.Backups(ctx)
	require.NoError(t, err)
	assert.Len(t, sets, 1)
}

func TestSelfModifier_RunsAreSerialized(t *testing.T) {
	f := newPipelineFixture(t)

	impl := f.modifier.(*selfModifier)
	require.True(t, impl.lock.TryAcquire(1))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	outcome := f.modifier.ApplyChangeSet(ctx, "blocked", m.ChangeSet{"app/util.py": "def ok(): return 1"})
	assert.Equal(t, m.StatusError, outcome.Status)
	assert.Equal(t, "def ok(): return 0\n", readFile(t, f.root, "app/util.py"))

	impl.lock.Release(1)

	outcome = f.modifier.ApplyChangeSet(context.Background(), "free", m.ChangeSet{"app/util.py": "def ok(): return 1"})
	assert.Equal(t, m.StatusSuccess, outcome.Status, outcome.Message)
}

func TestSelfModifier_RotatesBackups(t *testing.T) {
	f := newPipelineFixture(t)
	impl := f.modifier.(*selfModifier)
	impl.cfg.MaxBackups = 2

	for i := range 4 {
		content := "def ok(): return " + strconv.Itoa(i+1)
		outcome := f.modifier.ApplyChangeSet(context.Background(), "bump", m.ChangeSet{"app/util.py": content})
		require.Equal(t, m.StatusSuccess, outcome.Status, outcome.Message)
	}

	assert.Equal(t, 2, f.backupCount(t))

	entries, err := os.ReadDir(filepath.Join(f.root, "backups"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
