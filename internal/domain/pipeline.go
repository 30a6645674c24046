package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/livngcorpse/jarvis/internal/adapter"
	m "github.com/livngcorpse/jarvis/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

// Observer receives progress of a pipeline run.
type Observer interface {
	DisplayPhase(ctx context.Context, phase m.Phase)
}

type nopObserver struct{}

func (nopObserver) DisplayPhase(context.Context, m.Phase) {}

// SelfModifier runs the self-modification pipeline. Runs are serialized: a
// second caller waits until the first run has finished.
type SelfModifier interface {
	// ProcessRequest asks the generator for changes to the request targets and
	// lands them.
	ProcessRequest(ctx context.Context, req m.DevRequest) m.RequestOutcome
	// ApplyResponse lands the changes found in an already generated reply.
	ApplyResponse(ctx context.Context, goal string, resp m.GenerationResponse) m.RequestOutcome
	// ApplyChangeSet lands changes.
	ApplyChangeSet(ctx context.Context, goal string, changes m.ChangeSet) m.RequestOutcome
	// Preview stages and validates changes and diffs them against the live
	// tree. Nothing is committed and no backup is taken.
	Preview(ctx context.Context, changes m.ChangeSet) ([]m.FilePreview, m.ValidationResult, error)
	// Classify decides whether text is a development instruction.
	Classify(ctx context.Context, text string) m.Classification
	// Restart carries out the full restart an outcome asked for.
	Restart(ctx context.Context, outcome m.RequestOutcome) error
	// Undo restores backupID, or the newest backup when empty.
	Undo(ctx context.Context, backupID string) (m.BackupSet, error)
	// Backups lists retained backups, oldest first.
	Backups(ctx context.Context) ([]m.BackupSet, error)
	// History returns the last limit run records, oldest first.
	History(ctx context.Context, limit int) ([]m.RunRecord, error)
}

// SelfModifierDeps are the pipeline collaborators.
type SelfModifierDeps struct {
	Guard     SandboxGuard
	Extractor ChangeExtractor
	Backups   BackupStore
	Staging   StagingArea
	Validator Validator
	Applier   Applier
	Decider   ReloadDecider
	Process   ProcessController
	Client    GenerationClient
	Context   ProjectContextBuilder
	Previewer Previewer
	Reports   adapter.ReportStore
	Metrics   *Metrics
	Observer  Observer
	// Tracer defaults to the global provider.
	Tracer trace.TracerProvider
}

// SelfModifierConfig holds pipeline settings.
type SelfModifierConfig struct {
	MaxBackups      int
	LogPath         string
	MetricsTextfile string
}

type selfModifier struct {
	deps   SelfModifierDeps
	cfg    SelfModifierConfig
	lock   *semaphore.Weighted
	tracer trace.Tracer
	now    func() time.Time
}

// NewSelfModifier wires the pipeline.
func NewSelfModifier(deps SelfModifierDeps, cfg SelfModifierConfig) SelfModifier {
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}

	if deps.Tracer == nil {
		deps.Tracer = otel.GetTracerProvider()
	}

	if cfg.LogPath == "" {
		cfg.LogPath = m.DefaultLogPath
	}

	return &selfModifier{
		deps:   deps,
		cfg:    cfg,
		lock:   semaphore.NewWeighted(1),
		tracer: deps.Tracer.Tracer("jarvis.pipeline"),
		now:    time.Now,
	}
}

// run is the state of one pipeline execution.
type run struct {
	record  m.RunRecord
	outcome m.RequestOutcome
	span    trace.Span
}

func (s *selfModifier) begin(ctx context.Context, name, goal string) (context.Context, *run) {
	id := uuid.NewString()

	ctx, span := s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("jarvis.run_id", id),
		attribute.String("jarvis.goal", goal),
	))

	r := &run{
		record:  m.RunRecord{RunID: id, Started: s.now(), Goal: goal},
		outcome: m.RequestOutcome{RunID: id, LogPath: s.cfg.LogPath},
		span:    span,
	}

	slog.Info("Pipeline run started", "runId", id, "goal", goal)

	return ctx, r
}

func (s *selfModifier) finish(r *run) m.RequestOutcome {
	elapsed := s.now().Sub(r.record.Started)

	r.record.Duration = elapsed
	r.record.Status = r.outcome.Status
	r.record.Message = r.outcome.Message
	r.record.BackupID = r.outcome.BackupID

	if r.outcome.Decision != nil {
		r.record.Reload = *r.outcome.Decision
	}

	if r.outcome.Status == m.StatusSuccess {
		r.span.SetStatus(codes.Ok, "")
	} else {
		r.span.SetStatus(codes.Error, r.outcome.Message)
	}

	r.span.SetAttributes(attribute.String("jarvis.status", string(r.outcome.Status)))
	r.span.End()

	s.deps.Metrics.ObserveOutcome(r.outcome.Status, elapsed)

	if s.deps.Reports != nil {
		if err := s.deps.Reports.SaveRecord(r.record); err != nil {
			slog.Error("Failed to save run record", "runId", r.record.RunID, "error", err)
		}
	}

	if err := s.deps.Metrics.WriteTextfile(s.cfg.MetricsTextfile); err != nil {
		slog.Warn("Metrics export skipped", "error", err)
	}

	slog.Info("Pipeline run finished", "runId", r.record.RunID, "status", r.outcome.Status, "duration", elapsed, "message", r.outcome.Message)

	return r.outcome
}

func (s *selfModifier) fail(r *run, phase m.Phase, status m.OutcomeStatus, message string, err error) m.RequestOutcome {
	if err != nil {
		r.span.RecordError(err)
		slog.Error("Pipeline stage failed", "runId", r.record.RunID, "phase", phase, "error", err)
	}

	s.deps.Metrics.StageFailed(string(phase))

	r.outcome.Status = status
	r.outcome.Message = message

	return s.finish(r)
}

func (s *selfModifier) acquire(ctx context.Context, r *run) bool {
	if err := s.lock.Acquire(ctx, 1); err != nil {
		r.outcome.Status = m.StatusError
		r.outcome.Message = "The request was cancelled while waiting for another change to finish."
		r.span.RecordError(err)
		s.finish(r)

		return false
	}

	return true
}

func (s *selfModifier) ProcessRequest(ctx context.Context, req m.DevRequest) m.RequestOutcome {
	ctx, r := s.begin(ctx, "pipeline.ProcessRequest", req.Goal)
	if !s.acquire(ctx, r) {
		return r.outcome
	}
	defer s.lock.Release(1)

	s.deps.Observer.DisplayPhase(ctx, m.PhaseGenerate)

	projectContext := s.deps.Context.Build(ctx, req.TargetFiles)

	instruction := req.Goal
	if len(req.TargetFiles) > 0 {
		instruction = fmt.Sprintf("%s\n\nTarget files: %v", req.Goal, req.TargetFiles)
	}

	resp, err := s.deps.Client.GenerateChanges(ctx, projectContext, instruction)
	if err != nil {
		return s.fail(r, m.PhaseGenerate, m.StatusError, "The change generator did not respond.", err)
	}

	return s.land(ctx, r, s.extract(ctx, resp))
}

func (s *selfModifier) ApplyResponse(ctx context.Context, goal string, resp m.GenerationResponse) m.RequestOutcome {
	ctx, r := s.begin(ctx, "pipeline.ApplyResponse", goal)
	if !s.acquire(ctx, r) {
		return r.outcome
	}
	defer s.lock.Release(1)

	return s.land(ctx, r, s.extract(ctx, resp))
}

func (s *selfModifier) ApplyChangeSet(ctx context.Context, goal string, changes m.ChangeSet) m.RequestOutcome {
	ctx, r := s.begin(ctx, "pipeline.ApplyChangeSet", goal)
	if !s.acquire(ctx, r) {
		return r.outcome
	}
	defer s.lock.Release(1)

	return s.land(ctx, r, changes)
}

func (s *selfModifier) extract(ctx context.Context, resp m.GenerationResponse) m.ChangeSet {
	s.deps.Observer.DisplayPhase(ctx, m.PhaseExtract)
	return s.deps.Extractor.Extract(resp)
}

// land takes changes from sandbox check to reload. The lock is held.
func (s *selfModifier) land(ctx context.Context, r *run, changes m.ChangeSet) m.RequestOutcome {
	if len(changes) == 0 {
		return s.fail(r, m.PhaseExtract, m.StatusWarning, "No file changes were found in the response.", m.ErrExtractionEmpty)
	}

	r.record.Paths = changes.Paths()

	changes, err := s.deps.Guard.Relativize(changes)
	if err != nil {
		return s.fail(r, m.PhaseStage, m.StatusError, "Rejected: "+err.Error(), err)
	}

	paths := changes.Paths()
	r.record.Paths = paths
	r.span.SetAttributes(attribute.StringSlice("jarvis.paths", paths))

	if err := s.deps.Guard.Enforce(paths); err != nil {
		return s.fail(r, m.PhaseStage, m.StatusError, "Rejected: "+err.Error(), err)
	}

	s.deps.Observer.DisplayPhase(ctx, m.PhaseBackup)

	backup, err := s.deps.Backups.Snapshot(ctx, paths)
	if err != nil {
		return s.fail(r, m.PhaseBackup, m.StatusError, "Could not back up the affected files.", err)
	}

	r.outcome.BackupID = backup.ID
	s.rotate(ctx)

	s.deps.Observer.DisplayPhase(ctx, m.PhaseStage)

	defer s.discardStaging(ctx)

	staged, err := s.deps.Staging.Stage(ctx, changes)
	if err != nil {
		if errors.Is(err, m.ErrSandboxViolation) {
			return s.fail(r, m.PhaseStage, m.StatusError, "Rejected: "+err.Error(), err)
		}

		return s.fail(r, m.PhaseStage, m.StatusError, "Could not stage the changes.", err)
	}

	previews, err := s.deps.Previewer.Preview(ctx, staged)
	if err != nil {
		slog.Warn("Failed to compute diff stats", "runId", r.record.RunID, "error", err)
	}

	r.record.DiffStats = DiffStats(previews)

	s.deps.Observer.DisplayPhase(ctx, m.PhaseValidate)

	result, err := s.deps.Validator.Validate(ctx, staged, s.deps.Staging.Dir())
	if err != nil {
		return s.fail(r, m.PhaseValidate, m.StatusError, "Validation could not be completed.", err)
	}

	r.outcome.Validation = &result

	if !result.Passed {
		err = fmt.Errorf("%w: %s", m.ErrValidationFailure, result.Summary())
		return s.fail(r, m.PhaseValidate, m.StatusError, "Validation failed: "+result.Summary(), err)
	}

	dependenciesChanged := s.deps.Decider.DependenciesChanged(ctx, changes)

	s.deps.Observer.DisplayPhase(ctx, m.PhaseApply)

	written, err := s.deps.Applier.Apply(ctx, staged)
	r.outcome.Changed = written

	if err != nil {
		return s.rollback(ctx, r, backup.ID, err)
	}

	decision := s.deps.Decider.Decide(paths, dependenciesChanged)
	r.outcome.Decision = &decision

	if decision.Mode == m.ReloadFull {
		r.outcome.Status = m.StatusSuccess
		r.outcome.RestartRequired = true
		r.outcome.Message = fmt.Sprintf("Changes applied to %d file(s); a full restart is required (%s).", len(written), decision.Reason)

		return s.finish(r)
	}

	s.deps.Observer.DisplayPhase(ctx, m.PhaseReload)

	if err := s.deps.Process.SoftReload(ctx, decision.Units); err != nil {
		err = fmt.Errorf("%w: %w", m.ErrReloadVerification, err)
		return s.fail(r, m.PhaseReload, m.StatusError, "Changes were applied but reloading failed.", err)
	}

	if err := s.deps.Process.Verify(ctx); err != nil {
		return s.fail(r, m.PhaseReload, m.StatusError, "Changes were applied but reload verification failed.", err)
	}

	r.outcome.Status = m.StatusSuccess
	r.outcome.Message = fmt.Sprintf("Changes applied to %d file(s) and loaded successfully.", len(written))

	return s.finish(r)
}

func (s *selfModifier) rollback(ctx context.Context, r *run, backupID string, cause error) m.RequestOutcome {
	s.deps.Observer.DisplayPhase(ctx, m.PhaseRollback)
	r.span.RecordError(cause)

	if err := s.deps.Backups.Restore(context.WithoutCancel(ctx), backupID); err != nil {
		joined := errors.Join(cause, err)
		return s.fail(r, m.PhaseRollback, m.StatusDegraded, "Applying failed and the backup could not be restored.", joined)
	}

	slog.Info("Rolled back to backup", "runId", r.record.RunID, "backup", backupID)
	r.outcome.Changed = nil

	return s.fail(r, m.PhaseApply, m.StatusError, "Applying failed; the previous files were restored.", cause)
}

func (s *selfModifier) rotate(ctx context.Context) {
	if s.cfg.MaxBackups <= 0 {
		return
	}

	kept, err := s.deps.Backups.Rotate(ctx, s.cfg.MaxBackups)
	if err != nil {
		slog.Warn("Failed to rotate backups", "error", err)
		return
	}

	s.deps.Metrics.SetBackups(kept)
}

func (s *selfModifier) discardStaging(ctx context.Context) {
	if err := s.deps.Staging.Discard(context.WithoutCancel(ctx)); err != nil {
		slog.Warn("Failed to discard staging area", "error", err)
	}
}

func (s *selfModifier) Preview(ctx context.Context, changes m.ChangeSet) ([]m.FilePreview, m.ValidationResult, error) {
	if err := s.lock.Acquire(ctx, 1); err != nil {
		return nil, m.ValidationResult{}, fmt.Errorf("failed to acquire pipeline lock: %w", err)
	}
	defer s.lock.Release(1)

	if len(changes) == 0 {
		return nil, m.ValidationResult{}, m.ErrExtractionEmpty
	}

	changes, err := s.deps.Guard.Relativize(changes)
	if err != nil {
		return nil, m.ValidationResult{}, err
	}

	defer s.discardStaging(ctx)

	s.deps.Observer.DisplayPhase(ctx, m.PhaseStage)

	staged, err := s.deps.Staging.Stage(ctx, changes)
	if err != nil {
		return nil, m.ValidationResult{}, err
	}

	previews, err := s.deps.Previewer.Preview(ctx, staged)
	if err != nil {
		return nil, m.ValidationResult{}, err
	}

	s.deps.Observer.DisplayPhase(ctx, m.PhaseValidate)

	result, err := s.deps.Validator.Validate(ctx, staged, s.deps.Staging.Dir())
	if err != nil {
		return previews, result, err
	}

	return previews, result, nil
}

func (s *selfModifier) Classify(ctx context.Context, text string) m.Classification {
	return s.deps.Client.ClassifyIntent(ctx, text)
}

func (s *selfModifier) Restart(ctx context.Context, outcome m.RequestOutcome) error {
	if !outcome.RestartRequired || outcome.Decision == nil {
		return nil
	}

	return s.deps.Process.FullRestart(ctx, *outcome.Decision, outcome.Changed)
}

func (s *selfModifier) Undo(ctx context.Context, backupID string) (m.BackupSet, error) {
	if err := s.lock.Acquire(ctx, 1); err != nil {
		return m.BackupSet{}, fmt.Errorf("failed to acquire pipeline lock: %w", err)
	}
	defer s.lock.Release(1)

	if backupID == "" {
		latest, err := s.deps.Backups.Latest(ctx)
		if err != nil {
			return m.BackupSet{}, err
		}

		backupID = latest.ID
	}

	sets, err := s.deps.Backups.List(ctx)
	if err != nil {
		return m.BackupSet{}, err
	}

	for _, set := range sets {
		if set.ID != backupID {
			continue
		}

		if err := s.deps.Backups.Restore(ctx, backupID); err != nil {
			return set, err
		}

		slog.Info("Restored backup", "backup", backupID, "files", len(set.Files))

		return set, nil
	}

	return m.BackupSet{}, fmt.Errorf("backup %q not found", backupID)
}

func (s *selfModifier) Backups(ctx context.Context) ([]m.BackupSet, error) {
	return s.deps.Backups.List(ctx)
}

func (s *selfModifier) History(_ context.Context, limit int) ([]m.RunRecord, error) {
	if s.deps.Reports == nil {
		return nil, nil
	}

	return s.deps.Reports.LoadRecords(limit)
}
