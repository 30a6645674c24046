package model

import (
	"fmt"
	"time"
)

// OutcomeStatus is the coarse result of a pipeline run.
type OutcomeStatus string

// Available OutcomeStatus values.
const (
	StatusSuccess  OutcomeStatus = "success"
	StatusWarning  OutcomeStatus = "warning"
	StatusError    OutcomeStatus = "error"
	StatusDegraded OutcomeStatus = "degraded"
)

// DefaultLogPath is where pipeline logs land relative to the project root.
const DefaultLogPath = "logs/self_modify.log"

// RequestOutcome is returned to the front-end after every run.
type RequestOutcome struct {
	RunID           string            `json:"run_id"`
	Status          OutcomeStatus     `json:"status"`
	Message         string            `json:"message"`
	RestartRequired bool              `json:"restart_required"`
	Decision        *ReloadDecision   `json:"decision,omitempty"`
	BackupID        string            `json:"backup_id,omitempty"`
	Changed         []string          `json:"changed,omitempty"`
	Validation      *ValidationResult `json:"validation,omitempty"`
	LogPath         string            `json:"log_path,omitempty"`
}

// UserMessage renders the outcome the way it is shown to a person.
func (o RequestOutcome) UserMessage() string {
	switch o.Status {
	case StatusSuccess:
		msg := "Done. " + o.Message
		if o.RestartRequired {
			msg += " The process will now restart."
		}

		return msg
	case StatusWarning:
		return "Nothing to do. " + o.Message
	case StatusDegraded:
		return fmt.Sprintf("Action failed and the project may be inconsistent. %s See logs at %s for details.", o.Message, o.logPath())
	default:
		return fmt.Sprintf("Action failed. %s See logs at %s for details.", o.Message, o.logPath())
	}
}

func (o RequestOutcome) logPath() string {
	if o.LogPath == "" {
		return DefaultLogPath
	}

	return o.LogPath
}

// DiffStat counts line changes for one file.
type DiffStat struct {
	Path    string `json:"path"`
	Added   int    `json:"added"`
	Deleted int    `json:"deleted"`
	New     bool   `json:"new"`
}

// FilePreview is the staged-versus-live view of one file.
type FilePreview struct {
	DiffStat
	Unified string `json:"unified"`
}

// RunRecord is the journal entry written after every pipeline run.
type RunRecord struct {
	RunID     string
	Started   time.Time
	Duration  time.Duration
	Goal      string
	Paths     []string
	Status    OutcomeStatus
	Message   string
	BackupID  string
	Reload    ReloadDecision
	DiffStats []DiffStat
}

// Phase names a step of a pipeline run for progress display.
type Phase string

// Available Phase values.
const (
	PhaseGenerate Phase = "generate"
	PhaseExtract  Phase = "extract"
	PhaseBackup   Phase = "backup"
	PhaseStage    Phase = "stage"
	PhaseValidate Phase = "validate"
	PhaseApply    Phase = "apply"
	PhaseRollback Phase = "rollback"
	PhaseReload   Phase = "reload"
)
