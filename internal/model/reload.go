package model

// ReloadMode tells the process controller how to pick up committed changes.
type ReloadMode string

// Available ReloadMode values.
const (
	ReloadSoft ReloadMode = "soft"
	ReloadFull ReloadMode = "full"
)

// ReloadReason explains why a mode was chosen.
type ReloadReason string

// Available ReloadReason values.
const (
	ReasonNone              ReloadReason = "none"
	ReasonCriticalFile      ReloadReason = "critical_file"
	ReasonDependencyChanged ReloadReason = "dependency_changed"
)

// Process exit codes understood by the supervising process manager.
const (
	ExitCodeNormalRestart     = 0
	ExitCodeCriticalFile      = 42
	ExitCodeDependencyChanged = 43
)

// ReloadDecision is the output of the reload decider.
type ReloadDecision struct {
	Mode     ReloadMode   `json:"mode" yaml:"mode"`
	Reason   ReloadReason `json:"reason" yaml:"reason"`
	ExitCode int          `json:"exit_code" yaml:"exit_code"`
	Units    []string     `json:"units,omitempty" yaml:"units,omitempty"`
}

// RestartMarker is persisted right before the process image is replaced so
// the next process can record why it was started.
type RestartMarker struct {
	Reason      ReloadReason `cbor:"1,keyasint"`
	ExitCode    int          `cbor:"2,keyasint"`
	Paths       []string     `cbor:"3,keyasint"`
	PreviousPID int          `cbor:"4,keyasint"`
	UnixNano    int64        `cbor:"5,keyasint"`
}
