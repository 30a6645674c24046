package model

import (
	"errors"
	"fmt"
)

// Error taxonomy of the self-modification pipeline.
var (
	ErrSandboxViolation   = errors.New("sandbox violation")
	ErrExtractionEmpty    = errors.New("no file changes found in generator response")
	ErrValidationFailure  = errors.New("validation failed")
	ErrApplyFailure       = errors.New("apply failed")
	ErrGenerationFailure  = errors.New("generation failed")
	ErrRollbackFailure    = errors.New("rollback failed")
	ErrReloadVerification = errors.New("reload verification failed")
	ErrToolUnavailable    = errors.New("tool unavailable")
)

// SandboxViolationError carries the offending path.
type SandboxViolationError struct {
	Path   string
	Reason string
}

func (e *SandboxViolationError) Error() string {
	return fmt.Sprintf("sandbox violation: %s: %s", e.Path, e.Reason)
}

// Is lets errors.Is match ErrSandboxViolation.
func (e *SandboxViolationError) Is(target error) bool {
	return target == ErrSandboxViolation
}
