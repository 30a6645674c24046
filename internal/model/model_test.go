package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"app/util.py", "app/util.py"},
		{"  ./app/util.py ", "app/util.py"},
		{"app\\models\\user.py", "app/models/user.py"},
		{"app//x/../y.py", "app/y.py"},
		{".", ""},
		{"   ", ""},
		{"../escape.py", "../escape.py"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePath(tt.in))
		})
	}
}

func TestChangeSet_Paths(t *testing.T) {
	cs := ChangeSet{"b.py": "", "a/z.py": "", "a/b.py": ""}
	assert.Equal(t, []string{"a/b.py", "a/z.py", "b.py"}, cs.Paths())
	assert.Empty(t, ChangeSet{}.Paths())
}

func TestValidationResult_Summary(t *testing.T) {
	r := ValidationResult{
		Failures: []ValidationFailure{
			{Path: "app/a.py", Stage: StageSyntax, Detail: "line 1: invalid syntax\n  def f(:"},
			{Path: "app/a.py", Stage: StageLint, Detail: "E501 line too long"},
			{Path: "tests", Stage: StageTest, Detail: "1 failed"},
		},
	}

	assert.Len(t, r.Blocking(), 2)
	assert.Equal(t, "app/a.py (syntax): line 1: invalid syntax\ntests (test): 1 failed", r.Summary())
}

func TestRequestOutcome_UserMessage(t *testing.T) {
	tests := []struct {
		name    string
		outcome RequestOutcome
		want    string
	}{
		{
			name:    "success",
			outcome: RequestOutcome{Status: StatusSuccess, Message: "Changes applied."},
			want:    "Done. Changes applied.",
		},
		{
			name:    "restart",
			outcome: RequestOutcome{Status: StatusSuccess, Message: "Changes applied.", RestartRequired: true},
			want:    "Done. Changes applied. The process will now restart.",
		},
		{
			name:    "warning",
			outcome: RequestOutcome{Status: StatusWarning, Message: "No file changes."},
			want:    "Nothing to do. No file changes.",
		},
		{
			name:    "error uses default log path",
			outcome: RequestOutcome{Status: StatusError, Message: "Validation failed."},
			want:    "Action failed. Validation failed. See logs at logs/self_modify.log for details.",
		},
		{
			name:    "degraded",
			outcome: RequestOutcome{Status: StatusDegraded, Message: "Rollback failed.", LogPath: "/var/log/j.log"},
			want:    "Action failed and the project may be inconsistent. Rollback failed. See logs at /var/log/j.log for details.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.outcome.UserMessage())
		})
	}
}

func TestSandboxViolationError_Is(t *testing.T) {
	err := fmt.Errorf("stage: %w", &SandboxViolationError{Path: "../x", Reason: "outside project root"})

	assert.ErrorIs(t, err, ErrSandboxViolation)
	assert.NotErrorIs(t, err, ErrApplyFailure)

	var target *SandboxViolationError
	assert.True(t, errors.As(err, &target))
	assert.Equal(t, "../x", target.Path)
	assert.Equal(t, "sandbox violation: ../x: outside project root", target.Error())
}
