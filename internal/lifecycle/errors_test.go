package lifecycle

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "without cause",
			err:      NewError(KindConnectivity, "backup", "cannot reach host", nil),
			expected: "CONNECTIVITY_ERROR: backup: cannot reach host",
		},
		{
			name:     "with cause",
			err:      NewError(KindMigrationExecution, "migrate", "step failed", errors.New("syntax error")),
			expected: "MIGRATION_EXECUTION_ERROR: migrate: step failed (caused by: syntax error)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewConnectivityError("backup", "dial failed", cause)

	assert.Equal(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestKindOfThroughWrapping(t *testing.T) {
	inner := NewChecksumMismatchError("restore", "recorded hash does not match")
	wrapped := fmt.Errorf("restoring dump: %w", inner)

	assert.Equal(t, KindChecksumMismatch, KindOf(wrapped))
	assert.Equal(t, "restore", OpOf(wrapped))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, ExitOK},
		{"connectivity", NewConnectivityError("backup", "down", nil), ExitOperational},
		{"permission", NewPermissionError("backup", "denied", nil), ExitOperational},
		{"unknown environment", NewUnknownEnvironmentError("resolve", "qa"), ExitOperational},
		{"misconfigured environment", NewMisconfiguredEnvironmentError("resolve", "no host", nil), ExitOperational},
		{"environment busy", NewEnvironmentBusyError("migrate", "prod"), ExitOperational},
		{"migration execution", NewMigrationExecutionError("migrate", "boom", nil), ExitOperational},
		{"no downgrade path", NewNoDowngradePathError("rollback", "no inverse"), ExitOperational},
		{"checksum mismatch", NewChecksumMismatchError("restore", "bad hash"), ExitValidation},
		{"schema conflict", NewSchemaConflictError("restore", "table exists", nil), ExitValidation},
		{"validation failed", NewValidationFailedError("validate", "table empty"), ExitValidation},
		{"plain error", errors.New("plain"), ExitOperational},
		{
			"rolled back migration",
			MarkRolledBack(NewMigrationExecutionError("update-prod", "boom", nil)),
			ExitRolledBack,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExitCode(tt.err))
		})
	}
}

func TestRolledBackThroughWrapping(t *testing.T) {
	err := MarkRolledBack(NewValidationFailedError("update-prod", "critical table emptied"))
	wrapped := fmt.Errorf("production update: %w", err)

	assert.True(t, RolledBack(wrapped))
	assert.Equal(t, ExitRolledBack, ExitCode(wrapped))
	assert.False(t, RolledBack(NewValidationFailedError("validate", "x")))
}

func TestWithContext(t *testing.T) {
	err := NewConnectivityError("backup", "dial failed", nil).
		WithContext("host", "db.example.com").
		WithContext("port", 5432)

	require.NotNil(t, err.Context)
	assert.Equal(t, "db.example.com", err.Context["host"])
	assert.Equal(t, 5432, err.Context["port"])
}
