package orchestrator

import (
	"time"

	"github.com/google/uuid"

	"pg-lifecycle/internal/backup"
	"pg-lifecycle/internal/migration"
	"pg-lifecycle/internal/schema"
)

// Phase is one state of the guarded update state machine.
type Phase string

const (
	PhaseBackup     Phase = "BACKUP"
	PhaseCompare    Phase = "COMPARE"
	PhaseConfirm    Phase = "CONFIRM"
	PhaseMigrate    Phase = "MIGRATE"
	PhaseValidate   Phase = "VALIDATE"
	PhaseSucceeded  Phase = "SUCCEEDED"
	PhaseRolledBack Phase = "ROLLED_BACK"
	PhaseFailed     Phase = "FAILED"
)

// Terminal reports whether the phase ends a session.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseRolledBack || p == PhaseFailed
}

// Session is the working state of one guarded update. It is created at
// orchestration start, reaches exactly one terminal phase, and is never
// shared between concurrent updates of the same environment (the
// environment lock rules that out).
type Session struct {
	ID          string
	Environment string
	Reference   string
	StartedAt   time.Time
	Phase       Phase

	PreBackup   *backup.Record
	PreRevision migration.Revision
	PreCounts   map[string]int64

	Diff           *schema.DiffResult
	TargetRevision migration.Revision
}

// NewSession creates a session in the BACKUP phase.
func NewSession(environment, reference string) *Session {
	return &Session{
		ID:          uuid.NewString(),
		Environment: environment,
		Reference:   reference,
		StartedAt:   time.Now(),
		Phase:       PhaseBackup,
	}
}

// Report is the user-facing summary of a finished session.
type Report struct {
	SessionID      string             `json:"session_id" yaml:"session_id"`
	Environment    string             `json:"environment" yaml:"environment"`
	Reference      string             `json:"reference" yaml:"reference"`
	Phase          Phase              `json:"phase" yaml:"phase"`
	PreRevision    migration.Revision `json:"pre_revision" yaml:"pre_revision"`
	TargetRevision migration.Revision `json:"target_revision" yaml:"target_revision"`
	BackupPath     string             `json:"backup_path,omitempty" yaml:"backup_path,omitempty"`
	Diff           *schema.DiffResult `json:"diff,omitempty" yaml:"diff,omitempty"`
	RolledBack     bool               `json:"rolled_back" yaml:"rolled_back"`
	Duration       time.Duration      `json:"duration" yaml:"duration"`
}

func (s *Session) report() *Report {
	r := &Report{
		SessionID:      s.ID,
		Environment:    s.Environment,
		Reference:      s.Reference,
		Phase:          s.Phase,
		PreRevision:    s.PreRevision,
		TargetRevision: s.TargetRevision,
		Diff:           s.Diff,
		RolledBack:     s.Phase == PhaseRolledBack,
		Duration:       time.Since(s.StartedAt),
	}
	if s.PreBackup != nil {
		r.BackupPath = s.PreBackup.Path
	}
	return r
}
