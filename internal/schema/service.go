package schema

import (
	"context"
	"time"

	"pg-lifecycle/internal/config"
	"pg-lifecycle/internal/database"
	"pg-lifecycle/internal/logging"
)

// Service provides schema extraction and comparison over live environments.
// All of its operations are read-only introspection and never take the
// environment lock.
type Service struct {
	connections database.Connector
	extractor   *Extractor
	logger      *logging.Logger
}

// NewService creates a schema service.
func NewService(connections database.Connector, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Service{
		connections: connections,
		extractor:   NewExtractor(),
		logger:      logger,
	}
}

// Snapshot extracts a fresh snapshot of the environment's schema.
func (s *Service) Snapshot(ctx context.Context, env config.Environment) (*Snapshot, error) {
	db, err := s.connections.Connect(ctx, env)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	return s.extractor.ExtractSnapshot(ctx, db, env)
}

// RowCounts returns the row count of every table in the environment.
func (s *Service) RowCounts(ctx context.Context, env config.Environment) (map[string]int64, error) {
	db, err := s.connections.Connect(ctx, env)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	return s.extractor.RowCounts(ctx, db, env)
}

// CompareEnvironments extracts both snapshots independently and diffs them.
func (s *Service) CompareEnvironments(ctx context.Context, a, b config.Environment) (*DiffResult, error) {
	start := time.Now()

	snapA, err := s.Snapshot(ctx, a)
	if err != nil {
		return nil, err
	}
	snapB, err := s.Snapshot(ctx, b)
	if err != nil {
		return nil, err
	}

	diff := Compare(snapA, snapB)
	s.logger.LogComparison(a.Name, b.Name, diff.ChangeCount(), time.Since(start))
	return diff, nil
}
