package migration

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pg-lifecycle/internal/config"
	"pg-lifecycle/internal/database"
	"pg-lifecycle/internal/lifecycle"
)

// fakeTool drives the runner without goose or a real database.
type fakeTool struct {
	available []Revision
	current   Revision
	// failAt makes UpTo fail once the tool has advanced to this revision.
	failAt    Revision
	downLimit int
	downCalls int
}

func (f *fakeTool) Current(ctx context.Context, db *sql.DB) (Revision, error) {
	return f.current, nil
}

func (f *fakeTool) UpTo(ctx context.Context, db *sql.DB, dir string, target Revision) error {
	for _, rev := range f.available {
		if rev <= f.current || rev > target {
			continue
		}
		if f.failAt != 0 && rev >= f.failAt {
			return errors.New("syntax error in migration")
		}
		f.current = rev
	}
	return nil
}

func (f *fakeTool) Down(ctx context.Context, db *sql.DB, dir string) error {
	if f.downCalls >= f.downLimit {
		return ErrNoDownPath
	}
	f.downCalls++
	for i := len(f.available) - 1; i >= 0; i-- {
		if f.available[i] < f.current {
			f.current = f.available[i]
			return nil
		}
	}
	f.current = 0
	return nil
}

func (f *fakeTool) Available(dir string) ([]Revision, error) {
	return f.available, nil
}

func (f *fakeTool) History(ctx context.Context, db *sql.DB, dir string) ([]Entry, error) {
	entries := make([]Entry, 0, len(f.available))
	for _, rev := range f.available {
		entries = append(entries, Entry{Revision: rev, Applied: rev <= f.current})
	}
	return entries, nil
}

// fakeConnector hands out a sqlmock database without pinging.
type fakeConnector struct {
	db *sql.DB
}

func (f *fakeConnector) Connect(ctx context.Context, env config.Environment) (*sql.DB, error) {
	return f.db, nil
}

// fakeLocker implements database.Locker in memory.
type fakeLocker struct {
	busy bool
}

func (f *fakeLocker) Acquire(ctx context.Context, env config.Environment, op string) (database.ReleaseFunc, error) {
	if f.busy {
		return nil, lifecycle.NewEnvironmentBusyError(op, env.Name)
	}
	return func(ctx context.Context) error { return nil }, nil
}

func newTestRunner(t *testing.T, tool Tool, locker database.Locker) *Runner {
	t.Helper()
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRunner(tool, &fakeConnector{db: db}, locker, nil)
}

func migEnv() config.Environment {
	return config.Environment{Name: "dev", MigrationsDir: "migrations"}
}

func TestUpgradeToHead(t *testing.T) {
	tool := &fakeTool{available: []Revision{1, 2, 3}}
	runner := newTestRunner(t, tool, &fakeLocker{})

	result, err := runner.Upgrade(context.Background(), migEnv(), "head")
	require.NoError(t, err)
	assert.Equal(t, Revision(0), result.FromRevision)
	assert.Equal(t, Revision(3), result.ToRevision)
	assert.Equal(t, Revision(3), tool.current)
}

func TestUpgradeToSpecificRevision(t *testing.T) {
	tool := &fakeTool{available: []Revision{1, 2, 3}}
	runner := newTestRunner(t, tool, &fakeLocker{})

	result, err := runner.Upgrade(context.Background(), migEnv(), "2")
	require.NoError(t, err)
	assert.Equal(t, Revision(2), result.ToRevision)
	assert.Equal(t, Revision(2), tool.current)
}

func TestUpgradeUnknownTarget(t *testing.T) {
	runner := newTestRunner(t, &fakeTool{available: []Revision{1, 2}}, &fakeLocker{})

	_, err := runner.Upgrade(context.Background(), migEnv(), "9")
	require.Error(t, err)
	assert.Equal(t, lifecycle.KindMigrationExecution, lifecycle.KindOf(err))
}

func TestUpgradeFailureReportsLastApplied(t *testing.T) {
	tool := &fakeTool{available: []Revision{1, 2, 3}, failAt: 3}
	runner := newTestRunner(t, tool, &fakeLocker{})

	_, err := runner.Upgrade(context.Background(), migEnv(), "head")
	require.Error(t, err)
	assert.Equal(t, lifecycle.KindMigrationExecution, lifecycle.KindOf(err))

	var lcErr *lifecycle.Error
	require.ErrorAs(t, err, &lcErr)
	assert.Equal(t, int64(2), lcErr.Context["last_applied"],
		"error must carry the last successfully applied revision")
	assert.Equal(t, int64(3), lcErr.Context["target_revision"])
}

func TestUpgradeBusyEnvironment(t *testing.T) {
	runner := newTestRunner(t, &fakeTool{available: []Revision{1}}, &fakeLocker{busy: true})

	_, err := runner.Upgrade(context.Background(), migEnv(), "head")
	require.Error(t, err)
	assert.Equal(t, lifecycle.KindEnvironmentBusy, lifecycle.KindOf(err))
}

func TestDowngradeSteps(t *testing.T) {
	tool := &fakeTool{available: []Revision{1, 2, 3}, current: 3, downLimit: 10}
	runner := newTestRunner(t, tool, &fakeLocker{})

	result, err := runner.Downgrade(context.Background(), migEnv(), 2)
	require.NoError(t, err)
	assert.Equal(t, Revision(3), result.FromRevision)
	assert.Equal(t, Revision(1), result.ToRevision)
}

func TestDowngradeWithoutInverse(t *testing.T) {
	tool := &fakeTool{available: []Revision{1, 2}, current: 2, downLimit: 1}
	runner := newTestRunner(t, tool, &fakeLocker{})

	_, err := runner.Downgrade(context.Background(), migEnv(), 3)
	require.Error(t, err)
	assert.Equal(t, lifecycle.KindNoDowngradePath, lifecycle.KindOf(err))

	var lcErr *lifecycle.Error
	require.ErrorAs(t, err, &lcErr)
	assert.Equal(t, 1, lcErr.Context["completed_steps"])
}

func TestDowngradeRequiresPositiveSteps(t *testing.T) {
	runner := newTestRunner(t, &fakeTool{}, &fakeLocker{})
	_, err := runner.Downgrade(context.Background(), migEnv(), 0)
	require.Error(t, err)
}

func TestCurrentRevisionAndHistory(t *testing.T) {
	tool := &fakeTool{available: []Revision{1, 2, 3}, current: 2}
	runner := newTestRunner(t, tool, &fakeLocker{busy: true})

	// Read-only operations work even while the environment lock is held.
	current, err := runner.CurrentRevision(context.Background(), migEnv())
	require.NoError(t, err)
	assert.Equal(t, Revision(2), current)

	entries, err := runner.History(context.Background(), migEnv())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].Applied)
	assert.True(t, entries[1].Applied)
	assert.False(t, entries[2].Applied)
}
