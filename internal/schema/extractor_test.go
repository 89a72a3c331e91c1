package schema

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pg-lifecycle/internal/config"
)

func TestExtractSnapshot(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	env := config.Environment{Name: "dev"}

	mock.ExpectQuery("FROM information_schema.tables").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("users"))

	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("users").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "column_default", "ordinal_position"}).
			AddRow("id", "integer", "NO", nil, 1).
			AddRow("email", "text", "NO", nil, 2).
			AddRow("created_at", "timestamp with time zone", "YES", "now()", 3))

	mock.ExpectQuery("FROM information_schema.table_constraints").
		WithArgs("users").
		WillReturnRows(sqlmock.NewRows([]string{"constraint_name", "constraint_type", "column_name"}).
			AddRow("users_pkey", "PRIMARY KEY", "id").
			AddRow("users_email_key", "UNIQUE", "email"))

	mock.ExpectQuery("FROM pg_class").
		WithArgs("users").
		WillReturnRows(sqlmock.NewRows([]string{"relname", "indisunique", "attname"}).
			AddRow("users_email_idx", true, "email"))

	extractor := NewExtractor()
	snapshot, err := extractor.ExtractSnapshot(context.Background(), db, env)
	require.NoError(t, err)

	assert.Equal(t, "dev", snapshot.Environment)
	require.Contains(t, snapshot.Tables, "users")

	users := snapshot.Tables["users"]
	require.Len(t, users.Columns, 3)
	assert.Equal(t, "id", users.Columns[0].Name)
	assert.False(t, users.Columns[0].Nullable)
	assert.True(t, users.Columns[2].Nullable)
	assert.Equal(t, "now()", users.Columns[2].Default)

	require.Len(t, users.Constraints, 2)
	require.Len(t, users.Indexes, 1)
	assert.True(t, users.Indexes[0].Unique)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExtractSnapshotMultiColumnConstraint(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM information_schema.tables").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("memberships"))

	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("memberships").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "column_default", "ordinal_position"}).
			AddRow("user_id", "integer", "NO", nil, 1).
			AddRow("org_id", "integer", "NO", nil, 2))

	mock.ExpectQuery("FROM information_schema.table_constraints").
		WithArgs("memberships").
		WillReturnRows(sqlmock.NewRows([]string{"constraint_name", "constraint_type", "column_name"}).
			AddRow("memberships_pkey", "PRIMARY KEY", "user_id").
			AddRow("memberships_pkey", "PRIMARY KEY", "org_id"))

	mock.ExpectQuery("FROM pg_class").
		WithArgs("memberships").
		WillReturnRows(sqlmock.NewRows([]string{"relname", "indisunique", "attname"}))

	snapshot, err := NewExtractor().ExtractSnapshot(context.Background(), db, config.Environment{Name: "dev"})
	require.NoError(t, err)

	constraints := snapshot.Tables["memberships"].Constraints
	require.Len(t, constraints, 1)
	assert.Equal(t, []string{"user_id", "org_id"}, constraints[0].Columns)
}

func TestRowCounts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM information_schema.tables").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("orders").AddRow("users"))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM public."orders"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM public."users"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	counts, err := NewExtractor().RowCounts(context.Background(), db, config.Environment{Name: "dev"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"orders": 12, "users": 3}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
