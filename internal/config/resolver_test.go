package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pg-lifecycle/internal/lifecycle"
)

func testSettings() Settings {
	return Settings{
		BackupDir: "/var/backups/pg",
		Environments: map[string]Profile{
			"dev": {
				Host:     "localhost",
				Port:     5432,
				Database: "app_dev",
				User:     "app",
				Password: "devpass",
				Role:     "dev",
			},
			"prod": {
				Host:           "db.internal",
				Database:       "app",
				User:           "app",
				PasswordEnv:    "TEST_PROD_DB_PASSWORD",
				Role:           "prod",
				CriticalTables: []string{"users", "orders"},
			},
			"broken": {
				Port: 5432,
			},
		},
	}
}

func TestResolveKnownEnvironment(t *testing.T) {
	resolver := NewResolver(testSettings())

	env, err := resolver.Resolve("dev")
	require.NoError(t, err)

	assert.Equal(t, "dev", env.Name)
	assert.Equal(t, "localhost", env.Host)
	assert.Equal(t, 5432, env.Port)
	assert.Equal(t, "app_dev", env.Database)
	assert.Equal(t, RoleDev, env.Role)
	assert.False(t, env.IsProd())
	assert.Equal(t, 30*time.Second, env.Timeout)
}

func TestResolveUnknownEnvironment(t *testing.T) {
	resolver := NewResolver(testSettings())

	_, err := resolver.Resolve("staging")
	require.Error(t, err)
	assert.Equal(t, lifecycle.KindUnknownEnvironment, lifecycle.KindOf(err))
}

func TestResolveMisconfiguredEnvironment(t *testing.T) {
	resolver := NewResolver(testSettings())

	_, err := resolver.Resolve("broken")
	require.Error(t, err)
	assert.Equal(t, lifecycle.KindMisconfiguredEnvironment, lifecycle.KindOf(err))
	assert.Contains(t, err.Error(), "host")
	assert.Contains(t, err.Error(), "user")
}

func TestResolvePasswordFromEnvVar(t *testing.T) {
	resolver := NewResolver(testSettings())

	_, err := resolver.Resolve("prod")
	require.Error(t, err, "unset password variable must fail validation")
	assert.Equal(t, lifecycle.KindMisconfiguredEnvironment, lifecycle.KindOf(err))
	assert.Contains(t, err.Error(), "TEST_PROD_DB_PASSWORD")

	t.Setenv("TEST_PROD_DB_PASSWORD", "s3cret")

	env, err := resolver.Resolve("prod")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", env.Password)
	assert.Equal(t, RoleProd, env.Role)
	assert.True(t, env.IsProd())
	assert.Equal(t, 5432, env.Port, "port defaults to 5432")
	assert.Equal(t, []string{"users", "orders"}, env.CriticalTables)
}

func TestResolveEnvOverrides(t *testing.T) {
	t.Setenv("PGLC_DEV_HOST", "override.example.com")
	t.Setenv("PGLC_DEV_PORT", "5433")
	t.Setenv("PGLC_DEV_PASSWORD", "overridden")

	resolver := NewResolver(testSettings())

	env, err := resolver.Resolve("dev")
	require.NoError(t, err)
	assert.Equal(t, "override.example.com", env.Host)
	assert.Equal(t, 5433, env.Port)
	assert.Equal(t, "overridden", env.Password)
}

func TestResolveInvalidRole(t *testing.T) {
	settings := testSettings()
	profile := settings.Environments["dev"]
	profile.Role = "production"
	settings.Environments["dev"] = profile

	resolver := NewResolver(settings)

	_, err := resolver.Resolve("dev")
	require.Error(t, err)
	assert.Equal(t, lifecycle.KindMisconfiguredEnvironment, lifecycle.KindOf(err))
}

func TestDSN(t *testing.T) {
	env := Environment{
		Host:     "localhost",
		Port:     5432,
		Database: "app_dev",
		User:     "app",
		Password: "p@ss word",
	}

	dsn := env.DSN()
	assert.Contains(t, dsn, "postgres://")
	assert.Contains(t, dsn, "localhost:5432")
	assert.Contains(t, dsn, "/app_dev")
	assert.Contains(t, dsn, "sslmode=prefer")
	assert.NotContains(t, dsn, "p@ss word", "password must be URL-escaped")
}

func TestPGEnv(t *testing.T) {
	env := Environment{
		Host:     "db.internal",
		Port:     5432,
		Database: "app",
		User:     "app",
		Password: "secret",
	}

	vars := env.PGEnv()
	assert.Contains(t, vars, "PGHOST=db.internal")
	assert.Contains(t, vars, "PGPORT=5432")
	assert.Contains(t, vars, "PGDATABASE=app")
	assert.Contains(t, vars, "PGUSER=app")
	assert.Contains(t, vars, "PGPASSWORD=secret")
}
