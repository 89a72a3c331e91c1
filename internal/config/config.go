package config

import (
	"fmt"
	"net/url"
	"time"
)

// Role classifies an environment for safety purposes. Destructive operations
// against a prod environment require an explicit confirmation.
type Role string

const (
	RoleDev  Role = "dev"
	RoleProd Role = "prod"
)

// Environment is the resolved connection descriptor for a named environment.
// It is a value type: resolved once per invocation and never mutated.
type Environment struct {
	Name           string
	Host           string
	Port           int
	Database       string
	User           string
	Password       string
	Role           Role
	MigrationsDir  string
	CriticalTables []string
	Timeout        time.Duration
}

// Profile is the on-disk shape of one environment entry in the config file.
type Profile struct {
	Host           string        `mapstructure:"host" yaml:"host"`
	Port           int           `mapstructure:"port" yaml:"port"`
	Database       string        `mapstructure:"database" yaml:"database"`
	User           string        `mapstructure:"user" yaml:"user"`
	Password       string        `mapstructure:"password" yaml:"password"`
	PasswordEnv    string        `mapstructure:"password_env" yaml:"password_env"`
	Role           string        `mapstructure:"role" yaml:"role"`
	MigrationsDir  string        `mapstructure:"migrations_dir" yaml:"migrations_dir"`
	CriticalTables []string      `mapstructure:"critical_tables" yaml:"critical_tables"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Settings is the full configuration file shape.
type Settings struct {
	BackupDir    string             `mapstructure:"backup_dir" yaml:"backup_dir"`
	Environments map[string]Profile `mapstructure:"environments" yaml:"environments"`
	Archive      ArchiveSettings    `mapstructure:"archive" yaml:"archive"`
}

// ArchiveSettings configures the optional remote archive for finished
// backups.
type ArchiveSettings struct {
	Backend         string `mapstructure:"backend" yaml:"backend"` // "s3", "gcs" or "azure"
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKey       string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey       string `mapstructure:"secret_key" yaml:"secret_key"`
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
	Container       string `mapstructure:"container" yaml:"container"`
	AccountName     string `mapstructure:"account_name" yaml:"account_name"`
	AccountKey      string `mapstructure:"account_key" yaml:"account_key"`
}

// DSN returns the PostgreSQL connection URL for this environment.
func (e Environment) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(e.User, e.Password),
		Host:   fmt.Sprintf("%s:%d", e.Host, e.Port),
		Path:   "/" + e.Database,
	}
	q := u.Query()
	q.Set("sslmode", "prefer")
	u.RawQuery = q.Encode()
	return u.String()
}

// PGEnv returns environment variables understood by pg_dump, pg_restore and
// psql for this environment.
func (e Environment) PGEnv() []string {
	return []string{
		"PGHOST=" + e.Host,
		fmt.Sprintf("PGPORT=%d", e.Port),
		"PGDATABASE=" + e.Database,
		"PGUSER=" + e.User,
		"PGPASSWORD=" + e.Password,
	}
}

// IsProd reports whether destructive operations require explicit
// confirmation.
func (e Environment) IsProd() bool {
	return e.Role == RoleProd
}
