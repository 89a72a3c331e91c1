package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"pg-lifecycle/internal/lifecycle"
)

// EnvPrefix is the prefix for per-environment override variables, e.g.
// PGLC_PROD_HOST overrides the host of the "prod" profile.
const EnvPrefix = "PGLC"

// Resolver maps environment names to resolved Environment values. Resolution
// is a pure local lookup plus validation: no network access happens here, so
// it is safe to call repeatedly.
type Resolver struct {
	settings Settings
}

// NewResolver creates a resolver over the loaded settings.
func NewResolver(settings Settings) *Resolver {
	return &Resolver{settings: settings}
}

// Resolve looks up and validates the named environment.
func (r *Resolver) Resolve(name string) (Environment, error) {
	const op = "resolve"

	profile, ok := r.settings.Environments[name]
	if !ok {
		return Environment{}, lifecycle.NewUnknownEnvironmentError(op, name)
	}

	applyEnvOverrides(name, &profile)

	env := Environment{
		Name:           name,
		Host:           profile.Host,
		Port:           profile.Port,
		Database:       profile.Database,
		User:           profile.User,
		Password:       profile.Password,
		Role:           Role(profile.Role),
		MigrationsDir:  profile.MigrationsDir,
		CriticalTables: append([]string(nil), profile.CriticalTables...),
		Timeout:        profile.Timeout,
	}

	if env.Password == "" && profile.PasswordEnv != "" {
		env.Password = os.Getenv(profile.PasswordEnv)
	}
	if env.Port == 0 {
		env.Port = 5432
	}
	if env.Role == "" {
		env.Role = RoleDev
	}
	if env.Timeout == 0 {
		env.Timeout = 30 * time.Second
	}

	if err := validate(env, profile); err != nil {
		return Environment{}, err
	}

	return env, nil
}

// Names returns the defined environment names.
func (r *Resolver) Names() []string {
	names := make([]string, 0, len(r.settings.Environments))
	for name := range r.settings.Environments {
		names = append(names, name)
	}
	return names
}

func validate(env Environment, profile Profile) error {
	const op = "resolve"

	var missing []string
	if env.Host == "" {
		missing = append(missing, "host")
	}
	if env.Database == "" {
		missing = append(missing, "database")
	}
	if env.User == "" {
		missing = append(missing, "user")
	}
	if env.Password == "" {
		field := "password"
		if profile.PasswordEnv != "" {
			field = fmt.Sprintf("password (variable %s is unset)", profile.PasswordEnv)
		}
		missing = append(missing, field)
	}
	if len(missing) > 0 {
		return lifecycle.NewMisconfiguredEnvironmentError(op,
			fmt.Sprintf("environment %q is missing required fields: %s",
				env.Name, strings.Join(missing, ", ")), nil)
	}

	if env.Port <= 0 || env.Port > 65535 {
		return lifecycle.NewMisconfiguredEnvironmentError(op,
			fmt.Sprintf("environment %q has invalid port %d", env.Name, env.Port), nil)
	}

	if env.Role != RoleDev && env.Role != RoleProd {
		return lifecycle.NewMisconfiguredEnvironmentError(op,
			fmt.Sprintf("environment %q has invalid role %q (must be dev or prod)", env.Name, env.Role), nil)
	}

	return nil
}

// applyEnvOverrides overlays PGLC_<NAME>_* variables onto the profile, so
// secrets and per-host settings never need to live in the config file.
func applyEnvOverrides(name string, profile *Profile) {
	prefix := fmt.Sprintf("%s_%s_", EnvPrefix, strings.ToUpper(name))

	if v := os.Getenv(prefix + "HOST"); v != "" {
		profile.Host = v
	}
	if v := os.Getenv(prefix + "PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			profile.Port = port
		}
	}
	if v := os.Getenv(prefix + "DATABASE"); v != "" {
		profile.Database = v
	}
	if v := os.Getenv(prefix + "USER"); v != "" {
		profile.User = v
	}
	if v := os.Getenv(prefix + "PASSWORD"); v != "" {
		profile.Password = v
	}
}
