package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pg-lifecycle/internal/backup"
	"pg-lifecycle/internal/config"
	"pg-lifecycle/internal/database"
	"pg-lifecycle/internal/display"
	"pg-lifecycle/internal/lifecycle"
	"pg-lifecycle/internal/logging"
	"pg-lifecycle/internal/migration"
	"pg-lifecycle/internal/schema"
)

var cfgFile string

// timeRound keeps printed durations readable.
const timeRound = 10 * time.Millisecond

// CLI flag variables
var (
	envName    string
	verbose    bool
	quiet      bool
	noColor    bool
	logFile    string
	backupDir  string
	assumeYes  bool
	outputMode string
)

// Version information (set via SetVersionInfo from build flags)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pg-lifecycle",
	Short: "Multi-environment PostgreSQL lifecycle manager",
	Long: `pg-lifecycle manages the lifecycle of PostgreSQL databases across named
environments: checksummed backups and restores, schema migrations, schema
comparison between environments, backup retention, and a guarded production
update that backs up, compares, confirms, migrates, validates, and rolls
back automatically on failure.

Environments are named profiles from the configuration file; connection
details and credentials can be overridden per environment with
PGLC_<ENV>_HOST, PGLC_<ENV>_PORT, PGLC_<ENV>_DATABASE, PGLC_<ENV>_USER and
PGLC_<ENV>_PASSWORD.

Examples:
  # Full custom-format backup of the dev environment
  pg-lifecycle backup --env dev

  # Restore the latest backup onto dev, dropping the existing schema
  pg-lifecycle restore --env dev --file backups/dev_full_20250601T120000Z.dump --drop

  # Migrate dev to the latest revision
  pg-lifecycle migrate --env dev

  # Compare staging against prod
  pg-lifecycle compare staging prod

  # Guarded production update using staging as the reference schema
  pg-lifecycle update-prod --env prod --ref staging

  # Prune backups older than 30 days, always keeping the 5 newest
  pg-lifecycle cleanup --days 30 --min-keep 5`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and maps errors onto process exit codes:
// 0 success, 1 operational failure, 2 validation or confirmation failure,
// 3 migration rolled back.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		display.NewService(noColor).Error("%v", err)
		os.Exit(lifecycle.ExitCode(err))
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./pg-lifecycle.yaml or $HOME/.pg-lifecycle.yaml)")
	rootCmd.PersistentFlags().StringVar(&envName, "env", "", "target environment name")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")
	rootCmd.PersistentFlags().StringVar(&backupDir, "backup-dir", "", "backup directory (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "assume yes for all confirmations")

	viper.BindPFlag("backup_dir", rootCmd.PersistentFlags().Lookup("backup-dir"))
	viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))

	rootCmd.AddCommand(createVersionCommand())
	rootCmd.AddCommand(createConfigCommand())
}

// initConfig reads in the config file and PGLC_* environment variables.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".pg-lifecycle")
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		return
	}
	// Fall back to ./pg-lifecycle.yaml without the leading dot.
	if cfgFile == "" {
		viper.SetConfigName("pg-lifecycle")
		viper.ReadInConfig()
	}
}

// app carries the wired services for one command invocation.
type app struct {
	settings  config.Settings
	resolver  *config.Resolver
	logger    *logging.Logger
	display   *display.Service
	confirmer *display.Confirmer

	connections *database.ConnectionManager
	locker      database.Locker
	tool        migration.Tool

	backups    *backup.Engine
	restores   *backup.RestoreEngine
	retention  *backup.RetentionManager
	schemas    *schema.Service
	migrations *migration.Runner
}

// newApp loads the configuration and wires the services.
func newApp() (*app, error) {
	var settings config.Settings
	if err := viper.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	level := logging.LogLevelNormal
	if verbose {
		level = logging.LogLevelVerbose
	}
	if quiet {
		level = logging.LogLevelQuiet
	}
	logger, err := logging.NewLogger(logging.Config{
		Level:   level,
		Format:  "text",
		LogFile: logFile,
	})
	if err != nil {
		return nil, err
	}

	disp := display.NewService(noColor)
	connections := database.NewConnectionManager()
	locker := database.NewAdvisoryLocker(connections)

	tool, err := migration.NewGooseTool()
	if err != nil {
		return nil, err
	}

	a := &app{
		settings:    settings,
		resolver:    config.NewResolver(settings),
		logger:      logger,
		display:     disp,
		confirmer:   display.NewConfirmer(disp, assumeYes),
		connections: connections,
		locker:      locker,
		tool:        tool,
		retention:   backup.NewRetentionManager(logger),
		schemas:     schema.NewService(connections, logger),
		migrations:  migration.NewRunner(tool, connections, locker, logger),
	}
	a.backups = backup.NewEngine(a.backupDir(), backup.NewPgDumpProvider(), locker, logger)
	a.restores = backup.NewRestoreEngine(backup.NewPgRestoreProvider(), locker, logger)
	return a, nil
}

// backupDir resolves the backup directory: flag, then config, then
// ./backups.
func (a *app) backupDir() string {
	if backupDir != "" {
		return backupDir
	}
	if a.settings.BackupDir != "" {
		return a.settings.BackupDir
	}
	return "backups"
}

// resolveEnv resolves the --env flag, which every destructive command
// requires.
func (a *app) resolveEnv() (config.Environment, error) {
	if envName == "" {
		return config.Environment{}, fmt.Errorf("--env is required")
	}
	return a.resolver.Resolve(envName)
}

// confirmDestructive gates destructive operations on prod-role
// environments behind the typed confirmation phrase.
func (a *app) confirmDestructive(env config.Environment, action string) error {
	if !env.IsProd() {
		return nil
	}
	ok, err := a.confirmer.ConfirmPhrase(
		fmt.Sprintf("%s targets the PRODUCTION environment %q", action, env.Name),
		display.ProdConfirmPhrase)
	if err != nil {
		return err
	}
	if !ok {
		return lifecycle.NewValidationFailedError("confirm",
			fmt.Sprintf("%s of environment %q declined by operator", action, env.Name))
	}
	return nil
}

// writeReport renders a report value as yaml or json per --output, or
// returns false when no structured output was requested.
func writeReport(v interface{}) (bool, error) {
	switch outputMode {
	case "":
		return false, nil
	case "yaml":
		data, err := yaml.Marshal(v)
		if err != nil {
			return false, err
		}
		fmt.Print(string(data))
		return true, nil
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return false, err
		}
		fmt.Println(string(data))
		return true, nil
	default:
		return false, fmt.Errorf("unsupported output format %q (expected yaml or json)", outputMode)
	}
}

// SetVersionInfo sets the version information from build flags
func SetVersionInfo(v, bt, gc string) {
	version = v
	buildTime = bt
	gitCommit = gc
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("pg-lifecycle version %s\n", version)
			fmt.Printf("Built: %s\n", buildTime)
			fmt.Printf("Commit: %s\n", gitCommit)
		},
	}
}

func createConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "pg-lifecycle.yaml"
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
				return err
			}
			display.NewService(noColor).Success("Wrote %s", path)
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			shown := a.settings
			for name, profile := range shown.Environments {
				if profile.Password != "" {
					profile.Password = "********"
				}
				shown.Environments[name] = profile
			}
			data, err := yaml.Marshal(shown)
			if err != nil {
				return err
			}
			fmt.Printf("# %s\n%s", filepath.Clean(viper.ConfigFileUsed()), data)
			return nil
		},
	})

	return configCmd
}

const sampleConfig = `backup_dir: backups

environments:
  dev:
    host: localhost
    port: 5432
    database: app_dev
    user: app
    password_env: DEV_DB_PASSWORD
    role: dev
    migrations_dir: migrations
  prod:
    host: db.internal
    port: 5432
    database: app
    user: app
    password_env: PROD_DB_PASSWORD
    role: prod
    migrations_dir: migrations
    critical_tables:
      - users

# Optional remote archive for finished backups.
# archive:
#   backend: s3
#   bucket: my-backups
#   region: eu-central-1
#   prefix: pg-lifecycle/
`
