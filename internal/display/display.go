// Package display renders user-facing output: status lines, schema diffs,
// backup listings and reports.
package display

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"

	"pg-lifecycle/internal/backup"
	"pg-lifecycle/internal/migration"
	"pg-lifecycle/internal/schema"
)

// Service provides centralized formatting and output management.
type Service struct {
	out    io.Writer
	colors bool
}

// NewService creates a display service writing to stdout, with color
// support detected from the terminal.
func NewService(noColor bool) *Service {
	return &Service{
		out:    os.Stdout,
		colors: !noColor && detectColorSupport(),
	}
}

// NewServiceWithWriter creates a display service for tests.
func NewServiceWithWriter(out io.Writer, colors bool) *Service {
	return &Service{out: out, colors: colors}
}

// detectColorSupport checks if the terminal supports colors.
func detectColorSupport() bool {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return false
	}
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	return termenv.ColorProfile() != termenv.Ascii
}

func (s *Service) colorize(c *color.Color, format string, args ...interface{}) string {
	text := fmt.Sprintf(format, args...)
	if !s.colors {
		return text
	}
	return c.Sprint(text)
}

// Success prints a success status line.
func (s *Service) Success(format string, args ...interface{}) {
	fmt.Fprintln(s.out, s.colorize(color.New(color.FgGreen), "✓ "+format, args...))
}

// Info prints an informational line.
func (s *Service) Info(format string, args ...interface{}) {
	fmt.Fprintln(s.out, s.colorize(color.New(color.FgCyan), "ℹ "+format, args...))
}

// Warning prints a warning line.
func (s *Service) Warning(format string, args ...interface{}) {
	fmt.Fprintln(s.out, s.colorize(color.New(color.FgYellow), "⚠ "+format, args...))
}

// Error prints an error line.
func (s *Service) Error(format string, args ...interface{}) {
	fmt.Fprintln(s.out, s.colorize(color.New(color.FgRed), "✗ "+format, args...))
}

// Step prints one phase transition of an orchestrated update.
func (s *Service) Step(phase, format string, args ...interface{}) {
	label := s.colorize(color.New(color.FgBlue, color.Bold), "[%s]", phase)
	fmt.Fprintf(s.out, "%s %s\n", label, fmt.Sprintf(format, args...))
}

// PrintDiff renders a schema diff in a stable, readable layout.
func (s *Service) PrintDiff(diff *schema.DiffResult) {
	if diff.Empty() {
		s.Success("Schemas of %s and %s are identical", diff.Source, diff.Target)
		return
	}

	fmt.Fprintf(s.out, "Schema differences (%s → %s):\n", diff.Source, diff.Target)
	for _, table := range diff.TablesAdded {
		fmt.Fprintln(s.out, s.colorize(color.New(color.FgGreen), "  + table %s", table))
	}
	for _, table := range diff.TablesRemoved {
		fmt.Fprintln(s.out, s.colorize(color.New(color.FgRed), "  - table %s", table))
	}

	names := make([]string, 0, len(diff.TablesModified))
	for name := range diff.TablesModified {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		td := diff.TablesModified[name]
		fmt.Fprintf(s.out, "  ~ table %s\n", name)
		for _, col := range td.ColumnsAdded {
			fmt.Fprintln(s.out, s.colorize(color.New(color.FgGreen), "      + column %s %s", col.Name, col.Type))
		}
		for _, col := range td.ColumnsRemoved {
			fmt.Fprintln(s.out, s.colorize(color.New(color.FgRed), "      - column %s %s", col.Name, col.Type))
		}
		for _, change := range td.ColumnsChanged {
			fmt.Fprintln(s.out, s.colorize(color.New(color.FgYellow), "      ~ column %s: %s → %s",
				change.Name, describeColumn(change.Old), describeColumn(change.New)))
		}
		for _, c := range td.ConstraintsAdded {
			fmt.Fprintln(s.out, s.colorize(color.New(color.FgGreen), "      + constraint %s (%s)", c.Kind, strings.Join(c.Columns, ", ")))
		}
		for _, c := range td.ConstraintsRemoved {
			fmt.Fprintln(s.out, s.colorize(color.New(color.FgRed), "      - constraint %s (%s)", c.Kind, strings.Join(c.Columns, ", ")))
		}
		for _, ix := range td.IndexesAdded {
			fmt.Fprintln(s.out, s.colorize(color.New(color.FgGreen), "      + index (%s)", strings.Join(ix.Columns, ", ")))
		}
		for _, ix := range td.IndexesRemoved {
			fmt.Fprintln(s.out, s.colorize(color.New(color.FgRed), "      - index (%s)", strings.Join(ix.Columns, ", ")))
		}
	}
}

func describeColumn(c schema.Column) string {
	null := "NOT NULL"
	if c.Nullable {
		null = "NULL"
	}
	desc := fmt.Sprintf("%s %s", c.Type, null)
	if c.Default != "" {
		desc += " DEFAULT " + c.Default
	}
	return desc
}

// PrintBackups renders a backup listing, newest first.
func (s *Service) PrintBackups(records []backup.Record) {
	if len(records) == 0 {
		s.Info("No backups found")
		return
	}

	fmt.Fprintf(s.out, "%-22s %-12s %-14s %-8s %10s  %s\n",
		"CREATED", "ENVIRONMENT", "SCOPE", "FORMAT", "SIZE", "VERIFIED")
	for _, r := range records {
		verified := "yes"
		if !r.Verified() {
			verified = s.colorize(color.New(color.FgYellow), "no")
		}
		fmt.Fprintf(s.out, "%-22s %-12s %-14s %-8s %10s  %s\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			r.Environment, r.Scope.String(), r.Format, formatSize(r.Size), verified)
	}
}

// PrintHistory renders the migration history of an environment.
func (s *Service) PrintHistory(env string, entries []migration.Entry) {
	if len(entries) == 0 {
		s.Info("No migrations defined for environment %s", env)
		return
	}

	fmt.Fprintf(s.out, "Migration history for %s:\n", env)
	for _, e := range entries {
		marker := s.colorize(color.New(color.FgGreen), "applied")
		if !e.Applied {
			marker = s.colorize(color.New(color.FgYellow), "pending")
		}
		fmt.Fprintf(s.out, "  %d  %-8s %s\n", e.Revision, marker, e.Source)
	}
}

func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
