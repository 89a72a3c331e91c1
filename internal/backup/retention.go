package backup

import (
	"fmt"
	"os"
	"sort"
	"time"

	"pg-lifecycle/internal/logging"
)

// RetentionManager prunes old backups by age while always preserving a
// minimum number of the most recent ones.
type RetentionManager struct {
	logger *logging.Logger
}

// NewRetentionManager creates a retention manager.
func NewRetentionManager(logger *logging.Logger) *RetentionManager {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &RetentionManager{logger: logger}
}

// Cleanup deletes backups older than olderThanDays, oldest first, never
// reducing the directory below minKeep backups. A backup file and its
// checksum sidecar are deleted together or not at all.
func (m *RetentionManager) Cleanup(dir string, olderThanDays, minKeep int) (int, error) {
	if olderThanDays < 0 {
		return 0, fmt.Errorf("retention age must not be negative")
	}
	if minKeep < 0 {
		return 0, fmt.Errorf("minimum keep count must not be negative")
	}

	records, err := List(dir)
	if err != nil {
		return 0, err
	}

	// Oldest first so the newest minKeep always survive.
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	remaining := len(records)
	deleted := 0

	for _, record := range records {
		if remaining <= minKeep {
			break
		}
		if !record.CreatedAt.Before(cutoff) {
			break
		}

		if err := deletePair(record); err != nil {
			return deleted, err
		}
		m.logger.WithFields(map[string]interface{}{
			"operation":   "cleanup",
			"environment": record.Environment,
			"path":        record.Path,
			"created_at":  record.CreatedAt,
		}).Info("Deleted expired backup")

		deleted++
		remaining--
	}

	return deleted, nil
}

// deletePair removes a backup file and its sidecar together. The data file
// goes first: a leftover sidecar without data is harmless, the reverse would
// leave an unverifiable backup.
func deletePair(record Record) error {
	if err := os.Remove(record.Path); err != nil {
		return fmt.Errorf("failed to delete backup %s: %w", record.Path, err)
	}
	sidecar := SidecarPath(record.Path)
	if err := os.Remove(sidecar); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checksum sidecar %s: %w", sidecar, err)
	}
	return nil
}
