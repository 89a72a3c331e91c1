package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// List builds backup records from the directory contents. The directory and
// its checksum sidecars are the source of truth; there is no separate
// index database. Records are returned newest first.
func List(dir string) ([]Record, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var records []Record
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ChecksumExt) ||
			strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		record, ok := parseFileName(entry.Name())
		if !ok {
			continue
		}
		record.Path = path

		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
		}
		record.Size = info.Size()

		checksum, err := ReadSidecar(path)
		if err != nil {
			return nil, err
		}
		record.Checksum = checksum

		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// parseFileName reconstructs a record from the deterministic name
// <environment>_<scope>_<timestamp>.<ext>[.gz|.lz4][.enc].
func parseFileName(name string) (Record, bool) {
	var record Record

	if strings.HasSuffix(name, EncryptedExt) {
		record.Encrypted = true
		name = strings.TrimSuffix(name, EncryptedExt)
	}
	if c := CompressionForPath(name); c != CompressionNone {
		record.Compression = string(c)
		name = strings.TrimSuffix(strings.TrimSuffix(name, ".gz"), ".lz4")
	}

	switch {
	case strings.HasSuffix(name, ".dump"):
		record.Format = FormatCustom
		name = strings.TrimSuffix(name, ".dump")
	case strings.HasSuffix(name, ".sql"):
		record.Format = FormatPlain
		name = strings.TrimSuffix(name, ".sql")
	default:
		return Record{}, false
	}

	parts := strings.Split(name, "_")
	if len(parts) < 3 {
		return Record{}, false
	}

	ts, err := time.Parse("20060102T150405Z", parts[len(parts)-1])
	if err != nil {
		return Record{}, false
	}
	record.CreatedAt = ts.UTC()

	scopeLabel := parts[len(parts)-2]
	record.Scope = scopeFromLabel(scopeLabel)
	record.Environment = strings.Join(parts[:len(parts)-2], "_")
	record.ID = name
	return record, true
}

func scopeFromLabel(label string) Scope {
	if table, ok := strings.CutPrefix(label, "table-"); ok {
		return Scope{Kind: ScopeTable, Table: table}
	}
	switch ScopeKind(label) {
	case ScopeDataOnly, ScopeSchemaOnly, ScopeFull:
		return Scope{Kind: ScopeKind(label)}
	default:
		return Scope{Kind: ScopeFull}
	}
}
