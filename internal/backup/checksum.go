package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pg-lifecycle/internal/lifecycle"
)

// ChecksumExt is the extension of the checksum sidecar file written next to
// every backup.
const ChecksumExt = ".sha256"

// FileChecksum computes the hex SHA-256 digest of the file at path.
func FileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for checksum: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SidecarPath returns the checksum sidecar path for a backup file.
func SidecarPath(backupPath string) string {
	return backupPath + ChecksumExt
}

// WriteSidecar writes the checksum sidecar in the conventional
// "<hex>  <basename>" form so it is also checkable with sha256sum -c.
func WriteSidecar(backupPath, checksum string) error {
	content := fmt.Sprintf("%s  %s\n", checksum, filepath.Base(backupPath))
	if err := os.WriteFile(SidecarPath(backupPath), []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write checksum sidecar: %w", err)
	}
	return nil
}

// ReadSidecar reads the recorded checksum for a backup file. A missing
// sidecar returns ("", nil): the backup is unverified, not broken.
func ReadSidecar(backupPath string) (string, error) {
	data, err := os.ReadFile(SidecarPath(backupPath))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read checksum sidecar: %w", err)
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], nil
}

// VerifyFile checks the file at path against its checksum sidecar. Returns
// (false, nil) when no sidecar exists, and a ChecksumMismatchError when the
// recorded and computed hashes disagree.
func VerifyFile(op, path string) (verified bool, err error) {
	recorded, err := ReadSidecar(path)
	if err != nil {
		return false, err
	}
	if recorded == "" {
		return false, nil
	}

	actual, err := FileChecksum(path)
	if err != nil {
		return false, err
	}
	if actual != recorded {
		return false, lifecycle.NewChecksumMismatchError(op,
			fmt.Sprintf("checksum of %s does not match recorded value", filepath.Base(path))).
			WithContext("path", path).
			WithContext("recorded", recorded).
			WithContext("actual", actual)
	}
	return true, nil
}
