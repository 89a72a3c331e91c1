// Package archive uploads finished backups to remote object storage.
package archive

import (
	"context"
	"time"
)

// Object describes one archived backup file.
type Object struct {
	Key      string    `json:"key" yaml:"key"`
	Size     int64     `json:"size" yaml:"size"`
	Modified time.Time `json:"modified" yaml:"modified"`
}

// Provider stores finished backup files in a remote archive. Local files
// remain the source of truth; the archive is an off-site copy.
type Provider interface {
	// Put uploads the local file at path under key.
	Put(ctx context.Context, key, path string) error
	// List returns the archived objects under the configured prefix.
	List(ctx context.Context) ([]Object, error)
	// Delete removes an archived object.
	Delete(ctx context.Context, key string) error
}
