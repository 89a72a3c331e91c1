package archive

import (
	"context"
	"fmt"

	"pg-lifecycle/internal/config"
)

// NewProvider creates the archive provider selected by the configuration.
func NewProvider(ctx context.Context, settings config.ArchiveSettings) (Provider, error) {
	switch settings.Backend {
	case "s3":
		return NewS3Provider(settings)
	case "gcs":
		return NewGCSProvider(ctx, settings)
	case "azure":
		return NewAzureProvider(settings)
	case "":
		return nil, fmt.Errorf("no archive backend configured")
	default:
		return nil, fmt.Errorf("unsupported archive backend %q (expected s3, gcs or azure)", settings.Backend)
	}
}
