package archive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pg-lifecycle/internal/config"
)

func TestNewProviderS3(t *testing.T) {
	provider, err := NewProvider(context.Background(), config.ArchiveSettings{
		Backend:   "s3",
		Bucket:    "backups",
		Region:    "eu-central-1",
		AccessKey: "AKIA...",
		SecretKey: "secret",
	})
	require.NoError(t, err)
	assert.IsType(t, &S3Provider{}, provider)
}

func TestNewProviderAzure(t *testing.T) {
	provider, err := NewProvider(context.Background(), config.ArchiveSettings{
		Backend:     "azure",
		Container:   "backups",
		AccountName: "acct",
		AccountKey:  "a2V5",
	})
	require.NoError(t, err)
	assert.IsType(t, &AzureProvider{}, provider)
}

func TestNewProviderValidation(t *testing.T) {
	tests := []struct {
		name     string
		settings config.ArchiveSettings
	}{
		{"no backend", config.ArchiveSettings{}},
		{"unknown backend", config.ArchiveSettings{Backend: "ftp"}},
		{"s3 without bucket", config.ArchiveSettings{Backend: "s3"}},
		{"gcs without bucket", config.ArchiveSettings{Backend: "gcs"}},
		{"azure without container", config.ArchiveSettings{Backend: "azure"}},
		{"azure without credentials", config.ArchiveSettings{Backend: "azure", Container: "backups"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(context.Background(), tt.settings)
			require.Error(t, err)
		})
	}
}

func TestNormalizePrefix(t *testing.T) {
	assert.Equal(t, "backups/", normalizePrefix(""))
	assert.Equal(t, "pg/", normalizePrefix("pg"))
	assert.Equal(t, "pg/prod/", normalizePrefix("pg/prod/"))
}
