package archive

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/Azure/azure-storage-blob-go/azblob"

	"pg-lifecycle/internal/config"
)

// AzureProvider implements Provider for Azure Blob Storage.
type AzureProvider struct {
	container azblob.ContainerURL
	prefix    string
}

// NewAzureProvider creates a new AzureProvider instance.
func NewAzureProvider(settings config.ArchiveSettings) (*AzureProvider, error) {
	if settings.Container == "" {
		return nil, fmt.Errorf("azure archive requires a container")
	}
	if settings.AccountName == "" || settings.AccountKey == "" {
		return nil, fmt.Errorf("azure archive requires account_name and account_key")
	}

	credential, err := azblob.NewSharedKeyCredential(settings.AccountName, settings.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credentials: %w", err)
	}

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})
	serviceURL, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net", settings.AccountName))
	if err != nil {
		return nil, fmt.Errorf("failed to parse Azure service URL: %w", err)
	}

	return &AzureProvider{
		container: azblob.NewServiceURL(*serviceURL, pipeline).NewContainerURL(settings.Container),
		prefix:    normalizePrefix(settings.Prefix),
	}, nil
}

// Put uploads the local file at filePath under key.
func (p *AzureProvider) Put(ctx context.Context, key, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file for upload: %w", err)
	}
	defer f.Close()

	blobURL := p.container.NewBlockBlobURL(p.prefix + key)
	if _, err := azblob.UploadFileToBlockBlob(ctx, f, blobURL, azblob.UploadToBlockBlobOptions{}); err != nil {
		return fmt.Errorf("failed to upload %s to azure container: %w", key, err)
	}
	return nil
}

// List returns the archived objects under the configured prefix.
func (p *AzureProvider) List(ctx context.Context) ([]Object, error) {
	var objects []Object
	for marker := (azblob.Marker{}); marker.NotDone(); {
		resp, err := p.container.ListBlobsFlatSegment(ctx, marker, azblob.ListBlobsSegmentOptions{
			Prefix: p.prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list azure container: %w", err)
		}
		marker = resp.NextMarker

		for _, blob := range resp.Segment.BlobItems {
			var size int64
			if blob.Properties.ContentLength != nil {
				size = *blob.Properties.ContentLength
			}
			objects = append(objects, Object{
				Key:      strings.TrimPrefix(blob.Name, p.prefix),
				Size:     size,
				Modified: blob.Properties.LastModified,
			})
		}
	}
	return objects, nil
}

// Delete removes an archived object.
func (p *AzureProvider) Delete(ctx context.Context, key string) error {
	blobURL := p.container.NewBlockBlobURL(p.prefix + key)
	if _, err := blobURL.Delete(ctx, azblob.DeleteSnapshotsOptionInclude, azblob.BlobAccessConditions{}); err != nil {
		return fmt.Errorf("failed to delete %s from azure container: %w", key, err)
	}
	return nil
}
