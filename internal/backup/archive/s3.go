package archive

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"pg-lifecycle/internal/config"
)

// S3Provider implements Provider for Amazon S3 (and S3-compatible
// endpoints).
type S3Provider struct {
	client *s3.S3
	bucket string
	prefix string
}

// NewS3Provider creates a new S3Provider instance.
func NewS3Provider(settings config.ArchiveSettings) (*S3Provider, error) {
	if settings.Bucket == "" {
		return nil, fmt.Errorf("s3 archive requires a bucket")
	}

	awsConfig := &aws.Config{
		Region: aws.String(settings.Region),
	}
	if settings.AccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			settings.AccessKey, settings.SecretKey, "")
	}
	if settings.Endpoint != "" {
		awsConfig.Endpoint = aws.String(settings.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Provider{
		client: s3.New(sess),
		bucket: settings.Bucket,
		prefix: normalizePrefix(settings.Prefix),
	}, nil
}

// Put uploads the local file at filePath under key.
func (p *S3Provider) Put(ctx context.Context, key, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file for upload: %w", err)
	}
	defer f.Close()

	_, err = p.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.prefix + key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to s3://%s: %w", key, p.bucket, err)
	}
	return nil
}

// List returns the archived objects under the configured prefix.
func (p *S3Provider) List(ctx context.Context) ([]Object, error) {
	var objects []Object
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
		Prefix: aws.String(p.prefix),
	}

	err := p.client.ListObjectsV2PagesWithContext(ctx, input,
		func(page *s3.ListObjectsV2Output, lastPage bool) bool {
			for _, obj := range page.Contents {
				objects = append(objects, Object{
					Key:      strings.TrimPrefix(aws.StringValue(obj.Key), p.prefix),
					Size:     aws.Int64Value(obj.Size),
					Modified: aws.TimeValue(obj.LastModified),
				})
			}
			return true
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list s3://%s/%s: %w", p.bucket, p.prefix, err)
	}
	return objects, nil
}

// Delete removes an archived object.
func (p *S3Provider) Delete(ctx context.Context, key string) error {
	_, err := p.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.prefix + key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s from s3://%s: %w", key, p.bucket, err)
	}
	return nil
}

// normalizePrefix ensures a non-empty prefix ends with exactly one slash.
func normalizePrefix(prefix string) string {
	if prefix == "" {
		return "backups/"
	}
	return strings.TrimSuffix(path.Clean(prefix), "/") + "/"
}
