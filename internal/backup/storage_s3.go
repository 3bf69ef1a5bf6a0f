package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3Backend stores artifacts in an S3 bucket. Endpoint and path-style
// overrides make it work against MinIO and other S3-compatible services.
type S3Backend struct {
	client *s3.S3
	bucket string
	prefix string
}

// NewS3Backend creates a new S3Backend instance.
func NewS3Backend(config *S3Config) (*S3Backend, error) {
	if config == nil {
		return nil, NewValidationError("S3 storage configuration is required", nil)
	}

	if err := config.Validate(); err != nil {
		return nil, NewValidationError("invalid S3 storage configuration", err)
	}

	awsConfig := &aws.Config{
		Region: aws.String(config.Region),
	}

	// Static credentials when configured, otherwise the SDK default chain
	// (environment, shared config, instance role) applies.
	if config.AccessKeyID != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			config.AccessKeyID,
			config.SecretAccessKey,
			"", // token
		)
	}

	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
	}
	if config.ForcePathStyle {
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, NewStorageError("failed to create AWS session", err)
	}

	return &S3Backend{
		client: s3.New(sess),
		bucket: config.Bucket,
		prefix: normalizeObjectPrefix(config.Prefix),
	}, nil
}

// Name returns the backend identifier used in logs and reports.
func (sb *S3Backend) Name() string {
	return "s3"
}

// Validate checks that the bucket exists and objects can be listed.
func (sb *S3Backend) Validate(ctx context.Context) error {
	_, err := sb.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(sb.bucket),
	})
	if err != nil {
		return NewStorageError(fmt.Sprintf("S3 bucket %s is not accessible", sb.bucket), err)
	}

	_, err = sb.client.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(sb.bucket),
		Prefix:  aws.String(sb.prefix),
		MaxKeys: aws.Int64(1),
	})
	if err != nil {
		return NewStorageError(fmt.Sprintf("cannot list objects in S3 bucket %s", sb.bucket), err)
	}

	return nil
}

// Store uploads an artifact to the bucket.
func (sb *S3Backend) Store(ctx context.Context, localPath, name string) error {
	name = filepath.Base(name)

	file, err := os.Open(localPath)
	if err != nil {
		return NewStorageError(fmt.Sprintf("failed to open artifact %s", name), err)
	}
	defer file.Close()

	input := &s3.PutObjectInput{
		Bucket:      aws.String(sb.bucket),
		Key:         aws.String(sb.prefix + name),
		Body:        file,
		ContentType: aws.String(contentTypeForArtifact(name)),
	}

	// Object metadata mirrors what the name encodes so bucket tooling can
	// filter without parsing file names.
	if artifact, err := ParseArtifactName(name); err == nil {
		input.Metadata = map[string]*string{
			"database":    aws.String(artifact.Database),
			"backup-date": aws.String(artifact.Date.Format("2006-01-02")),
		}
	}

	if _, err := sb.client.PutObjectWithContext(ctx, input); err != nil {
		return NewStorageError(fmt.Sprintf("failed to upload artifact %s to S3", name), err)
	}

	return nil
}

// Fetch downloads an artifact object to destPath.
func (sb *S3Backend) Fetch(ctx context.Context, name, destPath string) error {
	name = filepath.Base(name)

	output, err := sb.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(sb.bucket),
		Key:    aws.String(sb.prefix + name),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == s3.ErrCodeNoSuchKey {
			return NewNotFoundError(fmt.Sprintf("artifact %s not found in S3", name), err)
		}
		return NewStorageError(fmt.Sprintf("failed to fetch artifact %s from S3", name), err)
	}
	defer output.Body.Close()

	if err := writeStreamAtomic(output.Body, destPath); err != nil {
		return NewStorageError(fmt.Sprintf("failed to write artifact %s", name), err)
	}

	return nil
}

// List returns the objects under the configured prefix.
func (sb *S3Backend) List(ctx context.Context) ([]RemoteArtifact, error) {
	var remotes []RemoteArtifact

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(sb.bucket),
		Prefix: aws.String(sb.prefix),
	}

	err := sb.client.ListObjectsV2PagesWithContext(ctx, input,
		func(page *s3.ListObjectsV2Output, lastPage bool) bool {
			for _, obj := range page.Contents {
				name := strings.TrimPrefix(aws.StringValue(obj.Key), sb.prefix)

				// Nested objects belong to something else sharing the bucket.
				if name == "" || strings.Contains(name, "/") {
					continue
				}

				remote := RemoteArtifact{
					Name: name,
					Size: aws.Int64Value(obj.Size),
				}
				if obj.LastModified != nil {
					remote.ModTime = *obj.LastModified
				}

				remotes = append(remotes, remote)
			}
			return true
		})
	if err != nil {
		return nil, NewStorageError("failed to list artifacts in S3", err)
	}

	return remotes, nil
}

// Delete removes an artifact from the bucket.
func (sb *S3Backend) Delete(ctx context.Context, name string) error {
	name = filepath.Base(name)

	_, err := sb.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(sb.bucket),
		Key:    aws.String(sb.prefix + name),
	})
	if err != nil {
		return NewStorageError(fmt.Sprintf("failed to delete artifact %s from S3", name), err)
	}

	return nil
}

// normalizeObjectPrefix ensures a non-empty prefix ends with exactly one
// slash so key construction stays a plain concatenation.
func normalizeObjectPrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// contentTypeForArtifact maps an artifact extension to its MIME type.
func contentTypeForArtifact(name string) string {
	switch {
	case strings.HasSuffix(name, ".gz"):
		return "application/gzip"
	case strings.HasSuffix(name, ".sql"):
		return "application/sql"
	default:
		return "application/octet-stream"
	}
}
