package backup

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/Azure/azure-storage-blob-go/azblob"
)

// AzureBackend stores artifacts in an Azure Blob Storage container.
type AzureBackend struct {
	containerURL azblob.ContainerURL
	container    string
}

// NewAzureBackend creates a new AzureBackend instance.
func NewAzureBackend(config *AzureConfig) (*AzureBackend, error) {
	if config == nil {
		return nil, NewValidationError("Azure storage configuration is required", nil)
	}

	if err := config.Validate(); err != nil {
		return nil, NewValidationError("invalid Azure storage configuration", err)
	}

	credential, err := azblob.NewSharedKeyCredential(config.AccountName, config.AccountKey)
	if err != nil {
		return nil, NewStorageError("failed to create Azure credentials", err)
	}

	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})

	serviceURL, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net", config.AccountName))
	if err != nil {
		return nil, NewStorageError("failed to parse Azure service URL", err)
	}

	return &AzureBackend{
		containerURL: azblob.NewServiceURL(*serviceURL, pipeline).NewContainerURL(config.Container),
		container:    config.Container,
	}, nil
}

// Name returns the backend identifier used in logs and reports.
func (ab *AzureBackend) Name() string {
	return "azure"
}

// Validate checks that the container exists and blobs can be listed.
func (ab *AzureBackend) Validate(ctx context.Context) error {
	if _, err := ab.containerURL.GetProperties(ctx, azblob.LeaseAccessConditions{}); err != nil {
		return NewStorageError(fmt.Sprintf("Azure container %s is not accessible", ab.container), err)
	}

	_, err := ab.containerURL.ListBlobsFlatSegment(ctx, azblob.Marker{}, azblob.ListBlobsSegmentOptions{
		MaxResults: 1,
	})
	if err != nil {
		return NewStorageError(fmt.Sprintf("cannot list blobs in Azure container %s", ab.container), err)
	}

	return nil
}

// Store uploads an artifact as a block blob.
func (ab *AzureBackend) Store(ctx context.Context, localPath, name string) error {
	name = filepath.Base(name)

	file, err := os.Open(localPath)
	if err != nil {
		return NewStorageError(fmt.Sprintf("failed to open artifact %s", name), err)
	}
	defer file.Close()

	blobURL := ab.containerURL.NewBlockBlobURL(name)
	_, err = azblob.UploadFileToBlockBlob(ctx, file, blobURL, azblob.UploadToBlockBlobOptions{
		BlockSize:   4 * 1024 * 1024,
		Parallelism: 16,
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{
			ContentType: contentTypeForArtifact(name),
		},
	})
	if err != nil {
		return NewStorageError(fmt.Sprintf("failed to upload artifact %s to Azure", name), err)
	}

	return nil
}

// Fetch downloads an artifact blob to destPath.
func (ab *AzureBackend) Fetch(ctx context.Context, name, destPath string) error {
	name = filepath.Base(name)

	blobURL := ab.containerURL.NewBlockBlobURL(name)
	response, err := blobURL.Download(ctx, 0, azblob.CountToEnd, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		var stgErr azblob.StorageError
		if errors.As(err, &stgErr) && stgErr.ServiceCode() == azblob.ServiceCodeBlobNotFound {
			return NewNotFoundError(fmt.Sprintf("artifact %s not found in Azure", name), err)
		}
		return NewStorageError(fmt.Sprintf("failed to fetch artifact %s from Azure", name), err)
	}

	body := response.Body(azblob.RetryReaderOptions{MaxRetryRequests: 3})
	defer body.Close()

	if err := writeStreamAtomic(body, destPath); err != nil {
		return NewStorageError(fmt.Sprintf("failed to write artifact %s", name), err)
	}

	return nil
}

// List returns the blobs in the container.
func (ab *AzureBackend) List(ctx context.Context) ([]RemoteArtifact, error) {
	var remotes []RemoteArtifact

	for marker := (azblob.Marker{}); marker.NotDone(); {
		listResponse, err := ab.containerURL.ListBlobsFlatSegment(ctx, marker, azblob.ListBlobsSegmentOptions{})
		if err != nil {
			return nil, NewStorageError("failed to list artifacts in Azure", err)
		}

		for _, blob := range listResponse.Segment.BlobItems {
			remote := RemoteArtifact{Name: blob.Name}
			if blob.Properties.ContentLength != nil {
				remote.Size = *blob.Properties.ContentLength
			}
			remote.ModTime = blob.Properties.LastModified

			remotes = append(remotes, remote)
		}

		marker = listResponse.NextMarker
	}

	return remotes, nil
}

// Delete removes an artifact blob from the container.
func (ab *AzureBackend) Delete(ctx context.Context, name string) error {
	name = filepath.Base(name)

	blobURL := ab.containerURL.NewBlockBlobURL(name)
	_, err := blobURL.Delete(ctx, azblob.DeleteSnapshotsOptionInclude, azblob.BlobAccessConditions{})
	if err != nil {
		return NewStorageError(fmt.Sprintf("failed to delete artifact %s from Azure", name), err)
	}

	return nil
}
