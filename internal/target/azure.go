package target

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
)

// azureTarget implements Target for Azure Blob Storage. The bucket maps to
// a blob container.
type azureTarget struct {
	client     *azblob.Client
	sharedCred *azblob.SharedKeyCredential // nil when using AAD identity
	serviceURL string
	container  string
	name       string
}

// newAzureTarget constructs an Azure Blob Storage-backed Target. With an
// account key configured it uses shared-key auth, which also enables SAS
// link generation; otherwise it falls back to the default Azure identity
// chain and Presign is unavailable.
func newAzureTarget(cfg Config) (Target, error) {
	serviceURL := cfg.Endpoint
	if serviceURL == "" {
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net", cfg.StorageAccount)
	}

	t := &azureTarget{
		serviceURL: serviceURL,
		container:  cfg.Bucket,
		name:       cfg.Name,
	}

	if cfg.AccountKey != "" {
		cred, err := azblob.NewSharedKeyCredential(cfg.StorageAccount, cfg.AccountKey)
		if err != nil {
			return nil, fmt.Errorf("creating Azure shared key credential: %w", err)
		}
		client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("creating Azure blob client: %w", err)
		}
		t.client = client
		t.sharedCred = cred
		return t, nil
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("creating Azure credential: %w", err)
	}
	client, err := azblob.NewClient(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("creating Azure blob client: %w", err)
	}
	t.client = client
	return t, nil
}

func (t *azureTarget) Name() string {
	return t.name
}

func (t *azureTarget) EnsureBucket(ctx context.Context) error {
	_, err := t.client.CreateContainer(ctx, t.container, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return nil
		}
		return fmt.Errorf("azure CreateContainer %q: %w", t.container, err)
	}
	return nil
}

func (t *azureTarget) List(ctx context.Context) ([]ObjectInfo, error) {
	var results []ObjectInfo

	pager := t.client.NewListBlobsFlatPager(t.container, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return results, fmt.Errorf("azure ListBlobsFlat %q: %w", t.container, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			info := ObjectInfo{Key: *item.Name}
			if item.Properties != nil && item.Properties.ContentLength != nil {
				info.Size = *item.Properties.ContentLength
			}
			results = append(results, info)
		}
	}

	return results, nil
}

func (t *azureTarget) Upload(ctx context.Context, key, localPath string, opts UploadOptions) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %q: %w", localPath, err)
	}
	defer f.Close()

	uploadOpts := &azblob.UploadFileOptions{}
	if opts.PartSize > 0 {
		uploadOpts.BlockSize = opts.PartSize
	}
	if opts.Concurrency > 0 {
		uploadOpts.Concurrency = uint16(opts.Concurrency)
	}
	if opts.Progress != nil {
		// The SDK reports cumulative bytes; the Target contract wants
		// deltas.
		var mu sync.Mutex
		var last int64
		uploadOpts.Progress = func(transferred int64) {
			mu.Lock()
			delta := transferred - last
			if delta > 0 {
				last = transferred
			}
			mu.Unlock()
			if delta > 0 {
				opts.Progress(delta)
			}
		}
	}

	_, err = t.client.UploadFile(ctx, t.container, key, f, uploadOpts)
	if err != nil {
		return fmt.Errorf("azure UploadFile %q: %w", key, err)
	}
	return nil
}

func (t *azureTarget) Presign(_ context.Context, key string, expiry time.Duration) (string, error) {
	if t.sharedCred == nil {
		return "", ErrPresignUnsupported
	}

	now := time.Now().UTC()
	values := sas.BlobSignatureValues{
		Protocol:      sas.ProtocolHTTPS,
		StartTime:     now.Add(-5 * time.Minute), // clock skew allowance
		ExpiryTime:    now.Add(expiry),
		Permissions:   (&sas.BlobPermissions{Read: true}).String(),
		ContainerName: t.container,
		BlobName:      key,
	}

	qp, err := values.SignWithSharedKey(t.sharedCred)
	if err != nil {
		return "", fmt.Errorf("azure sign SAS %q: %w", key, err)
	}

	return fmt.Sprintf("%s/%s/%s?%s", t.serviceURL, t.container, key, qp.Encode()), nil
}
