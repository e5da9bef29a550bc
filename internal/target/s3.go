package target

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// s3Target implements Target for Amazon S3 and S3-compatible providers
// (Wasabi, Cloudflare R2, ImpossibleCloud, Oracle, MinIO, ...). Provider
// differences are absorbed entirely by the connection descriptor: endpoint,
// region, path-style addressing, and static credentials.
type s3Target struct {
	client *s3.Client
	bucket string
	name   string
}

// newS3Target constructs an S3-backed Target from the provided Config.
func newS3Target(ctx context.Context, cfg Config) (Target, error) {
	region := cfg.Region
	if region == "" {
		// R2 and friends accept "auto"; plain AWS needs a real region
		// in the config file.
		region = "auto"
	}

	optFns := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})

	return &s3Target{
		client: client,
		bucket: cfg.Bucket,
		name:   cfg.Name,
	}, nil
}

func (t *s3Target) Name() string {
	return t.name
}

func (t *s3Target) EnsureBucket(ctx context.Context) error {
	_, err := t.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(t.bucket),
	})
	if err == nil {
		return nil
	}
	if !isS3NotFound(err) {
		return fmt.Errorf("s3 HeadBucket %q: %w", t.bucket, err)
	}

	_, err = t.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(t.bucket),
	})
	if err != nil {
		return fmt.Errorf("s3 CreateBucket %q: %w", t.bucket, err)
	}
	return nil
}

func (t *s3Target) List(ctx context.Context) ([]ObjectInfo, error) {
	var results []ObjectInfo

	paginator := s3.NewListObjectsV2Paginator(t.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(t.bucket),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return results, fmt.Errorf("s3 ListObjectsV2 %q: %w", t.bucket, err)
		}
		for _, obj := range page.Contents {
			results = append(results, ObjectInfo{
				Key:  aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
			})
		}
	}

	return results, nil
}

func (t *s3Target) Upload(ctx context.Context, key, localPath string, opts UploadOptions) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %q: %w", localPath, err)
	}
	defer f.Close()

	uploader := manager.NewUploader(t.client, func(u *manager.Uploader) {
		if opts.PartSize > 0 {
			u.PartSize = opts.PartSize
		}
		if opts.Concurrency > 0 {
			u.Concurrency = opts.Concurrency
		}
	})

	// Wrapping the file hides its Seek/ReadAt surface from the uploader,
	// which then reads parts sequentially into buffers while still
	// uploading them concurrently. Read progress therefore runs slightly
	// ahead of wire progress, same as a part-completion callback would.
	body := &progressReader{r: f, fn: opts.Progress}

	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("s3 upload %q: %w", key, err)
	}
	return nil
}

func (t *s3Target) Presign(ctx context.Context, key string, expiry time.Duration) (string, error) {
	presigner := s3.NewPresignClient(t.client)

	req, err := presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(t.bucket),
		Key:    aws.String(key),
	}, func(po *s3.PresignOptions) {
		po.Expires = expiry
	})
	if err != nil {
		return "", fmt.Errorf("s3 presign %q: %w", key, err)
	}
	return req.URL, nil
}

// isS3NotFound returns true if the error indicates the bucket or object was
// not found.
func isS3NotFound(err error) bool {
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	// HeadBucket returns a generic error with status 404.
	var respErr interface{ HTTPStatusCode() int }
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404 {
		return true
	}
	return false
}
