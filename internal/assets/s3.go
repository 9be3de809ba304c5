package assets

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config configures the remote asset store.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// Prefix is the key prefix objects live under, "static" by default.
	Prefix string
}

// S3Resolver resolves assets to bucket URLs and answers direct existence
// checks against the object store.
type S3Resolver struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewS3Resolver builds a resolver for the given bucket.
func NewS3Resolver(cfg S3Config) (*S3Resolver, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	prefix := strings.Trim(strings.TrimSpace(cfg.Prefix), "/")
	if prefix == "" {
		prefix = "static"
	}
	return &S3Resolver{client: client, bucket: bucket, prefix: prefix}, nil
}

func (r *S3Resolver) key(rel string) string {
	return r.prefix + "/" + strings.TrimLeft(rel, "/")
}

// Resolve returns the public object URL for rel.
func (r *S3Resolver) Resolve(rel string) string {
	u := *r.client.EndpointURL()
	u.Path = "/" + r.bucket + "/" + r.key(rel)
	return u.String()
}

func (r *S3Resolver) Remote() bool { return true }

// StatExists checks object existence directly against the store.
// A missing object is reported as (false, nil); transport failures as errors.
func (r *S3Resolver) StatExists(ctx context.Context, rel string) (bool, error) {
	_, err := r.client.StatObject(ctx, r.bucket, r.key(rel), minio.StatObjectOptions{})
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket" || errResp.StatusCode == 404 {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
