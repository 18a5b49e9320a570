// Package storage uploads archives to S3 and hands back their addresses.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// TransferError reports a storage write that could not complete, whether
// the destination was unreachable or permissions were insufficient.
type TransferError struct {
	Bucket string
	Key    string
	Err    error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer to s3://%s/%s failed: %v", e.Bucket, e.Key, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

type uploaderAPI interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Uploader pushes local archives under a bucket.
type Uploader struct {
	uploader uploaderAPI
	bucket   string
}

// New creates an Uploader for the given region and bucket using the default
// credential chain.
func New(ctx context.Context, region, bucket string) (*Uploader, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return &Uploader{
		uploader: manager.NewUploader(client),
		bucket:   bucket,
	}, nil
}

// NewWithUploader wires an explicit uploader implementation. Used by tests.
func NewWithUploader(u interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}, bucket string) *Uploader {
	return &Uploader{uploader: u, bucket: bucket}
}

// Upload stores the file at localPath under prefix and returns the fully
// qualified s3:// address. The object key is prefix plus the file's base
// name. No retry beyond what the SDK's transfer manager already does.
func (u *Uploader) Upload(ctx context.Context, localPath, prefix string) (string, error) {
	key := filepath.Base(localPath)
	if prefix != "" {
		key = prefix + "/" + key
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", &TransferError{Bucket: u.bucket, Key: key, Err: err}
	}
	defer f.Close()

	_, err = u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return "", &TransferError{Bucket: u.bucket, Key: key, Err: err}
	}

	return fmt.Sprintf("s3://%s/%s", u.bucket, key), nil
}
