package sinks

import (
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
)

// S3Options configures an S3 destination
type S3Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	Key       string
}

// S3Destination stages the artifact in a local temp file and uploads it on
// Finalize. Discard removes the staging file and uploads nothing, so an
// aborted run leaves no object behind.
type S3Destination struct {
	opts     S3Options
	uploader *s3manager.Uploader
	staging  *os.File
}

func NewS3Destination(opts S3Options) (*S3Destination, error) {
	region := opts.Region
	if region == "" {
		region = "auto"
	}
	sess, err := session.NewSession(&aws.Config{
		Endpoint:         aws.String(opts.Endpoint),
		Region:           aws.String(region),
		Credentials:      credentials.NewStaticCredentials(opts.AccessKey, opts.SecretKey, ""),
		S3ForcePathStyle: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 session: %w", err)
	}

	staging, err := os.CreateTemp("", "archive-columnar-*.parquet")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging file: %w", err)
	}

	return &S3Destination{
		opts:     opts,
		uploader: s3manager.NewUploader(sess),
		staging:  staging,
	}, nil
}

func (d *S3Destination) Write(p []byte) (int, error) { return d.staging.Write(p) }

func (d *S3Destination) Finalize() error {
	defer func() {
		_ = d.staging.Close()
		_ = os.Remove(d.staging.Name())
	}()

	if _, err := d.staging.Seek(0, 0); err != nil {
		return fmt.Errorf("failed to rewind staging file: %w", err)
	}

	_, err := d.uploader.Upload(&s3manager.UploadInput{
		Bucket:      aws.String(d.opts.Bucket),
		Key:         aws.String(d.opts.Key),
		Body:        d.staging,
		ContentType: aws.String("application/vnd.apache.parquet"),
	})
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	return nil
}

func (d *S3Destination) Discard() {
	_ = d.staging.Close()
	_ = os.Remove(d.staging.Name())
}
