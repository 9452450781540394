package delivery

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	beaconerrors "github.com/arkilian/beacon/internal/errors"
)

// PutObjectAPI is the subset of the S3 client the transport uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options configures S3Transport.
type S3Options struct {
	Bucket string
	Prefix string
	// Region is the AWS region for the bucket.
	Region string
	// Endpoint is an optional custom endpoint (for MinIO, LocalStack, etc.).
	Endpoint string
	// UsePathStyle enables path-style addressing (required for MinIO).
	UsePathStyle bool
}

// S3Transport writes one object per batch for collectors that ingest from a bucket.
type S3Transport struct {
	client PutObjectAPI
	bucket string
	prefix string
}

// NewS3Transport creates an S3 client from the default AWS credential chain.
func NewS3Transport(ctx context.Context, opts S3Options) (*S3Transport, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("delivery: s3 bucket is empty")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if opts.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		})
	}
	if opts.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return NewS3TransportWithClient(s3.NewFromConfig(awsCfg, s3Opts...), opts.Bucket, opts.Prefix), nil
}

// NewS3TransportWithClient creates a transport over a pre-configured client.
func NewS3TransportWithClient(client PutObjectAPI, bucket, prefix string) *S3Transport {
	return &S3Transport{client: client, bucket: bucket, prefix: prefix}
}

// Send uploads p as a single JSON object.
func (t *S3Transport) Send(ctx context.Context, p *Payload) error {
	body, err := p.Marshal()
	if err != nil {
		return beaconerrors.NewDeliveryError(beaconerrors.CodeEncodeFailed, "failed to encode batch", err)
	}

	key := ObjectKey(t.prefix, p)
	_, err = t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(t.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return beaconerrors.NewDeliveryError(beaconerrors.CodeTransportFailed,
			fmt.Sprintf("failed to put s3://%s/%s", t.bucket, key), err)
	}
	return nil
}

// Close is a no-op; the S3 client holds no connections of its own.
func (t *S3Transport) Close() error {
	return nil
}
