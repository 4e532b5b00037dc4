package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/ethpandaops/timingtree/pkg/config"
)

// Compile-time interface check.
var _ Reader = (*s3Reader)(nil)

type s3Reader struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Reader creates a Reader backed by S3-compatible storage. Names are
// resolved below the configured prefix.
func NewS3Reader(cfg *config.S3Config) Reader {
	return &s3Reader{
		client: NewS3Client(cfg),
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}
}

func (r *s3Reader) key(name string) string {
	name = strings.TrimLeft(path.Clean("/"+name), "/")
	if r.prefix == "" {
		return name
	}

	return r.prefix + "/" + name
}

func (r *s3Reader) ReadFile(ctx context.Context, name string) ([]byte, error) {
	key := r.key(name)

	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if IsS3NotFound(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("getting object %q: %w", key, err)
	}

	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading object %q: %w", key, err)
	}

	return data, nil
}

// IsS3NotFound reports whether err is a missing key or bucket.
func IsS3NotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	var nf *s3types.NotFound
	if errors.As(err, &nf) {
		return true
	}

	return strings.Contains(err.Error(), "NoSuchKey")
}

// NewS3Client builds an S3 client from cfg. The region defaults to
// us-east-1, which S3-compatible stores generally accept.
func NewS3Client(cfg *config.S3Config) *s3.Client {
	opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.Region != "" {
				o.Region = cfg.Region
			} else {
				o.Region = "us-east-1"
			}

			if cfg.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.EndpointURL)
			}

			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}

			if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
				o.Credentials = credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID, cfg.SecretAccessKey, "",
				)
			}
		},
	}

	return s3.New(s3.Options{}, opts...)
}
