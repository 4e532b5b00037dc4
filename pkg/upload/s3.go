package upload

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/timingtree/pkg/config"
	"github.com/ethpandaops/timingtree/pkg/storage"
	"github.com/ethpandaops/timingtree/pkg/timingdb"
)

const writeTestKey = ".timingtree-write-test"

// s3Uploader implements Uploader for S3-compatible storage.
type s3Uploader struct {
	log    logrus.FieldLogger
	cfg    *config.S3Config
	client *s3.Client
}

// Ensure interface compliance.
var _ Uploader = (*s3Uploader)(nil)

// NewS3Uploader creates a new S3 uploader from the given configuration.
func NewS3Uploader(
	log logrus.FieldLogger,
	cfg *config.S3Config,
) (Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	return &s3Uploader{
		log:    log.WithField("component", "s3-uploader"),
		cfg:    cfg,
		client: storage.NewS3Client(cfg),
	}, nil
}

// Preflight verifies S3 connectivity by writing a small test object.
func (u *s3Uploader) Preflight(ctx context.Context) error {
	content := fmt.Sprintf("timingtree write test: %s", time.Now().UTC().Format(time.RFC3339))

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.cfg.Bucket),
		Key:         aws.String(u.objectKey(writeTestKey)),
		Body:        strings.NewReader(content),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return fmt.Errorf("writing test object to s3://%s: %w", u.cfg.Bucket, err)
	}

	return nil
}

// UploadDatabase uploads every artifact of the database at base. The meta
// file goes last so readers never see a meta that points at missing
// artifacts.
func (u *s3Uploader) UploadDatabase(ctx context.Context, base string, nTables int) (*Summary, error) {
	summary := &Summary{}

	for _, path := range timingdb.ArtifactNames(base, nTables) {
		key := u.objectKey(filepath.Base(path))

		n, err := u.uploadFile(ctx, path, key)
		if err != nil {
			return nil, fmt.Errorf("uploading %s: %w", filepath.Base(path), err)
		}

		summary.Files++
		summary.Bytes += n
		summary.Keys = append(summary.Keys, key)
	}

	u.log.WithFields(logrus.Fields{
		"files":  summary.Files,
		"size":   units.HumanSize(float64(summary.Bytes)),
		"bucket": u.cfg.Bucket,
		"prefix": u.cfg.Prefix,
	}).Info("Upload completed")

	return summary, nil
}

// uploadFile uploads a single file to S3 and returns its size.
func (u *s3Uploader) uploadFile(ctx context.Context, localPath, key string) (int64, error) {
	f, err := os.Open(localPath) //nolint:gosec // artifact path derived from config
	if err != nil {
		return 0, fmt.Errorf("opening file: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat file: %w", err)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(u.cfg.Bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(detectContentType(localPath)),
	}

	if u.cfg.StorageClass != "" {
		input.StorageClass = s3types.StorageClass(u.cfg.StorageClass)
	}

	if u.cfg.ACL != "" {
		input.ACL = s3types.ObjectCannedACL(u.cfg.ACL)
	}

	u.log.WithFields(logrus.Fields{
		"key":    key,
		"bucket": u.cfg.Bucket,
		"size":   units.HumanSize(float64(info.Size())),
	}).Debug("Uploading file")

	if _, err := u.client.PutObject(ctx, input); err != nil {
		return 0, fmt.Errorf("PutObject: %w", err)
	}

	return info.Size(), nil
}

// objectKey places name below the configured prefix.
func (u *s3Uploader) objectKey(name string) string {
	prefix := strings.Trim(u.cfg.Prefix, "/")
	if prefix == "" {
		return name
	}

	return prefix + "/" + name
}

// detectContentType returns a MIME type based on file extension.
func detectContentType(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return "application/octet-stream"
	}

	ct := mime.TypeByExtension(ext)
	if ct == "" {
		return "application/octet-stream"
	}

	return ct
}
