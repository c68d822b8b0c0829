package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sethvargo/go-retry"
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// OffsiteConfig holds S3-compatible storage configuration for offsite
// replication. Replication is off unless bucket and credentials are set.
type OffsiteConfig struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string

	// Passphrase, when set, encrypts every object before upload.
	Passphrase string
}

func (c OffsiteConfig) enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Replicator mirrors snapshot backups to an S3-compatible bucket. Uploads
// and deletes are best effort from the caller's point of view; the local
// backup is the source of truth.
type Replicator struct {
	cfg    OffsiteConfig
	client s3Client
	logger *slog.Logger
}

// NewReplicator returns nil when the config carries no credentials, which
// callers treat as replication disabled.
func NewReplicator(cfg OffsiteConfig, logger *slog.Logger) *Replicator {
	if !cfg.enabled() {
		return nil
	}
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return &Replicator{cfg: cfg, client: s3.New(opts), logger: logger}
}

// Upload copies the file at srcPath to the bucket under the backup's file
// name, encrypting first when a passphrase is configured. Transient upload
// failures are retried with backoff.
func (r *Replicator) Upload(ctx context.Context, srcPath, fileName string) error {
	key := r.remoteKey(fileName)

	upload := srcPath
	if r.cfg.Passphrase != "" {
		enc := srcPath + ".enc"
		if err := encryptFile(srcPath, enc, r.cfg.Passphrase); err != nil {
			return fmt.Errorf("encrypt for upload: %w", err)
		}
		defer os.Remove(enc)
		upload = enc
		key += ".enc"
	}

	backoff := retry.WithMaxRetries(3, retry.NewExponential(time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		f, err := os.Open(upload)
		if err != nil {
			return err
		}
		defer f.Close()

		stat, err := f.Stat()
		if err != nil {
			return err
		}

		_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(r.cfg.Bucket),
			Key:           aws.String(key),
			Body:          f,
			ContentLength: aws.Int64(stat.Size()),
		})
		if err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upload to s3: %w", err)
	}

	r.logger.Info("backup replicated offsite", "key", key)
	return nil
}

// Delete removes the replicated copy of a backup, trying both the plain and
// encrypted key since the passphrase may have changed since upload.
func (r *Replicator) Delete(ctx context.Context, fileName string) error {
	key := r.remoteKey(fileName)
	for _, k := range []string{key, key + ".enc"} {
		if _, err := r.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(r.cfg.Bucket),
			Key:    aws.String(k),
		}); err != nil {
			return fmt.Errorf("delete s3 object %s: %w", k, err)
		}
	}
	return nil
}

func (r *Replicator) remoteKey(fileName string) string {
	if r.cfg.Prefix == "" {
		return fileName
	}
	return path.Join(r.cfg.Prefix, fileName)
}
