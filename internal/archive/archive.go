// Package archive keeps an audit copy of every outbound email, locally or in
// S3. Archiving is best effort; a failed archive never fails the job.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Uploader stores one archived message body.
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// Config selects the archive destination. An S3 bucket takes precedence over
// the local directory; with neither set, New returns a nil Archive and
// archiving is disabled.
type Config struct {
	LocalDir string
	S3Bucket string
	S3Region string
}

// Archive writes copies of sent mail.
type Archive struct {
	uploader Uploader
}

// New picks an uploader from config.
func New(ctx context.Context, cfg Config) (*Archive, error) {
	if cfg.S3Bucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg)
		return &Archive{uploader: &s3Uploader{client: client, bucket: cfg.S3Bucket}}, nil
	}
	if cfg.LocalDir != "" {
		return &Archive{uploader: &localUploader{baseDir: cfg.LocalDir}}, nil
	}
	return nil, nil
}

// Store archives one rendered email under its message id.
func (a *Archive) Store(ctx context.Context, messageID, to, subject, bodyHTML string) (string, error) {
	if a == nil {
		return "", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "To: %s\nSubject: %s\n\n%s\n", to, subject, bodyHTML)
	key := sanitizeKey(messageID) + ".html"
	return a.uploader.Upload(ctx, key, []byte(b.String()), "text/html; charset=utf-8")
}

func sanitizeKey(key string) string {
	key = filepath.Clean(key)
	key = strings.TrimPrefix(key, string(filepath.Separator))
	key = strings.TrimPrefix(key, "./")
	return key
}

type localUploader struct {
	baseDir string
}

func (l *localUploader) Upload(_ context.Context, key string, body []byte, _ string) (string, error) {
	path := filepath.Join(l.baseDir, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create dirs: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

type s3Uploader struct {
	client *s3.Client
	bucket string
}

func (s *s3Uploader) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
