package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/numeria/internal/server/models"
	"github.com/google/uuid"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ExportURLTTL is how long a presigned export link stays valid.
const ExportURLTTL = 15 * time.Minute

// ErrExportDisabled is returned when no export bucket is configured.
var ErrExportDisabled = errors.New("security log export is not configured")

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newS3PresignClient = func(c *s3.Client) *s3.PresignClient {
		return s3.NewPresignClient(c)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) error {
		_, err := c.PutObject(ctx, in, optFns...)
		return err
	}

	presignGetObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignGetObject(ctx, in, optFns...)
	}
)

// S3ExportConfig locates the export bucket. BaseEndpoint points at MinIO or
// another S3-compatible store; empty uses AWS.
type S3ExportConfig struct {
	Bucket       string
	Region       string
	RootUser     string
	RootPassword string
	BaseEndpoint string
}

// SecurityLogExporter uploads a user's audit trail to S3 as JSON lines and
// hands back a presigned download link.
type SecurityLogExporter struct {
	config S3ExportConfig
	now    func() time.Time
}

func NewSecurityLogExporter(cfg S3ExportConfig) *SecurityLogExporter {
	return &SecurityLogExporter{config: cfg, now: time.Now}
}

// Enabled reports whether a bucket is configured.
func (e *SecurityLogExporter) Enabled() bool {
	return e != nil && e.config.Bucket != ""
}

// ExportKey names the object for userID's export made at t.
func ExportKey(userID string, t time.Time) string {
	return fmt.Sprintf("security-logs/%d/%02d/%02d/%s-%v.jsonl", t.Year(), t.Month(), t.Day(), userID, uuid.New())
}

func (e *SecurityLogExporter) getClient(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(e.config.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			e.config.RootUser,
			e.config.RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if e.config.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(e.config.BaseEndpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Export writes entries for userID and returns a presigned GET URL.
func (e *SecurityLogExporter) Export(ctx context.Context, userID string, entries []models.SecurityLog) (string, error) {
	if !e.Enabled() {
		return "", ErrExportDisabled
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, entry := range entries {
		if err := enc.Encode(entry); err != nil {
			return "", fmt.Errorf("encode security log: %w", err)
		}
	}

	client, err := e.getClient(ctx)
	if err != nil {
		return "", err
	}

	bucket := e.config.Bucket
	key := ExportKey(userID, e.now().UTC())

	if err := putObject(client, ctx, &s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        bytes.NewReader(body.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	}); err != nil {
		return "", fmt.Errorf("upload security log: %w", err)
	}

	req, err := presignGetObject(newS3PresignClient(client), ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(ExportURLTTL))
	if err != nil {
		return "", fmt.Errorf("presign security log: %w", err)
	}
	return req.URL, nil
}
