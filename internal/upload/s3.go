package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/cuongbtq/courtbot/internal/domain"
)

// S3Config holds bucket settings for the S3 uploader
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // empty for AWS; set for R2, MinIO and friends
	AccessKeyID     string
	SecretAccessKey string
	KeyPrefix       string
	PresignExpiry   time.Duration
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type objectPresigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Uploader stores artifacts in an S3-compatible bucket and hands out
// presigned download links.
type S3Uploader struct {
	putter    objectPutter
	presigner objectPresigner
	bucket    string
	prefix    string
	expiry    time.Duration
}

// NewS3Uploader builds an uploader from static credentials, or from the
// default AWS credential chain when none are configured.
func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Uploader(client, s3.NewPresignClient(client), cfg), nil
}

func newS3Uploader(putter objectPutter, presigner objectPresigner, cfg S3Config) *S3Uploader {
	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = 48 * time.Hour
	}
	return &S3Uploader{
		putter:    putter,
		presigner: presigner,
		bucket:    cfg.Bucket,
		prefix:    cfg.KeyPrefix,
		expiry:    expiry,
	}
}

func (u *S3Uploader) Upload(ctx context.Context, path string) (string, error) {
	url, err := u.upload(ctx, path)
	if err != nil {
		return "", &domain.UploadError{Path: path, Err: err}
	}
	return url, nil
}

func (u *S3Uploader) upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return "", err
	}

	key := u.prefix + filepath.Base(path)
	_, err = u.putter.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(st.Size()),
		ContentType:   aws.String("video/mp4"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object: %w", err)
	}

	presigned, err := u.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(u.expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign object: %w", err)
	}
	return presigned.URL, nil
}
