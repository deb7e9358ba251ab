// Package sink publishes downloaded result archives to object storage.
package sink

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// DefaultLinkExpiry is how long the returned download link stays valid.
const DefaultLinkExpiry = 15 * time.Minute

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type objectPresigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Sink copies result archives to an S3 bucket.
type S3Sink struct {
	client     objectPutter
	presigner  objectPresigner
	bucketName string
	prefix     string
	expiry     time.Duration
}

// NewS3Sink builds a sink from the default AWS configuration chain
// (environment, shared config, instance role).
func NewS3Sink(ctx context.Context, bucketName, prefix string) (*S3Sink, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("error while initializing aws: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3Sink{
		client:     client,
		presigner:  s3.NewPresignClient(client),
		bucketName: bucketName,
		prefix:     strings.Trim(prefix, "/"),
		expiry:     DefaultLinkExpiry,
	}, nil
}

// Key returns the object key used for a result of processID.
func (s *S3Sink) Key(processID, localPath string) string {
	return path.Join(s.prefix, processID, filepath.Base(localPath))
}

// Publish uploads localPath and returns a presigned download link.
func (s *S3Sink) Publish(ctx context.Context, processID, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open result: %w", err)
	}
	defer f.Close()

	key := s.Key(processID, localPath)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:            aws.String(s.bucketName),
		Key:               aws.String(key),
		Body:              f,
		ContentType:       aws.String("application/zip"),
		ChecksumAlgorithm: types.ChecksumAlgorithmSha256,
		Metadata:          map[string]string{"process-id": processID},
	})
	if err != nil {
		return "", fmt.Errorf("couldn't upload object with key: %s, AWS error: %w", key, err)
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign url: %w", err)
	}

	return req.URL, nil
}
