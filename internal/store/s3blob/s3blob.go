// Package s3blob implements store.BlobStore on top of S3-compatible object
// storage.
package s3blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"vaultseal.dev/internal/store"
)

// Store is a store.BlobStore backed by an S3 bucket. Objects are keyed by
// "<sessionID>/<name>".
type Store struct {
	client *s3.Client
	bucket string
}

// New builds a Store against an S3-compatible endpoint using static
// credentials and path-style addressing, matching the MinIO-compatible
// deployments this server runs against in integration tests.
func New(region, bucket, endpoint, accessKeyID, secretAccessKey string) *Store {
	cfg := aws.Config{
		Credentials:  credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		BaseEndpoint: aws.String(endpoint),
		Region:       region,
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	return &Store{client: client, bucket: bucket}
}

func objectKey(sessionID uuid.UUID, name string) string {
	return sessionID.String() + "/" + name
}

// Get downloads the object for sessionID/name. A missing object maps to
// store.ErrNotFound.
func (s *Store) Get(ctx context.Context, sessionID uuid.UUID, name string) ([]byte, error) {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(sessionID, name)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("s3blob: get object: %w", err)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return nil, fmt.Errorf("s3blob: read object body: %w", err)
	}
	return data, nil
}

// Put uploads content as the object for sessionID/name, overwriting any
// existing object at that key.
func (s *Store) Put(ctx context.Context, sessionID uuid.UUID, name string, content []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(sessionID, name)),
		Body:   bytes.NewReader(content),
	})
	if err != nil {
		return fmt.Errorf("s3blob: put object: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var responseErr *awshttp.ResponseError
	if errors.As(err, &responseErr) {
		return responseErr.ResponseError.HTTPStatusCode() == http.StatusNotFound
	}
	return false
}
