// Package integration exercises the upload server and client against real
// backing services (Consul for config distribution, MinIO as an
// S3-compatible blob store) started in disposable containers, rather than
// the in-memory fakes the unit tests use.
package integration

import (
	"context"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/testcontainers/testcontainers-go"
	tcConsul "github.com/testcontainers/testcontainers-go/modules/consul"
	"github.com/testcontainers/testcontainers-go/modules/minio"

	"vaultseal.dev/internal/serverconfig"
	"vaultseal.dev/internal/serversetup"
)

// consulSetup starts a disposable Consul agent and returns its HTTP API
// endpoint.
func consulSetup(ctx context.Context) (string, func()) {
	consulContainer, err := tcConsul.RunContainer(ctx,
		testcontainers.WithImage("docker.io/hashicorp/consul:1.15"),
	)
	if err != nil {
		log.Fatalf("failed to start consul container: %s", err)
	}

	endpoint, err := consulContainer.ApiEndpoint(ctx)
	if err != nil {
		log.Fatalf("failed to get consul endpoint: %s", err)
	}

	return endpoint, func() {
		if err := consulContainer.Terminate(ctx); err != nil {
			log.Fatalf("failed to terminate consul container: %s", err)
		}
	}
}

// minioSetup starts a disposable MinIO instance, creates a test bucket on
// it, and returns the endpoint and credentials an s3blob.Store needs to
// reach it.
func minioSetup(ctx context.Context) (endpoint, username, password, bucket, region string, cleanup func()) {
	minioContainer, err := minio.RunContainer(ctx, testcontainers.WithImage("minio/minio:RELEASE.2024-01-16T16-07-38Z"))
	if err != nil {
		log.Fatalf("failed to start minio container: %s", err)
	}

	connStr, err := minioContainer.ConnectionString(ctx)
	if err != nil {
		log.Fatalf("failed to get minio connection string: %s", err)
	}

	endpoint = "http://" + connStr
	username, password = minioContainer.Username, minioContainer.Password
	bucket = "vaultseal-integration"
	region = "us-east-1"

	s3Config := aws.Config{
		Credentials:  credentials.NewStaticCredentialsProvider(username, password, ""),
		BaseEndpoint: aws.String(endpoint),
		Region:       region,
	}
	client := s3.NewFromConfig(s3Config, func(o *s3.Options) { o.UsePathStyle = true })
	if _, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)}); err != nil {
		log.Fatalf("failed to create test bucket: %s", err)
	}

	return endpoint, username, password, bucket, region, func() {
		if err := minioContainer.Terminate(ctx); err != nil {
			log.Fatalf("failed to terminate minio container: %s", err)
		}
	}
}

// putConfig writes gc to Consul KV at kvpath and returns it unchanged, for
// tests that want to assert on the round trip.
func putConfig(consulEndpoint, kvpath string, gc serverconfig.GlobalConfig) (serverconfig.GlobalConfig, error) {
	return gc, serversetup.PutConfig(consulEndpoint, kvpath, gc)
}
