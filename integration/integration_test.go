package integration

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"vaultseal.dev/internal/fileservice"
	"vaultseal.dev/internal/httpapi"
	"vaultseal.dev/internal/serverconfig"
	"vaultseal.dev/internal/store"
	"vaultseal.dev/internal/store/s3blob"
	"vaultseal.dev/internal/uploadclient"
)

func TestConfigRoundTripsThroughRealConsul(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	ctx := context.Background()

	consulEndpoint, cleanup := consulSetup(ctx)
	defer cleanup()

	want := serverconfig.GlobalConfig{
		Name:              "integration-test-server",
		ListenAddress:     "localhost:3030",
		StoreBackend:      "memory",
		ClientSecrets:     map[string]string{"test-client": "test-secret"},
		SessionTTLSeconds: 3600,
	}
	if _, err := putConfig(consulEndpoint, "vaultseal/test", want); err != nil {
		t.Fatalf("putConfig: %v", err)
	}

	handle, err := serverconfig.Load(ctx, "vaultseal/test", consulEndpoint)
	if err != nil {
		t.Fatalf("serverconfig.Load: %v", err)
	}
	defer handle.Release()

	if handle.Config.Name != want.Name || handle.Config.ListenAddress != want.ListenAddress {
		t.Fatalf("loaded config = %+v, want %+v", handle.Config, want)
	}
	if handle.Config.ClientSecrets["test-client"] != "test-secret" {
		t.Fatalf("client secret did not round-trip through Consul KV")
	}
}

func TestUploadFlowAgainstRealMinIO(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	ctx := context.Background()

	endpoint, username, password, bucket, region, cleanup := minioSetup(ctx)
	defer cleanup()

	blobs := s3blob.New(region, bucket, endpoint, username, password)
	svc := fileservice.New(store.NewInMemorySessionStore(), blobs)
	server := httptest.NewServer(httpapi.New(svc).Handler())
	defer server.Close()

	filesDir := t.TempDir()
	rootsDir := t.TempDir()
	writeTestFile(t, filesDir, "a.txt", "A")
	writeTestFile(t, filesDir, "b.txt", "B")

	api := uploadclient.NewAPIClient(uploadclient.Args{
		APIKey:        "unused",
		APISecret:     "unused",
		BaseURL:       server.URL + "/",
		CorrelationID: uuid.New(),
	})
	orch := uploadclient.NewOrchestrator(api, rootsDir)

	result, err := orch.Upload(ctx, filesDir)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	results, err := orch.VerifyAll(ctx, result.ID, 2)
	if err != nil {
		t.Fatalf("VerifyAll: %v", err)
	}
	for _, r := range results {
		if !r.OK {
			t.Fatalf("index %d failed verification against blobs stored in real MinIO", r.Index)
		}
	}

	// Confirm the content really landed in the MinIO bucket, not just in
	// the in-memory session store's bookkeeping.
	s3Config := aws.Config{
		Credentials:  credentials.NewStaticCredentialsProvider(username, password, ""),
		BaseEndpoint: aws.String(endpoint),
		Region:       region,
	}
	client := s3.NewFromConfig(s3Config, func(o *s3.Options) { o.UsePathStyle = true })
	obj, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(result.ID.String() + "/a.txt"),
	})
	if err != nil {
		t.Fatalf("expected object to exist in MinIO: %v", err)
	}
	obj.Body.Close()
}

func writeTestFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}
