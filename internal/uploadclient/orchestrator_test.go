package uploadclient

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"vaultseal.dev/internal/fileservice"
	"vaultseal.dev/internal/httpapi"
	"vaultseal.dev/internal/store"
)

func newTestEnv(t *testing.T) (*httptest.Server, *Orchestrator, string, string) {
	t.Helper()
	svc := fileservice.New(store.NewInMemorySessionStore(), store.NewInMemoryBlobStore())
	server := httptest.NewServer(httpapi.New(svc).Handler())
	t.Cleanup(server.Close)

	filesDir := t.TempDir()
	rootsDir := filepath.Join(t.TempDir(), "roots")

	api := NewAPIClient(Args{
		APIKey:        "unused",
		APISecret:     "unused",
		BaseURL:       server.URL + "/",
		CorrelationID: uuid.New(),
	})
	orch := NewOrchestrator(api, rootsDir)

	return server, orch, filesDir, rootsDir
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestUploadThenVerifySucceeds(t *testing.T) {
	_, orch, filesDir, _ := newTestEnv(t)
	writeFile(t, filesDir, "a.txt", "A")
	writeFile(t, filesDir, "b.txt", "B")
	writeFile(t, filesDir, "c.txt", "C")

	ctx := context.Background()
	result, err := orch.Upload(ctx, filesDir)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if result.RootHex == "" {
		t.Fatal("Upload should return a non-empty root hex")
	}

	entries, err := os.ReadDir(filesDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatal("Upload should clean up source files after a successful complete")
	}

	results, err := orch.VerifyAll(ctx, result.ID, 3)
	if err != nil {
		t.Fatalf("VerifyAll: %v", err)
	}
	for _, r := range results {
		if !r.OK {
			t.Fatalf("index %d failed verification", r.Index)
		}
	}
}

func TestUploadOnEmptyDirectoryFails(t *testing.T) {
	_, orch, filesDir, _ := newTestEnv(t)

	_, err := orch.Upload(context.Background(), filesDir)
	if err != ErrNoFiles {
		t.Fatalf("Upload on empty directory error = %v, want ErrNoFiles", err)
	}
}

func TestListUploadIDsReflectsPersistedRoots(t *testing.T) {
	_, orch, filesDir, _ := newTestEnv(t)
	writeFile(t, filesDir, "a.txt", "A")

	result, err := orch.Upload(context.Background(), filesDir)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	ids, err := orch.ListUploadIDs()
	if err != nil {
		t.Fatalf("ListUploadIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != result.ID {
		t.Fatalf("ListUploadIDs = %v, want [%v]", ids, result.ID)
	}
}

func TestVerifyDetectsCorruptedRoot(t *testing.T) {
	_, orch, filesDir, rootsDir := newTestEnv(t)
	writeFile(t, filesDir, "a.txt", "A")

	result, err := orch.Upload(context.Background(), filesDir)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if err := os.WriteFile(filepath.Join(rootsDir, result.ID.String()+".root"), []byte(
		"0000000000000000000000000000000000000000000000000000000000000000"[:64]), 0o644); err != nil {
		t.Fatalf("corrupt root file: %v", err)
	}

	results, err := orch.VerifyAll(context.Background(), result.ID, 1)
	if err != nil {
		t.Fatalf("VerifyAll: %v", err)
	}
	if results[0].OK {
		t.Fatal("verification should fail against a corrupted root")
	}
}
