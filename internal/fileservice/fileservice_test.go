package fileservice

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"vaultseal.dev/internal/digest"
	"vaultseal.dev/internal/merkle"
	"vaultseal.dev/internal/store"
)

func newTestService() *Service {
	return New(store.NewInMemorySessionStore(), store.NewInMemoryBlobStore())
}

func TestFullUploadLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	id, err := svc.Initiate(ctx)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}

	files := []struct {
		name    string
		content string
	}{
		{"a.txt", "A"},
		{"b.txt", "B"},
		{"c.txt", "C"},
	}
	for i, f := range files {
		hexHash, err := svc.Upload(ctx, id, FileMetadata{Name: f.name, Index: i}, []byte(f.content))
		if err != nil {
			t.Fatalf("Upload(%s): %v", f.name, err)
		}
		if hexHash != digest.Hash([]byte(f.content)).ToHex() {
			t.Fatalf("Upload(%s) returned wrong hash", f.name)
		}
	}

	rootHex, err := svc.Complete(ctx, id)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	la := digest.Hash([]byte("A"))
	lb := digest.Hash([]byte("B"))
	lc := digest.Hash([]byte("C"))
	wantRoot := digest.Combine(digest.Combine(la, lb), digest.Combine(lc, lc))
	if rootHex != wantRoot.ToHex() {
		t.Fatalf("Complete root = %s, want %s", rootHex, wantRoot.ToHex())
	}

	content, err := svc.GetFileContent(ctx, id, 1)
	if err != nil {
		t.Fatalf("GetFileContent: %v", err)
	}
	if string(content) != "B" {
		t.Fatalf("GetFileContent(1) = %q, want %q", content, "B")
	}

	proof, err := svc.GetProof(ctx, id, 2)
	if err != nil {
		t.Fatalf("GetProof: %v", err)
	}
	root, err := digest.FromHex(rootHex)
	if err != nil {
		t.Fatalf("FromHex: %v", err)
	}
	if !merkle.Verify(lc, proof, root) {
		t.Fatal("proof for index 2 should verify against the completed root")
	}
}

func TestCompleteFailsOnSparseSession(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	id, err := svc.Initiate(ctx)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if _, err := svc.Upload(ctx, id, FileMetadata{Name: "c.txt", Index: 2}, []byte("C")); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	_, err = svc.Complete(ctx, id)
	svcErr, ok := err.(*Error)
	if !ok || svcErr.Kind != KindIncomplete {
		t.Fatalf("Complete on sparse session error = %v, want KindIncomplete", err)
	}
}

func TestUploadRejectsDuplicateName(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	id, err := svc.Initiate(ctx)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if _, err := svc.Upload(ctx, id, FileMetadata{Name: "a.txt", Index: 0}, []byte("A")); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	_, err = svc.Upload(ctx, id, FileMetadata{Name: "a.txt", Index: 1}, []byte("A2"))
	svcErr, ok := err.(*Error)
	if !ok || svcErr.Kind != KindAlreadyExists {
		t.Fatalf("Upload duplicate name error = %v, want KindAlreadyExists", err)
	}
}

func TestUploadAfterCompleteFails(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	id, err := svc.Initiate(ctx)
	if err != nil {
		t.Fatalf("Initiate: %v", err)
	}
	if _, err := svc.Upload(ctx, id, FileMetadata{Name: "a.txt", Index: 0}, []byte("A")); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, err := svc.Complete(ctx, id); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	_, err = svc.Upload(ctx, id, FileMetadata{Name: "b.txt", Index: 1}, []byte("B"))
	svcErr, ok := err.(*Error)
	if !ok || svcErr.Kind != KindClosed {
		t.Fatalf("Upload after Complete error = %v, want KindClosed", err)
	}
}

func TestOperationsOnUnknownSessionReturnNotFound(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()
	missing := uuid.MustParse("00000000-0000-0000-0000-000000000000")

	if _, err := svc.Upload(ctx, missing, FileMetadata{Name: "a.txt", Index: 0}, []byte("A")); !isKind(err, KindNotFound) {
		t.Fatalf("Upload on unknown session error = %v, want KindNotFound", err)
	}
	if _, err := svc.Complete(ctx, missing); !isKind(err, KindNotFound) {
		t.Fatalf("Complete on unknown session error = %v, want KindNotFound", err)
	}
	if _, err := svc.GetFileContent(ctx, missing, 0); !isKind(err, KindNotFound) {
		t.Fatalf("GetFileContent on unknown session error = %v, want KindNotFound", err)
	}
	if _, err := svc.GetProof(ctx, missing, 0); !isKind(err, KindNotFound) {
		t.Fatalf("GetProof on unknown session error = %v, want KindNotFound", err)
	}
}

func isKind(err error, kind Kind) bool {
	svcErr, ok := err.(*Error)
	return ok && svcErr.Kind == kind
}
