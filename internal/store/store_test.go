package store

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"vaultseal.dev/internal/session"
)

func TestInMemorySessionStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewInMemorySessionStore()

	id := uuid.New()
	snap := session.Snapshot{ID: id, Order: []string{"a.txt"}}

	if _, err := s.Get(ctx, id); err != ErrNotFound {
		t.Fatalf("Get before Insert = %v, want ErrNotFound", err)
	}

	if err := s.Insert(ctx, snap); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != id || len(got.Order) != 1 {
		t.Fatalf("Get returned %+v, want %+v", got, snap)
	}

	snap.Order = append(snap.Order, "b.txt")
	if err := s.Update(ctx, snap); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err = s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get after Update: %v", err)
	}
	if len(got.Order) != 2 {
		t.Fatalf("Get after Update returned %d entries, want 2", len(got.Order))
	}

	all, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 || all[0].ID != id {
		t.Fatalf("List = %+v, want a single entry for %v", all, id)
	}

	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, id); err != ErrNotFound {
		t.Fatalf("Get after Delete = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("Delete on missing id should be a no-op, got: %v", err)
	}
}

func TestInMemoryBlobStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := NewInMemoryBlobStore()
	id := uuid.New()

	if _, err := b.Get(ctx, id, "a.txt"); err != ErrNotFound {
		t.Fatalf("Get before Put = %v, want ErrNotFound", err)
	}

	content := []byte("hello")
	if err := b.Put(ctx, id, "a.txt", content); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := b.Get(ctx, id, "a.txt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("Get = %q, want %q", got, "hello")
	}
}

func TestInMemoryBlobStoreIsolatesCallerBuffer(t *testing.T) {
	ctx := context.Background()
	b := NewInMemoryBlobStore()
	id := uuid.New()

	content := []byte("hello")
	if err := b.Put(ctx, id, "a.txt", content); err != nil {
		t.Fatalf("Put: %v", err)
	}
	content[0] = 'H'

	got, err := b.Get(ctx, id, "a.txt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "hello" {
		t.Fatal("Put should copy the caller's buffer rather than alias it")
	}

	got[0] = 'X'
	got2, err := b.Get(ctx, id, "a.txt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got2) != "hello" {
		t.Fatal("Get should return a copy, not the stored slice")
	}
}
