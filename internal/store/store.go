// Package store defines the narrow persistence interfaces the file service
// depends on, plus in-memory implementations suitable for tests and
// single-process deployments. External implementations (S3-backed blob
// storage, DynamoDB-backed session storage) live in the s3blob and
// ddbsession subpackages.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"vaultseal.dev/internal/session"
)

// ErrNotFound is returned by SessionStore.Get and BlobStore.Get when no
// value exists for the given key.
var ErrNotFound = errors.New("store: not found")

// SessionStore persists session.Snapshot values keyed by session ID.
type SessionStore interface {
	Get(ctx context.Context, id uuid.UUID) (session.Snapshot, error)
	Insert(ctx context.Context, snap session.Snapshot) error
	Update(ctx context.Context, snap session.Snapshot) error
	// List returns every snapshot currently held by the store. It exists
	// for maintenance tasks (e.g. sweeping stale open sessions) and is
	// not on the hot path of a single upload.
	List(ctx context.Context) ([]session.Snapshot, error)
	// Delete removes the snapshot stored under id, if any. It is a no-op,
	// not an error, when id is not present.
	Delete(ctx context.Context, id uuid.UUID) error
}

// BlobStore persists uploaded file content keyed by session ID and file
// name.
type BlobStore interface {
	Get(ctx context.Context, sessionID uuid.UUID, name string) ([]byte, error)
	Put(ctx context.Context, sessionID uuid.UUID, name string, content []byte) error
}

// ------------------------------------------------------------

// InMemorySessionStore is a SessionStore backed by a mutex-guarded map. It
// is the default store for single-process deployments and for tests.
type InMemorySessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]session.Snapshot
}

// NewInMemorySessionStore returns an empty InMemorySessionStore.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[uuid.UUID]session.Snapshot)}
}

func (s *InMemorySessionStore) Get(ctx context.Context, id uuid.UUID) (session.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.sessions[id]
	if !ok {
		return session.Snapshot{}, ErrNotFound
	}
	return snap, nil
}

func (s *InMemorySessionStore) Insert(ctx context.Context, snap session.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[snap.ID] = snap
	return nil
}

func (s *InMemorySessionStore) Update(ctx context.Context, snap session.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[snap.ID] = snap
	return nil
}

func (s *InMemorySessionStore) List(ctx context.Context) ([]session.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]session.Snapshot, 0, len(s.sessions))
	for _, snap := range s.sessions {
		out = append(out, snap)
	}
	return out, nil
}

func (s *InMemorySessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// ------------------------------------------------------------

// InMemoryBlobStore is a BlobStore backed by a mutex-guarded map, keyed on
// sessionID+name.
type InMemoryBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

// NewInMemoryBlobStore returns an empty InMemoryBlobStore.
func NewInMemoryBlobStore() *InMemoryBlobStore {
	return &InMemoryBlobStore{blobs: make(map[string][]byte)}
}

func blobKey(sessionID uuid.UUID, name string) string {
	return sessionID.String() + "/" + name
}

func (b *InMemoryBlobStore) Get(ctx context.Context, sessionID uuid.UUID, name string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	content, ok := b.blobs[blobKey(sessionID, name)]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(content))
	copy(out, content)
	return out, nil
}

func (b *InMemoryBlobStore) Put(ctx context.Context, sessionID uuid.UUID, name string, content []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	stored := make([]byte, len(content))
	copy(stored, content)
	b.blobs[blobKey(sessionID, name)] = stored
	return nil
}
