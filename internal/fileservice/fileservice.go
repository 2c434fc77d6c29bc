// Package fileservice implements the upload session state machine: a
// session is opened, files are uploaded into its slots in any order, and
// it is completed once every slot is filled, at which point the server's
// Merkle root becomes authoritative. Inclusion proofs and stored file
// content can be read back for any completed or in-progress session.
package fileservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"vaultseal.dev/internal/digest"
	"vaultseal.dev/internal/merkle"
	"vaultseal.dev/internal/session"
	"vaultseal.dev/internal/store"
)

// Error is a typed service error. Callers that need an HTTP status map it
// with a small switch over the sentinel values below rather than string
// matching.
type Error struct {
	Kind Kind
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Kind classifies an Error for status-code mapping at the HTTP boundary.
type Kind int

const (
	// KindUnexpected covers anything not otherwise classified.
	KindUnexpected Kind = iota
	// KindNotFound means the session or index does not exist.
	KindNotFound
	// KindAlreadyExists means a name or slot was already taken.
	KindAlreadyExists
	// KindIncomplete means complete() was called before every slot was filled.
	KindIncomplete
	// KindClosed means upload() was called on an already-completed session.
	KindClosed
	// KindStorage wraps an underlying store failure.
	KindStorage
)

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// FileMetadata identifies the slot an uploaded file occupies.
type FileMetadata struct {
	Name  string
	Index int
}

// Service is the file upload state machine. It is safe for concurrent use;
// the stores it wraps are responsible for their own consistency.
type Service struct {
	sessions store.SessionStore
	blobs    store.BlobStore
}

// New builds a Service over the given stores.
func New(sessions store.SessionStore, blobs store.BlobStore) *Service {
	return &Service{sessions: sessions, blobs: blobs}
}

// Initiate opens a new session and returns its ID.
func (s *Service) Initiate(ctx context.Context) (uuid.UUID, error) {
	sess := session.New()
	if err := s.sessions.Insert(ctx, sess.ToSnapshot()); err != nil {
		return uuid.UUID{}, newError(KindStorage, "initiate: %v", err)
	}
	return sess.ID(), nil
}

// Upload stores content at meta.Index under meta.Name within the session
// identified by id, and returns the content's hex-encoded digest.
func (s *Service) Upload(ctx context.Context, id uuid.UUID, meta FileMetadata, content []byte) (string, error) {
	sess, err := s.loadSession(ctx, id)
	if err != nil {
		return "", err
	}

	hash := digest.Hash(content)
	if err := sess.Add(meta.Index, meta.Name, hash); err != nil {
		return "", mapSessionError(err)
	}

	if err := s.blobs.Put(ctx, id, meta.Name, content); err != nil {
		return "", newError(KindStorage, "upload: put blob: %v", err)
	}

	if err := s.sessions.Update(ctx, sess.ToSnapshot()); err != nil {
		return "", newError(KindStorage, "upload: update session: %v", err)
	}

	return hash.ToHex(), nil
}

// Complete builds the session's Merkle tree over its current leaves,
// closes the session with the resulting root, and returns the root's hex
// encoding. It fails with KindIncomplete if any slot is unfilled.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (string, error) {
	sess, err := s.loadSession(ctx, id)
	if err != nil {
		return "", err
	}

	root, err := merkle.RootOf(sess.Leaves())
	if err != nil {
		return "", newError(KindUnexpected, "complete: %v", err)
	}

	if err := sess.Close(root); err != nil {
		return "", mapSessionError(err)
	}

	if err := s.sessions.Update(ctx, sess.ToSnapshot()); err != nil {
		return "", newError(KindStorage, "complete: update session: %v", err)
	}

	return root.ToHex(), nil
}

// GetFileContent returns the stored bytes for the file at index within
// session id.
func (s *Service) GetFileContent(ctx context.Context, id uuid.UUID, index int) ([]byte, error) {
	sess, err := s.loadSession(ctx, id)
	if err != nil {
		return nil, err
	}

	name, ok := sess.NameAt(index)
	if !ok {
		return nil, newError(KindNotFound, "get file content: index %d not found", index)
	}

	content, err := s.blobs.Get(ctx, id, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, newError(KindNotFound, "get file content: blob for %q not found", name)
		}
		return nil, newError(KindStorage, "get file content: %v", err)
	}
	return content, nil
}

// GetProof returns the Merkle inclusion proof for the file at index within
// session id, computed against the session's current leaves.
func (s *Service) GetProof(ctx context.Context, id uuid.UUID, index int) (merkle.InclusionProof, error) {
	sess, err := s.loadSession(ctx, id)
	if err != nil {
		return merkle.InclusionProof{}, err
	}

	tree, err := merkle.Build(sess.Leaves())
	if err != nil {
		return merkle.InclusionProof{}, newError(KindUnexpected, "get proof: %v", err)
	}

	proof, err := tree.Proof(index)
	if err != nil {
		if errors.Is(err, merkle.ErrOutOfBounds) {
			return merkle.InclusionProof{}, newError(KindNotFound, "get proof: index %d not found", index)
		}
		return merkle.InclusionProof{}, newError(KindUnexpected, "get proof: %v", err)
	}
	return proof, nil
}

func (s *Service) loadSession(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	snap, err := s.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, newError(KindNotFound, "session %s not found", id)
		}
		return nil, newError(KindStorage, "get session: %v", err)
	}
	return session.FromSnapshot(snap), nil
}

func mapSessionError(err error) error {
	switch {
	case errors.Is(err, session.ErrAlreadyExists):
		return newError(KindAlreadyExists, "%v", err)
	case errors.Is(err, session.ErrClosed):
		return newError(KindClosed, "%v", err)
	case errors.Is(err, session.ErrIncomplete):
		return newError(KindIncomplete, "%v", err)
	case errors.Is(err, session.ErrOutOfRange):
		return newError(KindNotFound, "%v", err)
	default:
		return newError(KindUnexpected, "%v", err)
	}
}
