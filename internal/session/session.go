// Package session holds the server-side model of an in-progress upload: an
// ordered, sparsely-filled set of file slots identified by a session ID,
// together with the digests needed to rebuild the Merkle tree once every
// slot is filled.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"vaultseal.dev/internal/digest"
)

// ErrAlreadyExists is returned by Add when the slot at an index is already
// filled, or the name is already used elsewhere in the session.
var ErrAlreadyExists = errors.New("session: file already exists in this session")

// ErrClosed is returned by Add when the session has already been completed.
var ErrClosed = errors.New("session: session is closed")

// ErrIncomplete is returned by Close when slots remain unfilled.
var ErrIncomplete = errors.New("session: session has unfilled slots")

// ErrOutOfRange is returned when an index has no corresponding slot.
var ErrOutOfRange = errors.New("session: index out of range")

// Session is the ordered set of file slots belonging to one upload. A slot
// is unfilled until Add is called with its index; unfilled slots hold the
// empty name and digest.Zero, exactly as they were sparsely created.
//
// The zero value is not usable; construct one with New.
type Session struct {
	id        uuid.UUID
	createdAt time.Time
	order     []string
	digests   []digest.Digest32
	byName    map[string]int
	closed    bool
	rootHash  digest.Digest32
}

// New creates an empty, open session with a freshly generated ID, stamped
// with the current time for staleness checks.
func New() *Session {
	return &Session{
		id:        uuid.New(),
		createdAt: time.Now(),
		byName:    make(map[string]int),
	}
}

// ID returns the session's UUID.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// CreatedAt returns the time the session was opened.
func (s *Session) CreatedAt() time.Time {
	return s.createdAt
}

// Closed reports whether Close has already succeeded for this session.
func (s *Session) Closed() bool {
	return s.closed
}

// NameAt returns the file name stored at index, or false if the index is
// out of range or its slot is unfilled.
func (s *Session) NameAt(index int) (string, bool) {
	if index < 0 || index >= len(s.order) {
		return "", false
	}
	name := s.order[index]
	return name, name != ""
}

// Contains reports whether name has already been assigned to a slot in
// this session, regardless of index.
func (s *Session) Contains(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// Leaves returns the session's current leaf digests in index order,
// including digest.Zero placeholders for unfilled slots.
func (s *Session) Leaves() []digest.Digest32 {
	out := make([]digest.Digest32, len(s.digests))
	copy(out, s.digests)
	return out
}

// Len returns the number of slots the session currently spans, i.e. one
// more than the highest index ever added.
func (s *Session) Len() int {
	return len(s.order)
}

// Complete reports whether every slot from 0 to Len()-1 has been filled.
func (s *Session) Complete() bool {
	for _, name := range s.order {
		if name == "" {
			return false
		}
	}
	return len(s.order) > 0
}

// Add places name/hash at index, growing the session sparsely if index is
// beyond the current length. It fails with ErrClosed once the session has
// been completed, and with ErrAlreadyExists if name is already used by a
// different slot or the slot at index is already filled.
func (s *Session) Add(index int, name string, hash digest.Digest32) error {
	if s.closed {
		return ErrClosed
	}
	if index < 0 {
		return ErrOutOfRange
	}
	if existing, ok := s.byName[name]; ok && existing != index {
		return ErrAlreadyExists
	}
	if index < len(s.order) && s.order[index] != "" {
		return ErrAlreadyExists
	}

	if index >= len(s.order) {
		grown := make([]string, index+1)
		copy(grown, s.order)
		s.order = grown

		grownDigests := make([]digest.Digest32, index+1)
		copy(grownDigests, s.digests)
		s.digests = grownDigests
	}

	s.order[index] = name
	s.digests[index] = hash
	s.byName[name] = index
	return nil
}

// Close marks the session complete, recording root as its final Merkle
// root. It fails with ErrIncomplete if any slot is still unfilled. Calling
// Close on an already-closed session is not an error: it overwrites the
// recorded root with the new one, matching the idempotent re-complete
// behavior of the rest of the upload flow.
func (s *Session) Close(root digest.Digest32) error {
	if s.closed {
		s.rootHash = root
		return nil
	}
	if !s.Complete() {
		return ErrIncomplete
	}
	s.closed = true
	s.rootHash = root
	return nil
}

// Root returns the root recorded by Close. It is the zero digest until
// Close has succeeded at least once.
func (s *Session) Root() digest.Digest32 {
	return s.rootHash
}

// Snapshot is the serializable projection of a Session, used by stores
// that persist session state outside process memory.
type Snapshot struct {
	ID        uuid.UUID
	CreatedAt time.Time
	Order     []string
	Digests   []digest.Digest32
	Closed    bool
	Root      digest.Digest32
}

// ToSnapshot captures s's current state for persistence.
func (s *Session) ToSnapshot() Snapshot {
	order := make([]string, len(s.order))
	copy(order, s.order)
	digests := make([]digest.Digest32, len(s.digests))
	copy(digests, s.digests)
	return Snapshot{
		ID:        s.id,
		CreatedAt: s.createdAt,
		Order:     order,
		Digests:   digests,
		Closed:    s.closed,
		Root:      s.rootHash,
	}
}

// FromSnapshot reconstructs a Session from a previously captured Snapshot.
func FromSnapshot(snap Snapshot) *Session {
	s := &Session{
		id:        snap.ID,
		createdAt: snap.CreatedAt,
		order:     append([]string(nil), snap.Order...),
		digests:   append([]digest.Digest32(nil), snap.Digests...),
		byName:    make(map[string]int, len(snap.Order)),
		closed:    snap.Closed,
		rootHash:  snap.Root,
	}
	for i, name := range s.order {
		if name != "" {
			s.byName[name] = i
		}
	}
	return s
}
