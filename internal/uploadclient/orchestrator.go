package uploadclient

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"vaultseal.dev/internal/digest"
	"vaultseal.dev/internal/merkle"
)

// ErrNoFiles is returned by Upload when the source directory is empty.
var ErrNoFiles = errors.New("uploadclient: directory has no files")

// ErrRootMismatch is returned by Upload when the server's reported root
// disagrees with the root computed locally from the same files.
var ErrRootMismatch = errors.New("uploadclient: server root does not match locally computed root")

// fileEntry is one file read from the source directory, in upload order.
type fileEntry struct {
	path string
	name string
	data []byte
}

// Orchestrator drives the full upload and verify workflows against one
// upload server.
type Orchestrator struct {
	api   *APIClient
	roots *RootStore
}

// NewOrchestrator builds an Orchestrator over api, persisting roots under
// rootsDir.
func NewOrchestrator(api *APIClient, rootsDir string) *Orchestrator {
	return &Orchestrator{api: api, roots: NewRootStore(rootsDir)}
}

// UploadResult summarizes a completed upload.
type UploadResult struct {
	ID      uuid.UUID
	RootHex string
}

// Upload scans filesDir for regular files (in lexical name order for a
// deterministic tree), builds the local Merkle tree, and drives the
// initiate/upload/complete session lifecycle against the server. Once the
// server's reported root matches the locally computed one and has been
// persisted to the root store, the source files are deleted.
func (o *Orchestrator) Upload(ctx context.Context, filesDir string) (UploadResult, error) {
	entries, err := loadFiles(filesDir)
	if err != nil {
		return UploadResult{}, err
	}
	if len(entries) == 0 {
		return UploadResult{}, ErrNoFiles
	}

	leaves := make([]digest.Digest32, len(entries))
	for i, e := range entries {
		leaves[i] = digest.Hash(e.data)
	}
	localRoot, err := merkle.RootOf(leaves)
	if err != nil {
		return UploadResult{}, fmt.Errorf("uploadclient: build local tree: %w", err)
	}
	localRootHex := localRoot.ToHex()

	id, err := o.api.Initiate(ctx)
	if err != nil {
		return UploadResult{}, err
	}

	for i, e := range entries {
		if _, err := o.api.UploadFile(ctx, id, e.name, i, e.data); err != nil {
			return UploadResult{}, fmt.Errorf("uploadclient: upload %s: %w", e.name, err)
		}
	}

	serverRootHex, err := o.api.Complete(ctx, id)
	if err != nil {
		return UploadResult{}, err
	}
	if !strings.EqualFold(serverRootHex, localRootHex) {
		return UploadResult{}, fmt.Errorf("%w: server %s, local %s", ErrRootMismatch, serverRootHex, localRootHex)
	}

	if err := o.roots.Write(id, localRootHex); err != nil {
		return UploadResult{}, err
	}

	for _, e := range entries {
		os.Remove(e.path)
	}

	return UploadResult{ID: id, RootHex: localRootHex}, nil
}

// VerifyResult reports whether index verified against the persisted root.
type VerifyResult struct {
	Index int
	OK    bool
}

// Verify downloads the file at index within session id, fetches its
// inclusion proof, and checks it against the root previously persisted by
// Upload for that session.
func (o *Orchestrator) Verify(ctx context.Context, id uuid.UUID, index int) (VerifyResult, error) {
	rootHex, err := o.roots.Load(id)
	if err != nil {
		return VerifyResult{}, err
	}
	root, err := digest.FromHex(rootHex)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("uploadclient: parse stored root: %w", err)
	}

	content, err := o.api.DownloadFile(ctx, id, index)
	if err != nil {
		return VerifyResult{}, err
	}
	proof, err := o.api.GetProof(ctx, id, index)
	if err != nil {
		return VerifyResult{}, err
	}

	leaf := digest.Hash(content)
	return VerifyResult{Index: index, OK: merkle.Verify(leaf, proof, root)}, nil
}

// VerifyAll verifies every index from 0 to count-1 concurrently, returning
// one VerifyResult per index in index order. It stops at the first
// download/proof-fetch error; a verification that merely fails (OK=false)
// does not abort the others.
func (o *Orchestrator) VerifyAll(ctx context.Context, id uuid.UUID, count int) ([]VerifyResult, error) {
	results := make([]VerifyResult, count)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < count; i++ {
		i := i
		g.Go(func() error {
			result, err := o.Verify(gctx, id, i)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ListUploadIDs returns the IDs of every session this client has a
// persisted root for.
func (o *Orchestrator) ListUploadIDs() ([]uuid.UUID, error) {
	ids, err := o.roots.List()
	if err != nil {
		return nil, err
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

func loadFiles(dir string) ([]fileEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("uploadclient: read directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	files := make([]fileEntry, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("uploadclient: read %s: %w", name, err)
		}
		files = append(files, fileEntry{path: path, name: name, data: data})
	}
	return files, nil
}
