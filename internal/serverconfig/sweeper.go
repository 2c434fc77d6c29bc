package serverconfig

import (
	"context"
	"log"
	"time"

	"vaultseal.dev/internal/store"
)

// Sweeper periodically reaps sessions that were opened but never
// completed, so a client that abandons an upload doesn't leak a session
// record forever. Only the session record is deleted; blobs already
// uploaded into a reaped session stay in the BlobStore. It is meant to run on the same process that
// holds the Consul leader lock, since running it on every replica would
// just race everyone's Delete calls against the same rows.
type Sweeper struct {
	sessions store.SessionStore
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewSweeper builds a Sweeper that reaps open sessions older than ttl,
// checking every interval.
func NewSweeper(sessions store.SessionStore, ttl, interval time.Duration) *Sweeper {
	return &Sweeper{sessions: sessions, ttl: ttl, interval: interval, now: time.Now}
}

// Run blocks, sweeping on a fixed interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.sweepOnce(ctx); err != nil {
				log.Printf("serverconfig: sweep failed: %v", err)
			} else if n > 0 {
				log.Printf("serverconfig: swept %d stale open session(s)", n)
			}
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) (int, error) {
	snaps, err := s.sessions.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-s.ttl)
	swept := 0
	for _, snap := range snaps {
		if snap.Closed {
			continue
		}
		if snap.CreatedAt.After(cutoff) {
			continue
		}
		if err := s.sessions.Delete(ctx, snap.ID); err != nil {
			return swept, err
		}
		swept++
	}
	return swept, nil
}
