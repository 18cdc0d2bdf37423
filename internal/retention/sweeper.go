// Package retention runs the periodic sweeper that keeps the
// admission cache and the store's per-stream row counts within the
// configured caps. The sweeper is the source of truth; the admission
// cache is only ever advisory between sweeps.
package retention

import (
	"log/slog"
	"sync"
	"time"

	"gomodel/internal/admission"
	"gomodel/internal/metrics"
	"gomodel/internal/storage"
)

// DefaultInterval matches the periodic maintenance cadence recommended
// for a single collector process.
const DefaultInterval = 60 * time.Second

// Config controls sweeper behavior.
type Config struct {
	// Interval between sweeps. Zero means DefaultInterval.
	Interval time.Duration

	// MaxHashes caps how many distinct streams the admission cache
	// tracks, reseeded from the store's top hashes by row count.
	MaxHashes int

	// MaxLogCount is the per-stream row cap enforced by trimming.
	MaxLogCount int
}

// Sweeper periodically reconciles the admission cache against the
// store and trims any stream over its row cap.
type Sweeper struct {
	store     *storage.Store
	admission admission.Cache
	cfg       Config

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New constructs a Sweeper. Run must be called to start it.
func New(store *storage.Store, cache admission.Cache, cfg Config) *Sweeper {
	return &Sweeper{
		store:     store,
		admission: cache,
		cfg:       cfg,
		stop:      make(chan struct{}),
	}
}

func (s *Sweeper) interval() time.Duration {
	if s.cfg.Interval <= 0 {
		return DefaultInterval
	}
	return s.cfg.Interval
}

// Run blocks, ticking every interval until Close is called.
func (s *Sweeper) Run() {
	s.wg.Add(1)
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

// Close stops the sweeper and waits for any in-progress sweep to
// finish.
func (s *Sweeper) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
	return nil
}

func (s *Sweeper) sweep() {
	s.reconcileAdmission()
	s.trimOverflowingHashes()
	metrics.AdmittedHashes.Set(float64(s.admission.Len()))
}

// reconcileAdmission reseeds the admission cache from the store's
// ground truth whenever its cardinality has drifted past MaxHashes.
func (s *Sweeper) reconcileAdmission() {
	if s.cfg.MaxHashes <= 0 {
		return
	}
	if s.admission.Len() <= s.cfg.MaxHashes {
		return
	}

	top, err := s.store.TopHashesWithCounts(s.cfg.MaxHashes)
	if err != nil {
		slog.Error("retention: failed to fetch top hashes for reseed", "error", err)
		return
	}

	pairs := make([]admission.HashCount, len(top))
	copy(pairs, top)
	s.admission.Reseed(pairs)
	slog.Info("retention: reseeded admission cache", "hashes", len(pairs))
}

// trimOverflowingHashes deletes the oldest rows for any stream whose
// count exceeds MaxLogCount, down to exactly MaxLogCount.
func (s *Sweeper) trimOverflowingHashes() {
	if s.cfg.MaxLogCount <= 0 {
		return
	}

	hashes, err := s.store.DistinctHashes()
	if err != nil {
		slog.Error("retention: failed to list distinct hashes", "error", err)
		return
	}

	for _, hash := range hashes {
		count, err := s.store.CountForHash(hash)
		if err != nil {
			slog.Error("retention: failed to count hash", "hash", hash, "error", err)
			continue
		}

		if count <= int64(s.cfg.MaxLogCount) {
			continue
		}

		deleteN := count - int64(s.cfg.MaxLogCount)
		if err := s.store.TrimHash(hash, deleteN); err != nil {
			slog.Error("retention: failed to trim hash", "hash", hash, "error", err)
			continue
		}
		slog.Info("retention: trimmed hash", "hash", hash, "deleted", deleteN)
	}
}
