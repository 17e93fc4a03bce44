package market

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/cryptomonitor/tracker/internal/cache"
)

const snapshotCacheKey = "market:snapshot"

const DefaultTTL = 5 * time.Minute

// Fetcher is what the service needs from the upstream client.
type Fetcher interface {
	Markets(ctx context.Context) ([]Quote, error)
}

// Service serves market snapshots out of the cache, deduplicates
// concurrent upstream fetches and degrades to the last good snapshot
// when the upstream is down.
type Service struct {
	fetcher Fetcher
	cache   *cache.Cache
	ttl     time.Duration
	log     *zap.Logger

	sf singleflight.Group

	mu       sync.RWMutex
	lastGood *Snapshot
}

func NewService(fetcher Fetcher, c *cache.Cache, ttl time.Duration, log *zap.Logger) *Service {
	if ttl == 0 {
		ttl = DefaultTTL
	}

	return &Service{
		fetcher: fetcher,
		cache:   c,
		ttl:     ttl,
		log:     log,
	}
}

// Snapshot returns the current market snapshot. The returned snapshot is
// always usable: when the upstream fails it is the last good one (or
// empty) with Live set to false, alongside the fetch error.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	if b, ok := s.cache.Get(snapshotCacheKey); ok {
		var snap Snapshot
		if err := json.Unmarshal(b, &snap); err == nil {
			return &snap, nil
		}
		// a payload that does not decode is treated as a miss
		s.cache.Remove(snapshotCacheKey)
	}

	v, err, _ := s.sf.Do(snapshotCacheKey, func() (interface{}, error) {
		return s.refresh(ctx)
	})
	if err != nil {
		return s.stale(), err
	}

	snap, ok := v.(*Snapshot)
	if !ok || snap == nil {
		return s.stale(), errors.Wrap(ErrUpstreamFailed, "unexpected snapshot type")
	}

	return snap, nil
}

func (s *Service) refresh(ctx context.Context) (*Snapshot, error) {
	quotes, err := s.fetcher.Markets(ctx)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Quotes:    make(map[string]Quote, len(quotes)),
		FetchedAt: time.Now(),
		Live:      true,
	}
	for _, q := range quotes {
		snap.Quotes[q.Coin] = q
	}

	if b, err := json.Marshal(snap); err == nil {
		s.cache.Set(snapshotCacheKey, b, s.ttl)
	} else {
		s.log.Warn("could not cache market snapshot", zap.Error(err))
	}

	s.mu.Lock()
	s.lastGood = snap
	s.mu.Unlock()

	return snap, nil
}

// stale returns a copy of the last good snapshot flagged as not live, or
// an empty snapshot when there has never been a successful fetch.
func (s *Service) stale() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastGood == nil {
		return &Snapshot{Quotes: map[string]Quote{}, Live: false}
	}

	// a published snapshot is never mutated, so sharing the quotes map
	// with the stale copy is safe
	return &Snapshot{
		Quotes:    s.lastGood.Quotes,
		FetchedAt: s.lastGood.FetchedAt,
		Live:      false,
	}
}
