// Package history records market snapshots over time and serves the
// chart series built from them.
package history

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cryptomonitor/tracker/internal/market"
	"github.com/cryptomonitor/tracker/internal/portfolio"
	"github.com/cryptomonitor/tracker/internal/store"
)

// DefaultSeriesLen matches the original chart depth.
const DefaultSeriesLen = 50

// DefaultChartCoin is the series shown when no coin is asked for.
const DefaultChartCoin = "bitcoin"

const labelLayout = "2006-01-02 15:04"

type Service struct {
	db     *store.DB
	market portfolio.SnapshotSource
	log    *zap.Logger
}

func NewService(db *store.DB, m portfolio.SnapshotSource, log *zap.Logger) *Service {
	return &Service{db: db, market: m, log: log}
}

// Series is chart-ready: parallel label/value slices, newest first.
type Series struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// RecordOnce stores one price point per coin in the current snapshot.
// A degraded (non-live) snapshot is not recorded to keep the history
// free of repeats.
func (s *Service) RecordOnce(ctx context.Context) (int, error) {
	snap, err := s.market.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	if !snap.Live {
		return 0, nil
	}

	now := time.Now()
	points := make([]store.PricePoint, 0, len(snap.Quotes))
	for _, q := range snap.Quotes {
		points = append(points, store.PricePoint{
			Coin:      q.Coin,
			PriceUSD:  q.PriceUSD,
			Change24h: q.Change24h,
			MarketCap: q.MarketCap,
			Volume24h: q.Volume24h,
			Timestamp: now,
		})
	}

	err = s.db.Update(ctx, func(tx *store.Tx) error {
		for i := range points {
			if err := tx.Upsert(points[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return len(points), nil
}

// ChartSeries returns up to limit most recent points for coin, newest
// first.
func (s *Service) ChartSeries(ctx context.Context, coin string, limit int) (Series, error) {
	if coin == "" {
		coin = DefaultChartCoin
	}
	if limit <= 0 {
		limit = DefaultSeriesLen
	}

	coin = market.NormalizeCoin(coin)

	var points []store.PricePoint
	err := s.db.View(ctx, func(tx *store.Tx) error {
		return tx.ScanPrefix(store.PricePrefix(coin), func(key store.Key, data []byte) bool {
			var p store.PricePoint
			if err := tx.Get(key, &p); err != nil {
				return true
			}
			points = append(points, p)
			return true
		})
	})
	if err != nil {
		return Series{}, err
	}

	// scan order is oldest first; keep the tail and flip it
	if len(points) > limit {
		points = points[len(points)-limit:]
	}

	series := Series{Labels: []string{}, Values: []float64{}}
	for i := len(points) - 1; i >= 0; i-- {
		series.Labels = append(series.Labels, points[i].Timestamp.Format(labelLayout))
		series.Values = append(series.Values, points[i].PriceUSD.InexactFloat64())
	}

	return series, nil
}

// Recorder snapshots prices into history on a fixed interval.
type Recorder struct {
	svc      *Service
	interval time.Duration
	log      *zap.Logger
}

func NewRecorder(svc *Service, interval time.Duration, log *zap.Logger) *Recorder {
	if interval == 0 {
		interval = 5 * time.Minute
	}

	return &Recorder{svc: svc, interval: interval, log: log}
}

func (r *Recorder) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			n, err := r.svc.RecordOnce(ctx)
			if err != nil {
				r.log.Warn("price history recording failed", zap.Error(err))
				continue
			}
			r.log.Debug("recorded price points", zap.Int("count", n))
		}
	}
}
