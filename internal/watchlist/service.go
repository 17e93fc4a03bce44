// Package watchlist tracks coins a user wants priced without holding.
package watchlist

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/cryptomonitor/tracker/internal/market"
	"github.com/cryptomonitor/tracker/internal/portfolio"
	"github.com/cryptomonitor/tracker/internal/store"
)

var ErrValidation = errors.New("watchlist validation failed")

type Service struct {
	db     *store.DB
	market portfolio.SnapshotSource
	log    *zap.Logger
}

func NewService(db *store.DB, m portfolio.SnapshotSource, log *zap.Logger) *Service {
	return &Service{db: db, market: m, log: log}
}

type ItemView struct {
	Coin         string  `json:"cryptocurrency"`
	Name         string  `json:"name"`
	CurrentPrice float64 `json:"current_price"`
}

// Add puts coin on the watchlist of userID. Watching a coin twice is a
// no-op rather than an error.
func (s *Service) Add(ctx context.Context, userID, coin string) error {
	if coin == "" {
		return errors.Wrap(ErrValidation, "Cryptocurrency is required.")
	}

	coin = market.NormalizeCoin(coin)

	snap, err := s.market.Snapshot(ctx)
	if err != nil {
		s.log.Warn("validating watch against a degraded market snapshot", zap.Error(err))
	}
	if !snap.Has(coin) {
		return errors.Wrap(ErrValidation, "Invalid cryptocurrency.")
	}

	item := store.WatchItem{
		UserID:    userID,
		Coin:      coin,
		CreatedAt: time.Now(),
	}

	return s.db.Update(ctx, func(tx *store.Tx) error {
		return tx.Upsert(item)
	})
}

// List prices every watched coin; coins absent from the snapshot are
// priced at zero.
func (s *Service) List(ctx context.Context, userID string) ([]ItemView, error) {
	snap, err := s.market.Snapshot(ctx)
	if err != nil {
		s.log.Warn("pricing watchlist against a degraded market snapshot", zap.Error(err))
	}

	var views []ItemView
	var scanErr error

	err = s.db.View(ctx, func(tx *store.Tx) error {
		return tx.ScanPrefix(store.WatchPrefix(userID), func(key store.Key, data []byte) bool {
			var w store.WatchItem
			if err := tx.Get(key, &w); err != nil {
				scanErr = err
				return false
			}

			var price float64
			if q, ok := snap.Get(w.Coin); ok {
				price = q.PriceUSD.InexactFloat64()
			}

			views = append(views, ItemView{
				Coin:         w.Coin,
				Name:         market.DisplayName(w.Coin),
				CurrentPrice: price,
			})
			return true
		})
	})
	if err != nil {
		return nil, err
	}
	if scanErr != nil {
		return nil, scanErr
	}

	if views == nil {
		views = []ItemView{}
	}

	return views, nil
}
